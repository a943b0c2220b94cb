package p2p

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrTransportFailure = errors.New("transport failure")

type MessageType string

const (
	TypePing         MessageType = "PING"
	TypeSigRequest   MessageType = "SIGREQ"
	TypeSigPass      MessageType = "SIGPASS"
	TypePeersRequest MessageType = "PEERSREQ"
)

// Payload is implemented by Ping, PeersRequest, SigRequest and SigPass only.
type Payload interface {
	Type() MessageType
}

type Ping struct{}

func (Ping) Type() MessageType { return TypePing }

type PeersRequest struct{}

func (PeersRequest) Type() MessageType { return TypePeersRequest }

// SigRequest asks validators to sign the header root of [Start, End] blocks of Chain,
// where Chain is the bridge address on the chain the headers belong to.
type SigRequest struct {
	Chain common.Address `json:"chain"`
	Start uint64         `json:"start"`
	End   uint64         `json:"end"`
	Root  common.Hash    `json:"root"`
}

func (SigRequest) Type() MessageType { return TypeSigRequest }

type SigPass struct {
	SigRequest
	Sig hexutil.Bytes `json:"sig"`
}

func (SigPass) Type() MessageType { return TypeSigPass }

// Message is a decoded gossip envelope. Peers lists the addresses already contacted
// with this message, From is the advertised address of the sender.
type Message struct {
	From    string
	Peers   []string
	Payload Payload
}

type envelope struct {
	Type  MessageType     `json:"type"`
	From  string          `json:"from"`
	Peers []string        `json:"peers"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode renders the message as a single JSON line.
func (m *Message) Encode() ([]byte, error) {
	env := envelope{
		Type:  m.Payload.Type(),
		From:  m.From,
		Peers: m.Peers,
	}
	if env.Peers == nil {
		env.Peers = []string{}
	}
	switch m.Payload.(type) {
	case SigRequest, SigPass:
		data, err := json.Marshal(m.Payload)
		if err != nil {
			return nil, fmt.Errorf("can't encode %s payload: %w", env.Type, err)
		}
		env.Data = data
	}
	res, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("can't encode message: %w", err)
	}
	return append(res, '\n'), nil
}

// DecodeMessage parses a single frame, any malformed input is an ErrTransportFailure.
func DecodeMessage(frame []byte) (*Message, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("can't decode envelope: %v: %w", err, ErrTransportFailure)
	}
	msg := &Message{
		From:  env.From,
		Peers: env.Peers,
	}
	switch env.Type {
	case TypePing:
		msg.Payload = Ping{}
	case TypePeersRequest:
		msg.Payload = PeersRequest{}
	case TypeSigRequest:
		var req SigRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return nil, fmt.Errorf("can't decode %s data: %v: %w", env.Type, err, ErrTransportFailure)
		}
		msg.Payload = req
	case TypeSigPass:
		var pass SigPass
		if err := json.Unmarshal(env.Data, &pass); err != nil {
			return nil, fmt.Errorf("can't decode %s data: %v: %w", env.Type, err, ErrTransportFailure)
		}
		msg.Payload = pass
	default:
		return nil, fmt.Errorf("unknown message type %q: %w", env.Type, ErrTransportFailure)
	}
	return msg, nil
}

// ID identifies the payload regardless of the envelope, so relayed copies of
// one request share it.
func (m *Message) ID() common.Hash {
	switch p := m.Payload.(type) {
	case SigRequest:
		return requestID(p.Type(), &p, nil)
	case SigPass:
		return requestID(p.Type(), &p.SigRequest, p.Sig)
	default:
		return crypto.Keccak256Hash([]byte(m.Payload.Type()), []byte(m.From))
	}
}

func requestID(t MessageType, req *SigRequest, sig []byte) common.Hash {
	return crypto.Keccak256Hash(
		[]byte(t),
		req.Chain[:],
		[]byte(strconv.FormatUint(req.Start, 10)+"-"+strconv.FormatUint(req.End, 10)),
		req.Root[:],
		sig,
	)
}

// Contacted returns the set of peers already reached with the message.
func (m *Message) Contacted() map[string]bool {
	res := make(map[string]bool, len(m.Peers)+1)
	for _, p := range m.Peers {
		res[p] = true
	}
	return res
}
