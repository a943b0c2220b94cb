package p2p

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omni/bridge-node/logging"
)

const (
	sendQueueSize = 64
	writeTimeout  = 10 * time.Second
)

type LinkState int32

const (
	StateConnecting LinkState = iota
	StateConnected
	StateClosed
)

func (s LinkState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "closed"
	}
}

// Link is an outbound connection to a peer. Frames are written by a dedicated
// goroutine, Send never blocks.
type Link struct {
	addr        string
	dialTimeout time.Duration
	logger      logging.Logger

	state     atomic.Int32
	mu        sync.Mutex
	conn      net.Conn
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewLink(addr string, dialTimeout time.Duration, logger logging.Logger) *Link {
	return &Link{
		addr:        addr,
		dialTimeout: dialTimeout,
		logger:      logger.WithField("peer", addr),
		out:         make(chan []byte, sendQueueSize),
		done:        make(chan struct{}),
	}
}

func (l *Link) Addr() string {
	return l.addr
}

func (l *Link) State() LinkState {
	return LinkState(l.state.Load())
}

// Connect dials the peer, the link is closed if the dial fails.
func (l *Link) Connect(ctx context.Context) error {
	if l.State() != StateConnecting {
		return fmt.Errorf("can't connect link in %s state: %w", l.State(), ErrTransportFailure)
	}
	dialer := net.Dialer{Timeout: l.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", l.addr)
	if err != nil {
		l.Disconnect()
		return fmt.Errorf("can't dial %s: %v: %w", l.addr, err, ErrTransportFailure)
	}

	l.mu.Lock()
	if !l.state.CompareAndSwap(int32(StateConnecting), int32(StateConnected)) {
		l.mu.Unlock()
		conn.Close()
		return fmt.Errorf("link to %s was closed while dialing: %w", l.addr, ErrTransportFailure)
	}
	l.conn = conn
	l.mu.Unlock()

	go l.writeLoop(conn)
	go l.watch(conn)
	l.logger.Info("connected to peer")
	return nil
}

func (l *Link) writeLoop(conn net.Conn) {
	for {
		select {
		case frame := <-l.out:
			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				l.logger.WithError(err).Warn("can't set write deadline")
			}
			if _, err := conn.Write(frame); err != nil {
				l.logger.WithError(err).Warn("can't write to peer, disconnecting")
				l.Disconnect()
				return
			}
			MessagesSent.Inc()
		case <-l.done:
			return
		}
	}
}

// watch detects the remote side closing the connection, peers never write to inbound connections.
func (l *Link) watch(conn net.Conn) {
	_, _ = io.Copy(io.Discard, conn)
	l.Disconnect()
}

// Send enqueues a frame. Frames are dropped when the link is closed or its queue is full.
func (l *Link) Send(frame []byte) bool {
	if l.State() == StateClosed {
		return false
	}
	select {
	case l.out <- frame:
		return true
	default:
		MessagesDropped.Inc()
		l.logger.Warn("send queue is full, dropping message")
		return false
	}
}

func (l *Link) Disconnect() {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.state.Store(int32(StateClosed))
		close(l.done)
		if l.conn != nil {
			l.conn.Close()
			l.logger.Info("disconnected from peer")
		}
	})
}
