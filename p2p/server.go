package p2p

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/omni/bridge-node/logging"
)

const maxFrameSize = 1 << 20

// Server accepts inbound peer connections and delivers decoded messages to the inbox.
// Inbound connections are read-only, replies travel over outbound links.
type Server struct {
	listener net.Listener
	inbox    chan<- *Message
	logger   logging.Logger

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

func Listen(addr string, inbox chan<- *Message, logger logging.Logger) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("can't listen on %s: %w", addr, err)
	}
	return &Server{
		listener: listener,
		inbox:    inbox,
		logger:   logger,
		conns:    make(map[net.Conn]struct{}),
		done:     make(chan struct{}),
	}, nil
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve runs the accept loop until ctx is cancelled or the server is closed.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	s.logger.WithField("addr", s.Addr().String()).Info("accepting peer connections")
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.WithError(err).Warn("can't accept connection")
			continue
		}
		if !s.track(conn) {
			conn.Close()
			return nil
		}
		go s.readLoop(ctx, conn)
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	InboundConnections.Inc()
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[conn]; ok {
		delete(s.conns, conn)
		InboundConnections.Dec()
	}
}

func (s *Server) readLoop(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	logger := s.logger.WithField("remote", conn.RemoteAddr().String())
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxFrameSize)
	for scanner.Scan() {
		frame := scanner.Bytes()
		if len(frame) == 0 {
			continue
		}
		msg, err := DecodeMessage(frame)
		if err != nil {
			logger.WithError(err).Warn("closing connection after malformed frame")
			return
		}
		MessagesReceived.WithLabelValues(string(msg.Payload.Type())).Inc()
		select {
		case s.inbox <- msg:
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
	if err := scanner.Err(); err != nil && !s.isClosed() {
		logger.WithError(err).Debug("inbound connection failed")
	}
}

// Close stops accepting, closes inbound connections and waits for their read loops.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	err := s.listener.Close()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return err
}
