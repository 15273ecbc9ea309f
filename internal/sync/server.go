package sync

import (
	"bufio"
	"errors"
	"net"
	"sync"

	"go.uber.org/zap"
)

// Server accepts line-oriented TCP subscribers and registers them with the hub.
type Server struct {
	Addr string
	Hub  *Hub
	Log  *zap.Logger

	mu     sync.Mutex
	ln     net.Listener
	closed bool
	wg     sync.WaitGroup
}

func NewServer(addr string, hub *Hub, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{Addr: addr, Hub: hub, Log: log}
}

// Listen binds the address without serving yet.
func (s *Server) Listen() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	return ln.Addr(), nil
}

// Run serves until Close. It returns nil after a clean Close.
func (s *Server) Run() error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		if _, err := s.Listen(); err != nil {
			return err
		}
		s.mu.Lock()
		ln = s.ln
		s.mu.Unlock()
	}
	s.Log.Info("tcp sync listening", zap.Stringer("addr", ln.Addr()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			s.Log.Warn("tcp accept failed", zap.Error(err))
			continue
		}

		// welcome goes out before broadcasts can reach conn
		s.Hub.Welcome(conn)
		s.Hub.Add(conn)
		s.Log.Info("tcp client connected", zap.Stringer("remote", conn.RemoteAddr()))

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			defer func() {
				s.Hub.Remove(c)
				s.Log.Info("tcp client disconnected", zap.Stringer("remote", c.RemoteAddr()))
			}()

			// subscribers never send anything meaningful; drain until EOF
			sc := bufio.NewScanner(c)
			for sc.Scan() {
			}
		}(conn)
	}
}

// Close stops accepting and disconnects all subscribers.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	ln := s.ln
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	s.Hub.CloseAll()
	return err
}
