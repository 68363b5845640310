package socks5

import (
	"fmt"
	"net"
)

// Server accepts connections from a listener and wraps each one for
// negotiation with a shared Authenticator.
type Server[O any] struct {
	ln   net.Listener
	auth Authenticator[O]
}

// NewServer returns a Server accepting on ln.
func NewServer[O any](ln net.Listener, auth Authenticator[O]) *Server[O] {
	return &Server[O]{ln: ln, auth: auth}
}

// Accept waits for the next connection. It returns the connection's remote
// address alongside the stage for convenience.
func (s *Server[O]) Accept() (*IncomingConnection[O], net.Addr, error) {
	conn, err := s.ln.Accept()
	if err != nil {
		return nil, nil, fmt.Errorf("accept: %w", err)
	}
	return NewIncomingConnection(conn, s.auth), conn.RemoteAddr(), nil
}

// Addr returns the listener's address.
func (s *Server[O]) Addr() net.Addr {
	return s.ln.Addr()
}

// Close closes the listener. Connections already accepted are unaffected.
func (s *Server[O]) Close() error {
	return s.ln.Close()
}
