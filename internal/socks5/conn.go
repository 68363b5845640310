package socks5

import (
	"context"
	"fmt"
	"net"
	"slices"
	"time"

	txsocks5 "github.com/txthinking/socks5"
)

// IncomingConnection is a freshly accepted connection that has not yet
// negotiated an authentication method. It may not be a SOCKS5 client at all.
type IncomingConnection[O any] struct {
	transport
	auth Authenticator[O]
}

// NewIncomingConnection wraps conn for negotiation with auth.
func NewIncomingConnection[O any](conn net.Conn, auth Authenticator[O]) *IncomingConnection[O] {
	return &IncomingConnection[O]{transport: transport{conn: conn}, auth: auth}
}

// Authenticate performs the method negotiation and runs the authenticator.
//
// If the client does not offer the authenticator's method, the client is
// sent MethodNoAcceptable and a *NoAcceptableMethodError is returned once
// that reply has been written. On any failure the connection is returned in
// the *Error and is left open. If ctx ends the call, the connection's
// deadline is left cleared (see the package documentation).
func (c *IncomingConnection[O]) Authenticate(ctx context.Context) (*Authenticated, O, error) {
	var zero O

	conn, err := c.take()
	if err != nil {
		return nil, zero, &Error{Op: "handshake", Kind: KindProtocol, Err: err}
	}

	chosen := c.auth.Method()
	var offered []Method
	err = exchange(ctx, conn, func() error {
		neg, err := txsocks5.NewNegotiationRequestFrom(conn)
		if err != nil {
			return fmt.Errorf("negotiation request: %w", err)
		}
		offered = toMethods(neg.Methods)

		reply := chosen
		if !slices.Contains(offered, chosen) {
			reply = MethodNoAcceptable
		}
		if _, err := txsocks5.NewNegotiationReply(byte(reply)).WriteTo(conn); err != nil {
			return fmt.Errorf("negotiation reply: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, zero, newError("handshake", conn, err)
	}

	if !slices.Contains(offered, chosen) {
		return nil, zero, newError("handshake", conn, &NoAcceptableMethodError{
			Version: txsocks5.Ver,
			Chosen:  chosen,
			Methods: offered,
		})
	}

	out, err := c.auth.Execute(ctx, conn)
	if err != nil {
		return nil, zero, newError("authenticate", conn, err)
	}
	return &Authenticated{transport: transport{conn: conn}}, out, nil
}

// Authenticated is a connection that completed authentication and is about
// to send its request.
type Authenticated struct {
	transport
}

// WaitRequest reads the client's request and returns the matching command
// stage. Nothing is written; replying is up to the command stage.
//
// A CMD outside CONNECT, BIND and ASSOCIATE yields an
// *UnsupportedCommandError so the caller can answer with
// ReplyCommandNotSupported on the returned connection.
//
// As with Authenticate, a canceled ctx leaves the deadline cleared.
func (a *Authenticated) WaitRequest(ctx context.Context) (Command, error) {
	conn, err := a.take()
	if err != nil {
		return nil, &Error{Op: "request", Kind: KindProtocol, Err: err}
	}

	var req *txsocks5.Request
	err = exchange(ctx, conn, func() (err error) {
		req, err = txsocks5.NewRequestFrom(conn)
		if err != nil {
			return fmt.Errorf("read request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, newError("request", conn, err)
	}

	addr, err := decodeAddress(req.Atyp, req.DstAddr, req.DstPort)
	if err != nil {
		return nil, newError("request", conn, err)
	}

	t := transport{conn: conn}
	switch CommandKind(req.Cmd) {
	case CommandConnect:
		return &Connect{transport: t, addr: addr}, nil
	case CommandBind:
		return &Bind{transport: t, addr: addr}, nil
	case CommandAssociate:
		return &Associate{transport: t, addr: addr}, nil
	default:
		return nil, newError("request", conn, &UnsupportedCommandError{Command: CommandKind(req.Cmd), Address: addr})
	}
}

// Command is the stage selected by a client's request: *Connect, *Bind or
// *Associate. Use a type switch to handle it.
type Command interface {
	// Kind returns the request's CMD field.
	Kind() CommandKind
	// Address returns the request's destination (DST.ADDR and DST.PORT).
	Address() Address
	// IntoConn hands back the raw connection without replying.
	IntoConn() net.Conn

	command()
}

// reply writes one reply and moves the connection out of t. On a write
// failure the connection is returned in the *Error. Every Reply method
// shares it, and so shares Authenticate's deadline handling.
func (t *transport) reply(ctx context.Context, op string, code ReplyCode, addr Address) (net.Conn, error) {
	conn, err := t.take()
	if err != nil {
		return nil, &Error{Op: op, Kind: KindProtocol, Err: err}
	}

	atyp, host, port, err := addr.encode()
	if err != nil {
		return nil, newError(op, conn, err)
	}

	err = exchange(ctx, conn, func() error {
		_, err := txsocks5.NewReply(byte(code), atyp, host, port).WriteTo(conn)
		return err
	})
	if err != nil {
		return nil, newError(op, conn, err)
	}
	return conn, nil
}

// stream is the duplex-stream side of a ready stage.
type stream struct {
	transport
}

func (s *stream) Read(p []byte) (int, error) {
	if s.conn == nil {
		return 0, ErrStageConsumed
	}
	return s.conn.Read(p)
}

func (s *stream) Write(p []byte) (int, error) {
	if s.conn == nil {
		return 0, ErrStageConsumed
	}
	return s.conn.Write(p)
}

// Close closes the underlying connection.
func (s *stream) Close() error {
	if s.conn == nil {
		return ErrStageConsumed
	}
	return s.conn.Close()
}

func (s *stream) SetDeadline(t time.Time) error {
	if s.conn == nil {
		return ErrStageConsumed
	}
	return s.conn.SetDeadline(t)
}

func (s *stream) SetReadDeadline(t time.Time) error {
	if s.conn == nil {
		return ErrStageConsumed
	}
	return s.conn.SetReadDeadline(t)
}

func (s *stream) SetWriteDeadline(t time.Time) error {
	if s.conn == nil {
		return ErrStageConsumed
	}
	return s.conn.SetWriteDeadline(t)
}
