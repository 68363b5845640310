package socks5

import (
	"context"
	"net"
)

var (
	_ net.Conn = (*ConnectReady)(nil)
	_ net.Conn = (*BindReady)(nil)
	_ net.Conn = (*AssociateReady)(nil)
)

// Connect is a CONNECT request waiting for its reply.
//
// The caller normally dials Address first and then calls Reply with
// ReplySucceeded and the outbound connection's local address, or with the
// code describing the dial failure (see ReplyCodeFor).
type Connect struct {
	transport
	addr Address
}

func (*Connect) Kind() CommandKind { return CommandConnect }

// Address returns the destination the client asked to connect to.
func (c *Connect) Address() Address { return c.addr }

func (*Connect) command() {}

// Reply sends the CONNECT reply. On success the connection is ready to relay
// data; on a write failure the connection is returned in the *Error.
func (c *Connect) Reply(ctx context.Context, code ReplyCode, addr Address) (*ConnectReady, error) {
	conn, err := c.reply(ctx, "connect reply", code, addr)
	if err != nil {
		return nil, err
	}
	return &ConnectReady{stream{transport{conn: conn}}}, nil
}

// ConnectReady is a replied CONNECT. It is a plain net.Conn to the client;
// IntoConn returns the underlying connection for relays that want it bare.
type ConnectReady struct {
	stream
}
