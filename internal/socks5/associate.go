package socks5

import (
	"context"
	"io"
)

// Associate is a UDP ASSOCIATE request waiting for its reply. Address is the
// address the client expects to send datagrams from; it may be unspecified.
type Associate struct {
	transport
	addr Address
}

func (*Associate) Kind() CommandKind { return CommandAssociate }

func (a *Associate) Address() Address { return a.addr }

func (*Associate) command() {}

// Reply sends the ASSOCIATE reply with the address of the UDP relay.
func (a *Associate) Reply(ctx context.Context, code ReplyCode, relayAddr Address) (*AssociateReady, error) {
	conn, err := a.reply(ctx, "associate reply", code, relayAddr)
	if err != nil {
		return nil, err
	}
	return &AssociateReady{stream{transport{conn: conn}}}, nil
}

// AssociateReady is a replied ASSOCIATE. The association lasts as long as
// the TCP connection; relaying datagrams happens elsewhere.
type AssociateReady struct {
	stream
}

// WaitClose blocks until the client closes the connection or ctx is done.
// Any bytes the client sends are discarded. A clean close returns nil.
func (a *AssociateReady) WaitClose(ctx context.Context) error {
	if a.conn == nil {
		return ErrStageConsumed
	}
	return exchange(ctx, a.conn, func() error {
		_, err := io.Copy(io.Discard, a.conn)
		return err
	})
}
