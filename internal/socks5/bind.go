package socks5

import (
	"context"
)

// Bind is a BIND request waiting for its first reply.
//
// BIND takes two replies: the first announces the address the server listens
// on for the incoming peer, the second announces the peer that connected.
// Listening and accepting are up to the caller.
type Bind struct {
	transport
	addr Address
}

func (*Bind) Kind() CommandKind { return CommandBind }

// Address returns the peer the client expects to connect in.
func (b *Bind) Address() Address { return b.addr }

func (*Bind) command() {}

// Reply sends the first BIND reply with the listening address.
func (b *Bind) Reply(ctx context.Context, code ReplyCode, listenAddr Address) (*BindListening, error) {
	conn, err := b.reply(ctx, "bind reply", code, listenAddr)
	if err != nil {
		return nil, err
	}
	return &BindListening{transport{conn: conn}}, nil
}

// BindListening has sent its first reply and waits for the second.
type BindListening struct {
	transport
}

// Reply sends the second BIND reply with the address of the accepted peer.
func (b *BindListening) Reply(ctx context.Context, code ReplyCode, peerAddr Address) (*BindReady, error) {
	conn, err := b.reply(ctx, "bind second reply", code, peerAddr)
	if err != nil {
		return nil, err
	}
	return &BindReady{stream{transport{conn: conn}}}, nil
}

// BindReady has sent both replies and carries the relayed stream.
type BindReady struct {
	stream
}
