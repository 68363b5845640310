package socks5

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"

	txsocks5 "github.com/txthinking/socks5"
)

// Method is a SOCKS5 authentication method identifier.
type Method byte

const (
	MethodNoAuth   = Method(txsocks5.MethodNone)
	MethodGSSAPI   = Method(0x01)
	MethodUserPass = Method(txsocks5.MethodUsernamePassword)

	// RFC 1928: 0xFF indicates no acceptable methods.
	MethodNoAcceptable = Method(0xff)
)

func (m Method) String() string {
	switch m {
	case MethodNoAuth:
		return "no-auth"
	case MethodGSSAPI:
		return "gssapi"
	case MethodUserPass:
		return "username/password"
	case MethodNoAcceptable:
		return "no-acceptable-methods"
	default:
		return fmt.Sprintf("method(%#02x)", byte(m))
	}
}

// CommandKind is the CMD field of a SOCKS5 request.
type CommandKind byte

const (
	CommandConnect   = CommandKind(txsocks5.CmdConnect)
	CommandBind      = CommandKind(0x02)
	CommandAssociate = CommandKind(0x03)
)

func (c CommandKind) String() string {
	switch c {
	case CommandConnect:
		return "connect"
	case CommandBind:
		return "bind"
	case CommandAssociate:
		return "associate"
	default:
		return fmt.Sprintf("command(%#02x)", byte(c))
	}
}

// ReplyCode is the REP field of a SOCKS5 reply.
type ReplyCode byte

const (
	ReplySucceeded               = ReplyCode(txsocks5.RepSuccess)
	ReplyServerFailure           = ReplyCode(0x01)
	ReplyNotAllowed              = ReplyCode(0x02)
	ReplyNetworkUnreachable      = ReplyCode(0x03)
	ReplyHostUnreachable         = ReplyCode(txsocks5.RepHostUnreachable)
	ReplyConnectionRefused       = ReplyCode(txsocks5.RepConnectionRefused)
	ReplyTTLExpired              = ReplyCode(0x06)
	ReplyCommandNotSupported     = ReplyCode(txsocks5.RepCommandNotSupported)
	ReplyAddressTypeNotSupported = ReplyCode(0x08)
)

var replyNames = [...]string{
	"succeeded",
	"general server failure",
	"connection not allowed by ruleset",
	"network unreachable",
	"host unreachable",
	"connection refused",
	"TTL expired",
	"command not supported",
	"address type not supported",
}

func (r ReplyCode) String() string {
	if int(r) < len(replyNames) {
		return replyNames[r]
	}
	return fmt.Sprintf("reply(%#02x)", byte(r))
}

// WriteReply writes a single SOCKS5 reply to conn.
//
// It is meant for callers holding a raw connection after a failed stage, for
// example to answer an unsupported command before closing.
func WriteReply(conn net.Conn, code ReplyCode, addr Address) error {
	atyp, host, port, err := addr.encode()
	if err != nil {
		return err
	}
	if _, err := txsocks5.NewReply(byte(code), atyp, host, port).WriteTo(conn); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}

// ReplyCodeFor picks the reply code that best describes a failed outbound
// dial.
func ReplyCodeFor(err error) ReplyCode {
	switch {
	case err == nil:
		return ReplySucceeded
	case errors.Is(err, syscall.ECONNREFUSED):
		return ReplyConnectionRefused
	case errors.Is(err, syscall.ENETUNREACH):
		return ReplyNetworkUnreachable
	case errors.Is(err, syscall.EHOSTUNREACH):
		return ReplyHostUnreachable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return ReplyTTLExpired
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ReplyHostUnreachable
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReplyTTLExpired
	}
	return ReplyServerFailure
}
