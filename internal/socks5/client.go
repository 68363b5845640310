package socks5

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"

	txsocks5 "github.com/txthinking/socks5"
)

// Auth configures optional username/password authentication for the client
// side of a negotiation.
type Auth struct {
	Username string
	Password string
}

// ErrReplyFailed is returned by ClientDial when the server answers CONNECT
// with anything but ReplySucceeded.
var ErrReplyFailed = errors.New("request rejected")

// ClientDial negotiates on conn and issues a CONNECT to address (host:port).
func ClientDial(conn net.Conn, auth Auth, address string) error {
	addr, err := ParseAddress(address)
	if err != nil {
		return err
	}
	if err := ClientNegotiate(conn, auth); err != nil {
		return err
	}

	code, _, err := ClientRequest(conn, CommandConnect, addr)
	if err != nil {
		return err
	}
	if code != ReplySucceeded {
		return fmt.Errorf("connect %s: %w: %s", address, ErrReplyFailed, code)
	}
	return nil
}

// ClientNegotiate runs the client side of method negotiation, offering
// username/password only when auth has a username.
func ClientNegotiate(conn net.Conn, auth Auth) error {
	methods := []byte{byte(MethodNoAuth)}
	if auth.Username != "" {
		methods = append(methods, byte(MethodUserPass))
	}

	if _, err := txsocks5.NewNegotiationRequest(methods).WriteTo(conn); err != nil {
		return fmt.Errorf("write negotiation: %w", err)
	}

	neg, err := txsocks5.NewNegotiationReplyFrom(conn)
	if err != nil {
		return fmt.Errorf("read negotiation: %w", err)
	}

	switch Method(neg.Method) {
	case MethodNoAuth:
		return nil
	case MethodUserPass:
		if auth.Username == "" {
			return errors.New("server requires username/password")
		}

		if _, err := txsocks5.NewUserPassNegotiationRequest([]byte(auth.Username), []byte(auth.Password)).WriteTo(conn); err != nil {
			return fmt.Errorf("write userpass: %w", err)
		}
		rep, err := txsocks5.NewUserPassNegotiationReplyFrom(conn)
		if err != nil {
			return fmt.Errorf("read userpass: %w", err)
		}
		if rep.Status != txsocks5.UserPassStatusSuccess {
			return ErrAuthFailed
		}
		return nil
	default:
		return &NoAcceptableMethodError{Version: neg.Ver, Chosen: Method(neg.Method), Methods: toMethods(methods)}
	}
}

// ClientRequest sends one request and reads the server's reply.
func ClientRequest(conn net.Conn, cmd CommandKind, addr Address) (ReplyCode, Address, error) {
	atyp, host, port, err := addr.encode()
	if err != nil {
		return 0, Address{}, err
	}
	if _, err := txsocks5.NewRequest(byte(cmd), atyp, host, port).WriteTo(conn); err != nil {
		return 0, Address{}, fmt.Errorf("write request: %w", err)
	}
	return ReadReply(conn)
}

// ReadReply reads one reply, such as the second reply of a BIND.
func ReadReply(conn net.Conn) (ReplyCode, Address, error) {
	rep, err := txsocks5.NewReplyFrom(conn)
	if err != nil {
		return 0, Address{}, fmt.Errorf("read reply: %w", normalize(err))
	}
	bound, err := decodeAddress(rep.Atyp, rep.BndAddr, rep.BndPort)
	if err != nil {
		return 0, Address{}, err
	}
	return ReplyCode(rep.Rep), bound, nil
}

// ParseAddress parses host:port into an Address. Hosts that are not IP
// literals become domain addresses. IPv4-mapped IPv6 literals are unmapped,
// as with SocketAddress.
func ParseAddress(s string) (Address, error) {
	host, p, err := net.SplitHostPort(s)
	if err != nil {
		return Address{}, fmt.Errorf("parse address %q: %w", s, err)
	}
	port, err := strconv.ParseUint(p, 10, 16)
	if err != nil {
		return Address{}, fmt.Errorf("parse port %q: %w", p, err)
	}
	if ip, err := netip.ParseAddr(host); err == nil {
		return Address{IP: ip.Unmap(), Port: uint16(port)}, nil
	}
	return DomainAddress(host, uint16(port)), nil
}

func toMethods(b []byte) []Method {
	out := make([]Method, len(b))
	for i, m := range b {
		out[i] = Method(m)
	}
	return out
}
