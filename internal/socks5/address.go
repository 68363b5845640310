package socks5

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"

	txsocks5 "github.com/txthinking/socks5"
)

// ErrDomainTooLong is returned when a domain name does not fit the one-byte
// length prefix of the SOCKS5 address encoding.
var ErrDomainTooLong = errors.New("domain name longer than 255 bytes")

// Address is a SOCKS5 address: either a domain name or an IP, plus a port.
type Address struct {
	// Domain is set for domain-name addresses; IP is invalid in that case.
	Domain string
	IP     netip.Addr
	Port   uint16
}

// DomainAddress returns the address domain:port.
func DomainAddress(domain string, port uint16) Address {
	return Address{Domain: domain, Port: port}
}

// SocketAddress returns the address of a resolved IP and port. An
// IPv4-mapped IPv6 address is unmapped, since net reports IPv4 endpoints in
// that form.
func SocketAddress(ap netip.AddrPort) Address {
	return Address{IP: ap.Addr().Unmap(), Port: ap.Port()}
}

// UnspecifiedAddress returns 0.0.0.0:0, the conventional bound address for
// failure replies.
func UnspecifiedAddress() Address {
	return Address{IP: netip.IPv4Unspecified()}
}

// AddressFromNetAddr converts a TCP or UDP address. Anything else yields
// UnspecifiedAddress.
func AddressFromNetAddr(a net.Addr) Address {
	switch a := a.(type) {
	case *net.TCPAddr:
		return SocketAddress(a.AddrPort())
	case *net.UDPAddr:
		return SocketAddress(a.AddrPort())
	}
	return UnspecifiedAddress()
}

// IsDomain reports whether a names a host rather than an IP.
func (a Address) IsDomain() bool {
	return a.Domain != ""
}

// String returns host:port, suitable for net.Dial.
func (a Address) String() string {
	host := a.Domain
	if !a.IsDomain() {
		ip := a.IP
		if !ip.IsValid() {
			ip = netip.IPv4Unspecified()
		}
		host = ip.String()
	}
	return net.JoinHostPort(host, strconv.Itoa(int(a.Port)))
}

// encode returns the ATYP, DST.ADDR and DST.PORT fields in the form expected
// by the txsocks5 message constructors, which add the domain length prefix
// themselves.
func (a Address) encode() (atyp byte, host, port []byte, err error) {
	port = []byte{byte(a.Port >> 8), byte(a.Port)}

	switch {
	case a.IsDomain():
		if len(a.Domain) > 255 {
			return 0, nil, nil, fmt.Errorf("encode %q: %w", a.Domain, ErrDomainTooLong)
		}
		return txsocks5.ATYPDomain, []byte(a.Domain), port, nil
	case a.IP.Is6():
		b := a.IP.As16()
		return txsocks5.ATYPIPv6, b[:], port, nil
	default:
		ip := a.IP
		if !ip.IsValid() {
			ip = netip.IPv4Unspecified()
		}
		b := ip.As4()
		return txsocks5.ATYPIPv4, b[:], port, nil
	}
}

// decodeAddress converts the raw address fields of a parsed request or
// reply. The codec keeps the length prefix in front of a domain name. The
// address type on the wire is preserved, so an IPv4-mapped IPv6 address
// stays IPv6.
func decodeAddress(atyp byte, host, port []byte) (Address, error) {
	if len(port) != 2 {
		return Address{}, fmt.Errorf("decode port: %w", ErrMalformed)
	}
	p := binary.BigEndian.Uint16(port)

	switch atyp {
	case txsocks5.ATYPDomain:
		if len(host) < 2 || int(host[0]) != len(host)-1 {
			return Address{}, fmt.Errorf("decode domain: %w", ErrMalformed)
		}
		return DomainAddress(string(host[1:]), p), nil
	case txsocks5.ATYPIPv4, txsocks5.ATYPIPv6:
		ip, ok := netip.AddrFromSlice(host)
		if !ok || (atyp == txsocks5.ATYPIPv4) != ip.Is4() {
			return Address{}, fmt.Errorf("decode ip %x: %w", host, ErrMalformed)
		}
		return Address{IP: ip, Port: p}, nil
	}
	return Address{}, fmt.Errorf("decode address type %#x: %w", atyp, ErrMalformed)
}
