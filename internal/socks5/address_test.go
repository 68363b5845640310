package socks5

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    Address
		wantStr string
		wantErr bool
	}{
		{in: "example.com:80", want: DomainAddress("example.com", 80), wantStr: "example.com:80"},
		{in: "10.1.2.3:1080", want: SocketAddress(netip.MustParseAddrPort("10.1.2.3:1080")), wantStr: "10.1.2.3:1080"},
		{in: "[::1]:443", want: SocketAddress(netip.MustParseAddrPort("[::1]:443")), wantStr: "[::1]:443"},
		{in: "[::ffff:10.0.0.1]:22", want: SocketAddress(netip.MustParseAddrPort("10.0.0.1:22")), wantStr: "10.0.0.1:22"},
		{in: "example.com", wantErr: true},
		{in: "example.com:70000", wantErr: true},
		{in: "example.com:http", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAddress(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantStr, got.String())
		})
	}
}

func TestAddressEncode(t *testing.T) {
	tests := []struct {
		name     string
		addr     Address
		wantAtyp byte
		wantHost []byte
		wantPort []byte
	}{
		{name: "ipv4", addr: SocketAddress(netip.MustParseAddrPort("1.2.3.4:258")), wantAtyp: 0x01, wantHost: []byte{1, 2, 3, 4}, wantPort: []byte{1, 2}},
		{name: "ipv4 mapped", addr: Address{IP: netip.MustParseAddr("::ffff:1.2.3.4"), Port: 80}, wantAtyp: 0x04, wantHost: netip.MustParseAddr("::ffff:1.2.3.4").AsSlice(), wantPort: []byte{0, 80}},
		{name: "ipv6", addr: SocketAddress(netip.MustParseAddrPort("[::1]:80")), wantAtyp: 0x04, wantHost: netip.IPv6Loopback().AsSlice(), wantPort: []byte{0, 80}},
		{name: "domain", addr: DomainAddress("a.b", 65535), wantAtyp: 0x03, wantHost: []byte("a.b"), wantPort: []byte{0xff, 0xff}},
		{name: "zero value", addr: Address{}, wantAtyp: 0x01, wantHost: []byte{0, 0, 0, 0}, wantPort: []byte{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			atyp, host, port, err := tt.addr.encode()
			require.NoError(t, err)
			assert.Equal(t, tt.wantAtyp, atyp)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPort, port)
		})
	}

	_, _, _, err := DomainAddress(strings.Repeat("x", 256), 1).encode()
	require.ErrorIs(t, err, ErrDomainTooLong)
	_, _, _, err = DomainAddress(strings.Repeat("x", 255), 1).encode()
	require.NoError(t, err)
}

func TestDecodeAddress(t *testing.T) {
	tests := []struct {
		name    string
		atyp    byte
		host    []byte
		port    []byte
		want    Address
		wantErr bool
	}{
		{name: "domain", atyp: 0x03, host: []byte("\x0bexample.com"), port: []byte{0, 80}, want: DomainAddress("example.com", 80)},
		{name: "domain with brackets", atyp: 0x03, host: []byte("\x05[::1]"), port: []byte{0x01, 0xbb}, want: DomainAddress("[::1]", 443)},
		{name: "ipv4", atyp: 0x01, host: []byte{10, 0, 0, 1}, port: []byte{0, 22}, want: SocketAddress(netip.MustParseAddrPort("10.0.0.1:22"))},
		{name: "ipv4 mapped stays ipv6", atyp: 0x04, host: netip.MustParseAddr("::ffff:10.0.0.1").AsSlice(), port: []byte{0, 22}, want: Address{IP: netip.MustParseAddr("::ffff:10.0.0.1"), Port: 22}},
		{name: "length prefix mismatch", atyp: 0x03, host: []byte("\x09abc"), port: []byte{0, 80}, wantErr: true},
		{name: "empty domain", atyp: 0x03, host: []byte{0}, port: []byte{0, 80}, wantErr: true},
		{name: "ipv6 type with ipv4 bytes", atyp: 0x04, host: []byte{1, 2, 3, 4}, port: []byte{0, 80}, wantErr: true},
		{name: "short port", atyp: 0x01, host: []byte{1, 2, 3, 4}, port: []byte{80}, wantErr: true},
		{name: "unknown type", atyp: 0x09, host: []byte{1}, port: []byte{0, 80}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeAddress(tt.atyp, tt.host, tt.port)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddressFromNetAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:9", AddressFromNetAddr(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9}).String())
	assert.Equal(t, "[::1]:53", AddressFromNetAddr(&net.UDPAddr{IP: net.IPv6loopback, Port: 53}).String())
	assert.Equal(t, UnspecifiedAddress(), AddressFromNetAddr(&net.UnixAddr{Name: "/tmp/sock", Net: "unix"}))
}

func TestReplyCodeFor(t *testing.T) {
	opErr := func(err error) error {
		return &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", err)}
	}

	tests := []struct {
		name string
		err  error
		want ReplyCode
	}{
		{name: "nil", err: nil, want: ReplySucceeded},
		{name: "refused", err: opErr(syscall.ECONNREFUSED), want: ReplyConnectionRefused},
		{name: "net unreachable", err: opErr(syscall.ENETUNREACH), want: ReplyNetworkUnreachable},
		{name: "host unreachable", err: opErr(syscall.EHOSTUNREACH), want: ReplyHostUnreachable},
		{name: "dns", err: &net.DNSError{Err: "no such host", Name: "x.invalid", IsNotFound: true}, want: ReplyHostUnreachable},
		{name: "context deadline", err: fmt.Errorf("dial: %w", context.DeadlineExceeded), want: ReplyTTLExpired},
		{name: "io deadline", err: &net.OpError{Op: "dial", Err: os.ErrDeadlineExceeded}, want: ReplyTTLExpired},
		{name: "other", err: errors.New("boom"), want: ReplyServerFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReplyCodeFor(tt.err))
		})
	}
}

func TestCodeStrings(t *testing.T) {
	assert.Equal(t, "no-auth", MethodNoAuth.String())
	assert.Equal(t, "method(0x80)", Method(0x80).String())
	assert.Equal(t, "associate", CommandAssociate.String())
	assert.Equal(t, "command(0x42)", CommandKind(0x42).String())
	assert.Equal(t, "reply(0x42)", ReplyCode(0x42).String())
}
