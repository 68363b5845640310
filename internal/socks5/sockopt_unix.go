//go:build unix

package socks5

import (
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

func getLinger(rc syscall.RawConn) (time.Duration, error) {
	var (
		l    *unix.Linger
		oerr error
	)
	if err := rc.Control(func(fd uintptr) {
		l, oerr = unix.GetsockoptLinger(int(fd), unix.SOL_SOCKET, unix.SO_LINGER)
	}); err != nil {
		return 0, err
	}
	if oerr != nil {
		return 0, oerr
	}
	if l.Onoff == 0 {
		return -1, nil
	}
	return time.Duration(l.Linger) * time.Second, nil
}

func getNoDelay(rc syscall.RawConn) (bool, error) {
	v, err := getsockoptInt(rc, unix.IPPROTO_TCP, unix.TCP_NODELAY)
	return v != 0, err
}

func getTTL(rc syscall.RawConn, ipv6 bool) (int, error) {
	if ipv6 {
		return getsockoptInt(rc, unix.IPPROTO_IPV6, unix.IPV6_UNICAST_HOPS)
	}
	return getsockoptInt(rc, unix.IPPROTO_IP, unix.IP_TTL)
}

func setTTL(rc syscall.RawConn, ipv6 bool, ttl int) error {
	level, opt := unix.IPPROTO_IP, unix.IP_TTL
	if ipv6 {
		level, opt = unix.IPPROTO_IPV6, unix.IPV6_UNICAST_HOPS
	}

	var oerr error
	if err := rc.Control(func(fd uintptr) {
		oerr = unix.SetsockoptInt(int(fd), level, opt, ttl)
	}); err != nil {
		return err
	}
	return oerr
}

func getsockoptInt(rc syscall.RawConn, level, opt int) (int, error) {
	var (
		v    int
		oerr error
	)
	if err := rc.Control(func(fd uintptr) {
		v, oerr = unix.GetsockoptInt(int(fd), level, opt)
	}); err != nil {
		return 0, err
	}
	return v, oerr
}
