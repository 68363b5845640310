//go:build !unix

package socks5

import (
	"errors"
	"syscall"
	"time"
)

func getLinger(syscall.RawConn) (time.Duration, error) {
	return 0, errors.ErrUnsupported
}

func getNoDelay(syscall.RawConn) (bool, error) {
	return false, errors.ErrUnsupported
}

func getTTL(syscall.RawConn, bool) (int, error) {
	return 0, errors.ErrUnsupported
}

func setTTL(syscall.RawConn, bool, int) error {
	return errors.ErrUnsupported
}
