package socks5

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"
)

// transport is the connection slot shared by every stage. The socket option
// passthroughs live here so each stage exposes the same surface.
type transport struct {
	conn net.Conn
}

// take moves the connection out of the stage.
func (t *transport) take() (net.Conn, error) {
	if t.conn == nil {
		return nil, ErrStageConsumed
	}
	c := t.conn
	t.conn = nil
	return c, nil
}

// IntoConn hands back the raw connection. The stage is unusable afterwards.
func (t *transport) IntoConn() net.Conn {
	c, _ := t.take()
	return c
}

// LocalAddr returns the local address of the connection, or nil once the
// stage is consumed.
func (t *transport) LocalAddr() net.Addr {
	if t.conn == nil {
		return nil
	}
	return t.conn.LocalAddr()
}

// RemoteAddr returns the client's address, or nil once the stage is consumed.
func (t *transport) RemoteAddr() net.Addr {
	if t.conn == nil {
		return nil
	}
	return t.conn.RemoteAddr()
}

// CloseWrite shuts down the sending side of the connection so the peer reads
// EOF. The connection stays open for reading.
func (t *transport) CloseWrite() error {
	if t.conn == nil {
		return ErrStageConsumed
	}
	return CloseWrite(t.conn)
}

// Linger returns the SO_LINGER timeout. A negative duration means lingering
// is disabled.
func (t *transport) Linger() (time.Duration, error) {
	rc, err := t.rawConn()
	if err != nil {
		return 0, err
	}
	return getLinger(rc)
}

// SetLinger sets SO_LINGER with the semantics of net.TCPConn.SetLinger; d is
// truncated to whole seconds and a negative d disables lingering.
func (t *transport) SetLinger(d time.Duration) error {
	tc, err := t.tcpConn()
	if err != nil {
		return err
	}
	sec := -1
	if d >= 0 {
		sec = int(d / time.Second)
	}
	return tc.SetLinger(sec)
}

// NoDelay reports whether TCP_NODELAY is set.
func (t *transport) NoDelay() (bool, error) {
	rc, err := t.rawConn()
	if err != nil {
		return false, err
	}
	return getNoDelay(rc)
}

// SetNoDelay sets TCP_NODELAY.
func (t *transport) SetNoDelay(noDelay bool) error {
	tc, err := t.tcpConn()
	if err != nil {
		return err
	}
	return tc.SetNoDelay(noDelay)
}

// TTL returns the IP time-to-live (hop limit for IPv6) of outgoing packets.
func (t *transport) TTL() (int, error) {
	rc, err := t.rawConn()
	if err != nil {
		return 0, err
	}
	return getTTL(rc, t.isIPv6())
}

// SetTTL sets the IP time-to-live (hop limit for IPv6) of outgoing packets.
func (t *transport) SetTTL(ttl int) error {
	rc, err := t.rawConn()
	if err != nil {
		return err
	}
	return setTTL(rc, t.isIPv6(), ttl)
}

func (t *transport) tcpConn() (*net.TCPConn, error) {
	if t.conn == nil {
		return nil, ErrStageConsumed
	}
	tc, ok := t.conn.(*net.TCPConn)
	if !ok {
		return nil, errors.ErrUnsupported
	}
	return tc, nil
}

func (t *transport) rawConn() (syscall.RawConn, error) {
	if t.conn == nil {
		return nil, ErrStageConsumed
	}
	sc, ok := t.conn.(syscall.Conn)
	if !ok {
		return nil, errors.ErrUnsupported
	}
	return sc.SyscallConn()
}

func (t *transport) isIPv6() bool {
	a, ok := t.conn.LocalAddr().(*net.TCPAddr)
	return ok && a.IP.To4() == nil
}

// CloseWrite half-closes conn if its type supports it.
func CloseWrite(conn net.Conn) error {
	cw, ok := conn.(interface{ CloseWrite() error })
	if !ok {
		return errors.ErrUnsupported
	}
	return cw.CloseWrite()
}

// aLongTimeAgo is a deadline that has always already passed.
var aLongTimeAgo = time.Unix(1, 0)

// watch makes blocking I/O on conn fail once ctx is done. The returned
// function must be called when the I/O finishes; it reports ctx.Err() if
// the context fired, after clearing the deadline. Any deadline set before
// watch is lost in that case.
func watch(ctx context.Context, conn net.Conn) func() error {
	if ctx.Done() == nil {
		return func() error { return nil }
	}

	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(aLongTimeAgo)
		close(fired)
	})

	return func() error {
		if stop() {
			return nil
		}
		<-fired
		_ = conn.SetDeadline(time.Time{})
		return ctx.Err()
	}
}

// exchange runs one stage round trip under ctx. A context error takes
// precedence over the I/O error it caused.
func exchange(ctx context.Context, conn net.Conn, fn func() error) error {
	done := watch(ctx, conn)
	err := fn()
	if ctxErr := done(); ctxErr != nil && err != nil {
		return ctxErr
	}
	return err
}
