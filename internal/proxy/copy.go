package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/die-net/socks5d/internal/socks5"
)

// CopyBidirectional relays between left and right until both directions are
// done, and returns the byte counts sent to each side. EOF in one direction
// shuts the write side of the other connection so its peer sees EOF too.
//
// Both connections are closed on return. Canceling ctx aborts the relay.
func CopyBidirectional(ctx context.Context, left, right net.Conn) (toRight, toLeft int64, err error) {
	g, gctx := errgroup.WithContext(ctx)

	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			_ = left.Close()
			_ = right.Close()
		})
	}
	defer closeBoth()

	// Any failure or cancellation closes both sides to unblock the copies.
	stop := context.AfterFunc(gctx, closeBoth)
	defer stop()

	g.Go(func() error {
		var err error
		toRight, err = copyHalf(right, left)
		return err
	})

	g.Go(func() error {
		var err error
		toLeft, err = copyHalf(left, right)
		return err
	})

	err = g.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		err = ctxErr
	}
	return toRight, toLeft, err
}

func copyHalf(dst, src net.Conn) (int64, error) {
	buf := copyBuffers.Get()
	defer copyBuffers.Put(buf)

	n, err := io.CopyBuffer(dst, src, *buf)
	if err != nil {
		return n, err
	}
	return n, shutWrite(dst)
}

// shutWrite half-closes c, falling back to a full close for connections that
// cannot half-close.
func shutWrite(c net.Conn) error {
	err := socks5.CloseWrite(c)
	if errors.Is(err, errors.ErrUnsupported) {
		return c.Close()
	}
	return err
}
