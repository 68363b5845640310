package proxy

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/die-net/socks5d/internal/socks5"
	"github.com/die-net/socks5d/internal/testutil"
)

func TestCopyBidirectionalHalfClose(t *testing.T) {
	client, left := testutil.TCPPair(t)
	right, server := testutil.TCPPair(t)

	type result struct {
		toRight, toLeft int64
		err             error
	}
	done := make(chan result, 1)
	go func() {
		toRight, toLeft, err := CopyBidirectional(context.Background(), left, right)
		done <- result{toRight, toLeft, err}
	}()

	if _, err := client.Write([]byte("request")); err != nil {
		t.Fatal(err)
	}
	if err := socks5.CloseWrite(client); err != nil {
		t.Fatal(err)
	}

	// The server sees the request followed by EOF and can still answer.
	b, err := io.ReadAll(server)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "request" {
		t.Fatalf("server read %q", b)
	}
	if _, err := server.Write([]byte("response!")); err != nil {
		t.Fatal(err)
	}
	if err := server.Close(); err != nil {
		t.Fatal(err)
	}

	b, err = io.ReadAll(client)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "response!" {
		t.Fatalf("client read %q", b)
	}

	res := <-done
	if res.err != nil {
		t.Fatal(res.err)
	}
	if res.toRight != 7 || res.toLeft != 9 {
		t.Fatalf("counts %d/%d, want 7/9", res.toRight, res.toLeft)
	}
}

func TestCopyBidirectionalCancel(t *testing.T) {
	_, left := testutil.TCPPair(t)
	right, _ := testutil.TCPPair(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := CopyBidirectional(ctx, left, right)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop after cancel")
	}
}
