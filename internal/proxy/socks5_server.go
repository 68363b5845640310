package proxy

import (
	"context"
	"errors"
	"net"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/die-net/socks5d/internal/socks5"
)

// SOCKS5Server serves CONNECT requests through cfg.Dialer.
type SOCKS5Server struct {
	ctx     context.Context
	cfg     Config
	verbose bool
	sem     *semaphore.Weighted
}

// NewSOCKS5Server returns a server whose connections live no longer than ctx.
// With verbose set, per-connection failures are logged at info level instead
// of debug.
func NewSOCKS5Server(ctx context.Context, cfg Config, verbose bool) *SOCKS5Server {
	s := &SOCKS5Server{ctx: ctx, cfg: cfg, verbose: verbose}
	if cfg.MaxConns > 0 {
		s.sem = semaphore.NewWeighted(cfg.MaxConns)
	}
	return s
}

// Serve accepts connections on ln until it is closed. It returns nil if ln
// was closed because the server's context ended.
func (s *SOCKS5Server) Serve(ln net.Listener) error {
	if len(s.cfg.Users) == 0 {
		return serve(s, socks5.NewServer(ln, socks5.NoAuth{}))
	}
	auth := socks5.NewUserPassAuth(socks5.StaticCredentials(s.cfg.Users))
	return serve(s, socks5.NewServer(ln, auth))
}

func serve[O any](s *SOCKS5Server, srv *socks5.Server[O]) error {
	for {
		if s.sem != nil {
			if err := s.sem.Acquire(s.ctx, 1); err != nil {
				return nil
			}
		}

		ic, remote, err := srv.Accept()
		if err != nil {
			s.release()
			if s.ctx.Err() != nil && errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		go func() {
			defer s.release()
			handle(s, ic, remote)
		}()
	}
}

func (s *SOCKS5Server) release() {
	if s.sem != nil {
		s.sem.Release(1)
	}
}

// negotiation returns the context for one protocol exchange with a client.
func (s *SOCKS5Server) negotiation() (context.Context, context.CancelFunc) {
	if s.cfg.NegotiationTimeout > 0 {
		return context.WithTimeout(s.ctx, s.cfg.NegotiationTimeout)
	}
	return context.WithCancel(s.ctx)
}

func handle[O any](s *SOCKS5Server, ic *socks5.IncomingConnection[O], remote net.Addr) {
	log := s.cfg.Logger.With().Stringer("client", remote).Logger()

	ctx, cancel := s.negotiation()
	a, out, err := ic.Authenticate(ctx)
	if err != nil {
		cancel()
		s.fail(log, err)
		return
	}
	if user, ok := any(out).(string); ok {
		log = log.With().Str("user", user).Logger()
	}

	cmd, err := a.WaitRequest(ctx)
	cancel()
	if err != nil {
		var uc *socks5.UnsupportedCommandError
		if errors.As(err, &uc) {
			s.refuse(log, socks5.ConnOf(err), uc.Command, uc.Address)
			return
		}
		s.fail(log, err)
		return
	}

	switch c := cmd.(type) {
	case *socks5.Connect:
		s.connect(log, c)
	case *socks5.Bind:
		s.logRefused(log, c.Kind(), c.Address())
		ctx, cancel := s.negotiation()
		defer cancel()
		listening, err := c.Reply(ctx, socks5.ReplyCommandNotSupported, socks5.UnspecifiedAddress())
		if err != nil {
			s.fail(log, err)
			return
		}
		closeReplied(log, listening.IntoConn())
	case *socks5.Associate:
		s.logRefused(log, c.Kind(), c.Address())
		ctx, cancel := s.negotiation()
		defer cancel()
		ready, err := c.Reply(ctx, socks5.ReplyCommandNotSupported, socks5.UnspecifiedAddress())
		if err != nil {
			s.fail(log, err)
			return
		}
		if err := ready.CloseWrite(); err != nil {
			log.Debug().Err(err).Msg("half-close")
		}
		// Drain until the client hangs up so closing does not reset it.
		if err := ready.WaitClose(ctx); err != nil {
			log.Debug().Err(err).Msg("wait close")
		}
		_ = ready.Close()
	}
}

func (s *SOCKS5Server) connect(log zerolog.Logger, c *socks5.Connect) {
	dst := c.Address()
	log = log.With().Stringer("dst", dst).Logger()

	up, err := s.cfg.Dialer.DialContext(s.ctx, "tcp", dst.String())
	if err != nil {
		code := socks5.ReplyCodeFor(err)
		s.logf(log, err).Stringer("reply", code).Msg("dial failed")
		s.replyAndClose(log, c, code)
		return
	}

	ctx, cancel := s.negotiation()
	ready, err := c.Reply(ctx, socks5.ReplySucceeded, socks5.AddressFromNetAddr(up.LocalAddr()))
	cancel()
	if err != nil {
		_ = up.Close()
		s.fail(log, err)
		return
	}

	toUp, toClient, err := CopyBidirectional(s.ctx, ready.IntoConn(), up)
	ev := log.Debug()
	if err != nil {
		ev = s.logf(log, err)
	}
	ev.Int64("sent", toUp).Int64("received", toClient).Msg("connection closed")
}

// replyAndClose answers a request with a failure code and closes the client
// connection after a best-effort half-close.
func (s *SOCKS5Server) replyAndClose(log zerolog.Logger, c *socks5.Connect, code socks5.ReplyCode) {
	ctx, cancel := s.negotiation()
	defer cancel()

	ready, err := c.Reply(ctx, code, socks5.UnspecifiedAddress())
	if err != nil {
		s.fail(log, err)
		return
	}
	closeReplied(log, ready.IntoConn())
}

// closeReplied closes a client connection whose final reply has been sent,
// half-closing it first so the reply is not lost to a reset.
func closeReplied(log zerolog.Logger, conn net.Conn) {
	if err := socks5.CloseWrite(conn); err != nil {
		log.Debug().Err(err).Msg("half-close")
	}
	_ = conn.Close()
}

// refuse answers a request with an unknown command with "command not
// supported" and closes the connection. No stage exists for such a request,
// so the reply is written directly.
func (s *SOCKS5Server) refuse(log zerolog.Logger, conn net.Conn, cmd socks5.CommandKind, addr socks5.Address) {
	if conn == nil {
		return
	}
	defer conn.Close()

	s.logRefused(log, cmd, addr)

	ctx, cancel := s.negotiation()
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	if err := socks5.WriteReply(conn, socks5.ReplyCommandNotSupported, socks5.UnspecifiedAddress()); err != nil {
		log.Debug().Err(err).Msg("write reply")
		return
	}
	if err := socks5.CloseWrite(conn); err != nil {
		log.Debug().Err(err).Msg("half-close")
	}
}

func (s *SOCKS5Server) logRefused(log zerolog.Logger, cmd socks5.CommandKind, addr socks5.Address) {
	s.logf(log, nil).Stringer("command", cmd).Stringer("dst", addr).Msg("command not supported")
}

// fail logs a stage error and closes the connection it carries.
func (s *SOCKS5Server) fail(log zerolog.Logger, err error) {
	kind := "io"
	if socks5.IsProtocol(err) {
		kind = "protocol"
	}
	s.logf(log, err).Str("kind", kind).Msg("socks5 negotiation failed")

	if conn := socks5.ConnOf(err); conn != nil {
		_ = conn.Close()
	}
}

// logf starts a per-connection log event at the configured verbosity.
func (s *SOCKS5Server) logf(log zerolog.Logger, err error) *zerolog.Event {
	level := zerolog.DebugLevel
	if s.verbose {
		level = zerolog.InfoLevel
	}
	ev := log.WithLevel(level)
	if err != nil {
		ev = ev.Err(err)
	}
	return ev
}
