package proxy

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/die-net/socks5d/internal/dialer"
)

type Config struct {
	// NegotiationTimeout bounds each protocol exchange with a client.
	NegotiationTimeout time.Duration

	// MaxConns caps concurrently served clients. Zero means unlimited.
	MaxConns int64

	// Users enables username/password authentication when non-empty. Values
	// are plain passwords or bcrypt hashes.
	Users map[string]string

	Dialer dialer.Dialer

	Logger zerolog.Logger
}
