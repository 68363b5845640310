// Package config holds socks5d's settings: defaults, the optional INI file
// and the command-line flags that override it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	ini "gopkg.in/ini.v1"
)

// Server is the [server] section of the config file.
type Server struct {
	Listen             string        `ini:"listen"`
	Upstream           string        `ini:"upstream"`
	DialTimeout        time.Duration `ini:"dial_timeout"`
	NegotiationTimeout time.Duration `ini:"negotiation_timeout"`
	TCPKeepAlive       string        `ini:"tcp_keepalive"`
	MaxConns           int64         `ini:"max_conns"`
	DebugListen        string        `ini:"debug_listen"`
	LogLevel           string        `ini:"log_level"`
	Verbose            bool          `ini:"verbose"`
}

type Config struct {
	Server Server `ini:"server"`

	// Users comes from the [users] section, one "name = password" per key.
	// Passwords may be bcrypt hashes.
	Users map[string]string `ini:"-"`
}

// Default returns the settings used when neither a file nor a flag says
// otherwise.
func Default() Config {
	return Config{
		Server: Server{
			Upstream:           defaultUpstream(),
			DialTimeout:        10 * time.Second,
			NegotiationTimeout: 10 * time.Second,
			TCPKeepAlive:       "45:45:3",
			LogLevel:           "info",
		},
		Users: map[string]string{},
	}
}

// Load reads fileName into cfg. Keys missing from the file keep their
// current values; [users] entries are added to cfg.Users.
func Load(fileName string, cfg *Config) error {
	f, err := ini.Load(fileName)
	if err != nil {
		return fmt.Errorf("load %s: %w", fileName, err)
	}

	if err := f.StrictMapTo(cfg); err != nil {
		return fmt.Errorf("parse %s: %w", fileName, err)
	}

	if cfg.Users == nil {
		cfg.Users = map[string]string{}
	}
	for _, key := range f.Section("users").Keys() {
		if err := addUser(cfg.Users, key.Name(), key.String()); err != nil {
			return fmt.Errorf("parse %s: %w", fileName, err)
		}
	}

	return nil
}

// Validate reports settings that cannot be served.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return errors.New("no listener configured (set --socks5-listen or [server] listen)")
	}
	if c.Server.MaxConns < 0 {
		return errors.New("max_conns must not be negative")
	}
	if _, err := ParseTCPKeepAlive(c.Server.TCPKeepAlive); err != nil {
		return fmt.Errorf("invalid tcp keepalive: %w", err)
	}
	return nil
}

// ParseUser splits a "name:password" flag value. The password may itself
// contain colons.
func ParseUser(s string) (name, password string, err error) {
	name, password, ok := strings.Cut(s, ":")
	if !ok {
		return "", "", fmt.Errorf("user %q: expected name:password", s)
	}
	if name == "" {
		return "", "", fmt.Errorf("user %q: empty name", s)
	}
	return name, password, nil
}

func addUser(users map[string]string, name, password string) error {
	if len(name) > 255 || len(password) > 255 {
		return fmt.Errorf("user %q: name and password are limited to 255 bytes", name)
	}
	users[name] = password
	return nil
}

func defaultUpstream() string {
	if p := os.Getenv("ALL_PROXY"); p != "" {
		return p
	}

	if p := os.Getenv("all_proxy"); p != "" {
		return p
	}

	return "direct://"
}
