package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Parse registers socks5d's flags on fs, parses args and returns the
// resulting settings. When --config names a file, its values replace the
// defaults; flags given on the command line still win over the file.
func Parse(fs *pflag.FlagSet, args []string) (Config, error) {
	cfg := Default()
	s := &cfg.Server

	var (
		path  string
		users []string
	)

	fs.StringVar(&s.Listen, "socks5-listen", s.Listen, "SOCKS5 listen address (e.g. 127.0.0.1:1080)")
	fs.StringVar(&s.Upstream, "upstream", s.Upstream, "Upstream forwarding target URL: direct:// | socks5://[user:pass@]host:port")
	fs.DurationVar(&s.DialTimeout, "dial-timeout", s.DialTimeout, "Timeout for outbound DNS lookup and TCP connect")
	fs.DurationVar(&s.NegotiationTimeout, "negotiation-timeout", s.NegotiationTimeout, "Timeout for each SOCKS5 exchange with a client")
	fs.StringVar(&s.TCPKeepAlive, "tcp-keepalive", s.TCPKeepAlive, "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")
	fs.Int64Var(&s.MaxConns, "max-conns", s.MaxConns, "Maximum concurrent client connections (0 = unlimited)")
	fs.StringArrayVar(&users, "user", nil, "Require username/password auth; name:password or name:bcrypt-hash (repeatable)")
	fs.StringVar(&path, "config", "", "Path to an INI config file with [server] and [users] sections")
	fs.StringVar(&s.DebugListen, "debug-listen", s.DebugListen, "Debug HTTP listen address exposing /debug/pprof (e.g. 127.0.0.1:6060). Empty disables.")
	fs.StringVar(&s.LogLevel, "log-level", s.LogLevel, "Log level: trace|debug|info|warn|error")
	fs.BoolVar(&s.Verbose, "verbose", s.Verbose, "Log per-connection errors at info level")

	fs.SortFlags = false
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if path != "" {
		// Remember what was given explicitly, load the file over it, then
		// put the explicit values back.
		set := map[string]string{}
		fs.Visit(func(f *pflag.Flag) {
			if f.Name != "user" && f.Name != "config" {
				set[f.Name] = f.Value.String()
			}
		})

		if err := Load(path, &cfg); err != nil {
			return Config{}, err
		}

		for name, v := range set {
			if err := fs.Set(name, v); err != nil {
				return Config{}, fmt.Errorf("--%s: %w", name, err)
			}
		}
	}

	for _, u := range users {
		name, password, err := ParseUser(u)
		if err != nil {
			return Config{}, fmt.Errorf("--user: %w", err)
		}
		if err := addUser(cfg.Users, name, password); err != nil {
			return Config{}, fmt.Errorf("--user: %w", err)
		}
	}

	return cfg, nil
}
