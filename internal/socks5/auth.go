package socks5

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"strings"

	txsocks5 "github.com/txthinking/socks5"
	"golang.org/x/crypto/bcrypt"
)

// Authenticator is the server's authentication capability. Method is the
// one method the server accepts; Execute runs that method's sub-negotiation
// after the method has been announced to the client and produces the
// per-connection output O.
//
// An Authenticator is shared by all connections of a Server and must be safe
// for concurrent use.
type Authenticator[O any] interface {
	Method() Method
	Execute(ctx context.Context, conn net.Conn) (O, error)
}

// NoAuth accepts every client without a sub-negotiation.
type NoAuth struct{}

func (NoAuth) Method() Method {
	return MethodNoAuth
}

func (NoAuth) Execute(context.Context, net.Conn) (struct{}, error) {
	return struct{}{}, nil
}

// Credentials validates a username and password.
type Credentials interface {
	Valid(user, password string) bool
}

// StaticCredentials maps usernames to passwords. A value that looks like a
// bcrypt hash ("$2a$", "$2b$" or "$2y$") is checked with bcrypt; anything
// else is compared in constant time.
type StaticCredentials map[string]string

func (s StaticCredentials) Valid(user, password string) bool {
	stored, ok := s[user]
	if !ok {
		return false
	}
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}

func isBcryptHash(s string) bool {
	for _, p := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// UserPassAuth implements RFC 1929 username/password authentication. Its
// output is the authenticated username.
type UserPassAuth struct {
	Credentials Credentials
}

// NewUserPassAuth returns a username/password authenticator backed by creds.
func NewUserPassAuth(creds Credentials) *UserPassAuth {
	return &UserPassAuth{Credentials: creds}
}

func (a *UserPassAuth) Method() Method {
	return MethodUserPass
}

func (a *UserPassAuth) Execute(ctx context.Context, conn net.Conn) (string, error) {
	var user string
	err := exchange(ctx, conn, func() error {
		req, err := txsocks5.NewUserPassNegotiationRequestFrom(conn)
		if err != nil {
			return fmt.Errorf("read userpass: %w", err)
		}

		if !a.Credentials.Valid(string(req.Uname), string(req.Passwd)) {
			_, _ = txsocks5.NewUserPassNegotiationReply(txsocks5.UserPassStatusFailure).WriteTo(conn)
			return fmt.Errorf("user %q: %w", req.Uname, ErrAuthFailed)
		}
		if _, err := txsocks5.NewUserPassNegotiationReply(txsocks5.UserPassStatusSuccess).WriteTo(conn); err != nil {
			return fmt.Errorf("write userpass: %w", err)
		}

		user = string(req.Uname)
		return nil
	})
	return user, err
}
