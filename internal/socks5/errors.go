package socks5

import (
	"errors"
	"fmt"
	"net"

	txsocks5 "github.com/txthinking/socks5"
)

// Kind separates transport failures from SOCKS5 protocol violations.
type Kind int

const (
	// KindIO is a read, write or deadline failure on the transport.
	KindIO Kind = iota
	// KindProtocol is a well-delivered message with invalid SOCKS5 semantics.
	KindProtocol
)

func (k Kind) String() string {
	if k == KindProtocol {
		return "protocol"
	}
	return "io"
}

var (
	// ErrMalformed reports a message that could not be parsed.
	ErrMalformed = errors.New("malformed message")
	// ErrUnsupportedVersion reports a message whose VER field is not 5.
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
	// ErrAuthFailed reports rejected credentials.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrStageConsumed is returned by any operation on a stage whose
	// connection has already moved to a later stage or been taken with
	// IntoConn.
	ErrStageConsumed = errors.New("connection already moved to another stage")
)

// NoAcceptableMethodError is returned by Authenticate when the client did
// not offer the server's method. The client has already been sent
// MethodNoAcceptable when this error is returned.
type NoAcceptableMethodError struct {
	Version byte
	Chosen  Method
	Methods []Method
}

func (e *NoAcceptableMethodError) Error() string {
	return fmt.Sprintf("no acceptable authentication method: server wants %s, client offered %v", e.Chosen, e.Methods)
}

// UnsupportedCommandError is returned by WaitRequest for a CMD value outside
// CONNECT, BIND and ASSOCIATE.
type UnsupportedCommandError struct {
	Command CommandKind
	Address Address
}

func (e *UnsupportedCommandError) Error() string {
	return fmt.Sprintf("unsupported command %s for %s", e.Command, e.Address)
}

// Error is the error type returned by every stage transition. Conn is the
// connection the stage was operating on; ownership returns to the caller. It
// is nil only for ErrStageConsumed, where the stage no longer held one.
type Error struct {
	Op   string
	Kind Kind
	Err  error
	Conn net.Conn
}

func (e *Error) Error() string {
	return "socks5 " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsProtocol reports whether err is a SOCKS5 protocol failure.
func IsProtocol(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindProtocol
	}
	return classify(err) == KindProtocol
}

// ConnOf returns the connection carried by a stage error, or nil.
func ConnOf(err error) net.Conn {
	var e *Error
	if errors.As(err, &e) {
		return e.Conn
	}
	return nil
}

func newError(op string, conn net.Conn, err error) *Error {
	return &Error{Op: op, Kind: classify(err), Err: normalize(err), Conn: conn}
}

// normalize maps the codec's sentinel errors onto this package's.
func normalize(err error) error {
	switch {
	case errors.Is(err, txsocks5.ErrVersion):
		return fmt.Errorf("%w: %w", ErrUnsupportedVersion, err)
	case errors.Is(err, txsocks5.ErrBadRequest):
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return err
}

func classify(err error) Kind {
	var (
		noMethod *NoAcceptableMethodError
		badCmd   *UnsupportedCommandError
	)
	switch {
	case errors.Is(err, txsocks5.ErrVersion),
		errors.Is(err, txsocks5.ErrBadRequest),
		errors.Is(err, ErrMalformed),
		errors.Is(err, ErrUnsupportedVersion),
		errors.Is(err, ErrAuthFailed),
		errors.Is(err, ErrDomainTooLong),
		errors.Is(err, ErrStageConsumed),
		errors.As(err, &noMethod),
		errors.As(err, &badCmd):
		return KindProtocol
	}
	return KindIO
}
