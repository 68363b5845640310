// Package socks5 implements the server side of a SOCKS5 connection as a
// sequence of stages.
//
// A freshly accepted net.Conn is wrapped in an [IncomingConnection], which
// negotiates an authentication method and runs the configured
// [Authenticator]. The resulting [Authenticated] reads the client's request
// and dispatches it to one of [Connect], [Bind] or [Associate]. Each command
// stage writes its reply (or replies, for BIND) and becomes a ready stream
// that implements net.Conn.
//
// Every stage owns the underlying connection. A successful transition moves
// it into the next stage; a failed one returns an [*Error] whose Conn field
// hands it back to the caller. The package never closes a connection.
//
// Stage calls take a context. Blocked I/O is interrupted by moving the
// connection's deadline into the past when the context is done, and the
// deadline is cleared once the call returns. net.Conn has no way to read a
// deadline back, so one the caller set before the call is not restored; set
// it again if it is still wanted.
//
// Message encoding is delegated to github.com/txthinking/socks5.
package socks5
