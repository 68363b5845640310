// Package dialer provides the outbound dialers used by the SOCKS5 proxy.
//
// Dialers implement a small interface (DialContext) and connect either
// directly or through an upstream SOCKS5 server.
package dialer
