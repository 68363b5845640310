// Package proxy implements the socks5d listener: a SOCKS5 server that runs
// each client through the socks5 stages, serves CONNECT through a dialer and
// refuses BIND and UDP ASSOCIATE.
//
// It also holds the shared connection plumbing: keepalive listeners and the
// half-close aware bidirectional copy.
package proxy
