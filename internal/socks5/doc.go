// Package socks5 implements the SOCKS5 wire format used by socksd.
//
// The server side is deliberately narrow: it reads the greeting and a CONNECT
// request with exact-length reads, always selects "no authentication", and
// only knows how to encode the two CONNECT replies socksd ever sends
// (succeeded and host unreachable), both with a zeroed IPv4 bind address.
//
// Protocol constants and frame encoding come from github.com/txthinking/socks5.
// The parser is local because socksd must accept NMETHODS=0 and must stop
// reading as soon as it sees an IPv6 address type.
//
// The client side (ClientDial) is used for chaining through an upstream SOCKS5
// proxy and as a conformance peer in tests.
package socks5
