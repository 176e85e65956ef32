// Package dialer provides the outbound side of socksd.
//
// Dialers implement a small interface (DialContext) and are used by the
// SOCKS5 session handler to reach CONNECT targets, either directly with the
// platform resolver or through an upstream SOCKS5 proxy.
package dialer
