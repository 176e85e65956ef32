// Package proxy implements the socksd SOCKS5 server.
//
// A session runs parse, connect, reply and forward in that order on one
// goroutine, handing off to Forward for the bidirectional copy once the
// CONNECT reply has been sent. SOCKS5Server adds the accept loop, logging
// and expvar counters around it.
package proxy
