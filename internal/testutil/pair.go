package testutil

import (
	"context"
	"net"
	"testing"
)

// TCPPair returns both ends of a loopback TCP connection. Both are closed
// when the test finishes.
func TCPPair(t *testing.T) (*net.TCPConn, *net.TCPConn) {
	t.Helper()

	ln := listenLoopback(t, context.Background())
	defer ln.Close()

	type result struct {
		c   net.Conn
		err error
	}
	accepted := make(chan result, 1)
	go func() {
		c, err := ln.Accept()
		accepted <- result{c, err}
	}()

	var d net.Dialer
	client, err := d.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	res := <-accepted
	if res.err != nil {
		_ = client.Close()
		t.Fatal(res.err)
	}
	t.Cleanup(func() {
		_ = client.Close()
		_ = res.c.Close()
	})
	return client.(*net.TCPConn), res.c.(*net.TCPConn)
}
