package conn

import (
	"context"
	"fmt"
	"net"
)

// ListenTCP binds a TCP listener on addr. Every accepted connection gets
// keepAlive; with keepAlive.Enable false, keepalive is turned off rather than
// left at the system default.
func ListenTCP(ctx context.Context, addr string, keepAlive net.KeepAliveConfig) (*net.TCPListener, error) {
	lc := net.ListenConfig{KeepAliveConfig: keepAlive}
	if !keepAlive.Enable {
		lc.KeepAlive = -1
	}

	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln.(*net.TCPListener), nil
}
