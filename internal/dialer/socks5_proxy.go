package dialer

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/die-net/socksd/internal/socks5"
)

// SOCKS5ProxyDialer reaches destinations through an upstream SOCKS5 proxy.
// Every DialContext opens a fresh connection to the upstream.
type SOCKS5ProxyDialer struct {
	proxyAddr string
	auth      socks5.Auth
	timeout   time.Duration
	direct    Dialer
}

func NewSOCKS5ProxyDialer(cfg Config, proxyAddr string, auth socks5.Auth) *SOCKS5ProxyDialer {
	return &SOCKS5ProxyDialer{
		proxyAddr: proxyAddr,
		auth:      auth,
		timeout:   cfg.NegotiationTimeout,
		direct:    NewDirectDialer(cfg),
	}
}

// ProxyAddr returns the upstream host:port.
func (d *SOCKS5ProxyDialer) ProxyAddr() string {
	return d.proxyAddr
}

func (d *SOCKS5ProxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if !strings.HasPrefix(network, "tcp") {
		return nil, fmt.Errorf("socks5 upstream dial %s %s: unsupported network", network, address)
	}

	c, err := d.direct.DialContext(ctx, "tcp", d.proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("socks5 upstream: %w", err)
	}

	// Close conn if ctx is canceled during negotiation.
	stop := context.AfterFunc(ctx, func() {
		_ = c.Close()
	})
	defer stop()

	if d.timeout > 0 {
		_ = c.SetDeadline(time.Now().Add(d.timeout))
	}

	if err := socks5.ClientDial(c, d.auth, address); err != nil {
		_ = c.Close()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("socks5 upstream dial %s: %w", address, ctx.Err())
		}
		return nil, fmt.Errorf("socks5 upstream dial %s: %w", address, err)
	}

	if !stop() {
		// ctx fired after negotiation finished; the conn is already closed.
		return nil, fmt.Errorf("socks5 upstream dial %s: %w", address, ctx.Err())
	}

	if d.timeout > 0 {
		_ = c.SetDeadline(time.Time{})
	}

	return c, nil
}
