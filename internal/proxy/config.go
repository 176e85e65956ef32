package proxy

import (
	"time"

	"go.uber.org/zap"

	"github.com/die-net/socksd/internal/dialer"
)

type Config struct {
	// Dialer opens the connection to each CONNECT target. Nil dials
	// directly with no timeout.
	Dialer dialer.Dialer

	// SessionTimeout bounds the whole lifetime of a session. Zero means no
	// limit.
	SessionTimeout time.Duration

	// HalfCloseTimeout bounds how long the remaining direction may stay open
	// after the other one has reached EOF. Zero waits indefinitely.
	HalfCloseTimeout time.Duration

	Logger *zap.Logger
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c Config) dialer() dialer.Dialer {
	if c.Dialer == nil {
		return dialer.NewDirectDialer(dialer.Config{})
	}
	return c.Dialer
}
