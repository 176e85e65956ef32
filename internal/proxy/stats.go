package proxy

import (
	"errors"
	"expvar"

	"github.com/die-net/socksd/internal/socks5"
)

var (
	sessionsTotal      = expvar.NewInt("socks5_sessions_total")
	sessionsActive     = expvar.NewInt("socks5_sessions_active")
	protocolErrorTotal = expvar.NewInt("socks5_protocol_errors_total")
	dialErrorTotal     = expvar.NewInt("socks5_dial_errors_total")
	bytesUpTotal       = expvar.NewInt("socks5_bytes_up_total")
	bytesDownTotal     = expvar.NewInt("socks5_bytes_down_total")
)

func recordSessionStart() {
	sessionsTotal.Add(1)
	sessionsActive.Add(1)
}

func recordSessionEnd(info *sessionInfo, err error) {
	sessionsActive.Add(-1)
	bytesUpTotal.Add(info.traffic.Up)
	bytesDownTotal.Add(info.traffic.Down)

	switch {
	case errors.Is(err, socks5.ErrProtocol):
		protocolErrorTotal.Add(1)
	case info.dialFailed:
		dialErrorTotal.Add(1)
	}
}
