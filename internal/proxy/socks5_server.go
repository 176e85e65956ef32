package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/die-net/socksd/internal/conn"
	"github.com/die-net/socksd/internal/dialer"
	"github.com/die-net/socksd/internal/socks5"
)

// State is the phase a SOCKS5 session is in. Sessions only move forward.
type State int

const (
	StateAwaitGreeting State = iota
	StateAwaitRequest
	StateConnecting
	StateForwarding
)

func (s State) String() string {
	switch s {
	case StateAwaitGreeting:
		return "greeting"
	case StateAwaitRequest:
		return "request"
	case StateConnecting:
		return "connect"
	case StateForwarding:
		return "forward"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// SessionError is the terminal error of a session, tagged with the state the
// session failed in.
type SessionError struct {
	State State
	Err   error
}

func (e *SessionError) Error() string {
	return e.State.String() + ": " + e.Err.Error()
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

type sessionInfo struct {
	state      State
	target     string
	traffic    Traffic
	dialFailed bool
}

type SOCKS5Server struct {
	ctx  context.Context
	cfg  Config
	log  *zap.Logger
	dial dialer.Dialer

	sessions sync.WaitGroup
}

// NewSOCKS5Server returns a server that dials CONNECT targets with
// cfg.Dialer, or directly if that is nil. Canceling ctx ends every session
// started by Serve.
func NewSOCKS5Server(ctx context.Context, cfg Config) *SOCKS5Server {
	if ctx == nil {
		ctx = context.Background()
	}
	return &SOCKS5Server{ctx: ctx, cfg: cfg, log: cfg.logger(), dial: cfg.dialer()}
}

// Serve accepts connections on ln and runs one session per connection until
// ln is closed. It returns nil if ln was closed after the server's context
// ended.
func (s *SOCKS5Server) Serve(ln net.Listener) error {
	// Holding a count for the loop itself keeps Add from racing with Wait.
	s.sessions.Add(1)
	defer s.sessions.Done()

	for {
		c, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) && s.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.sessions.Add(1)
		go func() {
			defer s.sessions.Done()
			s.handle(c)
		}()
	}
}

// Wait blocks until Serve has returned and every session it started has
// ended.
func (s *SOCKS5Server) Wait() {
	s.sessions.Wait()
}

func (s *SOCKS5Server) handle(c net.Conn) {
	ctx, cancel := s.sessionContext()
	defer cancel()

	recordSessionStart()
	start := time.Now()

	var info sessionInfo
	err := s.serveConn(ctx, c, &info)

	recordSessionEnd(&info, err)

	fields := []zap.Field{
		zap.Stringer("remote", c.RemoteAddr()),
		zap.String("target", info.target),
		zap.Int64("up", info.traffic.Up),
		zap.Int64("down", info.traffic.Down),
		zap.Duration("duration", time.Since(start)),
	}

	var msg string
	switch {
	case err == nil:
		s.log.Debug("session closed", fields...)
		return
	case errors.Is(err, socks5.ErrProtocol):
		msg = "protocol error"
	case info.dialFailed:
		msg = "dial failed"
	default:
		msg = "session error"
	}
	s.log.Debug(msg, append(fields, zap.Stringer("state", info.state), zap.Error(err))...)
}

func (s *SOCKS5Server) sessionContext() (context.Context, context.CancelFunc) {
	if s.cfg.SessionTimeout > 0 {
		return context.WithTimeout(s.ctx, s.cfg.SessionTimeout)
	}
	return context.WithCancel(s.ctx)
}

// ServeConn runs a single SOCKS5 session on c: greeting, CONNECT request,
// dial, reply, then Forward until both directions are done.
//
// c is closed before ServeConn returns, and as soon as ctx ends. Any error is
// a *SessionError; protocol violations match socks5.ErrProtocol, a failed
// dial wraps the dialer's error, and a session cut short by ctx wraps
// ctx.Err(). The only failure that gets a reply frame is a failed dial.
func (s *SOCKS5Server) ServeConn(ctx context.Context, c net.Conn) error {
	var info sessionInfo
	return s.serveConn(ctx, c, &info)
}

func (s *SOCKS5Server) serveConn(ctx context.Context, c net.Conn, info *sessionInfo) (err error) {
	r, w := conn.Split(c)
	defer r.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = r.Close()
	})
	defer stop()

	info.state = StateAwaitGreeting
	defer func() {
		if err == nil {
			return
		}
		if cerr := ctx.Err(); cerr != nil && !errors.Is(err, cerr) {
			err = cerr
		}
		err = &SessionError{State: info.state, Err: err}
	}()

	if _, err := socks5.ReadGreeting(r); err != nil {
		return err
	}
	if err := socks5.WriteAuthReply(w); err != nil {
		return err
	}

	info.state = StateAwaitRequest
	req, err := socks5.ReadRequest(r)
	if err != nil {
		return err
	}
	info.target = req.Target()

	info.state = StateConnecting
	target, err := s.dial.DialContext(ctx, "tcp", info.target)
	if err != nil {
		info.dialFailed = true
		if werr := socks5.WriteHostUnreachableReply(w); werr != nil {
			return errors.Join(err, werr)
		}
		return err
	}

	if err := socks5.WriteSuccessReply(w); err != nil {
		_ = target.Close()
		return err
	}

	info.state = StateForwarding
	info.traffic, err = Forward(ctx, r, w, target, ForwardOptions{HalfCloseTimeout: s.cfg.HalfCloseTimeout})
	return err
}
