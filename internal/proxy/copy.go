package proxy

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/die-net/socksd/internal/conn"
)

// Traffic counts the bytes relayed by Forward.
type Traffic struct {
	Up   int64 // client to target
	Down int64 // target to client
}

type ForwardOptions struct {
	// HalfCloseTimeout, if positive, is applied as a read deadline on the
	// remaining direction once the other one has reached EOF.
	HalfCloseTimeout time.Duration
}

// Forward relays bytes between the client halves and target until both
// directions are done.
//
// EOF in one direction is passed on with CloseWrite on the opposite stream.
// An error in either direction, or ctx ending, closes both streams so the
// other direction cannot block. Forward returns the first error, or ctx.Err()
// when the context ended the session. client and target are closed on
// return.
func Forward(ctx context.Context, clientR conn.ReadHalf, clientW conn.WriteHalf, target net.Conn, opts ForwardOptions) (Traffic, error) {
	targetR, targetW := conn.Split(target)

	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			_ = clientR.Close()
			_ = targetR.Close()
		})
	}
	defer closeBoth()

	g, gctx := errgroup.WithContext(ctx)

	stop := context.AfterFunc(gctx, closeBoth)
	defer stop()

	var t Traffic

	g.Go(func() error {
		n, err := relay(targetW, clientR, targetR, opts.HalfCloseTimeout)
		t.Up = n
		return err
	})

	g.Go(func() error {
		n, err := relay(clientW, targetR, clientR, opts.HalfCloseTimeout)
		t.Down = n
		return err
	})

	err := g.Wait()
	if err != nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return t, err
}

// relay copies src to dst and half-closes dst at EOF. other is the source of
// the opposite direction.
func relay(dst conn.WriteHalf, src, other conn.ReadHalf, halfCloseTimeout time.Duration) (int64, error) {
	buf := copyBuffers.Get()
	defer copyBuffers.Put(buf)

	n, err := io.CopyBuffer(dst, src, *buf)
	if err != nil {
		return n, err
	}

	if err := dst.CloseWrite(); err != nil {
		return n, err
	}

	if halfCloseTimeout > 0 {
		_ = other.SetReadDeadline(time.Now().Add(halfCloseTimeout))
	}

	return n, nil
}
