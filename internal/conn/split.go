package conn

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// ReadHalf is the receiving side of a split stream.
type ReadHalf interface {
	io.Reader
	io.Closer
	SetReadDeadline(t time.Time) error
}

// WriteHalf is the sending side of a split stream.
type WriteHalf interface {
	io.Writer
	io.Closer
	// CloseWrite signals end-of-stream to the peer while leaving the read
	// side open, if the transport can do that. Otherwise it closes the
	// whole stream, and a Read blocked on or following that close reports
	// io.EOF instead of a closed-stream error.
	CloseWrite() error
}

type closeWriter interface {
	CloseWrite() error
}

// Split returns independent read and write halves of c.
//
// Close on either half closes c. Only the first Close reaches c; later calls
// return its result.
func Split(c net.Conn) (ReadHalf, WriteHalf) {
	s := &stream{Conn: c}
	return readHalf{s}, writeHalf{s}
}

type stream struct {
	net.Conn

	closeOnce sync.Once
	closeErr  error

	// writeClosed is set when CloseWrite had to close the whole stream.
	writeClosed atomic.Bool
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.Conn.Close()
	})
	return s.closeErr
}

type readHalf struct {
	s *stream
}

func (r readHalf) Read(p []byte) (int, error) {
	n, err := r.s.Read(p)
	if err != nil && r.s.writeClosed.Load() && isClosed(err) {
		err = io.EOF
	}
	return n, err
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}

func (r readHalf) SetReadDeadline(t time.Time) error {
	return r.s.SetReadDeadline(t)
}

func (r readHalf) Close() error {
	return r.s.Close()
}

type writeHalf struct {
	s *stream
}

func (w writeHalf) Write(p []byte) (int, error) {
	return w.s.Write(p)
}

func (w writeHalf) CloseWrite() error {
	if cw, ok := w.s.Conn.(closeWriter); ok {
		return cw.CloseWrite()
	}
	w.s.writeClosed.Store(true)
	return w.s.Close()
}

func (w writeHalf) Close() error {
	return w.s.Close()
}
