// Package conn holds the stream plumbing shared by socksd listeners and
// sessions: a keepalive-applying listener, and Split, which turns a duplex
// net.Conn into a read half and a write half that can be driven by separate
// goroutines and half-closed independently.
package conn
