package socks5

import (
	"fmt"
	"io"

	txsocks5 "github.com/txthinking/socks5"
)

// WriteAuthReply selects "no authentication required".
func WriteAuthReply(w io.Writer) error {
	if _, err := txsocks5.NewNegotiationReply(MethodNone).WriteTo(w); err != nil {
		return fmt.Errorf("auth reply: %w", err)
	}
	return nil
}

// WriteSuccessReply writes a CONNECT success reply. The bound address is
// always reported as 0.0.0.0:0.
func WriteSuccessReply(w io.Writer) error {
	if _, err := newZeroAddrReply(RepSuccess).WriteTo(w); err != nil {
		return fmt.Errorf("success reply: %w", err)
	}
	return nil
}

// WriteHostUnreachableReply writes the CONNECT failure reply. It is sent for
// every dial failure regardless of the underlying cause.
func WriteHostUnreachableReply(w io.Writer) error {
	if _, err := newZeroAddrReply(RepHostUnreachable).WriteTo(w); err != nil {
		return fmt.Errorf("host unreachable reply: %w", err)
	}
	return nil
}

func newZeroAddrReply(rep byte) *txsocks5.Reply {
	return txsocks5.NewReply(rep, ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00})
}
