package socks5

import (
	"errors"
	"fmt"

	txsocks5 "github.com/txthinking/socks5"
)

const (
	// Version is the SOCKS protocol version.
	Version = txsocks5.Ver

	// MethodNone is the "no authentication required" method.
	MethodNone = txsocks5.MethodNone

	// CmdConnect is the SOCKS5 CONNECT command value.
	CmdConnect = txsocks5.CmdConnect

	ATYPIPv4   = txsocks5.ATYPIPv4
	ATYPDomain = txsocks5.ATYPDomain
	ATYPIPv6   = txsocks5.ATYPIPv6

	RepSuccess         = txsocks5.RepSuccess
	RepHostUnreachable = txsocks5.RepHostUnreachable
)

// ErrProtocol is matched by every error caused by a non-conformant client, as
// opposed to transport failures.
var ErrProtocol = errors.New("socks5 protocol error")

// UnsupportedVersionError is returned when VER is not 5.
type UnsupportedVersionError byte

func (v UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported SOCKS version: %#x", byte(v))
}

func (UnsupportedVersionError) Is(target error) bool {
	return target == ErrProtocol
}

// UnsupportedCommandError is returned for any command other than CONNECT.
type UnsupportedCommandError byte

func (c UnsupportedCommandError) Error() string {
	return fmt.Sprintf("unsupported command: %#x", byte(c))
}

func (UnsupportedCommandError) Is(target error) bool {
	return target == ErrProtocol || target == errors.ErrUnsupported
}

// UnsupportedAddressTypeError is returned for IPv6 and unknown address types.
type UnsupportedAddressTypeError byte

func (a UnsupportedAddressTypeError) Error() string {
	return fmt.Sprintf("unsupported address type: %#x", byte(a))
}

func (UnsupportedAddressTypeError) Is(target error) bool {
	return target == ErrProtocol || target == errors.ErrUnsupported
}
