package socks5

import (
	"encoding/binary"
	"fmt"
	"io"
	"net/netip"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Greeting is the client's method selection message.
type Greeting struct {
	Methods []byte
}

// Request is a parsed CONNECT request.
type Request struct {
	Cmd  byte
	Atyp byte
	Host string
	Port uint16
}

// Target returns the destination as host:port.
func (r *Request) Target() string {
	return r.Host + ":" + strconv.Itoa(int(r.Port))
}

// ReadGreeting reads VER, NMETHODS and the method list from r.
//
// The method list is consumed but never interpreted; socksd always answers
// with MethodNone.
func ReadGreeting(r io.Reader) (*Greeting, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read greeting: %w", err)
	}
	if hdr[0] != Version {
		return nil, UnsupportedVersionError(hdr[0])
	}

	methods := make([]byte, int(hdr[1]))
	if _, err := io.ReadFull(r, methods); err != nil {
		return nil, fmt.Errorf("read methods: %w", err)
	}

	return &Greeting{Methods: methods}, nil
}

// ReadRequest reads a CONNECT request from r.
//
// An IPv6 address type is rejected as soon as the header has been read; the
// address bytes that follow are left unread.
func ReadRequest(r io.Reader) (*Request, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	if hdr[0] != Version {
		return nil, UnsupportedVersionError(hdr[0])
	}
	if hdr[1] != CmdConnect {
		return nil, UnsupportedCommandError(hdr[1])
	}

	req := &Request{Cmd: hdr[1], Atyp: hdr[3]}

	switch req.Atyp {
	case ATYPIPv4:
		var a [4]byte
		if _, err := io.ReadFull(r, a[:]); err != nil {
			return nil, fmt.Errorf("read ipv4 address: %w", err)
		}
		req.Host = netip.AddrFrom4(a).String()
	case ATYPDomain:
		var n [1]byte
		if _, err := io.ReadFull(r, n[:]); err != nil {
			return nil, fmt.Errorf("read domain length: %w", err)
		}
		name := make([]byte, int(n[0]))
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("read domain: %w", err)
		}
		req.Host = decodeLossy(name)
	default:
		return nil, UnsupportedAddressTypeError(req.Atyp)
	}

	var port [2]byte
	if _, err := io.ReadFull(r, port[:]); err != nil {
		return nil, fmt.Errorf("read port: %w", err)
	}
	req.Port = binary.BigEndian.Uint16(port[:])

	return req, nil
}

// decodeLossy decodes b as UTF-8, replacing each maximal invalid subsequence
// with one U+FFFD. A truncated sequence counts once; a stray byte counts once
// on its own.
func decodeLossy(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}

	var sb strings.Builder
	sb.Grow(len(b) + 2)
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune(utf8.RuneError)
			b = b[invalidPrefixLen(b):]
			continue
		}
		sb.Write(b[:size])
		b = b[size:]
	}
	return sb.String()
}

// invalidPrefixLen returns how many bytes at the start of b form the longest
// prefix of a well-formed sequence, or 1 if b[0] cannot start one. b must not
// begin with a complete valid sequence.
func invalidPrefixLen(b []byte) int {
	lo, hi := byte(0x80), byte(0xbf)
	var need int
	switch c := b[0]; {
	case c >= 0xc2 && c <= 0xdf:
		need = 1
	case c == 0xe0:
		need, lo = 2, 0xa0
	case c == 0xed:
		need, hi = 2, 0x9f
	case c >= 0xe1 && c <= 0xef:
		need = 2
	case c == 0xf0:
		need, lo = 3, 0x90
	case c >= 0xf1 && c <= 0xf3:
		need = 3
	case c == 0xf4:
		need, hi = 3, 0x8f
	default:
		return 1
	}

	n := 1
	for n <= need && n < len(b) && b[n] >= lo && b[n] <= hi {
		n++
		lo, hi = 0x80, 0xbf
	}
	return n
}
