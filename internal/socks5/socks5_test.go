package socks5

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"

	txsocks5 "github.com/txthinking/socks5"
	"golang.org/x/sync/errgroup"
)

func TestReadGreeting(t *testing.T) {
	for _, n := range []int{0, 1, 2, 127, 255} {
		methods := bytes.Repeat([]byte{0x7f}, n)
		in := append([]byte{0x05, byte(n)}, methods...)
		// Trailing bytes belong to the next message and must stay unread.
		in = append(in, 0xaa, 0xbb)

		r := bytes.NewReader(in)
		g, err := ReadGreeting(r)
		if err != nil {
			t.Fatalf("nmethods=%d: %v", n, err)
		}
		if !bytes.Equal(g.Methods, methods) {
			t.Fatalf("nmethods=%d: got %d methods", n, len(g.Methods))
		}
		if r.Len() != 2 {
			t.Fatalf("nmethods=%d: %d bytes left, want 2", n, r.Len())
		}
	}
}

func TestReadGreetingErrors(t *testing.T) {
	tests := []struct {
		name     string
		in       []byte
		protocol bool
		wantErr  error
	}{
		{name: "socks4", in: []byte{0x04, 0x01, 0x00}, protocol: true, wantErr: UnsupportedVersionError(0x04)},
		{name: "empty", in: nil, wantErr: io.EOF},
		{name: "short header", in: []byte{0x05}, wantErr: io.ErrUnexpectedEOF},
		{name: "short methods", in: []byte{0x05, 0x03, 0x00}, wantErr: io.ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadGreeting(bytes.NewReader(tt.in))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v want %v", err, tt.wantErr)
			}
			if errors.Is(err, ErrProtocol) != tt.protocol {
				t.Fatalf("protocol error=%v want %v (%v)", !tt.protocol, tt.protocol, err)
			}
		})
	}
}

func TestReadRequest(t *testing.T) {
	tests := []struct {
		name   string
		in     []byte
		target string
	}{
		{
			name:   "ipv4",
			in:     []byte{0x05, 0x01, 0x00, 0x01, 127, 0, 0, 1, 0x1f, 0x90},
			target: "127.0.0.1:8080",
		},
		{
			name:   "domain",
			in:     append(append([]byte{0x05, 0x01, 0x00, 0x03, 9}, "example.c"...), 0x01, 0xbb),
			target: "example.c:443",
		},
		{
			name:   "empty domain",
			in:     []byte{0x05, 0x01, 0x00, 0x03, 0, 0x00, 0x50},
			target: ":80",
		},
		{
			name:   "invalid utf8 domain",
			in:     []byte{0x05, 0x01, 0x00, 0x03, 3, 'a', 0xff, 'b', 0x00, 0x50},
			target: "a\uFFFDb:80",
		},
		{
			name:   "two invalid bytes",
			in:     []byte{0x05, 0x01, 0x00, 0x03, 4, 'a', 0xff, 0xfe, 'b', 0x00, 0x50},
			target: "a\uFFFD\uFFFDb:80",
		},
		{
			name:   "nonzero reserved byte",
			in:     []byte{0x05, 0x01, 0x7f, 0x01, 10, 1, 2, 3, 0xff, 0xff},
			target: "10.1.2.3:65535",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bytes.NewReader(tt.in)
			req, err := ReadRequest(r)
			if err != nil {
				t.Fatal(err)
			}
			if got := req.Target(); got != tt.target {
				t.Fatalf("got %q want %q", got, tt.target)
			}
			if req.Cmd != CmdConnect {
				t.Fatalf("got cmd %#x", req.Cmd)
			}
			if r.Len() != 0 {
				t.Fatalf("%d bytes left unread", r.Len())
			}
		})
	}
}

func TestDecodeLossy(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "example.com"},
		{"b\u00fccher.de", "b\u00fccher.de"},
		{"a\xffb", "a\uFFFDb"},
		{"a\xff\xfeb", "a\uFFFD\uFFFDb"},
		{"\xe2\x82x", "\uFFFDx"},
		{"x\xe2\x82", "x\uFFFD"},
		{"\xf0\x9f\x98", "\uFFFD"},
		{"\xf0\x80", "\uFFFD\uFFFD"},
		{"\xed\xa0\x80", "\uFFFD\uFFFD\uFFFD"},
		{"\xc0\xaf", "\uFFFD\uFFFD"},
	}

	for _, tt := range tests {
		if got := decodeLossy([]byte(tt.in)); got != tt.want {
			t.Errorf("decodeLossy(%q) = %q want %q", tt.in, got, tt.want)
		}
	}
}

func TestReadRequestErrors(t *testing.T) {
	tests := []struct {
		name        string
		in          []byte
		wantErr     error
		unsupported bool
		unread      int
	}{
		{
			name:    "bad version",
			in:      []byte{0x04, 0x01, 0x00, 0x01},
			wantErr: UnsupportedVersionError(0x04),
		},
		{
			name:        "bind",
			in:          []byte{0x05, 0x02, 0x00, 0x01},
			wantErr:     UnsupportedCommandError(0x02),
			unsupported: true,
		},
		{
			name:        "udp associate",
			in:          []byte{0x05, 0x03, 0x00, 0x01},
			wantErr:     UnsupportedCommandError(0x03),
			unsupported: true,
		},
		{
			name:        "ipv6 stops before address",
			in:          append([]byte{0x05, 0x01, 0x00, 0x04}, make([]byte, 18)...),
			wantErr:     UnsupportedAddressTypeError(0x04),
			unsupported: true,
			unread:      18,
		},
		{
			name:        "unknown address type",
			in:          []byte{0x05, 0x01, 0x00, 0x02},
			wantErr:     UnsupportedAddressTypeError(0x02),
			unsupported: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bytes.NewReader(tt.in)
			_, err := ReadRequest(r)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrProtocol) {
				t.Fatalf("%v is not a protocol error", err)
			}
			if errors.Is(err, errors.ErrUnsupported) != tt.unsupported {
				t.Fatalf("errors.ErrUnsupported match=%v", !tt.unsupported)
			}
			if r.Len() != tt.unread {
				t.Fatalf("%d bytes left, want %d", r.Len(), tt.unread)
			}
		})
	}
}

func TestReadRequestShortRead(t *testing.T) {
	full := append(append([]byte{0x05, 0x01, 0x00, 0x03, 9}, "example.c"...), 0x01, 0xbb)
	for i := 1; i < len(full); i++ {
		_, err := ReadRequest(bytes.NewReader(full[:i]))
		if err == nil {
			t.Fatalf("truncated at %d: expected error", i)
		}
		if errors.Is(err, ErrProtocol) {
			t.Fatalf("truncated at %d: short read reported as protocol error: %v", i, err)
		}
		if !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			t.Fatalf("truncated at %d: got %v", i, err)
		}
	}
}

func TestReplies(t *testing.T) {
	tests := []struct {
		name  string
		write func(io.Writer) error
		want  []byte
	}{
		{name: "auth", write: WriteAuthReply, want: []byte{0x05, 0x00}},
		{name: "success", write: WriteSuccessReply, want: []byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0}},
		{name: "host unreachable", write: WriteHostUnreachableReply, want: []byte{0x05, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tt.write(&buf); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(buf.Bytes(), tt.want) {
				t.Fatalf("got % x want % x", buf.Bytes(), tt.want)
			}
		})
	}
}

func TestClientDialToServer(t *testing.T) {
	tests := []struct {
		name    string
		address string
		target  string
	}{
		{name: "ipv4", address: "127.0.0.1:80", target: "127.0.0.1:80"},
		{name: "domain", address: "example.com:443", target: "example.com:443"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clientConn, serverConn := net.Pipe()
			defer clientConn.Close()
			defer serverConn.Close()

			g := errgroup.Group{}
			g.Go(func() error {
				if _, err := ReadGreeting(serverConn); err != nil {
					return err
				}
				if err := WriteAuthReply(serverConn); err != nil {
					return err
				}
				req, err := ReadRequest(serverConn)
				if err != nil {
					return err
				}
				if req.Target() != tt.target {
					return errors.New("unexpected target " + req.Target())
				}
				return WriteSuccessReply(serverConn)
			})

			if err := ClientDial(clientConn, Auth{}, tt.address); err != nil {
				t.Fatal(err)
			}
			if err := g.Wait(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestClientDialUserPass(t *testing.T) {
	auth := Auth{Username: "user", Password: "pass"}

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	g := errgroup.Group{}
	g.Go(func() error {
		if _, err := txsocks5.NewNegotiationRequestFrom(serverConn); err != nil {
			return err
		}
		if _, err := txsocks5.NewNegotiationReply(txsocks5.MethodUsernamePassword).WriteTo(serverConn); err != nil {
			return err
		}
		urq, err := txsocks5.NewUserPassNegotiationRequestFrom(serverConn)
		if err != nil {
			return err
		}
		if string(urq.Uname) != auth.Username || string(urq.Passwd) != auth.Password {
			return errors.New("bad credentials")
		}
		if _, err := txsocks5.NewUserPassNegotiationReply(txsocks5.UserPassStatusSuccess).WriteTo(serverConn); err != nil {
			return err
		}
		if _, err := ReadRequest(serverConn); err != nil {
			return err
		}
		return WriteSuccessReply(serverConn)
	})

	if err := ClientDial(clientConn, auth, "127.0.0.1:80"); err != nil {
		t.Fatal(err)
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestClientConnectRefused(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	g := errgroup.Group{}
	g.Go(func() error {
		if _, err := ReadRequest(serverConn); err != nil {
			return err
		}
		return WriteHostUnreachableReply(serverConn)
	})

	err := ClientConnect(clientConn, "127.0.0.1:1")
	if !errors.Is(err, ReplyError(RepHostUnreachable)) {
		t.Fatalf("got %v", err)
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}
