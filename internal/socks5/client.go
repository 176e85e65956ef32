package socks5

import (
	"errors"
	"fmt"
	"io"

	txsocks5 "github.com/txthinking/socks5"
)

// Auth holds optional username/password credentials offered to an upstream
// SOCKS5 server. socksd itself never asks clients for credentials.
type Auth struct {
	Username string
	Password string
}

var (
	errAuthRequired = errors.New("server requires username/password")
	errAuthFailed   = errors.New("username/password rejected")
)

// ReplyError is a non-success REP value received from a SOCKS5 server.
type ReplyError byte

// RFC 1928 section 6, indexed by REP.
var replyText = [...]string{
	"succeeded",
	"general SOCKS server failure",
	"connection not allowed by ruleset",
	"network unreachable",
	"host unreachable",
	"connection refused",
	"TTL expired",
	"command not supported",
	"address type not supported",
}

func (r ReplyError) Error() string {
	if int(r) < len(replyText) {
		return replyText[r]
	}
	return fmt.Sprintf("unknown SOCKS5 reply: %#x", byte(r))
}

// ClientDial negotiates with a SOCKS5 server over rw and asks it to CONNECT
// to address. On success rw carries the tunneled stream.
func ClientDial(rw io.ReadWriter, auth Auth, address string) error {
	if err := ClientNegotiate(rw, auth); err != nil {
		return err
	}
	return ClientConnect(rw, address)
}

// ClientNegotiate offers "no authentication", plus username/password when
// auth carries a username, and completes whichever the server picks.
func ClientNegotiate(rw io.ReadWriter, auth Auth) error {
	methods := []byte{MethodNone}
	if auth.Username != "" {
		methods = append(methods, txsocks5.MethodUsernamePassword)
	}

	if _, err := txsocks5.NewNegotiationRequest(methods).WriteTo(rw); err != nil {
		return fmt.Errorf("write negotiation: %w", err)
	}

	neg, err := txsocks5.NewNegotiationReplyFrom(rw)
	if err != nil {
		return fmt.Errorf("read negotiation: %w", err)
	}

	switch neg.Method {
	case MethodNone:
		return nil
	case txsocks5.MethodUsernamePassword:
		if auth.Username == "" {
			return errAuthRequired
		}
		return clientUserPass(rw, auth)
	default:
		return fmt.Errorf("unsupported negotiation method: %#x", neg.Method)
	}
}

func clientUserPass(rw io.ReadWriter, auth Auth) error {
	req := txsocks5.NewUserPassNegotiationRequest([]byte(auth.Username), []byte(auth.Password))
	if _, err := req.WriteTo(rw); err != nil {
		return fmt.Errorf("write userpass: %w", err)
	}

	rep, err := txsocks5.NewUserPassNegotiationReplyFrom(rw)
	if err != nil {
		return fmt.Errorf("read userpass: %w", err)
	}
	if rep.Status != txsocks5.UserPassStatusSuccess {
		return errAuthFailed
	}
	return nil
}

// ClientConnect sends a CONNECT request for address and waits for the reply.
// A non-success reply is returned as a ReplyError.
func ClientConnect(rw io.ReadWriter, address string) error {
	atyp, dstAddr, dstPort, err := txsocks5.ParseAddress(address)
	if err != nil {
		return fmt.Errorf("parse address: %w", err)
	}
	// NewRequest adds the length prefix back for domain names.
	if atyp == ATYPDomain {
		dstAddr = dstAddr[1:]
	}

	if _, err := txsocks5.NewRequest(CmdConnect, atyp, dstAddr, dstPort).WriteTo(rw); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	rep, err := txsocks5.NewReplyFrom(rw)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if rep.Rep != RepSuccess {
		return fmt.Errorf("connect %s: %w", address, ReplyError(rep.Rep))
	}
	return nil
}
