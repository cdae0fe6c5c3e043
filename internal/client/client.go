// Package client implements a connection to a kvmux server: one TLS+TCP
// connection carrying a yamux session, opening one logical stream per
// Do call, since yamux streams are cheap to open and close.
package client

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/hashicorp/yamux"

	"kvmux/internal/frame"
	"kvmux/internal/wire"
)

// Config configures a Client connection.
type Config struct {
	Addr              string
	TLS               *tls.Config
	DialTimeout       time.Duration // default 5s
	HandshakeTimeout  time.Duration // default 5s
}

// Client holds a single yamux session over one TLS connection. It is
// safe for concurrent use: each Do call opens its own stream.
type Client struct {
	session *yamux.Session
	conn    net.Conn
}

// Dial opens the TCP connection, performs the TLS handshake, and opens
// a yamux session.
func Dial(cfg Config) (*Client, error) {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 5 * time.Second
	}

	rawConn, err := net.DialTimeout("tcp", cfg.Addr, cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", cfg.Addr, err)
	}

	tlsConn := tls.Client(rawConn, cfg.TLS)
	if err := tlsConn.SetDeadline(time.Now().Add(cfg.HandshakeTimeout)); err != nil {
		rawConn.Close()
		return nil, fmt.Errorf("client: set handshake deadline: %w", err)
	}
	if err := tlsConn.Handshake(); err != nil {
		tlsConn.Close()
		return nil, fmt.Errorf("client: TLS handshake: %w", err)
	}
	tlsConn.SetDeadline(time.Time{})

	session, err := yamux.Client(tlsConn, yamux.DefaultConfig())
	if err != nil {
		tlsConn.Close()
		return nil, fmt.Errorf("client: yamux session: %w", err)
	}

	return &Client{session: session, conn: tlsConn}, nil
}

// Close tears down the session and its underlying connection. Any
// streams opened by in-flight Do calls are implicitly cancelled.
func (c *Client) Close() error {
	return c.session.Close()
}

// Do opens one logical stream, writes req, and returns a channel of
// responses. For ordinary commands the channel yields exactly one
// response then closes; for Subscribe it stays open until the caller
// closes the returned stream via Unsubscribe or Close.
func (c *Client) Do(req wire.Request) (<-chan wire.Response, func() error, error) {
	st, err := c.session.OpenStream()
	if err != nil {
		return nil, nil, fmt.Errorf("client: open stream: %w", err)
	}

	if err := frame.WriteRequest(st, req); err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("client: write request: %w", err)
	}

	out := make(chan wire.Response)
	go func() {
		defer close(out)
		for {
			resp, err := frame.ReadResponse(st)
			if err != nil {
				return
			}
			out <- resp
			if req.Kind != wire.ReqSubscribe {
				return
			}
		}
	}()

	return out, st.Close, nil
}
