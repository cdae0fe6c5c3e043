// Package transport implements TCP accept, TLS termination,
// and per-connection stream multiplexing (yamux-compatible semantics),
// handing each new logical stream to package stream.
package transport

import (
	"crypto/tls"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/hashicorp/yamux"
	"github.com/rs/zerolog"

	"kvmux/internal/obs"
	"kvmux/internal/obs/guard"
	"kvmux/internal/pipeline"
	"kvmux/internal/stream"
)

// ServerConfig configures the acceptor.
type ServerConfig struct {
	Addr              string
	TLS               *tls.Config
	HandshakeTimeout  time.Duration // default 5s
	KeepAlive         time.Duration
	Guard             *guard.Guard // optional admission control
	Metrics           *obs.Metrics // optional Prometheus counters
	MaxStreamsPerConn int          // 0 means unlimited
}

// Server accepts TCP connections, performs the TLS handshake, and runs
// a yamux session per connection, handing each new logical stream to
// the command pipeline via package stream.
type Server struct {
	cfg      ServerConfig
	pipeline *pipeline.Pipeline
	logger   zerolog.Logger

	listener net.Listener
}

// NewServer returns a Server bound to cfg.Addr (not yet listening).
func NewServer(cfg ServerConfig, p *pipeline.Pipeline, logger zerolog.Logger) *Server {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 5 * time.Second
	}
	return &Server{cfg: cfg, pipeline: p, logger: logger}
}

// Serve listens and accepts connections until the listener is closed
// (via Close) or Accept returns any other error; accept errors are not
// retried.
func (s *Server) Serve() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	s.logger.Info().Str("addr", s.cfg.Addr).Msg("listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("transport: accept: %w", err)
		}

		if s.cfg.Guard != nil && !s.cfg.Guard.AdmitConnection() {
			s.logger.Warn().Str("remote", conn.RemoteAddr().String()).Msg("connection rejected by admission guard")
			if s.cfg.Metrics != nil {
				s.cfg.Metrics.ConnectionsRejected.Inc()
			}
			conn.Close()
			continue
		}
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.ConnectionsTotal.Inc()
			s.cfg.Metrics.ConnectionsActive.Inc()
		}

		if tc, ok := conn.(*net.TCPConn); ok {
			tc.SetKeepAlive(true)
			if s.cfg.KeepAlive > 0 {
				tc.SetKeepAlivePeriod(s.cfg.KeepAlive)
			}
		}

		go s.handleConn(conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() {
		if s.cfg.Guard != nil {
			s.cfg.Guard.ReleaseConnection()
		}
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.ConnectionsActive.Dec()
		}
	}()

	tlsConn := tls.Server(conn, s.cfg.TLS)
	if err := tlsConn.SetDeadline(time.Now().Add(s.cfg.HandshakeTimeout)); err != nil {
		s.logger.Warn().Err(err).Msg("set handshake deadline")
	}
	if err := tlsConn.Handshake(); err != nil {
		s.logger.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("TLS handshake failed")
		tlsConn.Close()
		return
	}
	tlsConn.SetDeadline(time.Time{})

	cfg := yamux.DefaultConfig()
	session, err := yamux.Server(tlsConn, cfg)
	if err != nil {
		s.logger.Warn().Err(err).Msg("yamux session setup failed")
		tlsConn.Close()
		return
	}
	defer session.Close()

	var openStreams int64

	for {
		st, err := session.AcceptStream()
		if err != nil {
			// Session/connection closed; all its streams are implicitly
			// cancelled (closing the TCP connection cancels all its
			// logical streams).
			return
		}
		if s.cfg.MaxStreamsPerConn > 0 && atomic.LoadInt64(&openStreams) >= int64(s.cfg.MaxStreamsPerConn) {
			st.Close()
			continue
		}
		if s.cfg.Guard != nil && !s.cfg.Guard.AdmitStream() {
			st.Close()
			continue
		}
		atomic.AddInt64(&openStreams, 1)
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.StreamsTotal.Inc()
			s.cfg.Metrics.StreamsActive.Inc()
		}
		g := s.cfg.Guard
		metrics := s.cfg.Metrics
		go func() {
			defer atomic.AddInt64(&openStreams, -1)
			if g != nil {
				defer g.ReleaseStream()
			}
			if metrics != nil {
				defer metrics.StreamsActive.Dec()
			}
			stream.Handle(st, s.pipeline, s.logger)
		}()
	}
}
