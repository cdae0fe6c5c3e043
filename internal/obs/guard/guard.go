// Package guard implements admission control in front of the acceptor:
// a static, configuration-driven gate. It only ever rejects new
// connections/streams before they are admitted; it never interferes
// with an already-admitted request, so it cannot violate ordering or
// delivery guarantees elsewhere in the server.
package guard

import (
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"golang.org/x/time/rate"
)

// Config holds the static thresholds the guard enforces.
type Config struct {
	MaxConnections     int
	MaxGoroutines      int
	ConnRatePerSec     int
	CPURejectThreshold float64 // percent, 0 disables the check
}

// Guard enforces connection/stream admission limits.
type Guard struct {
	cfg    Config
	logger zerolog.Logger

	connLimiter *rate.Limiter
	connSem     chan struct{}
	streamSem   chan struct{}

	activeConns int64
}

// New returns a Guard enforcing cfg.
func New(cfg Config, logger zerolog.Logger) *Guard {
	g := &Guard{cfg: cfg, logger: logger}
	if cfg.ConnRatePerSec > 0 {
		g.connLimiter = rate.NewLimiter(rate.Limit(cfg.ConnRatePerSec), cfg.ConnRatePerSec*2)
	}
	if cfg.MaxConnections > 0 {
		g.connSem = make(chan struct{}, cfg.MaxConnections)
	}
	if cfg.MaxGoroutines > 0 {
		g.streamSem = make(chan struct{}, cfg.MaxGoroutines)
	}
	return g
}

// AdmitConnection reports whether a newly accepted TCP connection may
// proceed to the TLS handshake. Call ReleaseConnection when the
// connection closes.
func (g *Guard) AdmitConnection() bool {
	if g.connLimiter != nil && !g.connLimiter.Allow() {
		g.logger.Debug().Msg("guard: connection rejected, rate limit exceeded")
		return false
	}
	if g.cfg.CPURejectThreshold > 0 {
		if pct, err := currentCPUPercent(); err == nil && pct > g.cfg.CPURejectThreshold {
			g.logger.Debug().Float64("cpu_pct", pct).Msg("guard: connection rejected, CPU overload")
			return false
		}
	}
	if g.connSem != nil {
		select {
		case g.connSem <- struct{}{}:
		default:
			g.logger.Debug().Msg("guard: connection rejected, at max connections")
			return false
		}
	}
	atomic.AddInt64(&g.activeConns, 1)
	return true
}

// ReleaseConnection releases the slot acquired by a successful AdmitConnection.
func (g *Guard) ReleaseConnection() {
	atomic.AddInt64(&g.activeConns, -1)
	if g.connSem != nil {
		<-g.connSem
	}
}

// AdmitStream reports whether a new logical stream may be handed to the
// pipeline. Call ReleaseStream when the stream's handler returns.
func (g *Guard) AdmitStream() bool {
	if g.streamSem == nil {
		return true
	}
	select {
	case g.streamSem <- struct{}{}:
		return true
	default:
		return false
	}
}

// ReleaseStream releases the slot acquired by a successful AdmitStream.
func (g *Guard) ReleaseStream() {
	if g.streamSem != nil {
		<-g.streamSem
	}
}

// ActiveConnections returns the current admitted-connection count.
func (g *Guard) ActiveConnections() int64 { return atomic.LoadInt64(&g.activeConns) }

func currentCPUPercent() (float64, error) {
	pcts, err := cpu.Percent(0, false)
	if err != nil || len(pcts) == 0 {
		return 0, err
	}
	return pcts[0], nil
}
