package hooks

import (
	"time"

	"kvmux/internal/obs"
	"kvmux/internal/wire"
)

// MetricsHook returns an AfterSend hook recording per-command counts,
// status, and dispatch latency into m. Subscription gauges are not
// tracked here: package broker owns SubscriptionsActive directly, since
// it is the only component that also sees a subscription end implicitly
// (stream/connection teardown without an explicit Unsubscribe).
func MetricsHook(m *obs.Metrics) func(wire.Request, wire.Response, time.Duration) {
	return func(req wire.Request, resp wire.Response, dur time.Duration) {
		kind := req.Kind.String()
		status := statusLabel(resp.Status)
		m.CommandsTotal.WithLabelValues(kind, status).Inc()
		m.CommandDuration.WithLabelValues(kind).Observe(dur.Seconds())
	}
}

func statusLabel(status uint32) string {
	switch status {
	case wire.StatusOK:
		return "ok"
	case wire.StatusBadFrame:
		return "bad_frame"
	case wire.StatusNotFound:
		return "not_found"
	case wire.StatusInvalid:
		return "invalid"
	case wire.StatusInternal:
		return "internal"
	default:
		return "unknown"
	}
}
