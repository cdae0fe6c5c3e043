package hooks

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"kvmux/internal/obs"
	"kvmux/internal/wire"
)

func TestMetricsHookCountsByKindAndStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := obs.NewMetrics(reg)
	hook := MetricsHook(m)

	hook(wire.Request{Kind: wire.ReqHget}, wire.Response{Status: wire.StatusOK}, time.Millisecond)
	hook(wire.Request{Kind: wire.ReqHget}, wire.Response{Status: wire.StatusNotFound}, time.Millisecond)

	if got := testutil.ToFloat64(m.CommandsTotal.WithLabelValues("Hget", "ok")); got != 1 {
		t.Fatalf("ok count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CommandsTotal.WithLabelValues("Hget", "not_found")); got != 1 {
		t.Fatalf("not_found count = %v, want 1", got)
	}
}

func TestMetricsHookObservesDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := obs.NewMetrics(reg)
	hook := MetricsHook(m)

	hook(wire.Request{Kind: wire.ReqHset}, wire.Response{Status: wire.StatusOK}, 5*time.Millisecond)
	hook(wire.Request{Kind: wire.ReqHget}, wire.Response{Status: wire.StatusOK}, time.Millisecond)

	if n := testutil.CollectAndCount(m.CommandDuration); n != 2 {
		t.Fatalf("expected one observed duration series per kind, got %d", n)
	}
}
