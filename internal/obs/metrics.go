package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exposed on the admin port.
type Metrics struct {
	ConnectionsTotal    prometheus.Counter
	ConnectionsActive   prometheus.Gauge
	ConnectionsRejected prometheus.Counter

	StreamsTotal  prometheus.Counter
	StreamsActive prometheus.Gauge

	CommandsTotal       *prometheus.CounterVec
	CommandDuration     *prometheus.HistogramVec
	SubscriptionsActive prometheus.Gauge
	PublishDropped      prometheus.Counter
}

// NewMetrics registers and returns the server's metric set against a
// fresh registry, so multiple Server instances in tests don't collide
// on the default global registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvmux_connections_total",
			Help: "Total number of TCP connections accepted.",
		}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvmux_connections_active",
			Help: "Current number of admitted connections.",
		}),
		ConnectionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvmux_connections_rejected_total",
			Help: "Total number of connections rejected by the admission guard.",
		}),
		StreamsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvmux_streams_total",
			Help: "Total number of logical streams accepted.",
		}),
		StreamsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvmux_streams_active",
			Help: "Current number of streams being handled.",
		}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kvmux_commands_total",
			Help: "Total number of commands dispatched, by kind and status.",
		}, []string{"kind", "status"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kvmux_command_duration_seconds",
			Help:    "Command dispatch latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		SubscriptionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvmux_subscriptions_active",
			Help: "Current number of open subscriptions.",
		}),
		PublishDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvmux_publish_dropped_total",
			Help: "Total number of messages dropped by the drop-oldest backpressure policy.",
		}),
	}

	reg.MustRegister(
		m.ConnectionsTotal, m.ConnectionsActive, m.ConnectionsRejected,
		m.StreamsTotal, m.StreamsActive,
		m.CommandsTotal, m.CommandDuration,
		m.SubscriptionsActive, m.PublishDropped,
	)
	return m
}

// Handler returns an admin-port mux serving /metrics and /healthz
// (the supplemented operational surface).
func Handler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}
