// Package prometheus exposes harness metrics: node lifecycle, command
// dispatch outcomes and latencies, and pending-table depth.
package prometheus

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DefaultRegistry is the registry behind the shared metrics instance.
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer labels everything registered through it.
	DefaultRegisterer = prometheus.WrapRegistererWith(prometheus.Labels{"service": "localnet"}, DefaultRegistry)

	metricsOnce sync.Once
	metrics     *Metrics
)

// Metrics implements core.Metrics over Prometheus collectors.
type Metrics struct {
	NodesLive         prometheus.Gauge
	NodesSpawnedTotal prometheus.Counter
	CommandsTotal     *prometheus.CounterVec
	DispatchDuration  *prometheus.HistogramVec
	PendingSlotsInUse prometheus.Gauge
}

// GetMetrics returns the shared metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics(DefaultRegisterer)
	})
	return metrics
}

// NewMetrics registers a fresh metrics collection with registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = DefaultRegisterer
	}

	return &Metrics{
		NodesLive: promauto.With(registerer).NewGauge(prometheus.GaugeOpts{
			Name: "localnet_nodes_live",
			Help: "Number of nodes currently running",
		}),
		NodesSpawnedTotal: promauto.With(registerer).NewCounter(prometheus.CounterOpts{
			Name: "localnet_nodes_spawned_total",
			Help: "Total number of nodes spawned",
		}),
		CommandsTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "localnet_commands_total",
				Help: "Total number of commands dispatched",
			},
			[]string{"method", "outcome"},
		),
		DispatchDuration: promauto.With(registerer).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "localnet_dispatch_duration_seconds",
				Help:    "Command dispatch duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		PendingSlotsInUse: promauto.With(registerer).NewGauge(prometheus.GaugeOpts{
			Name: "localnet_pending_slots_in_use",
			Help: "Outstanding outbound requests on the most recently observed node",
		}),
	}
}

// NodeStarted implements core.Metrics.
func (m *Metrics) NodeStarted() {
	m.NodesSpawnedTotal.Inc()
	m.NodesLive.Inc()
}

// NodeStopped implements core.Metrics.
func (m *Metrics) NodeStopped() {
	m.NodesLive.Dec()
}

// CommandDispatched implements core.Metrics.
func (m *Metrics) CommandDispatched(method, outcome string, seconds float64) {
	m.CommandsTotal.WithLabelValues(method, outcome).Inc()
	m.DispatchDuration.WithLabelValues(method).Observe(seconds)
}

// PendingSlots implements core.Metrics.
func (m *Metrics) PendingSlots(n int) {
	m.PendingSlotsInUse.Set(float64(n))
}
