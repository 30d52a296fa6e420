// Package metrics provides Prometheus metrics for the DMR relay.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "dmrelay"
)

// Metrics contains all Prometheus metrics for the relay.
type Metrics struct {
	// Data path metrics
	PacketsReceived prometheus.Counter
	PacketsRelayed  prometheus.Counter
	BytesReceived   prometheus.Counter
	BytesSent       prometheus.Counter
	FramesByType    *prometheus.CounterVec
	FramesDropped   prometheus.Counter
	SendErrors      prometheus.Counter

	// Registry metrics
	ClientsActive  prometheus.Gauge
	ClientsTotal   prometheus.Counter
	ClientRemovals *prometheus.CounterVec
	RegistryFull   prometheus.Counter

	// Collaborator metrics
	StoreErrors *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the default metrics instance.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a new Metrics instance with a custom registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		PacketsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "Total datagrams received",
		}),
		PacketsRelayed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_relayed_total",
			Help:      "Total frames relayed to other clients",
		}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Total bytes received",
		}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Total bytes sent to clients",
		}),
		FramesByType: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Total decoded frames by type",
		}, []string{"frame_type"}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Total malformed datagrams dropped",
		}),
		SendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_errors_total",
			Help:      "Total per-destination send failures",
		}),

		ClientsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clients_active",
			Help:      "Number of currently active clients",
		}),
		ClientsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clients_total",
			Help:      "Total client registrations",
		}),
		ClientRemovals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_removals_total",
			Help:      "Total client removals by reason",
		}, []string{"reason"}),
		RegistryFull: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_full_total",
			Help:      "Total registrations rejected at capacity",
		}),

		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Total audit store failures by operation",
		}, []string{"op"}),
	}

	return m
}

// RecordFrameReceived records a decoded inbound frame.
func (m *Metrics) RecordFrameReceived(frameType string) {
	m.FramesByType.WithLabelValues(frameType).Inc()
}

// RecordClientConnect records a new client registration.
func (m *Metrics) RecordClientConnect() {
	m.ClientsActive.Inc()
	m.ClientsTotal.Inc()
}

// RecordClientRemoval records a client removal.
func (m *Metrics) RecordClientRemoval(reason string) {
	m.ClientsActive.Dec()
	m.ClientRemovals.WithLabelValues(reason).Inc()
}

// RecordStoreError records an audit store failure.
func (m *Metrics) RecordStoreError(op string) {
	m.StoreErrors.WithLabelValues(op).Inc()
}
