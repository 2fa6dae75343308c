// Package metric provides the Prometheus registry and the pipeline's core
// metrics. Components receive the registry at construction; a nil registry
// disables instrumentation (nil input = nil feature).
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "acuaponia"

// Metrics contains the pipeline-level metrics shared across components.
type Metrics struct {
	// Ingestion
	ReadingsIngested *prometheus.CounterVec // by kind
	ReadingsDropped  *prometheus.CounterVec // by reason
	IngestQueueDepth prometheus.Gauge

	// Alerting
	AlertsCreated       *prometheus.CounterVec // by severity
	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter

	// Broker
	BrokerConnected  prometheus.Gauge
	BrokerReconnects prometheus.Counter

	// Fan-out
	FanoutClients      prometheus.Gauge
	FanoutMessagesSent *prometheus.CounterVec // by channel

	// Emitters
	EmittersActive prometheus.Gauge
}

// Registry owns the Prometheus registry and the core metrics registered
// on it.
type Registry struct {
	registry *prometheus.Registry
	Metrics  *Metrics
}

// NewRegistry creates a registry with the core pipeline metrics and Go
// runtime collectors registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		ReadingsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "readings_total",
			Help: "Readings persisted, by measurement kind",
		}, []string{"kind"}),
		ReadingsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "dropped_total",
			Help: "Incoming messages dropped before persistence, by reason",
		}, []string{"reason"}),
		IngestQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "queue_depth",
			Help: "Current ingestion worker pool queue depth",
		}),
		AlertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "alerting", Name: "alerts_total",
			Help: "Alerts created, by severity",
		}, []string{"severity"}),
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "notify", Name: "sent_total",
			Help: "Outbound notifications delivered",
		}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "notify", Name: "failed_total",
			Help: "Outbound notification deliveries that failed",
		}),
		BrokerConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "broker", Name: "connected",
			Help: "Broker connection state (1 = connected)",
		}),
		BrokerReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "broker", Name: "reconnects_total",
			Help: "Completed mid-session reconnect rounds",
		}),
		FanoutClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "fanout", Name: "clients_connected",
			Help: "Currently connected live clients",
		}),
		FanoutMessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fanout", Name: "messages_sent_total",
			Help: "Messages pushed to live clients, by channel",
		}, []string{"channel"}),
		EmittersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "emitter", Name: "active",
			Help: "Synthetic emitters currently scheduled",
		}),
	}

	reg.MustRegister(
		m.ReadingsIngested, m.ReadingsDropped, m.IngestQueueDepth,
		m.AlertsCreated, m.NotificationsSent, m.NotificationsFailed,
		m.BrokerConnected, m.BrokerReconnects,
		m.FanoutClients, m.FanoutMessagesSent,
		m.EmittersActive,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Registry{registry: reg, Metrics: m}
}

// PrometheusRegistry returns the underlying registry for additional
// component-level registrations.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
