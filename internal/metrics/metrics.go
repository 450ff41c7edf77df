// Package metrics exposes Prometheus instrumentation of the session server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Snapshot sources.
const (
	SourcePoll    = "poll"
	SourceStream  = "stream"
	SourceArchive = "archive"
)

// Metrics holds the server collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	sessionsStarted  *prometheus.CounterVec
	sessionsFinished *prometheus.CounterVec
	eventsAppended   *prometheus.CounterVec
	snapshots        *prometheus.CounterVec
	active           prometheus.Gauge
}

// New creates the collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		sessionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "negarena",
			Name:      "sessions_started_total",
			Help:      "Sessions accepted, by kind.",
		}, []string{"kind"}),
		sessionsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "negarena",
			Name:      "sessions_finished_total",
			Help:      "Sessions that reached a terminal status, by kind and status.",
		}, []string{"kind", "status"}),
		eventsAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "negarena",
			Name:      "events_appended_total",
			Help:      "Events appended to session logs, by event kind.",
		}, []string{"kind"}),
		snapshots: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "negarena",
			Name:      "snapshot_requests_total",
			Help:      "Snapshots served, by source.",
		}, []string{"source"}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "negarena",
			Name:      "active_sessions",
			Help:      "Sessions not yet in a terminal status.",
		}),
	}
	return m
}

func (m *Metrics) SessionStarted(kind string) {
	m.sessionsStarted.WithLabelValues(kind).Inc()
}

func (m *Metrics) SessionFinished(kind, status string) {
	m.sessionsFinished.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) EventAppended(kind string) {
	m.eventsAppended.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetActive(n int) {
	m.active.Set(float64(n))
}

func (m *Metrics) SnapshotServed(source string) {
	m.snapshots.WithLabelValues(source).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
