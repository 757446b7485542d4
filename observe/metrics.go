package observe

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the harvester.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	RecordsTotal    *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
	SessionsTotal   *prometheus.CounterVec

	// Classify maps an error to an error_type label. Defaults to "other".
	Classify func(error) string
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_requests_total",
			Help: "Total ratings page requests by phase.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvest_request_duration_seconds",
			Help:    "Latency of ratings page requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	records := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_records_total",
			Help: "Total review records harvested by source.",
		},
		[]string{"source"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_errors_total",
			Help: "Total harvest errors by type.",
		},
		[]string{"error_type"},
	)
	sessions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_sessions_total",
			Help: "Finished extraction passes by terminal status.",
		},
		[]string{"status"},
	)

	registry.MustRegister(requests, requestDuration, records, errorsTotal, sessions)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		RecordsTotal:    records,
		ErrorsTotal:     errorsTotal,
		SessionsTotal:   sessions,
	}
}

// Observe updates counters from a harvest event.
func (m *Metrics) Observe(e Event) {
	if m == nil {
		return
	}
	switch e.Kind {
	case PageRequested:
		m.IncRequest("started")
	case PageFetched:
		m.IncRequest("fetched")
		m.ObserveDuration(e.Duration)
	case CrawlFinished:
		m.AddRecords("api", e.Collected)
		m.SessionsTotal.WithLabelValues(string(e.Status)).Inc()
		if e.Err != nil {
			m.IncError(m.classify(e.Err))
		}
	case RenderFinished:
		m.AddRecords("rendered", e.Collected)
		if e.Err != nil {
			m.SessionsTotal.WithLabelValues("failed").Inc()
			m.IncError("render")
			return
		}
		m.SessionsTotal.WithLabelValues("completed").Inc()
	}
}

func (m *Metrics) classify(err error) string {
	if m.Classify == nil {
		return "other"
	}
	return m.Classify(err)
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records a request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// AddRecords adds n harvested records for a source.
func (m *Metrics) AddRecords(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsTotal.WithLabelValues(source).Add(float64(n))
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
