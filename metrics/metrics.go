package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the scraper.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec
	RecordsTotal  *prometheus.CounterVec
	FetchTotal    *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	SinkErrors    *prometheus.CounterVec
}

// NewMetrics registers the metrics on reg. Passing a fresh registry keeps
// tests independent of the global one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tender_scraper_runs_total",
			Help: "The total number of scrape runs by outcome",
		}, []string{"status"}), // 'ok', 'empty', 'failed'
		RecordsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tender_scraper_records_total",
			Help: "The total number of records extracted by strategy",
		}, []string{"strategy"}),
		FetchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tender_scraper_fetch_total",
			Help: "Page fetches by outcome",
		}, []string{"outcome"}), // 'ok', 'transport', 'session', 'canceled'
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tender_scraper_fetch_duration_seconds",
			Help:    "Page fetch latency",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"outcome"}),
		SinkErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tender_scraper_sink_errors_total",
			Help: "Sink write failures by sink",
		}, []string{"sink"}),
	}
}

func (m *Metrics) IncRun(status string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) AddRecords(strategy string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.RecordsTotal.WithLabelValues(strategy).Add(float64(n))
}

func (m *Metrics) ObserveFetch(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchTotal.WithLabelValues(outcome).Inc()
	m.FetchDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) IncSinkError(sink string) {
	if m == nil {
		return
	}
	m.SinkErrors.WithLabelValues(sink).Inc()
}
