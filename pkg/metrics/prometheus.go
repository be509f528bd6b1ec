package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	pagesFetched   prometheus.Counter
	fetchStops     *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	marketsRanked  prometheus.Gauge
	marketsFetched prometheus.Gauge
	published      *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New creates a recorder registered on the default registry. Call it once per process.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		pagesFetched: f.NewCounter(prometheus.CounterOpts{
			Name: "kalshiflow_pages_fetched_total",
			Help: "Market pages successfully retrieved from the Kalshi API",
		}),
		fetchStops: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kalshiflow_fetch_stops_total",
				Help: "Why paginated fetches ended",
			},
			[]string{"reason"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kalshiflow_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		marketsRanked: f.NewGauge(prometheus.GaugeOpts{
			Name: "kalshiflow_markets_ranked",
			Help: "Markets returned by the last ranking",
		}),
		marketsFetched: f.NewGauge(prometheus.GaugeOpts{
			Name: "kalshiflow_markets_fetched",
			Help: "Raw markets retrieved by the last fetch",
		}),
		published: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kalshiflow_snapshots_published_total",
				Help: "Analyzed market snapshots handed to the event stream",
			},
			[]string{"result"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kalshiflow_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 90},
			},
			[]string{"operation"},
		),
	}
}

// RecordPageFetched counts one retrieved page.
func (r *Recorder) RecordPageFetched() {
	r.pagesFetched.Inc()
}

// RecordFetchStop counts how a fetch ended: "exhausted", "page_cap", "signing", "transport", "status" ...
func (r *Recorder) RecordFetchStop(reason string) {
	r.fetchStops.WithLabelValues(reason).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordRanking stores the fetched and returned sizes of the last ranking.
func (r *Recorder) RecordRanking(fetched, ranked int) {
	r.marketsFetched.Set(float64(fetched))
	r.marketsRanked.Set(float64(ranked))
}

// RecordPublished counts snapshot messages by outcome.
func (r *Recorder) RecordPublished(count int, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	r.published.WithLabelValues(result).Add(float64(count))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) RecordPageFetched()            {}
func (Nop) RecordFetchStop(string)        {}
func (Nop) RecordError(string)            {}
func (Nop) RecordRanking(int, int)        {}
func (Nop) RecordPublished(int, bool)     {}
func (Nop) RecordLatency(string, float64) {}
