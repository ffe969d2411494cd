package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Storage population metrics, sampled periodically by Collector.
	BlobsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "keyring_blobs_total",
			Help: "Total number of blobs stored",
		},
	)

	DocumentsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "keyring_documents_total",
			Help: "Total number of documents stored",
		},
	)

	// Request metrics, recorded by the dispatcher for every request handled.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyring_requests_total",
			Help: "Total number of requests by tag and outcome",
		},
		[]string{"tag", "outcome"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "keyring_request_duration_seconds",
			Help:    "Request handling duration in seconds by tag",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tag"},
	)

	// Sync metrics, recorded on GetRoots/GetChanges/ApplyChanges.
	MerkleRootDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "keyring_merkle_root_duration_seconds",
			Help:    "Time to build the per-document roots list for GetRoots",
			Buckets: prometheus.DefBuckets,
		},
	)

	ChangesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "keyring_changes_sent_total",
			Help: "Total number of document changes sent in response to GetChanges",
		},
	)

	ChangesAppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyring_changes_applied_total",
			Help: "Total number of document changes applied by ApplyChanges, by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(BlobsTotal)
	prometheus.MustRegister(DocumentsTotal)
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(MerkleRootDuration)
	prometheus.MustRegister(ChangesSentTotal)
	prometheus.MustRegister(ChangesAppliedTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
