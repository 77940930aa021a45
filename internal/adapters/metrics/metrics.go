// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tweet-cleaner/internal/usecases"
)

const namespace = "tweet_cleaner"

// Metrics implements usecases.Recorder and tracks run lifecycle.
type Metrics struct {
	PagesFetched   *prometheus.CounterVec
	PageEntries    prometheus.Histogram
	TweetsFound    prometheus.Counter
	DeleteAttempts *prometheus.CounterVec
	WaitSeconds    *prometheus.CounterVec
	RunsTotal      *prometheus.CounterVec
	RunActive      prometheus.Gauge
	RunDuration    prometheus.Histogram
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PagesFetched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timeline_pages_total",
			Help:      "Timeline pages fetched, by envelope shape (empty when unrecognized).",
		}, []string{"shape"}),
		PageEntries: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "timeline_page_entries",
			Help:      "Tweet entries per fetched page, before filtering.",
			Buckets:   []float64{0, 1, 5, 10, 20, 40, 80},
		}),
		TweetsFound: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tweets_collected_total",
			Help:      "Tweet ids collected for deletion.",
		}),
		DeleteAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delete_attempts_total",
			Help:      "Delete calls by result and HTTP status.",
		}, []string{"result", "status"}),
		WaitSeconds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wait_seconds_total",
			Help:      "Time spent pacing or backing off, by operation and error class.",
		}, []string{"op", "class"}),
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Cleaning runs by final status.",
		}, []string{"status"}),
		RunActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_active",
			Help:      "1 while a cleaning run is in progress.",
		}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of completed runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
}

func (m *Metrics) PageFetched(shape string, entries int) {
	m.PagesFetched.WithLabelValues(shape).Inc()
	m.PageEntries.Observe(float64(entries))
}

func (m *Metrics) TweetCollected(string) {
	m.TweetsFound.Inc()
}

func (m *Metrics) Waited(op string, class usecases.Class, d time.Duration) {
	m.WaitSeconds.WithLabelValues(op, class.String()).Add(d.Seconds())
}

func (m *Metrics) DeleteAttempt(_ string, result usecases.DeleteResult, status int) {
	m.DeleteAttempts.WithLabelValues(string(result), strconv.Itoa(status)).Inc()
}

// RunStarted marks a run as active.
func (m *Metrics) RunStarted() {
	m.RunActive.Set(1)
}

// RunFinished records the run's final status and duration.
func (m *Metrics) RunFinished(status string, elapsed time.Duration) {
	m.RunActive.Set(0)
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
}
