package generator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Metrics はバッチ生成の Prometheus メトリクスです。nil のまま使うと何も記録しません。
type Metrics struct {
	attempts *prometheus.CounterVec
	batches  *prometheus.CounterVec
	duration prometheus.Histogram
	inFlight prometheus.Gauge
}

// NewMetrics はメトリクスを生成し reg に登録します。reg が nil の場合は登録しません。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storyboard_render_attempts_total",
			Help: "Number of individual render attempts by outcome.",
		}, []string{"outcome"}),
		batches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storyboard_generation_batches_total",
			Help: "Number of generation batches by final status.",
		}, []string{"status"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "storyboard_generation_batch_duration_seconds",
			Help:    "Wall time of a generation batch until all attempts settled.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "storyboard_generation_batches_in_flight",
			Help: "Number of generation batches currently running.",
		}),
	}
}

func (m *Metrics) attempt(outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) batch(status Status) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) observe(d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) batchStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) batchDone() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}
