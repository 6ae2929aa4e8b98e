// Package metrics exposes verification and notification counters to
// Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/geotagger/client/internal/bus"
	"github.com/geotagger/client/internal/geotagger"
)

// Recorder implements verify.Recorder and bus.Observer.
type Recorder struct {
	registry *prometheus.Registry

	attempts   *prometheus.CounterVec
	duration   prometheus.Histogram
	publishes  *prometheus.CounterVec
	deliveries *prometheus.CounterVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geotagger",
			Name:      "verification_attempts_total",
			Help:      "Finished guess verifications by status and feedback tier.",
		}, []string{"status", "tier"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "geotagger",
			Name:      "verification_duration_seconds",
			Help:      "Time spent waiting for the scoring backend.",
			Buckets:   prometheus.DefBuckets,
		}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geotagger",
			Name:      "bus_publishes_total",
			Help:      "Notifications published per topic.",
		}, []string{"topic"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geotagger",
			Name:      "bus_deliveries_total",
			Help:      "Handler invocations per topic.",
		}, []string{"topic"}),
	}
	r.registry.MustRegister(r.attempts, r.duration, r.publishes, r.deliveries)
	return r
}

func (r *Recorder) AttemptFinished(status geotagger.AttemptStatus, tier geotagger.Tier, elapsed time.Duration) {
	label := string(tier)
	if label == "" {
		label = "none"
	}
	r.attempts.WithLabelValues(string(status), label).Inc()
	r.duration.Observe(elapsed.Seconds())
}

func (r *Recorder) Published(topic bus.Topic, delivered int) {
	r.publishes.WithLabelValues(string(topic)).Inc()
	r.deliveries.WithLabelValues(string(topic)).Add(float64(delivered))
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
