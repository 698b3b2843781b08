// Package metrics records lookup counts and latencies for a sync run and
// writes them in the Prometheus textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pdiddy/bibsync/pkg/types"
)

// Recorder holds the Prometheus instruments for source lookups.
type Recorder struct {
	registry *prometheus.Registry
	lookups  *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bibsync_lookups_total",
			Help: "Total number of source lookups by outcome.",
		}, []string{"source", "outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bibsync_lookup_failures_total",
			Help: "Total number of failed source lookups by failure kind.",
		}, []string{"source", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bibsync_lookup_duration_seconds",
			Help:    "Duration of source lookups in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
	}
	r.registry.MustRegister(r.lookups, r.failures, r.duration)
	return r
}

// ObserveLookup records one lookup attempt. A nil Recorder is a no-op.
func (r *Recorder) ObserveLookup(source string, out types.Outcome, d time.Duration) {
	if r == nil {
		return
	}
	r.lookups.WithLabelValues(source, out.Kind.String()).Inc()
	if out.Kind == types.Failed {
		r.failures.WithLabelValues(source, out.Failure.String()).Inc()
	}
	r.duration.WithLabelValues(source).Observe(d.Seconds())
}

// Registry returns the registry holding the recorder's instruments.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes all metrics to path for the node exporter textfile
// collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
