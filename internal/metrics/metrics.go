// Package metrics exposes prometheus instruments for the posting pipeline.
// A nil *Pipeline is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "piecebook"

// Pipeline holds the counters and histograms of piece mutations.
type Pipeline struct {
	registry   *prometheus.Registry
	mutations  *prometheus.CounterVec
	rejections *prometheus.CounterVec
	conflicts  prometheus.Counter
	duration   *prometheus.HistogramVec
}

// New registers the pipeline instruments, plus the Go and process collectors,
// on a private registry.
func New() *Pipeline {
	reg := prometheus.NewRegistry()
	p := &Pipeline{
		registry: reg,
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "piece_mutations_total",
			Help:      "Committed piece mutations by action.",
		}, []string{"action"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "piece_rejections_total",
			Help:      "Rejected piece mutations by action and error kind.",
		}, []string{"action", "kind"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequence_conflicts_total",
			Help:      "Piece number collisions that caused an allocation retry.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "piece_mutation_duration_seconds",
			Help:      "Time spent in the posting pipeline, by action.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
	}
	reg.MustRegister(
		p.mutations, p.rejections, p.conflicts, p.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// Registry returns the registry holding the instruments.
func (p *Pipeline) Registry() *prometheus.Registry {
	if p == nil {
		return nil
	}
	return p.registry
}

// Handler serves the registry in the prometheus exposition format.
func (p *Pipeline) Handler() http.Handler {
	if p == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Committed records a successful mutation and its duration.
func (p *Pipeline) Committed(action string, elapsed time.Duration) {
	if p == nil {
		return
	}
	p.mutations.WithLabelValues(action).Inc()
	p.duration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// Rejected records a failed mutation.
func (p *Pipeline) Rejected(action, kind string, elapsed time.Duration) {
	if p == nil {
		return
	}
	p.rejections.WithLabelValues(action, kind).Inc()
	p.duration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// Conflict records one piece-number collision.
func (p *Pipeline) Conflict() {
	if p == nil {
		return
	}
	p.conflicts.Inc()
}
