// Package promhooks exports cache events as Prometheus metrics.
package promhooks

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/revalcache"
)

type Options struct {
	Registerer prometheus.Registerer // if nil, prometheus.DefaultRegisterer
	Namespace  string                // default "revalcache"
	Subsystem  string
	Buckets    []float64 // regeneration duration buckets; default prometheus.DefBuckets
}

type Hooks struct {
	lookups       *prometheus.CounterVec
	skipped       prometheus.Counter
	regenerations *prometheus.CounterVec
	regenDuration prometheus.Histogram
	writeFailures prometheus.Counter
	evictions     prometheus.Counter
}

var _ revalcache.Hooks = (*Hooks)(nil)

// New registers the collectors. It fails if any of them is already
// registered with the same Registerer.
func New(opts Options) (*Hooks, error) {
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}
	if opts.Namespace == "" {
		opts.Namespace = "revalcache"
	}
	if len(opts.Buckets) == 0 {
		opts.Buckets = prometheus.DefBuckets
	}

	h := &Hooks{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      "lookups_total",
			Help:      "Cache lookups by value kind and result.",
		}, []string{"kind", "status"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      "regenerations_skipped_total",
			Help:      "Regeneration requests dropped because one was already in flight.",
		}),
		regenerations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      "regenerations_total",
			Help:      "Finished background regenerations by result.",
		}, []string{"result"}),
		regenDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      "regeneration_duration_seconds",
			Help:      "Wall time of background regenerations.",
			Buckets:   opts.Buckets,
		}),
		writeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      "background_write_failures_total",
			Help:      "Asynchronous call-result writes that failed.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      "registry_evictions_total",
			Help:      "Keys dropped from the revalidation registry.",
		}),
	}

	for _, c := range []prometheus.Collector{
		h.lookups, h.skipped, h.regenerations, h.regenDuration, h.writeFailures, h.evictions,
	} {
		if err := opts.Registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) Lookup(kind revalcache.Kind, _ string, status revalcache.CacheStatus) {
	h.lookups.WithLabelValues(string(kind), string(status)).Inc()
}

func (h *Hooks) RegenerationSkipped(string) { h.skipped.Inc() }

func (h *Hooks) Regeneration(_ string, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	h.regenerations.WithLabelValues(result).Inc()
	h.regenDuration.Observe(took.Seconds())
}

func (h *Hooks) BackgroundWriteFailed(string, error) { h.writeFailures.Inc() }
func (h *Hooks) RegistryEvicted(string)              { h.evictions.Inc() }
