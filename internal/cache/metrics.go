package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts cache traffic. A nil *Metrics records nothing.
type Metrics struct {
	Hits          prometheus.Counter
	Misses        prometheus.Counter
	Sets          prometheus.Counter
	Evictions     prometheus.Counter
	Invalidations prometheus.Counter
	RejectedFills prometheus.Counter
}

// NewMetrics registers the cache counters with reg. A nil reg creates
// unregistered counters.
func NewMetrics(reg prometheus.Registerer, name string) *Metrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"cache": name}
	counter := func(metric, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Name:        "posture_cache_" + metric + "_total",
			Help:        help,
			ConstLabels: labels,
		})
	}
	return &Metrics{
		Hits:          counter("hits", "Cache lookups answered from memory"),
		Misses:        counter("misses", "Cache lookups that found no live entry"),
		Sets:          counter("sets", "Values stored in the cache"),
		Evictions:     counter("evictions", "Entries removed because their TTL passed"),
		Invalidations: counter("invalidations", "Explicit invalidations"),
		RejectedFills: counter("rejected_fills", "Fills refused because the key changed while loading"),
	}
}

func (m *Metrics) hit() {
	if m != nil {
		m.Hits.Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.Misses.Inc()
	}
}

func (m *Metrics) set() {
	if m != nil {
		m.Sets.Inc()
	}
}

func (m *Metrics) eviction() {
	if m != nil {
		m.Evictions.Inc()
	}
}

func (m *Metrics) invalidation() {
	if m != nil {
		m.Invalidations.Inc()
	}
}

func (m *Metrics) rejectedFill() {
	if m != nil {
		m.RejectedFills.Inc()
	}
}
