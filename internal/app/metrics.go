package app

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	opGet  = "get"
	opSave = "save"

	outcomeHit     = "hit"
	outcomeMiss    = "miss"
	outcomeAbsent  = "absent"
	outcomeOK      = "ok"
	outcomeInvalid = "invalid"
	outcomeError   = "error"
)

// Metrics instruments the profile service. A nil *Metrics records nothing.
type Metrics struct {
	Operations   *prometheus.CounterVec
	StoreLatency *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "posture_profile_operations_total",
			Help: "Profile Get and Save calls by outcome",
		}, []string{"op", "outcome"}),
		StoreLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "posture_profile_store_duration_seconds",
			Help:    "Latency of profile store calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "result"}),
	}
}

func (m *Metrics) operation(op, outcome string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) storeCall(op string, started time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.StoreLatency.WithLabelValues(op, result).Observe(time.Since(started).Seconds())
}
