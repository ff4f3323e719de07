// Package observability implements C13/the Observability Port: structured,
// single-line logging per component and a Prometheus registry of counters,
// gauges, and histograms over the core's admission, sealing, and search
// paths. Redaction policy lives here: callers never pass pattern ids or
// raw rejected content to an externally-visible event, only generic
// reason codes.
package observability

import (
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector the core reports. One Metrics
// is constructed per process and passed to pkg/core, which records every
// observation.
type Metrics struct {
	registry prometheus.Registerer

	PendingPoolDepth prometheus.Gauge
	BlocksSealed     prometheus.Counter
	ValidatorDecisions *prometheus.CounterVec
	MiningDuration   prometheus.Histogram
	EmbeddingStale   prometheus.Gauge
	EntriesRejected  *prometheus.CounterVec
}

// NewMetrics constructs and registers every collector against reg. Passing
// prometheus.NewRegistry() keeps test suites isolated from the global
// default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		registry: reg,
		PendingPoolDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledgercore",
			Subsystem: "pending",
			Name:      "depth",
			Help:      "Current number of validated entries awaiting a block.",
		}),
		BlocksSealed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledgercore",
			Subsystem: "chain",
			Name:      "blocks_sealed_total",
			Help:      "Total number of blocks successfully sealed and appended.",
		}),
		ValidatorDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgercore",
			Subsystem: "validator",
			Name:      "decisions_total",
			Help:      "Validator decisions by kind (VALID, NEEDS_CLARIFICATION, INVALID).",
		}, []string{"decision"}),
		MiningDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ledgercore",
			Subsystem: "miner",
			Name:      "mine_duration_seconds",
			Help:      "Wall-clock duration of a Mine call, successful or not.",
			Buckets:   prometheus.DefBuckets,
		}),
		EmbeddingStale: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledgercore",
			Subsystem: "embedding",
			Name:      "index_stale",
			Help:      "1 if the embedding index generation trails the chain tip, 0 otherwise.",
		}),
		EntriesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgercore",
			Subsystem: "entry",
			Name:      "rejected_total",
			Help:      "Entries rejected by reason code.",
		}, []string{"reason"}),
	}

	for _, c := range []prometheus.Collector{
		m.PendingPoolDepth, m.BlocksSealed, m.ValidatorDecisions,
		m.MiningDuration, m.EmbeddingStale, m.EntriesRejected,
	} {
		_ = reg.Register(c)
	}
	return m
}

// Logger constructs a component-scoped *log.Logger following the teacher's
// idiom: one logger per package/collaborator, prefixed with the component
// name, never a single global logger.
func Logger(component string) *log.Logger {
	return log.New(os.Stderr, "["+component+"] ", log.LstdFlags|log.Lmicroseconds)
}
