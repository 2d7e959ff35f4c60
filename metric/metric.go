// Package metric holds the Prometheus metrics recorded while building
// taxonomies. A nil *Metrics is valid and records nothing.
package metric

import (
	"errors"
	"time"

	"github.com/c360studio/taxorank/cost"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "taxorank"

// Metrics groups the oracle, engine and checkpoint collectors.
type Metrics struct {
	oracleCalls    *prometheus.CounterVec   // kind, class
	oracleDuration *prometheus.HistogramVec // kind
	oracleTokens   *prometheus.CounterVec   // kind, type

	conceptsCreated   prometheus.Counter
	unknownConcepts   prometheus.Counter
	expansionAttempts *prometheus.CounterVec // outcome
	levelsExpanded    prometheus.Counter

	checkpointWrites   *prometheus.CounterVec   // backend, status
	checkpointDuration *prometheus.HistogramVec // backend
}

// New creates the collectors and registers them with reg. A nil reg returns
// nil Metrics, which disables recording.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		oracleCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "calls_total",
			Help:      "Oracle calls by request kind and result class",
		}, []string{"kind", "class"}),

		oracleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "call_duration_seconds",
			Help:      "Oracle call latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"kind"}),

		oracleTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "tokens_total",
			Help:      "Tokens consumed by request kind and counter",
		}, []string{"kind", "type"}),

		conceptsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "concepts_created_total",
			Help:      "Concepts added to a taxonomy",
		}),

		unknownConcepts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "unknown_concepts_total",
			Help:      "Concepts moved to an unknown queue after exhausting the attempt budget",
		}),

		expansionAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "expansion_attempts_total",
			Help:      "Subconcept generation attempts by outcome",
		}, []string{"outcome"}),

		levelsExpanded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "levels_expanded_total",
			Help:      "Completed expand-one-level invocations",
		}),

		checkpointWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkpoint",
			Name:      "writes_total",
			Help:      "Checkpoint writes by backend and status",
		}, []string{"backend", "status"}),

		checkpointDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "checkpoint",
			Name:      "write_duration_seconds",
			Help:      "Checkpoint write latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend"}),
	}

	var err error
	if m.oracleCalls, err = register(reg, m.oracleCalls); err != nil {
		return nil, err
	}
	if m.oracleDuration, err = register(reg, m.oracleDuration); err != nil {
		return nil, err
	}
	if m.oracleTokens, err = register(reg, m.oracleTokens); err != nil {
		return nil, err
	}
	if m.conceptsCreated, err = register(reg, m.conceptsCreated); err != nil {
		return nil, err
	}
	if m.unknownConcepts, err = register(reg, m.unknownConcepts); err != nil {
		return nil, err
	}
	if m.expansionAttempts, err = register(reg, m.expansionAttempts); err != nil {
		return nil, err
	}
	if m.levelsExpanded, err = register(reg, m.levelsExpanded); err != nil {
		return nil, err
	}
	if m.checkpointWrites, err = register(reg, m.checkpointWrites); err != nil {
		return nil, err
	}
	if m.checkpointDuration, err = register(reg, m.checkpointDuration); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, reusing the collector already registered under
// the same descriptor.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

// OracleCall records one gateway call.
func (m *Metrics) OracleCall(kind, class string, d time.Duration, usage cost.Usage) {
	if m == nil {
		return
	}
	m.oracleCalls.WithLabelValues(kind, class).Inc()
	m.oracleDuration.WithLabelValues(kind).Observe(d.Seconds())
	for _, k := range cost.Keys {
		if v := usage[k]; v > 0 {
			m.oracleTokens.WithLabelValues(kind, k).Add(float64(v))
		}
	}
}

// ConceptsCreated adds n newly created concepts.
func (m *Metrics) ConceptsCreated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.conceptsCreated.Add(float64(n))
}

// ConceptUnknown records a concept moved to an unknown queue.
func (m *Metrics) ConceptUnknown() {
	if m == nil {
		return
	}
	m.unknownConcepts.Inc()
}

// ExpansionAttempt records the outcome of one subconcept generation attempt.
func (m *Metrics) ExpansionAttempt(outcome string) {
	if m == nil {
		return
	}
	m.expansionAttempts.WithLabelValues(outcome).Inc()
}

// LevelExpanded records a finished level invocation.
func (m *Metrics) LevelExpanded() {
	if m == nil {
		return
	}
	m.levelsExpanded.Inc()
}

// CheckpointWrite records a checkpoint write and its latency.
func (m *Metrics) CheckpointWrite(backend string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.checkpointWrites.WithLabelValues(backend, status).Inc()
	m.checkpointDuration.WithLabelValues(backend).Observe(d.Seconds())
}
