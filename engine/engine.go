// Package engine builds taxonomies by driving an oracle.Gateway.
//
// Construction runs in three stages. Resolve fixes the root, Discover derives
// the rank dimensions and ExpandLevel grows one dimension by one rank. Build
// chains them until every dimension is exhausted. Oracle, parse and budget
// failures never surface as errors; the only error the engine reports is
// context cancellation, after the taxonomy has been checkpointed.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/c360studio/taxorank/cost"
	"github.com/c360studio/taxorank/metric"
	"github.com/c360studio/taxorank/oracle"
	"github.com/c360studio/taxorank/prompts"
	"github.com/c360studio/taxorank/taxonomy"
)

// Checkpointer durably persists taxonomy snapshots.
type Checkpointer interface {
	Save(ctx context.Context, s *taxonomy.Snapshot) (string, error)
	Backend() string
}

// Options holds the budgets and caps of the engine.
type Options struct {
	// VerifyRoot asks the oracle whether the candidate is an acceptable root.
	// When false every candidate is accepted as is.
	VerifyRoot bool

	// ResolveBudget bounds the membership and super-root loops.
	ResolveBudget int

	// AttemptBudget bounds subconcept generation attempts per concept.
	AttemptBudget int

	// MaxIter bounds the concepts processed per ExpandLevel invocation.
	MaxIter int

	// MaxCandidateLength drops raw candidates longer than this.
	MaxCandidateLength int

	// MaxSubconceptLength drops accepted subconcepts this long or longer.
	MaxSubconceptLength int

	// RedundancyRatio rejects an attempt when more than this share of the
	// candidates is reported redundant.
	RedundancyRatio float64

	// Workers expands this many frontier concepts concurrently.
	Workers int

	// MaxLevels bounds the expansion rounds of Build. Zero means unbounded.
	MaxLevels int
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		VerifyRoot:          true,
		ResolveBudget:       5,
		AttemptBudget:       5,
		MaxIter:             100,
		MaxCandidateLength:  80,
		MaxSubconceptLength: 120,
		RedundancyRatio:     0.8,
		Workers:             1,
	}
}

// withDefaults fills non-positive fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ResolveBudget <= 0 {
		o.ResolveBudget = d.ResolveBudget
	}
	if o.AttemptBudget <= 0 {
		o.AttemptBudget = d.AttemptBudget
	}
	if o.MaxIter <= 0 {
		o.MaxIter = d.MaxIter
	}
	if o.MaxCandidateLength <= 0 {
		o.MaxCandidateLength = d.MaxCandidateLength
	}
	if o.MaxSubconceptLength <= 0 {
		o.MaxSubconceptLength = d.MaxSubconceptLength
	}
	if o.RedundancyRatio <= 0 || o.RedundancyRatio > 1 {
		o.RedundancyRatio = d.RedundancyRatio
	}
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	if o.MaxLevels < 0 {
		o.MaxLevels = 0
	}
	return o
}

// Engine constructs taxonomies. It is safe for concurrent use on distinct
// taxonomies.
type Engine struct {
	gateway oracle.Gateway
	prompts *prompts.Builder
	store   Checkpointer
	metrics *metric.Metrics
	logger  *slog.Logger
	opts    Options

	// saveMu orders checkpoint writes.
	saveMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithOptions sets budgets and caps.
func WithOptions(o Options) Option {
	return func(e *Engine) {
		e.opts = o.withDefaults()
	}
}

// WithPrompts sets the prompt builder.
func WithPrompts(b *prompts.Builder) Option {
	return func(e *Engine) {
		if b != nil {
			e.prompts = b
		}
	}
}

// WithCheckpointer persists a snapshot after every meaningful mutation.
func WithCheckpointer(c Checkpointer) Option {
	return func(e *Engine) {
		e.store = c
	}
}

// WithMetrics records engine metrics in m.
func WithMetrics(m *metric.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an engine over gateway.
func New(gateway oracle.Gateway, opts ...Option) *Engine {
	e := &Engine{
		gateway: gateway,
		prompts: prompts.New(prompts.DefaultSettings()),
		logger:  slog.Default(),
		opts:    DefaultOptions(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Options returns the budgets in effect.
func (e *Engine) Options() Options {
	return e.opts
}

// checkpoint saves a snapshot of t and records the location. Failures are
// logged and never stop construction. The write survives cancellation of
// ctx so an aborted invocation is still persisted.
func (e *Engine) checkpoint(ctx context.Context, t *taxonomy.Taxonomy) {
	if e.store == nil {
		return
	}

	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	start := time.Now()
	location, err := e.store.Save(context.WithoutCancel(ctx), t.Snapshot())
	e.metrics.CheckpointWrite(e.store.Backend(), time.Since(start), err)
	if err != nil {
		e.logger.Error("Checkpoint failed",
			"taxonomy", t.ID(),
			"backend", e.store.Backend(),
			"error", err)
		return
	}
	t.RecordSave(location)
	e.logger.Debug("Checkpoint written", "taxonomy", t.ID(), "location", location)
}

// tally merges the usage of every oracle call into a taxonomy and keeps a
// running total for one operation.
type tally struct {
	mu    sync.Mutex
	t     *taxonomy.Taxonomy
	total cost.Usage
}

func newTally(t *taxonomy.Taxonomy) *tally {
	return &tally{t: t, total: cost.Zero()}
}

func (c *tally) add(u cost.Usage) {
	if u == nil {
		return
	}
	c.mu.Lock()
	c.total = c.total.Add(u)
	c.mu.Unlock()
	if c.t != nil {
		c.t.AddUsage(u)
	}
}

func (c *tally) sum() cost.Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total.Clone()
}
