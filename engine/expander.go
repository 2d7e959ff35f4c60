package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/c360studio/taxorank/cost"
	"github.com/c360studio/taxorank/prompts"
	"github.com/c360studio/taxorank/taxonomy"
	"golang.org/x/sync/errgroup"
)

// ErrNoDimension is reported for a dimension index the taxonomy lacks.
var ErrNoDimension = errors.New("no such dimension")

// LevelReport summarizes one ExpandLevel invocation.
type LevelReport struct {
	Dimension int
	// Rank is the rank at the cursor when the invocation started, or "" past
	// the last rank.
	Rank string
	// Cursor is the cursor after the invocation.
	Cursor int

	Processed int
	Skipped   int
	Created   int
	Unknown   int
	// Deferred counts frontier concepts left for a later invocation.
	Deferred int

	Exhausted bool
	Usage     cost.Usage

	// Err is set when the invocation was aborted. The taxonomy keeps the
	// progress made and has been checkpointed.
	Err error
}

// conceptResult is the per-concept output of one invocation.
type conceptResult struct {
	done    bool
	skipped bool
	unknown bool
	created []taxonomy.ConceptID
}

// ExpandLevel grows dimension d by one rank.
//
// At most MaxIter frontier concepts are expanded, Workers at a time. The
// dimension's new frontier holds the concepts created, followed by any
// concepts not reached. Concepts whose generation budget runs out move to
// the unknown queue. A checkpoint is written after each expanded concept
// and once more at the end. Each checkpoint carries the level in progress,
// and a taxonomy restored from one resumes that level without moving the
// cursor again.
func (e *Engine) ExpandLevel(ctx context.Context, t *taxonomy.Taxonomy, d int) LevelReport {
	report := LevelReport{Dimension: d, Usage: cost.Zero()}
	logger := e.logger.With("taxonomy", t.ID(), "dimension", d)

	dim, ok := t.Dimension(d)
	if !ok {
		report.Err = fmt.Errorf("expand dimension %d: %w", d, ErrNoDimension)
		return report
	}

	report.Cursor = dim.Cursor
	if err := ctx.Err(); err != nil {
		report.Err = err
		report.Deferred = len(dim.Frontier)
		return report
	}

	if dim.InProgress {
		report.Rank = dim.RankAt(dim.Cursor)
		logger.Info("Resuming level",
			"rank", report.Rank,
			"cursor", report.Cursor,
			"frontier", len(dim.Frontier),
			"created", len(dim.Next))
	} else {
		if dim.Cursor > len(dim.Ranks)+1 {
			t.SetFrontier(d, nil)
			report.Exhausted = true
			logger.Info("Dimension out of ranks")
			e.checkpoint(ctx, t)
			return report
		}
		report.Rank, report.Cursor = t.BeginLevel(d)
		logger.Info("Expanding level",
			"rank", report.Rank,
			"cursor", report.Cursor,
			"frontier", len(dim.Frontier))
	}

	batch, rest := dim.Frontier, []taxonomy.ConceptID(nil)
	if len(batch) > e.opts.MaxIter {
		batch, rest = dim.Frontier[:e.opts.MaxIter], dim.Frontier[e.opts.MaxIter:]
	}

	usage := newTally(t)
	results := make([]conceptResult, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, id := range batch {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := e.expandConcept(gctx, t, d, dim, id, usage)
			results[i] = res
			return err
		})
	}
	waitErr := g.Wait()

	pending := 0
	for _, res := range results {
		switch {
		case !res.done:
			pending++
		case res.skipped:
			report.Skipped++
		case res.unknown:
			report.Unknown++
		}
		if res.done {
			report.Processed++
		}
		report.Created += len(res.created)
	}
	report.Deferred = pending + len(rest)
	t.EndLevel(d)

	report.Usage = usage.sum()
	if err := ctx.Err(); err != nil {
		report.Err = err
	} else if waitErr != nil {
		report.Err = waitErr
	}

	after, _ := t.Dimension(d)
	report.Exhausted = after.Exhausted()
	e.metrics.LevelExpanded()
	e.checkpoint(ctx, t)

	if report.Err != nil {
		logger.Warn("Level expansion aborted",
			"processed", report.Processed,
			"deferred", report.Deferred,
			"error", report.Err)
		return report
	}
	logger.Info("Level expanded",
		"processed", report.Processed,
		"created", report.Created,
		"unknown", report.Unknown,
		"skipped", report.Skipped,
		"deferred", report.Deferred,
		"usage", report.Usage.String())
	return report
}

// expandConcept generates and attaches the children of one frontier concept.
// A non-nil error means ctx ended before the concept was finished.
func (e *Engine) expandConcept(ctx context.Context, t *taxonomy.Taxonomy, d int, dim taxonomy.Dimension, id taxonomy.ConceptID, usage *tally) (conceptResult, error) {
	c, ok := t.Concept(id)
	if !ok {
		return conceptResult{done: true, skipped: true}, nil
	}
	if c.Depth >= len(dim.Ranks) {
		e.logger.Debug("Concept at last rank, skipping", "concept", c.Name, "depth", c.Depth)
		t.CompleteConcept(d, id, nil, "")
		return conceptResult{done: true, skipped: true}, nil
	}

	scope := prompts.Scope{
		Root:    t.RootName(),
		Concept: c.Name,
		Rank:    dim.Ranks[c.Depth],
		Chain:   dim.Context,
	}
	logger := e.logger.With("taxonomy", t.ID(), "dimension", d, "concept", c.Name, "rank", scope.Rank)

	definition := c.Definition
	if definition == "" {
		res := e.gateway.GenerateText(ctx, e.prompts.DefineConcept(scope))
		usage.add(res.Usage)
		if definition = res.Value(); definition != "" {
			t.SetDefinition(id, definition)
		}
		if err := ctx.Err(); err != nil {
			return conceptResult{}, err
		}
	}

	var names []string
	for attempt := 1; ; attempt++ {
		result, err := e.attempt(ctx, scope, definition, usage)
		if err != nil {
			return conceptResult{}, err
		}
		outcome := settle(result.outcome, attempt, e.opts.AttemptBudget)
		e.metrics.ExpansionAttempt(outcome.String())

		if outcome == Accepted {
			names = result.names
			logger.Debug("Subconcepts accepted", "attempt", attempt, "count", len(names))
			break
		}
		logger.Debug("Subconcept attempt rejected", "attempt", attempt, "reason", result.reason)
		if outcome == TerminalFailure {
			t.MarkUnknown(d, id)
			e.metrics.ConceptUnknown()
			logger.Info("Subconcept budget exhausted, concept marked unknown", "attempts", attempt)
			e.checkpoint(ctx, t)
			return conceptResult{done: true, unknown: true}, nil
		}
	}

	created := t.CompleteConcept(d, id, names, scope.Rank)
	e.metrics.ConceptsCreated(len(created))
	logger.Info("Concept expanded", "proposed", len(names), "created", len(created))
	e.checkpoint(ctx, t)
	return conceptResult{done: true, created: created}, nil
}

// attemptResult is the outcome of one generate, validate and filter cycle.
type attemptResult struct {
	outcome Outcome
	names   []string
	reason  string
}

// attempt runs one subconcept generation cycle. A non-nil error means ctx
// ended between oracle calls.
func (e *Engine) attempt(ctx context.Context, scope prompts.Scope, definition string, usage *tally) (attemptResult, error) {
	list := e.gateway.GenerateList(ctx, e.prompts.ListSubconcepts(scope, definition), ",")
	usage.add(list.Usage)
	if err := ctx.Err(); err != nil {
		return attemptResult{}, err
	}
	candidates := e.candidates(list.Values())
	if len(candidates) == 0 {
		return attemptResult{outcome: RetryableFailure, reason: "no candidates"}, nil
	}

	post := e.gateway.GenerateList(ctx, e.prompts.PostprocessSubconcepts(scope, candidates), ",")
	usage.add(post.Usage)
	if err := ctx.Err(); err != nil {
		return attemptResult{}, err
	}
	items := post.Values()
	if len(items) == 0 {
		items = candidates
	}

	check := e.gateway.Classify(ctx, e.prompts.CheckSubconcepts(scope, items))
	usage.add(check.Usage)
	if err := ctx.Err(); err != nil {
		return attemptResult{}, err
	}
	if !check.Verdict {
		return attemptResult{outcome: RetryableFailure, reason: "rejected by validator"}, nil
	}

	red := e.gateway.GenerateList(ctx, e.prompts.RedundantSubconcepts(scope, items), ",")
	usage.add(red.Usage)
	if err := ctx.Err(); err != nil {
		return attemptResult{}, err
	}
	redundant := red.Values()
	if float64(len(redundant)) > float64(len(items))*e.opts.RedundancyRatio {
		return attemptResult{
			outcome: RetryableFailure,
			reason:  fmt.Sprintf("%d of %d candidates redundant", len(redundant), len(items)),
		}, nil
	}

	return attemptResult{outcome: Accepted, names: e.filterRedundant(items, redundant)}, nil
}

// candidates dedupes raw names within the batch, folds newlines and drops
// names longer than MaxCandidateLength.
func (e *Engine) candidates(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, name := range raw {
		name = strings.Join(strings.Fields(name), " ")
		if name == "" || seen[name] || len(name) > e.opts.MaxCandidateLength {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// filterRedundant drops redundant names, ignoring case, and names of
// MaxSubconceptLength or more.
func (e *Engine) filterRedundant(items, redundant []string) []string {
	drop := make(map[string]bool, len(redundant))
	for _, r := range redundant {
		drop[strings.ToLower(strings.TrimSpace(r))] = true
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if len(item) >= e.opts.MaxSubconceptLength || drop[strings.ToLower(item)] {
			continue
		}
		out = append(out, item)
	}
	return out
}
