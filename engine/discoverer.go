package engine

import (
	"context"
	"strings"

	"github.com/c360studio/taxorank/oracle"
	"github.com/c360studio/taxorank/taxonomy"
)

// minCriterionLength drops criteria this short or shorter.
const minCriterionLength = 3

// Discover derives the rank dimensions of a resolved taxonomy.
//
// Criteria are requested once per root description and definition, pruned
// by a redundancy call, turned into rank lists and merged by an optimization
// call. Each surviving list becomes a dimension whose frontier is the root.
// Every step degrades to whatever survived the previous one. Taxonomies that
// are unresolved or already have dimensions are left untouched.
func (e *Engine) Discover(ctx context.Context, t *taxonomy.Taxonomy) error {
	logger := e.logger.With("taxonomy", t.ID())
	if !t.Resolved() {
		logger.Info("Skipping discovery of unresolved taxonomy")
		return nil
	}
	if t.DimensionCount() > 0 {
		logger.Debug("Dimensions already discovered", "dimensions", t.DimensionCount())
		return nil
	}

	usage := newTally(t)
	defer e.checkpoint(ctx, t)

	root := t.RootName()
	raw, err := e.criteria(ctx, t, usage)
	if err != nil {
		return err
	}
	filtered := e.pruneCriteria(ctx, root, raw, usage)
	t.SetCriteria(raw, filtered)
	logger.Info("Criteria discovered", "raw", len(raw), "filtered", len(filtered))
	if err := ctx.Err(); err != nil {
		return err
	}

	var lists []string
	for _, criterion := range filtered {
		if err := ctx.Err(); err != nil {
			return err
		}
		res := e.gateway.GenerateText(ctx, e.prompts.Ranks(root, criterion))
		usage.add(res.Usage)
		if ranks := res.Value(); ranks != "" {
			lists = append(lists, ranks)
		}
	}
	if len(lists) == 0 {
		logger.Info("No rank lists derived")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, list := range e.optimizeRanks(ctx, root, lists, usage) {
		ranks := oracle.SplitRanks(list)
		if len(ranks) == 0 {
			continue
		}
		d := t.AddDimension(ranks)
		dim, _ := t.Dimension(d)
		logger.Info("Dimension added", "dimension", d, "ranks", dim.Context)
	}
	return nil
}

// criteria requests one criteria string per root description and definition.
// A root without texts gets a single request without context.
func (e *Engine) criteria(ctx context.Context, t *taxonomy.Taxonomy, usage *tally) ([]string, error) {
	root, _ := t.Concept(t.Root())
	texts := append(append([]string(nil), root.Descriptions...), root.Definitions...)
	if len(texts) == 0 {
		texts = []string{""}
	}

	var raw []string
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return raw, err
		}
		res := e.gateway.GenerateText(ctx, e.prompts.Criteria(root.Name, text))
		usage.add(res.Usage)
		if criterion := res.Value(); criterion != "" {
			raw = append(raw, criterion)
		}
	}
	return raw, nil
}

// pruneCriteria removes the entries the oracle reports redundant. Each
// reported entry is matched against the candidates by text first and
// otherwise read as a zero-based index into the enumeration sent. Entries
// that are neither are logged and skipped.
func (e *Engine) pruneCriteria(ctx context.Context, root string, raw []string, usage *tally) []string {
	if len(raw) == 0 {
		return nil
	}

	res := e.gateway.GenerateList(ctx, e.prompts.RedundantCriteria(root, raw), ",")
	usage.add(res.Usage)

	drop := make([]bool, len(raw))
	for _, entry := range res.Values() {
		matched := false
		for i, criterion := range raw {
			if strings.EqualFold(strings.TrimSpace(criterion), entry) {
				drop[i] = true
				matched = true
			}
		}
		if matched {
			continue
		}
		i, err := oracle.ParseIndex(entry, len(raw))
		if err != nil {
			e.logger.Warn("Skipping redundant criteria entry", "root", root, "entry", entry, "error", err)
			continue
		}
		drop[i] = true
	}

	var kept []string
	for i, criterion := range raw {
		if drop[i] || len(criterion) <= minCriterionLength {
			continue
		}
		kept = append(kept, criterion)
	}
	return kept
}

// optimizeRanks merges the derived rank lists into independent dimensions.
// When the oracle fails or returns nothing usable the derived lists are kept.
func (e *Engine) optimizeRanks(ctx context.Context, root string, lists []string, usage *tally) []string {
	res := e.gateway.GenerateText(ctx, e.prompts.OptimizeRanks(root, lists))
	usage.add(res.Usage)

	if optimized := oracle.ParseRankLists(res.Value()); len(optimized) > 0 {
		return optimized
	}
	e.logger.Warn("Rank optimization unusable, keeping derived lists", "root", root, "error", res.Err)
	return oracle.ParseRankLists(strings.Join(lists, ";"))
}
