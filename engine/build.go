package engine

import (
	"context"

	"github.com/c360studio/taxorank/taxonomy"
)

// Build resolves candidate, discovers the dimensions and expands them until
// every dimension is exhausted, MaxLevels rounds have run or ctx ends.
func (e *Engine) Build(ctx context.Context, candidate string) (*taxonomy.Taxonomy, []LevelReport, error) {
	t, err := e.Resolve(ctx, candidate)
	if err != nil || !t.Resolved() {
		return t, nil, err
	}
	if err := e.Discover(ctx, t); err != nil {
		return t, nil, err
	}
	reports, err := e.Expand(ctx, t)
	return t, reports, err
}

// Expand runs rounds of ExpandLevel over every dimension that is not
// exhausted. One round expands each such dimension by one rank.
func (e *Engine) Expand(ctx context.Context, t *taxonomy.Taxonomy) ([]LevelReport, error) {
	var reports []LevelReport
	for round := 1; e.opts.MaxLevels == 0 || round <= e.opts.MaxLevels; round++ {
		if t.Exhausted() {
			break
		}
		for d := 0; d < t.DimensionCount(); d++ {
			dim, _ := t.Dimension(d)
			if dim.Exhausted() {
				continue
			}
			report := e.ExpandLevel(ctx, t, d)
			reports = append(reports, report)
			if report.Err != nil {
				return reports, report.Err
			}
		}
		e.logger.Info("Expansion round finished",
			"taxonomy", t.ID(),
			"round", round,
			"concepts", t.Len())
	}
	return reports, ctx.Err()
}
