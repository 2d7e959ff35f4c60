package engine

import (
	"context"
	"strings"

	"github.com/c360studio/taxorank/oracle"
	"github.com/c360studio/taxorank/taxonomy"
)

// minRootTextLength drops root descriptions and definitions this short or
// shorter.
const minRootTextLength = 5

// Resolve fixes the root of a new taxonomy for candidate.
//
// An accepted candidate becomes the root. Otherwise the oracle is asked
// whether candidate belongs to some taxonomy and, if so, for that taxonomy's
// root. The root descriptions always describe candidate. When no root can be
// found the result is an unresolved taxonomy without dimensions.
//
// The returned error is non-nil only when ctx ends; the taxonomy is returned
// either way.
func (e *Engine) Resolve(ctx context.Context, candidate string) (*taxonomy.Taxonomy, error) {
	candidate = strings.TrimSpace(candidate)
	logger := e.logger.With("candidate", candidate)
	usage := newTally(nil)

	accepted := true
	if e.opts.VerifyRoot {
		res := e.gateway.Classify(ctx, e.prompts.RootCheck(candidate))
		usage.add(res.Usage)
		accepted = res.Verdict
	}

	var t *taxonomy.Taxonomy
	if accepted {
		logger.Info("Candidate accepted as root")
		t = taxonomy.New(candidate)
	} else {
		logger.Info("Candidate is not a root, looking for a containing taxonomy")
		root, ok := e.findSuperRoot(ctx, candidate, usage)
		if !ok {
			t = taxonomy.Unresolved(candidate)
			t.AddUsage(usage.sum())
			logger.Info("No taxonomy found for candidate", "taxonomy", t.ID())
			e.checkpoint(ctx, t)
			return t, ctx.Err()
		}
		logger.Info("Resolved super-root", "root", root)
		t = taxonomy.NewFor(candidate, root)
	}

	if err := ctx.Err(); err != nil {
		t.AddUsage(usage.sum())
		e.checkpoint(ctx, t)
		return t, err
	}

	descriptions := e.rootTexts(ctx, e.prompts.Descriptions(candidate), usage)
	definitions := e.rootTexts(ctx, e.prompts.Definitions(candidate), usage)
	t.SetRootTexts(descriptions, definitions)
	t.AddUsage(usage.sum())

	logger.Info("Taxonomy created",
		"taxonomy", t.ID(),
		"root", t.RootName(),
		"descriptions", len(descriptions),
		"definitions", len(definitions))
	e.checkpoint(ctx, t)
	return t, ctx.Err()
}

// findSuperRoot runs the bounded membership loop and, on the first positive
// answer, the bounded super-root loop.
func (e *Engine) findSuperRoot(ctx context.Context, candidate string, usage *tally) (string, bool) {
	budget := e.opts.ResolveBudget

	member := false
	for attempt := 1; attempt <= budget && !member; attempt++ {
		if ctx.Err() != nil {
			return "", false
		}
		res := e.gateway.Classify(ctx, e.prompts.MemberCheck(candidate))
		usage.add(res.Usage)
		member = res.Verdict
		e.logger.Debug("Membership check", "candidate", candidate, "attempt", attempt, "member", member)
	}
	if !member {
		return "", false
	}

	for attempt := 1; attempt <= budget; attempt++ {
		if ctx.Err() != nil {
			return "", false
		}
		res := e.gateway.GenerateText(ctx, e.prompts.SuperRoot(candidate))
		usage.add(res.Usage)
		if root := res.Value(); root != "" {
			return root, true
		}
		e.logger.Debug("Super-root answer empty", "candidate", candidate, "attempt", attempt)
	}
	return "", false
}

// rootTexts requests one semicolon-separated list of root texts.
func (e *Engine) rootTexts(ctx context.Context, p oracle.Prompt, usage *tally) []string {
	res := e.gateway.GenerateList(ctx, p, ";")
	usage.add(res.Usage)

	var texts []string
	for _, text := range res.Values() {
		if len(text) > minRootTextLength {
			texts = append(texts, text)
		}
	}
	return texts
}
