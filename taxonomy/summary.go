package taxonomy

import (
	"fmt"
	"strings"
	"time"

	"github.com/c360studio/taxorank/cost"
)

// Summary renders a human-readable overview: root, criteria, per-dimension
// progress, concept totals, usage and save history.
func (t *Taxonomy) Summary() string {
	s := t.Snapshot()

	var sb strings.Builder
	fmt.Fprintf(&sb, "taxonomy %s\n", s.ID)
	fmt.Fprintf(&sb, "root: %q", s.Concepts[0].Name)
	if s.Requested != s.Concepts[0].Name {
		fmt.Fprintf(&sb, " (requested %q)", s.Requested)
	}
	if !s.Resolved {
		sb.WriteString(" [unresolved]")
	}
	sb.WriteString("\n")

	if len(s.Criteria) > 0 {
		sb.WriteString("criteria:\n")
		for _, c := range s.Criteria {
			fmt.Fprintf(&sb, "  - %s\n", c)
		}
	}

	fmt.Fprintf(&sb, "dimensions: %d\n", len(s.Dimensions))
	unknown, pending := 0, 0
	for i, d := range s.Dimensions {
		rank := "(done)"
		if d.Cursor < len(d.Ranks) {
			rank = d.Ranks[d.Cursor]
		}
		fmt.Fprintf(&sb, "  %d. next rank %q in %q (level %d, frontier %d, unknown %d)\n",
			i, rank, d.Context, d.Cursor, len(d.Frontier), len(d.Unknown))
		if d.InProgress {
			fmt.Fprintf(&sb, "     level %d in progress, %d concept(s) created so far\n", d.Cursor, len(d.Next))
		}
		unknown += len(d.Unknown)
		pending += len(d.Frontier) + len(d.Next)
	}

	fmt.Fprintf(&sb, "concepts: %d total, %d awaiting expansion, %d unknown\n", len(s.Concepts), pending, unknown)
	fmt.Fprintf(&sb, "created: %s, last edit: %s\n", s.CreatedAt.Format(time.RFC3339), s.UpdatedAt.Format(time.RFC3339))

	usage := make([]string, 0, len(s.Usage))
	for _, k := range cost.Keys {
		usage = append(usage, fmt.Sprintf("%s=%d", k, s.Usage[k]))
	}
	fmt.Fprintf(&sb, "usage: %s\n", strings.Join(usage, " "))

	if len(s.Saves) > 0 {
		fmt.Fprintf(&sb, "saved to %d location(s), last %s\n", len(s.Saves), s.Saves[len(s.Saves)-1])
	}
	return sb.String()
}
