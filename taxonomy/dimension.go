package taxonomy

import (
	"strings"
)

// ContextSeparator joins rank names into a dimension's context string.
const ContextSeparator = " > "

// Dimension is one independently discovered ordered sequence of ranks
// together with its expansion progress.
type Dimension struct {
	Ranks []string
	// Context renders the full rank chain, e.g. "size > habitat > use".
	Context string
	// Cursor is the number of levels already expanded.
	Cursor int
	// Frontier holds the concepts awaiting expansion. While a level is in
	// progress it holds only the concepts the level has not finished.
	Frontier []ConceptID
	Unknown  []ConceptID
	// InProgress is set between BeginLevel and EndLevel.
	InProgress bool
	// Next collects the concepts created by the level in progress.
	Next []ConceptID
}

// NewDimension builds a dimension over ranks with the root as its frontier.
func NewDimension(ranks []string, root ConceptID) Dimension {
	clean := make([]string, 0, len(ranks))
	for _, r := range ranks {
		if r = strings.TrimSpace(r); r != "" {
			clean = append(clean, r)
		}
	}
	return Dimension{
		Ranks:    clean,
		Context:  strings.Join(clean, ContextSeparator),
		Cursor:   0,
		Frontier: []ConceptID{root},
		Unknown:  []ConceptID{},
	}
}

// Exhausted reports whether nothing is left to expand along the dimension.
// A level in progress is never exhausted.
func (d Dimension) Exhausted() bool {
	if d.InProgress {
		return false
	}
	return len(d.Frontier) == 0 || d.Cursor > len(d.Ranks)+1
}

// RankAt returns the rank a concept at depth occupies, or "" past the end.
func (d Dimension) RankAt(depth int) string {
	if depth < 1 || depth > len(d.Ranks) {
		return ""
	}
	return d.Ranks[depth-1]
}

// CurrentRank is the rank the next invocation targets, or "" once the
// cursor has run past the last rank.
func (d Dimension) CurrentRank() string {
	if d.Cursor < 0 || d.Cursor >= len(d.Ranks) {
		return ""
	}
	return d.Ranks[d.Cursor]
}

func (d *Dimension) clone() Dimension {
	out := *d
	out.Ranks = append([]string(nil), d.Ranks...)
	out.Frontier = append([]ConceptID(nil), d.Frontier...)
	out.Unknown = append([]ConceptID(nil), d.Unknown...)
	out.Next = append([]ConceptID(nil), d.Next...)
	return out
}

func (d *Dimension) inUnknown(id ConceptID) bool {
	for _, u := range d.Unknown {
		if u == id {
			return true
		}
	}
	return false
}

// without returns ids with every member of drop removed, preserving order.
func without(ids []ConceptID, drop map[ConceptID]bool) []ConceptID {
	out := ids[:0]
	for _, id := range ids {
		if !drop[id] {
			out = append(out, id)
		}
	}
	return out
}
