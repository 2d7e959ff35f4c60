package taxonomy

import (
	"errors"
	"fmt"
)

// Validate checks the structural invariants of the aggregate and returns
// every violation found, joined.
func (t *Taxonomy) Validate() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var errs []error
	seen := make(map[string]ConceptID, len(t.concepts))

	for i, c := range t.concepts {
		id := ConceptID(i)
		if c.ID != id {
			errs = append(errs, fmt.Errorf("concept %q: id %d stored at index %d", c.Name, c.ID, i))
		}

		key := normalize(c.Name)
		if prev, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("concept %q: duplicate name of concept %d", c.Name, prev))
		}
		seen[key] = id
		if reg, ok := t.registry[key]; !ok || reg != id {
			errs = append(errs, fmt.Errorf("concept %q: registry entry mismatch", c.Name))
		}
		for _, child := range c.Children {
			if child <= 0 || int(child) >= len(t.concepts) || t.concepts[child].Parent != id {
				errs = append(errs, fmt.Errorf("concept %q: child %d does not name it as parent", c.Name, child))
			}
		}

		if id == 0 {
			if c.Parent != NoConcept || c.Depth != 0 || c.Detached {
				errs = append(errs, fmt.Errorf("root %q: must have no parent and depth 0", c.Name))
			}
			continue
		}

		if c.Parent < 0 || int(c.Parent) >= len(t.concepts) {
			errs = append(errs, fmt.Errorf("concept %q: parent %d out of range", c.Name, c.Parent))
			continue
		}
		parent := t.concepts[c.Parent]
		listed := 0
		for _, child := range parent.Children {
			if child == id {
				listed++
			}
		}
		switch {
		case !c.Detached && parent.Detached:
			errs = append(errs, fmt.Errorf("concept %q: attached under detached parent %q", c.Name, parent.Name))
		case !c.Detached && listed != 1:
			errs = append(errs, fmt.Errorf("concept %q: listed %d times among the children of %q", c.Name, listed, parent.Name))
		case c.Detached && !parent.Detached && listed != 0:
			errs = append(errs, fmt.Errorf("concept %q: detached but still a child of %q", c.Name, parent.Name))
		}
		if c.Depth != parent.Depth+1 {
			errs = append(errs, fmt.Errorf("concept %q: depth %d, parent depth %d", c.Name, c.Depth, parent.Depth))
		}
		if c.Dimension < 0 || c.Dimension >= len(t.dimensions) {
			errs = append(errs, fmt.Errorf("concept %q: dimension %d out of range", c.Name, c.Dimension))
			continue
		}
		if want := t.dimensions[c.Dimension].RankAt(c.Depth); c.Rank != want {
			errs = append(errs, fmt.Errorf("concept %q: rank %q, dimension %d expects %q", c.Name, c.Rank, c.Dimension, want))
		}
	}
	if len(t.registry) != len(t.concepts) {
		errs = append(errs, fmt.Errorf("registry holds %d names for %d concepts", len(t.registry), len(t.concepts)))
	}

	owner := make(map[ConceptID]int)
	for d, dim := range t.dimensions {
		if dim.Cursor < 0 || dim.Cursor > len(dim.Ranks)+2 {
			errs = append(errs, fmt.Errorf("dimension %d: cursor %d outside [0,%d]", d, dim.Cursor, len(dim.Ranks)+2))
		}
		if !dim.InProgress && len(dim.Next) > 0 {
			errs = append(errs, fmt.Errorf("dimension %d: %d queued concepts without a level in progress", d, len(dim.Next)))
		}
		queued := append(append([]ConceptID(nil), dim.Frontier...), dim.Next...)
		for _, id := range queued {
			if id < 0 || int(id) >= len(t.concepts) {
				errs = append(errs, fmt.Errorf("dimension %d: queued concept %d out of range", d, id))
				continue
			}
			if dim.inUnknown(id) {
				errs = append(errs, fmt.Errorf("dimension %d: concept %d is both in frontier and unknown", d, id))
			}
			if t.concepts[id].Detached {
				errs = append(errs, fmt.Errorf("dimension %d: detached concept %d is queued", d, id))
			}
			if id == 0 {
				continue
			}
			if prev, ok := owner[id]; ok {
				errs = append(errs, fmt.Errorf("concept %d queued in dimensions %d and %d", id, prev, d))
			}
			owner[id] = d
		}
	}

	return errors.Join(errs...)
}
