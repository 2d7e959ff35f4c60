// Package taxonomy holds the concept graph and the taxonomy aggregate that
// owns it.
//
// All concepts live in one arena owned by the Taxonomy; parent and child
// links are arena indices. The aggregate also owns the case-insensitive name
// registry used for de-duplication, the rank dimensions with their cursors,
// frontiers and unknown queues, the accumulated cost counters and the
// history of checkpoint locations.
//
// Every method is safe for concurrent use. Mutations take the write lock and
// accessors return copies, so callers never observe a half-applied change.
package taxonomy

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/c360studio/taxorank/cost"
	"github.com/google/uuid"
)

// Taxonomy is a tree of concepts under one root, expanded along one or more
// rank dimensions.
type Taxonomy struct {
	mu sync.RWMutex

	id        string
	requested string
	resolved  bool
	createdAt time.Time
	updatedAt time.Time

	concepts []*Concept
	registry map[string]ConceptID

	rawCriteria []string
	criteria    []string
	dimensions  []*Dimension

	usage cost.Usage
	saves []string
}

// New creates a resolved taxonomy rooted at root.
func New(root string) *Taxonomy {
	return newTaxonomy(root, root, true)
}

// NewFor creates a resolved taxonomy rooted at root on behalf of the
// originally requested concept.
func NewFor(requested, root string) *Taxonomy {
	return newTaxonomy(requested, root, true)
}

// Unresolved creates the empty taxonomy returned when no acceptable root
// could be found for candidate. It has a root and no dimensions.
func Unresolved(candidate string) *Taxonomy {
	return newTaxonomy(candidate, candidate, false)
}

func newTaxonomy(requested, root string, resolved bool) *Taxonomy {
	now := time.Now().UTC()
	t := &Taxonomy{
		id:        newID(now),
		requested: requested,
		resolved:  resolved,
		createdAt: now,
		updatedAt: now,
		registry:  make(map[string]ConceptID),
		usage:     cost.Zero(),
	}
	t.concepts = append(t.concepts, &Concept{
		ID:        0,
		Name:      strings.TrimSpace(root),
		Rank:      RootRank,
		Depth:     0,
		Dimension: RootDimension,
		Parent:    NoConcept,
	})
	t.registry[normalize(root)] = 0
	return t
}

func newID(now time.Time) string {
	return "Taxonomy_" + now.Format("2006-01-02_T15-04-05") + "_" + uuid.NewString()[:8]
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ID identifies the taxonomy across checkpoints.
func (t *Taxonomy) ID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.id
}

// Requested returns the concept the taxonomy was originally requested for.
func (t *Taxonomy) Requested() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.requested
}

// Resolved reports whether an acceptable root was found.
func (t *Taxonomy) Resolved() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.resolved
}

// Root returns the arena index of the root concept.
func (t *Taxonomy) Root() ConceptID {
	return 0
}

// RootName returns the name of the root concept.
func (t *Taxonomy) RootName() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.concepts[0].Name
}

// CreatedAt returns the creation time.
func (t *Taxonomy) CreatedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.createdAt
}

// UpdatedAt returns the time of the last mutation.
func (t *Taxonomy) UpdatedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updatedAt
}

func (t *Taxonomy) touch() {
	t.updatedAt = time.Now().UTC()
}

// Len returns the number of concepts ever created, root included.
func (t *Taxonomy) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.concepts)
}

// Concept returns a copy of the concept with the given id.
func (t *Taxonomy) Concept(id ConceptID) (Concept, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id < 0 || int(id) >= len(t.concepts) {
		return Concept{}, false
	}
	return t.concepts[id].clone(), true
}

// Lookup finds a concept by case-insensitive name.
func (t *Taxonomy) Lookup(name string) (ConceptID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.registry[normalize(name)]
	return id, ok
}

// Names returns the names of all concepts in arena order.
func (t *Taxonomy) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, len(t.concepts))
	for i, c := range t.concepts {
		names[i] = c.Name
	}
	return names
}

// SetRootTexts stores the descriptions and definitions generated for the root.
func (t *Taxonomy) SetRootTexts(descriptions, definitions []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	root := t.concepts[0]
	root.Descriptions = append([]string(nil), descriptions...)
	root.Definitions = append([]string(nil), definitions...)
	t.touch()
}

// SetDefinition memoizes the working definition of a concept.
func (t *Taxonomy) SetDefinition(id ConceptID, definition string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.concept(id).Definition = definition
	t.touch()
}

// SetCriteria records the raw differentiation criteria and the survivors of
// redundancy pruning.
func (t *Taxonomy) SetCriteria(raw, filtered []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rawCriteria = append([]string(nil), raw...)
	t.criteria = append([]string(nil), filtered...)
	t.touch()
}

// Criteria returns the raw and filtered criteria.
func (t *Taxonomy) Criteria() (raw, filtered []string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.rawCriteria...), append([]string(nil), t.criteria...)
}

// AddDimension appends a rank dimension whose frontier starts at the root
// and returns its index.
func (t *Taxonomy) AddDimension(ranks []string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	d := NewDimension(ranks, 0)
	t.dimensions = append(t.dimensions, &d)
	t.touch()
	return len(t.dimensions) - 1
}

// DimensionCount returns the number of rank dimensions.
func (t *Taxonomy) DimensionCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.dimensions)
}

// Dimension returns a copy of dimension d.
func (t *Taxonomy) Dimension(d int) (Dimension, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if d < 0 || d >= len(t.dimensions) {
		return Dimension{}, false
	}
	return t.dimensions[d].clone(), true
}

// Exhausted reports whether every dimension is exhausted. A taxonomy
// without dimensions is exhausted.
func (t *Taxonomy) Exhausted() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, d := range t.dimensions {
		if !d.Exhausted() {
			return false
		}
	}
	return true
}

// AdvanceCursor returns the rank at dimension d's cursor (or "" past the
// end) and moves the cursor forward by one level without starting a level.
func (t *Taxonomy) AdvanceCursor(d int) (rank string, cursor int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	dim := t.dim(d)
	rank = dim.CurrentRank()
	dim.Cursor++
	t.touch()
	return rank, dim.Cursor
}

// SetFrontier replaces dimension d's frontier. Concepts already in the
// dimension's unknown queue are never re-enqueued.
func (t *Taxonomy) SetFrontier(d int, ids []ConceptID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	dim := t.dim(d)
	frontier := make([]ConceptID, 0, len(ids))
	for _, id := range ids {
		if !dim.inUnknown(id) {
			frontier = append(frontier, id)
		}
	}
	dim.Frontier = frontier
	t.touch()
}

// BeginLevel starts expanding dimension d by one level. It advances the
// cursor like AdvanceCursor and marks the level in progress, so snapshots
// taken before EndLevel carry the partial level.
func (t *Taxonomy) BeginLevel(d int) (rank string, cursor int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	dim := t.dim(d)
	rank = dim.CurrentRank()
	dim.Cursor++
	dim.InProgress = true
	dim.Next = []ConceptID{}
	t.touch()
	return rank, dim.Cursor
}

// CompleteConcept attaches the children of id like AddChildren, removes id
// from dimension d's frontier and queues the new children for the next
// level, all under one lock. It returns the ids of the concepts created.
func (t *Taxonomy) CompleteConcept(d int, id ConceptID, names []string, rank string) []ConceptID {
	t.mu.Lock()
	defer t.mu.Unlock()
	dim := t.dim(d)
	created := t.addChildren(id, names, rank, d)
	dim.Frontier = without(dim.Frontier, map[ConceptID]bool{id: true})
	dim.Next = append(dim.Next, created...)
	t.touch()
	return created
}

// EndLevel closes the level in progress on dimension d. The frontier
// becomes the concepts the level created followed by those it did not
// finish.
func (t *Taxonomy) EndLevel(d int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	dim := t.dim(d)
	if !dim.InProgress {
		return
	}
	frontier := make([]ConceptID, 0, len(dim.Next)+len(dim.Frontier))
	for _, id := range append(dim.Next, dim.Frontier...) {
		if !dim.inUnknown(id) {
			frontier = append(frontier, id)
		}
	}
	dim.Frontier = frontier
	dim.Next = nil
	dim.InProgress = false
	t.touch()
}

// MarkUnknown moves a concept to dimension d's unknown queue. Its children
// along d are detached together with their descendants; children owned by
// other dimensions stay.
func (t *Taxonomy) MarkUnknown(d int, id ConceptID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	dim := t.dim(d)
	c := t.concept(id)

	drop := map[ConceptID]bool{id: true}
	kept := c.Children[:0]
	for _, child := range c.Children {
		if t.concepts[child].Dimension == d {
			t.detach(child, drop)
			continue
		}
		kept = append(kept, child)
	}
	c.Children = kept

	if !dim.inUnknown(id) {
		dim.Unknown = append(dim.Unknown, id)
	}
	dim.Frontier = without(dim.Frontier, drop)
	dim.Next = without(dim.Next, drop)
	delete(drop, id)
	for i, other := range t.dimensions {
		if i != d {
			other.Frontier = without(other.Frontier, drop)
			other.Next = without(other.Next, drop)
		}
	}
	t.touch()
}

// detach marks id and its subtree detached and collects them in into.
func (t *Taxonomy) detach(id ConceptID, into map[ConceptID]bool) {
	c := t.concepts[id]
	c.Detached = true
	into[id] = true
	for _, child := range c.Children {
		t.detach(child, into)
	}
}

// AddChildren creates a child of parent for every name not yet present in
// the registry, ranked rank along dimension d. The registry check and insert
// happen under one lock, so concurrent callers never create two concepts
// with the same case-insensitive name. It returns the ids of the concepts
// actually created.
func (t *Taxonomy) AddChildren(parent ConceptID, names []string, rank string, d int) []ConceptID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dim(d)
	created := t.addChildren(parent, names, rank, d)
	if len(created) > 0 {
		t.touch()
	}
	return created
}

func (t *Taxonomy) addChildren(parent ConceptID, names []string, rank string, d int) []ConceptID {
	p := t.concept(parent)
	created := make([]ConceptID, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		key := normalize(name)
		if key == "" {
			continue
		}
		if _, exists := t.registry[key]; exists {
			continue
		}
		id := ConceptID(len(t.concepts))
		t.concepts = append(t.concepts, &Concept{
			ID:        id,
			Name:      name,
			Rank:      rank,
			Depth:     p.Depth + 1,
			Dimension: d,
			Parent:    parent,
		})
		t.registry[key] = id
		p.Children = append(p.Children, id)
		created = append(created, id)
	}
	return created
}

// AddUsage merges delta into the accumulated counters.
func (t *Taxonomy) AddUsage(delta cost.Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage = cost.Merge(t.usage, delta)
}

// Usage returns a copy of the accumulated counters.
func (t *Taxonomy) Usage() cost.Usage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.usage.Clone()
}

// RecordSave appends a checkpoint location to the save history unless it is
// already recorded.
func (t *Taxonomy) RecordSave(location string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.saves {
		if s == location {
			return
		}
	}
	t.saves = append(t.saves, location)
}

// Saves returns every checkpoint location written.
func (t *Taxonomy) Saves() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.saves...)
}

// Walk visits every concept reachable from the root in pre-order.
func (t *Taxonomy) Walk(fn func(c Concept)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var visit func(id ConceptID)
	visit = func(id ConceptID) {
		c := t.concepts[id]
		fn(c.clone())
		for _, child := range c.Children {
			visit(child)
		}
	}
	visit(0)
}

// SemanticCotopy returns the names of every ancestor and descendant of id,
// ancestors first (nearest first), then descendants in pre-order.
func (t *Taxonomy) SemanticCotopy(id ConceptID) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id < 0 || int(id) >= len(t.concepts) {
		return nil
	}

	var names []string
	for p := t.concepts[id].Parent; p != NoConcept; p = t.concepts[p].Parent {
		names = append(names, t.concepts[p].Name)
	}

	var descend func(c *Concept)
	descend = func(c *Concept) {
		for _, child := range c.Children {
			names = append(names, t.concepts[child].Name)
			descend(t.concepts[child])
		}
	}
	descend(t.concepts[id])
	return names
}

func (t *Taxonomy) dim(d int) *Dimension {
	if d < 0 || d >= len(t.dimensions) {
		panic(fmt.Sprintf("taxonomy: dimension %d out of range [0,%d)", d, len(t.dimensions)))
	}
	return t.dimensions[d]
}

func (t *Taxonomy) concept(id ConceptID) *Concept {
	if id < 0 || int(id) >= len(t.concepts) {
		panic(fmt.Sprintf("taxonomy: concept %d out of range [0,%d)", id, len(t.concepts)))
	}
	return t.concepts[id]
}
