package taxonomy

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360studio/taxorank/cost"
)

// SnapshotVersion is bumped whenever the snapshot layout changes.
const SnapshotVersion = 1

// Snapshot is the durable form of a Taxonomy.
type Snapshot struct {
	Version     int               `json:"version"`
	ID          string            `json:"id"`
	Requested   string            `json:"requested"`
	Resolved    bool              `json:"resolved"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Concepts    []ConceptRecord   `json:"concepts"`
	RawCriteria []string          `json:"raw_criteria,omitempty"`
	Criteria    []string          `json:"criteria,omitempty"`
	Dimensions  []DimensionRecord `json:"dimensions,omitempty"`
	Usage       map[string]int    `json:"usage"`
	Saves       []string          `json:"saves,omitempty"`
}

// ConceptRecord is the durable form of a Concept.
type ConceptRecord struct {
	ID           ConceptID   `json:"id"`
	Name         string      `json:"name"`
	Descriptions []string    `json:"descriptions,omitempty"`
	Definitions  []string    `json:"definitions,omitempty"`
	Definition   string      `json:"definition,omitempty"`
	Rank         string      `json:"rank"`
	Depth        int         `json:"depth"`
	Dimension    int         `json:"dimension"`
	Parent       ConceptID   `json:"parent"`
	Children     []ConceptID `json:"children,omitempty"`
	Detached     bool        `json:"detached,omitempty"`
}

// DimensionRecord is the durable form of a Dimension.
type DimensionRecord struct {
	Ranks    []string    `json:"ranks"`
	Context  string      `json:"context"`
	Cursor   int         `json:"cursor"`
	Frontier []ConceptID `json:"frontier"`
	Unknown  []ConceptID `json:"unknown"`
	// InProgress and Next record a level interrupted between BeginLevel
	// and EndLevel.
	InProgress bool        `json:"in_progress,omitempty"`
	Next       []ConceptID `json:"next,omitempty"`
}

// Snapshot returns a deep copy of the aggregate taken under the read lock.
func (t *Taxonomy) Snapshot() *Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := &Snapshot{
		Version:     SnapshotVersion,
		ID:          t.id,
		Requested:   t.requested,
		Resolved:    t.resolved,
		CreatedAt:   t.createdAt,
		UpdatedAt:   t.updatedAt,
		Concepts:    make([]ConceptRecord, len(t.concepts)),
		RawCriteria: append([]string(nil), t.rawCriteria...),
		Criteria:    append([]string(nil), t.criteria...),
		Dimensions:  make([]DimensionRecord, len(t.dimensions)),
		Usage:       t.usage.Clone(),
		Saves:       append([]string(nil), t.saves...),
	}
	for i, c := range t.concepts {
		cc := c.clone()
		s.Concepts[i] = ConceptRecord{
			ID:           cc.ID,
			Name:         cc.Name,
			Descriptions: cc.Descriptions,
			Definitions:  cc.Definitions,
			Definition:   cc.Definition,
			Rank:         cc.Rank,
			Depth:        cc.Depth,
			Dimension:    cc.Dimension,
			Parent:       cc.Parent,
			Children:     cc.Children,
			Detached:     cc.Detached,
		}
	}
	for i, d := range t.dimensions {
		dd := d.clone()
		s.Dimensions[i] = DimensionRecord{
			Ranks:    dd.Ranks,
			Context:  dd.Context,
			Cursor:   dd.Cursor,
			Frontier: dd.Frontier,
			Unknown:  dd.Unknown,

			InProgress: dd.InProgress,
			Next:       dd.Next,
		}
	}
	return s
}

// FromSnapshot rebuilds a Taxonomy and checks its invariants.
func FromSnapshot(s *Snapshot) (*Taxonomy, error) {
	if s == nil {
		return nil, fmt.Errorf("nil snapshot")
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	if len(s.Concepts) == 0 {
		return nil, fmt.Errorf("snapshot %s has no root concept", s.ID)
	}

	usage := cost.Zero()
	for k, v := range s.Usage {
		usage[k] = v
	}

	t := &Taxonomy{
		id:          s.ID,
		requested:   s.Requested,
		resolved:    s.Resolved,
		createdAt:   s.CreatedAt,
		updatedAt:   s.UpdatedAt,
		concepts:    make([]*Concept, len(s.Concepts)),
		registry:    make(map[string]ConceptID, len(s.Concepts)),
		rawCriteria: append([]string(nil), s.RawCriteria...),
		criteria:    append([]string(nil), s.Criteria...),
		dimensions:  make([]*Dimension, len(s.Dimensions)),
		usage:       usage,
		saves:       append([]string(nil), s.Saves...),
	}
	for i, r := range s.Concepts {
		t.concepts[i] = &Concept{
			ID:           r.ID,
			Name:         r.Name,
			Descriptions: append([]string(nil), r.Descriptions...),
			Definitions:  append([]string(nil), r.Definitions...),
			Definition:   r.Definition,
			Rank:         r.Rank,
			Depth:        r.Depth,
			Dimension:    r.Dimension,
			Parent:       r.Parent,
			Children:     append([]ConceptID(nil), r.Children...),
			Detached:     r.Detached,
		}
		t.registry[normalize(r.Name)] = ConceptID(i)
	}
	for i, r := range s.Dimensions {
		t.dimensions[i] = &Dimension{
			Ranks:    append([]string(nil), r.Ranks...),
			Context:  r.Context,
			Cursor:   r.Cursor,
			Frontier: append([]ConceptID{}, r.Frontier...),
			Unknown:  append([]ConceptID{}, r.Unknown...),

			InProgress: r.InProgress,
			Next:       append([]ConceptID(nil), r.Next...),
		}
	}

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", s.ID, err)
	}
	return t, nil
}

// Marshal encodes the taxonomy as snapshot JSON.
func Marshal(t *Taxonomy) ([]byte, error) {
	data, err := json.Marshal(t.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// Unmarshal decodes snapshot JSON into a new Taxonomy.
func Unmarshal(data []byte) (*Taxonomy, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return FromSnapshot(&s)
}
