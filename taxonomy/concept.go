package taxonomy

// ConceptID indexes a concept in the taxonomy's arena.
type ConceptID int

// NoConcept is the parent of the root.
const NoConcept ConceptID = -1

// RootDimension is the owning dimension recorded on the root concept.
const RootDimension = -1

// RootRank is the rank label of the root concept.
const RootRank = "root"

// Concept is a node of the concept graph. Parent and children are arena
// indices, so concepts never hold references to each other.
type Concept struct {
	ID           ConceptID
	Name         string
	Descriptions []string
	Definitions  []string
	// Definition is the working definition used when expanding the concept.
	Definition string
	Rank       string
	Depth      int
	Dimension  int
	Parent     ConceptID
	Children   []ConceptID
	// Detached concepts were cut off when an ancestor moved to an unknown
	// queue. They keep their names in the registry but are unreachable from
	// the root.
	Detached bool
}

// IsRoot reports whether c is the taxonomy root.
func (c Concept) IsRoot() bool {
	return c.ID == 0 && c.Parent == NoConcept
}

func (c *Concept) clone() Concept {
	out := *c
	out.Descriptions = append([]string(nil), c.Descriptions...)
	out.Definitions = append([]string(nil), c.Definitions...)
	out.Children = append([]ConceptID(nil), c.Children...)
	return out
}
