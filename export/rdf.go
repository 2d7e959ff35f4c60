// Package export renders a taxonomy as an OWL class hierarchy.
//
// Every concept becomes an owl:Class labelled with its name, and every
// parent-child edge becomes an rdfs:subClassOf assertion. Exporting reads the
// taxonomy only.
package export

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/c360studio/taxorank/taxonomy"
)

// Format specifies the output serialization format.
type Format string

const (
	// FormatRDFXML produces RDF/XML (.owl) output.
	FormatRDFXML Format = "rdfxml"

	// FormatTurtle produces Turtle (.ttl) output.
	FormatTurtle Format = "turtle"

	// FormatNTriples produces N-Triples (.nt) output.
	FormatNTriples Format = "ntriples"

	// FormatJSONLD produces JSON-LD (.jsonld) output.
	FormatJSONLD Format = "jsonld"
)

// DefaultNamespace prefixes class IRIs when no namespace is configured.
const DefaultNamespace = "urn:ontology/"

// Vocabulary IRIs.
const (
	nsRDF  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	nsRDFS = "http://www.w3.org/2000/01/rdf-schema#"
	nsOWL  = "http://www.w3.org/2002/07/owl#"
	nsSKOS = "http://www.w3.org/2004/02/skos/core#"

	rdfType               = nsRDF + "type"
	rdfsLabel             = nsRDFS + "label"
	rdfsSubClassOf        = nsRDFS + "subClassOf"
	owlClass              = nsOWL + "Class"
	owlOntology           = nsOWL + "Ontology"
	owlAnnotationProperty = nsOWL + "AnnotationProperty"
	skosDefinition        = nsSKOS + "definition"
	skosScopeNote         = nsSKOS + "scopeNote"
)

// ParseFormat maps a format name or common alias onto a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rdfxml", "rdf/xml", "xml", "owl", "":
		return FormatRDFXML, nil
	case "turtle", "ttl":
		return FormatTurtle, nil
	case "ntriples", "n-triples", "nt":
		return FormatNTriples, nil
	case "jsonld", "json-ld":
		return FormatJSONLD, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// IRI marks a triple object that is a resource rather than a literal.
type IRI string

// Triple represents a semantic triple for export.
type Triple struct {
	Subject   string
	Predicate string
	Object    any // IRI or string literal
}

// Class is one node of the exported hierarchy.
type Class struct {
	IRI        string
	Label      string
	Parent     string // empty for the root
	Definition string
	Rank       string
	Dimension  string // rank context of the dimension that grew the class
}

// Hierarchy is the class tree derived from a taxonomy.
type Hierarchy struct {
	Ontology string
	Title    string
	Classes  []Class
}

// Option configures an export.
type Option func(*options)

type options struct {
	namespace string
}

// WithNamespace sets the IRI prefix for classes.
func WithNamespace(ns string) Option {
	return func(o *options) {
		if ns != "" {
			o.namespace = ns
		}
	}
}

// Build derives the class hierarchy from the root and all its descendants.
func Build(t *taxonomy.Taxonomy, opts ...Option) *Hierarchy {
	o := options{namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(&o)
	}

	contexts := make(map[int]string, t.DimensionCount())
	for d := 0; d < t.DimensionCount(); d++ {
		dim, _ := t.Dimension(d)
		contexts[d] = dim.Context
	}

	h := &Hierarchy{
		Ontology: o.namespace,
		Title:    t.RootName() + " taxonomy",
	}
	iris := make(map[taxonomy.ConceptID]string)
	used := map[string]bool{h.Ontology: true, h.RankProperty(): true}

	t.Walk(func(c taxonomy.Concept) {
		iri := mintIRI(o.namespace, c.Name)
		if used[iri] {
			base := fmt.Sprintf("%s_%d", iri, c.ID)
			iri = base
			for n := 2; used[iri]; n++ {
				iri = fmt.Sprintf("%s_%d", base, n)
			}
		}
		used[iri] = true
		iris[c.ID] = iri

		class := Class{
			IRI:        iri,
			Label:      c.Name,
			Definition: c.Definition,
			Rank:       c.Rank,
		}
		if !c.IsRoot() {
			class.Parent = iris[c.Parent]
			class.Dimension = contexts[c.Dimension]
		}
		h.Classes = append(h.Classes, class)
	})
	return h
}

// mintIRI turns a concept name into an IRI under ns.
func mintIRI(ns, name string) string {
	local := strings.Join(strings.Fields(name), "_")
	return ns + url.PathEscape(local)
}

// RankProperty is the annotation property carrying a class's rank.
func (h *Hierarchy) RankProperty() string {
	return h.Ontology + "rank"
}

// Triples flattens the hierarchy into triples: the ontology header first,
// then each class in pre-order.
func (h *Hierarchy) Triples() []Triple {
	rank := h.RankProperty()
	triples := []Triple{
		{Subject: h.Ontology, Predicate: rdfType, Object: IRI(owlOntology)},
		{Subject: h.Ontology, Predicate: rdfsLabel, Object: h.Title},
		{Subject: rank, Predicate: rdfType, Object: IRI(owlAnnotationProperty)},
		{Subject: rank, Predicate: rdfsLabel, Object: "rank"},
	}
	for _, c := range h.Classes {
		triples = append(triples, c.triples(rank)...)
	}
	return triples
}

func (c Class) triples(rankProperty string) []Triple {
	out := []Triple{
		{Subject: c.IRI, Predicate: rdfType, Object: IRI(owlClass)},
		{Subject: c.IRI, Predicate: rdfsLabel, Object: c.Label},
	}
	if c.Parent != "" {
		out = append(out, Triple{Subject: c.IRI, Predicate: rdfsSubClassOf, Object: IRI(c.Parent)})
	}
	if c.Rank != "" {
		out = append(out, Triple{Subject: c.IRI, Predicate: rankProperty, Object: c.Rank})
	}
	if c.Definition != "" {
		out = append(out, Triple{Subject: c.IRI, Predicate: skosDefinition, Object: c.Definition})
	}
	if c.Dimension != "" {
		out = append(out, Triple{Subject: c.IRI, Predicate: skosScopeNote, Object: c.Dimension})
	}
	return out
}

// Export renders the taxonomy in format and returns the document together
// with the format's metadata.
func Export(t *taxonomy.Taxonomy, format Format, opts ...Option) ([]byte, FormatInfo, error) {
	info, ok := GetFormatInfo(format)
	if !ok {
		return nil, FormatInfo{}, fmt.Errorf("unsupported format: %s", format)
	}

	h := Build(t, opts...)
	var (
		out string
		err error
	)
	switch format {
	case FormatTurtle:
		out = toTurtle(h)
	case FormatNTriples:
		out = toNTriples(h)
	case FormatJSONLD:
		out, err = toJSONLD(h)
	case FormatRDFXML:
		out, err = toRDFXML(h)
	}
	if err != nil {
		return nil, FormatInfo{}, fmt.Errorf("render %s: %w", format, err)
	}
	return []byte(out), info, nil
}

// prefixes returns the namespace prefixes used in Turtle and JSON-LD output.
func prefixes(h *Hierarchy) map[string]string {
	return map[string]string{
		"rdf":  nsRDF,
		"rdfs": nsRDFS,
		"owl":  nsOWL,
		"skos": nsSKOS,
		"tax":  h.Ontology,
	}
}

// escapeString escapes special characters in strings for RDF serialization.
func escapeString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}
