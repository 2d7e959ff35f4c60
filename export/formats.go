package export

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// FormatInfo provides metadata about an export format.
type FormatInfo struct {
	// Name is the format identifier.
	Name Format

	// MIMEType is the standard MIME type.
	MIMEType string

	// Extension is the file extension (with dot).
	Extension string

	// Description describes the format.
	Description string
}

// FormatRegistry contains metadata for all supported formats.
var FormatRegistry = map[Format]FormatInfo{
	FormatRDFXML: {
		Name:        FormatRDFXML,
		MIMEType:    "application/rdf+xml",
		Extension:   ".owl",
		Description: "RDF/XML - OWL ontology document",
	},
	FormatTurtle: {
		Name:        FormatTurtle,
		MIMEType:    "text/turtle",
		Extension:   ".ttl",
		Description: "Turtle - Terse RDF Triple Language",
	},
	FormatNTriples: {
		Name:        FormatNTriples,
		MIMEType:    "application/n-triples",
		Extension:   ".nt",
		Description: "N-Triples - Line-based RDF format",
	},
	FormatJSONLD: {
		Name:        FormatJSONLD,
		MIMEType:    "application/ld+json",
		Extension:   ".jsonld",
		Description: "JSON-LD - JSON for Linked Data",
	},
}

// GetFormatInfo returns metadata for a format.
func GetFormatInfo(format Format) (FormatInfo, bool) {
	info, ok := FormatRegistry[format]
	return info, ok
}

// Formats lists the registered formats in a stable order.
func Formats() []Format {
	out := make([]Format, 0, len(FormatRegistry))
	for f := range FormatRegistry {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var localName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// namer shortens vocabulary IRIs to prefixed names.
type namer struct {
	prefixes map[string]string
	keys     []string // longest namespace first
}

func newNamer(prefixes map[string]string) *namer {
	keys := make([]string, 0, len(prefixes))
	for k := range prefixes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := prefixes[keys[i]], prefixes[keys[j]]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return keys[i] < keys[j]
	})
	return &namer{prefixes: prefixes, keys: keys}
}

// qname returns "prefix:local" for iri, or false when no prefix covers it
// with a plain local name.
func (n *namer) qname(iri string) (string, bool) {
	for _, p := range n.keys {
		if rest, ok := strings.CutPrefix(iri, n.prefixes[p]); ok && localName.MatchString(rest) {
			return p + ":" + rest, true
		}
	}
	return "", false
}

// sorted returns prefix names in alphabetical order.
func (n *namer) sorted() []string {
	keys := append([]string(nil), n.keys...)
	sort.Strings(keys)
	return keys
}

// Block is the run of triples sharing one subject.
type Block struct {
	Subject string
	Triples []Triple
}

// group collects triples by subject, keeping first-seen order.
func group(triples []Triple) []Block {
	var blocks []Block
	index := make(map[string]int)
	for _, t := range triples {
		i, ok := index[t.Subject]
		if !ok {
			i = len(blocks)
			index[t.Subject] = i
			blocks = append(blocks, Block{Subject: t.Subject})
		}
		blocks[i].Triples = append(blocks[i].Triples, t)
	}
	return blocks
}

// TurtleWriter writes RDF in Turtle format.
type TurtleWriter struct {
	names *namer
	sb    strings.Builder
}

// NewTurtleWriter creates a Turtle writer using the given prefixes.
func NewTurtleWriter(prefixes map[string]string) *TurtleWriter {
	return &TurtleWriter{names: newNamer(prefixes)}
}

// WritePrefixes writes prefix declarations.
func (w *TurtleWriter) WritePrefixes() {
	for _, prefix := range w.names.sorted() {
		w.sb.WriteString(fmt.Sprintf("@prefix %s: <%s> .\n", prefix, w.names.prefixes[prefix]))
	}
	w.sb.WriteString("\n")
}

// WriteBlock writes one subject with all its predicate-object pairs.
func (w *TurtleWriter) WriteBlock(b Block) {
	w.sb.WriteString(w.term(b.Subject))
	w.sb.WriteString("\n")
	for i, t := range b.Triples {
		terminator := " ;"
		if i == len(b.Triples)-1 {
			terminator = " ."
		}
		predicate := w.term(t.Predicate)
		if t.Predicate == rdfType {
			predicate = "a"
		}
		w.sb.WriteString(fmt.Sprintf("    %s %s%s\n", predicate, w.object(t.Object), terminator))
	}
	w.sb.WriteString("\n")
}

func (w *TurtleWriter) term(iri string) string {
	if q, ok := w.names.qname(iri); ok {
		return q
	}
	return "<" + iri + ">"
}

func (w *TurtleWriter) object(obj any) string {
	if iri, ok := obj.(IRI); ok {
		return w.term(string(iri))
	}
	return fmt.Sprintf("\"%s\"", escapeString(fmt.Sprint(obj)))
}

// String returns the accumulated Turtle output.
func (w *TurtleWriter) String() string {
	return w.sb.String()
}

func toTurtle(h *Hierarchy) string {
	w := NewTurtleWriter(prefixes(h))
	w.WritePrefixes()
	for _, b := range group(h.Triples()) {
		w.WriteBlock(b)
	}
	return w.String()
}

// NTriplesWriter writes RDF in N-Triples format.
type NTriplesWriter struct {
	sb strings.Builder
}

// NewNTriplesWriter creates a new N-Triples writer.
func NewNTriplesWriter() *NTriplesWriter {
	return &NTriplesWriter{}
}

// WriteTriple writes a single triple.
func (w *NTriplesWriter) WriteTriple(t Triple) {
	w.sb.WriteString(fmt.Sprintf("<%s> <%s> %s .\n", t.Subject, t.Predicate, formatObjectNTriples(t.Object)))
}

// String returns the accumulated N-Triples output.
func (w *NTriplesWriter) String() string {
	return w.sb.String()
}

// formatObjectNTriples formats an object value for N-Triples output.
func formatObjectNTriples(obj any) string {
	if iri, ok := obj.(IRI); ok {
		return fmt.Sprintf("<%s>", iri)
	}
	return fmt.Sprintf("\"%s\"", escapeString(fmt.Sprint(obj)))
}

func toNTriples(h *Hierarchy) string {
	w := NewNTriplesWriter()
	for _, t := range h.Triples() {
		w.WriteTriple(t)
	}
	return w.String()
}

// JSONLDDocument represents a JSON-LD document structure.
type JSONLDDocument struct {
	Context map[string]any `json:"@context"`
	Graph   []JSONLDNode   `json:"@graph"`
}

// JSONLDNode represents a node in a JSON-LD graph.
type JSONLDNode struct {
	ID         string         `json:"@id"`
	Type       []string       `json:"@type,omitempty"`
	Properties map[string]any `json:"-"`
}

// MarshalJSON implements custom JSON marshaling for JSONLDNode.
func (n JSONLDNode) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(n.Properties)+2)
	m["@id"] = n.ID
	if len(n.Type) > 0 {
		m["@type"] = n.Type
	}
	for k, v := range n.Properties {
		m[k] = v
	}
	return json.Marshal(m)
}

// JSONLDWriter writes RDF in JSON-LD format.
type JSONLDWriter struct {
	names *namer
	doc   JSONLDDocument
}

// NewJSONLDWriter creates a JSON-LD writer whose @context holds prefixes.
func NewJSONLDWriter(prefixes map[string]string) *JSONLDWriter {
	ctx := make(map[string]any, len(prefixes))
	for k, v := range prefixes {
		ctx[k] = v
	}
	return &JSONLDWriter{
		names: newNamer(prefixes),
		doc: JSONLDDocument{
			Context: ctx,
			Graph:   make([]JSONLDNode, 0),
		},
	}
}

// AddBlock adds one subject as a graph node.
func (w *JSONLDWriter) AddBlock(b Block) {
	node := JSONLDNode{ID: b.Subject, Properties: make(map[string]any)}
	for _, t := range b.Triples {
		if t.Predicate == rdfType {
			node.Type = append(node.Type, w.term(fmt.Sprint(t.Object)))
			continue
		}
		key := w.term(t.Predicate)
		var value any = fmt.Sprint(t.Object)
		if iri, ok := t.Object.(IRI); ok {
			value = map[string]string{"@id": string(iri)}
		}
		switch prev := node.Properties[key].(type) {
		case nil:
			node.Properties[key] = value
		case []any:
			node.Properties[key] = append(prev, value)
		default:
			node.Properties[key] = []any{prev, value}
		}
	}
	w.doc.Graph = append(w.doc.Graph, node)
}

func (w *JSONLDWriter) term(iri string) string {
	if q, ok := w.names.qname(iri); ok {
		return q
	}
	return iri
}

// Bytes returns the indented JSON-LD document.
func (w *JSONLDWriter) Bytes() ([]byte, error) {
	return json.MarshalIndent(w.doc, "", "  ")
}

func toJSONLD(h *Hierarchy) (string, error) {
	w := NewJSONLDWriter(prefixes(h))
	for _, b := range group(h.Triples()) {
		w.AddBlock(b)
	}
	data, err := w.Bytes()
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}
