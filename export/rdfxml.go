package export

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// RDFXMLWriter writes RDF/XML, one typed node element per subject.
type RDFXMLWriter struct {
	names *namer
	sb    strings.Builder
	enc   *xml.Encoder
}

// NewRDFXMLWriter creates a writer declaring prefixes on the root element.
func NewRDFXMLWriter(prefixes map[string]string) *RDFXMLWriter {
	w := &RDFXMLWriter{names: newNamer(prefixes)}
	w.sb.WriteString(xml.Header)
	w.enc = xml.NewEncoder(&w.sb)
	w.enc.Indent("", "  ")
	return w
}

func name(local string) xml.Name {
	return xml.Name{Local: local}
}

func attr(key, value string) xml.Attr {
	return xml.Attr{Name: name(key), Value: value}
}

// Open writes the rdf:RDF start element.
func (w *RDFXMLWriter) Open() error {
	start := xml.StartElement{Name: name("rdf:RDF")}
	for _, p := range w.names.sorted() {
		start.Attr = append(start.Attr, attr("xmlns:"+p, w.names.prefixes[p]))
	}
	return w.enc.EncodeToken(start)
}

// WriteBlock writes one subject. Its first rdf:type names the element.
func (w *RDFXMLWriter) WriteBlock(b Block) error {
	element := "rdf:Description"
	var rest []Triple
	for _, t := range b.Triples {
		if t.Predicate == rdfType && element == "rdf:Description" {
			if q, ok := w.names.qname(fmt.Sprint(t.Object)); ok {
				element = q
				continue
			}
		}
		rest = append(rest, t)
	}

	start := xml.StartElement{Name: name(element), Attr: []xml.Attr{attr("rdf:about", b.Subject)}}
	if err := w.enc.EncodeToken(start); err != nil {
		return err
	}
	for _, t := range rest {
		if err := w.writeProperty(t); err != nil {
			return err
		}
	}
	return w.enc.EncodeToken(start.End())
}

func (w *RDFXMLWriter) writeProperty(t Triple) error {
	predicate, ok := w.names.qname(t.Predicate)
	if !ok {
		return fmt.Errorf("predicate %s has no prefix", t.Predicate)
	}
	el := xml.StartElement{Name: name(predicate)}
	if iri, ok := t.Object.(IRI); ok {
		el.Attr = append(el.Attr, attr("rdf:resource", string(iri)))
		if err := w.enc.EncodeToken(el); err != nil {
			return err
		}
		return w.enc.EncodeToken(el.End())
	}
	if err := w.enc.EncodeToken(el); err != nil {
		return err
	}
	if err := w.enc.EncodeToken(xml.CharData(fmt.Sprint(t.Object))); err != nil {
		return err
	}
	return w.enc.EncodeToken(el.End())
}

// Close ends the document.
func (w *RDFXMLWriter) Close() error {
	if err := w.enc.EncodeToken(xml.EndElement{Name: name("rdf:RDF")}); err != nil {
		return err
	}
	return w.enc.Flush()
}

// String returns the accumulated document.
func (w *RDFXMLWriter) String() string {
	return w.sb.String()
}

func toRDFXML(h *Hierarchy) (string, error) {
	w := NewRDFXMLWriter(prefixes(h))
	if err := w.Open(); err != nil {
		return "", err
	}
	for _, b := range group(h.Triples()) {
		if err := w.WriteBlock(b); err != nil {
			return "", err
		}
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return w.String() + "\n", nil
}
