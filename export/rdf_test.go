package export_test

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/c360studio/taxorank/export"
	"github.com/c360studio/taxorank/taxonomy"
)

// vehicles builds Vehicle > {Motor Vehicle > Car, Sailboat}.
func vehicles(t *testing.T) *taxonomy.Taxonomy {
	t.Helper()

	tx := taxonomy.New("Vehicle")
	d := tx.AddDimension([]string{"Propulsion", "Body"})
	first := tx.AddChildren(tx.Root(), []string{"Motor Vehicle", "Sailboat"}, "Propulsion", d)
	if len(first) != 2 {
		t.Fatalf("expected 2 children, got %d", len(first))
	}
	tx.SetDefinition(first[0], `A vehicle with an "engine"`)
	tx.AddChildren(first[0], []string{"Car"}, "Body", d)
	return tx
}

func TestParseFormat(t *testing.T) {
	tests := map[string]export.Format{
		"":         export.FormatRDFXML,
		"owl":      export.FormatRDFXML,
		"RDF/XML":  export.FormatRDFXML,
		"ttl":      export.FormatTurtle,
		"turtle":   export.FormatTurtle,
		"nt":       export.FormatNTriples,
		"json-ld":  export.FormatJSONLD,
		" jsonld ": export.FormatJSONLD,
	}
	for in, want := range tests {
		got, err := export.ParseFormat(in)
		if err != nil {
			t.Errorf("ParseFormat(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseFormat(%q) = %s, want %s", in, got, want)
		}
	}

	if _, err := export.ParseFormat("csv"); err == nil {
		t.Error("expected error for csv")
	}
}

func TestFormatRegistry(t *testing.T) {
	formats := export.Formats()
	if len(formats) != 4 {
		t.Fatalf("expected 4 formats, got %d", len(formats))
	}
	for _, f := range formats {
		info, ok := export.GetFormatInfo(f)
		if !ok {
			t.Errorf("no info for %s", f)
			continue
		}
		if info.Name != f || info.MIMEType == "" || !strings.HasPrefix(info.Extension, ".") {
			t.Errorf("incomplete info for %s: %+v", f, info)
		}
	}
}

func TestBuild(t *testing.T) {
	tx := vehicles(t)
	h := export.Build(tx)

	if len(h.Classes) != tx.Len() {
		t.Fatalf("expected %d classes, got %d", tx.Len(), len(h.Classes))
	}
	root := h.Classes[0]
	if root.IRI != "urn:ontology/Vehicle" || root.Parent != "" {
		t.Errorf("unexpected root class: %+v", root)
	}

	byLabel := map[string]export.Class{}
	for _, c := range h.Classes {
		byLabel[c.Label] = c
	}
	car := byLabel["Car"]
	if car.Parent != "urn:ontology/Motor_Vehicle" {
		t.Errorf("Car parent = %q", car.Parent)
	}
	if car.Rank != "Body" || car.Dimension != "Propulsion > Body" {
		t.Errorf("Car rank/dimension = %q/%q", car.Rank, car.Dimension)
	}
	if byLabel["Motor Vehicle"].Definition == "" {
		t.Error("definition should be carried")
	}
}

func TestBuild_IRIs(t *testing.T) {
	tx := taxonomy.New("Vehicle")
	d := tx.AddDimension([]string{"Use"})
	tx.AddChildren(tx.Root(), []string{"Dog Food", "Dog_Food", "Sport/Utility", "rank"}, "Use", d)

	h := export.Build(tx, export.WithNamespace("http://example.org/vehicles#"))
	seen := map[string]bool{h.Ontology: true, h.RankProperty(): true}
	for _, c := range h.Classes {
		if !strings.HasPrefix(c.IRI, "http://example.org/vehicles#") {
			t.Errorf("class %q outside namespace: %s", c.Label, c.IRI)
		}
		if seen[c.IRI] {
			t.Errorf("IRI %s minted twice", c.IRI)
		}
		seen[c.IRI] = true
		if strings.Contains(c.IRI, "Sport/") {
			t.Errorf("slash should be escaped: %s", c.IRI)
		}
	}
}

func TestBuild_IRISuffixCollision(t *testing.T) {
	tx := taxonomy.New("Vehicle")
	d := tx.AddDimension([]string{"Part"})
	ids := tx.AddChildren(tx.Root(), []string{"Car_Seat_3", "Car Seat", "Car_Seat"}, "Part", d)
	if len(ids) != 3 || ids[2] != 3 {
		t.Fatalf("unexpected ids %v", ids)
	}

	h := export.Build(tx, export.WithNamespace("urn:x/"))
	iris := map[string]string{}
	for _, c := range h.Classes {
		if prev, dup := iris[c.IRI]; dup {
			t.Errorf("IRI %s minted for %q and %q", c.IRI, prev, c.Label)
		}
		iris[c.IRI] = c.Label
	}
	if got := iris["urn:x/Car_Seat_3_2"]; got != "Car_Seat" {
		t.Errorf("urn:x/Car_Seat_3_2 labels %q, want Car_Seat", got)
	}
}

func TestExportRDFXML(t *testing.T) {
	tx := vehicles(t)
	data, info, err := export.Export(tx, export.FormatRDFXML)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if info.Extension != ".owl" {
		t.Errorf("extension = %s", info.Extension)
	}

	output := string(data)
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`xmlns:owl="http://www.w3.org/2002/07/owl#"`,
		`<owl:Ontology rdf:about="urn:ontology/">`,
		`<owl:Class rdf:about="urn:ontology/Car">`,
		`<rdfs:label>Motor Vehicle</rdfs:label>`,
		`<rdfs:subClassOf rdf:resource="urn:ontology/Motor_Vehicle">`,
		`<tax:rank>Body</tax:rank>`,
		`&#34;engine&#34;`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("RDF/XML output should contain %s", want)
		}
	}

	dec := xml.NewDecoder(strings.NewReader(output))
	for {
		_, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("RDF/XML output is not well-formed: %v", err)
		}
	}
}

func TestExportTurtle(t *testing.T) {
	data, _, err := export.Export(vehicles(t), export.FormatTurtle)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	output := string(data)
	for _, want := range []string{
		"@prefix owl: <http://www.w3.org/2002/07/owl#> .",
		"@prefix tax: <urn:ontology/> .",
		"<urn:ontology/>\n    a owl:Ontology ;",
		"tax:Car\n    a owl:Class ;",
		"rdfs:subClassOf tax:Motor_Vehicle",
		`skos:definition "A vehicle with an \"engine\""`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Turtle output should contain %q", want)
		}
	}
	if strings.Count(output, "rdfs:subClassOf") != 3 {
		t.Errorf("expected 3 subClassOf assertions, got %d", strings.Count(output, "rdfs:subClassOf"))
	}
}

func TestExportNTriples(t *testing.T) {
	data, _, err := export.Export(vehicles(t), export.FormatNTriples)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	for _, line := range lines {
		if !strings.HasSuffix(line, " .") {
			t.Errorf("line should end with ' .': %s", line)
		}
	}

	want := "<urn:ontology/Car> <http://www.w3.org/2000/01/rdf-schema#subClassOf> <urn:ontology/Motor_Vehicle> ."
	if !strings.Contains(string(data), want) {
		t.Errorf("N-Triples output should contain %s", want)
	}
}

func TestExportJSONLD(t *testing.T) {
	data, _, err := export.Export(vehicles(t), export.FormatJSONLD)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	var doc struct {
		Context map[string]string `json:"@context"`
		Graph   []map[string]any  `json:"@graph"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("JSON-LD output is not valid JSON: %v", err)
	}
	if doc.Context["tax"] != "urn:ontology/" {
		t.Errorf("context tax = %q", doc.Context["tax"])
	}
	// ontology + rank property + 4 classes
	if len(doc.Graph) != 6 {
		t.Fatalf("expected 6 nodes, got %d", len(doc.Graph))
	}

	var car map[string]any
	for _, node := range doc.Graph {
		if node["@id"] == "urn:ontology/Car" {
			car = node
		}
	}
	if car == nil {
		t.Fatal("Car node missing")
	}
	parent, ok := car["rdfs:subClassOf"].(map[string]any)
	if !ok || parent["@id"] != "urn:ontology/Motor_Vehicle" {
		t.Errorf("Car subClassOf = %v", car["rdfs:subClassOf"])
	}
	if car["rdfs:label"] != "Car" {
		t.Errorf("Car label = %v", car["rdfs:label"])
	}
}

func TestExport_RootOnly(t *testing.T) {
	tx := taxonomy.Unresolved("Qwxyz")
	data, _, err := export.Export(tx, export.FormatNTriples)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if strings.Contains(string(data), "subClassOf") {
		t.Error("a lone root has no subClassOf edges")
	}
	if !strings.Contains(string(data), "<urn:ontology/Qwxyz>") {
		t.Error("root class missing")
	}
}

func TestExport_DoesNotMutate(t *testing.T) {
	tx := vehicles(t)
	before := tx.Snapshot()

	for _, f := range export.Formats() {
		if _, _, err := export.Export(tx, f); err != nil {
			t.Fatalf("Export %s failed: %v", f, err)
		}
	}

	after := tx.Snapshot()
	if !before.UpdatedAt.Equal(after.UpdatedAt) || len(before.Concepts) != len(after.Concepts) {
		t.Error("export modified the taxonomy")
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, _, err := export.Export(vehicles(t), export.Format("csv")); err == nil {
		t.Error("expected error for unsupported format")
	}
}
