// XML schema sidecar: the `*.definition` file recorded alongside each
// Index's data file, describing its fields in declaration order.
//
// encoding/xml's struct-tag marshaling maps the schema's
// TABLE_DEFINITION/FIELD element tree directly onto Go structs, so no
// hand-rolled parser is needed for a format this shallow.
package dblib

import (
	"encoding/xml"
	"os"
)

// xmlField is one FIELD element: name, type, and flag attributes.
type xmlField struct {
	XMLName   xml.Name `xml:"FIELD"`
	Name      string   `xml:"NAME,attr"`
	Type      int      `xml:"TYPE,attr"`
	Primary   bool     `xml:"PRIMARY,attr,omitempty"`
	NotNull   bool     `xml:"NOT_NULL,attr,omitempty"`
	Reference string   `xml:"REFERENCE,attr,omitempty"`
}

// xmlDefinition is the root TABLE_DEFINITION element: an ordered list of
// fields plus, for a table's own primary definition file, the list of
// secondary indices built over it. Written and read verbatim as the
// `*.definition` sidecar.
type xmlDefinition struct {
	XMLName xml.Name   `xml:"TABLE_DEFINITION"`
	Fields  []xmlField `xml:"FIELD"`
	Indices []xmlIndex `xml:"INDICES>INDEX"`
}

// xmlIndex is one INDEX element nested under INDICES: a secondary
// index's name, uniqueness, and own field schema, recorded in the
// table's primary definition file so a reopen can rebuild it without
// the caller supplying index names out of band.
type xmlIndex struct {
	XMLName xml.Name   `xml:"INDEX"`
	Name    string     `xml:"NAME,attr"`
	Unique  bool       `xml:"UNIQUE,attr,omitempty"`
	Fields  []xmlField `xml:"FIELD"`
}

// indexMeta describes one secondary index for table-definition
// persistence, independent of a live *Index.
type indexMeta struct {
	Name   string
	Unique bool
	Fields []*FieldDefinition
}

// definitionsToXML converts schema field definitions to their XML form.
func definitionsToXML(defs []*FieldDefinition) *xmlDefinition {
	doc := &xmlDefinition{Fields: make([]xmlField, len(defs))}
	for i, d := range defs {
		doc.Fields[i] = xmlField{
			Name:      d.Name,
			Type:      int(d.Type),
			Primary:   d.Primary,
			NotNull:   d.NotNull,
			Reference: d.Reference,
		}
	}
	return doc
}

// xmlToDefinitions reverses definitionsToXML.
func xmlToDefinitions(doc *xmlDefinition) ([]*FieldDefinition, error) {
	defs := make([]*FieldDefinition, len(doc.Fields))
	for i, f := range doc.Fields {
		t, err := ParseFieldType(f.Type)
		if err != nil {
			return nil, err
		}
		defs[i] = &FieldDefinition{
			Name:      f.Name,
			Type:      t,
			Primary:   f.Primary,
			NotNull:   f.NotNull,
			Reference: f.Reference,
		}
	}
	return defs, nil
}

// WriteXMLDefinition writes defs to path as the schema sidecar.
func WriteXMLDefinition(path string, defs []*FieldDefinition) error {
	defer enter("xmlschema", "Write")()

	out, err := xml.MarshalIndent(definitionsToXML(defs), "", "  ")
	if err != nil {
		return err
	}
	out = append([]byte(xml.Header), out...)
	return os.WriteFile(path, out, 0o644)
}

// ReadXMLDefinition loads the schema sidecar at path.
func ReadXMLDefinition(path string) ([]*FieldDefinition, error) {
	doc, err := readXMLDoc(path)
	if err != nil {
		return nil, err
	}
	return xmlToDefinitions(doc)
}

func readXMLDoc(path string) (*xmlDefinition, error) {
	defer enter("xmlschema", "Read")()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, withName(ErrOpenFailed, path)
	}
	var doc xmlDefinition
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, withName(ErrIllegalRecordHeader, path)
	}
	return &doc, nil
}

// WriteTableDefinition writes a table's own primary definition file,
// recording both its primary fields and the schema of every secondary
// index built over it, so OpenTable can rebuild the table's index set
// without the caller supplying index names separately.
func WriteTableDefinition(path string, defs []*FieldDefinition, indices []indexMeta) error {
	defer enter("xmlschema", "WriteTableDefinition")()

	doc := definitionsToXML(defs)
	doc.Indices = make([]xmlIndex, len(indices))
	for i, m := range indices {
		fieldDoc := definitionsToXML(m.Fields)
		doc.Indices[i] = xmlIndex{Name: m.Name, Unique: m.Unique, Fields: fieldDoc.Fields}
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	out = append([]byte(xml.Header), out...)
	return os.WriteFile(path, out, 0o644)
}

// ReadTableDefinition loads a table's primary definition file, returning
// its primary fields alongside the metadata of every secondary index it
// records.
func ReadTableDefinition(path string) ([]*FieldDefinition, []indexMeta, error) {
	doc, err := readXMLDoc(path)
	if err != nil {
		return nil, nil, err
	}
	defs, err := xmlToDefinitions(doc)
	if err != nil {
		return nil, nil, err
	}

	indices := make([]indexMeta, len(doc.Indices))
	for i, xi := range doc.Indices {
		fieldDefs, err := xmlToDefinitions(&xmlDefinition{Fields: xi.Fields})
		if err != nil {
			return nil, nil, err
		}
		indices[i] = indexMeta{Name: xi.Name, Unique: xi.Unique, Fields: fieldDefs}
	}
	return defs, indices, nil
}
