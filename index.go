// Index: one record tree plus the field schema that describes it.
//
// A primary Index is keyed on its leading primary-key fields and rejects
// duplicates. A secondary Index carries its own field list — always
// ending in a synthetic RecPosField pointing back into the primary
// file — and may or may not enforce uniqueness, per its schema.
package dblib

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RecPosFieldName is the synthetic field every secondary Index schema
// ends with: the byte offset of the matching row in the primary file.
const RecPosFieldName = "REC_POS"

// Index is one named, schema-described record tree.
type Index struct {
	Name   string
	defs   []*FieldDefinition
	tree   *Tree
	unique bool

	dataPath string
	defPath  string
}

func dataFilePath(dir, name string) string { return filepath.Join(dir, name+".dat") }
func defFilePath(dir, name string) string  { return filepath.Join(dir, name+".definition") }

// CreateIndex initializes a brand-new Index named name under dir with
// the given schema and uniqueness requirement, writing its data file and
// XML schema sidecar.
func CreateIndex(dir, name string, defs []*FieldDefinition, unique bool) (*Index, error) {
	defer enter("Index", "Create")()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, withName(ErrMkdirFailed, dir)
	}

	dataPath := dataFilePath(dir, name)
	defPath := defFilePath(dir, name)

	if err := WriteXMLDefinition(defPath, defs); err != nil {
		return nil, err
	}

	tree, err := OpenTree(dataPath)
	if err != nil {
		return nil, err
	}

	return &Index{
		Name: name, defs: defs, tree: tree, unique: unique,
		dataPath: dataPath, defPath: defPath,
	}, nil
}

// OpenIndex reopens an existing Index named name under dir, loading its
// schema from the `*.definition` sidecar.
func OpenIndex(dir, name string, unique bool) (*Index, error) {
	defer enter("Index", "Open")()

	dataPath := dataFilePath(dir, name)
	defPath := defFilePath(dir, name)

	defs, err := ReadXMLDefinition(defPath)
	if err != nil {
		return nil, err
	}

	tree, err := OpenTree(dataPath)
	if err != nil {
		return nil, err
	}

	return &Index{
		Name: name, defs: defs, tree: tree, unique: unique,
		dataPath: dataPath, defPath: defPath,
	}, nil
}

// Close releases the Index's underlying file reference.
func (idx *Index) Close() error { return idx.tree.Close() }

// Fields returns the Index's schema, in declaration order.
func (idx *Index) Fields() []*FieldDefinition { return idx.defs }

// FindField looks up a field definition by name, case-insensitively.
// Returns its position in the schema alongside the definition itself.
func (idx *Index) FindField(name string) (*FieldDefinition, int, error) {
	for i, d := range idx.defs {
		if strings.EqualFold(d.Name, name) {
			return d, i, nil
		}
	}
	return nil, -1, withName(ErrFieldNotFound, name)
}

// AddField appends a new field to the schema and persists it. Existing
// rows are left untouched on disk; decodeValueBlock supplies a null value
// for any field a stored row's own sidecar predates.
func (idx *Index) AddField(def *FieldDefinition) error {
	defer enter("Index", "AddField")()

	if _, _, err := idx.FindField(def.Name); err == nil {
		return withName(ErrFieldExists, def.Name)
	}
	idx.defs = append(idx.defs, def)
	return WriteXMLDefinition(idx.defPath, idx.defs)
}

// NewRecord returns an empty Record matching the Index's schema.
func (idx *Index) NewRecord() *Record { return NewRecord(idx.defs) }

// Insert writes rec's fields as a new row, enforcing uniqueness if the
// Index requires it.
func (idx *Index) Insert(rec *Record) (int64, error) {
	defer enter("Index", "Insert")()
	return idx.tree.Insert(rec.Fields, idx.defs, idx.unique)
}

// LocatePrimary finds the live row whose primary-key prefix equals the
// schema-ordered key values. Only meaningful for a primary Index.
func (idx *Index) LocatePrimary(keyValues []any) (*Record, int64, error) {
	defer enter("Index", "LocatePrimary")()

	key, err := idx.encodeKeyPrefix(keyValues)
	if err != nil {
		return nil, 0, err
	}
	f, addr, err := idx.tree.LocatePrimary(key, idx.defs)
	if err != nil || f == nil {
		return nil, addr, err
	}
	return &Record{Header: f.header, Fields: f.fields, Mode: RecordBrowse}, addr, nil
}

// Locate finds a live row whose leading fields equal keyValues, used for
// secondary-index equality lookups.
func (idx *Index) Locate(keyValues []any) (*Record, int64, error) {
	defer enter("Index", "Locate")()

	key, err := idx.encodeKeyPrefix(keyValues)
	if err != nil {
		return nil, 0, err
	}
	if len(keyValues) < len(idx.defs) {
		key += ";"
	}
	f, addr, err := idx.tree.LocateByKey(key, idx.defs)
	if err != nil || f == nil {
		return nil, addr, err
	}
	return &Record{Header: f.header, Fields: f.fields, Mode: RecordBrowse}, addr, nil
}

// encodeKeyPrefix encodes keyValues through each corresponding field's
// Coder and joins them the same way a stored row's key prefix is joined.
func (idx *Index) encodeKeyPrefix(keyValues []any) (string, error) {
	if len(keyValues) > len(idx.defs) {
		return "", fmt.Errorf("dblib: too many key values for index %s", idx.Name)
	}
	parts := make([]string, len(keyValues))
	for i, v := range keyValues {
		c, err := CoderFor(idx.defs[i].Type)
		if err != nil {
			return "", err
		}
		enc, err := c.Encode(v)
		if err != nil {
			return "", err
		}
		parts[i] = enc
	}
	return strings.Join(parts, ";"), nil
}

// NewCursor returns a Cursor over the Index's tree, filtered to the given
// encoded key prefix (empty for an unrestricted full scan).
func (idx *Index) NewCursor(prefix string) *Cursor {
	return NewCursor(idx.tree, idx.defs, prefix)
}

// MarkDeleted tombstones the row at addr without removing it from the
// tree, matching the engine's tombstone-only delete semantics.
func (idx *Index) MarkDeleted(addr int64) error {
	defer enter("Index", "MarkDeleted")()
	h, err := readRecordHeader(idx.tree.file, addr)
	if err != nil {
		return err
	}
	h.SetDeleted()
	return writeRecordHeader(idx.tree.file, h)
}
