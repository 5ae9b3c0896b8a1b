// Table: a primary Index plus zero or more secondary Indices over the
// same logical rows, maintained together so that every write keeps all
// of a table's indices consistent with its primary data.
package dblib

import (
	"path/filepath"
	"sync"
)

// Table is a named collection of typed records with one primary key and
// any number of secondary indices.
type Table struct {
	Name string
	dir  string

	// mu serializes PostRecord/UpdateRecord/DeleteRecord so that a write
	// touching the primary index and several secondary indices is never
	// interleaved with another write on the same table. No equivalent of
	// the source's cross-process flock is offered: the engine is
	// declared single-process, so an in-process mutex guarding the same
	// handle-lifetime shape is the part of that design this domain needs.
	mu sync.Mutex

	primary   *Index
	secondary []*Index
	byName    map[string]*Index
	current   *Index // redirect target for cursor calls; nil = primary
}

func tableDir(dbDir, name string) string { return filepath.Join(dbDir, name) }

// CreateTable makes a brand-new table directory, its primary Index over
// primaryDefs, and opens it for writing.
func CreateTable(dbDir, name string, primaryDefs []*FieldDefinition) (*Table, error) {
	defer enter("Table", "Create")()

	dir := tableDir(dbDir, name)
	primary, err := CreateIndex(dir, "primary", primaryDefs, true)
	if err != nil {
		return nil, err
	}

	return &Table{
		Name: name, dir: dir,
		primary: primary,
		byName:  map[string]*Index{"primary": primary},
	}, nil
}

// OpenTable reopens an existing table directory, its primary index and
// every secondary index recorded in the primary's own definition file.
func OpenTable(dbDir, name string) (*Table, error) {
	defer enter("Table", "Open")()

	dir := tableDir(dbDir, name)
	primary, err := OpenIndex(dir, "primary", true)
	if err != nil {
		return nil, err
	}

	_, indices, err := ReadTableDefinition(primary.defPath)
	if err != nil {
		return nil, err
	}

	t := &Table{
		Name: name, dir: dir,
		primary: primary,
		byName:  map[string]*Index{"primary": primary},
	}

	for _, m := range indices {
		idx, err := OpenIndex(dir, m.Name, m.Unique)
		if err != nil {
			return nil, err
		}
		t.secondary = append(t.secondary, idx)
		t.byName[m.Name] = idx
	}
	return t, nil
}

// persistIndexList rewrites the primary index's own definition file so it
// records the current secondary index set, letting a later OpenTable
// rebuild it without external input.
func (t *Table) persistIndexList() error {
	metas := make([]indexMeta, len(t.secondary))
	for i, idx := range t.secondary {
		metas[i] = indexMeta{Name: idx.Name, Unique: idx.unique, Fields: idx.defs}
	}
	return WriteTableDefinition(t.primary.defPath, t.primary.defs, metas)
}

// Close releases every index's file reference.
func (t *Table) Close() error {
	if err := t.primary.Close(); err != nil {
		return err
	}
	for _, idx := range t.secondary {
		if err := idx.Close(); err != nil {
			return err
		}
	}
	return nil
}

// Primary returns the table's primary Index.
func (t *Table) Primary() *Index { return t.primary }

// checkKeyViolation probes the primary index, then every secondary index
// that enforces uniqueness, for a row already matching rec's
// corresponding field values, before any write touches disk. This
// mirrors the source's practice of validating every index up front
// rather than unwinding a partially applied write after a late failure.
func (t *Table) checkKeyViolation(rec *Record, skipAddr int64) error {
	_, addr, err := t.primary.tree.LocatePrimary(primaryKeyText(rec.Fields), t.primary.defs)
	if err != nil {
		return err
	}
	if addr != 0 && addr != skipAddr {
		return withName(ErrKeyViolation, t.primary.Name)
	}

	for _, idx := range t.secondary {
		if !idx.unique {
			continue
		}
		values, err := secondaryKeyValues(idx, rec)
		if err != nil {
			return err
		}
		krec, _, err := idx.Locate(values)
		if err != nil {
			return err
		}
		if krec != nil {
			pos, err := krec.FieldByName(RecPosFieldName).Get()
			if err != nil {
				return err
			}
			if pos != skipAddr {
				return withName(ErrKeyViolation, idx.Name)
			}
		}
	}
	return nil
}

// secondaryKeyValues decodes, from rec, the typed values of every field
// an Index's schema needs up to (but excluding) its synthetic REC_POS
// tail field.
func secondaryKeyValues(idx *Index, rec *Record) ([]any, error) {
	var values []any
	for _, def := range idx.defs {
		if def.Name == RecPosFieldName {
			break
		}
		f := rec.FieldByName(def.Name)
		if f == nil {
			values = append(values, nil)
			continue
		}
		v, err := f.Get()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// insertKeyRecord writes one secondary-index row tracking rec, whose
// trailing REC_POS field points at primaryAddr.
func (t *Table) insertKeyRecord(idx *Index, rec *Record, primaryAddr int64) error {
	krec := idx.NewRecord()
	for _, def := range idx.defs {
		if def.Name == RecPosFieldName {
			if err := krec.FieldByName(def.Name).Set(primaryAddr); err != nil {
				return err
			}
			continue
		}
		f := rec.FieldByName(def.Name)
		if f == nil || f.IsNull() {
			continue
		}
		v, err := f.Get()
		if err != nil {
			return err
		}
		if err := krec.FieldByName(def.Name).Set(v); err != nil {
			return err
		}
	}
	_, err := idx.Insert(krec)
	return err
}

// PostRecord inserts rec as a new row: it validates every unique
// secondary index first, writes the primary row, then writes one
// tracking row per secondary index. A violation on any index leaves the
// table untouched.
func (t *Table) PostRecord(rec *Record) (int64, error) {
	defer enter("Table", "PostRecord")()
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.postRecord(rec)
}

func (t *Table) postRecord(rec *Record) (int64, error) {
	if err := t.checkKeyViolation(rec, 0); err != nil {
		return 0, err
	}

	addr, err := t.primary.Insert(rec)
	if err != nil {
		return 0, err
	}

	for _, idx := range t.secondary {
		if err := t.insertKeyRecord(idx, rec, addr); err != nil {
			return addr, err
		}
	}
	return addr, nil
}

// UpdateRecord tombstones the primary row at addr and every secondary
// index row referencing it, then inserts rec as a fresh row. This keeps
// the record tree append-only: nothing is patched in place except
// status bits.
func (t *Table) UpdateRecord(addr int64, rec *Record) (int64, error) {
	defer enter("Table", "UpdateRecord")()
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkKeyViolation(rec, addr); err != nil {
		return 0, err
	}
	if err := t.deleteRecord(addr); err != nil {
		return 0, err
	}
	return t.postRecord(rec)
}

// DeleteRecord tombstones the primary row at addr and every secondary
// index row whose REC_POS points at it.
func (t *Table) DeleteRecord(addr int64) error {
	defer enter("Table", "DeleteRecord")()
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deleteRecord(addr)
}

func (t *Table) deleteRecord(addr int64) error {
	prev, _, err := t.loadPrimaryAt(addr)
	if err != nil {
		return err
	}
	if err := t.primary.MarkDeleted(addr); err != nil {
		return err
	}

	for _, idx := range t.secondary {
		if err := t.deleteKeyRecord(idx, prev, addr); err != nil {
			return err
		}
	}
	return nil
}

// loadPrimaryAt reads the primary row at addr, used by DeleteRecord to
// recover the field values needed to find each secondary tracking row.
func (t *Table) loadPrimaryAt(addr int64) (*Record, int64, error) {
	f, err := loadFrame(t.primary.tree.file, addr, t.primary.defs)
	if err != nil {
		return nil, 0, err
	}
	return &Record{Header: f.header, Fields: f.fields}, addr, nil
}

// deleteKeyRecord tombstones idx's tracking row for a deleted primary
// row, located by the same field values and REC_POS used to insert it.
func (t *Table) deleteKeyRecord(idx *Index, rec *Record, primaryAddr int64) error {
	values, err := secondaryKeyValues(idx, rec)
	if err != nil {
		return err
	}
	_, addr, err := idx.Locate(append(values, primaryAddr))
	if err != nil {
		return err
	}
	if addr == 0 {
		return nil
	}
	return idx.MarkDeleted(addr)
}

// activeIndex returns the index cursor calls should target: the current
// index if SetIndex has redirected it, otherwise the primary index.
func (t *Table) activeIndex() *Index {
	if t.current != nil {
		return t.current
	}
	return t.primary
}

// NewCursor returns a Cursor over the table's active index (primary,
// unless SetIndex has redirected it), filtered to prefix.
func (t *Table) NewCursor(prefix string) *Cursor {
	return t.activeIndex().NewCursor(prefix)
}
