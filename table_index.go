// Secondary index lifecycle: creation, field addition, full rebuild, the
// "current index" cursor redirect, and removal.
package dblib

// CreateSecondaryIndex builds a brand-new secondary Index over fields
// (which must already end in a RecPosFieldName field per convention; if
// it doesn't, one is appended) and populates it by scanning the primary
// index's live rows, equivalent to the source's createIndex followed by
// an implicit refreshIndex over existing data.
func (t *Table) CreateSecondaryIndex(name string, fields []*FieldDefinition, unique bool) (*Index, error) {
	defer enter("Table", "CreateSecondaryIndex")()

	if _, ok := t.byName[name]; ok {
		return nil, withName(ErrIndexExists, name)
	}
	if len(fields) == 0 || fields[len(fields)-1].Name != RecPosFieldName {
		fields = append(fields, &FieldDefinition{Name: RecPosFieldName, Type: FieldInteger, NotNull: true})
	}

	idx, err := CreateIndex(t.dir, name, fields, unique)
	if err != nil {
		return nil, err
	}

	t.secondary = append(t.secondary, idx)
	t.byName[name] = idx

	if err := t.persistIndexList(); err != nil {
		return nil, err
	}
	if err := t.RefreshIndex(name); err != nil {
		return nil, err
	}
	return idx, nil
}

// AddFieldToIndex adds def to the named index's schema. The primary
// index and every secondary index may grow independently; existing rows
// in other indices are unaffected.
func (t *Table) AddFieldToIndex(indexName string, def *FieldDefinition) error {
	defer enter("Table", "AddFieldToIndex")()

	idx, ok := t.byName[indexName]
	if !ok {
		return withName(ErrIndexNotFound, indexName)
	}
	if err := idx.AddField(def); err != nil {
		return err
	}
	// idx.AddField already rewrote idx's own `*.definition` file with its
	// bare field list; when idx is the primary, that write just clobbered
	// the INDICES element persistIndexList maintains there, so it must be
	// restored regardless of which index actually grew.
	return t.persistIndexList()
}

// RefreshIndex walks every live row in the primary index and inserts one
// tracking row per primary row into the named secondary index, used after
// CreateSecondaryIndex and after restoring a table whose secondary index
// file was lost or truncated. Rows already present in the index are left
// in place. RefreshIndex makes no uniqueness check of its own; the only
// one applied is Tree.Insert's, which compares primary-flagged fields.
func (t *Table) RefreshIndex(name string) error {
	defer enter("Table", "RefreshIndex")()

	idx, ok := t.byName[name]
	if !ok || idx == t.primary {
		return withName(ErrIndexNotFound, name)
	}

	cur := t.primary.NewCursor("")
	f, err := cur.First()
	if err != nil {
		return err
	}
	for f != nil {
		rec := &Record{Header: f.header, Fields: f.fields}
		if err := t.insertKeyRecord(idx, rec, cur.Addr()); err != nil {
			return err
		}
		f, err = cur.Next()
		if err != nil {
			return err
		}
	}
	return nil
}

// SetIndex redirects Table.NewCursor to walk the named index instead of
// the primary index, matching the source's single "current index"
// cursor redirect used to browse rows in a secondary order without a
// separate cursor type per index. The redirected cursor yields the
// index's own rows (its key fields and REC_POS); it does not load the
// primary rows they point at. An empty name restores the primary.
func (t *Table) SetIndex(name string) error {
	defer enter("Table", "SetIndex")()

	if name == "" {
		t.current = nil
		return nil
	}
	idx, ok := t.byName[name]
	if !ok {
		return withName(ErrIndexNotFound, name)
	}
	t.current = idx
	return nil
}

// DropIndex closes and forgets the named secondary index. The primary
// index cannot be dropped.
func (t *Table) DropIndex(name string) error {
	defer enter("Table", "DropIndex")()

	idx, ok := t.byName[name]
	if !ok {
		return withName(ErrIndexNotFound, name)
	}
	if idx == t.primary {
		return withName(ErrIndexNotFound, name)
	}

	if err := idx.Close(); err != nil {
		return err
	}
	delete(t.byName, name)
	for i, s := range t.secondary {
		if s == idx {
			t.secondary = append(t.secondary[:i], t.secondary[i+1:]...)
			break
		}
	}
	if t.current == idx {
		t.current = nil
	}
	return t.persistIndexList()
}
