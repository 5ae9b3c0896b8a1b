package dblib

import "testing"

func primaryFieldDefs() []*FieldDefinition {
	return []*FieldDefinition{
		{Name: "id", Type: FieldInteger, Primary: true, NotNull: true},
		{Name: "name", Type: FieldString},
	}
}

func TestCreateAndOpenIndex(t *testing.T) {
	dir := t.TempDir()

	idx, err := CreateIndex(dir, "primary", primaryFieldDefs(), true)
	if err != nil {
		t.Fatal(err)
	}
	rec := idx.NewRecord()
	if err := rec.FieldByName("id").Set(int64(1)); err != nil {
		t.Fatal(err)
	}
	if err := rec.FieldByName("name").Set("alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.Insert(rec); err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenIndex(dir, "primary", true)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { reopened.Close() })

	got, _, err := reopened.LocatePrimary([]any{int64(1)})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("LocatePrimary did not find row written before close")
	}
	name, err := got.FieldByName("name").Get()
	if err != nil {
		t.Fatal(err)
	}
	if name.(string) != "alice" {
		t.Fatalf("got name %q, want alice", name)
	}
}

func TestIndexFindFieldCaseInsensitive(t *testing.T) {
	idx, err := CreateIndex(t.TempDir(), "primary", primaryFieldDefs(), true)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })

	def, pos, err := idx.FindField("NAME")
	if err != nil {
		t.Fatal(err)
	}
	if def.Name != "name" || pos != 1 {
		t.Fatalf("FindField(NAME) = %+v at %d, want name field at 1", def, pos)
	}

	if _, _, err := idx.FindField("missing"); err == nil {
		t.Fatal("FindField(missing) should fail")
	}
}

func TestIndexAddFieldNullForExistingRows(t *testing.T) {
	idx, err := CreateIndex(t.TempDir(), "primary", primaryFieldDefs(), true)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })

	rec := idx.NewRecord()
	rec.FieldByName("id").Set(int64(1))
	rec.FieldByName("name").Set("bob")
	addr, err := idx.Insert(rec)
	if err != nil {
		t.Fatal(err)
	}

	if err := idx.AddField(&FieldDefinition{Name: "age", Type: FieldInteger}); err != nil {
		t.Fatal(err)
	}

	f, err := loadFrame(idx.tree.file, addr, idx.defs)
	if err != nil {
		t.Fatal(err)
	}
	age := f.fields[2]
	if !age.IsNull() {
		t.Fatalf("pre-existing row's new field should read null, got %q", age.encoded())
	}
}

func TestIndexDuplicatePrimaryKeyRejected(t *testing.T) {
	idx, err := CreateIndex(t.TempDir(), "primary", primaryFieldDefs(), true)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })

	rec := idx.NewRecord()
	rec.FieldByName("id").Set(int64(7))
	rec.FieldByName("name").Set("first")
	if _, err := idx.Insert(rec); err != nil {
		t.Fatal(err)
	}

	dup := idx.NewRecord()
	dup.FieldByName("id").Set(int64(7))
	dup.FieldByName("name").Set("second")
	if _, err := idx.Insert(dup); err != ErrKeyViolation {
		t.Fatalf("duplicate insert: got %v, want ErrKeyViolation", err)
	}
}
