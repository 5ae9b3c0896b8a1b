package dblib

import (
	"errors"
	"testing"
)

func userSchema() []*FieldDefinition {
	return []*FieldDefinition{
		{Name: "id", Type: FieldInteger, Primary: true, NotNull: true},
		{Name: "email", Type: FieldString, NotNull: true},
		{Name: "name", Type: FieldString},
	}
}

func newUserRecord(t *testing.T, tbl *Table, id int64, email, name string) *Record {
	t.Helper()
	rec := tbl.Primary().NewRecord()
	if err := rec.FieldByName("id").Set(id); err != nil {
		t.Fatal(err)
	}
	if err := rec.FieldByName("email").Set(email); err != nil {
		t.Fatal(err)
	}
	if err := rec.FieldByName("name").Set(name); err != nil {
		t.Fatal(err)
	}
	return rec
}

func TestTablePostAndLocate(t *testing.T) {
	dbDir := t.TempDir()
	tbl, err := CreateTable(dbDir, "users", userSchema())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tbl.Close() })

	addr, err := tbl.PostRecord(newUserRecord(t, tbl, 1, "a@example.com", "Ada"))
	if err != nil {
		t.Fatal(err)
	}
	if addr == 0 {
		t.Fatal("PostRecord returned zero address")
	}

	rec, _, err := tbl.Primary().LocatePrimary([]any{int64(1)})
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Fatal("row not found after PostRecord")
	}
}

func TestTableSecondaryIndexUniqueness(t *testing.T) {
	dbDir := t.TempDir()
	tbl, err := CreateTable(dbDir, "users", userSchema())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tbl.Close() })

	emailIndexFields := []*FieldDefinition{
		{Name: "email", Type: FieldString, NotNull: true},
	}
	if _, err := tbl.CreateSecondaryIndex("by_email", emailIndexFields, true); err != nil {
		t.Fatal(err)
	}

	if _, err := tbl.PostRecord(newUserRecord(t, tbl, 1, "a@example.com", "Ada")); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.PostRecord(newUserRecord(t, tbl, 2, "a@example.com", "Duplicate")); !errors.Is(err, ErrKeyViolation) {
		t.Fatalf("duplicate email: got %v, want ErrKeyViolation", err)
	}
	if _, err := tbl.PostRecord(newUserRecord(t, tbl, 3, "b@example.com", "Bob")); err != nil {
		t.Fatal(err)
	}
}

func TestTableUpdateAndDelete(t *testing.T) {
	dbDir := t.TempDir()
	tbl, err := CreateTable(dbDir, "users", userSchema())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tbl.Close() })

	addr, err := tbl.PostRecord(newUserRecord(t, tbl, 1, "a@example.com", "Ada"))
	if err != nil {
		t.Fatal(err)
	}

	updated := newUserRecord(t, tbl, 1, "a2@example.com", "Ada Lovelace")
	newAddr, err := tbl.UpdateRecord(addr, updated)
	if err != nil {
		t.Fatal(err)
	}

	rec, _, err := tbl.Primary().LocatePrimary([]any{int64(1)})
	if err != nil {
		t.Fatal(err)
	}
	email, err := rec.FieldByName("email").Get()
	if err != nil {
		t.Fatal(err)
	}
	if email.(string) != "a2@example.com" {
		t.Fatalf("after update, email = %q, want a2@example.com", email)
	}

	if err := tbl.DeleteRecord(newAddr); err != nil {
		t.Fatal(err)
	}

	cur := tbl.NewCursor("")
	f, err := cur.First()
	if err != nil {
		t.Fatal(err)
	}
	if f != nil {
		t.Fatal("cursor should find no live rows after delete")
	}
}

func TestTableSetIndexRedirectsCursor(t *testing.T) {
	dbDir := t.TempDir()
	tbl, err := CreateTable(dbDir, "users", userSchema())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tbl.Close() })

	nameIndexFields := []*FieldDefinition{{Name: "name", Type: FieldString}}
	if _, err := tbl.CreateSecondaryIndex("by_name", nameIndexFields, false); err != nil {
		t.Fatal(err)
	}

	for i, n := range []string{"Carol", "Alice", "Bob"} {
		if _, err := tbl.PostRecord(newUserRecord(t, tbl, int64(i+1), n+"@example.com", n)); err != nil {
			t.Fatal(err)
		}
	}

	if err := tbl.SetIndex("by_name"); err != nil {
		t.Fatal(err)
	}
	cur := tbl.NewCursor("")
	var order []string
	for f, err := cur.First(); f != nil; f, err = cur.Next() {
		if err != nil {
			t.Fatal(err)
		}
		v, err := f.fields[0].Get()
		if err != nil {
			t.Fatal(err)
		}
		order = append(order, v.(string))
	}
	want := []string{"Alice", "Bob", "Carol"}
	if len(order) != len(want) {
		t.Fatalf("by_name cursor visited %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("by_name cursor order = %v, want %v", order, want)
		}
	}

	if err := tbl.SetIndex(""); err != nil {
		t.Fatal(err)
	}
}

func TestTableRejectsDuplicatePrimaryKeyWithDifferingOtherFields(t *testing.T) {
	dbDir := t.TempDir()
	tbl, err := CreateTable(dbDir, "users", userSchema())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tbl.Close() })

	if _, err := tbl.PostRecord(newUserRecord(t, tbl, 1, "a@example.com", "Ada")); err != nil {
		t.Fatal(err)
	}

	// Same primary key (id=1), every other field different: the primary
	// index itself must reject this, not just a unique secondary index.
	if _, err := tbl.PostRecord(newUserRecord(t, tbl, 1, "b@example.com", "Bea")); !errors.Is(err, ErrKeyViolation) {
		t.Fatalf("duplicate primary key with differing fields: got %v, want ErrKeyViolation", err)
	}
}
