package dblib

import (
	"path/filepath"
	"testing"
)

var testDefs = []*FieldDefinition{
	{Name: "id", Type: FieldInteger, Primary: true, NotNull: true},
	{Name: "name", Type: FieldString},
}

func newTestFields(t *testing.T, id int64, name string) []*FieldValue {
	t.Helper()
	fields := []*FieldValue{NewFieldValue(testDefs[0]), NewFieldValue(testDefs[1])}
	if err := fields[0].Set(id); err != nil {
		t.Fatal(err)
	}
	if err := fields[1].Set(name); err != nil {
		t.Fatal(err)
	}
	return fields
}

func openTestTree(t *testing.T) *Tree {
	t.Helper()
	path := filepath.Join(t.TempDir(), "primary.dat")
	tree, err := OpenTree(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tree.Close() })
	return tree
}

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := &RecordHeader{
		Address: 16, TopPtr: 0, LowerRecordPtr: 200, HigherRecordPtr: 400,
		NumRecords: 3, NumFields: 2, StringLengths: 33, PrimaryLen: 16, BufferLen: 55, Status: 1,
	}
	buf := encodeHeader(h)
	if len(buf) != HeaderLength {
		t.Fatalf("encodeHeader produced %d bytes, want %d", len(buf), HeaderLength)
	}
	got, err := decodeHeader(buf, h.Address)
	if err != nil {
		t.Fatal(err)
	}
	if *got != *h {
		t.Fatalf("decodeHeader(encodeHeader(h)) = %+v, want %+v", *got, *h)
	}
}

func TestTreeInsertAndLocatePrimary(t *testing.T) {
	tree := openTestTree(t)

	ids := []int64{50, 20, 80, 10, 30, 70, 90, 5, 15}
	for _, id := range ids {
		if _, err := tree.Insert(newTestFields(t, id, "row"), testDefs, true); err != nil {
			t.Fatalf("Insert(%d): %v", id, err)
		}
	}

	c, _ := CoderFor(FieldInteger)
	for _, id := range ids {
		key, _ := c.Encode(id)
		f, addr, err := tree.LocatePrimary(key, testDefs)
		if err != nil {
			t.Fatalf("LocatePrimary(%d): %v", id, err)
		}
		if f == nil || addr == 0 {
			t.Fatalf("LocatePrimary(%d) not found", id)
		}
	}

	key, _ := c.Encode(int64(999))
	f, _, err := tree.LocatePrimary(key, testDefs)
	if err != nil {
		t.Fatal(err)
	}
	if f != nil {
		t.Fatalf("LocatePrimary(999) found a row that was never inserted")
	}
}

func TestTreeRejectsDuplicatePrimaryKey(t *testing.T) {
	tree := openTestTree(t)

	if _, err := tree.Insert(newTestFields(t, 1, "first"), testDefs, true); err != nil {
		t.Fatal(err)
	}
	if _, err := tree.Insert(newTestFields(t, 1, "second"), testDefs, true); err != ErrKeyViolation {
		t.Fatalf("Insert of duplicate key: got %v, want ErrKeyViolation", err)
	}
}

func TestTreeRebalanceKeepsAllRowsReachable(t *testing.T) {
	tree := openTestTree(t)

	const n = 200
	for i := int64(0); i < n; i++ {
		if _, err := tree.Insert(newTestFields(t, i, "row"), testDefs, true); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	cur := NewCursor(tree, testDefs, "")
	f, err := cur.First()
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for f != nil {
		count++
		f, err = cur.Next()
		if err != nil {
			t.Fatal(err)
		}
	}
	if count != n {
		t.Fatalf("cursor visited %d rows after sequential ascending inserts, want %d", count, n)
	}
}
