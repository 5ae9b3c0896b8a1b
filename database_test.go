package dblib

import (
	"errors"
	"os"
	"testing"
)

func TestDatabaseCreateConnectAndTables(t *testing.T) {
	root := t.TempDir()

	db, err := CreateDatabase(root, "alice", "shop")
	if err != nil {
		t.Fatal(err)
	}

	tbl, err := db.CreateTable("orders", userSchema())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.PostRecord(newUserRecord(t, tbl, 1, "a@example.com", "Ada")); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := ConnectDatabase(root, "alice", "shop")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { reopened.Close() })

	reopenedTbl, err := reopened.OpenTable("orders")
	if err != nil {
		t.Fatal(err)
	}
	rec, _, err := reopenedTbl.Primary().LocatePrimary([]any{int64(1)})
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Fatal("row not found after reconnecting to database")
	}
}

func TestDatabaseCreateTableTwiceFails(t *testing.T) {
	root := t.TempDir()
	db, err := CreateDatabase(root, "alice", "shop")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.CreateTable("orders", userSchema()); err != nil {
		t.Fatal(err)
	}
	if _, err := db.CreateTable("orders", userSchema()); !errors.Is(err, ErrTableExists) {
		t.Fatalf("second CreateTable: got %v, want ErrTableExists", err)
	}
}

func TestDatabaseDropTableRemovesFilesAndManifestEntry(t *testing.T) {
	root := t.TempDir()
	db, err := CreateDatabase(root, "alice", "shop")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.CreateTable("orders", userSchema()); err != nil {
		t.Fatal(err)
	}
	if err := db.DropTable("orders"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.OpenTable("orders"); !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("OpenTable after drop: got %v, want ErrTableNotFound", err)
	}
	if _, ok := db.man.lookup("orders"); ok {
		t.Fatal("manifest still lists orders after DropTable")
	}
}

func TestDatabaseFallbackPath(t *testing.T) {
	root := t.TempDir()
	fallback := t.TempDir()

	db, err := CreateDatabase(root, "alice", "shop")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	cfgPath := db.dir + "/" + dbConfigFileName
	if err := writeTestConfig(cfgPath, fallback); err != nil {
		t.Fatal(err)
	}
	db.cfg, err = LoadConfig(cfgPath)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := CreateTable(fallback, "archive", userSchema()); err != nil {
		t.Fatal(err)
	}

	path, err := db.findTablePath("archive")
	if err != nil {
		t.Fatal(err)
	}
	if path == "" {
		t.Fatal("expected fallback path to resolve")
	}
}

func writeTestConfig(path, fallbackDir string) error {
	return os.WriteFile(path, []byte("DB_PATH_0="+fallbackDir+"\n"), 0o644)
}

func TestDatabaseReopenRebuildsSecondaryIndices(t *testing.T) {
	root := t.TempDir()

	db, err := CreateDatabase(root, "alice", "shop")
	if err != nil {
		t.Fatal(err)
	}

	tbl, err := db.CreateTable("orders", userSchema())
	if err != nil {
		t.Fatal(err)
	}
	emailIndexFields := []*FieldDefinition{{Name: "email", Type: FieldString, NotNull: true}}
	if _, err := tbl.CreateSecondaryIndex("by_email", emailIndexFields, true); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.PostRecord(newUserRecord(t, tbl, 1, "a@example.com", "Ada")); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := ConnectDatabase(root, "alice", "shop")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { reopened.Close() })

	reopenedTbl, err := reopened.OpenTable("orders")
	if err != nil {
		t.Fatal(err)
	}

	// The secondary index was never passed in explicitly: it must have
	// been rebuilt from the table's own persisted index list.
	if _, err := reopenedTbl.PostRecord(newUserRecord(t, reopenedTbl, 2, "a@example.com", "Duplicate")); !errors.Is(err, ErrKeyViolation) {
		t.Fatalf("duplicate email after reopen: got %v, want ErrKeyViolation", err)
	}
}
