// Database: resolves table names to directories under a user's database
// root, and owns the open Table handles created from them.
//
// A table's directory is found, in order: the manifest cache; the
// owning user's own directory (<dbPath>/<user>/<name>); and then each
// configured DB_PATH_i fallback directory in ascending order. This
// mirrors the source's findTablePath search, with the manifest layered
// on top purely as a cache for repeat lookups.
package dblib

import (
	"os"
	"path/filepath"
)

// Database is one connected database root for a given user.
type Database struct {
	Name string
	dir  string // <dbPath>/<user>
	cfg  *Config
	man  *manifest

	tables map[string]*Table
}

const dbConfigFileName = "dbconfig.ini"

// CreateDatabase makes a brand-new <dbPath>/<user> directory for a
// database named name.
func CreateDatabase(dbPath, user, name string) (*Database, error) {
	defer enter("Database", "Create")()

	dir := filepath.Join(dbPath, user)
	if _, err := os.Stat(dir); err == nil {
		return nil, withName(ErrDatabaseExists, name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, withName(ErrMkdirFailed, dir)
	}

	return openDatabaseDir(dir, name)
}

// ConnectDatabase opens an existing <dbPath>/<user> directory.
func ConnectDatabase(dbPath, user, name string) (*Database, error) {
	defer enter("Database", "Connect")()

	dir := filepath.Join(dbPath, user)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, withName(ErrDatabaseNotFound, name)
	}

	return openDatabaseDir(dir, name)
}

func openDatabaseDir(dir, name string) (*Database, error) {
	cfg, err := LoadConfig(filepath.Join(dir, dbConfigFileName))
	if err != nil {
		return nil, err
	}
	man, err := loadManifest(dir)
	if err != nil {
		return nil, err
	}
	return &Database{
		Name: name, dir: dir, cfg: cfg, man: man,
		tables: make(map[string]*Table),
	}, nil
}

// findTablePath resolves name to the directory holding its files. The
// manifest cache is consulted first; on a miss, the owning directory and
// each configured fallback path are probed in order, and a hit is
// recorded back into the manifest for next time.
func (db *Database) findTablePath(name string) (string, error) {
	if path, ok := db.man.lookup(name); ok {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	candidates := append([]string{db.dir}, db.cfg.DBPaths()...)
	for _, base := range candidates {
		path := tableDir(base, name)
		if _, err := os.Stat(path); err == nil {
			_ = db.man.record(name, path)
			return path, nil
		}
	}
	return "", withName(ErrTableNotFound, name)
}

// CreateTable creates a new table named name with the given primary-key
// schema, recording its location in the manifest.
func (db *Database) CreateTable(name string, primaryDefs []*FieldDefinition) (*Table, error) {
	defer enter("Database", "CreateTable")()

	if _, err := db.findTablePath(name); err == nil {
		return nil, withName(ErrTableExists, name)
	}

	t, err := CreateTable(db.dir, name, primaryDefs)
	if err != nil {
		return nil, err
	}
	if err := db.man.record(name, tableDir(db.dir, name)); err != nil {
		return nil, err
	}
	db.tables[name] = t
	return t, nil
}

// OpenTable opens an existing table named name, together with every
// secondary index recorded in its own definition file.
func (db *Database) OpenTable(name string) (*Table, error) {
	defer enter("Database", "OpenTable")()

	if t, ok := db.tables[name]; ok {
		return t, nil
	}

	path, err := db.findTablePath(name)
	if err != nil {
		return nil, err
	}
	base := filepath.Dir(path)

	t, err := OpenTable(base, name)
	if err != nil {
		return nil, err
	}
	db.tables[name] = t
	return t, nil
}

// DropTable closes and removes a table's files entirely, and forgets it
// in the manifest.
func (db *Database) DropTable(name string) error {
	defer enter("Database", "DropTable")()

	path, err := db.findTablePath(name)
	if err != nil {
		return err
	}

	if t, ok := db.tables[name]; ok {
		_ = t.Close()
		delete(db.tables, name)
	}

	if err := os.RemoveAll(path); err != nil {
		return err
	}
	return db.man.forget(name)
}

// Close closes every table this Database has opened.
func (db *Database) Close() error {
	for name, t := range db.tables {
		if err := t.Close(); err != nil {
			return err
		}
		delete(db.tables, name)
	}
	return nil
}
