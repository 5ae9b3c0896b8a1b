// Package dblib implements an embedded, file-backed, single-process
// relational-style data engine: named tables of typed records, a primary
// key plus any number of secondary indices, and key-ordered cursor
// traversal over an on-disk binary search tree.
package dblib

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by engine operations. Where an object name is
// at hand the sentinel is wrapped with it via withName; some paths (for
// example Tree.Insert's key check) return the bare sentinel. Callers match
// either form with errors.Is.
var (
	ErrDatabaseExists      = errors.New("database exists")
	ErrDatabaseNotFound    = errors.New("database does not exist")
	ErrTableExists         = errors.New("table exists")
	ErrTableNotFound       = errors.New("table does not exist")
	ErrFieldExists         = errors.New("field exists")
	ErrFieldNotFound       = errors.New("field does not exist")
	ErrIndexExists         = errors.New("index exists")
	ErrIndexNotFound       = errors.New("index does not exist")
	ErrKeyViolation        = errors.New("key violation")
	ErrNullValueNotAllowed = errors.New("null value not allowed")
	ErrMkdirFailed         = errors.New("unable to create directory")
	ErrOpenFailed          = errors.New("unable to open file")
	ErrIllegalRecordHeader = errors.New("illegal record header")
	ErrIllegalRecordLength = errors.New("illegal record length")
	ErrCorruptHeader       = errors.New("corrupt file header")
	ErrOutOfMemory         = errors.New("out of memory")
)

// withName wraps a sentinel error with an object name, matching the
// source's DBexception(errCode, objName) constructor.
func withName(err error, name string) error {
	if name == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, name)
}
