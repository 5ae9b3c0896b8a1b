// Process-wide open-file registry.
//
// Several logical handles can point at the same data file, for example
// when the same table is opened through two Table values. Each Index
// (primary or secondary) has its own data file; without de-duplication a
// repeated open of one path would mean
// independent OS descriptors with independent seek pointers racing on
// the same bytes. openTableFile/closeTableFile instead hand out one
// *os.File per canonical path, ref-counted, so every caller's
// ReadAt/WriteAt pair is safe regardless of how many logical handles
// point at the file.
package dblib

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type registryEntry struct {
	file     *os.File
	refCount int
}

// fileRegistry is the process-wide path -> (*os.File, refCount) table.
// Paths are compared case-insensitively, matching the source's strcmpi
// comparison on the OS path string.
type fileRegistry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
}

var registry = &fileRegistry{entries: make(map[string]*registryEntry)}

func canonicalKey(path string) string {
	return strings.ToLower(filepath.Clean(path))
}

// open creates any missing parent directories, then either shares an
// already-open descriptor for path or opens a new one.
func (r *fileRegistry) open(path string) (*os.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := canonicalKey(path)
	if e, ok := r.entries[key]; ok {
		e.refCount++
		return e.file, nil
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, withName(ErrMkdirFailed, dir)
			}
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, withName(ErrOpenFailed, path)
	}

	r.entries[key] = &registryEntry{file: f, refCount: 1}
	return f, nil
}

// close decrements path's refCount; at zero the descriptor is closed and
// the entry removed.
func (r *fileRegistry) close(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := canonicalKey(path)
	e, ok := r.entries[key]
	if !ok {
		return nil
	}

	e.refCount--
	if e.refCount > 0 {
		return nil
	}

	delete(r.entries, key)
	return e.file.Close()
}

// openTableFile opens (or shares) path's file descriptor via the
// process-wide registry.
func openTableFile(path string) (*os.File, error) {
	return registry.open(path)
}

// closeTableFile releases one reference to path's file descriptor.
func closeTableFile(path string) error {
	return registry.close(path)
}
