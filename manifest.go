// Table-name manifest: a small JSON sidecar caching each known table's
// resolved directory, so repeated opens skip the directory search in
// findTablePath. This has no equivalent in the original directory-walk
// design; it is a supplement layered on top of it, not a replacement —
// a cache miss still falls back to the original search order.
package dblib

import (
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

const manifestFileName = "manifest.json"

// manifestEntry records one table's resolved location.
type manifestEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// manifest is the decoded form of a database's manifest.json.
type manifest struct {
	path    string
	Entries []manifestEntry `json:"entries"`
}

// loadManifest reads dir's manifest.json, returning an empty manifest
// if none exists yet.
func loadManifest(dir string) (*manifest, error) {
	path := filepath.Join(dir, manifestFileName)
	m := &manifest{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, withName(ErrOpenFailed, path)
	}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, withName(ErrCorruptHeader, path)
	}
	return m, nil
}

// save persists the manifest back to its file.
func (m *manifest) save() error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o644)
}

// lookup returns a cached table path, if one is known.
func (m *manifest) lookup(name string) (string, bool) {
	for _, e := range m.Entries {
		if e.Name == name {
			return e.Path, true
		}
	}
	return "", false
}

// record adds or updates name's cached path and persists the manifest.
func (m *manifest) record(name, path string) error {
	for i, e := range m.Entries {
		if e.Name == name {
			m.Entries[i].Path = path
			return m.save()
		}
	}
	m.Entries = append(m.Entries, manifestEntry{Name: name, Path: path})
	return m.save()
}

// forget removes name's cached entry, used when a table is dropped.
func (m *manifest) forget(name string) error {
	for i, e := range m.Entries {
		if e.Name == name {
			m.Entries = append(m.Entries[:i], m.Entries[i+1:]...)
			return m.save()
		}
	}
	return nil
}
