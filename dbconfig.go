// Flat KEY=VALUE configuration sidecar, used for the DB_PATH_i fallback
// directories a Database searches when a table is not found under its
// owning user's directory.
//
// The format is one "KEY=VALUE" pair per line, blank lines and lines
// starting with '#' ignored. Nothing in the retrieved pack depends on a
// structured config format (no YAML/TOML/ini library appears anywhere),
// so this is plain stdlib scanning rather than a third-party parser.
package dblib

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// Config holds the parsed KEY=VALUE pairs from a dbconfig sidecar.
type Config struct {
	values map[string]string
}

// LoadConfig reads path as a flat KEY=VALUE file. A missing file yields
// an empty, usable Config rather than an error, since configuration is
// optional — a Database with no configured fallback paths simply has
// none to search.
func LoadConfig(path string) (*Config, error) {
	defer enter("dbconfig", "Load")()

	cfg := &Config{values: make(map[string]string)}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, withName(ErrOpenFailed, path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		cfg.values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Get returns the raw value for key, and whether it was present.
func (c *Config) Get(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

// DBPaths returns every configured DB_PATH_i fallback directory, in
// ascending index order starting at 0, stopping at the first missing
// index.
func (c *Config) DBPaths() []string {
	var paths []string
	for i := 0; ; i++ {
		v, ok := c.values["DB_PATH_"+strconv.Itoa(i)]
		if !ok {
			break
		}
		paths = append(paths, v)
	}
	return paths
}
