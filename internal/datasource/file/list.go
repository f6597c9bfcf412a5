package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ListDatasets returns the ingestible files (.csv or .json, case-insensitive
// extension match) directly under dir, as full paths in sorted name order.
//
// Subdirectories and files with other extensions are skipped silently; a
// dataset directory commonly carries README/checksum clutter. The sorted
// order makes runs deterministic regardless of filesystem enumeration order.
func ListDatasets(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list datasets %s: %w", dir, err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !Ingestible(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// Ingestible reports whether name has a supported dataset extension.
func Ingestible(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".json":
		return true
	}
	return false
}
