package schema

import (
	"path/filepath"
	"strings"
)

// UnknownDisease is the sentinel label used when no keyword matches a file
// name. It still becomes a regular dimension row.
const UnknownDisease = "Unknown"

// DiseaseRule maps a lowercase filename substring to a canonical disease label.
type DiseaseRule struct {
	Keyword string
	Label   string
}

// DiseaseTable is an ordered keyword table; rules are checked in order and
// the first match wins, so more specific keywords belong first.
type DiseaseTable []DiseaseRule

// DefaultDiseases returns the built-in keyword table.
func DefaultDiseases() DiseaseTable {
	return DiseaseTable{
		{"covid19", "COVID-19"},
		{"covid", "COVID-19"},
		{"coronavirus", "COVID-19"},
		{"monkeypox", "Monkeypox"},
		{"mpox", "Monkeypox"},
		{"ebola", "Ebola Virus Disease"},
	}
}

// Detect resolves the disease label for a source file from its base name,
// case-insensitively. File contents never participate. Returns
// UnknownDisease when no keyword matches.
func (t DiseaseTable) Detect(path string) string {
	name := strings.ToLower(filepath.Base(path))
	for _, r := range t {
		if strings.Contains(name, r.Keyword) {
			return r.Label
		}
	}
	return UnknownDisease
}
