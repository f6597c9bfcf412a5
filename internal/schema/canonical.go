// Package schema maps arbitrary source vocabularies onto the canonical
// observation field set.
//
// Source files name the same things many ways ("Country/Region",
// "country_region", "COUNTRY REGION"); the normalizer compares names after
// folding case, diacritics, and punctuation, and resolves each canonical
// field through a priority-ordered synonym list. The mapping is deterministic
// for a fixed synonym table and column set.
package schema

import (
	"strings"
	"unicode"

	"github.com/zeebo/xxh3"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical observation fields, in persistence order.
const (
	FieldCountry   = "country"
	FieldDate      = "date"
	FieldConfirmed = "confirmed"
	FieldDeaths    = "deaths"
	FieldRecovered = "recovered"
	FieldActive    = "active"
	FieldNewCases  = "new_cases"
	FieldNewDeaths = "new_deaths"
	FieldLatitude  = "latitude"
	FieldLongitude = "longitude"
)

// Fields lists every canonical field in stable order.
var Fields = []string{
	FieldCountry, FieldDate, FieldConfirmed, FieldDeaths, FieldRecovered,
	FieldActive, FieldNewCases, FieldNewDeaths, FieldLatitude, FieldLongitude,
}

// synonyms maps each canonical field to its accepted source names in priority
// order. Matching is done on normalized names, so entries here are written in
// their natural spelling.
var synonyms = map[string][]string{
	FieldCountry:   {"country", "location", "region", "country_region", "province_state"},
	FieldDate:      {"date", "observation_date", "report_date"},
	FieldConfirmed: {"confirmed", "total_cases", "cases"},
	FieldDeaths:    {"deaths", "total_deaths", "fatalities"},
	FieldRecovered: {"recovered", "total_recoveries", "recoveries"},
	FieldActive:    {"active", "active_cases"},
	FieldNewCases:  {"new_cases", "daily_confirmed", "cases_new", "new_cases_smoothed"},
	FieldNewDeaths: {"new_deaths", "daily_deaths", "new_deaths_smoothed"},
	FieldLatitude:  {"lat", "latitude"},
	FieldLongitude: {"long", "longitude"},
}

var canonicalSet = func() map[string]struct{} {
	s := make(map[string]struct{}, len(Fields))
	for _, f := range Fields {
		s[f] = struct{}{}
	}
	return s
}()

// IsCanonical reports whether name is one of the canonical fields.
func IsCanonical(name string) bool {
	_, ok := canonicalSet[name]
	return ok
}

// foldDiacritics strips combining marks (é → e) so accented source headers
// and country names compare equal to their ASCII spellings.
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName lowercases s, folds diacritics, and collapses every run of
// non-alphanumeric characters to a single underscore.
func NormalizeName(s string) string {
	if folded, _, err := transform.String(foldDiacritics, s); err == nil {
		s = folded
	}
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// Mapping is the result of resolving one source header against the canonical
// field set.
type Mapping struct {
	// Source maps canonical field name → original source column name.
	// A canonical field with no matching synonym is absent.
	Source map[string]string

	// Unrecognized lists source columns (original spelling, input order)
	// matched to no canonical field. Reported, never fatal.
	Unrecognized []string

	// Extras lists the normalized names of the unrecognized columns, in the
	// same order; the deriver scans these for rate-style columns.
	Extras []string

	// Fingerprint is an xxh3 hash of the normalized header, used to identify
	// a source schema shape in diagnostics across files and runs.
	Fingerprint uint64
}

// MapColumns resolves the given source columns against the synonym table.
//
// For each canonical field the synonyms are checked in priority order; the
// first synonym present in the (normalized) source header wins. When two
// source columns normalize to the same name, the first occurrence wins.
func MapColumns(columns []string) Mapping {
	normalized := make([]string, len(columns))
	bySource := make(map[string]string, len(columns)) // normalized → original
	for i, col := range columns {
		n := NormalizeName(col)
		normalized[i] = n
		if _, ok := bySource[n]; !ok {
			bySource[n] = col
		}
	}

	m := Mapping{
		Source:      make(map[string]string, len(Fields)),
		Fingerprint: xxh3.HashString(strings.Join(normalized, "\x1f")),
	}

	claimed := make(map[string]struct{}, len(Fields)) // normalized source names in use
	for _, field := range Fields {
		for _, syn := range synonyms[field] {
			n := NormalizeName(syn)
			if src, ok := bySource[n]; ok {
				m.Source[field] = src
				claimed[n] = struct{}{}
				break
			}
		}
	}

	reported := make(map[string]struct{}, len(columns))
	for i, col := range columns {
		n := normalized[i]
		if _, ok := claimed[n]; ok {
			continue
		}
		if _, dup := reported[n]; dup {
			continue
		}
		reported[n] = struct{}{}
		m.Unrecognized = append(m.Unrecognized, col)
		m.Extras = append(m.Extras, n)
	}
	return m
}
