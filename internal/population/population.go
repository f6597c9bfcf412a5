// Package population provides the population lookup collaborator used to
// convert rate-based metrics (per-100k, per-million) into absolute counts.
//
// Lookups key on the normalized country name, never error, and simply report
// absence for unknown countries; the deriver degrades gracefully in that case.
package population

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"epietl/internal/config"
	"epietl/internal/datasource/file"
	csvparser "epietl/internal/parser/csv"
	"epietl/internal/schema"
)

// Lookup resolves a country's population figure.
type Lookup interface {
	// Population returns the population for countryName, or false when the
	// country is unknown. Implementations must not fail for unknown names.
	Population(countryName string) (int64, bool)
}

// None is a Lookup that knows no countries; rate columns are never converted.
type None struct{}

func (None) Population(string) (int64, bool) { return 0, false }

// Static is an in-memory Lookup keyed by normalized country name.
type Static map[string]int64

// NewStatic builds a Static lookup, normalizing the provided names.
func NewStatic(values map[string]int64) Static {
	s := make(Static, len(values))
	for name, pop := range values {
		s[schema.NormalizeName(name)] = pop
	}
	return s
}

// Population implements Lookup.
func (s Static) Population(countryName string) (int64, bool) {
	pop, ok := s[schema.NormalizeName(countryName)]
	return pop, ok
}

// LoadFile reads a two-column CSV (country, population; header required,
// synonym-insensitive) into a Static lookup. Rows with a non-numeric or
// non-positive population are skipped.
func LoadFile(ctx context.Context, path string) (Static, error) {
	rc, err := file.NewLocal(path).Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	tab, err := csvparser.New(config.Options{}).Parse(rc)
	if err != nil {
		return nil, fmt.Errorf("population %s: %w", path, err)
	}

	countryCol, popCol := "", ""
	for _, col := range tab.Columns {
		switch schema.NormalizeName(col) {
		case "country", "country_region", "location", "name":
			if countryCol == "" {
				countryCol = col
			}
		case "population", "pop":
			if popCol == "" {
				popCol = col
			}
		}
	}
	if countryCol == "" || popCol == "" {
		return nil, fmt.Errorf("population %s: header must carry country and population columns", path)
	}

	s := make(Static, len(tab.Rows))
	for _, row := range tab.Rows {
		name, _ := row[countryCol].(string)
		raw, _ := row[popCol].(string)
		if name == "" || raw == "" {
			continue
		}
		pop, err := strconv.ParseInt(strings.ReplaceAll(raw, ",", ""), 10, 64)
		if err != nil || pop <= 0 {
			continue
		}
		s[schema.NormalizeName(name)] = pop
	}
	return s, nil
}
