// Package transform derives complete, typed observations from normalized
// records: it parses dates, defaults absent metrics, converts rate-based
// columns to absolute counts, computes missing daily deltas from cumulative
// series, and cleans coordinates.
//
// Every rule here is fail-soft: a value that cannot be coerced degrades to
// its default (0 for counts, nil for coordinates) or drops the single row
// (unparseable date), and the outcome is reported through Stats counts.
package transform

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"epietl/internal/population"
	"epietl/internal/schema"
	"epietl/pkg/records"
)

// Epoch is the earliest plausible observation date. Rows dated before it are
// presumed to be parsing artifacts rather than valid timeline data.
var Epoch = time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)

// StrictDateLayout is tried first for every date cell.
const StrictDateLayout = "2006-01-02"

// permissiveDateLayouts are the fallback layouts, tried in order. Month-first
// forms precede day-first ones to match the upstream data conventions.
var permissiveDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"1/2/2006 15:04",
	"1/2/2006",
	"1/2/06",
	"Jan 2, 2006",
	"2 January 2006",
}

// UnknownCountry is the sentinel for rows whose source carried no country
// column at all.
const UnknownCountry = "Unknown"

// Deriver turns normalized records into complete observations.
type Deriver struct {
	// Population resolves country populations for rate conversion. A nil
	// lookup behaves like population.None.
	Population population.Lookup
}

// Derive processes one file's worth of normalized rows and returns the
// surviving observations plus per-file statistics. Input records are not
// mutated. The per-country diff derivation sorts internally, so input row
// order never affects the result.
func (d *Deriver) Derive(rows []records.Record) ([]Observation, Stats) {
	pop := d.Population
	if pop == nil {
		pop = population.None{}
	}

	stats := Stats{Rows: len(rows)}
	obs := make([]Observation, 0, len(rows))

	// Delta columns count as "present" only when some row carries a
	// non-zero value; a column of zeros triggers the diff fallback.
	anyNewCases := false
	anyNewDeaths := false

	for _, rec := range rows {
		date, ok := parseDate(rec[schema.FieldDate])
		if !ok {
			stats.DateDropped++
			continue
		}
		if date.Before(Epoch) {
			stats.EpochDropped++
			continue
		}

		o := Observation{
			Country:   countryOf(rec),
			Date:      date,
			Confirmed: countOf(rec[schema.FieldConfirmed]),
			Deaths:    countOf(rec[schema.FieldDeaths]),
			Recovered: countOf(rec[schema.FieldRecovered]),
			Active:    countOf(rec[schema.FieldActive]),
			NewCases:  countOf(rec[schema.FieldNewCases]),
			NewDeaths: countOf(rec[schema.FieldNewDeaths]),
			Latitude:  coordOf(rec[schema.FieldLatitude]),
			Longitude: coordOf(rec[schema.FieldLongitude]),
		}

		d.convertRates(rec, &o, pop, &stats)

		if o.NewCases != 0 {
			anyNewCases = true
		}
		if o.NewDeaths != 0 {
			anyNewDeaths = true
		}
		obs = append(obs, o)
	}

	if !anyNewCases && len(obs) > 0 {
		deriveDeltas(obs, func(o *Observation) int64 { return o.Confirmed },
			func(o *Observation, v int64) { o.NewCases = v })
		stats.DerivedNewCases = true
	}
	if !anyNewDeaths && len(obs) > 0 {
		deriveDeltas(obs, func(o *Observation) int64 { return o.Deaths },
			func(o *Observation, v int64) { o.NewDeaths = v })
		stats.DerivedNewDeaths = true
	}
	return obs, stats
}

// convertRates scans the record's non-canonical columns for per-100k and
// per-million metrics and rewrites the matching absolute metric. Without a
// population figure the cell is skipped and the absolute metric keeps its
// prior value. Columns are visited in sorted name order so that two rate
// columns targeting the same metric always resolve the same way.
func (d *Deriver) convertRates(rec records.Record, o *Observation, pop population.Lookup, stats *Stats) {
	keys := make([]string, 0, len(rec))
	for key := range rec {
		if schema.IsCanonical(key) || rec[key] == nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		val := rec[key]
		var denom float64
		switch {
		case strings.Contains(key, "per_100_000"), strings.Contains(key, "per_100k"):
			denom = 100_000
		case strings.Contains(key, "per_million"):
			denom = 1_000_000
		default:
			continue
		}
		rate, ok := floatOf(val)
		if !ok {
			continue
		}
		p, known := pop.Population(o.Country)
		if !known {
			stats.RateCellsSkipped++
			continue
		}
		abs := int64(math.Round(rate * float64(p) / denom))
		if strings.Contains(key, "death") {
			o.Deaths = abs
		} else {
			o.Confirmed = abs
		}
	}
}

// deriveDeltas fills a delta metric from the successive difference of its
// cumulative counterpart, per country, over date-ascending order. The first
// day of each country has no baseline and stays 0.
func deriveDeltas(obs []Observation, cum func(*Observation) int64, set func(*Observation, int64)) {
	byCountry := map[string][]int{}
	for i := range obs {
		byCountry[obs[i].Country] = append(byCountry[obs[i].Country], i)
	}
	for _, idx := range byCountry {
		sort.SliceStable(idx, func(a, b int) bool {
			return obs[idx[a]].Date.Before(obs[idx[b]].Date)
		})
		for n, i := range idx {
			if n == 0 {
				set(&obs[i], 0)
				continue
			}
			set(&obs[i], cum(&obs[i])-cum(&obs[idx[n-1]]))
		}
	}
}

func countryOf(rec records.Record) string {
	if s, ok := rec[schema.FieldCountry].(string); ok {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return UnknownCountry
}

// parseDate tries the strict layout, then each permissive layout.
func parseDate(v any) (time.Time, bool) {
	s, ok := stringOf(v)
	if !ok || s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(StrictDateLayout, s); err == nil {
		return t.UTC(), true
	}
	for _, layout := range permissiveDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// countOf coerces a cell to a whole count; anything unparseable is 0.
// Fractional source values (e.g. smoothed series) round to nearest.
func countOf(v any) int64 {
	f, ok := floatOf(v)
	if !ok {
		return 0
	}
	return int64(math.Round(f))
}

// coordOf coerces a cell to a coordinate rounded to 6 decimal places;
// non-numeric values become nil.
func coordOf(v any) *float64 {
	f, ok := floatOf(v)
	if !ok {
		return nil
	}
	r := math.Round(f*1e6) / 1e6
	return &r
}

func floatOf(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", ""))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

func stringOf(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case json.Number:
		return t.String(), true
	}
	return "", false
}
