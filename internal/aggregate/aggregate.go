// Package aggregate collapses resolved observations onto the fact grain of
// one row per (region, date). Sources overlap — several files can report the
// same region and day — so delta metrics are summed while cumulative totals
// take the maximum seen.
package aggregate

import (
	"sort"
	"time"

	"epietl/internal/storage"
)

// Row is one resolved observation: dimension ids plus metrics.
type Row struct {
	RegionID  int64
	Date      time.Time
	DiseaseID int64

	NewDeaths   int64
	NewCases    int64
	TotalDeaths int64
	TotalCases  int64

	Latitude  *float64
	Longitude *float64
}

type factKey struct {
	regionID int64
	date     time.Time
}

// Facts reduces rows to one FactRow per (region, date). The disease id of
// the first contributing row wins; rows arrive in deterministic file order,
// so reruns produce the same winner. Output is sorted by region then date.
func Facts(rows []Row) []storage.FactRow {
	merged := make(map[factKey]*storage.FactRow, len(rows))
	for _, r := range rows {
		key := factKey{r.RegionID, r.Date}
		f, ok := merged[key]
		if !ok {
			f = &storage.FactRow{RegionID: r.RegionID, Date: r.Date, DiseaseID: r.DiseaseID}
			merged[key] = f
		}
		f.NewDeaths += r.NewDeaths
		f.NewCases += r.NewCases
		if r.TotalDeaths > f.TotalDeaths {
			f.TotalDeaths = r.TotalDeaths
		}
		if r.TotalCases > f.TotalCases {
			f.TotalCases = r.TotalCases
		}
	}

	out := make([]storage.FactRow, 0, len(merged))
	for _, f := range merged {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RegionID != out[j].RegionID {
			return out[i].RegionID < out[j].RegionID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// Coordinates picks, per region, the first row carrying both a latitude and
// a longitude. Output is sorted by region id.
func Coordinates(rows []Row) []storage.GeoUpdate {
	seen := make(map[int64]storage.GeoUpdate)
	for _, r := range rows {
		if r.Latitude == nil || r.Longitude == nil {
			continue
		}
		if _, ok := seen[r.RegionID]; ok {
			continue
		}
		seen[r.RegionID] = storage.GeoUpdate{
			RegionID:  r.RegionID,
			Latitude:  *r.Latitude,
			Longitude: *r.Longitude,
		}
	}

	out := make([]storage.GeoUpdate, 0, len(seen))
	for _, u := range seen {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegionID < out[j].RegionID })
	return out
}
