// Package dimension reconciles the names seen in source files against the
// persisted dimension tables. Lookups run concurrently during the file
// stage; missing rows are only created later, inside the run's single write
// transaction, so a failed run leaves the dimensions untouched.
package dimension

import (
	"context"
	"sort"
	"sync"

	"epietl/internal/storage"
)

// Resolver caches the known dimension rows and accumulates the distinct
// names that still need a row. Safe for concurrent use.
type Resolver struct {
	mu sync.Mutex

	countries map[string]int64
	regions   map[string]int64
	diseases  map[string]int64

	pendingRegions  map[string]struct{}
	pendingDiseases map[string]struct{}
}

// NewResolver seeds the caches from the rows already in the store.
func NewResolver(dims storage.Dimensions) *Resolver {
	r := &Resolver{
		countries:       make(map[string]int64, len(dims.Countries)),
		regions:         make(map[string]int64, len(dims.Regions)),
		diseases:        make(map[string]int64, len(dims.Diseases)),
		pendingRegions:  map[string]struct{}{},
		pendingDiseases: map[string]struct{}{},
	}
	for name, id := range dims.Countries {
		r.countries[name] = id
	}
	for name, id := range dims.Regions {
		r.regions[name] = id
	}
	for name, id := range dims.Diseases {
		r.diseases[name] = id
	}
	return r
}

// ObserveCountry records a country/region name seen in a source row. The
// sources carry a single geographic column, so the same name keys both the
// country and its region row.
func (r *Resolver) ObserveCountry(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.regions[name]; ok {
		return
	}
	r.pendingRegions[name] = struct{}{}
}

// ObserveDisease records a disease label seen during detection.
func (r *Resolver) ObserveDisease(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.diseases[name]; ok {
		return
	}
	r.pendingDiseases[name] = struct{}{}
}

// CreatePending inserts a row for every observed name that had none,
// in sorted name order so ids are assigned deterministically. Returns the
// number of dimension rows created.
func (r *Resolver) CreatePending(ctx context.Context, tx storage.Tx) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := 0
	for _, name := range sortedKeys(r.pendingRegions) {
		countryID, ok := r.countries[name]
		if !ok {
			id, err := tx.CreateCountry(ctx, name)
			if err != nil {
				return created, err
			}
			countryID = id
			r.countries[name] = id
			created++
		}
		regionID, err := tx.CreateRegion(ctx, name, countryID)
		if err != nil {
			return created, err
		}
		r.regions[name] = regionID
		created++
	}
	r.pendingRegions = map[string]struct{}{}

	for _, name := range sortedKeys(r.pendingDiseases) {
		id, err := tx.CreateDisease(ctx, name)
		if err != nil {
			return created, err
		}
		r.diseases[name] = id
		created++
	}
	r.pendingDiseases = map[string]struct{}{}

	return created, nil
}

// RegionID returns the id for a region name. Valid after CreatePending for
// any name passed to ObserveCountry.
func (r *Resolver) RegionID(name string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.regions[name]
	return id, ok
}

// DiseaseID returns the id for a disease label.
func (r *Resolver) DiseaseID(name string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.diseases[name]
	return id, ok
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
