package transform

import "time"

// Observation is one fully-derived row of the canonical field set: every
// metric present and typed, dates parsed, coordinates cleaned. Observations
// are transient run state; they are discarded once the merge commits.
type Observation struct {
	Country   string
	Date      time.Time
	Confirmed int64
	Deaths    int64
	Recovered int64
	Active    int64
	NewCases  int64
	NewDeaths int64

	// Latitude/Longitude are nil when the source carried no parseable
	// coordinate; set values are rounded to 6 decimal places.
	Latitude  *float64
	Longitude *float64
}

// Stats summarizes what the deriver did to one file's rows. Per-row problems
// degrade to defaults and are surfaced here as counts, never as errors.
type Stats struct {
	Rows             int  // input rows
	DateDropped      int  // rows whose date no layout could parse
	EpochDropped     int  // rows dated before the epoch boundary
	RateCellsSkipped int  // rate cells left unconverted for lack of population
	DerivedNewCases  bool // new_cases filled from the confirmed diff
	DerivedNewDeaths bool // new_deaths filled from the deaths diff
}
