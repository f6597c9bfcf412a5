package aggregate

import (
	"testing"
	"time"

	"epietl/internal/storage"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func fp(v float64) *float64 { return &v }

func TestFactsSumsDeltasAndMaxesTotals(t *testing.T) {
	t.Parallel()
	rows := []Row{
		{RegionID: 1, Date: day("2021-01-01"), DiseaseID: 10, NewCases: 5, NewDeaths: 1, TotalCases: 100, TotalDeaths: 8},
		{RegionID: 1, Date: day("2021-01-01"), DiseaseID: 11, NewCases: 3, NewDeaths: 2, TotalCases: 90, TotalDeaths: 12},
	}
	got := Facts(rows)
	if len(got) != 1 {
		t.Fatalf("Facts() returned %d rows, want 1", len(got))
	}
	want := storage.FactRow{
		RegionID: 1, Date: day("2021-01-01"), DiseaseID: 10,
		NewCases: 8, NewDeaths: 3, TotalCases: 100, TotalDeaths: 12,
	}
	if got[0] != want {
		t.Errorf("Facts()[0] = %+v, want %+v", got[0], want)
	}
}

func TestFactsKeepsDistinctKeysAndSorts(t *testing.T) {
	t.Parallel()
	rows := []Row{
		{RegionID: 2, Date: day("2021-01-02"), NewCases: 1},
		{RegionID: 1, Date: day("2021-01-02"), NewCases: 2},
		{RegionID: 1, Date: day("2021-01-01"), NewCases: 3},
		{RegionID: 2, Date: day("2021-01-01"), NewCases: 4},
	}
	got := Facts(rows)
	if len(got) != 4 {
		t.Fatalf("Facts() returned %d rows, want 4", len(got))
	}
	order := []struct {
		region int64
		date   string
	}{
		{1, "2021-01-01"}, {1, "2021-01-02"},
		{2, "2021-01-01"}, {2, "2021-01-02"},
	}
	for i, want := range order {
		if got[i].RegionID != want.region || !got[i].Date.Equal(day(want.date)) {
			t.Errorf("row %d = (region=%d date=%s), want (region=%d date=%s)",
				i, got[i].RegionID, got[i].Date.Format("2006-01-02"), want.region, want.date)
		}
	}
}

func TestFactsFirstDiseaseWins(t *testing.T) {
	t.Parallel()
	rows := []Row{
		{RegionID: 1, Date: day("2021-01-01"), DiseaseID: 42},
		{RegionID: 1, Date: day("2021-01-01"), DiseaseID: 7},
		{RegionID: 1, Date: day("2021-01-01"), DiseaseID: 9},
	}
	got := Facts(rows)
	if got[0].DiseaseID != 42 {
		t.Errorf("DiseaseID = %d, want first contributor 42", got[0].DiseaseID)
	}
}

func TestCoordinatesFirstCompletePairPerRegion(t *testing.T) {
	t.Parallel()
	rows := []Row{
		{RegionID: 3, Latitude: fp(46.2), Longitude: nil},      // incomplete, skipped
		{RegionID: 3, Latitude: fp(46.227638), Longitude: fp(2.21375)},
		{RegionID: 3, Latitude: fp(0), Longitude: fp(0)},       // later pair ignored
		{RegionID: 1, Latitude: fp(-9.19), Longitude: fp(-75.015)},
		{RegionID: 2}, // no coordinates at all
	}
	got := Coordinates(rows)
	if len(got) != 2 {
		t.Fatalf("Coordinates() returned %d updates, want 2", len(got))
	}
	if got[0].RegionID != 1 || got[1].RegionID != 3 {
		t.Errorf("update order = [%d %d], want [1 3]", got[0].RegionID, got[1].RegionID)
	}
	if got[1].Latitude != 46.227638 || got[1].Longitude != 2.21375 {
		t.Errorf("region 3 coords = (%v, %v), want (46.227638, 2.21375)", got[1].Latitude, got[1].Longitude)
	}
}
