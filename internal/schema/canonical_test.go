package schema

import (
	"strings"
	"testing"

	"epietl/internal/parser"
	"epietl/pkg/records"
)

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"Country/Region", "country_region"},
		{"country_region", "country_region"},
		{"COUNTRY REGION", "country_region"},
		{"  Observation Date ", "observation_date"},
		{"Cas confirmés", "cas_confirmes"},
		{"new--cases!!", "new_cases"},
		{"___", ""},
		{"Lat.", "lat"},
	}
	for _, tc := range tests {
		if got := NormalizeName(tc.in); got != tc.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMapColumns_SynonymForms(t *testing.T) {
	t.Parallel()

	// All three spellings of the country column must resolve identically.
	for _, col := range []string{"Country/Region", "country_region", "COUNTRY REGION"} {
		m := MapColumns([]string{col, "Date"})
		if got := m.Source[FieldCountry]; got != col {
			t.Errorf("MapColumns(%q): country ← %q, want %q", col, got, col)
		}
		if got := m.Source[FieldDate]; got != "Date" {
			t.Errorf("MapColumns(%q): date ← %q", col, got)
		}
	}
}

func TestMapColumns_PriorityAndUnrecognized(t *testing.T) {
	t.Parallel()

	cols := []string{"location", "country", "ObservationDate", "new_cases_per_million", "notes"}
	m := MapColumns(cols)

	// "country" outranks "location" regardless of header order.
	if got := m.Source[FieldCountry]; got != "country" {
		t.Errorf("country ← %q, want country", got)
	}
	if _, ok := m.Source[FieldDate]; ok {
		t.Errorf("ObservationDate must not map to date (not a synonym)")
	}
	wantUnrec := map[string]bool{
		"location": true, "ObservationDate": true,
		"new_cases_per_million": true, "notes": true,
	}
	if len(m.Unrecognized) != len(wantUnrec) {
		t.Fatalf("Unrecognized = %v", m.Unrecognized)
	}
	for _, u := range m.Unrecognized {
		if !wantUnrec[u] {
			t.Errorf("unexpected unrecognized column %q", u)
		}
	}
	// Extras are the normalized spellings, aligned with Unrecognized.
	for i, u := range m.Unrecognized {
		if m.Extras[i] != NormalizeName(u) {
			t.Errorf("Extras[%d] = %q, want %q", i, m.Extras[i], NormalizeName(u))
		}
	}
}

func TestMapColumns_Deterministic(t *testing.T) {
	t.Parallel()

	cols := []string{"Country/Region", "Date", "Confirmed", "Deaths", "Temperature"}
	a := MapColumns(cols)
	for i := 0; i < 50; i++ {
		b := MapColumns(cols)
		if a.Fingerprint != b.Fingerprint {
			t.Fatalf("fingerprint changed across calls")
		}
		for f, src := range a.Source {
			if b.Source[f] != src {
				t.Fatalf("mapping for %s changed: %q vs %q", f, src, b.Source[f])
			}
		}
	}
	if a.Fingerprint == 0 {
		t.Errorf("fingerprint is zero")
	}
	if MapColumns([]string{"Date"}).Fingerprint == a.Fingerprint {
		t.Errorf("different headers share a fingerprint")
	}
}

func TestProject(t *testing.T) {
	t.Parallel()

	tab := &parser.Table{
		Columns: []string{"Country/Region", "Date", "deaths_per_million"},
		Rows: []records.Record{
			{"Country/Region": "France", "Date": "2020-03-01", "deaths_per_million": "0.4"},
			{"Country/Region": "Italy", "Date": nil, "deaths_per_million": nil},
		},
	}
	m := MapColumns(tab.Columns)
	rows := Project(tab, m)

	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	if got := rows[0][FieldCountry]; got != "France" {
		t.Errorf("country = %v", got)
	}
	if got := rows[0]["deaths_per_million"]; got != "0.4" {
		t.Errorf("extra column = %v", got)
	}
	if _, ok := rows[1][FieldDate]; ok {
		t.Errorf("nil source cell must stay absent")
	}
	// Projection must not alias the source rows.
	rows[0][FieldCountry] = "X"
	if tab.Rows[0]["Country/Region"] != "France" {
		t.Errorf("Project mutated the source table")
	}
}

func TestDiseaseTable_Detect(t *testing.T) {
	t.Parallel()

	tab := DefaultDiseases()
	tests := []struct{ path, want string }{
		{"/data/covid_19_clean_complete.csv", "COVID-19"},
		{"WHO-COVID-global.json", "COVID-19"},
		{"coronavirus_2020.csv", "COVID-19"},
		{"monkeypox_cases.csv", "Monkeypox"},
		{"owid-mpox.json", "Monkeypox"},
		{"ebola_west_africa.csv", "Ebola Virus Disease"},
		{"influenza.csv", UnknownDisease},
	}
	for _, tc := range tests {
		if got := tab.Detect(tc.path); got != tc.want {
			t.Errorf("Detect(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestDiseaseTable_CustomRulesFirst(t *testing.T) {
	t.Parallel()

	tab := append(DiseaseTable{{"covid_vaccinations", "COVID-19 Vaccination"}}, DefaultDiseases()...)
	if got := tab.Detect("covid_vaccinations.csv"); got != "COVID-19 Vaccination" {
		t.Errorf("custom rule did not win: %q", got)
	}
	if got := tab.Detect("covid_cases.csv"); got != "COVID-19" {
		t.Errorf("fallthrough broken: %q", got)
	}
}

func TestIsCanonical(t *testing.T) {
	t.Parallel()

	for _, f := range Fields {
		if !IsCanonical(f) {
			t.Errorf("IsCanonical(%s) = false", f)
		}
	}
	if IsCanonical("cases_per_million") || IsCanonical(strings.ToUpper(FieldDate)) {
		t.Errorf("IsCanonical accepted a non-canonical name")
	}
}
