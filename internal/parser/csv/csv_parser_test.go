package csv

import (
	"strings"
	"testing"

	"epietl/internal/config"
)

func TestParse_Basic(t *testing.T) {
	t.Parallel()

	in := "Country/Region,Date,Confirmed\nFrance,2020-03-01,130\nItaly,2020-03-01,1694\n"
	tab, err := New(config.Options{}).Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(tab.Columns) != 3 || tab.Columns[0] != "Country/Region" {
		t.Fatalf("Columns = %v", tab.Columns)
	}
	if len(tab.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(tab.Rows))
	}
	if got := tab.Rows[1]["Country/Region"]; got != "Italy" {
		t.Errorf("row[1].country = %v", got)
	}
	if got := tab.Rows[0]["Confirmed"]; got != "130" {
		t.Errorf("row[0].confirmed = %v", got)
	}
}

func TestParse_BOMAndShortRows(t *testing.T) {
	t.Parallel()

	in := "\ufeffcountry,date,deaths\nSpain,2020-04-01\n"
	tab, err := New(config.Options{}).Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tab.Columns[0] != "country" {
		t.Fatalf("BOM not stripped: %q", tab.Columns[0])
	}
	if got := tab.Rows[0]["deaths"]; got != nil {
		t.Errorf("missing cell = %v, want nil", got)
	}
}

func TestParse_DelimiterAndEmptyCells(t *testing.T) {
	t.Parallel()

	in := "country;date;confirmed\nFrance;2020-03-01;\n"
	tab, err := New(config.Options{"comma": ";"}).Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := tab.Rows[0]["confirmed"]; got != nil {
		t.Errorf("empty cell = %v, want nil", got)
	}
	if got := tab.Rows[0]["country"]; got != "France" {
		t.Errorf("country = %v", got)
	}
}

func TestParse_EmptyInput(t *testing.T) {
	t.Parallel()

	if _, err := New(config.Options{}).Parse(strings.NewReader("")); err == nil {
		t.Fatalf("expected error for empty input")
	}
}
