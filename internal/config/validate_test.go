package config

import (
	"strings"
	"testing"
)

func validPipeline() Pipeline {
	return Pipeline{
		Job:     "test",
		Source:  Source{Kind: "dir", Dir: SourceDir{Path: "./data"}},
		Storage: Storage{Kind: "sqlite", DB: DBConfig{DSN: "file:test.db"}},
	}
}

func hasIssue(issues []Issue, path string, sev IssueSeverity) bool {
	for _, i := range issues {
		if i.Path == path && i.Severity == sev {
			return true
		}
	}
	return false
}

func TestValidatePipeline_Valid(t *testing.T) {
	t.Parallel()

	if issues := ValidatePipeline(validPipeline()); len(issues) != 0 {
		t.Fatalf("unexpected issues: %v", issues)
	}
}

func TestValidatePipeline_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Pipeline)
		path   string
	}{
		{"empty job", func(p *Pipeline) { p.Job = " " }, "job"},
		{"missing source kind", func(p *Pipeline) { p.Source.Kind = "" }, "source.kind"},
		{"unknown source kind", func(p *Pipeline) { p.Source.Kind = "ftp" }, "source.kind"},
		{"dir without path", func(p *Pipeline) { p.Source.Dir.Path = "" }, "source.dir.path"},
		{"files without list", func(p *Pipeline) { p.Source = Source{Kind: "files"} }, "source.files"},
		{"empty storage kind", func(p *Pipeline) { p.Storage.Kind = "" }, "storage.kind"},
		{"empty dsn", func(p *Pipeline) { p.Storage.DB.DSN = "" }, "storage.db.dsn"},
		{"population file without path", func(p *Pipeline) { p.Population = Population{Kind: "file"} }, "population.path"},
		{"population static without values", func(p *Pipeline) { p.Population = Population{Kind: "static"} }, "population.values"},
		{"unknown population kind", func(p *Pipeline) { p.Population.Kind = "dns" }, "population.kind"},
		{"disease without label", func(p *Pipeline) { p.Diseases = []DiseaseRule{{Keyword: "x"}} }, "diseases[0].label"},
		{"negative workers", func(p *Pipeline) { p.Runtime.FileWorkers = -1 }, "runtime.file_workers"},
		{"negative batch", func(p *Pipeline) { p.Runtime.BatchSize = -1 }, "runtime.batch_size"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := validPipeline()
			tc.mutate(&p)
			issues := ValidatePipeline(p)
			if !hasIssue(issues, tc.path, SeverityError) {
				t.Fatalf("expected error at %s, got %v", tc.path, issues)
			}
		})
	}
}

func TestValidatePipeline_Warnings(t *testing.T) {
	t.Parallel()

	p := validPipeline()
	p.Diseases = []DiseaseRule{{Keyword: "COVID", Label: "COVID-19"}}
	p.Population = Population{Path: "pop.csv"} // kind unset

	issues := ValidatePipeline(p)
	if !hasIssue(issues, "diseases[0].keyword", SeverityWarning) {
		t.Errorf("expected uppercase-keyword warning, got %v", issues)
	}
	if !hasIssue(issues, "population.kind", SeverityWarning) {
		t.Errorf("expected ignored-population warning, got %v", issues)
	}
	for _, i := range issues {
		if i.Severity == SeverityError {
			t.Errorf("unexpected error: %v", i)
		}
	}
}

func TestIssue_Error(t *testing.T) {
	t.Parallel()

	i := Issue{Severity: SeverityError, Path: "storage.kind", Message: "boom"}
	if got := i.Error(); !strings.Contains(got, "storage.kind") || !strings.Contains(got, "boom") {
		t.Fatalf("Error() = %q", got)
	}
}
