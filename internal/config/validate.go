// Package config provides configuration models and helpers for ingestion runs.
//
// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "diseases[1].keyword"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidatePipeline performs static validation / linting of a Pipeline.
//
// It does not mutate the pipeline. Instead it returns a slice of Issue values.
// Callers may decide whether to treat warnings as fatal or not.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateDiseases(p.Diseases)...)
	issues = append(issues, validatePopulation(p.Population)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateRuntime(p.Runtime)...)

	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue

	switch s.Kind {
	case "dir":
		if strings.TrimSpace(s.Dir.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.dir.path",
				Message:  "dataset directory path must not be empty for source.kind=dir",
			})
		}
	case "files":
		if len(s.Files) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.files",
				Message:  "at least one input file is required for source.kind=files",
			})
		}
		for i, f := range s.Files {
			if strings.TrimSpace(f) == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     fmt.Sprintf("source.files[%d]", i),
					Message:  "file path must not be empty",
				})
			}
		}
	case "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  `source.kind is required ("dir" or "files")`,
		})
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unsupported source.kind=%q", s.Kind),
		})
	}
	return issues
}

func validateDiseases(rules []DiseaseRule) []Issue {
	var issues []Issue
	for i, r := range rules {
		if strings.TrimSpace(r.Keyword) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("diseases[%d].keyword", i),
				Message:  "keyword must not be empty",
			})
		}
		if r.Keyword != strings.ToLower(r.Keyword) {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     fmt.Sprintf("diseases[%d].keyword", i),
				Message:  "keywords are matched lowercase; this rule will never match as written",
			})
		}
		if strings.TrimSpace(r.Label) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("diseases[%d].label", i),
				Message:  "label must not be empty",
			})
		}
	}
	return issues
}

func validatePopulation(p Population) []Issue {
	var issues []Issue
	switch p.Kind {
	case "", "none":
		// Rate columns will be left unconverted; legal, but worth flagging.
		if p.Path != "" || len(p.Values) > 0 {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "population.kind",
				Message:  "population data provided but kind is not set; it will be ignored",
			})
		}
	case "file":
		if strings.TrimSpace(p.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "population.path",
				Message:  "path is required for population.kind=file",
			})
		}
	case "static":
		if len(p.Values) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "population.values",
				Message:  "values must not be empty for population.kind=static",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "population.kind",
			Message:  fmt.Sprintf("unsupported population.kind=%q", p.Kind),
		})
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue
	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind is required (registered backends are resolved at runtime)",
		})
	}
	if strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty",
		})
	}
	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue
	if r.FileWorkers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.file_workers",
			Message:  "file_workers must be >= 0 (0 means default)",
		})
	}
	if r.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.batch_size",
			Message:  "batch_size must be >= 0 (0 means default)",
		})
	}
	return issues
}
