package datadog

import (
	"testing"

	"epietl/internal/metrics"
)

func TestNewBackendRequiresAddr(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend(Config{}); err == nil {
		t.Fatal("NewBackend(Config{}) error = nil, want non-nil")
	}
}

func TestNewBackendWithNamespaceAndTags(t *testing.T) {
	t.Parallel()

	// DogStatsD is UDP; no agent needs to be listening.
	b, err := NewBackend(Config{
		Addr:       "127.0.0.1:8125",
		Namespace:  "dimload.",
		GlobalTags: []string{"env:test", "job:who-daily"},
	})
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}

	b.IncCounter("dimload_rows_total", 3, metrics.Labels{"kind": "parsed"})
	b.ObserveHistogram("dimload_step_duration_seconds", 0.5, metrics.Labels{"step": "merge", "status": "success"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	t.Parallel()

	b := &Backend{} // zero-value backend with nil client

	b.IncCounter("dimload_rows_total", 1, metrics.Labels{"kind": "parsed"})
	b.ObserveHistogram("dimload_step_duration_seconds", 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() on nil client error = %v", err)
	}
}
