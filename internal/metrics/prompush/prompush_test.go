package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"epietl/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// readCounterValue reads the current value of a Counter for assertions.
func readCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Counter.Write() error = %v", err)
	}
	if m.GetCounter() == nil {
		t.Fatalf("metric did not contain Counter value")
	}
	return m.GetCounter().GetValue()
}

func readSummaryCountSum(t *testing.T, v *prometheus.SummaryVec, labels ...string) (uint64, float64) {
	t.Helper()

	m := &dto.Metric{}
	metric, ok := v.WithLabelValues(labels...).(prometheus.Metric)
	if !ok {
		t.Fatalf("SummaryVec.WithLabelValues(...) does not implement prometheus.Metric")
	}
	if err := metric.Write(m); err != nil {
		t.Fatalf("Summary.Write() error = %v", err)
	}
	if m.GetSummary() == nil {
		t.Fatalf("metric did not contain Summary value")
	}
	sum := m.GetSummary()
	return sum.GetSampleCount(), sum.GetSampleSum()
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		jobName     string
		gatewayURL  string
		wantErr     bool
		wantJobName string
	}{
		{
			name:       "missing gateway URL returns error",
			jobName:    "who-daily",
			gatewayURL: "",
			wantErr:    true,
		},
		{
			name:        "empty job name uses default",
			jobName:     "",
			gatewayURL:  "http://pushgateway:9091",
			wantJobName: "dimload",
		},
		{
			name:        "explicit job name is preserved",
			jobName:     "who-daily",
			gatewayURL:  "http://pushgateway:9091",
			wantJobName: "who-daily",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBackend(tt.jobName, tt.gatewayURL)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewBackend(%q, %q) error = nil, want non-nil", tt.jobName, tt.gatewayURL)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackend(%q, %q) error = %v", tt.jobName, tt.gatewayURL, err)
			}
			if b.jobName != tt.wantJobName {
				t.Fatalf("backend.jobName = %q, want %q", b.jobName, tt.wantJobName)
			}

			// Metric label cardinality: these calls should not panic.
			b.stepCounter.WithLabelValues("merge", "success").Add(1)
			b.stepDuration.WithLabelValues("derive", "failure").Observe(0.5)
			b.rowCounter.WithLabelValues("parsed").Add(1)
			b.fileCounter.WithLabelValues("processed").Add(1)
		})
	}
}

func TestIncCounter(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("who-daily", "http://example.com")
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}

	b.IncCounter("dimload_step_total", 3, metrics.Labels{"step": "parse", "status": "success"})
	b.IncCounter("dimload_rows_total", 5, metrics.Labels{"kind": "parsed"})
	b.IncCounter("dimload_files_total", 2, metrics.Labels{"kind": "skipped"})
	b.IncCounter("unknown_metric", 10, metrics.Labels{"foo": "bar"})

	if got := readCounterValue(t, b.stepCounter.WithLabelValues("parse", "success")); got != 3 {
		t.Errorf("stepCounter value = %v, want 3", got)
	}
	if got := readCounterValue(t, b.rowCounter.WithLabelValues("parsed")); got != 5 {
		t.Errorf("rowCounter value = %v, want 5", got)
	}
	if got := readCounterValue(t, b.fileCounter.WithLabelValues("skipped")); got != 2 {
		t.Errorf("fileCounter value = %v, want 2", got)
	}
}

func TestIncCounterNilMetrics(t *testing.T) {
	t.Parallel()

	b := &Backend{} // zero-value backend with nil collectors

	b.IncCounter("dimload_step_total", 1, metrics.Labels{"step": "parse", "status": "success"})
	b.IncCounter("dimload_rows_total", 1, metrics.Labels{"kind": "parsed"})
	b.IncCounter("dimload_files_total", 1, metrics.Labels{"kind": "processed"})
	b.IncCounter("unknown", 1, metrics.Labels{})
}

func TestObserveHistogram(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("who-daily", "http://example.com")
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}

	b.ObserveHistogram("dimload_step_duration_seconds", 1.5, metrics.Labels{"step": "merge", "status": "success"})
	b.ObserveHistogram("other_metric", 2.0, metrics.Labels{"step": "merge", "status": "success"})

	count, sum := readSummaryCountSum(t, b.stepDuration, "merge", "success")
	if count != 1 || sum != 1.5 {
		t.Errorf("summary = (count=%d sum=%v), want (1 1.5)", count, sum)
	}
}

func TestFlush(t *testing.T) {
	t.Parallel()

	type pushRequestInfo struct {
		method  string
		path    string
		bodyLen int
	}
	reqCh := make(chan pushRequestInfo, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		body, _ := io.ReadAll(r.Body)
		reqCh <- pushRequestInfo{method: r.Method, path: r.URL.Path, bodyLen: len(body)}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	b, err := NewBackend("who-daily", server.URL)
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	b.IncCounter("dimload_step_total", 1, metrics.Labels{"step": "parse", "status": "success"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	var got pushRequestInfo
	select {
	case got = <-reqCh:
	default:
		t.Fatalf("Flush() did not result in any HTTP request to the Pushgateway")
	}
	if got.method == "" || got.path == "" || got.bodyLen == 0 {
		t.Fatalf("push request = %+v, want non-empty method, path and body", got)
	}
}
