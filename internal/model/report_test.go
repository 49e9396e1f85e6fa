package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

// TestNewScanReport tests the ScanReport constructor.
func TestNewScanReport(t *testing.T) {
	t.Parallel()

	report := NewScanReport("example.com")

	t.Run("sets target", func(t *testing.T) {
		t.Parallel()
		if report.Info.Target != "example.com" {
			t.Errorf("got %q, expected example.com", report.Info.Target)
		}
	})

	t.Run("assigns an id", func(t *testing.T) {
		t.Parallel()
		if report.Info.ID == "" {
			t.Error("expected a scan id")
		}
		if other := NewScanReport("example.com"); other.Info.ID == report.Info.ID {
			t.Error("expected distinct ids")
		}
	})

	t.Run("sets scan timestamp", func(t *testing.T) {
		t.Parallel()
		if report.Info.Timestamp.IsZero() {
			t.Error("expected Timestamp to be set")
		}
		if time.Since(report.Info.Timestamp) > time.Minute {
			t.Error("Timestamp is too old")
		}
	})

	t.Run("result lists serialize as arrays", func(t *testing.T) {
		t.Parallel()

		data, err := json.Marshal(report.Results)
		if err != nil {
			t.Fatal(err)
		}
		var decoded map[string]json.RawMessage
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatal(err)
		}
		for _, key := range []string{"subdomains", "live_hosts", "urls", "extended_urls", "vulnerabilities"} {
			if string(decoded[key]) != "[]" {
				t.Errorf("%s: got %s, expected []", key, decoded[key])
			}
		}
	})
}

// TestScanReportJSONLayout tests the top-level keys of the report file.
func TestScanReportJSONLayout(t *testing.T) {
	t.Parallel()

	report := NewScanReport("example.com")
	report.Info.Threads = 10
	report.Info.Timeout = 1200
	report.Finish(errors.New("boom"))

	data, err := json.Marshal(report)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"scan_info", "results", "phases", "interrupted", "error"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}

	var info map[string]any
	if err := json.Unmarshal(decoded["scan_info"], &info); err != nil {
		t.Fatal(err)
	}
	if info["target"] != "example.com" {
		t.Errorf("unexpected target %v", info["target"])
	}
	if info["timeout"] != float64(1200) {
		t.Errorf("unexpected timeout %v", info["timeout"])
	}
}

// TestRecordPhase tests phase recording.
func TestRecordPhase(t *testing.T) {
	t.Parallel()

	report := NewScanReport("example.com")
	report.RecordPhase(PhaseResult{Name: PhaseHTTPProbing, Status: PhaseFailed})
	report.RecordPhase(PhaseResult{Name: PhaseSubdomainDiscovery, Status: PhaseSuccess, Count: 3})
	report.RecordPhase(PhaseResult{Name: PhaseHTTPProbing, Status: PhaseSuccess, Count: 2})

	if len(report.Phases) != 2 {
		t.Fatalf("expected 2 phases, got %d", len(report.Phases))
	}
	if report.Phases[0].Name != PhaseHTTPProbing {
		t.Errorf("replacement should keep position, got %q first", report.Phases[0].Name)
	}

	p, ok := report.Phase(PhaseHTTPProbing)
	if !ok {
		t.Fatal("expected http_probing to be recorded")
	}
	if !p.Succeeded() || p.Count != 2 {
		t.Errorf("unexpected phase %+v", p)
	}
	if _, ok := report.Phase(PhaseExtendedScan); ok {
		t.Error("extended_scan should not be recorded")
	}
}

// TestOutcome tests how phase results roll up into a scan outcome.
func TestOutcome(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		statuses []PhaseStatus
		expected Outcome
	}{
		{"all succeeded", []PhaseStatus{PhaseSuccess, PhaseSuccess}, OutcomeComplete},
		{"success with skipped", []PhaseStatus{PhaseSuccess, PhaseSkipped}, OutcomeComplete},
		{"some failed", []PhaseStatus{PhaseSuccess, PhaseFailed}, OutcomePartial},
		{"all failed", []PhaseStatus{PhaseFailed, PhaseFailed}, OutcomeFailed},
		{"only skipped", []PhaseStatus{PhaseSkipped}, OutcomeFailed},
		{"nothing recorded", nil, OutcomeFailed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			report := NewScanReport("example.com")
			for i, status := range tc.statuses {
				report.RecordPhase(PhaseResult{Name: string(rune('a' + i)), Status: status})
			}
			if got := report.Outcome(); got != tc.expected {
				t.Errorf("Outcome() = %q, expected %q", got, tc.expected)
			}
		})
	}
}

// TestFinish tests finishing a report.
func TestFinish(t *testing.T) {
	t.Parallel()

	t.Run("without error", func(t *testing.T) {
		t.Parallel()

		report := NewScanReport("example.com")
		report.Finish(nil)
		if report.Info.FinishedAt.IsZero() {
			t.Error("expected FinishedAt to be set")
		}
		if report.ErrorMessage != "" {
			t.Errorf("unexpected error message %q", report.ErrorMessage)
		}
		if report.Elapsed() < 0 {
			t.Error("expected non-negative elapsed time")
		}
	})

	t.Run("with error", func(t *testing.T) {
		t.Parallel()

		report := NewScanReport("example.com")
		report.Finish(errors.New("interrupted"))
		if report.ErrorMessage != "interrupted" {
			t.Errorf("got %q, expected interrupted", report.ErrorMessage)
		}
	})
}

// TestPhaseTitle tests display titles of phases.
func TestPhaseTitle(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		PhaseWordlistDownload:      "Wordlist Download",
		PhaseVulnerabilityScanning: "Vulnerability Scanning",
		"custom":                   "Custom",
	}
	for in, want := range tests {
		if got := PhaseTitle(in); got != want {
			t.Errorf("PhaseTitle(%q) = %q, want %q", in, got, want)
		}
	}
	if len(PhaseNames()) != 6 {
		t.Errorf("expected 6 phases, got %d", len(PhaseNames()))
	}
}
