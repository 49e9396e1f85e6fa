package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/dast/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *HistoryDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// newReport builds a finished report started at the given time.
func newReport(target string, started time.Time, severities ...model.Severity) *model.ScanReport {
	r := model.NewScanReport(target)
	r.Info.Timestamp = started
	r.Results.Subdomains = []string{"www." + target}
	for i, s := range severities {
		r.Results.Vulnerabilities = append(r.Results.Vulnerabilities, model.Vulnerability{
			TemplateID: "template-" + string(rune('a'+i)),
			Name:       "finding",
			Severity:   s,
			Host:       "https://www." + target,
		})
	}
	r.RecordPhase(model.PhaseResult{Name: "subdomains", Status: model.PhaseSuccess, Count: 1})
	r.Finish(nil)
	return r
}

// TestOpen tests database creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database and directory", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "nested", "data")
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer db.Close()

		if db.Path() != filepath.Join(dir, FileName) {
			t.Errorf("unexpected path %q", db.Path())
		}
		if _, err := os.Stat(db.Path()); err != nil {
			t.Errorf("database file not created: %v", err)
		}
	})

	t.Run("missing database without create", func(t *testing.T) {
		t.Parallel()

		_, err := Open(t.TempDir(), Options{CreateIfNotExists: false})
		if err == nil {
			t.Fatal("expected error for missing database")
		}
	})

	t.Run("reopens existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ctx := context.Background()
		if err := db.SaveScanReport(ctx, newReport("example.com", time.Now())); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		_ = db.Close()

		db, err = Open(dir, Options{CreateIfNotExists: false})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer db.Close()

		got, err := db.GetLatestScanReport(ctx, "example.com")
		if err != nil || got == nil {
			t.Fatalf("expected stored report, got %v, %v", got, err)
		}
	})
}

// TestSaveAndGetScanReport tests storing and loading reports.
func TestSaveAndGetScanReport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("round trip keeps findings", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		r := newReport("example.com", time.Now(), model.SeverityHigh, model.SeverityInfo)
		if err := db.SaveScanReport(ctx, r); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		got, err := db.GetScanReportByID(ctx, r.Info.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil {
			t.Fatal("expected report")
		}
		if got.Info.Target != "example.com" {
			t.Errorf("unexpected target %q", got.Info.Target)
		}
		if len(got.Results.Vulnerabilities) != 2 {
			t.Errorf("expected 2 vulnerabilities, got %d", len(got.Results.Vulnerabilities))
		}
		if got.Results.Vulnerabilities[0].Severity != model.SeverityHigh {
			t.Errorf("severity not preserved: %s", got.Results.Vulnerabilities[0].Severity)
		}
		if got.Results.URLs == nil {
			t.Error("expected empty URL list, got nil")
		}
	})

	t.Run("unknown id returns nil", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		got, err := db.GetScanReportByID(ctx, "missing")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil report, got %+v", got)
		}
	})

	t.Run("saving the same id replaces the row", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		r := newReport("example.com", time.Now())
		if err := db.SaveScanReport(ctx, r); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		r.Results.URLs = []string{"https://www.example.com/"}
		if err := db.SaveScanReport(ctx, r); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		history, err := db.GetScanHistory(ctx, "example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(history) != 1 {
			t.Fatalf("expected 1 report, got %d", len(history))
		}
		if len(history[0].Results.URLs) != 1 {
			t.Error("expected updated report")
		}
	})

	t.Run("interrupted report keeps its error", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		r := newReport("example.com", time.Now())
		r.Interrupted = true
		r.Finish(context.Canceled)
		if err := db.SaveScanReport(ctx, r); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		got, err := db.GetLatestScanReport(ctx, "example.com")
		if err != nil || got == nil {
			t.Fatalf("expected report, got %v, %v", got, err)
		}
		if !got.Interrupted {
			t.Error("expected interrupted report")
		}
		if got.Error == nil || got.ErrorMessage != context.Canceled.Error() {
			t.Errorf("error not restored: %v %q", got.Error, got.ErrorMessage)
		}
	})
}

// TestGetLatestScanReport tests selection of the newest report.
func TestGetLatestScanReport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	older := newReport("example.com", base)
	newer := newReport("example.com", base.Add(time.Hour))
	other := newReport("other.com", base.Add(2*time.Hour))

	for _, r := range []*model.ScanReport{newer, older, other} {
		if err := db.SaveScanReport(ctx, r); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	got, err := db.GetLatestScanReport(ctx, "example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Info.ID != newer.Info.ID {
		t.Errorf("expected newest report %s, got %+v", newer.Info.ID, got)
	}

	none, err := db.GetLatestScanReport(ctx, "never-scanned.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if none != nil {
		t.Error("expected nil for unscanned target")
	}
}

// TestGetScanHistory tests history ordering and filtering.
func TestGetScanHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ids := make([]string, 0, 3)
	for i := range 3 {
		r := newReport("example.com", base.Add(time.Duration(i)*time.Minute))
		ids = append(ids, r.Info.ID)
		if err := db.SaveScanReport(ctx, r); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}
	if err := db.SaveScanReport(ctx, newReport("other.com", base)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	history, err := db.GetScanHistory(ctx, "example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(history))
	}
	for i, r := range history {
		if want := ids[len(ids)-1-i]; r.Info.ID != want {
			t.Errorf("position %d: got %s, expected %s", i, r.Info.ID, want)
		}
	}
}

// TestGetScanHistoryWithMetadata tests summary rows.
func TestGetScanHistoryWithMetadata(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	first := newReport("example.com", base, model.SeverityCritical, model.SeverityLow, model.SeverityLow)
	second := newReport("other.com", base.Add(time.Minute))
	second.Interrupted = true
	for _, r := range []*model.ScanReport{first, second} {
		if err := db.SaveScanReport(ctx, r); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	t.Run("single target", func(t *testing.T) {
		t.Parallel()

		meta, err := db.GetScanHistoryWithMetadata(ctx, "example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(meta) != 1 {
			t.Fatalf("expected 1 row, got %d", len(meta))
		}
		m := meta[0]
		if m.ID != first.Info.ID || m.Target != "example.com" {
			t.Errorf("unexpected metadata %+v", m)
		}
		if !m.Timestamp.Equal(base) {
			t.Errorf("timestamp: got %v, expected %v", m.Timestamp, base)
		}
		if m.Outcome != model.OutcomeComplete {
			t.Errorf("unexpected outcome %s", m.Outcome)
		}
		if m.RiskSummary.Critical != 1 || m.RiskSummary.Low != 2 || m.RiskSummary.Total() != 3 {
			t.Errorf("unexpected risk summary %+v", m.RiskSummary)
		}
	})

	t.Run("all targets newest first", func(t *testing.T) {
		t.Parallel()

		meta, err := db.GetScanHistoryWithMetadata(ctx, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(meta) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(meta))
		}
		if meta[0].Target != "other.com" || !meta[0].Interrupted {
			t.Errorf("unexpected first row %+v", meta[0])
		}
	})
}

// TestListScannedTargets tests the distinct target listing.
func TestListScannedTargets(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	for _, target := range []string{"b.com", "a.com", "b.com"} {
		if err := db.SaveScanReport(ctx, newReport(target, time.Now())); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	targets, err := db.ListScannedTargets(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(targets) != 2 || targets[0] != "a.com" || targets[1] != "b.com" {
		t.Errorf("unexpected targets %v", targets)
	}
}

// TestParseTimestamp tests timestamp parsing with multiple formats.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name  string
		input string
		zero  bool
	}{
		{"stored layout", want.Format(timestampLayout), false},
		{"rfc3339", "2025-01-02T03:04:05Z", false},
		{"sqlite datetime", "2025-01-02 03:04:05", false},
		{"garbage", "not a time", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := parseTimestamp(tt.input)
			if tt.zero {
				if !got.IsZero() {
					t.Errorf("expected zero time, got %v", got)
				}
				return
			}
			if !got.Equal(want) {
				t.Errorf("got %v, expected %v", got, want)
			}
		})
	}
}
