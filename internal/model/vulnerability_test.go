package model

import (
	"strings"
	"testing"
)

const jsonlExport = `{"template-id":"tech-detect","info":{"name":"Wappalyzer Technology Detection","severity":"info","tags":["tech"]},"type":"http","host":"https://example.com","matched-at":"https://example.com","matcher-name":"nginx","timestamp":"2024-05-01T10:00:00Z"}
not json at all
{"template-id":"git-config","info":{"name":"Git Config Disclosure","severity":"medium","tags":"config,git","reference":"https://example.org/ref","description":"Exposed .git/config"},"type":"http","host":"https://example.com","matched-at":"https://example.com/.git/config","extracted-results":["[core]"]}

{"info":{"name":"missing template id"}}
`

// TestParseNucleiExport tests parsing of nuclei export files.
func TestParseNucleiExport(t *testing.T) {
	t.Parallel()

	t.Run("jsonl export skips bad lines", func(t *testing.T) {
		t.Parallel()

		vulns, skipped, err := ParseNucleiExport(strings.NewReader(jsonlExport))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(vulns) != 2 {
			t.Fatalf("expected 2 vulnerabilities, got %d", len(vulns))
		}
		if skipped != 2 {
			t.Errorf("expected 2 skipped lines, got %d", skipped)
		}

		first := vulns[0]
		if first.TemplateID != "tech-detect" || first.Severity != SeverityInfo {
			t.Errorf("unexpected first result %+v", first)
		}
		if first.MatcherName != "nginx" {
			t.Errorf("unexpected matcher %q", first.MatcherName)
		}
		if first.Timestamp.IsZero() {
			t.Error("expected timestamp to be parsed")
		}

		second := vulns[1]
		if second.Severity != SeverityMedium {
			t.Errorf("expected medium, got %v", second.Severity)
		}
		if second.MatchedAt != "https://example.com/.git/config" {
			t.Errorf("unexpected matched-at %q", second.MatchedAt)
		}
		if len(second.Tags) != 1 || second.Tags[0] != "config,git" {
			t.Errorf("unexpected tags %v", second.Tags)
		}
		if len(second.References) != 1 {
			t.Errorf("unexpected references %v", second.References)
		}
		if len(second.ExtractedResults) != 1 {
			t.Errorf("unexpected extracted results %v", second.ExtractedResults)
		}
	})

	t.Run("json array export", func(t *testing.T) {
		t.Parallel()

		input := `
[
  {"template-id":"a","info":{"name":"A","severity":"critical"},"host":"https://a.example.com"},
  {"template-id":"b","info":{"name":"B","severity":"high"}},
  42
]`
		vulns, skipped, err := ParseNucleiExport(strings.NewReader(input))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(vulns) != 2 {
			t.Fatalf("expected 2 vulnerabilities, got %d", len(vulns))
		}
		if skipped != 1 {
			t.Errorf("expected 1 skipped item, got %d", skipped)
		}
		if vulns[0].Severity != SeverityCritical {
			t.Errorf("expected critical, got %v", vulns[0].Severity)
		}
	})

	t.Run("empty export", func(t *testing.T) {
		t.Parallel()

		vulns, skipped, err := ParseNucleiExport(strings.NewReader("  \n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if vulns == nil || len(vulns) != 0 || skipped != 0 {
			t.Errorf("expected empty non-nil result, got %v (%d skipped)", vulns, skipped)
		}
	})

	t.Run("malformed array fails", func(t *testing.T) {
		t.Parallel()

		if _, _, err := ParseNucleiExport(strings.NewReader(`[{"template-id":`)); err == nil {
			t.Error("expected error for truncated array")
		}
	})
}

// TestVulnerabilityKey tests the identity used to compare findings.
func TestVulnerabilityKey(t *testing.T) {
	t.Parallel()

	a := Vulnerability{TemplateID: "x", MatchedAt: "https://example.com/a", Host: "https://example.com"}
	b := Vulnerability{TemplateID: "x", MatchedAt: "https://example.com/b", Host: "https://example.com"}
	c := Vulnerability{TemplateID: "x", Host: "https://example.com/a"}

	if a.Key() == b.Key() {
		t.Error("different locations should produce different keys")
	}
	if a.Key() != c.Key() {
		t.Error("host should stand in for an empty matched-at")
	}
}
