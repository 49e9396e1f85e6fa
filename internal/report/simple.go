package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/dast/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no findings are shown.
	showEmpty bool

	// verbose enables additional detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.ScanReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writePhases(&sb, report)
	w.writeResults(&sb, report)
	w.writeSummary(&sb, report)
	w.writeFindings(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with scan information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.ScanReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                           DAST SCAN REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Target:     %s\n", report.Info.Target)
	fmt.Fprintf(sb, "Scan ID:    %s\n", report.Info.ID)
	fmt.Fprintf(sb, "Scan Date:  %s\n", report.Info.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:   %s\n", report.Elapsed().Round(time.Second))
	fmt.Fprintf(sb, "Status:     %s\n", statusText(report))
	sb.WriteString("\n")
}

// statusText describes how the scan ended.
func statusText(report *model.ScanReport) string {
	switch {
	case report.Interrupted:
		return "INTERRUPTED (partial results)"
	case report.ErrorMessage != "":
		return "ERROR - " + report.ErrorMessage
	}
	switch report.Outcome() {
	case model.OutcomeComplete:
		return "Complete"
	case model.OutcomePartial:
		return "Partial (some phases failed)"
	default:
		return "Failed (no phase succeeded)"
	}
}

// writePhases writes one line per phase.
func (w *SimpleWriter) writePhases(sb *strings.Builder, report *model.ScanReport) {
	section(sb, "PHASES")

	for _, p := range report.Phases {
		fmt.Fprintf(sb, "  [%s] %-24s %6d  %s\n",
			phaseIndicator(p.Status),
			model.PhaseTitle(p.Name),
			p.Count,
			p.Duration.Round(time.Millisecond),
		)
		if p.Error != "" {
			fmt.Fprintf(sb, "        %s\n", firstLine(p.Error))
		}
		if w.verbose && p.Artifact != "" {
			fmt.Fprintf(sb, "        Artifact: %s\n", p.Artifact)
		}
	}
	sb.WriteString("\n")
}

func phaseIndicator(status model.PhaseStatus) string {
	switch status {
	case model.PhaseSuccess:
		return "+"
	case model.PhaseFailed:
		return "x"
	default:
		return "-"
	}
}

// writeResults writes the artifact counts.
func (w *SimpleWriter) writeResults(sb *strings.Builder, report *model.ScanReport) {
	section(sb, "RESULTS")

	r := report.Results
	fmt.Fprintf(sb, "  Subdomains:     %d\n", len(r.Subdomains))
	fmt.Fprintf(sb, "  Live hosts:     %d\n", len(r.LiveHosts))
	fmt.Fprintf(sb, "  URLs:           %d\n", len(r.URLs))
	fmt.Fprintf(sb, "  Extended URLs:  %d\n", len(r.ExtendedURLs))
	sb.WriteString("\n")

	if w.verbose || w.showEmpty {
		if len(r.LiveHosts) > 0 || w.showEmpty {
			sb.WriteString("  Live hosts:\n")
			for _, h := range r.LiveHosts {
				fmt.Fprintf(sb, "    %s\n", h)
			}
			sb.WriteString("\n")
		}
	}
}

// writeSummary writes the severity summary section.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.ScanReport) {
	section(sb, "SEVERITY SUMMARY")

	counts := report.SeverityCounts()
	fmt.Fprintf(sb, "  CRITICAL: %d\n", counts.Critical)
	fmt.Fprintf(sb, "  HIGH:     %d\n", counts.High)
	fmt.Fprintf(sb, "  MEDIUM:   %d\n", counts.Medium)
	fmt.Fprintf(sb, "  LOW:      %d\n", counts.Low)
	fmt.Fprintf(sb, "  INFO:     %d\n", counts.Info)
	if counts.Unknown > 0 {
		fmt.Fprintf(sb, "  UNKNOWN:  %d\n", counts.Unknown)
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  TOTAL:    %d findings\n", counts.Total())
	sb.WriteString("\n")
}

// writeFindings writes all findings grouped by severity.
func (w *SimpleWriter) writeFindings(sb *strings.Builder, report *model.ScanReport) {
	vulns := report.Results.Vulnerabilities
	if len(vulns) == 0 && !w.showEmpty {
		return
	}

	section(sb, "FINDINGS")

	for _, severity := range model.SeveritiesDescending() {
		findings := bySeverity(vulns, severity)
		if len(findings) == 0 && !w.showEmpty {
			continue
		}
		w.writeFindingsForSeverity(sb, severity, findings)
	}
}

// writeFindingsForSeverity writes findings of a specific severity level.
func (w *SimpleWriter) writeFindingsForSeverity(sb *strings.Builder, severity model.Severity, findings []model.Vulnerability) {
	fmt.Fprintf(sb, "[%s] %s\n", severityIndicator(severity), strings.ToUpper(severity.String()))

	if len(findings) == 0 {
		sb.WriteString("  No findings\n\n")
		return
	}

	for _, v := range findings {
		fmt.Fprintf(sb, "  * %s (%s)\n", displayName(v), v.TemplateID)
		if loc := location(v); loc != "" {
			fmt.Fprintf(sb, "    Location: %s\n", loc)
		}
		if w.verbose {
			if v.Description != "" {
				fmt.Fprintf(sb, "    Description: %s\n", strings.TrimSpace(v.Description))
			}
			if len(v.Tags) > 0 {
				fmt.Fprintf(sb, "    Tags: %s\n", strings.Join(v.Tags, ", "))
			}
			if len(v.ExtractedResults) > 0 {
				fmt.Fprintf(sb, "    Extracted: %s\n", strings.Join(v.ExtractedResults, ", "))
			}
		}
	}
	sb.WriteString("\n")
}

// severityIndicator returns a visual indicator for the severity level.
func severityIndicator(severity model.Severity) string {
	switch severity {
	case model.SeverityCritical:
		return "!!!"
	case model.SeverityHigh:
		return "!!"
	case model.SeverityMedium:
		return "!"
	case model.SeverityLow:
		return "-"
	case model.SeverityInfo:
		return "i"
	default:
		return "?"
	}
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by dast\n")
	sb.WriteString("https://github.com/nao1215/dast\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// bySeverity returns the vulnerabilities of one severity, in input order.
func bySeverity(vulns []model.Vulnerability, severity model.Severity) []model.Vulnerability {
	var out []model.Vulnerability
	for _, v := range vulns {
		if v.Severity == severity {
			out = append(out, v)
		}
	}
	return out
}

func displayName(v model.Vulnerability) string {
	if v.Name != "" {
		return v.Name
	}
	return v.TemplateID
}

func location(v model.Vulnerability) string {
	if v.MatchedAt != "" {
		return v.MatchedAt
	}
	return v.Host
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
