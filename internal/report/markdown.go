package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/dast/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// maxListedURLs bounds the URLs listed in the Markdown report.
// The complete lists are in the JSON report and the artifact files.
const maxListedURLs = 50

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ScanReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writePhases(md, report)
	w.writeSummary(md, report)
	w.writeFindings(md, report)
	w.writeDiscovery(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with scan information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ScanReport) {
	md.H1("DAST Scan Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Target", "`" + report.Info.Target + "`"},
			{"Scan ID", "`" + report.Info.ID + "`"},
			{"Scan Date", report.Info.Timestamp.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Elapsed().Round(time.Second).String()},
			{"Threads", strconv.Itoa(report.Info.Threads)},
			{"Status", w.getStatusText(report)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.ScanReport) string {
	if report.Interrupted {
		return "⚠️ Interrupted (partial results)"
	}
	if report.ErrorMessage != "" {
		return "❌ Error - " + report.ErrorMessage
	}
	switch report.Outcome() {
	case model.OutcomeComplete:
		return "✅ Complete"
	case model.OutcomePartial:
		return "⚠️ Partial (some phases failed)"
	default:
		return "❌ Failed"
	}
}

// writePhases writes the phase table.
func (w *MarkdownWriter) writePhases(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("Phases")
	md.PlainText("")

	rows := make([][]string, 0, len(report.Phases))
	for _, p := range report.Phases {
		errText := "-"
		if p.Error != "" {
			errText = truncateString(firstLine(p.Error), 60)
		}
		rows = append(rows, []string{
			model.PhaseTitle(p.Name),
			phaseEmoji(p.Status) + " " + string(p.Status),
			strconv.Itoa(p.Count),
			p.Duration.Round(time.Millisecond).String(),
			errText,
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Phase", "Status", "Items", "Duration", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

func phaseEmoji(status model.PhaseStatus) string {
	switch status {
	case model.PhaseSuccess:
		return "✅"
	case model.PhaseFailed:
		return "❌"
	default:
		return "⏭️"
	}
}

// writeSummary writes the severity summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("Severity Summary")
	md.PlainText("")

	counts := report.SeverityCounts()
	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Count"},
		Rows: [][]string{
			{"🔴 Critical", strconv.Itoa(counts.Critical)},
			{"🟠 High", strconv.Itoa(counts.High)},
			{"🟡 Medium", strconv.Itoa(counts.Medium)},
			{"🔵 Low", strconv.Itoa(counts.Low)},
			{"⚪ Info", strconv.Itoa(counts.Info)},
			{"**Total**", "**" + strconv.Itoa(counts.Total()) + "**"},
		},
	})
	md.PlainText("")

	if counts.Total() > 0 {
		w.writePieChart(md, counts)
	}

	w.writeAlert(md, counts)
}

// writePieChart writes a mermaid pie chart for severity distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, counts model.SeverityCounts) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Finding Severity Distribution"),
		piechart.WithShowData(true),
	)

	for _, s := range model.SeveritiesDescending() {
		if n := counts.Get(s); n > 0 {
			chart.LabelAndIntValue(severityLabel(s), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func severityLabel(s model.Severity) string {
	name := s.String()
	return strings.ToUpper(name[:1]) + name[1:]
}

// writeAlert writes an appropriate alert based on severity counts.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, counts model.SeverityCounts) {
	switch {
	case counts.Critical > 0:
		md.Cautionf(
			"Critical security issues detected! %d critical finding(s) require immediate attention.",
			counts.Critical,
		)
	case counts.High > 0:
		md.Warningf(
			"High severity issues detected. %d high severity finding(s) should be addressed.",
			counts.High,
		)
	case counts.Medium > 0:
		md.Importantf(
			"Medium severity issues found. %d finding(s) should be reviewed.",
			counts.Medium,
		)
	case counts.Total() > 0:
		md.Note("Only low severity and informational findings detected.")
	default:
		md.Tip("No vulnerabilities reported by nuclei.")
	}
	md.PlainText("")
}

// writeFindings writes all findings grouped by severity.
func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("Findings")
	md.PlainText("")

	vulns := report.Results.Vulnerabilities
	if len(vulns) == 0 {
		md.PlainText("No vulnerabilities found.")
		md.PlainText("")
		return
	}

	headers := map[model.Severity]string{
		model.SeverityCritical: "### 🔴 Critical",
		model.SeverityHigh:     "### 🟠 High",
		model.SeverityMedium:   "### 🟡 Medium",
		model.SeverityLow:      "### 🔵 Low",
		model.SeverityInfo:     "### ⚪ Info",
		model.SeverityUnknown:  "### ❔ Unknown",
	}

	for _, severity := range model.SeveritiesDescending() {
		findings := bySeverity(vulns, severity)
		if len(findings) == 0 {
			continue
		}

		md.PlainText(headers[severity])
		md.PlainText("")
		w.writeFindingsTable(md, findings)
	}
}

// writeFindingsTable writes a table of findings with details.
func (w *MarkdownWriter) writeFindingsTable(md *markdown.Markdown, findings []model.Vulnerability) {
	rows := make([][]string, len(findings))
	for i, v := range findings {
		tags := "-"
		if len(v.Tags) > 0 {
			tags = strings.Join(v.Tags, ", ")
		}
		rows[i] = []string{
			displayName(v),
			"`" + v.TemplateID + "`",
			truncateString(location(v), 60),
			truncateString(tags, 40),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Name", "Template", "Location", "Tags"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, v := range findings {
		if v.Description != "" {
			md.Details(displayName(v), strings.TrimSpace(v.Description))
		}
	}
	md.PlainText("")
}

// writeDiscovery lists live hosts and a bounded selection of URLs.
func (w *MarkdownWriter) writeDiscovery(md *markdown.Markdown, report *model.ScanReport) {
	r := report.Results

	md.H2("Discovery")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Artifact", "Count"},
		Rows: [][]string{
			{"Subdomains", strconv.Itoa(len(r.Subdomains))},
			{"Live hosts", strconv.Itoa(len(r.LiveHosts))},
			{"URLs", strconv.Itoa(len(r.URLs))},
			{"Extended URLs", strconv.Itoa(len(r.ExtendedURLs))},
		},
	})
	md.PlainText("")

	if len(r.LiveHosts) > 0 {
		md.H3("Live Hosts")
		md.PlainText("")
		md.BulletList(r.LiveHosts...)
		md.PlainText("")
	}

	if len(r.URLs) > 0 {
		md.H3("URLs")
		md.PlainText("")
		listed := r.URLs
		if len(listed) > maxListedURLs {
			listed = listed[:maxListedURLs]
		}
		md.BulletList(listed...)
		md.PlainText("")
		if len(r.URLs) > len(listed) {
			md.PlainTextf("*%d more URLs in the JSON report.*", len(r.URLs)-len(listed))
			md.PlainText("")
		}
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [dast](https://github.com/nao1215/dast)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
