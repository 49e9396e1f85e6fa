package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/dast/internal/config"
	"github.com/nao1215/dast/internal/database"
	"github.com/nao1215/dast/internal/model"
	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"
)

const (
	noFindingsMessage = "No findings"

	// maxListedChanges bounds each list of added or removed items in the
	// text and Markdown comparison. JSON output is never truncated.
	maxListedChanges = 20
)

// NewCompareCmd creates the compare command.
// This command compares scan results with historical data stored in the database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <target>",
		Short: "Compare the latest scan of a target with an earlier one",
		Long: `Compare displays differences between the latest scan of a target and the
previous scan, or a specific earlier scan.

It shows:
- New and resolved nuclei findings
- Changes in the number of findings per severity
- New and removed subdomains, live hosts and URLs

The comparison requires at least two scans of the target in the history
database. Use 'dast history <target>' to see the available scan IDs.

Examples:
  # Compare latest two scans of a target
  dast compare example.com

  # Compare with a specific historical scan by ID
  dast compare --with-scan-id cuv3k0r2c1h8q5l4m9ng example.com

  # Output comparison in JSON format
  dast compare --json example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runCompareCmd,
	}

	cmd.Flags().StringP("with-scan-id", "i", "",
		"Compare with a specific scan by ID (see 'dast history <target>')")
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	// Validate arguments before opening database
	target, err := config.NormalizeTarget(args[0])
	if err != nil {
		return err
	}

	withScanID, err := cmd.Flags().GetString("with-scan-id")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}

	db, err := database.Open(config.XDGDataDir(), database.Options{CreateIfNotExists: false})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	format := formatText
	switch {
	case jsonOutput:
		format = formatJSON
	case markdownOutput:
		format = formatMarkdown
	}

	return runComparison(cmd.Context(), cmd.OutOrStdout(), db, target, withScanID, format)
}

// outputFormat selects how a comparison is printed.
type outputFormat int

const (
	formatText outputFormat = iota
	formatJSON
	formatMarkdown
)

// runComparison compares the latest scan of target with the previous scan,
// or with the scan withScanID when it is set.
func runComparison(ctx context.Context, out io.Writer, db *database.HistoryDB, target, withScanID string, format outputFormat) error {
	reports, err := db.GetScanHistory(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if len(reports) == 0 {
		return fmt.Errorf("no scan history found for %s", target)
	}

	// Latest report is always the current one
	current := reports[0]

	var previous *model.ScanReport
	if withScanID != "" {
		previous, err = db.GetScanReportByID(ctx, withScanID)
		if err != nil {
			return fmt.Errorf("failed to get scan %s: %w", withScanID, err)
		}
		if previous == nil {
			return fmt.Errorf("scan %s not found", withScanID)
		}
		if previous.Info.Target != target {
			return fmt.Errorf("scan %s belongs to %s, not %s", withScanID, previous.Info.Target, target)
		}
		if previous.Info.ID == current.Info.ID {
			return errors.New("cannot compare the latest scan with itself")
		}
	} else {
		if len(reports) < 2 {
			return fmt.Errorf("at least 2 scans are required for comparison (found %d)", len(reports))
		}
		previous = reports[1]
	}

	diff := model.Compare(previous, current)

	switch format {
	case formatJSON:
		return outputComparisonJSON(out, diff)
	case formatMarkdown:
		return outputComparisonMarkdown(out, diff)
	default:
		return outputComparisonText(out, diff)
	}
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(out io.Writer, diff *model.Diff) error {
	return encodeJSON(out, diff)
}

// severityRow is one row of the severity comparison table.
type severityRow struct {
	label    string
	previous int
	current  int
	delta    int
}

func severityRows(diff *model.Diff) []severityRow {
	prev, cur := diff.PreviousScan.Counts, diff.CurrentScan.Counts
	rc := diff.RiskChange
	return []severityRow{
		{"Critical", prev.Critical, cur.Critical, rc.CriticalDelta},
		{"High", prev.High, cur.High, rc.HighDelta},
		{"Medium", prev.Medium, cur.Medium, rc.MediumDelta},
		{"Low", prev.Low, cur.Low, rc.LowDelta},
		{"Info", prev.Info, cur.Info, rc.InfoDelta},
		{"Total", prev.Total(), cur.Total(), cur.Total() - prev.Total()},
	}
}

// assetChange is one added/removed list of the comparison.
type assetChange struct {
	title   string
	added   []string
	removed []string
}

func assetChanges(diff *model.Diff) []assetChange {
	return []assetChange{
		{"Subdomains", diff.NewSubdomains, diff.RemovedSubdomains},
		{"Live Hosts", diff.NewLiveHosts, diff.RemovedLiveHosts},
		{"URLs", diff.NewURLs, diff.RemovedURLs},
	}
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, diff *model.Diff) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Scan Comparison: %s\n", diff.Target)
	sb.WriteString(strings.Repeat("=", 60) + "\n")

	fmt.Fprintf(&sb, "\nRisk Status: %s\n", formatRiskDirection(diff.RiskChange.Direction))

	fmt.Fprintf(&sb, "\nPrevious scan: %s  %s\n", diff.PreviousScan.Timestamp.Format("2006-01-02 15:04:05"), diff.PreviousScan.ID)
	fmt.Fprintf(&sb, "Current scan:  %s  %s\n", diff.CurrentScan.Timestamp.Format("2006-01-02 15:04:05"), diff.CurrentScan.ID)

	sb.WriteString("\nFindings Summary:\n")
	fmt.Fprintf(&sb, "  %-10s  %-10s  %-10s  %-10s\n", "Severity", "Previous", "Current", "Change")
	sb.WriteString("  " + strings.Repeat("-", 45) + "\n")
	for _, row := range severityRows(diff) {
		if row.label == "Total" {
			sb.WriteString("  " + strings.Repeat("-", 45) + "\n")
		}
		fmt.Fprintf(&sb, "  %-10s  %-10d  %-10d  %-10s\n", row.label, row.previous, row.current, formatDelta(row.delta))
	}

	if len(diff.NewVulnerabilities) > 0 {
		fmt.Fprintf(&sb, "\nNew Findings (%d):\n", len(diff.NewVulnerabilities))
		for _, v := range diff.NewVulnerabilities {
			fmt.Fprintf(&sb, "  [+] [%s] %s\n", strings.ToUpper(v.Severity.String()), vulnerabilityTitle(v))
			if loc := vulnerabilityLocation(v); loc != "" {
				fmt.Fprintf(&sb, "      Location: %s\n", loc)
			}
		}
	}

	if len(diff.ResolvedVulnerabilities) > 0 {
		fmt.Fprintf(&sb, "\nResolved Findings (%d):\n", len(diff.ResolvedVulnerabilities))
		for _, v := range diff.ResolvedVulnerabilities {
			fmt.Fprintf(&sb, "  [-] [%s] %s\n", strings.ToUpper(v.Severity.String()), vulnerabilityTitle(v))
		}
	}

	if diff.UnchangedVulnerabilities > 0 {
		fmt.Fprintf(&sb, "\nUnchanged: %d findings\n", diff.UnchangedVulnerabilities)
	}

	for _, change := range assetChanges(diff) {
		if len(change.added) == 0 && len(change.removed) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n%s (+%d / -%d):\n", change.title, len(change.added), len(change.removed))
		for _, item := range limitList(change.added) {
			fmt.Fprintf(&sb, "  [+] %s\n", item)
		}
		for _, item := range limitList(change.removed) {
			fmt.Fprintf(&sb, "  [-] %s\n", item)
		}
		if hidden := hiddenCount(change); hidden > 0 {
			fmt.Fprintf(&sb, "  ... and %d more (use --json for the full list)\n", hidden)
		}
	}

	if diff.Empty() {
		sb.WriteString("\nNo changes between the two scans.\n")
	}

	_, err := io.WriteString(out, sb.String())
	return err
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, diff *model.Diff) error {
	md := markdown.NewMarkdown(out)

	md.H1("Scan Comparison: " + diff.Target)
	md.PlainText("")

	md.H2("Summary")
	md.PlainText("")
	md.PlainTextf("**Risk Status:** %s", formatRiskDirection(diff.RiskChange.Direction))
	md.PlainText("")

	rows := [][]string{
		{"Date", diff.PreviousScan.Timestamp.Format("2006-01-02 15:04"), diff.CurrentScan.Timestamp.Format("2006-01-02 15:04"), "-"},
		{"Scan ID", "`" + diff.PreviousScan.ID + "`", "`" + diff.CurrentScan.ID + "`", "-"},
	}
	for _, row := range severityRows(diff) {
		label, prev, cur, delta := row.label, strconv.Itoa(row.previous), strconv.Itoa(row.current), formatDelta(row.delta)
		if row.label == "Total" {
			label, prev, cur, delta = "**Total**", "**"+prev+"**", "**"+cur+"**", "**"+delta+"**"
		}
		rows = append(rows, []string{label, prev, cur, delta})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(diff.NewVulnerabilities) > 0 {
		md.H2(fmt.Sprintf("New Findings (%d)", len(diff.NewVulnerabilities)))
		md.PlainText("")
		items := make([]string, 0, len(diff.NewVulnerabilities))
		for _, v := range diff.NewVulnerabilities {
			item := fmt.Sprintf("**[%s]** %s", strings.ToUpper(v.Severity.String()), vulnerabilityTitle(v))
			if loc := vulnerabilityLocation(v); loc != "" {
				item += " at `" + loc + "`"
			}
			items = append(items, item)
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if len(diff.ResolvedVulnerabilities) > 0 {
		md.H2(fmt.Sprintf("Resolved Findings (%d)", len(diff.ResolvedVulnerabilities)))
		md.PlainText("")
		items := make([]string, 0, len(diff.ResolvedVulnerabilities))
		for _, v := range diff.ResolvedVulnerabilities {
			items = append(items, fmt.Sprintf("~~**[%s]** %s~~", strings.ToUpper(v.Severity.String()), vulnerabilityTitle(v)))
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	for _, change := range assetChanges(diff) {
		if len(change.added) == 0 && len(change.removed) == 0 {
			continue
		}
		md.H2(fmt.Sprintf("%s (+%d / -%d)", change.title, len(change.added), len(change.removed)))
		md.PlainText("")
		items := make([]string, 0, maxListedChanges*2)
		for _, item := range limitList(change.added) {
			items = append(items, "➕ `"+item+"`")
		}
		for _, item := range limitList(change.removed) {
			items = append(items, "➖ `"+item+"`")
		}
		md.BulletList(items...)
		if hidden := hiddenCount(change); hidden > 0 {
			md.PlainText("")
			md.PlainTextf("*%d more changes in the JSON output.*", hidden)
		}
		md.PlainText("")
	}

	if diff.UnchangedVulnerabilities > 0 {
		md.HorizontalRule()
		md.PlainTextf("*%d findings unchanged*", diff.UnchangedVulnerabilities)
	}

	return md.Build()
}

// vulnerabilityTitle returns the template name, falling back to its ID.
func vulnerabilityTitle(v model.Vulnerability) string {
	if v.Name != "" && v.Name != v.TemplateID {
		return v.Name + " (" + v.TemplateID + ")"
	}
	return v.TemplateID
}

// vulnerabilityLocation returns where a finding matched.
func vulnerabilityLocation(v model.Vulnerability) string {
	if v.MatchedAt != "" {
		return v.MatchedAt
	}
	return v.Host
}

func limitList(items []string) []string {
	if len(items) > maxListedChanges {
		return items[:maxListedChanges]
	}
	return items
}

func hiddenCount(change assetChange) int {
	hidden := 0
	if n := len(change.added) - maxListedChanges; n > 0 {
		hidden += n
	}
	if n := len(change.removed) - maxListedChanges; n > 0 {
		hidden += n
	}
	return hidden
}

// formatRiskSummary formats severity counts into a compact string.
func formatRiskSummary(c model.SeverityCounts) string {
	var parts []string
	for _, s := range model.SeveritiesDescending() {
		if n := c.Get(s); n > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", strings.ToUpper(s.String()[:1]), n))
		}
	}
	if len(parts) == 0 {
		return noFindingsMessage
	}
	return strings.Join(parts, " ")
}

// formatRiskDirection formats the risk change direction for display.
func formatRiskDirection(direction string) string {
	switch direction {
	case model.RiskImproved:
		return "IMPROVED (risk decreased)"
	case model.RiskWorsened:
		return "WORSENED (risk increased)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
