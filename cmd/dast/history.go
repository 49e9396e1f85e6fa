package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/dast/internal/config"
	"github.com/nao1215/dast/internal/database"
	"github.com/nao1215/dast/internal/report"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [target]",
		Short: "Show recorded scans",
		Long: `History shows the scans recorded in the history database.

Without arguments it lists every scanned target. With a target it lists the
scans of that target, newest first. With --id it prints one stored report.

Examples:
  # List scanned targets
  dast history

  # List the scans of a target
  dast history example.com

  # Print a stored report
  dast history --id cuv3k0r2c1h8q5l4m9ng

  # Print a stored report as JSON
  dast history --id cuv3k0r2c1h8q5l4m9ng --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("id", "i", "",
		"Print the report of the scan with this ID")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	var target string
	if len(args) > 0 {
		var err error
		target, err = config.NormalizeTarget(args[0])
		if err != nil {
			return err
		}
	}

	id, err := cmd.Flags().GetString("id")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	db, err := database.Open(config.XDGDataDir(), database.Options{CreateIfNotExists: false})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return runHistory(cmd.Context(), cmd.OutOrStdout(), db, target, id, jsonOutput)
}

// runHistory prints one report, the scans of a target or all targets.
func runHistory(ctx context.Context, out io.Writer, db *database.HistoryDB, target, id string, jsonOutput bool) error {
	switch {
	case id != "":
		return showScanReport(ctx, out, db, id, jsonOutput)
	case target != "":
		return listScanHistory(ctx, out, db, target, jsonOutput)
	default:
		return listScannedTargets(ctx, out, db, jsonOutput)
	}
}

// showScanReport prints a stored report.
func showScanReport(ctx context.Context, out io.Writer, db *database.HistoryDB, id string, jsonOutput bool) error {
	rep, err := db.GetScanReportByID(ctx, id)
	if err != nil {
		return err
	}
	if rep == nil {
		return fmt.Errorf("scan %s not found", id)
	}

	if jsonOutput {
		_, err = report.NewJSONWriter(out, report.WithPrettyPrint()).Write(rep)
		return err
	}
	_, err = report.NewSimpleWriter(out).Write(rep)
	return err
}

// listScannedTargets lists all targets that have scans in the database.
func listScannedTargets(ctx context.Context, out io.Writer, db *database.HistoryDB, jsonOutput bool) error {
	targets, err := db.ListScannedTargets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list targets: %w", err)
	}

	if jsonOutput {
		if targets == nil {
			targets = []string{}
		}
		return encodeJSON(out, targets)
	}

	if len(targets) == 0 {
		fmt.Fprintln(out, "No scanned targets found in the database.")
		fmt.Fprintln(out, "\nUse 'dast <target>' to scan a domain.")
		return nil
	}

	fmt.Fprintf(out, "Scanned targets (%d):\n\n", len(targets))
	for _, target := range targets {
		fmt.Fprintf(out, "  • %s\n", target)
	}
	fmt.Fprintln(out, "\nUse 'dast history <target>' to see the scans of a target.")

	return nil
}

// listScanHistory lists all scan records for a specific target.
func listScanHistory(ctx context.Context, out io.Writer, db *database.HistoryDB, target string, jsonOutput bool) error {
	scans, err := db.GetScanHistoryWithMetadata(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if jsonOutput {
		if scans == nil {
			scans = []database.ScanReportMetadata{}
		}
		return encodeJSON(out, scans)
	}

	if len(scans) == 0 {
		fmt.Fprintf(out, "No scan history found for %s\n", target)
		fmt.Fprintln(out, "\nUse 'dast "+target+"' to scan this target.")
		return nil
	}

	fmt.Fprintf(out, "Scan history for %s (%d scans):\n\n", target, len(scans))
	fmt.Fprintf(out, "  %-20s  %-19s  %-12s  %s\n", "ID", "Date", "Outcome", "Risk Summary")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 75))

	for _, meta := range scans {
		outcome := string(meta.Outcome)
		if meta.Interrupted {
			outcome = "interrupted"
		}
		fmt.Fprintf(out, "  %-20s  %-19s  %-12s  %s\n",
			meta.ID,
			meta.Timestamp.Local().Format("2006-01-02 15:04:05"),
			outcome,
			formatRiskSummary(meta.RiskSummary),
		)
	}

	fmt.Fprintln(out, "\nUse 'dast compare "+target+"' to compare the latest two scans.")
	fmt.Fprintln(out, "Use 'dast history --id <id>' to print a stored report.")

	return nil
}

func encodeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
