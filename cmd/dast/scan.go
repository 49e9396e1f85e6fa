package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/nao1215/dast/internal/config"
	"github.com/nao1215/dast/internal/database"
	"github.com/nao1215/dast/internal/executor"
	"github.com/nao1215/dast/internal/log"
	"github.com/nao1215/dast/internal/model"
	"github.com/nao1215/dast/internal/pipeline"
	"github.com/nao1215/dast/internal/report"
	"github.com/nao1215/dast/internal/tool"
	"github.com/nao1215/dast/internal/ui"
	"github.com/nao1215/dast/internal/workspace"
	"github.com/spf13/cobra"
)

var (
	warnColor = color.New(color.FgYellow, color.Bold)
	errColor  = color.New(color.FgRed, color.Bold)
	okColor   = color.New(color.FgGreen, color.Bold)
)

// newScanCmd creates the scan command, which is the root command of dast.
func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dast [targets...]",
		Short: "Automated reconnaissance and vulnerability scanning pipeline",
		Long: `dast runs a pipeline of well-known security tools against a domain:

  1. wordlist download       SecLists common.txt for fuzzing
  2. subdomain discovery     subfinder, amass, assetfinder
  3. HTTP probing            httprobe
  4. web content discovery   katana, ffuf, gau, gospider
  5. extended scan           hakrawler, waybackurls, dirsearch
  6. vulnerability scanning  nuclei

Intermediate results are written under the output directory (default
"Targets"), and a JSON report of every scan is written to Targets/Reports
and recorded in the scan history. Missing tools are installed with
"go install" unless --no-install is given.

Only scan targets you are authorized to test.

Examples:
  # Scan a single domain
  dast example.com

  # Scan two domains concurrently with 20 threads
  dast -t 20 -b 2 example.com example.org

  # Quick scan: skip the extended phase, only high and critical findings
  dast --no-extended -s high,critical example.com

  # Write a Markdown report
  dast -m -o report.md example.com

Configuration file (.dast.yaml) example:
  threads: 20
  timeout: 30m
  nuclei_severity: [medium, high, critical]
  sites:
    example.com:
      host_limit: 5
      extended: false`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	// Tool behavior flags
	cmd.Flags().IntP("threads", "t", config.DefaultThreads,
		"Threads passed to tools that support concurrency")
	cmd.Flags().DurationP("timeout", "T", config.DefaultTimeout,
		"Timeout for each external command")
	cmd.Flags().StringP("output-dir", "O", config.DefaultOutputDir,
		"Directory that receives intermediate results and reports")
	cmd.Flags().String("nuclei-templates", config.DefaultNucleiTemplates,
		"Nuclei templates directory")
	cmd.Flags().StringSliceP("severity", "s", config.DefaultNucleiSeverity(),
		"Nuclei severities to scan for")
	cmd.Flags().StringP("wordlist", "w", "",
		"Local fuzzing wordlist (skips the download)")
	cmd.Flags().String("wordlist-url", config.DefaultWordlistURL,
		"Fuzzing wordlist download URL")
	cmd.Flags().Int("host-limit", config.DefaultHostLimit,
		"Live hosts visited by per-host tools (gau, gospider); 0 means all")
	cmd.Flags().Float64("host-rate", 0,
		"Per-host tool invocations per second; 0 means unlimited")
	cmd.Flags().Bool("no-extended", false,
		"Skip the extended scan phase")
	cmd.Flags().Bool("no-install", false,
		"Never install missing tools")

	// Batch scanning flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent target scans")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .dast.yaml in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-db", false,
		"Do not record the scan in the history database")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrNoTarget) {
			_ = cmd.Usage()
		}
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	// SIGINT and SIGTERM cancel the scan; partial results are still written.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newScanRun(cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr()).run(ctx)
}

// buildConfig creates a Config from defaults, the configuration file and
// the flags that were set explicitly, in that order of precedence.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use defaults if no file found.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(file)
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	if len(args) > 0 {
		cfg.Targets = args
	}
	cfg.Targets, err = normalizeTargets(cfg.Targets)
	if err != nil {
		return nil, err
	}
	cfg.Sites = normalizeSites(cfg.Sites)
	cfg.Verbose = getVerboseFlag(cmd)

	return cfg, nil
}

// applyFlags copies explicitly set flags into cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	if flags.Changed("threads") {
		if cfg.Threads, err = flags.GetInt("threads"); err != nil {
			return err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return err
		}
	}
	if flags.Changed("output-dir") {
		if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
			return err
		}
	}
	if flags.Changed("nuclei-templates") {
		if cfg.NucleiTemplates, err = flags.GetString("nuclei-templates"); err != nil {
			return err
		}
	}
	if flags.Changed("severity") {
		severities, err := flags.GetStringSlice("severity")
		if err != nil {
			return err
		}
		cfg.NucleiSeverity = make([]string, 0, len(severities))
		for _, s := range severities {
			cfg.NucleiSeverity = append(cfg.NucleiSeverity, strings.ToLower(strings.TrimSpace(s)))
		}
	}
	if flags.Changed("wordlist") {
		if cfg.WordlistPath, err = flags.GetString("wordlist"); err != nil {
			return err
		}
	}
	if flags.Changed("wordlist-url") {
		if cfg.WordlistURL, err = flags.GetString("wordlist-url"); err != nil {
			return err
		}
	}
	if flags.Changed("host-limit") {
		if cfg.HostLimit, err = flags.GetInt("host-limit"); err != nil {
			return err
		}
	}
	if flags.Changed("host-rate") {
		if cfg.HostRate, err = flags.GetFloat64("host-rate"); err != nil {
			return err
		}
	}
	if flags.Changed("batch") {
		if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
			return err
		}
	}

	noExtended, err := flags.GetBool("no-extended")
	if err != nil {
		return err
	}
	if noExtended {
		cfg.Extended = false
	}

	noInstall, err := flags.GetBool("no-install")
	if err != nil {
		return err
	}
	if noInstall {
		cfg.AutoInstall = false
	}

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return err
	}
	if noDB {
		cfg.SaveToDB = false
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return err
	}
	return nil
}

// normalizeTargets validates and normalizes the targets, dropping duplicates.
func normalizeTargets(targets []string) ([]string, error) {
	out := make([]string, 0, len(targets))
	for _, target := range targets {
		normalized, err := config.NormalizeTarget(target)
		if err != nil {
			return nil, fmt.Errorf("invalid target %q: %w", target, err)
		}
		out = append(out, normalized)
	}
	return executor.Unique(out), nil
}

// normalizeSites keys the per-site overrides by normalized target so that
// "https://Example.com" in the configuration file matches "example.com".
func normalizeSites(sites map[string]config.SiteConfig) map[string]config.SiteConfig {
	out := make(map[string]config.SiteConfig, len(sites))
	for name, site := range sites {
		if normalized, err := config.NormalizeTarget(name); err == nil {
			name = normalized
		}
		out[name] = site
	}
	return out
}

// scanRun is one invocation of the scan command.
type scanRun struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer

	// tools checks and installs the wrapped binaries.
	tools *tool.Manager

	// scannerOpts are passed to every pipeline.Scanner.
	scannerOpts []pipeline.ScannerOption
}

// newScanRun creates a scan run that executes real subprocesses.
func newScanRun(cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) *scanRun {
	runner := executor.New(executor.WithLogger(logger), executor.WithTimeout(cfg.Timeout))
	return &scanRun{
		cfg:    cfg,
		logger: logger,
		stdout: stdout,
		stderr: stderr,
		tools:  tool.NewManager(runner, tool.WithLogger(logger)),
	}
}

// run scans every target and prints the reports. The error carries the
// exit code: 1 when a scan failed, 130 when the run was interrupted.
func (s *scanRun) run(ctx context.Context) error {
	cfg := s.cfg

	s.logger.Info("starting scan",
		"targets", cfg.Targets,
		"threads", cfg.Threads,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	if err := s.ensureTools(ctx); err != nil {
		if ctx.Err() != nil {
			return &exitError{code: exitInterrupted, err: errors.New("interrupted while preparing tools")}
		}
		return err
	}

	// Open database connection if saving is enabled
	var db *database.HistoryDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		s.logger.Info("database opened", "path", db.Path())
	}

	reporter, closeReporter := s.newReporter()
	opts := append([]pipeline.ScannerOption{
		pipeline.WithScanReporter(reporter),
		pipeline.WithScanLogger(s.logger),
	}, s.scannerOpts...)

	bp := pipeline.NewBatchProcessor(
		func(target string) pipeline.Executable {
			return pipeline.NewScanner(cfg, target, opts...)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(s.logger),
	)

	if len(cfg.Targets) > 1 {
		fmt.Fprintf(s.stderr, "Starting scan of %d targets (concurrency: %d)...\n\n",
			len(cfg.Targets), cfg.BatchSize)
	}
	startTime := time.Now()

	// Process with callback for streaming progress and history
	reports := make([]*model.ScanReport, len(cfg.Targets))
	var mu sync.Mutex
	err := bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(rep *model.ScanReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		reports[index] = rep
		s.printCompletion(rep, index)

		// Never-started scans have nothing worth recording.
		if db == nil || len(rep.Phases) == 0 {
			return
		}
		// The history is written even when the run is being interrupted.
		if err := db.SaveScanReport(context.WithoutCancel(ctx), rep); err != nil {
			s.logger.Error("failed to save scan report", "target", rep.Info.Target, "error", err)
		}
	})
	closeReporter()

	if len(cfg.Targets) > 1 {
		fmt.Fprintf(s.stderr, "\nScan of %d targets completed in %s\n\n",
			len(cfg.Targets), time.Since(startTime).Round(time.Millisecond))
	}

	if werr := s.outputReports(reports); werr != nil {
		return fmt.Errorf("failed to output report: %w", werr)
	}

	return s.result(err, reports)
}

// ensureTools makes sure the required tools are usable. Missing tools are
// only a warning when installation is disabled; the phases that need them
// fail and the rest of the scan still runs.
func (s *scanRun) ensureTools(ctx context.Context) error {
	_, err := s.tools.Ensure(ctx, tool.Required(), s.cfg.AutoInstall)
	switch {
	case errors.Is(err, tool.ErrToolsUnavailable):
		warnColor.Fprint(s.stderr, "Warning: ")
		fmt.Fprintf(s.stderr, "%v; phases that need them will fail\n\n", err)
	case err != nil:
		return fmt.Errorf("failed to prepare tools: %w", err)
	}

	if s.cfg.Extended {
		for _, st := range tool.Unavailable(s.tools.Check(ctx, tool.Optional())) {
			s.logger.Info("optional tool unavailable", "tool", st.Tool.Name, "state", st.State)
		}
	}
	return nil
}

// newReporter picks the progress display. A single target gets an
// animated spinner; several targets or verbose logging get plain lines.
func (s *scanRun) newReporter() (ui.Reporter, func()) {
	if len(s.cfg.Targets) == 1 && !s.cfg.Verbose {
		spinner := ui.NewSpinnerReporter(s.stderr)
		return spinner, spinner.Close
	}
	return ui.NewLineReporter(s.stderr, len(s.cfg.Targets) > 1), func() {}
}

// printCompletion prints the one-line result of a finished scan.
func (s *scanRun) printCompletion(rep *model.ScanReport, index int) {
	target := rep.Info.Target
	prefix := ""
	if len(s.cfg.Targets) > 1 {
		prefix = fmt.Sprintf("[%d/%d] ", index+1, len(s.cfg.Targets))
	}

	switch {
	case rep.Interrupted:
		warnColor.Fprintf(s.stderr, "%sScan interrupted: %s\n", prefix, target)
	case rep.Outcome() == model.OutcomeFailed:
		errColor.Fprintf(s.stderr, "%sScan failed: %s\n", prefix, target)
	case rep.Outcome() == model.OutcomePartial:
		warnColor.Fprintf(s.stderr, "%sScan completed with partial results: %s\n", prefix, target)
	default:
		okColor.Fprintf(s.stderr, "%sScan completed: %s\n", prefix, target)
	}

	path := workspace.New(s.cfg.OutputDir, target).ReportFile(rep.Info.Timestamp)
	if workspace.Exists(path) {
		fmt.Fprintf(s.stderr, "%sJSON report: %s (took %s)\n",
			strings.Repeat(" ", len(prefix)), path, rep.Elapsed().Round(time.Second))
	}
}

// outputReports prints the reports in the requested format to stdout or
// to the report file.
func (s *scanRun) outputReports(reports []*model.ScanReport) error {
	out := s.stdout
	if s.cfg.ReportFile != "" {
		f, err := createReportFile(s.cfg.ReportFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	if err := writeReports(out, s.cfg, reports); err != nil {
		return err
	}

	if s.cfg.ReportFile != "" {
		fmt.Fprintf(s.stderr, "Report written to %s\n", s.cfg.ReportFile)
	}
	return nil
}

// writeReports writes the reports in the format selected by cfg.
func writeReports(out io.Writer, cfg *config.Config, reports []*model.ScanReport) error {
	// JSON output (detailed report with all data)
	if cfg.JSONReport {
		w := report.NewJSONWriter(out, report.WithPrettyPrint())
		var err error
		if len(reports) == 1 {
			_, err = w.Write(reports[0])
		} else {
			_, err = w.WriteAll(reports)
		}
		return err
	}

	var w report.Writer
	if cfg.MarkdownReport {
		w = report.NewMarkdownWriter(out)
	} else {
		w = report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose))
	}
	for _, rep := range reports {
		if _, err := w.Write(rep); err != nil {
			return err
		}
	}
	return nil
}

// createReportFile creates the report file and its parent directories.
func createReportFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may contain sensitive information that should only be readable by the owner
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// result maps the finished scans to the command error.
func (s *scanRun) result(batchErr error, reports []*model.ScanReport) error {
	var failed, partial []string
	interrupted := batchErr != nil
	for _, rep := range reports {
		if rep == nil {
			continue
		}
		if rep.Interrupted {
			interrupted = true
		}
		switch rep.Outcome() {
		case model.OutcomeFailed:
			failed = append(failed, rep.Info.Target)
		case model.OutcomePartial:
			partial = append(partial, rep.Info.Target)
		case model.OutcomeComplete:
		}
	}

	if interrupted {
		return &exitError{code: exitInterrupted, err: errors.New("scan interrupted; partial results were saved")}
	}
	if len(partial) > 0 {
		warnColor.Fprint(s.stderr, "Warning: ")
		fmt.Fprintf(s.stderr, "some phases failed for %s; results are partial\n", strings.Join(partial, ", "))
	}
	if len(failed) > 0 {
		return &exitError{code: exitFailure, err: fmt.Errorf("no phase succeeded for %s", strings.Join(failed, ", "))}
	}
	return nil
}
