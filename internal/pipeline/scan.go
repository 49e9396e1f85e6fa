package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/dast/internal/config"
	"github.com/nao1215/dast/internal/executor"
	"github.com/nao1215/dast/internal/model"
	"github.com/nao1215/dast/internal/report"
	"github.com/nao1215/dast/internal/ui"
	"github.com/nao1215/dast/internal/wordlist"
	"github.com/nao1215/dast/internal/workspace"
	"go.uber.org/multierr"
)

// DefaultSteps returns the scan phases in execution order.
func DefaultSteps(env *Env) []Step {
	return []Step{
		NewWordlistStep(env),
		NewSubdomainStep(env),
		NewProbeStep(env),
		NewContentStep(env),
		NewExtendedStep(env),
		NewNucleiStep(env),
	}
}

// Scanner runs the complete scan of one target: it prepares the workspace,
// executes every phase and writes the JSON report file.
type Scanner struct {
	env      *Env
	pipeline *Pipeline
	logger   *slog.Logger
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Env)

// WithRunner sets the runner used to execute the wrapped tools.
func WithRunner(runner executor.Runner) ScannerOption {
	return func(e *Env) {
		e.Runner = runner
	}
}

// WithDownloader sets the wordlist downloader.
func WithDownloader(d *wordlist.Downloader) ScannerOption {
	return func(e *Env) {
		e.Wordlists = d
	}
}

// WithScanReporter sets the progress reporter.
func WithScanReporter(reporter ui.Reporter) ScannerOption {
	return func(e *Env) {
		e.Reporter = reporter
	}
}

// WithScanLogger sets the logger of the scanner and its steps.
func WithScanLogger(logger *slog.Logger) ScannerOption {
	return func(e *Env) {
		e.Logger = logger
	}
}

// NewScanner creates the scanner of target. Per-target overrides of cfg
// are applied.
func NewScanner(cfg *config.Config, target string, opts ...ScannerOption) *Scanner {
	cfg = cfg.ForTarget(target)
	env := &Env{
		Config:    cfg,
		Workspace: workspace.New(cfg.OutputDir, target),
		Reporter:  ui.NopReporter{},
		Logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(env)
	}
	if env.Runner == nil {
		env.Runner = executor.New(executor.WithLogger(env.Logger), executor.WithTimeout(cfg.Timeout))
	}
	if env.Wordlists == nil {
		env.Wordlists = wordlist.NewDownloader(config.XDGCacheDir(), wordlist.WithLogger(env.Logger))
	}

	p := New(
		WithLogger(env.Logger),
		WithReporter(env.Reporter),
		WithContinueOnError(true),
	)
	p.AddSteps(DefaultSteps(env)...)

	return &Scanner{env: env, pipeline: p, logger: env.Logger}
}

// Pipeline returns the underlying pipeline.
func (s *Scanner) Pipeline() *Pipeline {
	return s.pipeline
}

// ReportPath returns where the JSON report of rep is written.
func (s *Scanner) ReportPath(rep *model.ScanReport) string {
	return s.env.Workspace.ReportFile(rep.Info.Timestamp)
}

// Execute runs the scan and writes the report file, also when the scan
// was interrupted. The returned error is the cancellation cause or a
// failure to set up the workspace or write the report; failed phases are
// only recorded in rep.
func (s *Scanner) Execute(ctx context.Context, rep *model.ScanReport) error {
	cfg := s.env.Config
	rep.Info.Threads = cfg.Threads
	rep.Info.Timeout = int64(cfg.Timeout.Seconds())
	rep.Info.OutputDir = cfg.OutputDir

	if err := s.env.Workspace.Create(); err != nil {
		err = fmt.Errorf("failed to create output directory: %w", err)
		rep.Finish(err)
		return err
	}

	err := s.pipeline.Execute(ctx, rep)
	rep.Finish(err)

	path := s.ReportPath(rep)
	if werr := report.WriteFile(path, rep); werr != nil {
		s.logger.Error("failed to write report", "path", path, "error", werr)
		return multierr.Append(err, werr)
	}
	s.logger.Info("report written", "target", rep.Info.Target, "path", path)
	return err
}
