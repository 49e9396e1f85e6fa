package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/dast/internal/model"
	"golang.org/x/sync/errgroup"
)

// Executable runs a scan over a report. Both Pipeline and Scanner
// implement it.
type Executable interface {
	Execute(ctx context.Context, report *model.ScanReport) error
}

// BatchProcessor scans multiple targets concurrently.
// It uses errgroup to manage goroutines and respect concurrency limits.
type BatchProcessor struct {
	// factory creates a fresh scan for each target.
	factory func(target string) Executable

	// concurrency is the maximum number of concurrent scans.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed scan reports.
	// Access is synchronized via mutex.
	results []*model.ScanReport
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent scans.
// Default is 1 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
// The factory is called once per target so that no state leaks between
// scans.
func NewBatchProcessor(factory func(target string) Executable, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: 1,
		results:     make([]*model.ScanReport, 0),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch scans the targets, at most concurrency at a time.
//
// One report is returned per target, in input order, even for scans that
// failed. Targets that never started because the context was cancelled get
// an interrupted report with every phase missing. The returned error is the
// context error when the batch was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]*model.ScanReport, error) {
	err := bp.ProcessBatchWithCallback(ctx, targets, func(report *model.ScanReport, index int) {
		bp.mu.Lock()
		bp.results[index] = report
		bp.mu.Unlock()
	})
	return bp.results, err
}

// ProcessBatchWithCallback scans the targets and calls callback for each
// finished scan. This is useful for streaming results.
//
// The callback receives the report and the index of the target in the
// original slice. It is called from the goroutine that ran the scan, so it
// must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []string,
	callback func(report *model.ScanReport, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	bp.mu.Lock()
	bp.results = make([]*model.ScanReport, len(targets))
	bp.mu.Unlock()

	// Failed scans must not cancel their siblings, so the group's derived
	// context is not used and goroutines never return an error.
	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			report := model.NewScanReport(target)

			if err := ctx.Err(); err != nil {
				report.Interrupted = true
				report.Finish(err)
				callback(report, i)
				return nil
			}

			bp.logger.Info("scanning target",
				"target", target,
				"index", i+1,
				"total", len(targets),
			)

			if err := bp.factory(target).Execute(ctx, report); err != nil {
				bp.logger.Warn("scan failed",
					"target", target,
					"error", err,
				)
			} else {
				bp.logger.Info("scan completed",
					"target", target,
					"outcome", report.Outcome(),
				)
			}

			callback(report, i)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // goroutines never return an error

	bp.logger.Info("batch processing complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)

	return ctx.Err()
}
