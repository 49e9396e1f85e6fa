package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/dast/internal/model"
	"github.com/nao1215/dast/internal/ui"
)

// ErrSkipped is returned by a step that decided not to run.
// The phase is recorded as skipped rather than failed.
var ErrSkipped = errors.New("phase skipped")

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the accumulated
// report from previous steps.
type Step interface {
	// Do executes the pipeline step.
	// It receives the context for cancellation, the report to modify and
	// the phase record, on which it sets the artifact and item count.
	// A returned error marks the phase failed; whatever the step stored in
	// the report before failing is kept.
	Do(ctx context.Context, report *model.ScanReport, phase *model.PhaseResult) error

	// Name returns the phase name recorded in the report.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// reporter receives phase start and finish events.
	reporter ui.Reporter

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, a default logger is created.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithReporter sets the progress reporter.
func WithReporter(reporter ui.Reporter) Option {
	return func(p *Pipeline) {
		p.reporter = reporter
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. Failed steps are logged and recorded in the
// report, but subsequent steps still execute.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:           make([]Step, 0),
		continueOnError: false,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.reporter == nil {
		p.reporter = ui.NopReporter{}
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence and records one PhaseResult
// per step.
//
// Cancellation is checked before each step. Once the context is done the
// current and remaining steps are recorded as skipped, the report is marked
// interrupted and ctx.Err() is returned.
//
// Returns the first step error if continueOnError is false, otherwise nil
// once all steps ran.
func (p *Pipeline) Execute(ctx context.Context, report *model.ScanReport) error {
	target := report.Info.Target

	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"target", target,
				"reason", err,
			)
			p.skipRemaining(report, i, err)
			return err
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"target", target,
		)
		p.reporter.PhaseStarted(target, step.Name())

		phase := p.run(ctx, step, report)
		report.RecordPhase(phase)
		p.reporter.PhaseFinished(target, phase)

		switch phase.Status {
		case model.PhaseFailed:
			p.logger.Error("step failed",
				"step", step.Name(),
				"target", target,
				"error", phase.Error,
			)
		case model.PhaseSkipped:
			p.logger.Info("step skipped",
				"step", step.Name(),
				"target", target,
				"reason", phase.Error,
			)
		case model.PhaseSuccess:
			p.logger.Debug("step completed",
				"step", step.Name(),
				"target", target,
				"count", phase.Count,
				"duration", phase.Duration,
			)
		}

		// A step that was cut short by cancellation already recorded what it
		// had; the rest never starts.
		if err := ctx.Err(); err != nil {
			p.skipRemaining(report, i+1, err)
			return err
		}

		if phase.Status == model.PhaseFailed && !p.continueOnError {
			return fmt.Errorf("%s: %s", step.Name(), phase.Error)
		}
	}

	return nil
}

// run executes one step and turns its error into a phase status.
func (p *Pipeline) run(ctx context.Context, step Step, report *model.ScanReport) model.PhaseResult {
	phase := model.PhaseResult{
		Name:      step.Name(),
		StartedAt: time.Now(),
	}

	err := step.Do(ctx, report, &phase)
	phase.Duration = time.Since(phase.StartedAt)

	switch {
	case err == nil:
		phase.Status = model.PhaseSuccess
	case errors.Is(err, ErrSkipped):
		phase.Status = model.PhaseSkipped
		phase.Error = err.Error()
	default:
		phase.Status = model.PhaseFailed
		phase.Error = err.Error()
	}
	return phase
}

// skipRemaining records the steps from index start on as skipped.
func (p *Pipeline) skipRemaining(report *model.ScanReport, start int, reason error) {
	report.Interrupted = true
	for _, step := range p.steps[start:] {
		phase := model.PhaseResult{
			Name:      step.Name(),
			Status:    model.PhaseSkipped,
			Error:     "interrupted: " + reason.Error(),
			StartedAt: time.Now(),
		}
		report.RecordPhase(phase)
		p.reporter.PhaseFinished(report.Info.Target, phase)
	}
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
