package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nao1215/dast/internal/config"
	"github.com/nao1215/dast/internal/executor"
	"github.com/nao1215/dast/internal/ui"
	"github.com/nao1215/dast/internal/wordlist"
	"github.com/nao1215/dast/internal/workspace"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Env is what the scan steps of one target share.
type Env struct {
	// Runner executes the wrapped tools.
	Runner executor.Runner

	// Config is the configuration of this target, site overrides applied.
	Config *config.Config

	// Workspace resolves the artifact paths of the target.
	Workspace *workspace.Workspace

	// Wordlists downloads the fuzzing wordlist.
	Wordlists *wordlist.Downloader

	// Reporter receives progress messages from inside a phase.
	Reporter ui.Reporter

	// Logger for structured logging.
	Logger *slog.Logger

	limiterOnce sync.Once
	limiter     *rate.Limiter
}

// toolRun is the outcome of one tool inside a phase.
type toolRun struct {
	name  string
	lines []string
	err   error
}

// target returns the target the environment belongs to.
func (e *Env) target() string {
	return e.Workspace.Target()
}

// run executes cmd with the configured timeout unless the command sets
// its own, and reports progress to the phase.
func (e *Env) run(ctx context.Context, phase string, cmd executor.Command) (*executor.Result, error) {
	if cmd.Timeout == 0 {
		cmd.Timeout = e.Config.Timeout
	}
	e.Reporter.PhaseUpdate(e.target(), phase, "running "+cmd.Name)

	res, err := e.Runner.Run(ctx, cmd)
	if err != nil {
		e.Logger.Warn("tool failed",
			"tool", cmd.Name,
			"target", e.target(),
			"error", err,
		)
		return res, err
	}
	e.Logger.Debug("tool finished",
		"tool", cmd.Name,
		"args", cmd.Args,
		"target", e.target(),
		"duration", res.Duration,
	)
	return res, nil
}

// hostLimiter returns the limiter pacing per-host invocations, or nil when
// pacing is disabled.
func (e *Env) hostLimiter() *rate.Limiter {
	e.limiterOnce.Do(func() {
		if e.Config.HostRate > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(e.Config.HostRate), 1)
		}
	})
	return e.limiter
}

// perHost runs the command built for each host, at most Threads at a time
// and paced by the host limiter. Output lines are returned in host order.
// The run fails only when every invocation failed.
func (e *Env) perHost(ctx context.Context, phase, tool string, hosts []string, build func(host string) executor.Command) toolRun {
	outputs := make([][]string, len(hosts))
	errs := make([]error, len(hosts))
	limiter := e.hostLimiter()

	var g errgroup.Group
	g.SetLimit(max(e.Config.Threads, 1))

	for i, host := range hosts {
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					errs[i] = err
					return nil
				}
			}
			res, err := e.run(ctx, phase, build(host))
			outputs[i] = res.Lines()
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never return an error

	result := toolRun{name: tool, lines: []string{}}
	failed := 0
	for i := range hosts {
		result.lines = append(result.lines, outputs[i]...)
		if errs[i] != nil {
			failed++
		}
	}
	if len(hosts) > 0 && failed == len(hosts) {
		result.err = multierr.Combine(errs...)
	}
	return result
}

// merge combines the output of the tools of a phase into a sorted, unique
// list. It fails only when every tool failed.
func merge(runs []toolRun) ([]string, error) {
	var (
		all    []string
		errs   error
		failed int
	)
	for _, r := range runs {
		all = append(all, r.lines...)
		if r.err != nil {
			failed++
			errs = multierr.Append(errs, r.err)
		}
	}
	lines := executor.SortedUnique(all)
	if len(runs) > 0 && failed == len(runs) {
		return lines, errs
	}
	return lines, nil
}
