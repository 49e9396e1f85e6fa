package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/nao1215/dast/internal/executor"
	"github.com/nao1215/dast/internal/model"
	"github.com/nao1215/dast/internal/workspace"
	"go.uber.org/multierr"
)

// gospiderConcurrency and gospiderDepth are passed as -c and -d.
const (
	gospiderConcurrency = "10"
	gospiderDepth       = "1"
)

// ContentStep discovers URLs on the live hosts with katana, ffuf, gau and
// gospider.
type ContentStep struct {
	env *Env
}

// NewContentStep creates the web content discovery step.
func NewContentStep(env *Env) *ContentStep {
	return &ContentStep{env: env}
}

// Name returns the step name.
func (s *ContentStep) Name() string {
	return model.PhaseWebContentDiscovery
}

// Do executes the web content discovery step.
// With no live hosts there is nothing to crawl and the phase succeeds
// with zero items.
func (s *ContentStep) Do(ctx context.Context, report *model.ScanReport, phase *model.PhaseResult) error {
	hosts := report.Results.LiveHosts
	if len(hosts) == 0 {
		s.env.Reporter.PhaseUpdate(s.env.target(), s.Name(), "no live hosts")
		return nil
	}

	visited := limitHosts(hosts, s.env.Config.HostLimit)
	if len(visited) < len(hosts) {
		s.env.Logger.Info("limiting per-host tools",
			"target", s.env.target(),
			"hosts", len(hosts),
			"limit", len(visited),
		)
	}

	runs := []toolRun{s.katana(ctx)}
	if err := ctx.Err(); err != nil {
		return err
	}
	runs = append(runs, s.ffuf(ctx, report.Info.Wordlist))
	if err := ctx.Err(); err != nil {
		return err
	}
	runs = append(runs, s.gau(ctx, visited))
	if err := ctx.Err(); err != nil {
		return err
	}
	runs = append(runs, s.gospider(ctx, visited))

	urls, runErr := merge(runs)
	path := s.env.Workspace.URLsFile()
	if err := workspace.WriteLines(path, urls); err != nil {
		return multierr.Append(runErr, fmt.Errorf("failed to write urls: %w", err))
	}

	report.Results.URLs = urls
	phase.Artifact = path
	phase.Count = len(urls)
	return runErr
}

func (s *ContentStep) katana(ctx context.Context) toolRun {
	out := s.env.Workspace.ContentFile("katana")
	if err := removeStale(out); err != nil {
		return toolRun{name: "katana", err: fmt.Errorf("katana: %w", err)}
	}
	_, err := s.env.run(ctx, s.Name(), executor.Command{
		Name: "katana",
		Args: []string{
			"-no-color",
			"-system-chrome",
			"-list", s.env.Workspace.ProbeFile(),
			"-output", out,
		},
	})
	return fileRun("katana", out, err, urlLines)
}

func (s *ContentStep) ffuf(ctx context.Context, wordlistPath string) toolRun {
	if wordlistPath == "" || !workspace.Exists(wordlistPath) {
		return toolRun{name: "ffuf", err: fmt.Errorf("ffuf: wordlist %q not found", wordlistPath)}
	}

	out := s.env.Workspace.ContentFile("ffuf")
	if err := removeStale(out); err != nil {
		return toolRun{name: "ffuf", err: fmt.Errorf("ffuf: %w", err)}
	}
	_, err := s.env.run(ctx, s.Name(), executor.Command{
		Name: "ffuf",
		Args: []string{
			"-u", "HOST/WORD",
			"-w", s.env.Workspace.ProbeFile() + ":HOST",
			"-w", wordlistPath + ":WORD",
			"-ac",
			"-of", "json",
			"-o", out,
		},
	})
	if err != nil {
		return toolRun{name: "ffuf", err: err}
	}

	f, err := os.Open(out) //nolint:gosec // artifact path built by Workspace
	if err != nil {
		return toolRun{name: "ffuf", err: fmt.Errorf("ffuf: %w", err)}
	}
	defer f.Close()

	urls, err := parseFFUF(f)
	return toolRun{name: "ffuf", lines: urls, err: err}
}

func (s *ContentStep) gau(ctx context.Context, hosts []string) toolRun {
	threads := fmt.Sprint(s.env.Config.Threads)
	run := s.env.perHost(ctx, s.Name(), "gau", hostNames(hosts), func(host string) executor.Command {
		return executor.Command{
			Name: "gau",
			Args: []string{"--subs", "--threads", threads, host},
		}
	})
	return s.save(run, "gau", urlLines)
}

func (s *ContentStep) gospider(ctx context.Context, hosts []string) toolRun {
	run := s.env.perHost(ctx, s.Name(), "gospider", hosts, func(host string) executor.Command {
		return executor.Command{
			Name: "gospider",
			Args: []string{"-s", host, "-c", gospiderConcurrency, "-d", gospiderDepth, "--other-source"},
		}
	})
	return s.save(run, "gospider", gospiderURLs)
}

// save writes the raw output of a per-host tool to its content file and
// extracts the URLs.
func (s *ContentStep) save(run toolRun, tool string, extract func([]string) []string) toolRun {
	if err := workspace.WriteLines(s.env.Workspace.ContentFile(tool), run.lines); err != nil {
		run.err = multierr.Append(run.err, fmt.Errorf("%s: %w", tool, err))
	}
	run.lines = extract(run.lines)
	return run
}

// removeStale deletes the output file of an earlier run so that a tool
// failing before it writes cannot report old results.
func removeStale(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// fileRun builds the result of a tool that writes its own output file.
// Whatever the tool wrote before failing is kept.
func fileRun(tool, path string, runErr error, extract func([]string) []string) toolRun {
	lines, err := workspace.ReadLines(path)
	if err != nil {
		return toolRun{name: tool, err: multierr.Append(runErr, fmt.Errorf("%s: %w", tool, err))}
	}
	return toolRun{name: tool, lines: extract(lines), err: runErr}
}

// ExtendedStep runs the extended discovery tools: hakrawler, waybackurls
// and dirsearch.
type ExtendedStep struct {
	env *Env
}

// NewExtendedStep creates the extended scan step.
func NewExtendedStep(env *Env) *ExtendedStep {
	return &ExtendedStep{env: env}
}

// Name returns the step name.
func (s *ExtendedStep) Name() string {
	return model.PhaseExtendedScan
}

// Do executes the extended scan step.
func (s *ExtendedStep) Do(ctx context.Context, report *model.ScanReport, phase *model.PhaseResult) error {
	if !s.env.Config.Extended {
		return fmt.Errorf("%w: extended scan disabled", ErrSkipped)
	}
	if len(report.Results.LiveHosts) == 0 {
		s.env.Reporter.PhaseUpdate(s.env.target(), s.Name(), "no live hosts")
		return nil
	}

	probe := s.env.Workspace.ProbeFile()
	runs := make([]toolRun, 0, 3)
	for _, stdinTool := range []struct {
		name string
		file string
		args []string
	}{
		{name: "hakrawler", file: "hakrawler", args: []string{"-d", "2", "-u"}},
		{name: "waybackurls", file: "wayback"},
	} {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := s.env.run(ctx, s.Name(), executor.Command{
			Name:  stdinTool.name,
			Args:  stdinTool.args,
			Stdin: probe,
		})
		lines := res.Lines()
		if werr := workspace.WriteLines(s.env.Workspace.ContentFile(stdinTool.file), lines); werr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", stdinTool.name, werr))
		}
		runs = append(runs, toolRun{name: stdinTool.name, lines: urlTokens(lines), err: err})
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	runs = append(runs, s.dirsearch(ctx))

	urls, runErr := merge(runs)
	path := s.env.Workspace.ExtendedURLsFile()
	if err := workspace.WriteLines(path, urls); err != nil {
		return multierr.Append(runErr, fmt.Errorf("failed to write extended urls: %w", err))
	}

	report.Results.ExtendedURLs = urls
	phase.Artifact = path
	phase.Count = len(urls)
	return runErr
}

func (s *ExtendedStep) dirsearch(ctx context.Context) toolRun {
	script := s.env.Config.DirsearchPath
	if _, err := os.Stat(script); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return toolRun{name: "dirsearch", err: fmt.Errorf("dirsearch not found at %s", script)}
		}
		return toolRun{name: "dirsearch", err: fmt.Errorf("dirsearch: %w", err)}
	}

	out := s.env.Workspace.ContentFile("dirsearch")
	if err := removeStale(out); err != nil {
		return toolRun{name: "dirsearch", err: fmt.Errorf("dirsearch: %w", err)}
	}
	_, err := s.env.run(ctx, s.Name(), executor.Command{
		Name: "python3",
		Args: []string{script, "-l", s.env.Workspace.ProbeFile(), "-o", out},
	})
	return fileRun("dirsearch", out, err, urlTokens)
}
