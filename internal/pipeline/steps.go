package pipeline

import (
	"context"
	"fmt"

	"github.com/nao1215/dast/internal/config"
	"github.com/nao1215/dast/internal/executor"
	"github.com/nao1215/dast/internal/model"
	"github.com/nao1215/dast/internal/wordlist"
	"github.com/nao1215/dast/internal/workspace"
	"go.uber.org/multierr"
)

// WordlistStep makes sure a fuzzing wordlist is available for ffuf.
// A configured local wordlist is used as is; otherwise the wordlist URL is
// downloaded into the cache. On failure the well-known dirb list is used.
type WordlistStep struct {
	env *Env
}

// NewWordlistStep creates the wordlist step.
func NewWordlistStep(env *Env) *WordlistStep {
	return &WordlistStep{env: env}
}

// Name returns the step name.
func (s *WordlistStep) Name() string {
	return model.PhaseWordlistDownload
}

// Do executes the wordlist step.
func (s *WordlistStep) Do(ctx context.Context, report *model.ScanReport, phase *model.PhaseResult) error {
	cfg := s.env.Config

	path := cfg.WordlistPath
	var err error
	if path != "" {
		err = wordlist.CheckLocal(path)
	} else {
		s.env.Reporter.PhaseUpdate(s.env.target(), s.Name(), "downloading "+cfg.WordlistURL)
		path, err = s.env.Wordlists.Fetch(ctx, cfg.WordlistURL)
	}
	if err != nil {
		s.env.Logger.Warn("using fallback wordlist",
			"path", config.FallbackWordlistPath,
			"error", err,
		)
		report.Info.Wordlist = config.FallbackWordlistPath
		return fmt.Errorf("wordlist unavailable, falling back to %s: %w", config.FallbackWordlistPath, err)
	}

	words, err := workspace.ReadLines(path)
	if err != nil {
		report.Info.Wordlist = config.FallbackWordlistPath
		return err
	}

	report.Info.Wordlist = path
	phase.Artifact = path
	phase.Count = len(words)
	return nil
}

// SubdomainStep enumerates subdomains with subfinder, amass and
// assetfinder, one after the other.
type SubdomainStep struct {
	env *Env
}

// NewSubdomainStep creates the subdomain discovery step.
func NewSubdomainStep(env *Env) *SubdomainStep {
	return &SubdomainStep{env: env}
}

// Name returns the step name.
func (s *SubdomainStep) Name() string {
	return model.PhaseSubdomainDiscovery
}

// commands returns the enumeration commands in execution order.
func (s *SubdomainStep) commands() []executor.Command {
	cfg := s.env.Config
	target := s.env.target()
	return []executor.Command{
		{Name: "subfinder", Args: []string{"-d", target, "-silent"}},
		{
			Name:    "amass",
			Args:    []string{"enum", "-d", target, "-silent"},
			Timeout: max(cfg.AmassMinTimeout, cfg.Timeout),
		},
		{Name: "assetfinder", Args: []string{"--subs-only", target}},
	}
}

// Do executes the subdomain discovery step.
// Found names are restricted to the target's scope. When nothing is found
// the target itself is seeded so that later phases still have input.
func (s *SubdomainStep) Do(ctx context.Context, report *model.ScanReport, phase *model.PhaseResult) error {
	target := s.env.target()

	cmds := s.commands()
	runs := make([]toolRun, 0, len(cmds))
	for _, cmd := range cmds {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := s.env.run(ctx, s.Name(), cmd)
		runs = append(runs, toolRun{
			name:  cmd.Name,
			lines: scopeHosts(res.Lines(), target),
			err:   err,
		})
	}

	subs, runErr := merge(runs)
	if len(subs) == 0 {
		s.env.Logger.Info("no subdomains found, seeding target", "target", target)
		subs = []string{target}
	}

	path := s.env.Workspace.SubdomainsFile()
	if err := workspace.WriteLines(path, subs); err != nil {
		return multierr.Append(runErr, fmt.Errorf("failed to write subdomains: %w", err))
	}

	report.Results.Subdomains = subs
	phase.Artifact = path
	phase.Count = len(subs)
	return runErr
}

// ProbeStep finds live HTTP and HTTPS hosts with httprobe.
type ProbeStep struct {
	env *Env
}

// NewProbeStep creates the HTTP probing step.
func NewProbeStep(env *Env) *ProbeStep {
	return &ProbeStep{env: env}
}

// Name returns the step name.
func (s *ProbeStep) Name() string {
	return model.PhaseHTTPProbing
}

// Do executes the HTTP probing step.
// When httprobe fails or finds nothing, the target is probed as
// http://target and https://target so later phases still run.
func (s *ProbeStep) Do(ctx context.Context, report *model.ScanReport, phase *model.PhaseResult) error {
	path := s.env.Workspace.ProbeFile()
	phase.Artifact = path

	if len(report.Results.Subdomains) == 0 {
		report.Results.LiveHosts = []string{}
		return workspace.WriteLines(path, nil)
	}

	res, runErr := s.env.run(ctx, s.Name(), executor.Command{
		Name:  "httprobe",
		Args:  []string{"-c", fmt.Sprint(s.env.Config.Threads)},
		Stdin: s.env.Workspace.SubdomainsFile(),
	})

	hosts := executor.Unique(urlLines(res.Lines()))
	if runErr != nil || len(hosts) == 0 {
		target := s.env.target()
		s.env.Logger.Info("no live hosts from httprobe, using fallback", "target", target)
		hosts = []string{"http://" + target, "https://" + target}
	}

	if err := workspace.WriteLines(path, hosts); err != nil {
		return multierr.Append(runErr, fmt.Errorf("failed to write live hosts: %w", err))
	}

	report.Results.LiveHosts = hosts
	phase.Count = len(hosts)
	return runErr
}
