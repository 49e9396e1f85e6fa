package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/dast/internal/executor"
	"github.com/nao1215/dast/internal/model"
	"go.uber.org/multierr"
)

// fallbackTemplatesDir is tried, relative to the home directory, when the
// configured nuclei templates do not exist.
const fallbackTemplatesDir = ".local/nuclei-templates"

// NucleiStep scans the live hosts with nuclei and collects the findings.
type NucleiStep struct {
	env *Env
}

// NewNucleiStep creates the vulnerability scanning step.
func NewNucleiStep(env *Env) *NucleiStep {
	return &NucleiStep{env: env}
}

// Name returns the step name.
func (s *NucleiStep) Name() string {
	return model.PhaseVulnerabilityScanning
}

// args builds the nuclei command line.
func (s *NucleiStep) args(out string) []string {
	cfg := s.env.Config
	args := []string{
		"-list", s.env.Workspace.ProbeFile(),
		"-severity", strings.Join(cfg.NucleiSeverity, ","),
		"-jsonl-export", out,
	}
	if templates := ResolveTemplates(cfg.NucleiTemplates); templates != "" {
		args = append(args, "-t", templates)
	} else {
		s.env.Logger.Info("nuclei templates not found, using built-in templates",
			"configured", cfg.NucleiTemplates,
		)
	}
	return args
}

// Do executes the vulnerability scanning step.
// Findings exported before nuclei failed are still collected.
func (s *NucleiStep) Do(ctx context.Context, report *model.ScanReport, phase *model.PhaseResult) error {
	if len(report.Results.LiveHosts) == 0 {
		s.env.Reporter.PhaseUpdate(s.env.target(), s.Name(), "no live hosts")
		return nil
	}

	out := s.env.Workspace.NucleiFile()
	if err := os.Remove(out); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove previous nuclei export: %w", err)
	}
	phase.Artifact = out

	_, runErr := s.env.run(ctx, s.Name(), executor.Command{
		Name: "nuclei",
		Args: s.args(out),
	})

	vulns, err := s.collect(out)
	if err != nil {
		return multierr.Append(runErr, err)
	}

	report.Results.Vulnerabilities = vulns
	phase.Count = len(vulns)
	return runErr
}

// collect parses the nuclei export. A missing export means no findings.
func (s *NucleiStep) collect(path string) ([]model.Vulnerability, error) {
	f, err := os.Open(path) //nolint:gosec // artifact path built by Workspace
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.Vulnerability{}, nil
		}
		return nil, fmt.Errorf("failed to open nuclei export: %w", err)
	}
	defer f.Close()

	vulns, skipped, err := model.ParseNucleiExport(f)
	if skipped > 0 {
		s.env.Logger.Warn("skipped unparsable nuclei results",
			"target", s.env.target(),
			"skipped", skipped,
		)
	}
	if err != nil {
		return vulns, fmt.Errorf("failed to parse nuclei export: %w", err)
	}
	return vulns, nil
}

// ResolveTemplates returns the nuclei templates path to pass with -t.
// A leading "~" is expanded. When the path does not exist,
// ~/.local/nuclei-templates is tried; when that is missing too, the empty
// string is returned and nuclei falls back to its own templates.
func ResolveTemplates(path string) string {
	home, _ := os.UserHomeDir() //nolint:errcheck // empty home disables expansion

	if path != "" {
		expanded := expandHome(path, home)
		if _, err := os.Stat(expanded); err == nil {
			return expanded
		}
	}
	if home != "" {
		fallback := filepath.Join(home, fallbackTemplatesDir)
		if _, err := os.Stat(fallback); err == nil {
			return fallback
		}
	}
	return ""
}

func expandHome(path, home string) string {
	if home == "" {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
