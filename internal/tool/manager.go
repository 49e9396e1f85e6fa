package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/dast/internal/executor"
	"go.uber.org/multierr"
)

const (
	// VerifyTimeout bounds a tool health check.
	VerifyTimeout = 15 * time.Second

	// InstallTimeout bounds a single go install.
	InstallTimeout = 300 * time.Second
)

var (
	// ErrGoNotFound is returned when a tool must be installed but the go
	// command is not available.
	ErrGoNotFound = errors.New("go toolchain not found; install Go from https://go.dev/dl/")

	// ErrToolsUnavailable is returned by Ensure when required tools are
	// missing or broken and installation is disabled.
	ErrToolsUnavailable = errors.New("required tools are unavailable")
)

// State is the health of an installed tool.
type State string

const (
	// StateAvailable means the tool was found and its check passed.
	StateAvailable State = "available"

	// StateMissing means the binary was not found.
	StateMissing State = "missing"

	// StateBroken means the binary was found but its check failed.
	StateBroken State = "broken"
)

// Status is the result of checking one tool.
type Status struct {
	Tool  Tool
	State State

	// Path is the resolved binary path. Empty when missing.
	Path string

	// Err explains a broken tool.
	Err error
}

// Manager checks and installs tools.
type Manager struct {
	runner executor.Runner
	logger *slog.Logger
	path   string
	gopath string
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithSearchPath replaces the PATH searched by Lookup.
func WithSearchPath(path string) Option {
	return func(m *Manager) {
		m.path = path
	}
}

// WithGOPATH sets the GOPATH used by go install.
func WithGOPATH(gopath string) Option {
	return func(m *Manager) {
		m.gopath = gopath
	}
}

// NewManager creates a Manager that runs checks and installs through runner.
func NewManager(runner executor.Runner, opts ...Option) *Manager {
	m := &Manager{
		runner: runner,
		logger: slog.Default(),
		path:   executor.SearchPath(),
		gopath: defaultGOPATH(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func defaultGOPATH() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".go")
}

// Lookup returns the path of the named binary.
func (m *Manager) Lookup(name string) (string, error) {
	return executor.LookPathIn(name, m.path)
}

// Verify runs the tool's health check.
func (m *Manager) Verify(ctx context.Context, t Tool, path string) error {
	_, err := m.runner.Run(ctx, executor.Command{
		Name:    path,
		Args:    t.CheckArgs,
		Timeout: VerifyTimeout,
	})
	if err != nil {
		return fmt.Errorf("%s health check failed: %w", t.Name, err)
	}
	return nil
}

// Check reports the state of each tool.
func (m *Manager) Check(ctx context.Context, tools []Tool) []Status {
	statuses := make([]Status, 0, len(tools))
	for _, t := range tools {
		statuses = append(statuses, m.check(ctx, t))
	}
	return statuses
}

func (m *Manager) check(ctx context.Context, t Tool) Status {
	path, err := m.Lookup(t.Name)
	if err != nil {
		m.logger.Debug("tool not found", "tool", t.Name)
		return Status{Tool: t, State: StateMissing}
	}
	if err := m.Verify(ctx, t, path); err != nil {
		m.logger.Debug("tool check failed", "tool", t.Name, "path", path, "error", err)
		return Status{Tool: t, State: StateBroken, Path: path, Err: err}
	}
	return Status{Tool: t, State: StateAvailable, Path: path}
}

// GoVersion returns the output of go version.
func (m *Manager) GoVersion(ctx context.Context) (string, error) {
	goBin, err := m.Lookup("go")
	if err != nil {
		return "", ErrGoNotFound
	}
	res, err := m.runner.Run(ctx, executor.Command{
		Name:    goBin,
		Args:    []string{"version"},
		Timeout: 10 * time.Second,
	})
	if err != nil {
		return "", fmt.Errorf("failed to run go version: %w", err)
	}
	return strings.TrimSpace(string(res.Stdout)), nil
}

// Install runs go install for the tool.
func (m *Manager) Install(ctx context.Context, t Tool) error {
	goBin, err := m.Lookup("go")
	if err != nil {
		return ErrGoNotFound
	}

	env := []string{}
	if m.gopath != "" {
		env = append(env, "GOPATH="+m.gopath)
	}

	m.logger.Info("installing tool", "tool", t.Name, "package", t.InstallTarget())
	if _, err := m.runner.Run(ctx, executor.Command{
		Name:    goBin,
		Args:    []string{"install", t.InstallTarget()},
		Env:     env,
		Timeout: InstallTimeout,
	}); err != nil {
		return fmt.Errorf("failed to install %s: %w", t.Name, err)
	}
	m.logger.Info("installed tool", "tool", t.Name)
	return nil
}

// Ensure checks tools and installs the missing and broken ones.
// Go is only required when something has to be installed. When install is
// false, unavailable tools produce ErrToolsUnavailable together with the
// statuses so that the caller can decide whether to continue.
// Installation stops at the first failure.
func (m *Manager) Ensure(ctx context.Context, tools []Tool, install bool) ([]Status, error) {
	statuses := m.Check(ctx, tools)

	var pending []int
	for i, s := range statuses {
		if s.State != StateAvailable {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return statuses, nil
	}

	if !install {
		names := make([]string, 0, len(pending))
		for _, i := range pending {
			names = append(names, statuses[i].Tool.Name)
		}
		return statuses, fmt.Errorf("%w: %s", ErrToolsUnavailable, strings.Join(names, ", "))
	}

	version, err := m.GoVersion(ctx)
	if err != nil {
		return statuses, err
	}
	m.logger.Info("go found", "version", version)

	for _, i := range pending {
		if err := ctx.Err(); err != nil {
			return statuses, err
		}
		t := statuses[i].Tool
		if err := m.Install(ctx, t); err != nil {
			return statuses, err
		}
		statuses[i] = m.check(ctx, t)
	}
	return statuses, nil
}

// Unavailable returns the statuses that are not available.
func Unavailable(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if s.State != StateAvailable {
			out = append(out, s)
		}
	}
	return out
}

// StatusErrors combines the errors of broken tools.
func StatusErrors(statuses []Status) error {
	var err error
	for _, s := range statuses {
		if s.Err != nil {
			err = multierr.Append(err, s.Err)
		}
	}
	return err
}
