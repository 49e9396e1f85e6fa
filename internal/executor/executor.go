package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultTimeout is used for commands that do not set their own timeout.
const DefaultTimeout = 20 * time.Minute

// maxStderr bounds the stderr tail kept in an ExitError.
const maxStderr = 4096

// waitDelay is how long Wait keeps waiting for the output pipes after the
// process was killed. Some tools leave children holding stdout open.
const waitDelay = 5 * time.Second

var (
	// ErrNotFound is returned when the binary is not in the augmented PATH.
	ErrNotFound = errors.New("executable not found")

	// ErrTimeout is returned when a command exceeds its timeout.
	ErrTimeout = errors.New("command timed out")
)

// ExitError reports a command that exited with a non-zero status.
type ExitError struct {
	// Name is the executed binary.
	Name string

	// Code is the process exit code.
	Code int

	// Stderr is the tail of the process's standard error.
	Stderr string
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Name, e.Code)
	if e.Stderr != "" {
		msg += ": " + firstLine(e.Stderr)
	}
	return msg
}

// Command describes one subprocess invocation.
type Command struct {
	// Name is the binary name or path.
	Name string

	// Args are the command-line arguments.
	Args []string

	// Stdin is a file attached to the process's standard input. Optional.
	Stdin string

	// Env holds extra KEY=VALUE entries appended to the environment.
	Env []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Timeout overrides the executor's default timeout when positive.
	Timeout time.Duration
}

// String renders the command line for logs.
func (c Command) String() string {
	s := c.Name
	if len(c.Args) > 0 {
		s += " " + strings.Join(c.Args, " ")
	}
	if c.Stdin != "" {
		s += " < " + c.Stdin
	}
	return s
}

// Result holds the output of a finished command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Lines returns the non-empty, trimmed lines of stdout.
func (r *Result) Lines() []string {
	if r == nil {
		return nil
	}
	return Lines(r.Stdout)
}

// Runner runs commands. The pipeline depends on this interface so that
// tests can substitute a fake.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// Executor is the Runner that spawns real processes.
type Executor struct {
	logger  *slog.Logger
	timeout time.Duration
	path    string
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithTimeout sets the default per-command timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithPath replaces the search path. Mainly useful in tests.
func WithPath(path string) Option {
	return func(e *Executor) {
		e.path = path
	}
}

// New creates an Executor that searches SearchPath.
func New(opts ...Option) *Executor {
	e := &Executor{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
		path:    SearchPath(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Path returns the PATH used to find and run binaries.
func (e *Executor) Path() string {
	return e.path
}

// LookPath resolves name against the executor's PATH.
func (e *Executor) LookPath(name string) (string, error) {
	return LookPathIn(name, e.path)
}

// Run executes cmd and waits for it to finish.
// Cancelling ctx kills the process and returns ctx.Err().
func (e *Executor) Run(ctx context.Context, cmd Command) (*Result, error) {
	bin, err := e.LookPath(cmd.Name)
	if err != nil {
		return nil, err
	}

	timeout := e.timeout
	if cmd.Timeout > 0 {
		timeout = cmd.Timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := exec.CommandContext(runCtx, bin, cmd.Args...) //nolint:gosec // running external tools is the purpose of this package
	c.Dir = cmd.Dir
	c.Env = e.environ(cmd.Env)
	c.WaitDelay = waitDelay

	if cmd.Stdin != "" {
		f, err := os.Open(cmd.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to open stdin for %s: %w", cmd.Name, err)
		}
		defer f.Close()
		c.Stdin = f
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	e.logger.Debug("running command", "cmd", cmd.String(), "timeout", timeout)

	start := time.Now()
	runErr := c.Run()
	result := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if runErr == nil {
		e.logger.Debug("command finished", "cmd", cmd.Name, "duration", result.Duration)
		return result, nil
	}

	// Parent cancellation takes precedence over our own deadline.
	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return result, fmt.Errorf("%s after %s: %w", cmd.Name, timeout, ErrTimeout)
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return result, &ExitError{
			Name:   cmd.Name,
			Code:   exitErr.ExitCode(),
			Stderr: tail(stderr.String(), maxStderr),
		}
	}
	return result, fmt.Errorf("failed to run %s: %w", cmd.Name, runErr)
}

// environ returns the process environment with PATH replaced by the
// augmented one and extra appended.
func (e *Executor) environ(extra []string) []string {
	env := make([]string, 0, len(os.Environ())+len(extra)+1)
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "PATH=") {
			continue
		}
		env = append(env, kv)
	}
	env = append(env, "PATH="+e.path)
	return append(env, extra...)
}

// GoBinDirs returns the directories where go install places binaries.
// Only directories that exist are returned.
func GoBinDirs() []string {
	candidates := goBinCandidates()
	dirs := make([]string, 0, len(candidates))
	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

func goBinCandidates() []string {
	candidates := make([]string, 0, 3)
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".go", "bin"),
			filepath.Join(home, "go", "bin"),
		)
	}
	return append(candidates, "/usr/local/go/bin")
}

// systemBinDirs are searched after $PATH and the Go binary directories.
var systemBinDirs = []string{"/usr/local/bin", "/usr/bin"}

// AugmentedPath returns $PATH followed by the existing Go binary
// directories that are not already part of it.
func AugmentedPath() string {
	current := os.Getenv("PATH")
	parts := filepath.SplitList(current)
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		seen[p] = true
	}
	for _, dir := range GoBinDirs() {
		if !seen[dir] {
			parts = append(parts, dir)
			seen[dir] = true
		}
	}
	return strings.Join(parts, string(os.PathListSeparator))
}

// SearchPath returns AugmentedPath followed by every Go binary directory,
// existing or not, and the system binary directories. Tool lookups and
// command execution both use it, so a tool found by one is runnable by
// the other. Directories created later by go install are covered.
func SearchPath() string {
	parts := filepath.SplitList(AugmentedPath())
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		seen[p] = true
	}
	for _, dir := range append(goBinCandidates(), systemBinDirs...) {
		if !seen[dir] {
			parts = append(parts, dir)
			seen[dir] = true
		}
	}
	return strings.Join(parts, string(os.PathListSeparator))
}

// LookPathIn is exec.LookPath against an explicit PATH value.
func LookPathIn(name, path string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty command: %w", ErrNotFound)
	}
	if strings.Contains(name, string(os.PathSeparator)) {
		if isExecutable(name) {
			return name, nil
		}
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, ErrNotFound)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
