package tool

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/dast/internal/executor"
)

// fakeRunner answers commands by binary base name.
type fakeRunner struct {
	mu       sync.Mutex
	calls    []executor.Command
	failures map[string]error
	// onInstall is called for go install commands.
	onInstall func(target string) error
}

func (f *fakeRunner) Run(_ context.Context, cmd executor.Command) (*executor.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()

	base := filepath.Base(cmd.Name)
	if err, ok := f.failures[base]; ok {
		return &executor.Result{}, err
	}
	if base == "go" && len(cmd.Args) > 0 {
		switch cmd.Args[0] {
		case "version":
			return &executor.Result{Stdout: []byte("go version go1.25.0 linux/amd64\n")}, nil
		case "install":
			if f.onInstall != nil {
				return &executor.Result{}, f.onInstall(cmd.Args[1])
			}
		}
	}
	return &executor.Result{}, nil
}

func (f *fakeRunner) commands() []executor.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]executor.Command(nil), f.calls...)
}

func writeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o700); err != nil {
		t.Fatal(err)
	}
	return path
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestRegistry tests the tool registry.
func TestRegistry(t *testing.T) {
	t.Parallel()

	t.Run("required tools", func(t *testing.T) {
		t.Parallel()

		want := []string{"subfinder", "amass", "httprobe", "nuclei", "katana", "ffuf", "gau", "assetfinder", "gospider"}
		got := Required()
		if len(got) != len(want) {
			t.Fatalf("expected %d required tools, got %d", len(want), len(got))
		}
		for i, name := range want {
			if got[i].Name != name {
				t.Errorf("tool %d: expected %q, got %q", i, name, got[i].Name)
			}
		}
	})

	t.Run("optional tools", func(t *testing.T) {
		t.Parallel()

		got := Optional()
		if len(got) != 2 || got[0].Name != "hakrawler" || got[1].Name != "waybackurls" {
			t.Errorf("unexpected optional tools %v", got)
		}
	})

	t.Run("optional tools come last", func(t *testing.T) {
		t.Parallel()

		all := All()
		if !all[len(all)-1].Optional || all[0].Optional {
			t.Error("expected required tools first")
		}
	})

	t.Run("check commands", func(t *testing.T) {
		t.Parallel()

		tests := map[string]string{
			"subfinder":   "-version",
			"nuclei":      "-version",
			"httprobe":    "-h",
			"assetfinder": "--help",
		}
		for name, arg := range tests {
			tl, ok := Get(name)
			if !ok {
				t.Fatalf("%s not registered", name)
			}
			if len(tl.CheckArgs) != 1 || tl.CheckArgs[0] != arg {
				t.Errorf("%s: unexpected check args %v", name, tl.CheckArgs)
			}
		}
	})

	t.Run("install target", func(t *testing.T) {
		t.Parallel()

		tl, _ := Get("gau")
		if tl.InstallTarget() != "github.com/lc/gau/v2/cmd/gau@latest" {
			t.Errorf("unexpected install target %q", tl.InstallTarget())
		}
		if _, ok := Get("nmap"); ok {
			t.Error("nmap should not be registered")
		}
	})
}

// TestManagerCheck tests tool state detection.
func TestManagerCheck(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeExecutable(t, dir, "subfinder")
	writeExecutable(t, dir, "amass")

	runner := &fakeRunner{failures: map[string]error{
		"amass": &executor.ExitError{Name: "amass", Code: 2},
	}}
	m := NewManager(runner, WithSearchPath(dir), WithLogger(quietLogger()))

	subfinder, _ := Get("subfinder")
	amass, _ := Get("amass")
	httprobe, _ := Get("httprobe")

	statuses := m.Check(context.Background(), []Tool{subfinder, amass, httprobe})

	want := []State{StateAvailable, StateBroken, StateMissing}
	for i, s := range statuses {
		if s.State != want[i] {
			t.Errorf("%s: expected %s, got %s", s.Tool.Name, want[i], s.State)
		}
	}
	if statuses[0].Path != filepath.Join(dir, "subfinder") {
		t.Errorf("unexpected path %q", statuses[0].Path)
	}
	if len(Unavailable(statuses)) != 2 {
		t.Errorf("expected 2 unavailable tools")
	}
	if err := StatusErrors(statuses); err == nil {
		t.Error("expected the broken tool's error")
	}

	for _, c := range runner.commands() {
		if c.Timeout != VerifyTimeout {
			t.Errorf("expected verify timeout, got %v", c.Timeout)
		}
	}
}

// TestManagerEnsure tests installation of missing tools.
func TestManagerEnsure(t *testing.T) {
	t.Parallel()

	subfinder, _ := Get("subfinder")
	httprobe, _ := Get("httprobe")
	tools := []Tool{subfinder, httprobe}

	t.Run("nothing to install does not need go", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeExecutable(t, dir, "subfinder")
		writeExecutable(t, dir, "httprobe")

		m := NewManager(&fakeRunner{}, WithSearchPath(dir), WithLogger(quietLogger()))
		statuses, err := m.Ensure(context.Background(), tools, true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(Unavailable(statuses)) != 0 {
			t.Error("expected all tools available")
		}
	})

	t.Run("install disabled reports unavailable tools", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeExecutable(t, dir, "subfinder")

		m := NewManager(&fakeRunner{}, WithSearchPath(dir), WithLogger(quietLogger()))
		_, err := m.Ensure(context.Background(), tools, false)
		if !errors.Is(err, ErrToolsUnavailable) {
			t.Fatalf("expected ErrToolsUnavailable, got %v", err)
		}
		if !strings.Contains(err.Error(), "httprobe") {
			t.Errorf("expected missing tool name in %q", err.Error())
		}
	})

	t.Run("missing go", func(t *testing.T) {
		t.Parallel()

		m := NewManager(&fakeRunner{}, WithSearchPath(t.TempDir()), WithLogger(quietLogger()))
		if _, err := m.Ensure(context.Background(), tools, true); !errors.Is(err, ErrGoNotFound) {
			t.Errorf("expected ErrGoNotFound, got %v", err)
		}
	})

	t.Run("installs missing tools with GOPATH", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeExecutable(t, dir, "go")
		writeExecutable(t, dir, "subfinder")

		runner := &fakeRunner{}
		runner.onInstall = func(target string) error {
			if target != "github.com/tomnomnom/httprobe@latest" {
				return errors.New("unexpected target " + target)
			}
			writeExecutable(t, dir, "httprobe")
			return nil
		}

		m := NewManager(runner, WithSearchPath(dir), WithGOPATH("/tmp/gopath"), WithLogger(quietLogger()))
		statuses, err := m.Ensure(context.Background(), tools, true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if statuses[1].State != StateAvailable {
			t.Errorf("expected httprobe available after install, got %s", statuses[1].State)
		}

		var install *executor.Command
		cmds := runner.commands()
		for i := range cmds {
			if len(cmds[i].Args) > 0 && cmds[i].Args[0] == "install" {
				install = &cmds[i]
			}
		}
		if install == nil {
			t.Fatal("expected a go install command")
		}
		if install.Timeout != InstallTimeout {
			t.Errorf("expected install timeout, got %v", install.Timeout)
		}
		if len(install.Env) != 1 || install.Env[0] != "GOPATH=/tmp/gopath" {
			t.Errorf("unexpected env %v", install.Env)
		}
	})

	t.Run("stops at first failed install", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeExecutable(t, dir, "go")

		runner := &fakeRunner{}
		runner.onInstall = func(string) error {
			return &executor.ExitError{Name: "go", Code: 1, Stderr: "network down"}
		}

		m := NewManager(runner, WithSearchPath(dir), WithLogger(quietLogger()))
		_, err := m.Ensure(context.Background(), tools, true)
		var exitErr *executor.ExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("expected ExitError, got %v", err)
		}

		installs := 0
		for _, c := range runner.commands() {
			if len(c.Args) > 0 && c.Args[0] == "install" {
				installs++
			}
		}
		if installs != 1 {
			t.Errorf("expected 1 install attempt, got %d", installs)
		}
	})
}

// TestGoVersion tests reading the go version.
func TestGoVersion(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeExecutable(t, dir, "go")

	m := NewManager(&fakeRunner{}, WithSearchPath(dir), WithLogger(quietLogger()))
	got, err := m.GoVersion(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "go version go1.25.0 linux/amd64" {
		t.Errorf("unexpected version %q", got)
	}
}

// TestNewManagerSearchPath tests that tools are looked up where the
// executor runs them.
func TestNewManagerSearchPath(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	if got, want := NewManager(&fakeRunner{}).path, executor.New().Path(); got != want {
		t.Errorf("manager searches %q, executor runs with %q", got, want)
	}
}
