package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/dast/internal/executor"
	"github.com/nao1215/dast/internal/tool"
)

// installRunner passes every health check and "installs" tools by
// creating their binary in dir.
type installRunner struct {
	dir string
}

func (r *installRunner) Run(_ context.Context, cmd executor.Command) (*executor.Result, error) {
	if filepath.Base(cmd.Name) != "go" || len(cmd.Args) < 2 || cmd.Args[0] != "install" {
		return &executor.Result{}, nil
	}
	for _, tl := range tool.All() {
		if tl.InstallTarget() == cmd.Args[1] {
			return &executor.Result{}, os.WriteFile(filepath.Join(r.dir, tl.Name), []byte("#!/bin/sh\n"), 0o700) //nolint:gosec // test executable
		}
	}
	return nil, errors.New("unknown package " + cmd.Args[1])
}

func installTools(t *testing.T, dir string, tools []tool.Tool) {
	t.Helper()
	for _, tl := range tools {
		if err := os.WriteFile(filepath.Join(dir, tl.Name), []byte("#!/bin/sh\n"), 0o700); err != nil { //nolint:gosec // test executable
			t.Fatal(err)
		}
	}
}

// TestNewToolsCmd tests the tools command creation.
func TestNewToolsCmd(t *testing.T) {
	t.Parallel()

	cmd := NewToolsCmd()
	if cmd.Use != "tools" {
		t.Errorf("expected use 'tools', got %q", cmd.Use)
	}
	flag := cmd.Flags().Lookup("install")
	if flag == nil {
		t.Fatal("expected install flag")
	}
	if flag.Shorthand != "i" || flag.DefValue != "false" {
		t.Errorf("unexpected install flag %q %q", flag.Shorthand, flag.DefValue)
	}
}

// TestRunTools tests the tool status table and installation.
func TestRunTools(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("all tools available", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		installTools(t, dir, tool.All())
		manager := tool.NewManager(&installRunner{dir: dir}, tool.WithSearchPath(dir), tool.WithLogger(quietLogger()))

		var buf bytes.Buffer
		if err := runTools(ctx, &buf, manager, false, quietLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		for _, tl := range tool.All() {
			if !strings.Contains(out, tl.Name) {
				t.Errorf("expected %s in output", tl.Name)
			}
		}
		if strings.Contains(out, "--install") {
			t.Error("expected no install hint")
		}
	})

	t.Run("only optional tools missing", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		installTools(t, dir, tool.Required())
		manager := tool.NewManager(&installRunner{dir: dir}, tool.WithSearchPath(dir), tool.WithLogger(quietLogger()))

		var buf bytes.Buffer
		if err := runTools(ctx, &buf, manager, false, quietLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "hakrawler*") {
			t.Errorf("expected optional marker, got %q", out)
		}
		if !strings.Contains(out, "go install github.com/hakluke/hakrawler") {
			t.Errorf("expected install hint for hakrawler, got %q", out)
		}
	})

	t.Run("required tool missing", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		manager := tool.NewManager(&installRunner{dir: dir}, tool.WithSearchPath(dir), tool.WithLogger(quietLogger()))

		var buf bytes.Buffer
		err := runTools(ctx, &buf, manager, false, quietLogger())
		var ee *exitError
		if !errors.As(err, &ee) || ee.code != exitFailure {
			t.Fatalf("expected exit code %d, got %v", exitFailure, err)
		}
		if !strings.Contains(buf.String(), "dast tools --install") {
			t.Errorf("expected install hint, got %q", buf.String())
		}
	})

	t.Run("installs missing tools", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		installTools(t, dir, []tool.Tool{{Name: "go"}})
		manager := tool.NewManager(&installRunner{dir: dir},
			tool.WithSearchPath(dir),
			tool.WithGOPATH(t.TempDir()),
			tool.WithLogger(quietLogger()),
		)

		var buf bytes.Buffer
		if err := runTools(ctx, &buf, manager, true, quietLogger()); err != nil {
			t.Fatalf("unexpected error: %v\n%s", err, buf.String())
		}
		for _, tl := range tool.All() {
			if _, err := os.Stat(filepath.Join(dir, tl.Name)); err != nil {
				t.Errorf("expected %s to be installed", tl.Name)
			}
		}
	})

	t.Run("install without go", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		manager := tool.NewManager(&installRunner{dir: dir}, tool.WithSearchPath(dir), tool.WithLogger(quietLogger()))

		err := runTools(ctx, &bytes.Buffer{}, manager, true, quietLogger())
		if !errors.Is(err, tool.ErrGoNotFound) {
			t.Errorf("expected ErrGoNotFound, got %v", err)
		}
	})
}

// TestFirstLine tests first line extraction.
func TestFirstLine(t *testing.T) {
	t.Parallel()

	if got := firstLine("a\nb"); got != "a" {
		t.Errorf("firstLine() = %q", got)
	}
	if got := firstLine("single"); got != "single" {
		t.Errorf("firstLine() = %q", got)
	}
	if got := errString(nil); got != "check failed" {
		t.Errorf("errString(nil) = %q", got)
	}
}
