package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nao1215/dast/internal/executor"
	"github.com/nao1215/dast/internal/log"
	"github.com/nao1215/dast/internal/tool"
	"github.com/spf13/cobra"
)

// NewToolsCmd creates the tools command.
func NewToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Check the external tools used by the scan",
		Long: `Tools lists every external tool dast runs and whether it is installed
and working. Tools are looked up in PATH and in the usual Go binary
directories (~/.go/bin, ~/go/bin, /usr/local/go/bin).

With --install, missing or broken tools are installed with "go install".
This requires Go. hakrawler and waybackurls are optional: a scan never
installs them on its own, but --install does.

Examples:
  # Show tool status
  dast tools

  # Install everything that is missing
  dast tools --install`,
		Args: cobra.NoArgs,
		RunE: runToolsCmd,
	}

	cmd.Flags().BoolP("install", "i", false,
		"Install missing or broken tools with go install")

	return cmd
}

// runToolsCmd executes the tools command.
func runToolsCmd(cmd *cobra.Command, _ []string) error {
	install, err := cmd.Flags().GetBool("install")
	if err != nil {
		return err
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd))
	runner := executor.New(executor.WithLogger(logger))
	manager := tool.NewManager(runner, tool.WithLogger(logger))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runTools(ctx, cmd.OutOrStdout(), manager, install, logger)
}

// runTools prints the status of every tool, installing first when asked.
func runTools(ctx context.Context, out io.Writer, manager *tool.Manager, install bool, logger *slog.Logger) error {
	tools := tool.All()

	var statuses []tool.Status
	if install {
		fmt.Fprintln(out, "Installing missing tools (this may take several minutes)...")
		var err error
		statuses, err = manager.Ensure(ctx, tools, true)
		if err != nil {
			return fmt.Errorf("failed to install tools: %w", err)
		}
		fmt.Fprintln(out)
	} else {
		statuses = manager.Check(ctx, tools)
	}

	printToolStatuses(out, statuses)

	if err := tool.StatusErrors(statuses); err != nil {
		logger.Debug("broken tools", "error", err)
	}

	unavailable := tool.Unavailable(statuses)
	if len(unavailable) > 0 && !install {
		fmt.Fprintln(out, "\nUse 'dast tools --install' to install missing tools.")
	}
	for _, s := range unavailable {
		if !s.Tool.Optional {
			return &exitError{code: exitFailure}
		}
	}
	return nil
}

// printToolStatuses prints one line per tool.
func printToolStatuses(out io.Writer, statuses []tool.Status) {
	fmt.Fprintf(out, "  %-12s  %-10s  %s\n", "Tool", "Status", "Location")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 60))

	for _, s := range statuses {
		name := s.Tool.Name
		if s.Tool.Optional {
			name += "*"
		}

		location := s.Path
		switch s.State {
		case tool.StateMissing:
			location = "go install " + s.Tool.InstallTarget()
		case tool.StateBroken:
			location = s.Path + " (" + firstLine(errString(s.Err)) + ")"
		case tool.StateAvailable:
		}

		fmt.Fprintf(out, "  %-12s  %s  %s\n", name, stateLabel(s.State), location)
	}
	fmt.Fprintln(out, "\n  * optional, used by the extended scan phase")
}

// stateLabel returns the colored, padded state of a tool.
func stateLabel(state tool.State) string {
	label := fmt.Sprintf("%-10s", state)
	switch state {
	case tool.StateAvailable:
		return okColor.Sprint(label)
	case tool.StateBroken:
		return errColor.Sprint(label)
	default:
		return warnColor.Sprint(label)
	}
}

func errString(err error) string {
	if err == nil {
		return "check failed"
	}
	return err.Error()
}

// firstLine returns the first line of s.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
