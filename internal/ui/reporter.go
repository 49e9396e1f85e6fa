package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/nao1215/dast/internal/model"
)

// Reporter receives progress events from the pipeline.
// Implementations must be safe for concurrent use.
type Reporter interface {
	// PhaseStarted is called before a phase runs.
	PhaseStarted(target, phase string)

	// PhaseUpdate reports progress inside a running phase,
	// for example the tool currently executing.
	PhaseUpdate(target, phase, message string)

	// PhaseFinished is called with the recorded phase result.
	PhaseFinished(target string, result model.PhaseResult)
}

var (
	successColor = color.New(color.FgGreen, color.Bold)
	failureColor = color.New(color.FgRed, color.Bold)
	skippedColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
)

// NopReporter discards all events.
type NopReporter struct{}

// PhaseStarted implements Reporter.
func (NopReporter) PhaseStarted(string, string) {}

// PhaseUpdate implements Reporter.
func (NopReporter) PhaseUpdate(string, string, string) {}

// PhaseFinished implements Reporter.
func (NopReporter) PhaseFinished(string, model.PhaseResult) {}

// LineReporter prints one line per event.
type LineReporter struct {
	mu  sync.Mutex
	out io.Writer

	// prefix adds the target to every line when several targets run at once.
	prefix bool
}

// NewLineReporter creates a LineReporter writing to out.
// When withTarget is true each line is prefixed with the target.
func NewLineReporter(out io.Writer, withTarget bool) *LineReporter {
	return &LineReporter{out: out, prefix: withTarget}
}

// PhaseStarted implements Reporter.
func (r *LineReporter) PhaseStarted(target, phase string) {
	r.printf(target, "%s %s...", infoColor.Sprint("→"), model.PhaseTitle(phase))
}

// PhaseUpdate implements Reporter.
func (r *LineReporter) PhaseUpdate(target, _ string, message string) {
	r.printf(target, "  %s", message)
}

// PhaseFinished implements Reporter.
func (r *LineReporter) PhaseFinished(target string, result model.PhaseResult) {
	r.printf(target, "%s", FormatResult(result))
}

func (r *LineReporter) printf(target, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	line := fmt.Sprintf(format, args...)
	if r.prefix {
		line = "[" + target + "] " + line
	}
	_, _ = fmt.Fprintln(r.out, line)
}

// FormatResult renders a finished phase as a single colored status line.
func FormatResult(result model.PhaseResult) string {
	title := model.PhaseTitle(result.Name)
	elapsed := result.Duration.Round(100 * time.Millisecond)
	switch result.Status {
	case model.PhaseSuccess:
		return fmt.Sprintf("%s %s: %d %s (%s)",
			successColor.Sprint("✓"), title, result.Count, itemWord(result.Count), elapsed)
	case model.PhaseFailed:
		msg := fmt.Sprintf("%s %s failed", failureColor.Sprint("✗"), title)
		if result.Error != "" {
			msg += ": " + firstLine(result.Error)
		}
		if result.Count > 0 {
			msg += fmt.Sprintf(" (%d %s kept)", result.Count, itemWord(result.Count))
		}
		return msg
	default:
		msg := fmt.Sprintf("%s %s skipped", skippedColor.Sprint("-"), title)
		if result.Error != "" {
			msg += ": " + result.Error
		}
		return msg
	}
}

func itemWord(n int) string {
	if n == 1 {
		return "item"
	}
	return "items"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
