package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nao1215/dast/internal/model"
	"github.com/schollz/progressbar/v3"
)

// spinnerInterval is the animation tick of the spinner.
const spinnerInterval = 120 * time.Millisecond

// spinnerType selects the progressbar spinner style (braille dots).
const spinnerType = 14

// SpinnerReporter animates the running phase with a spinner and prints a
// status line when the phase finishes. It shows one phase at a time and is
// meant for a single target.
type SpinnerReporter struct {
	mu   sync.Mutex
	out  io.Writer
	bar  *progressbar.ProgressBar
	stop chan struct{}
	done chan struct{}
}

// NewSpinnerReporter creates a SpinnerReporter writing to out.
func NewSpinnerReporter(out io.Writer) *SpinnerReporter {
	return &SpinnerReporter{out: out}
}

// PhaseStarted implements Reporter.
func (r *SpinnerReporter) PhaseStarted(_ string, phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked()
	r.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(r.out),
		progressbar.OptionSetDescription(model.PhaseTitle(phase)+"..."),
		progressbar.OptionSpinnerType(spinnerType),
		progressbar.OptionClearOnFinish(),
	)
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go tick(r.bar, r.stop, r.done)
}

// PhaseUpdate implements Reporter.
func (r *SpinnerReporter) PhaseUpdate(_ string, phase, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		r.bar.Describe(fmt.Sprintf("%s: %s", model.PhaseTitle(phase), message))
	}
}

// PhaseFinished implements Reporter.
func (r *SpinnerReporter) PhaseFinished(_ string, result model.PhaseResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	_, _ = fmt.Fprintln(r.out, FormatResult(result))
}

// Close stops a running spinner. It is safe to call more than once.
func (r *SpinnerReporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *SpinnerReporter) stopLocked() {
	if r.bar == nil {
		return
	}
	close(r.stop)
	<-r.done
	_ = r.bar.Finish()
	_ = r.bar.Clear()
	r.bar = nil
}

func tick(bar *progressbar.ProgressBar, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			_ = bar.Add(1)
		}
	}
}
