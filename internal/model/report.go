package model

import (
	"time"

	"github.com/rs/xid"
)

// ScanReport is the main scan result structure.
// One ScanReport is created per target and mutated by each pipeline step.
// Its JSON form is the report file written at the end of a scan.
type ScanReport struct {
	// Info describes the scan itself.
	Info ScanInfo `json:"scan_info"`

	// Results holds everything the wrapped tools found.
	Results Results `json:"results"`

	// Phases records the outcome of each phase in execution order.
	Phases []PhaseResult `json:"phases"`

	// Interrupted is true if the scan was cancelled before all phases ran.
	Interrupted bool `json:"interrupted"`

	// Error contains the error that stopped the scan, if any.
	Error error `json:"-"`

	// ErrorMessage is the string representation of Error for serialization.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// ScanInfo contains metadata about a scan.
type ScanInfo struct {
	// ID uniquely identifies the scan across the history database.
	ID string `json:"id"`

	// Target is the normalized target domain.
	Target string `json:"target"`

	// Timestamp is when the scan started.
	Timestamp time.Time `json:"timestamp"`

	// FinishedAt is when the scan finished. Zero while running.
	FinishedAt time.Time `json:"finished,omitempty"`

	// Threads is the thread count passed to the tools.
	Threads int `json:"threads"`

	// Timeout is the per-command timeout in seconds.
	Timeout int64 `json:"timeout"`

	// OutputDir is the artifact root directory.
	OutputDir string `json:"output_dir,omitempty"`

	// Wordlist is the fuzzing wordlist that was used.
	Wordlist string `json:"wordlist,omitempty"`
}

// Results aggregates the artifacts of all phases.
// Slices are never nil so that the JSON report always contains arrays.
type Results struct {
	Subdomains      []string        `json:"subdomains"`
	LiveHosts       []string        `json:"live_hosts"`
	URLs            []string        `json:"urls"`
	ExtendedURLs    []string        `json:"extended_urls"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
}

// Outcome summarizes a finished scan.
type Outcome string

const (
	// OutcomeComplete means every phase that ran succeeded.
	OutcomeComplete Outcome = "complete"

	// OutcomePartial means some but not all phases succeeded.
	// A partial scan still counts as a successful run.
	OutcomePartial Outcome = "partial"

	// OutcomeFailed means no phase succeeded.
	OutcomeFailed Outcome = "failed"
)

// NewScanReport creates a new report for the given target.
func NewScanReport(target string) *ScanReport {
	return &ScanReport{
		Info: ScanInfo{
			ID:        xid.New().String(),
			Target:    target,
			Timestamp: time.Now(),
		},
		Results: Results{
			Subdomains:      []string{},
			LiveHosts:       []string{},
			URLs:            []string{},
			ExtendedURLs:    []string{},
			Vulnerabilities: []Vulnerability{},
		},
		Phases: make([]PhaseResult, 0, 6),
	}
}

// RecordPhase appends a phase result. A phase recorded twice replaces the
// earlier entry.
func (r *ScanReport) RecordPhase(result PhaseResult) {
	for i := range r.Phases {
		if r.Phases[i].Name == result.Name {
			r.Phases[i] = result
			return
		}
	}
	r.Phases = append(r.Phases, result)
}

// Phase returns the recorded result of the named phase.
func (r *ScanReport) Phase(name string) (PhaseResult, bool) {
	for _, p := range r.Phases {
		if p.Name == name {
			return p, true
		}
	}
	return PhaseResult{}, false
}

// Outcome computes the overall result from the recorded phases.
// Skipped phases are ignored.
func (r *ScanReport) Outcome() Outcome {
	ran, succeeded := 0, 0
	for _, p := range r.Phases {
		switch p.Status {
		case PhaseSuccess:
			ran++
			succeeded++
		case PhaseFailed:
			ran++
		case PhaseSkipped:
		}
	}
	switch {
	case ran > 0 && succeeded == ran:
		return OutcomeComplete
	case succeeded > 0:
		return OutcomePartial
	default:
		return OutcomeFailed
	}
}

// SeverityCounts returns the number of vulnerabilities per severity.
func (r *ScanReport) SeverityCounts() SeverityCounts {
	return CountBySeverity(r.Results.Vulnerabilities)
}

// Finish stamps the finish time and copies Error into ErrorMessage.
func (r *ScanReport) Finish(err error) {
	r.Info.FinishedAt = time.Now()
	if err != nil {
		r.Error = err
		r.ErrorMessage = err.Error()
	}
}

// Elapsed returns the scan duration. For a running scan it is the time
// since the scan started.
func (r *ScanReport) Elapsed() time.Duration {
	if r.Info.FinishedAt.IsZero() {
		return time.Since(r.Info.Timestamp)
	}
	return r.Info.FinishedAt.Sub(r.Info.Timestamp)
}
