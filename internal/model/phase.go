package model

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Phase names, in pipeline order.
const (
	PhaseWordlistDownload      = "wordlist_download"
	PhaseSubdomainDiscovery    = "subdomain_discovery"
	PhaseHTTPProbing           = "http_probing"
	PhaseWebContentDiscovery   = "web_content_discovery"
	PhaseExtendedScan          = "extended_scan"
	PhaseVulnerabilityScanning = "vulnerability_scanning"
)

// PhaseNames returns the phase names in pipeline order.
func PhaseNames() []string {
	return []string{
		PhaseWordlistDownload,
		PhaseSubdomainDiscovery,
		PhaseHTTPProbing,
		PhaseWebContentDiscovery,
		PhaseExtendedScan,
		PhaseVulnerabilityScanning,
	}
}

// PhaseTitle turns a phase name into a display title,
// e.g. "http_probing" into "Http Probing".
func PhaseTitle(name string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(name, "_", " "))
}

// PhaseStatus is the outcome of a single phase.
type PhaseStatus string

const (
	// PhaseSuccess means the phase produced its artifact.
	PhaseSuccess PhaseStatus = "success"

	// PhaseFailed means the phase failed. Later phases still run.
	PhaseFailed PhaseStatus = "failed"

	// PhaseSkipped means the phase did not run, because it was disabled or
	// the scan was interrupted before reaching it.
	PhaseSkipped PhaseStatus = "skipped"
)

// PhaseResult records what happened in one phase of a scan.
type PhaseResult struct {
	Name      string        `json:"name"`
	Status    PhaseStatus   `json:"status"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started"`
	Duration  time.Duration `json:"duration"`

	// Artifact is the file the phase wrote, if any.
	Artifact string `json:"artifact,omitempty"`

	// Count is the number of items (subdomains, hosts, URLs, findings) the
	// phase produced.
	Count int `json:"count"`
}

// Succeeded reports whether the phase finished successfully.
func (p PhaseResult) Succeeded() bool {
	return p.Status == PhaseSuccess
}
