package model

import (
	"sort"
	"time"
)

// Risk directions of a Diff.
const (
	RiskWorsened  = "worsened"
	RiskImproved  = "improved"
	RiskUnchanged = "unchanged"
)

// Diff describes what changed between two scans of the same target.
type Diff struct {
	// Target is the compared target domain.
	Target string `json:"target"`

	PreviousScan ScanSummary `json:"previous_scan"`
	CurrentScan  ScanSummary `json:"current_scan"`

	NewSubdomains     []string `json:"new_subdomains"`
	RemovedSubdomains []string `json:"removed_subdomains"`
	NewLiveHosts      []string `json:"new_live_hosts"`
	RemovedLiveHosts  []string `json:"removed_live_hosts"`
	NewURLs           []string `json:"new_urls"`
	RemovedURLs       []string `json:"removed_urls"`

	// NewVulnerabilities are findings present only in the current scan.
	NewVulnerabilities []Vulnerability `json:"new_vulnerabilities"`

	// ResolvedVulnerabilities are findings present only in the previous scan.
	ResolvedVulnerabilities []Vulnerability `json:"resolved_vulnerabilities"`

	// UnchangedVulnerabilities is the number of findings present in both.
	UnchangedVulnerabilities int `json:"unchanged_vulnerabilities"`

	RiskChange RiskChange `json:"risk_change"`
}

// ScanSummary is the part of a scan shown in a comparison header.
type ScanSummary struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Counts    SeverityCounts `json:"counts"`
}

// RiskChange describes the change in risk level between scans.
type RiskChange struct {
	// Direction is "improved", "worsened", or "unchanged".
	Direction string `json:"direction"`

	CriticalDelta int `json:"critical_delta"`
	HighDelta     int `json:"high_delta"`
	MediumDelta   int `json:"medium_delta"`
	LowDelta      int `json:"low_delta"`
	InfoDelta     int `json:"info_delta"`
}

// Compare diffs two scan reports. previous is the older scan.
func Compare(previous, current *ScanReport) *Diff {
	d := &Diff{
		Target:       current.Info.Target,
		PreviousScan: summarize(previous),
		CurrentScan:  summarize(current),
	}

	d.NewSubdomains, d.RemovedSubdomains = diffStrings(previous.Results.Subdomains, current.Results.Subdomains)
	d.NewLiveHosts, d.RemovedLiveHosts = diffStrings(previous.Results.LiveHosts, current.Results.LiveHosts)
	d.NewURLs, d.RemovedURLs = diffStrings(previous.Results.URLs, current.Results.URLs)

	prevVulns := make(map[string]Vulnerability, len(previous.Results.Vulnerabilities))
	for _, v := range previous.Results.Vulnerabilities {
		prevVulns[v.Key()] = v
	}
	curVulns := make(map[string]Vulnerability, len(current.Results.Vulnerabilities))
	for _, v := range current.Results.Vulnerabilities {
		curVulns[v.Key()] = v
	}

	d.NewVulnerabilities = []Vulnerability{}
	for key, v := range curVulns {
		if _, ok := prevVulns[key]; !ok {
			d.NewVulnerabilities = append(d.NewVulnerabilities, v)
		}
	}
	d.ResolvedVulnerabilities = []Vulnerability{}
	for key, v := range prevVulns {
		if _, ok := curVulns[key]; ok {
			d.UnchangedVulnerabilities++
			continue
		}
		d.ResolvedVulnerabilities = append(d.ResolvedVulnerabilities, v)
	}
	sortVulnerabilities(d.NewVulnerabilities)
	sortVulnerabilities(d.ResolvedVulnerabilities)

	d.RiskChange = calculateRiskChange(d.PreviousScan.Counts, d.CurrentScan.Counts)
	return d
}

// Empty reports whether nothing changed between the two scans.
func (d *Diff) Empty() bool {
	return len(d.NewSubdomains) == 0 && len(d.RemovedSubdomains) == 0 &&
		len(d.NewLiveHosts) == 0 && len(d.RemovedLiveHosts) == 0 &&
		len(d.NewURLs) == 0 && len(d.RemovedURLs) == 0 &&
		len(d.NewVulnerabilities) == 0 && len(d.ResolvedVulnerabilities) == 0
}

func summarize(r *ScanReport) ScanSummary {
	return ScanSummary{
		ID:        r.Info.ID,
		Timestamp: r.Info.Timestamp,
		Counts:    r.SeverityCounts(),
	}
}

// diffStrings returns the sorted elements only in cur (added) and only in
// prev (removed).
func diffStrings(prev, cur []string) (added, removed []string) {
	prevSet := make(map[string]struct{}, len(prev))
	for _, s := range prev {
		prevSet[s] = struct{}{}
	}
	curSet := make(map[string]struct{}, len(cur))
	for _, s := range cur {
		curSet[s] = struct{}{}
	}

	added, removed = []string{}, []string{}
	for s := range curSet {
		if _, ok := prevSet[s]; !ok {
			added = append(added, s)
		}
	}
	for s := range prevSet {
		if _, ok := curSet[s]; !ok {
			removed = append(removed, s)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

// sortVulnerabilities orders by severity (most severe first), then key.
func sortVulnerabilities(vulns []Vulnerability) {
	sort.Slice(vulns, func(i, j int) bool {
		if vulns[i].Severity != vulns[j].Severity {
			return vulns[i].Severity > vulns[j].Severity
		}
		return vulns[i].Key() < vulns[j].Key()
	})
}

// calculateRiskChange weighs critical and high findings more heavily.
func calculateRiskChange(previous, current SeverityCounts) RiskChange {
	change := RiskChange{
		CriticalDelta: current.Critical - previous.Critical,
		HighDelta:     current.High - previous.High,
		MediumDelta:   current.Medium - previous.Medium,
		LowDelta:      current.Low - previous.Low,
		InfoDelta:     current.Info - previous.Info,
	}

	previousScore := riskScore(previous)
	currentScore := riskScore(current)
	switch {
	case currentScore < previousScore:
		change.Direction = RiskImproved
	case currentScore > previousScore:
		change.Direction = RiskWorsened
	default:
		change.Direction = RiskUnchanged
	}
	return change
}

func riskScore(c SeverityCounts) int {
	return c.Critical*100 + c.High*50 + c.Medium*10 + c.Low*5 + c.Info
}
