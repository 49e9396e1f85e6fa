package model

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// maxExportLine bounds a single JSONL line of a nuclei export. Results that
// embed full requests and responses can be several megabytes long.
const maxExportLine = 32 * 1024 * 1024

// Vulnerability is a single nuclei result.
type Vulnerability struct {
	// TemplateID is the nuclei template that matched.
	TemplateID string `json:"template_id"`

	// Name is the human-readable template name.
	Name string `json:"name"`

	// Severity is the template severity.
	Severity Severity `json:"severity"`

	// Type is the protocol of the template (http, dns, ssl, ...).
	Type string `json:"type,omitempty"`

	// Host is the scanned input.
	Host string `json:"host,omitempty"`

	// MatchedAt is the exact location that matched.
	MatchedAt string `json:"matched_at,omitempty"`

	// MatcherName distinguishes multiple matchers of one template.
	MatcherName string `json:"matcher_name,omitempty"`

	Description      string    `json:"description,omitempty"`
	Tags             []string  `json:"tags,omitempty"`
	References       []string  `json:"references,omitempty"`
	ExtractedResults []string  `json:"extracted_results,omitempty"`
	IP               string    `json:"ip,omitempty"`
	Timestamp        time.Time `json:"timestamp,omitempty"`
}

// Key identifies a finding across scans.
func (v Vulnerability) Key() string {
	location := v.MatchedAt
	if location == "" {
		location = v.Host
	}
	return v.TemplateID + "|" + v.MatcherName + "|" + location
}

// nucleiResult is the subset of the nuclei JSON result event that dast keeps.
type nucleiResult struct {
	TemplateID string `json:"template-id"`
	Info       struct {
		Name        string     `json:"name"`
		Severity    Severity   `json:"severity"`
		Description string     `json:"description"`
		Tags        stringList `json:"tags"`
		Reference   stringList `json:"reference"`
	} `json:"info"`
	Type             string     `json:"type"`
	Host             string     `json:"host"`
	MatchedAt        string     `json:"matched-at"`
	MatcherName      string     `json:"matcher-name"`
	ExtractedResults stringList `json:"extracted-results"`
	IP               string     `json:"ip"`
	Timestamp        time.Time  `json:"timestamp"`
}

func (r nucleiResult) vulnerability() Vulnerability {
	return Vulnerability{
		TemplateID:       r.TemplateID,
		Name:             r.Info.Name,
		Severity:         r.Info.Severity,
		Type:             r.Type,
		Host:             r.Host,
		MatchedAt:        r.MatchedAt,
		MatcherName:      r.MatcherName,
		Description:      r.Info.Description,
		Tags:             r.Info.Tags,
		References:       r.Info.Reference,
		ExtractedResults: r.ExtractedResults,
		IP:               r.IP,
		Timestamp:        r.Timestamp,
	}
}

// stringList decodes either a JSON array of strings, a single
// comma-free string, or null.
type stringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *stringList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*l = many
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	if one == "" {
		*l = nil
		return nil
	}
	*l = []string{one}
	return nil
}

// ParseNucleiExport reads a nuclei export. Both the JSONL format
// (-jsonl-export, one result per line) and the JSON array format
// (-json-export) are accepted. Lines that are not valid JSON results are
// skipped and counted; the count is returned alongside the results.
func ParseNucleiExport(r io.Reader) ([]Vulnerability, int, error) {
	br := bufio.NewReader(r)

	// Peek past leading whitespace to detect the array format.
	for {
		b, err := br.Peek(1)
		if err == io.EOF {
			return []Vulnerability{}, 0, nil
		}
		if err != nil {
			return nil, 0, err
		}
		if b[0] == ' ' || b[0] == '\n' || b[0] == '\r' || b[0] == '\t' {
			if _, err := br.ReadByte(); err != nil {
				return nil, 0, err
			}
			continue
		}
		if b[0] == '[' {
			return parseNucleiArray(br)
		}
		break
	}

	vulns := make([]Vulnerability, 0)
	skipped := 0
	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 64*1024), maxExportLine)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var result nucleiResult
		if err := json.Unmarshal(line, &result); err != nil || result.TemplateID == "" {
			skipped++
			continue
		}
		vulns = append(vulns, result.vulnerability())
	}
	if err := scanner.Err(); err != nil {
		return vulns, skipped, fmt.Errorf("failed to read nuclei export: %w", err)
	}
	return vulns, skipped, nil
}

func parseNucleiArray(r io.Reader) ([]Vulnerability, int, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, 0, fmt.Errorf("failed to decode nuclei export: %w", err)
	}

	vulns := make([]Vulnerability, 0, len(raw))
	skipped := 0
	for _, item := range raw {
		var result nucleiResult
		if err := json.Unmarshal(item, &result); err != nil || result.TemplateID == "" {
			skipped++
			continue
		}
		vulns = append(vulns, result.vulnerability())
	}
	return vulns, skipped, nil
}
