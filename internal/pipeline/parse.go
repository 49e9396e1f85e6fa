package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/nao1215/dast/internal/config"
)

// normalizeHost turns one line of subdomain tool output into a bare host.
// Only the first field is kept, since amass annotates names with their
// source.
func normalizeHost(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	host := strings.ToLower(fields[0])
	host = strings.TrimSuffix(host, ".")
	host = strings.TrimPrefix(host, "*.")
	return host
}

// scopeHosts normalizes lines and keeps the target and its subdomains.
func scopeHosts(lines []string, target string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if host := normalizeHost(line); host != "" && config.InScope(host, target) {
			out = append(out, host)
		}
	}
	return out
}

// isURL reports whether s is an absolute http(s) URL.
func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// urlLines keeps the lines that are URLs.
func urlLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if isURL(line) {
			out = append(out, line)
		}
	}
	return out
}

// urlTokens returns every whitespace separated token that is a URL.
// dirsearch reports "STATUS SIZE URL" lines.
func urlTokens(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		for _, tok := range strings.Fields(line) {
			if isURL(tok) {
				out = append(out, tok)
			}
		}
	}
	return out
}

// gospiderURLs extracts the URL of "[tag] - URL" lines. Lines with a
// status code, like "[url] - [code-200] - URL", keep the last field.
func gospiderURLs(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if !strings.HasPrefix(line, "[") {
			continue
		}
		parts := strings.Split(line, " - ")
		if len(parts) < 2 {
			continue
		}
		if u := strings.TrimSpace(parts[len(parts)-1]); isURL(u) {
			out = append(out, u)
		}
	}
	return out
}

// ffufOutput is the subset of ffuf's -of json output we read.
type ffufOutput struct {
	Results []struct {
		URL string `json:"url"`
	} `json:"results"`
}

// parseFFUF returns the result URLs of an ffuf JSON report.
func parseFFUF(r io.Reader) ([]string, error) {
	var out ffufOutput
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		if err == io.EOF { //nolint:errorlint // Decode returns io.EOF unwrapped
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to parse ffuf output: %w", err)
	}
	urls := make([]string, 0, len(out.Results))
	for _, res := range out.Results {
		if res.URL != "" {
			urls = append(urls, res.URL)
		}
	}
	return urls, nil
}

// hostNames returns the distinct host names of probe URLs, in order.
// gau takes domains, not URLs.
func hostNames(probes []string) []string {
	seen := make(map[string]bool, len(probes))
	out := make([]string, 0, len(probes))
	for _, p := range probes {
		host := p
		if u, err := url.Parse(p); err == nil && u.Host != "" {
			host = u.Host
		}
		if !seen[host] {
			seen[host] = true
			out = append(out, host)
		}
	}
	return out
}

// limitHosts returns the first n hosts. n <= 0 means no limit.
func limitHosts(hosts []string, n int) []string {
	if n <= 0 || len(hosts) <= n {
		return hosts
	}
	return hosts[:n]
}
