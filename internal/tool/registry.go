package tool

import "sort"

// Tool describes one wrapped binary.
type Tool struct {
	// Name is the binary name.
	Name string

	// Package is the module path passed to go install (without @version).
	Package string

	// CheckArgs are the arguments of the health check. The check passes
	// when the binary exits with status 0.
	CheckArgs []string

	// Description is shown by the tools command.
	Description string

	// Optional tools are only used by the extended phase. They are never
	// installed automatically before a scan.
	Optional bool
}

// InstallTarget returns the go install argument.
func (t Tool) InstallTarget() string {
	return t.Package + "@latest"
}

var registry = []Tool{
	{
		Name:        "subfinder",
		Package:     "github.com/projectdiscovery/subfinder/v2/cmd/subfinder",
		CheckArgs:   []string{"-version"},
		Description: "Subdomain discovery tool",
	},
	{
		Name:        "amass",
		Package:     "github.com/owasp/amass/v4/cmd/amass",
		CheckArgs:   []string{"-version"},
		Description: "Subdomain enumeration tool",
	},
	{
		Name:        "httprobe",
		Package:     "github.com/tomnomnom/httprobe",
		CheckArgs:   []string{"-h"},
		Description: "HTTP/HTTPS probing tool",
	},
	{
		Name:        "nuclei",
		Package:     "github.com/projectdiscovery/nuclei/v3/cmd/nuclei",
		CheckArgs:   []string{"-version"},
		Description: "Vulnerability scanner",
	},
	{
		Name:        "katana",
		Package:     "github.com/projectdiscovery/katana/cmd/katana",
		CheckArgs:   []string{"-h"},
		Description: "Web crawler",
	},
	{
		Name:        "ffuf",
		Package:     "github.com/ffuf/ffuf/v2",
		CheckArgs:   []string{"-h"},
		Description: "Web fuzzer",
	},
	{
		Name:        "gau",
		Package:     "github.com/lc/gau/v2/cmd/gau",
		CheckArgs:   []string{"-h"},
		Description: "URL discovery tool",
	},
	{
		Name:        "assetfinder",
		Package:     "github.com/tomnomnom/assetfinder",
		CheckArgs:   []string{"--help"},
		Description: "Subdomain discovery tool from tomnomnom",
	},
	{
		Name:        "gospider",
		Package:     "github.com/jaeles-project/gospider",
		CheckArgs:   []string{"-h"},
		Description: "Fast web spider",
	},
	{
		Name:        "hakrawler",
		Package:     "github.com/hakluke/hakrawler",
		CheckArgs:   []string{"-h"},
		Description: "Simple web crawler",
		Optional:    true,
	},
	{
		Name:        "waybackurls",
		Package:     "github.com/tomnomnom/waybackurls",
		CheckArgs:   []string{"-h"},
		Description: "Wayback Machine URL fetcher",
		Optional:    true,
	},
}

// All returns every known tool, required ones first.
func All() []Tool {
	out := make([]Tool, len(registry))
	copy(out, registry)
	sort.SliceStable(out, func(i, j int) bool {
		return !out[i].Optional && out[j].Optional
	})
	return out
}

// Required returns the tools a scan cannot do without.
func Required() []Tool {
	out := make([]Tool, 0, len(registry))
	for _, t := range registry {
		if !t.Optional {
			out = append(out, t)
		}
	}
	return out
}

// Optional returns the tools only used by the extended phase.
func Optional() []Tool {
	out := make([]Tool, 0, len(registry))
	for _, t := range registry {
		if t.Optional {
			out = append(out, t)
		}
	}
	return out
}

// Get returns the tool with the given name.
func Get(name string) (Tool, bool) {
	for _, t := range registry {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}
