package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Subdirectory names under the output root.
const (
	SubdomainsDir    = "Subdomains"
	WebAppContentDir = "WebAppContent"
	VulnsDir         = "Vulns"
	ReportsDir       = "Reports"
)

// reportTimeFormat is the timestamp layout used in report file names.
const reportTimeFormat = "20060102_150405"

// Workspace resolves artifact paths for one target.
type Workspace struct {
	root   string
	target string
}

// New returns the workspace of target under root.
func New(root, target string) *Workspace {
	return &Workspace{root: root, target: target}
}

// Root returns the output root directory.
func (w *Workspace) Root() string {
	return w.root
}

// Target returns the target the workspace belongs to.
func (w *Workspace) Target() string {
	return w.target
}

// Create makes the output root and its subdirectories.
func (w *Workspace) Create() error {
	for _, dir := range []string{SubdomainsDir, VulnsDir, WebAppContentDir, ReportsDir} {
		path := filepath.Join(w.root, dir)
		if err := os.MkdirAll(path, 0o750); err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
	}
	return nil
}

// SubdomainsFile is the deduplicated subdomain list.
func (w *Workspace) SubdomainsFile() string {
	return w.file(SubdomainsDir, ".subs")
}

// ProbeFile is the list of live http(s) hosts.
func (w *Workspace) ProbeFile() string {
	return w.file(SubdomainsDir, ".httpprobe")
}

// ContentFile is the raw output of a content discovery tool, for example
// ContentFile("katana") or ContentFile("wayback").
func (w *Workspace) ContentFile(tool string) string {
	return w.file(WebAppContentDir, "."+tool)
}

// URLsFile is the merged output of the content discovery phase.
func (w *Workspace) URLsFile() string {
	return w.file(WebAppContentDir, ".urls")
}

// ExtendedURLsFile is the merged output of the extended phase.
func (w *Workspace) ExtendedURLsFile() string {
	return w.file(WebAppContentDir, ".extended_urls")
}

// NucleiFile is the nuclei JSONL export.
func (w *Workspace) NucleiFile() string {
	return w.file(VulnsDir, ".nuclei.json")
}

// ReportFile is the JSON report written for a scan started at t.
func (w *Workspace) ReportFile(t time.Time) string {
	name := fmt.Sprintf("%s_report_%s.json", w.target, t.Format(reportTimeFormat))
	return filepath.Join(w.root, ReportsDir, name)
}

func (w *Workspace) file(dir, ext string) string {
	return filepath.Join(w.root, dir, w.target+ext)
}
