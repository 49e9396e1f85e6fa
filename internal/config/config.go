package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/dast/internal/model"
)

// Default configuration values.
const (
	// DefaultThreads is passed to the wrapped tools that accept a concurrency
	// flag (httprobe -c, gau --threads) and bounds per-host fan-out.
	DefaultThreads = 10

	// DefaultTimeout is the per-command timeout. Crawlers and nuclei
	// routinely run for many minutes against a medium-sized scope.
	DefaultTimeout = 20 * time.Minute

	// DefaultAmassMinTimeout is the lower bound for the amass timeout.
	// amass enum rarely finishes in under two minutes.
	DefaultAmassMinTimeout = 2 * time.Minute

	// DefaultOutputDir is the directory that receives every artifact.
	DefaultOutputDir = "Targets"

	// DefaultNucleiTemplates is the nuclei templates directory.
	DefaultNucleiTemplates = "~/nuclei-templates/"

	// DefaultWordlistURL is the fuzzing wordlist downloaded when no local
	// wordlist is configured.
	DefaultWordlistURL = "https://raw.githubusercontent.com/danielmiessler/SecLists/master/Discovery/Web-Content/common.txt"

	// FallbackWordlistPath is used when the wordlist download fails.
	FallbackWordlistPath = "/usr/share/wordlists/dirb/common.txt"

	// DefaultHostLimit is the number of live hosts visited by tools that
	// are invoked once per host (gau, gospider).
	DefaultHostLimit = 10

	// DefaultBatchSize scans targets one at a time.
	DefaultBatchSize = 1

	// DefaultDirsearchPath is where dirsearch is expected to be checked out.
	DefaultDirsearchPath = "/tmp/dirsearch/dirsearch.py"

	// AppName is the application name used for XDG directory paths.
	AppName = "dast"
)

// DefaultNucleiSeverity returns the nuclei severities scanned by default.
func DefaultNucleiSeverity() []string {
	return []string{"info", "low", "medium", "high", "critical"}
}

// Config holds all configuration options for a dast run.
// It is populated from defaults, then the YAML configuration file, then
// explicitly set CLI flags, and passed down to the pipeline.
type Config struct {
	// Targets is the list of domains to scan.
	Targets []string

	// Threads is passed through to tools supporting concurrency and bounds
	// the number of concurrent per-host invocations.
	Threads int

	// Timeout is the timeout of a single external command.
	Timeout time.Duration

	// AmassMinTimeout is the minimum timeout used for amass.
	AmassMinTimeout time.Duration

	// OutputDir is the root of the artifact directory layout.
	OutputDir string

	// NucleiTemplates is the nuclei templates path. A leading "~" is expanded.
	NucleiTemplates string

	// NucleiSeverity lists the severities passed to nuclei -severity.
	NucleiSeverity []string

	// WordlistURL is downloaded when WordlistPath is empty.
	WordlistURL string

	// WordlistPath is a local fuzzing wordlist. When set, no download happens.
	WordlistPath string

	// HostLimit caps how many live hosts per-host tools visit.
	// Zero means no cap.
	HostLimit int

	// HostRate paces per-host invocations (invocations per second).
	// Zero disables pacing.
	HostRate float64

	// Extended enables the extended discovery phase
	// (hakrawler, waybackurls, dirsearch).
	Extended bool

	// DirsearchPath is the dirsearch.py script run by the extended phase.
	DirsearchPath string

	// AutoInstall installs missing or broken tools with go install.
	AutoInstall bool

	// BatchSize is the number of targets scanned concurrently.
	BatchSize int

	// ConfigFilePath is the path to the configuration file.
	// If empty, the default locations are searched.
	ConfigFilePath string

	// Sites holds per-target overrides loaded from the configuration file.
	Sites map[string]SiteConfig

	// JSONReport prints the report as JSON instead of the text summary.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport prints the report as Markdown instead of the text summary.
	MarkdownReport bool

	// ReportFile redirects the printed report to a file.
	ReportFile string

	// SaveToDB records finished scans in the history database.
	SaveToDB bool

	// DBDir is the directory that holds the history database.
	DBDir string

	// Verbose enables debug logging.
	Verbose bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Threads:         DefaultThreads,
		Timeout:         DefaultTimeout,
		AmassMinTimeout: DefaultAmassMinTimeout,
		OutputDir:       DefaultOutputDir,
		NucleiTemplates: DefaultNucleiTemplates,
		NucleiSeverity:  DefaultNucleiSeverity(),
		WordlistURL:     DefaultWordlistURL,
		HostLimit:       DefaultHostLimit,
		Extended:        true,
		DirsearchPath:   DefaultDirsearchPath,
		AutoInstall:     true,
		BatchSize:       DefaultBatchSize,
		Sites:           make(map[string]SiteConfig),
		SaveToDB:        true,
		DBDir:           XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for dast.
// On Linux: ~/.local/share/dast
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for dast.
// On Linux: ~/.config/dast
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for dast.
// Downloaded wordlists are kept here.
// On Linux: ~/.cache/dast
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// ApplyFile overlays the non-zero values of a configuration file onto c.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	if f.Target != "" {
		c.Targets = []string{f.Target}
	}
	if len(f.Targets) > 0 {
		c.Targets = append([]string(nil), f.Targets...)
	}
	if f.Threads != 0 {
		c.Threads = f.Threads
	}
	if f.Timeout != 0 {
		c.Timeout = time.Duration(f.Timeout)
	}
	if f.OutputDir != "" {
		c.OutputDir = f.OutputDir
	}
	if f.NucleiTemplates != "" {
		c.NucleiTemplates = f.NucleiTemplates
	}
	if len(f.NucleiSeverity) > 0 {
		c.NucleiSeverity = append([]string(nil), f.NucleiSeverity...)
	}
	if f.WordlistURL != "" {
		c.WordlistURL = f.WordlistURL
	}
	if f.Wordlist != "" {
		c.WordlistPath = f.Wordlist
	}
	if f.HostLimit != 0 {
		c.HostLimit = f.HostLimit
	}
	if f.HostRate != 0 {
		c.HostRate = f.HostRate
	}
	if f.Extended != nil {
		c.Extended = *f.Extended
	}
	if f.DirsearchPath != "" {
		c.DirsearchPath = f.DirsearchPath
	}
	for name, site := range f.Sites {
		c.Sites[name] = site
	}
}

// ForTarget returns a copy of c with the per-target overrides of target applied.
func (c *Config) ForTarget(target string) *Config {
	clone := *c
	site, ok := c.Sites[target]
	if !ok {
		return &clone
	}
	if len(site.NucleiSeverity) > 0 {
		clone.NucleiSeverity = append([]string(nil), site.NucleiSeverity...)
	}
	if site.NucleiTemplates != "" {
		clone.NucleiTemplates = site.NucleiTemplates
	}
	if site.HostLimit != 0 {
		clone.HostLimit = site.HostLimit
	}
	if site.Extended != nil {
		clone.Extended = *site.Extended
	}
	return &clone
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.Threads <= 0 {
		return ErrInvalidThreads
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.HostLimit < 0 {
		return ErrInvalidHostLimit
	}
	if c.HostRate < 0 {
		return ErrInvalidHostRate
	}
	if c.OutputDir == "" {
		return ErrEmptyOutputDir
	}
	if err := validateSeverities(c.NucleiSeverity); err != nil {
		return err
	}
	for name, site := range c.Sites {
		if err := validateSeverities(site.NucleiSeverity); err != nil {
			return fmt.Errorf("site %s: %w", name, err)
		}
	}
	return nil
}

func validateSeverities(severities []string) error {
	for _, s := range severities {
		if _, err := model.ParseSeverity(s); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidSeverity, s)
		}
	}
	return nil
}
