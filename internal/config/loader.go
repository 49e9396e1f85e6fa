package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".dast.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the YAML configuration file.
// The top-level keys mirror the scan options; sites holds per-target overrides.
type File struct {
	Target          string                `yaml:"target,omitempty"`
	Targets         []string              `yaml:"targets,omitempty"`
	Threads         int                   `yaml:"threads,omitempty"`
	Timeout         Duration              `yaml:"timeout,omitempty"`
	OutputDir       string                `yaml:"output_dir,omitempty"`
	NucleiTemplates string                `yaml:"nuclei_templates,omitempty"`
	NucleiSeverity  []string              `yaml:"nuclei_severity,omitempty"`
	WordlistURL     string                `yaml:"wordlist_url,omitempty"`
	Wordlist        string                `yaml:"wordlist,omitempty"`
	HostLimit       int                   `yaml:"host_limit,omitempty"`
	HostRate        float64               `yaml:"host_rate,omitempty"`
	Extended        *bool                 `yaml:"extended,omitempty"`
	DirsearchPath   string                `yaml:"dirsearch_path,omitempty"`
	Sites           map[string]SiteConfig `yaml:"sites,omitempty"`
}

// SiteConfig holds overrides applied to a single target domain.
type SiteConfig struct {
	// NucleiSeverity replaces the global severity list for this target.
	NucleiSeverity []string `yaml:"nuclei_severity,omitempty"`

	// NucleiTemplates replaces the global templates path for this target.
	NucleiTemplates string `yaml:"nuclei_templates,omitempty"`

	// HostLimit replaces the global per-host tool limit for this target.
	HostLimit int `yaml:"host_limit,omitempty"`

	// Extended enables or disables the extended phase for this target.
	Extended *bool `yaml:"extended,omitempty"`
}

// Duration is a time.Duration that unmarshals from either an integer
// number of seconds (timeout: 1200) or a Go duration string (timeout: 20m).
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	if secs, err := strconv.Atoi(value.Value); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", value.Line, value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// LoadConfigFile loads a configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. .dast.yaml in the current directory
// 3. .dast.yaml in the user's home directory
// 4. config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
