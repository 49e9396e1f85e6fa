// Package config provides configuration structures and utilities for dast.
// It defines the scan options shared by every pipeline phase, the YAML
// configuration file format, and target domain normalization.
package config
