// Package main provides the entry point for the dast CLI.
//
// dast runs a fixed pipeline of third-party reconnaissance and
// vulnerability scanning tools (subfinder, amass, assetfinder, httprobe,
// katana, ffuf, gau, gospider, nuclei and others) against a target domain
// and aggregates their output into one report.
//
// Usage:
//
//	dast example.com
//	dast -t 20 --no-extended example.com example.org
//
// See --help for all available options.
package main

import "os"

func main() {
	os.Exit(Execute())
}
