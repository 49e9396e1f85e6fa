// Package model defines the data structures produced by a dast run:
// the per-target scan report, the result of each pipeline phase, the
// vulnerabilities parsed from nuclei, and the difference between two scans.
//
// Reports serialize to the JSON layout written to the Reports directory
// ({"scan_info": ..., "results": ...}) and stored in the history database.
package model
