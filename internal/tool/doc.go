// Package tool knows which external binaries dast drives, how to check that
// they work, and how to install them with go install.
package tool
