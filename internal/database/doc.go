// Package database provides SQLite-based scan history for dast.
//
// Every finished scan is stored as its JSON report together with the
// scan outcome and a severity summary, keyed by the scan ID. The history
// backs the history and compare commands.
//
// SQLite is used through modernc.org/sqlite, a CGO-free driver, so the
// database is a single file in the XDG data directory.
package database
