// Package ui shows scan progress on the terminal.
//
// A Reporter receives phase start, update and finish events from the
// pipeline. SpinnerReporter animates the running phase and is used for a
// single target on an interactive terminal. LineReporter prints one colored
// line per event and is safe for concurrent targets. NopReporter discards
// everything.
package ui
