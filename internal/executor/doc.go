// Package executor runs the external reconnaissance tools as subprocesses.
//
// Commands are executed directly, never through a shell. Where a tool
// expects its input on stdin, the input file is attached as the process's
// standard input instead of being piped through cat.
//
// The executor searches an augmented PATH that also contains the Go binary
// directories (~/.go/bin, ~/go/bin, /usr/local/go/bin), because tools
// installed with go install commonly land there without being on the
// user's PATH.
//
// Every command has a timeout. Failures are reported as:
//   - ErrNotFound when the binary cannot be located
//   - ErrTimeout when the timeout expires
//   - *ExitError when the process exits with a non-zero status
package executor
