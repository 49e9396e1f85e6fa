package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and NormalizeTarget() and
// can be matched with errors.Is().
var (
	// ErrNoTarget is returned when no target domain is specified,
	// neither as a positional argument nor in the configuration file.
	ErrNoTarget = errors.New("no target specified: provide a domain as an argument or in the configuration file")

	// ErrInvalidTarget is returned when a target is not a registrable domain name.
	ErrInvalidTarget = errors.New("invalid target domain")

	// ErrInvalidThreads is returned when the thread count is not positive.
	ErrInvalidThreads = errors.New("invalid thread count: must be positive")

	// ErrInvalidTimeout is returned when the command timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidSeverity is returned when a nuclei severity is not recognized.
	ErrInvalidSeverity = errors.New("invalid nuclei severity")

	// ErrInvalidHostLimit is returned when the per-host tool limit is negative.
	ErrInvalidHostLimit = errors.New("invalid host limit: must be non-negative")

	// ErrInvalidHostRate is returned when the per-host invocation rate is negative.
	ErrInvalidHostRate = errors.New("invalid host rate: must be non-negative")

	// ErrEmptyOutputDir is returned when the output directory is empty.
	ErrEmptyOutputDir = errors.New("output directory must not be empty")
)
