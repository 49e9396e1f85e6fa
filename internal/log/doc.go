// Package log provides the redacting slog logger used by dast.
//
// Scans handle material that must not end up in log files: discovered
// URLs may embed credentials or session tokens, and tool arguments may
// carry authorization headers. SecureHandler wraps any slog.Handler and
// masks:
//   - attributes whose key names a secret (cookie, token, password, ...)
//   - values that look like secrets (JWTs, bearer tokens, API keys)
//   - the password and sensitive query parameters of URL values
//   - the same values inside []string attributes such as command lines
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("tool finished", "tool", "gau", "args", args)
//	slog.SetDefault(logger)
package log
