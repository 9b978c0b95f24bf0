// Package logging configures the process-wide structured logger.
//
// Components obtain their loggers with slog.Default().With("component",
// ...), so Setup installs the configured handler once at startup. When
// email redaction is on, the handler masks the local part of every email
// address appearing in attribute values before it reaches the output.
package logging
