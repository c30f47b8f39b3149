// Package logging configures structured logging for loom on top of log/slog.
//
// Two output formats are supported: "json" for machine consumption and
// "console" for a compact key=value line format. Component loggers carry a
// standardized component attribute, and WithContext folds run/stage/queue
// identifiers from the request context into every record.
package logging
