// Package logging provides structured logging built on log/slog.
//
// Every component receives a child logger via With("component", name) so
// log lines can be filtered per subsystem. Output format, level, and
// destination come from the logging section of config.yaml.
package logging
