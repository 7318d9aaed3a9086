// Package logging builds slog loggers for the daemon and CLI.
//
// Two handler formats are supported: a console handler that renders
// single-line records with a UTC millisecond timestamp, and a JSON handler
// for machine consumption. Loggers are constructed explicitly and passed to
// collaborators; nothing in this package touches the process-global slog
// default.
package logging
