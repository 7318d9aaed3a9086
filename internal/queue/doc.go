// Package queue persists per-file transcode items in SQLite so outcome
// history survives daemon restarts and the CLI can render status and
// outcome views without touching the session goroutines.
package queue
