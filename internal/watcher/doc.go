// Package watcher detects newly created container files in the rip
// directory and reports each one exactly once, after it has stopped
// growing and can be locked exclusively. The watch loop is a single
// goroutine; the ready callback runs inline, so files are handed off
// sequentially and a slow consumer naturally back-pressures detection.
package watcher
