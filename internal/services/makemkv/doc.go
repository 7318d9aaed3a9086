// Package makemkv wraps the makemkvcon command line for whole-disc rips.
// Ripped files land in the watched directory; detection and hand-off are the
// stable-file watcher's job, so the client only reports progress and exit.
package makemkv
