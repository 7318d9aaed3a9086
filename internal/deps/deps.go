// Package deps reports the availability of the external tools and
// directories ripwatch depends on, for preflight and status output.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"ripwatch/internal/config"
)

// Requirement defines an external dependency ripwatch relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements returns the external binaries the configured pipeline uses.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{Name: "MakeMKV", Command: cfg.MakeMKV.Binary, Description: "Rips disc content into container files"},
		{Name: "FFmpeg", Command: cfg.Transcode.Binary, Description: "Converts container files to the edit-ready format"},
		{Name: "eject", Command: "eject", Description: "Releases the disc tray after ripping", Optional: true},
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// CheckDirectory verifies a directory exists and is readable and writable.
func CheckDirectory(name, path string) Status {
	status := Status{Name: name, Command: path}
	path = strings.TrimSpace(path)
	if path == "" {
		status.Detail = "not configured"
		return status
	}
	info, err := os.Stat(path)
	if err != nil {
		status.Detail = err.Error()
		return status
	}
	if !info.IsDir() {
		status.Detail = "not a directory"
		return status
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		status.Detail = fmt.Sprintf("access denied: %v", err)
		return status
	}
	status.Available = true
	return status
}
