// Package disc interfaces with the physical optical drive: deriving a usable
// session title from disc labels and ejecting the tray after a completed rip.
package disc
