// Package daemon hosts the long-running ripwatch process. It enforces
// single-instance execution with a lock file, owns the session manager and
// queue store, and listens for disc insertion events so a freshly loaded
// disc starts a rip session without operator intervention.
package daemon
