// Package notifications delivers push notifications about session progress
// via ntfy. When no topic is configured every call is a cheap no-op, so
// callers never guard notification sites.
package notifications
