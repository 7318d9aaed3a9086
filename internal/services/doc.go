// Package services holds cross-cutting helpers for the external tool
// boundary: sentinel error markers with stage-aware wrapping, and context
// annotations used to correlate log lines with sessions and queue items.
package services
