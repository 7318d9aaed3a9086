package queue

import "time"

// Status represents the lifecycle of a detected file.
type Status string

const (
	StatusDetected    Status = "detected"
	StatusTranscoding Status = "transcoding"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

var allStatuses = []Status{
	StatusDetected,
	StatusTranscoding,
	StatusCompleted,
	StatusFailed,
}

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s Status) bool {
	for _, status := range allStatuses {
		if status == s {
			return true
		}
	}
	return false
}

// Item represents one detected container file and its transcode outcome.
type Item struct {
	ID           int64
	SessionID    string
	SourcePath   string
	OutputPath   string
	Status       Status
	ErrorMessage string
	DetectedAt   time.Time
	StartedAt    time.Time
	FinishedAt   time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Succeeded reports whether the item finished with a successful transcode.
func (i *Item) Succeeded() bool {
	return i.Status == StatusCompleted
}

// HealthSummary describes aggregated item counts per lifecycle state.
type HealthSummary struct {
	Total       int
	Detected    int
	Transcoding int
	Completed   int
	Failed      int
}
