package ipc

import (
	"time"

	"ripwatch/internal/queue"
	"ripwatch/internal/status"
)

// StartSessionRequest begins a session on the daemon.
type StartSessionRequest struct {
	RipDisc bool `json:"rip_disc"`
}

// StartSessionResponse indicates whether a session was started.
type StartSessionResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopSessionRequest ends the active session.
type StopSessionRequest struct{}

// StopSessionResponse indicates stop result.
type StopSessionResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// DependencyStatus describes availability of an external tool.
type DependencyStatus struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Optional  bool   `json:"optional"`
	Available bool   `json:"available"`
	Detail    string `json:"detail"`
}

// StatusResponse represents combined daemon and session status.
type StatusResponse struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	SessionID    string             `json:"session_id"`
	SessionOn    bool               `json:"session_on"`
	StartedAt    string             `json:"started_at,omitempty"`
	RipActive    bool               `json:"rip_active"`
	RipError     string             `json:"rip_error,omitempty"`
	Completed    int                `json:"completed"`
	Failed       int                `json:"failed"`
	LastError    string             `json:"last_error,omitempty"`
	QueueStats   map[string]int     `json:"queue_stats"`
	QueueDBPath  string             `json:"queue_db_path"`
	LockPath     string             `json:"lock_path"`
	MonitorOn    bool               `json:"monitor_on"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// QueueItem is the wire representation of a queue entry.
type QueueItem struct {
	ID           int64  `json:"id"`
	SessionID    string `json:"session_id"`
	SourcePath   string `json:"source_path"`
	OutputPath   string `json:"output_path,omitempty"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	DetectedAt   string `json:"detected_at,omitempty"`
	StartedAt    string `json:"started_at,omitempty"`
	FinishedAt   string `json:"finished_at,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

// FromQueueItem converts a queue model into its wire representation.
func FromQueueItem(item *queue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}
	return QueueItem{
		ID:           item.ID,
		SessionID:    item.SessionID,
		SourcePath:   item.SourcePath,
		OutputPath:   item.OutputPath,
		Status:       string(item.Status),
		ErrorMessage: item.ErrorMessage,
		DetectedAt:   wireTime(item.DetectedAt),
		StartedAt:    wireTime(item.StartedAt),
		FinishedAt:   wireTime(item.FinishedAt),
		CreatedAt:    wireTime(item.CreatedAt),
		UpdatedAt:    wireTime(item.UpdatedAt),
	}
}

func wireTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains queue entries.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueDescribeRequest fetches a single queue item by id.
type QueueDescribeRequest struct {
	ID int64 `json:"id"`
}

// QueueDescribeResponse contains a single queue entry.
type QueueDescribeResponse struct {
	Item QueueItem `json:"item"`
}

// QueueClearRequest removes all items.
type QueueClearRequest struct{}

// QueueClearResponse reports number of removed entries.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// QueueClearCompletedRequest removes completed items.
type QueueClearCompletedRequest struct{}

// QueueClearCompletedResponse reports number of removed entries.
type QueueClearCompletedResponse struct {
	Removed int64 `json:"removed"`
}

// QueueResetRequest resets items stuck in transcoding.
type QueueResetRequest struct{}

// QueueResetResponse reports number of items reset.
type QueueResetResponse struct {
	Updated int64 `json:"updated"`
}

// QueueHealthRequest fetches aggregate diagnostics.
type QueueHealthRequest struct{}

// QueueHealthResponse reports queue health information.
type QueueHealthResponse struct {
	Total       int `json:"total"`
	Detected    int `json:"detected"`
	Transcoding int `json:"transcoding"`
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
}

// EventsRequest fetches session events after a sequence cursor. When Wait is
// true the daemon blocks up to WaitMillis for new events.
type EventsRequest struct {
	Since      uint64 `json:"since"`
	Limit      int    `json:"limit"`
	Wait       bool   `json:"wait"`
	WaitMillis int    `json:"wait_millis"`
}

// EventsResponse returns session events and the next cursor.
type EventsResponse struct {
	Events []status.Event `json:"events"`
	Next   uint64         `json:"next"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
