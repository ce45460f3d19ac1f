// Package models holds the data structures shared across the service.
package models

// MeetingRecord is one consultant meeting as extracted from a voice recording.
// It is treated as read-only once produced: downstream consumers (storage,
// notification) only ever inspect it.
type MeetingRecord struct {
	CustomerName string  `json:"customer_name"`
	MeetingDate  string  `json:"meeting_date"`
	StartTime    string  `json:"start_time"`
	EndTime      string  `json:"end_time"`
	TotalHours   float64 `json:"total_hours"`
	Notes        string  `json:"notes"`
	Timestamp    string  `json:"timestamp,omitempty"`
}

// TranscriptionResult is the outcome of one speech-to-text call.
type TranscriptionResult struct {
	Text             string  `json:"text"`
	DurationSeconds  float64 `json:"duration_seconds,omitempty"`
	ProcessingStatus string  `json:"processing_status"`
	Error            string  `json:"error,omitempty"`
}

// Transcription processing statuses
const (
	ProcessingCompleted = "completed"
	ProcessingFailed    = "failed"
)

// Storage statuses recorded on a processed meeting
const (
	StorageStored  = "stored"
	StorageFailed  = "failed"
	StorageSkipped = "skipped"
)
