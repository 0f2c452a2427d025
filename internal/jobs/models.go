package jobs

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrNotFound is returned when updating a job that does not exist.
var ErrNotFound = errors.New("job not found")

// Job is one persisted subtitle generation.
type Job struct {
	ID              string        `json:"id"`
	SourceName      string        `json:"source_name"`
	ContentHash     string        `json:"content_hash"`
	Threshold       float64       `json:"threshold"`
	Model           string        `json:"model"`
	Language        string        `json:"language,omitempty"`
	Status          Status        `json:"status"`
	SceneCount      int           `json:"scene_count"`
	CueCount        int           `json:"cue_count"`
	ScenesAvailable bool          `json:"scenes_available"`
	SubtitlePath    string        `json:"subtitle_path,omitempty"`
	ErrorMessage    string        `json:"error_message,omitempty"`
	Elapsed         time.Duration `json:"elapsed_ns"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// NewJob holds the inputs recorded when a job is created.
type NewJob struct {
	SourceName  string
	ContentHash string
	Threshold   float64
	Model       string
	Language    string
}

// Outcome is recorded when a job completes.
type Outcome struct {
	SceneCount      int
	CueCount        int
	ScenesAvailable bool
	SubtitlePath    string
	Elapsed         time.Duration
}
