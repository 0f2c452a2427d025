package server

import (
	"encoding/json"
	"net/http"
	"time"

	"scenesub/internal/jobs"
)

type errorResponse struct {
	Error string `json:"error"`
}

type uploadResponse struct {
	SubtitleFile string `json:"subtitle_file"`
	JobID        string `json:"job_id"`
	Reused       bool   `json:"reused,omitempty"`
}

type jobListResponse struct {
	Jobs []jobs.Job `json:"jobs"`
}

type jobResponse struct {
	Job jobs.Job `json:"job"`
}

type dependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Path        string `json:"path,omitempty"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

type statusResponse struct {
	Running      bool                `json:"running"`
	PID          int                 `json:"pid"`
	Uptime       string              `json:"uptime"`
	DatabasePath string              `json:"database_path"`
	LockPath     string              `json:"lock_path"`
	Model        string              `json:"model"`
	Threshold    float64             `json:"threshold"`
	Jobs         map[jobs.Status]int `json:"jobs"`
	Dependencies []dependencyStatus  `json:"dependencies"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func formatUptime(since time.Time) string {
	if since.IsZero() {
		return "0s"
	}
	return time.Since(since).Truncate(time.Second).String()
}
