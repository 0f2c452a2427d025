package logging

import "strings"

// FormatSubject builds the job/stage subject used in console output. Job IDs
// are shortened to their first eight characters.
func FormatSubject(jobID, stage string) string {
	jobID = strings.TrimSpace(jobID)
	stage = strings.TrimSpace(stage)
	if len(jobID) > 8 {
		jobID = jobID[:8]
	}
	switch {
	case jobID != "" && stage != "":
		return "Job " + jobID + " (" + stage + ")"
	case jobID != "":
		return "Job " + jobID
	default:
		return stage
	}
}
