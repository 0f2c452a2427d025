// Package deps resolves the external executables scenesub shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an executable and whether generation can run without it.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the outcome of resolving one Requirement.
type Status struct {
	Requirement
	// Path is the resolved executable when Available.
	Path      string
	Available bool
	Detail    string
}

// Resolve looks up req.Command on PATH (or as a literal path).
func Resolve(req Requirement) Status {
	req.Command = strings.TrimSpace(req.Command)
	req.Description = strings.TrimSpace(req.Description)
	status := Status{Requirement: req}

	if req.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(req.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return status
	}
	status.Path = path
	status.Available = true
	return status
}

// CheckBinaries resolves every requirement in order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		results[i] = Resolve(req)
	}
	return results
}

// MissingRequired filters statuses down to unavailable, non-optional entries.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}
