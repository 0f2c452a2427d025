package preflight

import (
	"context"

	"scenesub/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks that must pass before serving uploads.
func RunAll(_ context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Upload directory", cfg.Paths.UploadDir),
		CheckDirectoryAccess("Subtitle directory", cfg.Paths.SubtitleDir),
	}
	if cfg.Paths.WorkDir != "" {
		results = append(results, CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir))
	}
	results = append(results, CheckTranscriptionAuth(cfg))
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
