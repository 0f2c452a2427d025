package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"scenesub/internal/config"
	"scenesub/internal/deps"
	"scenesub/internal/jobs"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries for the given config.
// uvx is optional because generation can run from a pre-computed transcript.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for frame decoding and audio extraction",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for media inspection",
		},
		{
			Name:        "uvx",
			Command:     cfg.UVXBinary(),
			Description: "Runs WhisperX transcription",
			Optional:    true,
		},
	}
	return deps.CheckBinaries(requirements)
}

// CheckJobStore opens the job database and summarizes its contents.
func CheckJobStore(ctx context.Context, cfg *config.Config) Result {
	const name = "Job database"

	store, err := jobs.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", cfg.DatabasePath(), err)}
	}
	defer store.Close()

	counts, err := store.Counts(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", cfg.DatabasePath(), err)}
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s (%d jobs, %d completed, %d failed)", cfg.DatabasePath(), total, counts[jobs.StatusCompleted], counts[jobs.StatusFailed]),
	}
}

// CheckServeInstance reports whether a server currently holds the instance
// lock for the data directory. Passed means the lock is held (serving).
func CheckServeInstance(cfg *config.Config) Result {
	const name = "Server"

	lockPath := cfg.LockPath()
	if _, err := os.Stat(lockPath); errors.Is(err, os.ErrNotExist) {
		return Result{Name: name, Detail: "Not running"}
	}
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("lock check failed (%v)", err)}
	}
	if ok {
		_ = lock.Unlock()
		return Result{Name: name, Detail: "Not running"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("Running (bind %s)", strings.TrimSpace(cfg.Server.Bind))}
}

// CheckTranscriptionAuth verifies that a Hugging Face token is available when
// the configured VAD requires one.
func CheckTranscriptionAuth(cfg *config.Config) Result {
	const name = "WhisperX VAD"

	method := strings.TrimSpace(cfg.Transcription.VADMethod)
	if method != "pyannote" {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (no token required)", method)}
	}
	if strings.TrimSpace(cfg.Transcription.HFToken) == "" {
		return Result{Name: name, Detail: "pyannote (error: hf_token missing)"}
	}
	return Result{Name: name, Passed: true, Detail: "pyannote (token configured)"}
}
