package testsupport

import (
	"context"
	"testing"

	"scenesub/internal/config"
	"scenesub/internal/jobs"
)

// MustOpenStore opens a jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a pending job with default settings for the given content hash.
func NewJob(t testing.TB, store *jobs.Store, name, hash string) *jobs.Job {
	t.Helper()

	job, err := store.Create(context.Background(), jobs.NewJob{
		SourceName:  name,
		ContentHash: hash,
		Threshold:   30,
		Model:       "base",
	})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return job
}
