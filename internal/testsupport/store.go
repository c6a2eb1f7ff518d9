package testsupport

import (
	"context"
	"testing"

	"hopper/internal/config"
	"hopper/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob enqueues a pending job for tests using the provided store.
func NewJob(t testing.TB, store *queue.Store, sourcePath string, size int64) *queue.Job {
	t.Helper()

	job, created, err := store.Enqueue(context.Background(), sourcePath, size)
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	if !created {
		t.Fatalf("expected new job for %s, got existing id %d", sourcePath, job.ID)
	}
	return job
}
