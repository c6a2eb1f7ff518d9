package queue_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"hopper/internal/queue"
	"hopper/internal/testsupport"
)

func TestOpenAppliesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, created, err := store.Enqueue(ctx, "/media/incoming/sample.mkv", 4096)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if !created {
		t.Fatal("expected job to be created")
	}
	if job.ID == 0 {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", job.Status)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.SourcePath != "/media/incoming/sample.mkv" {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}
	if fetched.SourceSize != 4096 {
		t.Fatalf("expected source size 4096, got %d", fetched.SourceSize)
	}

	active, err := store.GetBySourcePath(ctx, "/media/incoming/sample.mkv")
	if err != nil {
		t.Fatalf("GetBySourcePath failed: %v", err)
	}
	if active == nil || active.ID != job.ID {
		t.Fatalf("expected to find enqueued job, got %#v", active)
	}
}

func TestEnqueueRequiresSourcePath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, _, err := store.Enqueue(context.Background(), "  ", 0); err == nil {
		t.Fatal("expected error for empty source path")
	}
}

func TestEnqueueDeduplicatesActivePaths(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	path := "/media/incoming/movie.mkv"
	first, created, err := store.Enqueue(ctx, path, 100)
	if err != nil {
		t.Fatalf("first Enqueue failed: %v", err)
	}
	if !created {
		t.Fatal("expected first enqueue to create a job")
	}

	second, created, err := store.Enqueue(ctx, path, 100)
	if err != nil {
		t.Fatalf("second Enqueue failed: %v", err)
	}
	if created {
		t.Fatal("expected duplicate enqueue to be suppressed")
	}
	if second.ID != first.ID {
		t.Fatalf("expected existing job %d, got %d", first.ID, second.ID)
	}

	// A terminal job no longer blocks the path.
	first.SetFailed("fatal", "decoder exploded")
	if err := store.Update(ctx, first); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	third, created, err := store.Enqueue(ctx, path, 100)
	if err != nil {
		t.Fatalf("third Enqueue failed: %v", err)
	}
	if !created {
		t.Fatal("expected enqueue after terminal job to create a new job")
	}
	if third.ID == first.ID {
		t.Fatal("expected a fresh job id after terminal job")
	}
}

func TestClaimNextQueuedOrdersFIFO(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	var ids []int64
	for i := 0; i < 3; i++ {
		job := testsupport.NewJob(t, store, fmt.Sprintf("/media/incoming/file-%d.mkv", i), 10)
		job.Status = queue.StatusQueued
		if err := store.Update(ctx, job); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		ids = append(ids, job.ID)
	}

	now := time.Now()
	for _, want := range ids {
		claimed, err := store.ClaimNextQueued(ctx, now)
		if err != nil {
			t.Fatalf("ClaimNextQueued failed: %v", err)
		}
		if claimed == nil {
			t.Fatal("expected a claimable job")
		}
		if claimed.ID != want {
			t.Fatalf("expected job %d next, got %d", want, claimed.ID)
		}
		if claimed.Status != queue.StatusRunning {
			t.Fatalf("expected running status after claim, got %s", claimed.Status)
		}
		if claimed.Attempts != 1 {
			t.Fatalf("expected claim to charge the first execution, got attempts %d", claimed.Attempts)
		}
	}

	extra, err := store.ClaimNextQueued(ctx, now)
	if err != nil {
		t.Fatalf("ClaimNextQueued failed: %v", err)
	}
	if extra != nil {
		t.Fatalf("expected empty queue, claimed %d", extra.ID)
	}
}

func TestClaimNextQueuedHonorsRunAfter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "/media/incoming/delayed.mkv", 10)
	job.Status = queue.StatusQueued
	job.RunAfter = time.Now().Add(time.Hour)
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	claimed, err := store.ClaimNextQueued(ctx, time.Now())
	if err != nil {
		t.Fatalf("ClaimNextQueued failed: %v", err)
	}
	if claimed != nil {
		t.Fatalf("expected delayed job to be skipped, claimed %d", claimed.ID)
	}

	claimed, err = store.ClaimNextQueued(ctx, time.Now().Add(2*time.Hour))
	if err != nil {
		t.Fatalf("ClaimNextQueued failed: %v", err)
	}
	if claimed == nil || claimed.ID != job.ID {
		t.Fatalf("expected delayed job once eligible, got %#v", claimed)
	}
}

func TestReleaseForRetry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "/media/incoming/retry.mkv", 10)
	job.Status = queue.StatusQueued
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	claimed, err := store.ClaimNextQueued(ctx, time.Now())
	if err != nil {
		t.Fatalf("ClaimNextQueued failed: %v", err)
	}
	if claimed == nil {
		t.Fatal("expected to claim job")
	}

	claimed.ErrorKind = "retryable"
	claimed.ErrorMessage = "transcoder timed out"
	if err := store.ReleaseForRetry(ctx, claimed, time.Minute); err != nil {
		t.Fatalf("ReleaseForRetry failed: %v", err)
	}

	updated, err := store.GetByID(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if updated.Status != queue.StatusQueued {
		t.Fatalf("expected queued after release, got %s", updated.Status)
	}
	if updated.Attempts != 1 {
		t.Fatalf("expected the claimed execution to stay recorded, got %d", updated.Attempts)
	}
	if updated.ErrorMessage != "transcoder timed out" {
		t.Fatalf("expected error message preserved, got %q", updated.ErrorMessage)
	}
	if updated.RunAfter.IsZero() {
		t.Fatal("expected run_after to be set")
	}

	// Not claimable until the delay elapses.
	early, err := store.ClaimNextQueued(ctx, time.Now())
	if err != nil {
		t.Fatalf("ClaimNextQueued failed: %v", err)
	}
	if early != nil {
		t.Fatalf("expected delay to gate the claim, got job %d", early.ID)
	}

	later, err := store.ClaimNextQueued(ctx, time.Now().Add(2*time.Minute))
	if err != nil {
		t.Fatalf("ClaimNextQueued failed: %v", err)
	}
	if later == nil || later.ID != claimed.ID {
		t.Fatalf("expected job claimable after delay, got %#v", later)
	}
}

func TestReleaseForRetrySubSecondDelayGatesClaim(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "/media/incoming/quick.mkv", 10)
	job.Status = queue.StatusQueued
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	claimed, err := store.ClaimNextQueued(ctx, time.Now())
	if err != nil {
		t.Fatalf("ClaimNextQueued failed: %v", err)
	}
	if claimed == nil {
		t.Fatal("expected to claim job")
	}
	if err := store.ReleaseForRetry(ctx, claimed, 900*time.Millisecond); err != nil {
		t.Fatalf("ReleaseForRetry failed: %v", err)
	}

	// A delay shorter than a second still holds the job back.
	early, err := store.ClaimNextQueued(ctx, time.Now())
	if err != nil {
		t.Fatalf("ClaimNextQueued failed: %v", err)
	}
	if early != nil {
		t.Fatalf("expected sub-second delay to gate the claim, got job %d", early.ID)
	}

	later, err := store.ClaimNextQueued(ctx, time.Now().Add(2*time.Second))
	if err != nil {
		t.Fatalf("ClaimNextQueued failed: %v", err)
	}
	if later == nil || later.ID != claimed.ID {
		t.Fatalf("expected job claimable after delay, got %#v", later)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	cases := []struct {
		name             string
		initial          queue.Status
		attempts         int
		expected         queue.Status
		expectedAttempts int
	}{
		// A running job was claimed, so the reset refunds its execution.
		{"running", queue.StatusRunning, 2, queue.StatusQueued, 1},
		{"stabilizing", queue.StatusStabilizing, 0, queue.StatusPending, 0},
	}
	var ids []int64
	for i, tc := range cases {
		job := testsupport.NewJob(t, store, fmt.Sprintf("/media/incoming/stuck-%d.mkv", i), 10)
		job.Status = tc.initial
		job.Attempts = tc.attempts
		if err := store.Update(ctx, job); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		ids = append(ids, job.ID)
	}
	untouched := testsupport.NewJob(t, store, "/media/incoming/fine.mkv", 10)

	count, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if int(count) != len(cases) {
		t.Fatalf("expected %d jobs reset, got %d", len(cases), count)
	}

	for idx, tc := range cases {
		updated, err := store.GetByID(ctx, ids[idx])
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if updated.Status != tc.expected {
			t.Fatalf("%s: expected status %s, got %s", tc.name, tc.expected, updated.Status)
		}
		if updated.Attempts != tc.expectedAttempts {
			t.Fatalf("%s: expected attempts %d, got %d", tc.name, tc.expectedAttempts, updated.Attempts)
		}
	}

	still, err := store.GetByID(ctx, untouched.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if still.Status != queue.StatusPending {
		t.Fatalf("expected pending job untouched, got %s", still.Status)
	}
}

func TestListSupportsStatusFilter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	a := testsupport.NewJob(t, store, "/media/incoming/a.mkv", 10)
	b := testsupport.NewJob(t, store, "/media/incoming/b.mkv", 10)
	b.Status = queue.StatusQueued
	if err := store.Update(ctx, b); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	c := testsupport.NewJob(t, store, "/media/incoming/c.mkv", 10)
	c.SetFailed("fatal", "boom")
	if err := store.Update(ctx, c); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	jobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != a.ID || jobs[1].ID != b.ID || jobs[2].ID != c.ID {
		t.Fatalf("expected order a,b,c, got IDs %d,%d,%d", jobs[0].ID, jobs[1].ID, jobs[2].ID)
	}

	filtered, err := store.List(ctx, queue.StatusQueued, queue.StatusFailed)
	if err != nil {
		t.Fatalf("filtered List failed: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(filtered))
	}
	if filtered[0].ID != b.ID || filtered[1].ID != c.ID {
		t.Fatalf("unexpected filtered order: got %d,%d", filtered[0].ID, filtered[1].ID)
	}
}

func TestRetryFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	a := testsupport.NewJob(t, store, "/media/incoming/a.mkv", 10)
	a.SetFailed("fatal", "bad input")
	if err := store.Update(ctx, a); err != nil {
		t.Fatalf("Update: %v", err)
	}
	b := testsupport.NewJob(t, store, "/media/incoming/b.mkv", 10)
	b.SetAbandoned("stability", "file never stabilized")
	b.Attempts = 3
	if err := store.Update(ctx, b); err != nil {
		t.Fatalf("Update: %v", err)
	}

	updated, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed all: %v", err)
	}
	if updated != 2 {
		t.Fatalf("expected 2 jobs retried, got %d", updated)
	}

	job, err := store.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != queue.StatusPending {
		t.Fatalf("expected job a pending, got %s", job.Status)
	}
	if job.ErrorMessage != "" || job.ErrorKind != "" {
		t.Fatalf("expected error fields cleared, got %q/%q", job.ErrorKind, job.ErrorMessage)
	}

	revived, err := store.GetByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if revived.Attempts != 0 {
		t.Fatalf("expected attempts reset, got %d", revived.Attempts)
	}

	// Mark b failed again and retry targeted selection.
	revived.SetFailed("fatal", "boom")
	if err := store.Update(ctx, revived); err != nil {
		t.Fatalf("Update: %v", err)
	}
	updated, err = store.RetryFailed(ctx, revived.ID)
	if err != nil {
		t.Fatalf("RetryFailed targeted: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 job retried, got %d", updated)
	}
}

func TestRetryFailedSkipsPathsWithActiveJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	path := "/media/incoming/rediscovered.mkv"
	old := testsupport.NewJob(t, store, path, 10)
	old.SetFailed("fatal", "first pass failed")
	if err := store.Update(ctx, old); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// The watcher re-discovered the file and created a fresh active job.
	fresh := testsupport.NewJob(t, store, path, 10)

	updated, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if updated != 0 {
		t.Fatalf("expected retry to skip path with active job, retried %d", updated)
	}

	unchanged, err := store.GetByID(ctx, old.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if unchanged.Status != queue.StatusFailed {
		t.Fatalf("expected old job untouched, got %s", unchanged.Status)
	}
	active, err := store.GetBySourcePath(ctx, path)
	if err != nil {
		t.Fatalf("GetBySourcePath: %v", err)
	}
	if active == nil || active.ID != fresh.ID {
		t.Fatalf("expected fresh job to remain the active one, got %#v", active)
	}
}

func TestUpdateProgressDoesNotClobberStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "/media/incoming/progress.mkv", 10)
	job.Status = queue.StatusRunning
	job.Attempts = 1
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	job.SetProgress("Encoding", 42.5)
	if err := store.UpdateProgress(ctx, job); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	after, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if after.Status != queue.StatusRunning || after.Attempts != 1 {
		t.Fatalf("expected status/attempts preserved, got %s/%d", after.Status, after.Attempts)
	}
	if after.ProgressPercent != 42.5 || after.ProgressMessage != "Encoding" {
		t.Fatalf("expected progress persisted, got %f/%q", after.ProgressPercent, after.ProgressMessage)
	}
}

func TestClearOperations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	statuses := []queue.Status{
		queue.StatusSucceeded,
		queue.StatusFailed,
		queue.StatusAbandoned,
		queue.StatusQueued,
	}
	for i, status := range statuses {
		job := testsupport.NewJob(t, store, filepath.Join("/media/incoming", fmt.Sprintf("clear-%d.mkv", i)), 10)
		job.Status = status
		if err := store.Update(ctx, job); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	cleared, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("ClearCompleted: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 succeeded job cleared, got %d", cleared)
	}

	cleared, err = store.ClearFailed(ctx)
	if err != nil {
		t.Fatalf("ClearFailed: %v", err)
	}
	if cleared != 2 {
		t.Fatalf("expected failed and abandoned cleared, got %d", cleared)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 1 || health.Waiting != 1 {
		t.Fatalf("expected one queued job left, got %+v", health)
	}

	cleared, err = store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected final job cleared, got %d", cleared)
	}
}

func TestStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewJob(t, store, "/media/incoming/one.mkv", 10)
	two := testsupport.NewJob(t, store, "/media/incoming/two.mkv", 10)
	two.Status = queue.StatusQueued
	if err := store.Update(ctx, two); err != nil {
		t.Fatalf("Update: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[queue.StatusPending] != 1 || stats[queue.StatusQueued] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}
