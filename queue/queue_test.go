package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stanleyndaba/clario-detection-engine/model"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func mustEnqueue(t *testing.T, q *Queue, req model.EnqueueRequest) model.DetectionJob {
	t.Helper()
	job, err := q.Enqueue(req)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	return job
}

func TestNextOrdersByPriorityThenFIFO(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q := New(Config{MaxConcurrency: 10}).WithClock(fixedClock(now))

	mustEnqueue(t, q, model.EnqueueRequest{SellerID: "s1", UserID: "u-low", Priority: model.PriorityJobLow})
	mustEnqueue(t, q, model.EnqueueRequest{SellerID: "s1", UserID: "u-normal-1", Priority: model.PriorityJobNormal})
	mustEnqueue(t, q, model.EnqueueRequest{SellerID: "s1", UserID: "u-critical", Priority: model.PriorityJobCritical})
	mustEnqueue(t, q, model.EnqueueRequest{SellerID: "s1", UserID: "u-normal-2", Priority: model.PriorityJobNormal})
	mustEnqueue(t, q, model.EnqueueRequest{SellerID: "s1", UserID: "u-high", Priority: model.PriorityJobHigh})

	wantOrder := []string{"u-critical", "u-high", "u-normal-1", "u-normal-2", "u-low"}
	for _, wantUser := range wantOrder {
		job, err := q.Next(context.Background())
		if err != nil {
			t.Fatalf("next failed: %v", err)
		}
		if job.UserID != wantUser {
			t.Errorf("expected %s next, got %s (priority %s)", wantUser, job.UserID, job.Priority)
		}
	}
}

func TestNextBlocksUntilCtxDoneWhenEmpty(t *testing.T) {
	q := New(Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := q.Next(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("expected context deadline exceeded on empty queue, got %v", err)
	}
}

func TestBackpressureRestrictsToCriticalAndHigh(t *testing.T) {
	q := New(Config{BackpressureThreshold: 2, MaxConcurrency: 100})

	mustEnqueue(t, q, model.EnqueueRequest{SellerID: "s1", UserID: "u-normal-1", Priority: model.PriorityJobNormal})
	mustEnqueue(t, q, model.EnqueueRequest{SellerID: "s1", UserID: "u-normal-2", Priority: model.PriorityJobNormal})
	mustEnqueue(t, q, model.EnqueueRequest{SellerID: "s1", UserID: "u-normal-3", Priority: model.PriorityJobNormal})

	stats := q.Stats()
	if !stats.BacklogBuilding {
		t.Fatal("expected backlog_building once pending exceeds threshold")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := q.Next(ctx); err != context.DeadlineExceeded {
		t.Fatalf("expected NORMAL jobs to be ineligible under backpressure, got job or err=%v", err)
	}

	mustEnqueue(t, q, model.EnqueueRequest{SellerID: "s1", UserID: "u-high", Priority: model.PriorityJobHigh})

	job, err := q.Next(context.Background())
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if job.UserID != "u-high" {
		t.Errorf("expected HIGH job to dequeue under backpressure, got %s", job.UserID)
	}
}

func TestEnqueueIsIdempotentPerActiveUser(t *testing.T) {
	q := New(Config{})

	first := mustEnqueue(t, q, model.EnqueueRequest{SellerID: "s1", SyncID: "sync-1", UserID: "u1", Priority: model.PriorityJobNormal})
	second := mustEnqueue(t, q, model.EnqueueRequest{SellerID: "s1", SyncID: "sync-2", UserID: "u1", Priority: model.PriorityJobCritical})

	if first.ID != second.ID {
		t.Errorf("expected duplicate enqueue for same user to return existing job %s, got new job %s", first.ID, second.ID)
	}
	if second.SyncID != "sync-1" {
		t.Errorf("expected returned job to keep original sync_id sync-1, got %s", second.SyncID)
	}

	stats := q.Stats()
	if stats.Waiting != 1 {
		t.Errorf("expected only one job queued for the duplicate user, got %d waiting", stats.Waiting)
	}
}

func TestEnqueueAllowsDistinctUsersConcurrently(t *testing.T) {
	q := New(Config{})

	a := mustEnqueue(t, q, model.EnqueueRequest{SellerID: "s1", UserID: "u1", Priority: model.PriorityJobNormal})
	b := mustEnqueue(t, q, model.EnqueueRequest{SellerID: "s1", UserID: "u2", Priority: model.PriorityJobNormal})

	if a.ID == b.ID {
		t.Error("expected distinct users to get distinct jobs")
	}
}

func TestEnqueueAfterCompletionAllowsReEnqueue(t *testing.T) {
	q := New(Config{MaxConcurrency: 10})

	first := mustEnqueue(t, q, model.EnqueueRequest{SellerID: "s1", UserID: "u1", Priority: model.PriorityJobNormal})
	job, err := q.Next(context.Background())
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if err := q.MarkCompleted(job.ID); err != nil {
		t.Fatalf("mark completed failed: %v", err)
	}

	second := mustEnqueue(t, q, model.EnqueueRequest{SellerID: "s1", UserID: "u1", Priority: model.PriorityJobNormal})
	if second.ID == first.ID {
		t.Error("expected a fresh job id once the prior active job for this user completed")
	}
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping() error { return f.err }

func TestHealthyReflectsRedisPing(t *testing.T) {
	q := New(Config{})
	pinger := &fakePinger{}
	q.WithRedis(pinger)

	if !q.Healthy() {
		t.Fatal("expected healthy while ping succeeds")
	}

	pinger.err = context.DeadlineExceeded
	if q.Healthy() {
		t.Fatal("expected unhealthy once ping starts failing")
	}
}

func TestHealthyWithoutRedisIgnoresPing(t *testing.T) {
	q := New(Config{})
	if !q.Healthy() {
		t.Fatal("expected healthy with no redis backstop attached")
	}
}

func TestHealthyFalseWhenClosed(t *testing.T) {
	q := New(Config{})
	q.Close()
	if q.Healthy() {
		t.Fatal("expected unhealthy once closed, regardless of redis")
	}
}

func TestMarkFailedRequeuesBelowMaxAttempts(t *testing.T) {
	q := New(Config{MaxConcurrency: 10, MaxAttempts: 3})
	mustEnqueue(t, q, model.EnqueueRequest{SellerID: "s1", UserID: "u1", Priority: model.PriorityJobNormal})

	job, err := q.Next(context.Background())
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if err := q.MarkFailed(job.ID, context.DeadlineExceeded); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	stats := q.Stats()
	if stats.Failed != 0 {
		t.Errorf("expected job not yet terminally failed after attempt 1 of 3, got failed=%d", stats.Failed)
	}
	if stats.Waiting != 0 || stats.Active != 0 {
		t.Errorf("expected job to be in backoff delay, neither waiting nor active, got waiting=%d active=%d", stats.Waiting, stats.Active)
	}
}

func TestMarkFailedTerminatesAtMaxAttemptsAndRetryRequeues(t *testing.T) {
	q := New(Config{MaxConcurrency: 10, MaxAttempts: 1})
	mustEnqueue(t, q, model.EnqueueRequest{SellerID: "s1", UserID: "u1", Priority: model.PriorityJobNormal})

	job, err := q.Next(context.Background())
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if err := q.MarkFailed(job.ID, context.DeadlineExceeded); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	stats := q.Stats()
	if stats.Failed != 1 {
		t.Errorf("expected job terminally failed after reaching max_attempts=1, got failed=%d", stats.Failed)
	}

	jobs := q.Jobs(string(model.JobFailed), 10)
	if len(jobs) != 1 {
		t.Fatalf("expected 1 failed job in retention buffer, got %d", len(jobs))
	}

	if err := q.Retry(jobs[0].ID); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	retried, err := q.Next(context.Background())
	if err != nil {
		t.Fatalf("next after retry failed: %v", err)
	}
	if retried.Attempts != 0 {
		t.Errorf("expected retry to reset attempts to 0, got %d", retried.Attempts)
	}
}
