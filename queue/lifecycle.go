package queue

import (
	"container/heap"
	"time"

	"github.com/google/uuid"
	"github.com/stanleyndaba/clario-detection-engine/model"
)

func newJobID() string {
	return uuid.NewString()
}

// MarkCompleted implements markCompleted(id) from spec.md §4.D.
func (q *Queue) MarkCompleted(jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.processing[jobID]
	if !ok {
		return model.NewDomainError(model.ErrValidation, "job not in processing: "+jobID, nil)
	}
	delete(q.processing, jobID)
	delete(q.active, job.IdempotencyKey())
	q.completed++
	return nil
}

// MarkFailed implements markFailed(id, error) from spec.md §4.D:
// records last_error, increments attempts, and either requeues with
// exponential backoff (5s -> 10s -> 20s) or terminally fails the job
// once max_attempts is reached.
func (q *Queue) MarkFailed(jobID string, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.processing[jobID]
	if !ok {
		return model.NewDomainError(model.ErrValidation, "job not in processing: "+jobID, nil)
	}
	delete(q.processing, jobID)

	job.Attempts++
	if cause != nil {
		job.LastError = cause.Error()
	}
	job.UpdatedAt = q.clock()

	if job.Attempts >= q.cfg.MaxAttempts {
		job.Status = model.JobFailed
		delete(q.active, job.IdempotencyKey())
		q.failed++
		q.retainFailedLocked(job)
		return nil
	}

	job.Status = model.JobPending
	job.StartedAt = nil

	delay := backoffFor(job.Attempts)
	time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if q.closed {
			return
		}
		heap.Push(&q.pending, &entry{job: job, seq: q.nextSeq})
		q.nextSeq++
		q.broadcastLocked()
	})
	return nil
}

// Stats implements stats() -> QueueStats from spec.md §4.D.
func (q *Queue) Stats() model.QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := model.QueueStats{
		Waiting:   len(q.pending),
		Active:    len(q.processing),
		Completed: q.completed,
		Failed:    q.failed,
	}

	total := stats.Waiting + stats.Active
	stats.BacklogBuilding = total > q.cfg.BackpressureThreshold
	stats.WorkersOverloaded = stats.Active >= q.cfg.MaxConcurrency && stats.Waiting > 0
	if processed := stats.Completed + stats.Failed; processed >= 10 {
		stats.HighFailureRate = float64(stats.Failed)/float64(processed) > 0.2
	}
	return stats
}

// Healthy implements the healthy() probe from spec.md §4.D: the queue
// is healthy while it has not been closed and, if a WithRedis
// backstop is attached, while that PING is succeeding. A failing PING
// is what triggers the orchestrator's inline-execution fallback.
func (q *Queue) Healthy() bool {
	q.mu.Lock()
	closed := q.closed
	pinger := q.redis
	q.mu.Unlock()

	if closed {
		return false
	}
	if pinger == nil {
		return true
	}
	return pinger.Ping() == nil
}

// Close stops the queue; blocked Next calls return an error.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.broadcastLocked()
}

// SweepStalled reclassifies any job that has been in processing past
// the stall timeout back to pending for reassignment, per spec.md
// §4.D. Callers run this on a periodic ticker (see orchestrator).
func (q *Queue) SweepStalled() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock()
	var stalled []*model.DetectionJob
	for id, job := range q.processing {
		if job.StartedAt != nil && now.Sub(*job.StartedAt) > q.cfg.StallTimeout {
			stalled = append(stalled, job)
			delete(q.processing, id)
		}
	}

	for _, job := range stalled {
		job.Status = model.JobPending
		job.StartedAt = nil
		job.LastError = "stalled: exceeded processing timeout"
		job.UpdatedAt = now
		entry := &entry{job: job, seq: q.nextSeq}
		q.nextSeq++
		q.pending = append(q.pending, entry)
	}
	if len(stalled) > 0 {
		heap.Init(&q.pending)
		q.broadcastLocked()
	}
	return len(stalled)
}

// retainFailedLocked appends a terminally-failed job to the bounded
// history the admin queue-jobs/queue-retry surface reads, evicting the
// oldest entry once maxFailedRetained is exceeded. Must be called with
// q.mu held.
func (q *Queue) retainFailedLocked(job *model.DetectionJob) {
	q.failedJobs = append(q.failedJobs, job)
	if len(q.failedJobs) > maxFailedRetained {
		q.failedJobs = q.failedJobs[len(q.failedJobs)-maxFailedRetained:]
	}
}

// Jobs implements the `queue-jobs` admin listing from spec.md §6:
// snapshots of pending/processing jobs come from live queue state;
// failed jobs come from the bounded retention buffer. status filters
// to one of "pending", "processing", "failed", or "" for all three;
// limit caps the result, 0 meaning unbounded.
func (q *Queue) Jobs(status string, limit int) []model.DetectionJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []model.DetectionJob
	if status == "" || status == string(model.JobPending) {
		for _, e := range q.pending {
			out = append(out, *e.job)
		}
	}
	if status == "" || status == string(model.JobProcessing) {
		for _, job := range q.processing {
			out = append(out, *job)
		}
	}
	if status == "" || status == string(model.JobFailed) {
		for _, job := range q.failedJobs {
			out = append(out, *job)
		}
	}

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Retry implements `queue-retry/{jobId}` from spec.md §6: re-enqueues
// a terminally-failed job immediately, resetting its attempt counter.
// Jobs still pending or processing are not retry targets — they are
// already on a path to completion or to MarkFailed's own backoff.
func (q *Queue) Retry(jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, job := range q.failedJobs {
		if job.ID != jobID {
			continue
		}
		q.failedJobs = append(q.failedJobs[:i], q.failedJobs[i+1:]...)

		job.Status = model.JobPending
		job.Attempts = 0
		job.LastError = ""
		job.StartedAt = nil
		job.UpdatedAt = q.clock()

		q.active[job.IdempotencyKey()] = job.ID
		heap.Push(&q.pending, &entry{job: job, seq: q.nextSeq})
		q.nextSeq++
		q.broadcastLocked()
		return nil
	}
	return model.NewDomainError(model.ErrValidation, "job not found in failed history: "+jobID, nil)
}

// backoffFor returns the exponential backoff delay for a job's
// upcoming (attempts+1)-th attempt, per spec.md §4.D's 5s/10s/20s
// ladder, capped at the table's last entry for any attempt beyond it.
func backoffFor(attempts int) time.Duration {
	idx := attempts - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(backoffSchedule) {
		idx = len(backoffSchedule) - 1
	}
	return backoffSchedule[idx]
}
