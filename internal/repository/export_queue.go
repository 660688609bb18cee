package repository

import (
	"context"
	"sync"

	"github.com/iconidentify/ovagrab/internal/domain"
)

// InMemoryExportQueue implements ExportQueueRepository using in-memory storage.
// At most one job is current; finished jobs move to the history.
type InMemoryExportQueue struct {
	mu      sync.RWMutex
	pending []domain.JobRecord // FIFO
	current *domain.JobRecord
	history []domain.JobRecord
	maxKept int
}

// NewInMemoryExportQueue creates a new in-memory export queue. maxHistory
// bounds the retained history; zero keeps everything.
func NewInMemoryExportQueue(maxHistory int) *InMemoryExportQueue {
	return &InMemoryExportQueue{
		pending: make([]domain.JobRecord, 0),
		history: make([]domain.JobRecord, 0),
		maxKept: maxHistory,
	}
}

// Enqueue appends jobs and returns the number of pending jobs.
func (q *InMemoryExportQueue) Enqueue(ctx context.Context, jobs []domain.JobRecord) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = append(q.pending, cloneAll(jobs)...)
	return len(q.pending), nil
}

// Dequeue makes the next pending job current (FIFO). It fails with
// domain.ErrNoJobs when nothing is pending and leaves a running job alone.
func (q *InMemoryExportQueue) Dequeue(ctx context.Context) (domain.JobRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current != nil || len(q.pending) == 0 {
		return domain.JobRecord{}, domain.ErrNoJobs
	}

	job := q.pending[0]
	q.pending = q.pending[1:]
	q.current = &job

	return cloneOne(job), nil
}

// Current returns the job being exported.
func (q *InMemoryExportQueue) Current(ctx context.Context) (domain.JobRecord, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.current == nil {
		return domain.JobRecord{}, domain.ErrNoCurrentJob
	}
	return cloneOne(*q.current), nil
}

// UpdateCurrent modifies the job being exported.
func (q *InMemoryExportQueue) UpdateCurrent(ctx context.Context, fn func(job *domain.JobRecord)) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current == nil {
		return domain.ErrNoCurrentJob
	}
	fn(q.current)
	return nil
}

// Finish moves the current job to the history.
func (q *InMemoryExportQueue) Finish(ctx context.Context) (domain.JobRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current == nil {
		return domain.JobRecord{}, domain.ErrNoCurrentJob
	}

	job := *q.current
	q.current = nil
	q.history = append(q.history, job)
	if q.maxKept > 0 && len(q.history) > q.maxKept {
		q.history = append([]domain.JobRecord(nil), q.history[len(q.history)-q.maxKept:]...)
	}

	return cloneOne(job), nil
}

// Cancel drops the pending jobs and marks the current job cancelled. The
// exporter moves a cancelled job to the history on its next step. It returns
// the number of dropped pending jobs.
func (q *InMemoryExportQueue) Cancel(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := len(q.pending)
	q.pending = make([]domain.JobRecord, 0)
	if q.current != nil {
		q.current.Status = domain.JobStatusCancelled
	}
	return dropped, nil
}

// Reset drops the pending and current jobs. History is kept.
func (q *InMemoryExportQueue) Reset(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = make([]domain.JobRecord, 0)
	q.current = nil
	return nil
}

// Snapshot returns the queue state with at most historyLimit of the most
// recent history entries, oldest first.
func (q *InMemoryExportQueue) Snapshot(ctx context.Context, historyLimit int) (domain.QueueSnapshot, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	history := q.history
	if historyLimit > 0 && len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}

	snap := domain.QueueSnapshot{
		Queue:     cloneAll(q.pending),
		History:   cloneAll(history),
		QueueSize: len(q.pending),
	}
	if q.current != nil {
		cur := cloneOne(*q.current)
		snap.Current = &cur
	}
	return snap, nil
}

// Stats returns queue statistics.
func (q *InMemoryExportQueue) Stats(ctx context.Context) (*QueueStats, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	stats := &QueueStats{Pending: len(q.pending)}
	if q.current != nil {
		stats.Active = 1
	}
	for _, job := range q.history {
		switch job.Status {
		case domain.JobStatusCompleted:
			stats.Completed++
		case domain.JobStatusFailed:
			stats.Failed++
		case domain.JobStatusCancelled:
			stats.Cancelled++
		}
	}

	return stats, nil
}

func cloneOne(job domain.JobRecord) domain.JobRecord {
	if job.Progress != nil {
		p := *job.Progress
		job.Progress = &p
	}
	return job
}

func cloneAll(jobs []domain.JobRecord) []domain.JobRecord {
	out := make([]domain.JobRecord, len(jobs))
	for i, job := range jobs {
		out[i] = cloneOne(job)
	}
	return out
}
