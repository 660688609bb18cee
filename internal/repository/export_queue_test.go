package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/iconidentify/ovagrab/internal/domain"
)

func pendingJobs(names ...string) []domain.JobRecord {
	jobs := make([]domain.JobRecord, len(names))
	for i, name := range names {
		zero := 0.0
		jobs[i] = domain.JobRecord{VMName: name, Status: domain.JobStatusPending, Progress: &zero}
	}
	return jobs
}

func TestInMemoryExportQueue_EnqueueDequeueFIFO(t *testing.T) {
	q := NewInMemoryExportQueue(10)
	ctx := context.Background()

	if _, err := q.Dequeue(ctx); !errors.Is(err, domain.ErrNoJobs) {
		t.Errorf("expected ErrNoJobs, got %v", err)
	}

	n, err := q.Enqueue(ctx, pendingJobs("web01", "web02"))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if n != 2 {
		t.Errorf("pending = %d, want 2", n)
	}

	job, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if job.VMName != "web01" {
		t.Errorf("VMName = %q, want web01", job.VMName)
	}

	// A job is already current.
	if _, err := q.Dequeue(ctx); !errors.Is(err, domain.ErrNoJobs) {
		t.Errorf("expected ErrNoJobs while a job is current, got %v", err)
	}

	if _, err := q.Finish(ctx); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	job, err = q.Dequeue(ctx)
	if err != nil || job.VMName != "web02" {
		t.Errorf("second Dequeue = %q, %v", job.VMName, err)
	}
}

func TestInMemoryExportQueue_UpdateAndFinish(t *testing.T) {
	q := NewInMemoryExportQueue(10)
	ctx := context.Background()

	if err := q.UpdateCurrent(ctx, func(*domain.JobRecord) {}); !errors.Is(err, domain.ErrNoCurrentJob) {
		t.Errorf("expected ErrNoCurrentJob, got %v", err)
	}

	q.Enqueue(ctx, pendingJobs("db01"))
	q.Dequeue(ctx)

	err := q.UpdateCurrent(ctx, func(job *domain.JobRecord) {
		p := 40.0
		job.Status = domain.JobStatusDownloading
		job.Progress = &p
	})
	if err != nil {
		t.Fatalf("UpdateCurrent failed: %v", err)
	}

	snap, _ := q.Snapshot(ctx, 10)
	if snap.Current == nil || snap.Current.Percent() != 40 || snap.Current.Status != domain.JobStatusDownloading {
		t.Errorf("current = %+v", snap.Current)
	}

	q.UpdateCurrent(ctx, func(job *domain.JobRecord) { job.Status = domain.JobStatusCompleted })
	done, err := q.Finish(ctx)
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if done.Status != domain.JobStatusCompleted {
		t.Errorf("finished status = %q", done.Status)
	}

	snap, _ = q.Snapshot(ctx, 10)
	if snap.Current != nil {
		t.Error("current should be empty after Finish")
	}
	if len(snap.History) != 1 || snap.History[0].VMName != "db01" {
		t.Errorf("history = %+v", snap.History)
	}
}

func TestInMemoryExportQueue_SnapshotHistoryLimit(t *testing.T) {
	q := NewInMemoryExportQueue(0)
	ctx := context.Background()

	names := []string{"a", "b", "c", "d", "e"}
	q.Enqueue(ctx, pendingJobs(names...))
	for range names {
		q.Dequeue(ctx)
		q.UpdateCurrent(ctx, func(job *domain.JobRecord) { job.Status = domain.JobStatusCompleted })
		q.Finish(ctx)
	}

	snap, err := q.Snapshot(ctx, 3)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.History) != 3 {
		t.Fatalf("history = %d entries, want 3", len(snap.History))
	}
	if snap.History[0].VMName != "c" || snap.History[2].VMName != "e" {
		t.Errorf("history should hold the most recent entries oldest first: %+v", snap.History)
	}
}

func TestInMemoryExportQueue_MaxHistory(t *testing.T) {
	q := NewInMemoryExportQueue(2)
	ctx := context.Background()

	q.Enqueue(ctx, pendingJobs("a", "b", "c"))
	for i := 0; i < 3; i++ {
		q.Dequeue(ctx)
		q.Finish(ctx)
	}

	snap, _ := q.Snapshot(ctx, 0)
	if len(snap.History) != 2 || snap.History[0].VMName != "b" {
		t.Errorf("history = %+v", snap.History)
	}
}

func TestInMemoryExportQueue_Cancel(t *testing.T) {
	q := NewInMemoryExportQueue(10)
	ctx := context.Background()

	q.Enqueue(ctx, pendingJobs("web01", "web02", "web03"))
	q.Dequeue(ctx)

	dropped, err := q.Cancel(ctx)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}

	cur, err := q.Current(ctx)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if cur.Status != domain.JobStatusCancelled {
		t.Errorf("current status = %q, want cancelled", cur.Status)
	}

	snap, _ := q.Snapshot(ctx, 10)
	if len(snap.Queue) != 0 || snap.QueueSize != 0 {
		t.Errorf("queue = %+v", snap.Queue)
	}
}

func TestInMemoryExportQueue_ResetKeepsHistory(t *testing.T) {
	q := NewInMemoryExportQueue(10)
	ctx := context.Background()

	q.Enqueue(ctx, pendingJobs("a", "b", "c"))
	q.Dequeue(ctx)
	q.Finish(ctx)
	q.Dequeue(ctx)

	if err := q.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	snap, _ := q.Snapshot(ctx, 10)
	if snap.Current != nil || len(snap.Queue) != 0 {
		t.Error("Reset should drop current and pending jobs")
	}
	if len(snap.History) != 1 {
		t.Errorf("history = %d, want 1", len(snap.History))
	}
}

func TestInMemoryExportQueue_SnapshotIsACopy(t *testing.T) {
	q := NewInMemoryExportQueue(10)
	ctx := context.Background()

	q.Enqueue(ctx, pendingJobs("web01", "web02"))
	q.Dequeue(ctx)

	snap, _ := q.Snapshot(ctx, 10)
	*snap.Current.Progress = 99
	snap.Queue[0].VMName = "changed"

	again, _ := q.Snapshot(ctx, 10)
	if again.Current.Percent() != 0 || again.Queue[0].VMName != "web02" {
		t.Error("snapshot must not alias queue state")
	}
}

func TestInMemoryExportQueue_Stats(t *testing.T) {
	q := NewInMemoryExportQueue(10)
	ctx := context.Background()

	q.Enqueue(ctx, pendingJobs("a", "b", "c", "d"))
	for _, status := range []domain.JobStatus{domain.JobStatusCompleted, domain.JobStatusFailed} {
		q.Dequeue(ctx)
		q.UpdateCurrent(ctx, func(job *domain.JobRecord) { job.Status = status })
		q.Finish(ctx)
	}
	q.Dequeue(ctx)

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Pending != 1 || stats.Active != 1 || stats.Completed != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
