package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/iconidentify/ovagrab/internal/domain"
	"github.com/iconidentify/ovagrab/internal/repository"
)

func newTestExporter(step float64) (*Exporter, *repository.InMemoryExportQueue, *repository.InMemoryInventoryRepository) {
	queue := repository.NewInMemoryExportQueue(10)
	inv := repository.NewInMemoryInventoryRepository([]domain.VirtualMachine{
		{Name: "web01", PowerState: "poweredOn"},
		{Name: "db01", PowerState: "poweredOn"},
	})
	e := NewExporter(ExporterConfig{StepInterval: time.Hour, StepPercent: step}, queue, inv, testLogger())
	e.now = func() time.Time { return time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC) }
	return e, queue, inv
}

func enqueue(t *testing.T, q *repository.InMemoryExportQueue, name string, poweroff bool) {
	t.Helper()
	_, err := q.Enqueue(context.Background(), []domain.JobRecord{{
		VMName:         name,
		Status:         domain.JobStatusPending,
		PoweroffBefore: poweroff,
		DownloadDir:    "/exports/20240501",
	}})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
}

func currentStatus(t *testing.T, q *repository.InMemoryExportQueue) domain.JobStatus {
	t.Helper()
	job, err := q.Current(context.Background())
	if err != nil {
		return ""
	}
	return job.Status
}

func TestNewExporter_Defaults(t *testing.T) {
	e := NewExporter(ExporterConfig{}, repository.NewInMemoryExportQueue(0), repository.NewInMemoryInventoryRepository(nil), testLogger())
	if e.stepInterval != 500*time.Millisecond {
		t.Errorf("stepInterval = %v", e.stepInterval)
	}
	if e.stepPercent != 10 {
		t.Errorf("stepPercent = %v", e.stepPercent)
	}
}

func TestExporter_StepIdle(t *testing.T) {
	e, q, _ := newTestExporter(50)
	e.Step(context.Background())

	snap, _ := q.Snapshot(context.Background(), 10)
	if !snap.IsIdle() {
		t.Error("empty queue should stay idle")
	}
}

func TestExporter_FullLifecycleWithPowerOff(t *testing.T) {
	e, q, inv := newTestExporter(50)
	ctx := context.Background()
	enqueue(t, q, "web01", true)

	want := []domain.JobStatus{
		domain.JobStatusProcessing,
		domain.JobStatusPoweringOff,
		domain.JobStatusDownloading,
		domain.JobStatusDownloading,
	}
	for i, status := range want {
		e.Step(ctx)
		if got := currentStatus(t, q); got != status {
			t.Fatalf("step %d: status = %q, want %q", i+1, got, status)
		}
	}

	vm, _ := inv.Get(ctx, "web01")
	if vm.PowerState != "poweredOff" {
		t.Errorf("PowerState = %q, want poweredOff", vm.PowerState)
	}

	cur, _ := q.Current(ctx)
	if cur.Percent() != 50 {
		t.Errorf("progress = %d, want 50", cur.Percent())
	}

	e.Step(ctx)
	snap, _ := q.Snapshot(ctx, 10)
	if snap.Current != nil {
		t.Fatalf("job should have finished, current = %+v", snap.Current)
	}
	if len(snap.History) != 1 {
		t.Fatalf("history = %d entries", len(snap.History))
	}
	done := snap.History[0]
	if done.Status != domain.JobStatusCompleted || done.Percent() != 100 {
		t.Errorf("finished job = %+v", done)
	}
	if done.FilePath != "/exports/20240501/web01_20240501_103000.ova" {
		t.Errorf("FilePath = %q", done.FilePath)
	}
}

func TestExporter_SkipsPowerOffWhenNotRequested(t *testing.T) {
	e, q, inv := newTestExporter(100)
	ctx := context.Background()
	enqueue(t, q, "db01", false)

	e.Step(ctx)
	e.Step(ctx)
	if got := currentStatus(t, q); got != domain.JobStatusDownloading {
		t.Errorf("status = %q, want downloading", got)
	}

	vm, _ := inv.Get(ctx, "db01")
	if vm.PowerState != "poweredOn" {
		t.Error("VM should stay powered on")
	}
}

func TestExporter_UnknownVMFails(t *testing.T) {
	e, q, _ := newTestExporter(50)
	ctx := context.Background()
	enqueue(t, q, "ghost", false)

	e.Step(ctx)
	e.Step(ctx)

	snap, _ := q.Snapshot(ctx, 10)
	if snap.Current != nil || len(snap.History) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	failed := snap.History[0]
	if failed.Status != domain.JobStatusFailed || !strings.Contains(failed.Error, "ghost") {
		t.Errorf("failed job = %+v", failed)
	}
}

func TestExporter_CancelledJobMovesToHistory(t *testing.T) {
	e, q, _ := newTestExporter(10)
	ctx := context.Background()
	enqueue(t, q, "web01", false)
	enqueue(t, q, "db01", false)

	e.Step(ctx)
	e.Step(ctx)
	if _, err := q.Cancel(ctx); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	// A progress step must not resurrect a cancelled job.
	e.Step(ctx)
	snap, _ := q.Snapshot(ctx, 10)
	if snap.Current != nil {
		t.Fatalf("cancelled job should be finished, current = %+v", snap.Current)
	}
	if len(snap.History) != 1 || snap.History[0].Status != domain.JobStatusCancelled {
		t.Errorf("history = %+v", snap.History)
	}
	if len(snap.Queue) != 0 {
		t.Error("pending jobs should be dropped")
	}
}

func TestExporter_StartStop(t *testing.T) {
	queue := repository.NewInMemoryExportQueue(10)
	inv := repository.NewInMemoryInventoryRepository([]domain.VirtualMachine{{Name: "web01"}})
	e := NewExporter(ExporterConfig{StepInterval: 5 * time.Millisecond, StepPercent: 50}, queue, inv, testLogger())

	queue.Enqueue(context.Background(), []domain.JobRecord{{VMName: "web01", Status: domain.JobStatusPending}})
	e.Start()

	waitFor(t, "export to finish", func() bool {
		stats, _ := queue.Stats(context.Background())
		return stats.Completed == 1
	})

	if err := e.Stop(time.Second); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestExporter_StopTimeout(t *testing.T) {
	e := NewExporter(ExporterConfig{}, repository.NewInMemoryExportQueue(0), repository.NewInMemoryInventoryRepository(nil), testLogger())

	// Simulate a loop that never exits.
	e.wg.Add(1)
	err := e.Stop(10 * time.Millisecond)
	e.wg.Done()

	if !errors.Is(err, ErrShutdownTimeout) {
		t.Errorf("expected ErrShutdownTimeout, got %v", err)
	}
}
