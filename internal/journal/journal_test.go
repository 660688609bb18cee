package journal

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/iconidentify/ovagrab/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), testLogger())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func sampleHistory() []domain.JobRecord {
	return []domain.JobRecord{
		{VMName: "web01", Status: domain.JobStatusCompleted, FilePath: "/exports/web01.ova", Timestamp: "2024-05-01T10:00:00"},
		{VMName: "web02", Status: domain.JobStatusFailed, Error: "disk busy", Timestamp: "2024-05-01T10:00:00"},
		{VMName: "db01", Status: domain.JobStatusDownloading, Timestamp: "2024-05-01T10:00:00"},
	}
}

func TestJournal_RecordSkipsActiveJobs(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	added, err := j.Record(ctx, "vcenter.local", sampleHistory())
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if added != 2 {
		t.Errorf("added = %d, want 2", added)
	}

	entries, err := j.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.VMName == "db01" {
			t.Error("non-terminal job should not be archived")
		}
		if e.Host != "vcenter.local" {
			t.Errorf("host = %q", e.Host)
		}
	}
}

func TestJournal_RecordIsIdempotent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := j.Record(ctx, "vcenter.local", sampleHistory()); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	n, err := j.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}

	// A re-export of the same VM in a later batch is a new entry.
	added, err := j.Record(ctx, "vcenter.local", []domain.JobRecord{
		{VMName: "web01", Status: domain.JobStatusCompleted, FilePath: "/exports/web01.ova", Timestamp: "2024-05-02T09:00:00"},
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if added != 1 {
		t.Errorf("added = %d, want 1", added)
	}
}

func TestJournal_ListLimitAndOrder(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	if _, err := j.Record(ctx, "h", []domain.JobRecord{{VMName: "first", Status: domain.JobStatusCompleted}}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if _, err := j.Record(ctx, "h", []domain.JobRecord{{VMName: "second", Status: domain.JobStatusCancelled}}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	entries, err := j.List(ctx, 1)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].VMName != "second" || entries[0].Status != domain.JobStatusCancelled {
		t.Errorf("newest entry = %+v", entries[0])
	}
}

func TestJournal_EmptyList(t *testing.T) {
	j := openTestJournal(t)

	entries, err := j.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("entries = %v, want empty slice", entries)
	}
}
