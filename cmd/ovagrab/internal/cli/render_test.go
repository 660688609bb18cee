package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/iconidentify/ovagrab/internal/domain"
	"github.com/iconidentify/ovagrab/internal/journal"
)

func progress(p float64) *float64 {
	return &p
}

func TestPrintVMs(t *testing.T) {
	var buf bytes.Buffer
	printVMs(&buf, []domain.VirtualMachine{
		{Name: "web01", PowerState: "poweredOn", Host: "esx01", Cluster: "prod", Folder: "web", NumCPU: 2, MemoryMB: 4096, StorageGB: 40, GuestOS: "Ubuntu"},
	})

	out := buf.String()
	for _, want := range []string{"NAME", "web01", "poweredOn", "4.0 GiB", "40 GiB", "1 VM(s)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintVMs_Empty(t *testing.T) {
	var buf bytes.Buffer
	printVMs(&buf, nil)
	if got := buf.String(); got != "No VMs found\n" {
		t.Errorf("got %q", got)
	}
}

func TestPrintOptions(t *testing.T) {
	var buf bytes.Buffer
	printOptions(&buf, domain.FilterOptions{
		Hosts:       []string{"esx01", "esx02"},
		PowerStates: []string{"poweredOn"},
	})

	out := buf.String()
	if !strings.Contains(out, "--host") || !strings.Contains(out, "esx01, esx02") {
		t.Errorf("hosts missing:\n%s", out)
	}
	if !strings.Contains(out, "--power-state") {
		t.Errorf("power state flag name missing:\n%s", out)
	}
	if !strings.Contains(out, "--cluster") || !strings.Contains(out, "-\n") {
		t.Errorf("empty dimension should print a dash:\n%s", out)
	}
}

func TestRenderSnapshot(t *testing.T) {
	snap := domain.QueueSnapshot{
		Current: &domain.JobRecord{VMName: "db01", Status: domain.JobStatusDownloading, Progress: progress(40)},
		Queue: []domain.JobRecord{
			{VMName: "web01", Status: domain.JobStatusPending},
			{VMName: "web02", Status: domain.JobStatusPending},
		},
		QueueSize: 2,
		History: []domain.JobRecord{
			{VMName: "old", Status: domain.JobStatusFailed, Error: "VM not found: old"},
			{VMName: "app01", Status: domain.JobStatusCompleted, FilePath: "/exports/app01.ova"},
		},
	}

	out := renderSnapshot(snap)

	if !strings.Contains(out, "Current: db01 [downloading] 40%") {
		t.Errorf("current line missing:\n%s", out)
	}
	if !strings.Contains(out, "Queue (2): web01 web02") {
		t.Errorf("queue line missing:\n%s", out)
	}
	// Newest history entry first.
	if strings.Index(out, "app01") > strings.Index(out, "old") {
		t.Errorf("history should be newest first:\n%s", out)
	}
	if !strings.Contains(out, "/exports/app01.ova") || !strings.Contains(out, "VM not found: old") {
		t.Errorf("history details missing:\n%s", out)
	}
}

func TestRenderSnapshot_Idle(t *testing.T) {
	out := renderSnapshot(domain.QueueSnapshot{})
	if out != "Current: none\nQueue (0): empty\n" {
		t.Errorf("got %q", out)
	}
}

func TestPrintJournal(t *testing.T) {
	var buf bytes.Buffer
	printJournal(&buf, []journal.Entry{
		{Host: "vc", VMName: "web01", Status: domain.JobStatusCompleted, FilePath: "/x/web01.ova", BatchTime: "20240501_103000", RecordedAt: time.Now()},
		{Host: "vc", VMName: "ghost", Status: domain.JobStatusFailed, Error: "VM not found: ghost", RecordedAt: time.Now()},
	})

	out := buf.String()
	for _, want := range []string{"SEEN", "/x/web01.ova", "VM not found: ghost", "20240501_103000"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWatcher_KeepsLatestUpdate(t *testing.T) {
	w := newWatcher(false)
	w.update(domain.QueueSnapshot{QueueSize: 1})
	w.update(domain.QueueSnapshot{QueueSize: 2})

	select {
	case snap := <-w.updates:
		if snap.QueueSize != 2 {
			t.Errorf("QueueSize = %d, want 2", snap.QueueSize)
		}
	default:
		t.Fatal("expected a pending update")
	}

	select {
	case <-w.updates:
		t.Error("only one update should be pending")
	default:
	}
}
