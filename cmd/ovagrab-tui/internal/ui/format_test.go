package ui

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/iconidentify/ovagrab/internal/domain"
)

func TestFormatMemory(t *testing.T) {
	tests := []struct {
		mb   int
		want string
	}{
		{0, "-"},
		{512, "512 MiB"},
		{4096, "4.0 GiB"},
		{32768, "32 GiB"},
	}

	for _, tt := range tests {
		if got := formatMemory(tt.mb); got != tt.want {
			t.Errorf("formatMemory(%d) = %q, want %q", tt.mb, got, tt.want)
		}
	}
}

func TestFormatStorage(t *testing.T) {
	if got := formatStorage(0); got != "-" {
		t.Errorf("formatStorage(0) = %q", got)
	}
	if got := formatStorage(40); got != "40 GiB" {
		t.Errorf("formatStorage(40) = %q", got)
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		pct    int
		filled int
	}{
		{-5, 0},
		{0, 0},
		{50, 10},
		{100, 20},
		{150, 20},
	}

	for _, tt := range tests {
		bar := progressBar(tt.pct, 20)
		if got := strings.Count(bar, "█"); got != tt.filled {
			t.Errorf("progressBar(%d) filled = %d, want %d", tt.pct, got, tt.filled)
		}
		if got := strings.Count(bar, "█") + strings.Count(bar, "░"); got != 20 {
			t.Errorf("progressBar(%d) width = %d, want 20", tt.pct, got)
		}
	}
}

func TestTruncateList(t *testing.T) {
	if got := truncateList([]string{"a", "b"}, 3); got != "a, b" {
		t.Errorf("got %q", got)
	}
	if got := truncateList([]string{"a", "b", "c", "d"}, 2); got != "a, b and 2 more" {
		t.Errorf("got %q", got)
	}
}

func TestStatusColor(t *testing.T) {
	tests := []struct {
		status domain.JobStatus
		want   string
	}{
		{domain.JobStatusCompleted, "green"},
		{domain.JobStatusFailed, "red"},
		{domain.JobStatusCancelled, "yellow"},
		{domain.JobStatusDownloading, "aqua"},
		{domain.JobStatusPending, "white"},
		{domain.JobStatus("mystery"), "white"},
	}

	for _, tt := range tests {
		if got := statusColor(tt.status); got != tt.want {
			t.Errorf("statusColor(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestPowerColor(t *testing.T) {
	if powerColor("poweredOn") != tcell.ColorGreen {
		t.Error("poweredOn should be green")
	}
	if powerColor("N/A") != tcell.ColorWhite {
		t.Error("unknown states should be white")
	}
}
