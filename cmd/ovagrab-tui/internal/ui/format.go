package ui

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"

	"github.com/iconidentify/ovagrab/internal/domain"
)

// formatMemory renders configured memory in binary units.
func formatMemory(mb int) string {
	if mb <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(mb) * 1024 * 1024)
}

// formatStorage renders provisioned storage in binary units.
func formatStorage(gb float64) string {
	if gb <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(gb * (1 << 30)))
}

// progressBar renders pct (0..100) as a bar of the given width.
func progressBar(pct, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * width / 100
	return "[green]" + strings.Repeat("█", filled) + "[dim]" + strings.Repeat("░", width-filled) + "[white]"
}

// truncateList joins names, eliding everything after limit.
func truncateList(names []string, limit int) string {
	if len(names) <= limit {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(names[:limit], ", "), len(names)-limit)
}

func powerColor(state string) tcell.Color {
	switch state {
	case "poweredOn":
		return tcell.ColorGreen
	case "poweredOff":
		return tcell.ColorRed
	case "suspended":
		return tcell.ColorYellow
	}
	return tcell.ColorWhite
}

// statusColor returns the color tag name for a job status.
func statusColor(s domain.JobStatus) string {
	switch {
	case s == domain.JobStatusCompleted:
		return "green"
	case s == domain.JobStatusFailed:
		return "red"
	case s == domain.JobStatusCancelled:
		return "yellow"
	case s.IsActive():
		return "aqua"
	}
	return "white"
}

func tcellStatusColor(s domain.JobStatus) tcell.Color {
	return tcell.GetColor(statusColor(s))
}
