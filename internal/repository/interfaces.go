package repository

import (
	"context"

	"github.com/iconidentify/ovagrab/internal/domain"
)

// InventoryRepository serves the virtual machine inventory.
type InventoryRepository interface {
	// List returns the VMs matching filter, in inventory order.
	List(ctx context.Context, filter domain.FilterState) ([]domain.VirtualMachine, error)

	// Options returns the distinct filter values of the whole inventory.
	Options(ctx context.Context) (domain.FilterOptions, error)

	// Get retrieves a VM by name.
	Get(ctx context.Context, name string) (domain.VirtualMachine, error)

	// SetPowerState changes a VM's power state.
	SetPowerState(ctx context.Context, name, state string) error
}

// ExportQueueRepository manages the export queue.
type ExportQueueRepository interface {
	// Enqueue appends jobs and returns the number of pending jobs.
	Enqueue(ctx context.Context, jobs []domain.JobRecord) (int, error)

	// Dequeue makes the next pending job current (FIFO).
	Dequeue(ctx context.Context) (domain.JobRecord, error)

	// Current returns the job being exported.
	Current(ctx context.Context) (domain.JobRecord, error)

	// UpdateCurrent modifies the job being exported.
	UpdateCurrent(ctx context.Context, fn func(job *domain.JobRecord)) error

	// Finish moves the current job to the history.
	Finish(ctx context.Context) (domain.JobRecord, error)

	// Cancel drops the pending jobs and marks the current job cancelled.
	Cancel(ctx context.Context) (int, error)

	// Reset drops the pending and current jobs. History is kept.
	Reset(ctx context.Context) error

	// Snapshot returns the queue state with the most recent history entries.
	Snapshot(ctx context.Context, historyLimit int) (domain.QueueSnapshot, error)

	// Stats returns queue statistics.
	Stats(ctx context.Context) (*QueueStats, error)
}

// QueueStats contains export queue statistics.
type QueueStats struct {
	Pending   int
	Active    int
	Completed int
	Failed    int
	Cancelled int
}

// SessionRepository holds the single operator session of the service.
type SessionRepository interface {
	// Open starts a new session, replacing any previous one, and returns its token.
	Open(host, username string) string

	// Close ends the session.
	Close()

	// Valid reports whether token belongs to the open session.
	Valid(token string) bool

	// Host returns the host of the open session, or "" when none is open.
	Host() string
}
