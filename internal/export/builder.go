// Package export turns a VM selection into export queue requests.
package export

import (
	"context"
	"log/slog"
	"strings"

	"github.com/iconidentify/ovagrab/internal/domain"
	"github.com/iconidentify/ovagrab/pkg/ovaclient"
)

// Backend is the part of the export service API the builder needs.
type Backend interface {
	Export(ctx context.Context, names []string, poweroffBefore bool) (*ovaclient.ExportResponse, error)
	Cancel(ctx context.Context) (string, error)
	PowerOff(ctx context.Context, name string) (string, error)
}

// Ack is the service's acknowledgement of a batch.
type Ack struct {
	Message   string
	QueueSize int
	VMNames   []string
}

// Builder submits export batches.
type Builder struct {
	backend Backend
	logger  *slog.Logger
}

// NewBuilder creates a new export request builder.
func NewBuilder(backend Backend, logger *slog.Logger) *Builder {
	return &Builder{
		backend: backend,
		logger:  logger,
	}
}

// Submit sends one batch for all names. An empty selection is rejected before
// any request is made. Duplicates are dropped, first occurrence wins.
func (b *Builder) Submit(ctx context.Context, names []string, poweroffBefore bool) (Ack, error) {
	batch := normalize(names)
	if len(batch) == 0 {
		return Ack{}, domain.NewOpError(domain.ErrSubmit, "export", "", domain.ErrEmptySelection)
	}

	resp, err := b.backend.Export(ctx, batch, poweroffBefore)
	if err != nil {
		b.logger.Warn("export rejected", "vms", len(batch), "error", err)
		return Ack{}, domain.NewOpError(domain.ErrSubmit, "export", ovaclient.Message(err), err)
	}

	b.logger.Info("export submitted",
		"vms", len(batch),
		"poweroff_before", poweroffBefore,
		"queue_size", resp.QueueSize,
	)

	return Ack{
		Message:   resp.Message,
		QueueSize: resp.QueueSize,
		VMNames:   batch,
	}, nil
}

// CancelAll clears the service's pending queue and cancels the running export.
func (b *Builder) CancelAll(ctx context.Context) (string, error) {
	msg, err := b.backend.Cancel(ctx)
	if err != nil {
		b.logger.Warn("cancel rejected", "error", err)
		return "", domain.NewOpError(domain.ErrSubmit, "cancel", ovaclient.Message(err), err)
	}
	b.logger.Info("export queue cancelled")
	return msg, nil
}

// PowerOff powers off one VM ahead of an export.
func (b *Builder) PowerOff(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.NewOpError(domain.ErrSubmit, "poweroff", "", domain.ErrEmptySelection)
	}

	msg, err := b.backend.PowerOff(ctx, name)
	if err != nil {
		b.logger.Warn("power off rejected", "vm", name, "error", err)
		return "", domain.NewOpError(domain.ErrSubmit, "poweroff", ovaclient.Message(err), err)
	}
	b.logger.Info("vm powered off", "vm", name)
	return msg, nil
}

func normalize(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
