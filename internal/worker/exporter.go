package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/iconidentify/ovagrab/internal/domain"
	"github.com/iconidentify/ovagrab/internal/repository"
)

// ErrShutdownTimeout is returned when the exporter doesn't stop within timeout.
var ErrShutdownTimeout = errors.New("exporter shutdown timed out")

// ExporterConfig holds simulated exporter configuration.
type ExporterConfig struct {
	StepInterval time.Duration
	StepPercent  float64
}

// Exporter works through the export queue one job at a time, advancing the
// current job by one state per step. No data is transferred; the job ends
// with the path an OVA would have been written to.
type Exporter struct {
	stepInterval time.Duration
	stepPercent  float64
	queue        repository.ExportQueueRepository
	inventory    repository.InventoryRepository
	logger       *slog.Logger
	now          func() time.Time

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewExporter creates a new simulated exporter.
func NewExporter(
	cfg ExporterConfig,
	queue repository.ExportQueueRepository,
	inventory repository.InventoryRepository,
	logger *slog.Logger,
) *Exporter {
	if cfg.StepInterval <= 0 {
		cfg.StepInterval = 500 * time.Millisecond
	}
	if cfg.StepPercent <= 0 {
		cfg.StepPercent = 10
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Exporter{
		stepInterval: cfg.StepInterval,
		stepPercent:  cfg.StepPercent,
		queue:        queue,
		inventory:    inventory,
		logger:       logger,
		now:          time.Now,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start launches the exporter loop.
func (e *Exporter) Start() {
	e.logger.Info("starting exporter", "step_interval", e.stepInterval)

	e.wg.Add(1)
	go e.run()
}

// Stop stops the exporter loop.
func (e *Exporter) Stop(timeout time.Duration) error {
	e.logger.Info("stopping exporter")
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("exporter stopped gracefully")
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

func (e *Exporter) run() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.stepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.Step(e.ctx)
		}
	}
}

// Step advances the export queue by one transition.
func (e *Exporter) Step(ctx context.Context) {
	job, err := e.queue.Current(ctx)
	if errors.Is(err, domain.ErrNoCurrentJob) {
		e.startNext(ctx)
		return
	}
	if err != nil {
		e.logger.Error("failed to read current export", "error", err)
		return
	}

	logger := e.logger.With("vm", job.VMName)

	switch job.Status {
	case domain.JobStatusCancelled, domain.JobStatusCompleted, domain.JobStatusFailed:
		e.finish(ctx, logger)

	case domain.JobStatusProcessing:
		if _, err := e.inventory.Get(ctx, job.VMName); err != nil {
			e.fail(ctx, logger, fmt.Sprintf("VM not found: %s", job.VMName))
			return
		}
		if job.PoweroffBefore {
			e.update(ctx, logger, func(j *domain.JobRecord) {
				j.Status = domain.JobStatusPoweringOff
				j.Message = "Powering off VM"
			})
			return
		}
		e.startDownload(ctx, logger)

	case domain.JobStatusPoweringOff:
		if err := e.inventory.SetPowerState(ctx, job.VMName, "poweredOff"); err != nil {
			e.fail(ctx, logger, fmt.Sprintf("Error powering off VM: %v", err))
			return
		}
		e.startDownload(ctx, logger)

	case domain.JobStatusDownloading:
		e.advance(ctx, logger, job)

	default:
		e.update(ctx, logger, func(j *domain.JobRecord) {
			j.Status = domain.JobStatusProcessing
		})
	}
}

func (e *Exporter) startNext(ctx context.Context) {
	job, err := e.queue.Dequeue(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNoJobs) {
			e.logger.Error("failed to dequeue export", "error", err)
		}
		return
	}

	logger := e.logger.With("vm", job.VMName)
	logger.Info("processing export", "poweroff_before", job.PoweroffBefore)
	e.update(ctx, logger, func(j *domain.JobRecord) {
		j.Status = domain.JobStatusProcessing
	})
}

func (e *Exporter) startDownload(ctx context.Context, logger *slog.Logger) {
	e.update(ctx, logger, func(j *domain.JobRecord) {
		zero := 0.0
		j.Status = domain.JobStatusDownloading
		j.Progress = &zero
		j.Message = "Starting export"
	})
}

func (e *Exporter) advance(ctx context.Context, logger *slog.Logger, job domain.JobRecord) {
	progress := e.stepPercent
	if job.Progress != nil {
		progress += *job.Progress
	}

	if progress < 100 {
		e.update(ctx, logger, func(j *domain.JobRecord) {
			p := progress
			j.Progress = &p
			j.Message = fmt.Sprintf("Downloading disk 1/1 (%.0f%%)", progress)
		})
		return
	}

	path := filepath.Join(job.DownloadDir, fmt.Sprintf("%s_%s.ova", job.VMName, e.now().Format("20060102_150405")))
	e.update(ctx, logger, func(j *domain.JobRecord) {
		full := 100.0
		j.Status = domain.JobStatusCompleted
		j.Progress = &full
		j.FilePath = path
		j.Message = "Download completed"
	})
	logger.Info("export completed", "file_path", path)
	e.finish(ctx, logger)
}

func (e *Exporter) fail(ctx context.Context, logger *slog.Logger, reason string) {
	e.update(ctx, logger, func(j *domain.JobRecord) {
		j.Status = domain.JobStatusFailed
		j.Error = reason
	})
	logger.Error("export failed", "error", reason)
	e.finish(ctx, logger)
}

// update applies fn to the current job unless it was cancelled meanwhile.
func (e *Exporter) update(ctx context.Context, logger *slog.Logger, fn func(*domain.JobRecord)) {
	err := e.queue.UpdateCurrent(ctx, func(j *domain.JobRecord) {
		if j.Status == domain.JobStatusCancelled {
			return
		}
		fn(j)
	})
	if err != nil {
		logger.Warn("failed to update export", "error", err)
	}
}

func (e *Exporter) finish(ctx context.Context, logger *slog.Logger) {
	job, err := e.queue.Finish(ctx)
	if err != nil {
		logger.Warn("failed to move export to history", "error", err)
		return
	}
	logger.Debug("export moved to history", "status", job.Status)
}
