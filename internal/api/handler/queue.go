package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/iconidentify/ovagrab/internal/domain"
	"github.com/iconidentify/ovagrab/internal/repository"
)

// QueueHandler handles the export queue endpoints.
type QueueHandler struct {
	queue        repository.ExportQueueRepository
	downloadDir  string
	historyLimit int
	logger       *slog.Logger
	now          func() time.Time
}

// NewQueueHandler creates a new queue handler. historyLimit bounds the
// history returned by Status.
func NewQueueHandler(queue repository.ExportQueueRepository, downloadDir string, historyLimit int, logger *slog.Logger) *QueueHandler {
	if historyLimit <= 0 {
		historyLimit = 10
	}
	return &QueueHandler{
		queue:        queue,
		downloadDir:  downloadDir,
		historyLimit: historyLimit,
		logger:       logger,
		now:          time.Now,
	}
}

// ExportRequest is the body of POST /api/export. A missing power-off flag
// means true.
type ExportRequest struct {
	VMNames              []string `json:"vm_names"`
	PoweroffBeforeExport *bool    `json:"poweroff_before_export"`
}

// ExportResponse is the response of POST /api/export.
type ExportResponse struct {
	envelope
	QueueSize int `json:"queue_size"`
}

// StatusResponse is the response of GET /api/status.
type StatusResponse struct {
	envelope
	CurrentDownload *domain.JobRecord  `json:"current_download"`
	Queue           []domain.JobRecord `json:"queue"`
	QueueSize       int                `json:"queue_size"`
	History         []domain.JobRecord `json:"history"`
}

// Export handles POST /api/export.
func (h *QueueHandler) Export(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	names := make([]string, 0, len(req.VMNames))
	for _, name := range req.VMNames {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		writeError(w, http.StatusBadRequest, "No VMs selected")
		return
	}

	poweroff := true
	if req.PoweroffBeforeExport != nil {
		poweroff = *req.PoweroffBeforeExport
	}

	now := h.now()
	timestamp := now.Format("20060102_150405")
	dir := filepath.Join(h.downloadDir, now.Format("20060102"))

	jobs := make([]domain.JobRecord, len(names))
	for i, name := range names {
		zero := 0.0
		jobs[i] = domain.JobRecord{
			VMName:         name,
			Status:         domain.JobStatusPending,
			Progress:       &zero,
			PoweroffBefore: poweroff,
			DownloadDir:    dir,
			Timestamp:      timestamp,
		}
	}

	pending, err := h.queue.Enqueue(r.Context(), jobs)
	if err != nil {
		h.logger.Error("failed to enqueue exports", "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error: %v", err))
		return
	}

	h.logger.Info("exports queued", "vms", len(names), "poweroff_before", poweroff, "queue_size", pending)
	writeJSON(w, http.StatusOK, ExportResponse{
		envelope:  ok(fmt.Sprintf("%d VM(s) added to the queue", len(names))),
		QueueSize: pending,
	})
}

// Cancel handles POST /api/cancel.
func (h *QueueHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	dropped, err := h.queue.Cancel(r.Context())
	if err != nil {
		h.logger.Error("failed to cancel exports", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info("export queue cancelled", "dropped", dropped)
	writeJSON(w, http.StatusOK, ok("Download cancelled"))
}

// Status handles GET /api/status.
func (h *QueueHandler) Status(w http.ResponseWriter, r *http.Request) {
	snap, err := h.queue.Snapshot(r.Context(), h.historyLimit)
	if err != nil {
		h.logger.Error("failed to read export queue", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		envelope:        ok(""),
		CurrentDownload: snap.Current,
		Queue:           snap.Queue,
		QueueSize:       snap.QueueSize,
		History:         snap.History,
	})
}
