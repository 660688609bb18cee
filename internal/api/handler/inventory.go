package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iconidentify/ovagrab/internal/domain"
	"github.com/iconidentify/ovagrab/internal/repository"
	"github.com/iconidentify/ovagrab/pkg/ovaclient"
)

// InventoryHandler serves the VM inventory and power operations.
type InventoryHandler struct {
	inventory repository.InventoryRepository
	logger    *slog.Logger
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(inventory repository.InventoryRepository, logger *slog.Logger) *InventoryHandler {
	return &InventoryHandler{
		inventory: inventory,
		logger:    logger,
	}
}

// ListVMsResponse is the response of GET /api/vms.
type ListVMsResponse struct {
	envelope
	ovaclient.ListVMsResponse
}

// List handles GET /api/vms. Filter options always describe the whole
// inventory, not the filtered result.
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.FilterState{
		Host:       q.Get(string(domain.FilterHost)),
		Cluster:    q.Get(string(domain.FilterCluster)),
		PowerState: q.Get(string(domain.FilterPowerState)),
		Folder:     q.Get(string(domain.FilterFolder)),
	}

	vms, err := h.inventory.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list vms", "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error getting VMs: %v", err))
		return
	}

	options, err := h.inventory.Options(r.Context())
	if err != nil {
		h.logger.Error("failed to compute filter options", "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error getting VMs: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, ListVMsResponse{
		envelope: ok(""),
		ListVMsResponse: ovaclient.ListVMsResponse{
			VMs:           vms,
			FilterOptions: options,
			Total:         len(vms),
		},
	})
}

// PowerOff handles POST /api/poweroff.
func (h *InventoryHandler) PowerOff(w http.ResponseWriter, r *http.Request) {
	var req ovaclient.PowerOffRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	name := strings.TrimSpace(req.VMName)
	if name == "" {
		writeError(w, http.StatusBadRequest, "VM name required")
		return
	}

	vm, err := h.inventory.Get(r.Context(), name)
	if errors.Is(err, domain.ErrVMNotFound) {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("VM not found: %s", name))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error powering off VM: %v", err))
		return
	}

	if vm.PowerState == "poweredOff" {
		writeJSON(w, http.StatusOK, ok(fmt.Sprintf("VM already powered off: %s", name)))
		return
	}

	if err := h.inventory.SetPowerState(r.Context(), name, "poweredOff"); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error powering off VM: %v", err))
		return
	}

	h.logger.Info("vm powered off", "vm", name)
	writeJSON(w, http.StatusOK, ok(fmt.Sprintf("VM powered off: %s", name)))
}
