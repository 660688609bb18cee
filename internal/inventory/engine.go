// Package inventory holds the VM inventory and the filter that narrows it.
package inventory

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/iconidentify/ovagrab/internal/domain"
	"github.com/iconidentify/ovagrab/pkg/ovaclient"
)

// Lister fetches the inventory for a filter.
type Lister interface {
	ListVMs(ctx context.Context, filter domain.FilterState) (*ovaclient.ListVMsResponse, error)
}

// RefreshResult describes a successful refresh.
type RefreshResult struct {
	VMs     []domain.VirtualMachine
	Options domain.FilterOptions
	Total   int
	// Filters is the filter in effect after the refresh.
	Filters domain.FilterState
	// Cleared lists dimensions whose value disappeared from the option sets
	// and fell back to no constraint.
	Cleared []domain.FilterDimension
}

// Engine owns the filter state, the last-good VM collection and the option
// sets. Collections are replaced wholesale, never patched.
type Engine struct {
	lister Lister
	logger *slog.Logger

	// refreshMu serializes refreshes so two responses cannot interleave.
	refreshMu sync.Mutex

	mu      sync.RWMutex
	filters domain.FilterState
	vms     []domain.VirtualMachine
	options domain.FilterOptions
	loaded  bool
	// gen is bumped by Reset. A refresh started under an older generation
	// is dropped when it returns.
	gen uint64
}

// NewEngine creates a new inventory engine.
func NewEngine(lister Lister, logger *slog.Logger) *Engine {
	return &Engine{
		lister: lister,
		logger: logger,
		vms:    []domain.VirtualMachine{},
	}
}

// SetFilter changes one dimension. An empty value removes the constraint.
func (e *Engine) SetFilter(dim domain.FilterDimension, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := e.filters.With(dim, strings.TrimSpace(value))
	if err != nil {
		return err
	}
	e.filters = next
	return nil
}

// ClearFilters removes every constraint.
func (e *Engine) ClearFilters() {
	e.mu.Lock()
	e.filters = domain.FilterState{}
	e.mu.Unlock()
}

// Refresh queries the service with the current filter and replaces the VM
// collection and the option sets. On failure nothing is changed. A response
// that arrives after Reset is dropped and reported as domain.ErrNotConnected.
func (e *Engine) Refresh(ctx context.Context) (RefreshResult, error) {
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	e.mu.RLock()
	filters := e.filters
	gen := e.gen
	e.mu.RUnlock()

	resp, err := e.lister.ListVMs(ctx, filters)
	if e.generation() != gen {
		e.logger.Debug("dropping inventory response, inventory was reset", "error", err)
		return RefreshResult{}, domain.NewOpError(domain.ErrFetch, "list vms", "", domain.ErrNotConnected)
	}
	if err != nil {
		e.logger.Warn("inventory refresh failed", "filters", filters.Params(), "error", err)
		return RefreshResult{}, domain.NewOpError(domain.ErrFetch, "list vms", ovaclient.Message(err), err)
	}

	vms := slices.Clone(resp.VMs)
	if vms == nil {
		vms = []domain.VirtualMachine{}
	}
	options := resp.FilterOptions.Clone()

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		e.logger.Debug("dropping inventory response, inventory was reset")
		return RefreshResult{}, domain.NewOpError(domain.ErrFetch, "list vms", "", domain.ErrNotConnected)
	}
	// The filter may have been changed while the request was in flight; the
	// reconciliation applies to the current state.
	current := e.filters
	var cleared []domain.FilterDimension
	for _, dim := range domain.FilterDimensions {
		v := current.Get(dim)
		if v == "" || slices.Contains(options.Values(dim), v) {
			continue
		}
		current, _ = current.With(dim, "")
		cleared = append(cleared, dim)
	}
	e.filters = current
	e.vms = vms
	e.options = options
	e.loaded = true
	e.mu.Unlock()

	if len(cleared) > 0 {
		e.logger.Info("filter values no longer offered, cleared", "dimensions", cleared)
	}
	e.logger.Debug("inventory refreshed", "vms", len(vms), "filters", filters.Params())

	total := resp.Total
	if total == 0 {
		total = len(vms)
	}

	return RefreshResult{
		VMs:     slices.Clone(vms),
		Options: options.Clone(),
		Total:   total,
		Filters: current,
		Cleared: cleared,
	}, nil
}

// Reset forgets the inventory, options and filters.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.filters = domain.FilterState{}
	e.vms = []domain.VirtualMachine{}
	e.options = domain.FilterOptions{}
	e.loaded = false
	e.gen++
}

func (e *Engine) generation() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.gen
}

// Filters returns the current filter.
func (e *Engine) Filters() domain.FilterState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.filters
}

// VMs returns a copy of the last-good VM collection.
func (e *Engine) VMs() []domain.VirtualMachine {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.vms)
}

// Names returns the names of the visible VMs in display order.
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.vms))
	for _, vm := range e.vms {
		names = append(names, vm.Name)
	}
	return names
}

// Options returns a copy of the option sets.
func (e *Engine) Options() domain.FilterOptions {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.options.Clone()
}

// Loaded reports whether at least one refresh has succeeded since the last reset.
func (e *Engine) Loaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loaded
}
