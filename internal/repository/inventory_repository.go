package repository

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/iconidentify/ovagrab/internal/domain"
)

// NotAvailable marks a VM attribute the hypervisor did not report. Such
// values are never offered as filter options.
const NotAvailable = "N/A"

// InventoryFile is the YAML layout of an inventory fixture.
type InventoryFile struct {
	VMs []domain.VirtualMachine `yaml:"vms"`
}

// InMemoryInventoryRepository implements InventoryRepository over a fixed
// list of VMs.
type InMemoryInventoryRepository struct {
	mu  sync.RWMutex
	vms []domain.VirtualMachine
}

// NewInMemoryInventoryRepository creates a repository holding vms.
func NewInMemoryInventoryRepository(vms []domain.VirtualMachine) *InMemoryInventoryRepository {
	return &InMemoryInventoryRepository{vms: slices.Clone(vms)}
}

// LoadInventory reads an inventory fixture. An empty path yields the
// built-in sample inventory.
func LoadInventory(path string) (*InMemoryInventoryRepository, error) {
	if path == "" {
		return NewInMemoryInventoryRepository(SampleInventory()), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inventory file: %w", err)
	}

	var file InventoryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse inventory file: %w", err)
	}

	seen := make(map[string]bool, len(file.VMs))
	for i, vm := range file.VMs {
		if vm.Name == "" {
			return nil, fmt.Errorf("inventory entry %d has no name", i)
		}
		if seen[vm.Name] {
			return nil, fmt.Errorf("duplicate vm name %q", vm.Name)
		}
		seen[vm.Name] = true
	}

	return NewInMemoryInventoryRepository(file.VMs), nil
}

// List returns the VMs matching filter, in inventory order.
func (r *InMemoryInventoryRepository) List(ctx context.Context, filter domain.FilterState) ([]domain.VirtualMachine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.VirtualMachine, 0, len(r.vms))
	for _, vm := range r.vms {
		if filter.Matches(vm) {
			result = append(result, vm)
		}
	}
	return result, nil
}

// Options returns the sorted distinct values of the whole inventory.
// Unknown hosts, clusters and folders are left out; power states are not.
func (r *InMemoryInventoryRepository) Options(ctx context.Context) (domain.FilterOptions, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var hosts, clusters, states, folders []string
	for _, vm := range r.vms {
		hosts = appendKnown(hosts, vm.Host)
		clusters = appendKnown(clusters, vm.Cluster)
		folders = appendKnown(folders, vm.Folder)
		states = append(states, vm.PowerState)
	}

	return domain.FilterOptions{
		Hosts:       distinct(hosts),
		Clusters:    distinct(clusters),
		PowerStates: distinct(states),
		Folders:     distinct(folders),
	}, nil
}

// Get retrieves a VM by name.
func (r *InMemoryInventoryRepository) Get(ctx context.Context, name string) (domain.VirtualMachine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, vm := range r.vms {
		if vm.Name == name {
			return vm, nil
		}
	}
	return domain.VirtualMachine{}, domain.ErrVMNotFound
}

// SetPowerState changes a VM's power state.
func (r *InMemoryInventoryRepository) SetPowerState(ctx context.Context, name, state string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.vms {
		if r.vms[i].Name == name {
			r.vms[i].PowerState = state
			return nil
		}
	}
	return domain.ErrVMNotFound
}

func appendKnown(values []string, v string) []string {
	if v == "" || v == NotAvailable {
		return values
	}
	return append(values, v)
}

func distinct(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	out = slices.Compact(out)
	if out == nil {
		out = []string{}
	}
	return out
}

// SampleInventory returns a small demo inventory.
func SampleInventory() []domain.VirtualMachine {
	return []domain.VirtualMachine{
		{Name: "web01", PowerState: "poweredOn", Host: "esx01.lab.local", Cluster: "prod", Folder: "web", NumCPU: 2, MemoryMB: 4096, StorageGB: 40, GuestOS: "Ubuntu Linux (64-bit)"},
		{Name: "web02", PowerState: "poweredOn", Host: "esx02.lab.local", Cluster: "prod", Folder: "web", NumCPU: 2, MemoryMB: 4096, StorageGB: 40, GuestOS: "Ubuntu Linux (64-bit)"},
		{Name: "db01", PowerState: "poweredOn", Host: "esx01.lab.local", Cluster: "prod", Folder: "databases", NumCPU: 8, MemoryMB: 32768, StorageGB: 500, GuestOS: "Red Hat Enterprise Linux 9 (64-bit)", Annotation: "primary postgres"},
		{Name: "app01", PowerState: "poweredOff", Host: "esx03.lab.local", Cluster: "dev", Folder: "apps", NumCPU: 4, MemoryMB: 8192, StorageGB: 120.5, GuestOS: "Microsoft Windows Server 2022 (64-bit)"},
		{Name: "build01", PowerState: "suspended", Host: "esx03.lab.local", Cluster: "dev", Folder: "ci", NumCPU: 16, MemoryMB: 65536, StorageGB: 250, GuestOS: "Debian GNU/Linux 12 (64-bit)"},
		{Name: "legacy01", PowerState: "poweredOff", Host: NotAvailable, Cluster: NotAvailable, Folder: NotAvailable, NumCPU: 1, MemoryMB: 1024, StorageGB: 16, GuestOS: NotAvailable},
	}
}
