package domain

import (
	"fmt"
	"slices"
	"strings"
)

// VirtualMachine is a read-only record of one VM as reported by /api/vms.
// Name is assumed to be globally unique.
type VirtualMachine struct {
	Name       string  `json:"name" yaml:"name"`
	PowerState string  `json:"power_state" yaml:"power_state"`
	Host       string  `json:"host" yaml:"host"`
	Cluster    string  `json:"cluster" yaml:"cluster"`
	Folder     string  `json:"folder" yaml:"folder"`
	NumCPU     int     `json:"num_cpu" yaml:"num_cpu"`
	MemoryMB   int     `json:"memory_mb" yaml:"memory_mb"`
	StorageGB  float64 `json:"storage_gb" yaml:"storage_gb"`
	GuestOS    string  `json:"guest_os" yaml:"guest_os"`
	Annotation string  `json:"annotation,omitempty" yaml:"annotation,omitempty"`
}

// MemoryGB returns the configured memory in GiB.
func (vm VirtualMachine) MemoryGB() float64 {
	return float64(vm.MemoryMB) / 1024
}

// FilterDimension names one axis of the inventory filter.
type FilterDimension string

const (
	FilterHost       FilterDimension = "host"
	FilterCluster    FilterDimension = "cluster"
	FilterPowerState FilterDimension = "power_state"
	FilterFolder     FilterDimension = "folder"
)

// FilterDimensions lists every dimension in query order.
var FilterDimensions = []FilterDimension{FilterHost, FilterCluster, FilterPowerState, FilterFolder}

// ParseFilterDimension validates a dimension name.
func ParseFilterDimension(s string) (FilterDimension, error) {
	d := FilterDimension(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(FilterDimensions, d) {
		return "", fmt.Errorf("%w: %q", ErrUnknownDimension, s)
	}
	return d, nil
}

// FilterState holds the current inventory filter. An empty value means no
// constraint on that dimension.
type FilterState struct {
	Host       string
	Cluster    string
	PowerState string
	Folder     string
}

// Get returns the value of one dimension.
func (f FilterState) Get(dim FilterDimension) string {
	switch dim {
	case FilterHost:
		return f.Host
	case FilterCluster:
		return f.Cluster
	case FilterPowerState:
		return f.PowerState
	case FilterFolder:
		return f.Folder
	}
	return ""
}

// With returns a copy with one dimension replaced.
func (f FilterState) With(dim FilterDimension, value string) (FilterState, error) {
	switch dim {
	case FilterHost:
		f.Host = value
	case FilterCluster:
		f.Cluster = value
	case FilterPowerState:
		f.PowerState = value
	case FilterFolder:
		f.Folder = value
	default:
		return f, fmt.Errorf("%w: %q", ErrUnknownDimension, dim)
	}
	return f, nil
}

// Params returns the non-empty dimensions keyed by their query parameter name.
func (f FilterState) Params() map[string]string {
	params := make(map[string]string, len(FilterDimensions))
	for _, dim := range FilterDimensions {
		if v := f.Get(dim); v != "" {
			params[string(dim)] = v
		}
	}
	return params
}

// IsEmpty reports whether no dimension is constrained.
func (f FilterState) IsEmpty() bool {
	return f == FilterState{}
}

// Matches reports whether vm satisfies every constrained dimension.
func (f FilterState) Matches(vm VirtualMachine) bool {
	return (f.Host == "" || vm.Host == f.Host) &&
		(f.Cluster == "" || vm.Cluster == f.Cluster) &&
		(f.PowerState == "" || vm.PowerState == f.PowerState) &&
		(f.Folder == "" || vm.Folder == f.Folder)
}

// FilterOptions are the distinct values observed in the unfiltered inventory.
type FilterOptions struct {
	Hosts       []string `json:"hosts"`
	Clusters    []string `json:"clusters"`
	PowerStates []string `json:"power_states"`
	Folders     []string `json:"folders"`
}

// Values returns the options for one dimension.
func (o FilterOptions) Values(dim FilterDimension) []string {
	switch dim {
	case FilterHost:
		return o.Hosts
	case FilterCluster:
		return o.Clusters
	case FilterPowerState:
		return o.PowerStates
	case FilterFolder:
		return o.Folders
	}
	return nil
}

// Clone returns a deep copy.
func (o FilterOptions) Clone() FilterOptions {
	return FilterOptions{
		Hosts:       slices.Clone(o.Hosts),
		Clusters:    slices.Clone(o.Clusters),
		PowerStates: slices.Clone(o.PowerStates),
		Folders:     slices.Clone(o.Folders),
	}
}
