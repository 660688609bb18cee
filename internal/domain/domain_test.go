package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

// =============================================================================
// Job Tests
// =============================================================================

func ptr(f float64) *float64 {
	return &f
}

func TestJobStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status JobStatus
		want   bool
	}{
		{JobStatusPending, false},
		{JobStatusProcessing, false},
		{JobStatusPoweringOff, false},
		{JobStatusDownloading, false},
		{JobStatusCompleted, true},
		{JobStatusFailed, true},
		{JobStatusCancelled, true},
		{JobStatus("archived"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.want {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJobStatus_IsActive(t *testing.T) {
	active := []JobStatus{JobStatusProcessing, JobStatusPoweringOff, JobStatusDownloading, JobStatusRunning}
	for _, s := range active {
		if !s.IsActive() {
			t.Errorf("%s should be active", s)
		}
	}
	for _, s := range []JobStatus{JobStatusPending, JobStatusQueued, JobStatusCompleted, JobStatus("other")} {
		if s.IsActive() {
			t.Errorf("%s should not be active", s)
		}
	}
}

func TestJobRecord_Percent(t *testing.T) {
	tests := []struct {
		name     string
		progress *float64
		want     int
	}{
		{"missing", nil, 0},
		{"zero", ptr(0), 0},
		{"fraction", ptr(42.7), 42},
		{"negative", ptr(-3), 0},
		{"over", ptr(130), 100},
		{"nan", ptr(math.NaN()), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := JobRecord{Progress: tt.progress}
			if got := j.Percent(); got != tt.want {
				t.Errorf("Percent() = %d, want %d", got, tt.want)
			}
			if j.HasProgress() != (tt.progress != nil) {
				t.Errorf("HasProgress() = %v", j.HasProgress())
			}
		})
	}
}

func TestJobRecord_Detail(t *testing.T) {
	tests := []struct {
		job  JobRecord
		want string
	}{
		{JobRecord{Status: JobStatusCompleted, FilePath: "/x/a.ova", Message: "done"}, "/x/a.ova"},
		{JobRecord{Status: JobStatusFailed, Error: "boom"}, "boom"},
		{JobRecord{Status: JobStatusDownloading, Message: "50%"}, "50%"},
	}

	for _, tt := range tests {
		if got := tt.job.Detail(); got != tt.want {
			t.Errorf("Detail() = %q, want %q", got, tt.want)
		}
	}
}

func TestJobRecord_UnknownFieldsTolerated(t *testing.T) {
	data := `{"vm_name":"web01","status":"exporting","progress":12.5,"extra":"ignored"}`

	var j JobRecord
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if j.Status != JobStatus("exporting") {
		t.Errorf("unknown status should be kept verbatim, got %q", j.Status)
	}
	if j.Percent() != 12 {
		t.Errorf("Percent() = %d", j.Percent())
	}
}

func TestQueueSnapshot_IsIdle(t *testing.T) {
	if !(QueueSnapshot{}).IsIdle() {
		t.Error("empty snapshot should be idle")
	}
	if (QueueSnapshot{Current: &JobRecord{VMName: "a"}}).IsIdle() {
		t.Error("snapshot with a current job should not be idle")
	}
	if (QueueSnapshot{Queue: []JobRecord{{VMName: "a"}}}).IsIdle() {
		t.Error("snapshot with a queue should not be idle")
	}
	idleWithHistory := QueueSnapshot{History: []JobRecord{{VMName: "a", Status: JobStatusCompleted}}}
	if !idleWithHistory.IsIdle() {
		t.Error("history alone should not make a snapshot busy")
	}
}

func TestQueueSnapshot_Clone(t *testing.T) {
	orig := QueueSnapshot{
		Current:   &JobRecord{VMName: "db01", Progress: ptr(40)},
		Queue:     []JobRecord{{VMName: "web01"}},
		History:   []JobRecord{{VMName: "app01", Progress: ptr(100)}},
		QueueSize: 1,
	}

	clone := orig.Clone()
	*clone.Current.Progress = 90
	clone.Current.VMName = "changed"
	clone.Queue[0].VMName = "changed"
	*clone.History[0].Progress = 0

	if orig.Current.VMName != "db01" || *orig.Current.Progress != 40 {
		t.Errorf("current aliased: %+v", orig.Current)
	}
	if orig.Queue[0].VMName != "web01" {
		t.Error("queue aliased")
	}
	if *orig.History[0].Progress != 100 {
		t.Error("history progress aliased")
	}
	if clone.QueueSize != 1 {
		t.Errorf("QueueSize = %d", clone.QueueSize)
	}
}

// =============================================================================
// VM and Filter Tests
// =============================================================================

func TestVirtualMachine_MemoryGB(t *testing.T) {
	vm := VirtualMachine{MemoryMB: 6144}
	if got := vm.MemoryGB(); got != 6 {
		t.Errorf("MemoryGB() = %v, want 6", got)
	}
}

func TestParseFilterDimension(t *testing.T) {
	tests := []struct {
		in      string
		want    FilterDimension
		wantErr bool
	}{
		{"host", FilterHost, false},
		{" Cluster ", FilterCluster, false},
		{"power_state", FilterPowerState, false},
		{"folder", FilterFolder, false},
		{"datastore", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFilterDimension(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnknownDimension) {
				t.Errorf("error should wrap ErrUnknownDimension: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilterState_WithAndParams(t *testing.T) {
	var f FilterState
	if !f.IsEmpty() {
		t.Error("zero filter should be empty")
	}

	f, err := f.With(FilterHost, "esx01")
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}
	f, _ = f.With(FilterPowerState, "poweredOn")

	params := f.Params()
	if len(params) != 2 || params["host"] != "esx01" || params["power_state"] != "poweredOn" {
		t.Errorf("Params() = %v", params)
	}
	if f.IsEmpty() {
		t.Error("filter should not be empty")
	}

	if _, err := f.With(FilterDimension("bogus"), "x"); !errors.Is(err, ErrUnknownDimension) {
		t.Errorf("With(bogus) error = %v", err)
	}
}

func TestFilterState_Matches(t *testing.T) {
	vm := VirtualMachine{Name: "web01", Host: "esx01", Cluster: "prod", PowerState: "poweredOn", Folder: "web"}

	tests := []struct {
		name   string
		filter FilterState
		want   bool
	}{
		{"empty", FilterState{}, true},
		{"host match", FilterState{Host: "esx01"}, true},
		{"host mismatch", FilterState{Host: "esx02"}, false},
		{"all match", FilterState{Host: "esx01", Cluster: "prod", PowerState: "poweredOn", Folder: "web"}, true},
		{"one mismatch", FilterState{Host: "esx01", Folder: "db"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(vm); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterOptions_ValuesAndClone(t *testing.T) {
	opts := FilterOptions{
		Hosts:       []string{"esx01"},
		Clusters:    []string{"prod"},
		PowerStates: []string{"poweredOn"},
		Folders:     []string{"web"},
	}

	for _, dim := range FilterDimensions {
		if len(opts.Values(dim)) != 1 {
			t.Errorf("Values(%s) = %v", dim, opts.Values(dim))
		}
	}

	clone := opts.Clone()
	clone.Hosts[0] = "changed"
	if opts.Hosts[0] != "esx01" {
		t.Error("Clone() aliased the host list")
	}
}

// =============================================================================
// Error Tests
// =============================================================================

func TestOpError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewOpError(ErrFetch, "list vms", "", cause)

	if !errors.Is(err, ErrFetch) {
		t.Error("should match its kind")
	}
	if errors.Is(err, ErrSubmit) {
		t.Error("should not match another kind")
	}
	if !errors.Is(err, cause) {
		t.Error("should unwrap to the cause")
	}
	if got := err.Error(); got != "list vms: dial tcp: connection refused" {
		t.Errorf("Error() = %q", got)
	}
	if got := UserMessage(err); got != "dial tcp: connection refused" {
		t.Errorf("UserMessage() = %q", got)
	}
}

func TestOpError_KeepsServerMessage(t *testing.T) {
	err := NewOpError(ErrConnect, "connect", "Could not connect to vCenter. Check the credentials.", errors.New("401"))

	if got := UserMessage(err); got != "Could not connect to vCenter. Check the credentials." {
		t.Errorf("UserMessage() = %q", got)
	}

	wrapped := errors.Join(errors.New("context"), err)
	if !errors.Is(wrapped, ErrConnect) {
		t.Error("kind should survive wrapping")
	}
}

func TestUserMessage_PlainErrors(t *testing.T) {
	if UserMessage(nil) != "" {
		t.Error("nil error should have no message")
	}
	if got := UserMessage(ErrNotConnected); got != "not connected" {
		t.Errorf("UserMessage() = %q", got)
	}
}
