package domain

import (
	"math"
	"time"
)

// JobStatus represents the state of one VM export as reported by the backend.
// Statuses the client does not know about are kept verbatim.
type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusQueued      JobStatus = "queued"
	JobStatusProcessing  JobStatus = "processing"
	JobStatusPoweringOff JobStatus = "powering_off"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusRunning     JobStatus = "running"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
	JobStatusCancelled   JobStatus = "cancelled"
)

// String returns the string representation of the JobStatus.
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the job will not change state again.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// IsActive reports whether the backend is working on the job right now.
func (s JobStatus) IsActive() bool {
	switch s {
	case JobStatusProcessing, JobStatusPoweringOff, JobStatusDownloading, JobStatusRunning:
		return true
	}
	return false
}

// JobRecord is one VM's export task as reported by /api/status.
// Optional fields are zero when the backend omits them.
type JobRecord struct {
	VMName         string    `json:"vm_name"`
	Status         JobStatus `json:"status"`
	Progress       *float64  `json:"progress,omitempty"`
	Message        string    `json:"message,omitempty"`
	FilePath       string    `json:"file_path,omitempty"`
	Error          string    `json:"error,omitempty"`
	PoweroffBefore bool      `json:"poweroff_before,omitempty"`
	DownloadDir    string    `json:"download_dir,omitempty"`
	Timestamp      string    `json:"timestamp,omitempty"`
}

// Percent returns the progress clamped to 0..100, or 0 when unknown.
func (j JobRecord) Percent() int {
	if j.Progress == nil || math.IsNaN(*j.Progress) {
		return 0
	}
	p := *j.Progress
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return int(p)
}

// HasProgress reports whether the backend sent a progress value.
func (j JobRecord) HasProgress() bool {
	return j.Progress != nil
}

// Detail returns the outcome line shown for a finished job: the file path of a
// completed export or the error of a failed one.
func (j JobRecord) Detail() string {
	switch j.Status {
	case JobStatusCompleted:
		return j.FilePath
	case JobStatusFailed:
		return j.Error
	}
	return j.Message
}

// QueueSnapshot is the backend's view of the export queue at one instant.
// It is always replaced as a whole, never patched.
type QueueSnapshot struct {
	Current   *JobRecord
	Queue     []JobRecord
	History   []JobRecord
	QueueSize int
	FetchedAt time.Time
}

// IsIdle reports whether nothing is running or waiting.
func (s QueueSnapshot) IsIdle() bool {
	return s.Current == nil && len(s.Queue) == 0
}

// Clone returns a deep copy so callers cannot alias the poller's state.
func (s QueueSnapshot) Clone() QueueSnapshot {
	out := QueueSnapshot{
		QueueSize: s.QueueSize,
		FetchedAt: s.FetchedAt,
		Queue:     cloneJobs(s.Queue),
		History:   cloneJobs(s.History),
	}
	if s.Current != nil {
		cur := s.Current.clone()
		out.Current = &cur
	}
	return out
}

func (j JobRecord) clone() JobRecord {
	if j.Progress != nil {
		p := *j.Progress
		j.Progress = &p
	}
	return j
}

func cloneJobs(jobs []JobRecord) []JobRecord {
	out := make([]JobRecord, len(jobs))
	for i, j := range jobs {
		out[i] = j.clone()
	}
	return out
}
