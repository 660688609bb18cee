package domain

import "errors"

// Error kinds. An *OpError matches its kind with errors.Is.
var (
	// ErrConnect is returned when a session could not be opened.
	ErrConnect = errors.New("connect failed")

	// ErrDisconnect is returned when the backend refused to close the session.
	ErrDisconnect = errors.New("disconnect failed")

	// ErrFetch is returned when inventory or queue status could not be read.
	ErrFetch = errors.New("fetch failed")

	// ErrSubmit is returned when an export, cancel or power-off request was rejected.
	ErrSubmit = errors.New("submit failed")
)

// Domain errors.
var (
	// ErrNotConnected is returned when an operation needs an open session.
	ErrNotConnected = errors.New("not connected")

	// ErrEmptySelection is returned when an export names no VMs.
	ErrEmptySelection = errors.New("no VMs selected")

	// ErrUnknownDimension is returned for a filter dimension that does not exist.
	ErrUnknownDimension = errors.New("unknown filter dimension")

	// ErrMissingCredentials is returned when host, username or password is empty.
	ErrMissingCredentials = errors.New("host, username and password are required")

	// ErrPollerStopped is returned by an on-demand poll when polling is off.
	ErrPollerStopped = errors.New("poller is stopped")

	// ErrPollInFlight is returned when a poll is already running.
	ErrPollInFlight = errors.New("status poll already in flight")
)

// Simulator errors.
var (
	ErrNoJobs       = errors.New("no pending jobs")
	ErrNoCurrentJob = errors.New("no export in progress")
	ErrVMNotFound   = errors.New("vm not found")
)

// OpError carries the operation, its error kind and the human-readable message
// that should reach the operator unchanged.
type OpError struct {
	Kind    error
	Op      string
	Message string
	Err     error
}

func (e *OpError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Is matches the error kind.
func (e *OpError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// NewOpError creates an OpError. When message is empty the cause's text is used.
func NewOpError(kind error, op, message string, err error) *OpError {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &OpError{
		Kind:    kind,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// UserMessage returns the text to show the operator for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var opErr *OpError
	if errors.As(err, &opErr) && opErr.Message != "" {
		return opErr.Message
	}
	return err.Error()
}
