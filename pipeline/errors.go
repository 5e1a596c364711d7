package pipeline

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAlreadyActive     = errors.New("session already active")
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	ErrBackendStream     = errors.New("backend stream failed")
	ErrStopTimeout       = errors.New("stop timed out")
)

type AlreadyActiveError struct {
	SessionID string
}

func (e *AlreadyActiveError) Error() string {
	return fmt.Sprintf("session %s already active", e.SessionID)
}

func (e *AlreadyActiveError) Unwrap() error { return ErrAlreadyActive }

type DeviceUnavailableError struct {
	Err error
}

func (e *DeviceUnavailableError) Error() string {
	return fmt.Sprintf("audio device unavailable: %v", e.Err)
}

func (e *DeviceUnavailableError) Unwrap() []error { return []error{ErrDeviceUnavailable, e.Err} }

type BackendStreamError struct {
	Backend string
	Err     error
}

func (e *BackendStreamError) Error() string {
	return fmt.Sprintf("%s stream: %v", e.Backend, e.Err)
}

func (e *BackendStreamError) Unwrap() []error { return []error{ErrBackendStream, e.Err} }

// StopTimeoutError is a warning: the backend stream was abandoned but the
// audio device was released.
type StopTimeoutError struct {
	Timeout time.Duration
}

func (e *StopTimeoutError) Error() string {
	return fmt.Sprintf("backend did not finish within %s, stream abandoned", e.Timeout)
}

func (e *StopTimeoutError) Unwrap() error { return ErrStopTimeout }
