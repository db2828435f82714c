package session

import (
	"errors"
	"fmt"

	"prompter/audio"
)

var (
	ErrPermissionDenied  = errors.New("microphone permission denied")
	ErrNoDevice          = errors.New("no capture device available")
	ErrDeviceDisappeared = errors.New("capture device disappeared")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrNoArtifact        = errors.New("no recording to save or discard")
	ErrCancelled         = errors.New("acquisition cancelled")
	ErrClosed            = errors.New("session closed")
)

// CaptureError reports a failed acquisition or a lost device. Kind is one
// of ErrPermissionDenied, ErrNoDevice or ErrDeviceDisappeared; errors.Is
// matches both Kind and the underlying backend error.
type CaptureError struct {
	Op     string
	Device string
	Kind   error
	Err    error
}

func (e *CaptureError) Error() string {
	dev := e.Device
	if dev == "" {
		dev = "default input"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, dev, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, dev, e.Kind, e.Err)
}

func (e *CaptureError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func captureError(op, device string, err error) *CaptureError {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce
	}
	kind := ErrNoDevice
	if errors.Is(err, audio.ErrPermissionDenied) {
		kind = ErrPermissionDenied
	}
	return &CaptureError{Op: op, Device: device, Kind: kind, Err: err}
}

// TransitionError is returned when a command is issued in a state that
// does not accept it. It matches ErrInvalidTransition.
type TransitionError struct {
	Op   string
	From Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %v from %s", e.Op, ErrInvalidTransition, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
