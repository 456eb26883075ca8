package luxmeter

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied means the user or OS refused access to the camera.
	ErrPermissionDenied = errors.New("camera permission denied")

	// ErrDeviceUnavailable means no compatible camera exists, or opening it failed.
	ErrDeviceUnavailable = errors.New("camera unavailable")

	// ErrEmptySample means a raster produced zero sampled pixels.
	ErrEmptySample = errors.New("no pixels sampled")
)

// AcquisitionError is returned when a capture device cannot be acquired.
// Reason is ErrPermissionDenied or ErrDeviceUnavailable, Err the underlying
// cause if any.
type AcquisitionError struct {
	Reason error
	Err    error
}

func (e *AcquisitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("acquiring camera: %v", e.Reason)
	}
	return fmt.Sprintf("acquiring camera: %v: %v", e.Reason, e.Err)
}

// Unwrap lets errors.Is match both the reason and the cause.
func (e *AcquisitionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

// PermissionDenied reports whether the acquisition was refused rather than
// failing for lack of hardware.
func (e *AcquisitionError) PermissionDenied() bool {
	return errors.Is(e.Reason, ErrPermissionDenied)
}

// SamplingError is returned when luminance cannot be estimated from a raster.
type SamplingError struct {
	Reason error // Always ErrEmptySample for now.
	Stride int
	Pixels int
}

func (e *SamplingError) Error() string {
	return fmt.Sprintf("sampling raster of %d pixels with stride %d: %v", e.Pixels, e.Stride, e.Reason)
}

func (e *SamplingError) Unwrap() error {
	return e.Reason
}

// Ensure both types implement the error interface.
var (
	_ error = (*AcquisitionError)(nil)
	_ error = (*SamplingError)(nil)
)
