// Package camera acquires capture devices and exposes their frames.
package camera

import (
	"context"
	"errors"
	"image"

	"github.com/plantlight/luxmeter"
)

// ErrDeviceLost is returned by Source.Frame when the capture stopped while
// the source was still open.
var ErrDeviceLost = errors.New("capture device lost")

// Source is an open capture device, handing out its most recent frame.
type Source interface {
	// Frame returns the latest frame. It never blocks: if no frame has been
	// captured yet, ok is false. After the device is lost, err is set.
	Frame() (img image.Image, ok bool, err error)

	// Close stops capturing and releases the device. Close is idempotent.
	Close() error
}

// Sources can be sampled directly.
var _ luxmeter.FrameSource = (Source)(nil)

// Driver lists and opens devices of one capture backend.
type Driver interface {
	// Name identifies the driver, eg "ffmpeg".
	Name() string

	// ListDevices returns the devices that can be opened. It returns an
	// error if no devices are available.
	ListDevices() ([]Device, error)

	// Open starts capturing from dev. Errors matching fs.ErrPermission or
	// luxmeter.ErrPermissionDenied indicate access was refused.
	Open(ctx context.Context, dev Device) (Source, error)
}
