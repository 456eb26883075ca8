// Package ffmpeg implements a camera driver using ffmpeg and v4l2 on Linux.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/plantlight/luxmeter"
	"github.com/plantlight/luxmeter/camera"
)

var errInstallHint = errors.New("executable not found, install with: sudo apt install -y ffmpeg v4l-utils")

// DriverOpts has options for the ffmpeg driver.
type DriverOpts struct {
	Verbose  bool          // Pass ffmpeg output through to stderr.
	Interval time.Duration // How often to capture a frame.
}

// Driver captures frames by running ffmpeg against a v4l2 device.
type Driver struct {
	opts DriverOpts
}

// Check that Driver implements interface camera.Driver.
var _ camera.Driver = (*Driver)(nil)

// NewDriver returns an ffmpeg driver. A zero interval captures 10 frames per
// second.
func NewDriver(opts DriverOpts) *Driver {
	if opts.Interval <= 0 {
		opts.Interval = 100 * time.Millisecond
	}
	return &Driver{opts}
}

// Name returns "ffmpeg".
func (d *Driver) Name() string {
	return "ffmpeg"
}

// ListDevices returns a list of devices that can be used for recording.
// ListDevices returns an error if no devices are available.
func (d *Driver) ListDevices() ([]camera.Device, error) {
	cmd := exec.Command("v4l2-ctl", "--list-devices")
	buf, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			err = errInstallHint
		}
		return nil, fmt.Errorf("listing devices using v4l2-ctl: %v", err)
	}
	return parseDevices(string(buf))
}

// parseDevices parses the output of "v4l2-ctl --list-devices": a card name,
// followed by its device paths indented with a tab.
func parseDevices(s string) ([]camera.Device, error) {
	var card string
	devices := []camera.Device{}
	for _, line := range strings.Split(s, "\n") {
		if !strings.HasPrefix(line, "\t") {
			card = strings.TrimSuffix(strings.TrimSpace(line), ":")
			continue
		}
		if card == "" || strings.HasPrefix(card, "bcm2835-") {
			continue
		}
		path := strings.TrimSpace(line)
		if !strings.HasPrefix(path, "/dev/video") {
			continue
		}
		devices = append(devices, camera.Device{
			Name:   fmt.Sprintf("%s (%s)", card, path),
			ID:     path,
			Facing: camera.GuessFacing(card),
		})
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no devices available")
	}
	return devices, nil
}

// Open starts ffmpeg capturing from dev into a temporary directory. If the
// device node cannot be opened for lack of permission, the returned error
// matches fs.ErrPermission.
func (d *Driver) Open(ctx context.Context, dev camera.Device) (camera.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Check access first, ffmpeg would only report it on its stderr.
	f, err := os.Open(dev.ID)
	if err != nil {
		return nil, fmt.Errorf("checking device access: %w", err)
	}
	f.Close()

	tempDir, err := luxmeter.TempDir()
	if err != nil {
		return nil, fmt.Errorf("making temp dir: %v", err)
	}
	log.Debug().Str("dir", tempDir).Msg("ffmpeg writing frames to tempdir")

	args := []string{
		"-framerate", fmt.Sprintf("%d", max(1, int(time.Second/d.opts.Interval))),
		"-video_size", "640x480",
		"-c:v", "mjpeg",
		"-i", dev.ID,
		"-f", "image2",
		"-c:v", "copy",
		"-bsf:v", "mjpeg2jpeg",
		"-qscale:v", "2",
		"frame%d.jpg",
	}
	log.Debug().Strs("args", args).Msg("starting ffmpeg")

	cctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(cctx, "ffmpeg", args...)
	cmd.Dir = tempDir
	if d.opts.Verbose {
		cmd.Stdout = os.Stderr
		cmd.Stderr = os.Stderr
	}
	src, err := camera.NewDirSource(tempDir, cmd, cancel)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			err = errInstallHint
		}
		return nil, fmt.Errorf("starting ffmpeg: %w", err)
	}
	return src, nil
}
