// Package imagesnap implements a camera driver with the imagesnap command
// for macOS.
package imagesnap

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

var errInstallHint = errors.New("executable not found, install with: brew install imagesnap")

// DriverOpts has options for the imagesnap driver.
type DriverOpts struct {
	Verbose  bool          // Pass imagesnap output through to stderr.
	Interval time.Duration // How often to capture a frame.
}

// Driver captures frames by running imagesnap in time-lapse mode.
type Driver struct {
	opts DriverOpts
}

// Check that Driver implements interface camera.Driver.
var _ camera.Driver = (*Driver)(nil)

// NewDriver returns an imagesnap driver. imagesnap is slow to start a
// capture, a zero interval takes a frame every 250ms.
func NewDriver(opts DriverOpts) *Driver {
	if opts.Interval <= 0 {
		opts.Interval = 250 * time.Millisecond
	}
	return &Driver{opts}
}

// Name returns "imagesnap".
func (d *Driver) Name() string {
	return "imagesnap"
}

// ListDevices returns all image capturing devices available to imagesnap.
// ListDevices returns an error if no devices are available.
func (d *Driver) ListDevices() ([]camera.Device, error) {
	cmd := exec.Command("imagesnap", "-l")
	buf, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			err = errInstallHint
		}
		return nil, fmt.Errorf("listing devices with imagesnap -l: %v", err)
	}
	return parseDevices(string(buf))
}

func parseDevices(s string) ([]camera.Device, error) {
	devs := []camera.Device{}
	add := func(name string) {
		devs = append(devs, camera.Device{Name: name, ID: name, Facing: camera.GuessFacing(name)})
	}
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "=> ") {
			// Newer format, example: "=> FaceTime HD Camera (Built-in)"
			add(line[len("=> "):])
		} else if strings.HasPrefix(line, "<") {
			// Older format, example: "<AVCaptureDALDevice: 0x7fa2c7852fd0 [FaceTime HD Camera (Built-in)][0x8020000005ac8514]>"
			t := strings.Split(line, "[")
			if len(t) < 2 {
				continue
			}
			add(strings.Split(t[1], "]")[0])
		}
	}
	if len(devs) == 0 {
		return nil, fmt.Errorf("no devices available")
	}
	return devs, nil
}

// Open starts imagesnap writing frames from dev to a temporary directory.
// macOS asks the user for camera access on first use; if it is refused,
// imagesnap exits and the source reports the device as lost.
func (d *Driver) Open(ctx context.Context, dev camera.Device) (camera.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tempDir, err := luxmeter.TempDir()
	if err != nil {
		return nil, fmt.Errorf("making temp dir: %v", err)
	}
	log.Debug().Str("dir", tempDir).Msg("imagesnap writing frames to tempdir")

	args := []string{
		"-d", dev.ID,
		"-t", fmt.Sprintf("%.2f", d.opts.Interval.Seconds()),
	}
	log.Debug().Strs("args", args).Msg("starting imagesnap")

	cctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(cctx, "imagesnap", args...)
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
		return nil, fmt.Errorf("starting imagesnap: %w", err)
	}
	return src, nil
}
