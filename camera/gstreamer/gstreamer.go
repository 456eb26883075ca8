// Package gstreamer implements a camera driver with the gstreamer tools.
package gstreamer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/plantlight/luxmeter"
	"github.com/plantlight/luxmeter/camera"
)

var errInstallHint = errors.New("executable not found, install with: sudo apt install -y gstreamer1.0-tools gstreamer1.0-plugins-good gstreamer1.0-plugins-base gstreamer1.0-plugins-base-apps")

// DriverOpts has options for the gstreamer driver.
type DriverOpts struct {
	Verbose  bool          // Pass gst-launch output through to stderr.
	Interval time.Duration // How often to capture a frame.
}

// Driver captures frames by running a gst-launch-1.0 pipeline from a v4l2
// source to a multifilesink.
type Driver struct {
	opts DriverOpts
}

// Check that Driver implements interface camera.Driver.
var _ camera.Driver = (*Driver)(nil)

// NewDriver returns a gstreamer driver. A zero interval captures 10 frames
// per second.
func NewDriver(opts DriverOpts) *Driver {
	if opts.Interval <= 0 {
		opts.Interval = 100 * time.Millisecond
	}
	return &Driver{opts}
}

// Name returns "gstreamer".
func (d *Driver) Name() string {
	return "gstreamer"
}

type device struct {
	ID          string
	Name        string
	DeviceClass string
	RawCaps     []string
	Caps        []camera.DeviceCap
	inCapMode   bool
}

var widthRegexp = regexp.MustCompile("width=([0-9]+)[^0-9]")
var heightRegexp = regexp.MustCompile("height=([0-9]+)[^0-9]")
var framerateRegexp = regexp.MustCompile("framerate=([0-9]+)[^0-9]")

func abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

// ListDevices returns the video sources reported by gst-device-monitor-1.0.
// ListDevices returns an error if no devices are available.
func (d *Driver) ListDevices() ([]camera.Device, error) {
	cmd := exec.Command("gst-device-monitor-1.0", "Video/Source")
	buf, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			err = errInstallHint
		}
		return nil, fmt.Errorf("listing devices using gst-device-monitor-1.0: %v", err)
	}
	return parseDevices(string(buf))
}

func parseDevices(s string) ([]camera.Device, error) {
	var r []device
	var d *device
	b := bufio.NewScanner(strings.NewReader(s))
	for b.Scan() {
		line := strings.TrimSpace(b.Text())
		if line == "" {
			continue
		}
		if line == "Device found:" {
			if d != nil {
				r = append(r, *d)
			}
			d = &device{}
			continue
		}
		if d == nil {
			continue
		}

		switch {
		case strings.HasPrefix(line, "name  :"):
			d.Name = strings.TrimSpace(strings.SplitN(line, ":", 2)[1])
		case strings.HasPrefix(line, "class :"):
			d.DeviceClass = strings.TrimSpace(strings.SplitN(line, ":", 2)[1])
		case strings.HasPrefix(line, "caps  :"):
			d.RawCaps = append(d.RawCaps, strings.TrimSpace(strings.SplitN(line, ":", 2)[1]))
			d.inCapMode = true
		case strings.HasPrefix(line, "properties:"):
			d.inCapMode = false
		case d.inCapMode:
			d.RawCaps = append(d.RawCaps, line)
		case strings.HasPrefix(line, "device.path =") || strings.HasPrefix(line, "api.v4l2.path ="):
			d.ID = strings.TrimSpace(strings.SplitN(line, "=", 2)[1])
		}
	}
	if err := b.Err(); err != nil {
		return nil, err
	}
	if d != nil && d.ID != "" {
		r = append(r, *d)
	}

	// Prefer caps close to 640x480; luminance only needs a small frame.
	distance := func(a camera.DeviceCap) int {
		return abs(a.Width-640)*abs(a.Height-480) + abs(a.Width-640) + abs(a.Height-480)
	}

	var devs []camera.Device
	for _, d := range r {
		if d.DeviceClass != "Video/Source" || d.ID == "" {
			continue
		}
		for _, rc := range d.RawCaps {
			if !strings.HasPrefix(rc, "video/x-raw") {
				continue
			}
			mw := widthRegexp.FindStringSubmatch(rc)
			mh := heightRegexp.FindStringSubmatch(rc)
			mf := framerateRegexp.FindStringSubmatch(rc)
			if mw == nil || mh == nil || mf == nil {
				continue
			}
			width, werr := strconv.Atoi(mw[1])
			height, herr := strconv.Atoi(mh[1])
			framerate, ferr := strconv.Atoi(mf[1])
			if werr != nil || herr != nil || ferr != nil {
				continue
			}
			if width != 0 && height != 0 && framerate != 0 {
				d.Caps = append(d.Caps, camera.DeviceCap{
					Type:      "video/x-raw",
					Width:     width,
					Height:    height,
					Framerate: framerate,
				})
			}
		}
		if len(d.Caps) == 0 {
			continue
		}
		sort.SliceStable(d.Caps, func(i, j int) bool {
			return distance(d.Caps[i]) < distance(d.Caps[j])
		})

		devs = append(devs, camera.Device{
			ID:     d.ID,
			Name:   d.Name,
			Facing: camera.GuessFacing(d.Name),
			Caps:   d.Caps,
		})
	}
	if len(devs) == 0 {
		return nil, fmt.Errorf("no devices found")
	}
	return devs, nil
}

// Open starts a gstreamer pipeline writing frames from dev to a temporary
// directory. If the device node cannot be opened for lack of permission,
// the returned error matches fs.ErrPermission.
func (d *Driver) Open(ctx context.Context, dev camera.Device) (camera.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(dev.Caps) == 0 {
		return nil, fmt.Errorf("device %s has no raw video caps", dev.ID)
	}

	f, err := os.Open(dev.ID)
	if err != nil {
		return nil, fmt.Errorf("checking device access: %w", err)
	}
	f.Close()

	tempDir, err := luxmeter.TempDir()
	if err != nil {
		return nil, fmt.Errorf("making temp dir: %v", err)
	}
	log.Debug().Str("dir", tempDir).Msg("gstreamer writing frames to tempdir")

	fps := max(1, int(time.Second/d.opts.Interval))
	args := []string{
		"v4l2src",
		"device=" + dev.ID,
		"!",
		fmt.Sprintf("video/x-raw,width=%d,height=%d", dev.Caps[0].Width, dev.Caps[0].Height),
		"!",
		"videorate",
		"!",
		fmt.Sprintf("video/x-raw,framerate=%d/1", fps),
		"!",
		"videoconvert",
		"!",
		"jpegenc",
		"!",
		"multifilesink",
		"location=" + tempDir + "/frame%05d.jpg",
	}
	log.Debug().Msgf("starting gstreamer as gst-launch-1.0 %s", strings.Join(args, " "))

	cctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(cctx, "gst-launch-1.0", args...)
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
		return nil, fmt.Errorf("starting gstreamer with gst-launch-1.0: %w", err)
	}
	return src, nil
}
