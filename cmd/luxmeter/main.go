// Command luxmeter measures ambient light with a camera and recommends
// plants for it.
//
// Examples:
//
//	# List available devices and quit.
//	luxmeter devices
//
//	# Print readings from the default camera until interrupted.
//	luxmeter run
//
//	# Use ffmpeg with an explicit device, smoothing over 30 cycles.
//	luxmeter run --driver ffmpeg --device /dev/video0 --smoothing 30
//
//	# Score a photo instead of a live camera.
//	luxmeter still window.jpg
package main

import (
	"context"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
)

var version = "0.1.0"

func main() {
	root := newRootCmd()
	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	); err != nil {
		os.Exit(1)
	}
}
