package camera

import (
	"fmt"
	"strings"
)

// Facing is the direction a camera points, relative to the user holding it.
type Facing string

const (
	// FacingEnvironment points away from the user, at the scene.
	FacingEnvironment Facing = "environment"
	// FacingUser points at the user, like a laptop webcam.
	FacingUser Facing = "user"
)

// ParseFacing parses "environment" or "user". Empty means environment.
func ParseFacing(s string) (Facing, error) {
	switch Facing(strings.ToLower(s)) {
	case "", FacingEnvironment:
		return FacingEnvironment, nil
	case FacingUser:
		return FacingUser, nil
	}
	return "", fmt.Errorf("unknown facing %q, need environment or user", s)
}

// DeviceCap describes a capability of a device.
type DeviceCap struct {
	Type      string // "video/x-raw", "image/jpeg" or "nvarguscamerasrc"
	Width     int
	Height    int
	Framerate int
}

// Device is a camera device capable of recording images.
type Device struct {
	Name   string
	ID     string
	Facing Facing
	Caps   []DeviceCap
}

var userFacingHints = []string{"facetime", "front", "user", "integrated", "built-in", "webcam"}

// GuessFacing derives a device's facing from its name. Laptop and front
// cameras face the user, anything else is assumed to face the scene.
func GuessFacing(name string) Facing {
	lname := strings.ToLower(name)
	for _, h := range userFacingHints {
		if strings.Contains(lname, h) {
			return FacingUser
		}
	}
	return FacingEnvironment
}

// PickDevice selects the device to open. If id is set, the device with that
// ID is returned. Otherwise the first device with the preferred facing wins,
// falling back to the first device.
func PickDevice(devs []Device, id string, facing Facing) (Device, error) {
	if len(devs) == 0 {
		return Device{}, fmt.Errorf("no devices available")
	}
	if id != "" {
		for _, d := range devs {
			if d.ID == id {
				return d, nil
			}
		}
		return Device{}, fmt.Errorf("device %q not found", id)
	}
	for _, d := range devs {
		if d.Facing == facing {
			return d, nil
		}
	}
	return devs[0], nil
}
