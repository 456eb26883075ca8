package camera

import (
	"testing"
)

func TestPickDevice(t *testing.T) {
	tests := []struct {
		name   string
		devs   []Device
		id     string
		facing Facing
		want   string
		err    bool
	}{
		{"environment", testDevices, "", FacingEnvironment, "/dev/video2", false},
		{"user", testDevices, "", FacingUser, "/dev/video0", false},
		{"fallback to first", testDevices[:1], "", FacingEnvironment, "/dev/video0", false},
		{"explicit id", testDevices, "/dev/video0", FacingEnvironment, "/dev/video0", false},
		{"unknown id", testDevices, "/dev/video7", FacingEnvironment, "", true},
		{"no devices", nil, "", FacingUser, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := PickDevice(tt.devs, tt.id, tt.facing)
			if tt.err {
				if err == nil {
					t.Fatalf("expected error, got device %v", d)
				}
				return
			}
			if err != nil {
				t.Fatalf("pick device: %v", err)
			}
			if d.ID != tt.want {
				t.Fatalf("picked %s, expected %s", d.ID, tt.want)
			}
		})
	}
}

func TestGuessFacing(t *testing.T) {
	tests := []struct {
		name string
		want Facing
	}{
		{"FaceTime HD Camera (Built-in)", FacingUser},
		{"Integrated Camera: Integrated C", FacingUser},
		{"Front Camera", FacingUser},
		{"HD Pro Webcam C920", FacingUser},
		{"iPhone Camera", FacingEnvironment},
		{"USB Microscope", FacingEnvironment},
	}
	for _, tt := range tests {
		if got := GuessFacing(tt.name); got != tt.want {
			t.Errorf("GuessFacing(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestParseFacing(t *testing.T) {
	for s, want := range map[string]Facing{"": FacingEnvironment, "environment": FacingEnvironment, "User": FacingUser} {
		got, err := ParseFacing(s)
		if err != nil || got != want {
			t.Errorf("ParseFacing(%q) = %v, %v, want %v", s, got, err, want)
		}
	}
	if _, err := ParseFacing("sideways"); err == nil {
		t.Errorf("missing error for unknown facing")
	}
}
