package camera

import (
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

func writeJPEG(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, c)
		}
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		t.Fatalf("creating %s: %v", tmp, err)
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("encoding jpeg: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("closing %s: %v", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("renaming to %s: %v", path, err)
	}
}

func waitFrame(t *testing.T, s Source) image.Image {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		img, ok, err := s.Frame()
		if err != nil {
			t.Fatalf("frame: %v", err)
		}
		if ok {
			return img
		}
		if time.Now().After(deadline) {
			t.Fatalf("no frame decoded")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDirSource(t *testing.T) {
	dir, err := os.MkdirTemp("", "dirsource")
	if err != nil {
		t.Fatalf("making temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	s, err := NewDirSource(dir, nil, nil)
	if err != nil {
		t.Fatalf("new dir source: %v", err)
	}

	if img, ok, err := s.Frame(); ok || img != nil || err != nil {
		t.Fatalf("frame before any capture, got %v %v %v, expected not ready", img, ok, err)
	}

	// Only jpg files are frames.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	writeJPEG(t, filepath.Join(dir, "frame1.jpg"), color.RGBA{200, 200, 200, 255})
	img := waitFrame(t, s)
	r, g, b, _ := img.At(10, 10).RGBA()
	if r>>8 < 190 || g>>8 < 190 || b>>8 < 190 {
		t.Fatalf("unexpected pixel %d,%d,%d, expected light gray", r>>8, g>>8, b>>8)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("frame dir not removed after close: %v", err)
	}
	if _, _, err := s.Frame(); !errors.Is(err, ErrDeviceLost) {
		t.Fatalf("frame after close, got %v, expected ErrDeviceLost", err)
	}
}

func TestDirSourceProcessExit(t *testing.T) {
	dir, err := os.MkdirTemp("", "dirsource")
	if err != nil {
		t.Fatalf("making temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	// The test binary itself, running no tests, exits right away.
	cmd := exec.Command(os.Args[0], "-test.run=^$")
	s, err := NewDirSource(dir, cmd, nil)
	if err != nil {
		t.Fatalf("new dir source: %v", err)
	}
	defer s.Close()

	deadline := time.Now().Add(10 * time.Second)
	for {
		_, _, err := s.Frame()
		if errors.Is(err, ErrDeviceLost) {
			break
		}
		if err != nil {
			t.Fatalf("frame, got %v, expected ErrDeviceLost", err)
		}
		if time.Now().After(deadline) {
			t.Fatalf("exited capture process not reported")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
