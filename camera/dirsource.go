package camera

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DirSource is a Source fed by an external capture tool that writes JPEG
// stills into a directory. New files are decoded as they appear and only the
// newest frame is kept.
type DirSource struct {
	dir     string
	cancel  context.CancelFunc
	watcher *fsnotify.Watcher

	mu     sync.Mutex
	img    image.Image
	err    error
	closed bool
}

// Check that DirSource implements interface Source.
var _ Source = (*DirSource)(nil)

// NewDirSource starts watching dir for JPEG files, then starts cmd, which is
// expected to write them. Cancel must stop cmd; it is called on Close. If cmd
// exits while the source is open, the device is considered lost. Dir is
// removed on Close.
//
// Cmd may be nil if frames are written by someone else.
func NewDirSource(dir string, cmd *exec.Cmd, cancel context.CancelFunc) (source *DirSource, rerr error) {
	s := &DirSource{dir: dir, cancel: cancel}

	// Ensure cleanup in case of failure.
	defer func() {
		if rerr != nil {
			s.Close()
		}
	}()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new file change watcher: %v", err)
	}
	s.watcher = watcher
	if err := watcher.Add(dir); err != nil {
		return nil, fmt.Errorf("registering file change watcher for %s: %w", dir, err)
	}
	go s.watch()

	if cmd != nil {
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("starting %s: %w", cmd.Path, err)
		}
		go func() {
			err := cmd.Wait()
			s.fail(fmt.Errorf("capture process exited: %v", err))
		}()
	}
	return s, nil
}

// Dir returns the directory being watched.
func (s *DirSource) Dir() string {
	return s.dir
}

func (s *DirSource) watch() {
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !strings.HasSuffix(ev.Name, ".jpg") {
				continue
			}
			img, err := decodeJPEG(ev.Name)
			if err != nil {
				log.Debug().Err(err).Str("file", ev.Name).Msg("decoding frame, may be partially written")
				continue
			}
			if err := os.Remove(ev.Name); err != nil && !os.IsNotExist(err) {
				log.Debug().Err(err).Str("file", ev.Name).Msg("removing frame")
			}
			s.mu.Lock()
			if !s.closed {
				s.img = img
			}
			s.mu.Unlock()

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.fail(fmt.Errorf("watching for frames: %v", err))
		}
	}
}

func decodeJPEG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return jpeg.Decode(f)
}

// fail marks the device as lost, unless the source was closed.
func (s *DirSource) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.err != nil {
		return
	}
	s.err = fmt.Errorf("%w: %v", ErrDeviceLost, err)
	log.Warn().Err(err).Str("dir", s.dir).Msg("capture device lost")
}

// Frame returns the newest decoded frame.
func (s *DirSource) Frame() (image.Image, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, fmt.Errorf("%w: source closed", ErrDeviceLost)
	}
	if s.err != nil {
		return nil, false, s.err
	}
	return s.img, s.img != nil, nil
}

// Close stops the capture process, stops watching and removes the
// directory.
func (s *DirSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.img = nil
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.watcher != nil {
		s.watcher.Close()
	}
	if s.dir != "" {
		if err := os.RemoveAll(s.dir); err != nil {
			return fmt.Errorf("removing frame dir: %v", err)
		}
	}
	return nil
}
