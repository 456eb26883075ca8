package camera

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/plantlight/luxmeter"
)

// State is the lifecycle state of a Session.
type State int

const (
	Idle State = iota
	Requesting
	Active
	PermissionDenied
	DeviceError
	Stopped
)

var stateNames = [...]string{
	Idle:             "idle",
	Requesting:       "requesting",
	Active:           "active",
	PermissionDenied: "permission-denied",
	DeviceError:      "device-error",
	Stopped:          "stopped",
}

func (s State) String() string {
	if s < Idle || s > Stopped {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

var (
	// ErrAcquireInProgress is returned by Acquire while another Acquire
	// has not finished yet.
	ErrAcquireInProgress = errors.New("camera acquisition already in progress")

	// ErrSessionReleased is returned by Acquire if Release was called
	// before the device finished opening. The device is closed again.
	ErrSessionReleased = errors.New("session released during acquisition")
)

// SessionOpts are options for a session.
type SessionOpts struct {
	DeviceID string // If empty, a device is picked by facing.
}

// Session owns the single capture device of an engine: it acquires it,
// hands out its Source, and releases it.
type Session struct {
	driver Driver
	opts   SessionOpts
	id     string

	mu    sync.Mutex
	state State
	src   Source
	gen   uint64 // Bumped by Release, to detect a release while requesting.
	err   error
}

// NewSession returns an idle session that opens devices through driver.
func NewSession(driver Driver, opts *SessionOpts) *Session {
	s := &Session{
		driver: driver,
		id:     uuid.New().String(),
	}
	if opts != nil {
		s.opts = *opts
	}
	return s
}

// ID returns the trace ID of the session, used in log messages.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error of the last failed acquisition, if the session is
// in PermissionDenied or DeviceError.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == PermissionDenied || s.state == DeviceError {
		return s.err
	}
	return nil
}

// Acquire opens a camera, preferring one with the given facing, and returns
// its source. If the session is already active, the open source is returned
// without requesting again. After a failure, calling Acquire again retries;
// nothing is retried automatically.
//
// Failures are returned as *luxmeter.AcquisitionError.
func (s *Session) Acquire(ctx context.Context, facing Facing) (Source, error) {
	s.mu.Lock()
	switch s.state {
	case Active:
		src := s.src
		s.mu.Unlock()
		return src, nil
	case Requesting:
		s.mu.Unlock()
		return nil, ErrAcquireInProgress
	}
	s.state = Requesting
	s.err = nil
	gen := s.gen
	s.mu.Unlock()

	logger := log.With().Str("session", s.id).Str("driver", s.driver.Name()).Logger()
	logger.Debug().Str("facing", string(facing)).Msg("requesting camera")

	src, err := s.open(ctx, facing)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		if src != nil {
			if cerr := src.Close(); cerr != nil {
				logger.Warn().Err(cerr).Msg("closing camera opened after release")
			}
		}
		return nil, ErrSessionReleased
	}
	if err != nil {
		aerr := acquisitionError(err)
		if aerr.PermissionDenied() {
			s.state = PermissionDenied
		} else {
			s.state = DeviceError
		}
		s.err = aerr
		logger.Warn().Err(err).Stringer("state", s.state).Msg("acquiring camera failed")
		return nil, aerr
	}
	s.state = Active
	s.src = src
	logger.Info().Msg("camera active")
	return src, nil
}

func (s *Session) open(ctx context.Context, facing Facing) (Source, error) {
	devs, err := s.driver.ListDevices()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	dev, err := PickDevice(devs, s.opts.DeviceID, facing)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("session", s.id).Str("device", dev.ID).Str("name", dev.Name).Msg("opening device")
	src, err := s.driver.Open(ctx, dev)
	if err != nil {
		return nil, fmt.Errorf("opening device %s: %w", dev.ID, err)
	}
	return src, nil
}

// acquisitionError classifies err as a refused permission or an unavailable
// device.
func acquisitionError(err error) *luxmeter.AcquisitionError {
	var aerr *luxmeter.AcquisitionError
	if errors.As(err, &aerr) {
		return aerr
	}
	if errors.Is(err, fs.ErrPermission) || errors.Is(err, luxmeter.ErrPermissionDenied) {
		return &luxmeter.AcquisitionError{Reason: luxmeter.ErrPermissionDenied, Err: err}
	}
	return &luxmeter.AcquisitionError{Reason: luxmeter.ErrDeviceUnavailable, Err: err}
}

// Release closes the device, if any, and moves the session to Stopped from
// any state. Calling Release again, or without an acquired device, does
// nothing more.
func (s *Session) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	prev := s.state
	s.state = Stopped
	src := s.src
	s.src = nil
	if src == nil {
		return nil
	}
	log.Info().Str("session", s.id).Stringer("from", prev).Msg("releasing camera")
	if err := src.Close(); err != nil {
		return fmt.Errorf("closing camera: %v", err)
	}
	return nil
}
