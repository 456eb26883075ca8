// Package meter runs the analysis loop of a light meter: it acquires a
// camera, and on every tick reduces the current frame to a classified light
// reading.
package meter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	"github.com/plantlight/luxmeter"
	"github.com/plantlight/luxmeter/camera"
)

// DefaultRefreshRate is the number of cycles per second when scheduling
// cycles itself, matching a typical display refresh.
const DefaultRefreshRate = 60

// Acquirer owns the capture device. *camera.Session implements it.
type Acquirer interface {
	Acquire(ctx context.Context, facing camera.Facing) (camera.Source, error)
	Release() error
}

var _ Acquirer = (*camera.Session)(nil)

// State is the state of a Loop.
type State int

const (
	NotStarted State = iota
	Acquiring
	Running
	Stopped
	Failed
)

var stateNames = [...]string{
	NotStarted: "not-started",
	Acquiring:  "acquiring",
	Running:    "running",
	Stopped:    "stopped",
	Failed:     "failed",
}

func (s State) String() string {
	if s < NotStarted || s > Failed {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Ticker delivers the ticks that drive analysis cycles.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.Ticker.C
}

// Opts are options for a loop. The zero value is usable.
type Opts struct {
	Facing camera.Facing // Camera to prefer, environment if empty.

	Width  int                    // Raster width, luxmeter.DefaultWidth if 0.
	Height int                    // Raster height, luxmeter.DefaultHeight if 0.
	Filter imaging.ResampleFilter // Resample filter, nearest neighbor if zero.
	Stride int                    // Pixel stride, luxmeter.DefaultStride if 0.

	// Number of cycles to average the luma over. 0 publishes each cycle's
	// score as is.
	Smoothing int

	// Cycles per second, DefaultRefreshRate if 0.
	RefreshRate float64

	// If set, Start does not schedule cycles, the caller calls Cycle on
	// its own refresh callback.
	Manual bool

	// NewTicker is used to schedule cycles, time.NewTicker if nil.
	NewTicker func(d time.Duration) Ticker
}

// Stats counts what a loop did since it was created.
type Stats struct {
	Acquisitions uint64        // Calls to Acquire made by Start.
	Cycles       uint64        // Cycles run while running, including skipped ones.
	Skipped      uint64        // Cycles skipped because no frame was ready.
	Published    uint64        // Readings published.
	LastCycle    time.Duration // Time the last published cycle took.
}

// Loop pulls frames from an acquired camera, scores and classifies them, and
// publishes the latest reading. Cycles run strictly one after another.
type Loop struct {
	session  Acquirer
	opts     Opts
	interval time.Duration
	sampler  *luxmeter.Sampler
	maf      *luxmeter.MAF

	mu    sync.Mutex // Held for state changes and during a cycle.
	state State
	err   error
	src   camera.Source
	gen   uint64 // Bumped by Stop, to detect a stop while acquiring.
	run   uint64 // Bumped by each successful Start, identifies a scheduler.
	stop  chan struct{}
	done  chan struct{}
	seq   uint64
	stats Stats

	latest  atomic.Pointer[luxmeter.Reading]
	updates chan luxmeter.Reading
}

// New returns a loop reading frames from the device session acquires. The
// stride is checked against the raster size, so a running loop cannot
// produce empty samples.
func New(session Acquirer, opts *Opts) (*Loop, error) {
	if session == nil {
		return nil, errors.New("session must not be nil")
	}
	var o Opts
	if opts != nil {
		o = *opts
	}
	if o.Facing == "" {
		o.Facing = camera.FacingEnvironment
	}
	if o.Width == 0 {
		o.Width = luxmeter.DefaultWidth
	}
	if o.Height == 0 {
		o.Height = luxmeter.DefaultHeight
	}
	if o.Stride == 0 {
		o.Stride = luxmeter.DefaultStride
	}
	if o.RefreshRate == 0 {
		o.RefreshRate = DefaultRefreshRate
	}
	if o.NewTicker == nil {
		o.NewTicker = func(d time.Duration) Ticker {
			return timeTicker{time.NewTicker(d)}
		}
	}

	if o.Width < 0 || o.Height < 0 {
		return nil, fmt.Errorf("invalid raster size %dx%d", o.Width, o.Height)
	}
	if err := luxmeter.ValidateStride(o.Stride, o.Width, o.Height); err != nil {
		return nil, err
	}
	if o.Smoothing < 0 {
		return nil, fmt.Errorf("smoothing must be >= 0, got %d", o.Smoothing)
	}
	if o.RefreshRate < 0 {
		return nil, fmt.Errorf("refresh rate must be > 0, got %v", o.RefreshRate)
	}

	l := &Loop{
		session:  session,
		opts:     o,
		interval: time.Duration(float64(time.Second) / o.RefreshRate),
		sampler:  luxmeter.NewSampler(o.Width, o.Height, o.Filter),
		updates:  make(chan luxmeter.Reading, 1),
	}
	if o.Smoothing > 0 {
		maf, err := luxmeter.NewMAF(o.Smoothing)
		if err != nil {
			return nil, fmt.Errorf("new smoothing filter: %v", err)
		}
		l.maf = maf
	}
	return l, nil
}

// Start acquires the camera and starts running cycles. If the loop is
// already acquiring or running, Start does nothing. After a failure or a
// stop, Start acquires again. An acquisition error moves the loop to Failed
// and is returned; it is not retried.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	switch l.state {
	case Acquiring, Running:
		l.mu.Unlock()
		return nil
	}
	l.state = Acquiring
	l.err = nil
	l.stats.Acquisitions++
	gen := l.gen
	l.mu.Unlock()

	log.Debug().Msg("acquiring camera")
	src, err := l.session.Acquire(ctx, l.opts.Facing)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != gen {
		// Stopped while acquiring. Stop released the session, which also
		// closes a device that finished opening.
		return nil
	}
	if err != nil {
		l.state = Failed
		l.err = err
		log.Warn().Err(err).Msg("analysis loop failed to acquire camera")
		return err
	}

	l.src = src
	l.state = Running
	l.run++
	if l.maf != nil {
		l.maf.Reset()
	}
	if !l.opts.Manual {
		l.stop = make(chan struct{})
		l.done = make(chan struct{})
		go l.schedule(l.run, l.stop, l.done)
	}
	log.Info().Dur("interval", l.interval).Bool("manual", l.opts.Manual).Msg("analysis loop running")
	return nil
}

func (l *Loop) schedule(run uint64, stop, done chan struct{}) {
	defer close(done)
	t := l.opts.NewTicker(l.interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-t.C():
			if ok, _ := l.cycle(run, now); !ok {
				return
			}
		}
	}
}

// Cycle runs one analysis cycle: sample a frame, estimate and normalize its
// luminance, classify and publish the reading. If no frame is ready the cycle
// is skipped. If the device is lost or the frame cannot be sampled, the loop
// fails, releases the camera and returns the error. Outside Running, Cycle
// does nothing.
func (l *Loop) Cycle(now time.Time) error {
	l.mu.Lock()
	run := l.run
	l.mu.Unlock()
	_, err := l.cycle(run, now)
	return err
}

// cycle reports whether the scheduler for run should keep going, and the
// error if this cycle made the loop fail.
func (l *Loop) cycle(run uint64, now time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Running || l.run != run {
		return false, nil
	}

	t0 := time.Now()
	l.stats.Cycles++
	raster, ok, err := l.sampler.Sample(l.src)
	if err != nil {
		return false, l.fail(fmt.Errorf("sampling frame: %w", err))
	}
	if !ok {
		l.stats.Skipped++
		return true, nil
	}
	mean, err := luxmeter.Estimate(raster, l.opts.Stride)
	if err != nil {
		return false, l.fail(err)
	}
	if l.maf != nil {
		mean, err = l.maf.Update(mean)
		if err != nil {
			return false, l.fail(err)
		}
	}

	l.seq++
	r := luxmeter.NewReading(luxmeter.Normalize(mean), now)
	r.Seq = l.seq
	l.publish(r)
	l.stats.Published++
	l.stats.LastCycle = time.Since(t0)

	log.Debug().
		Uint64("seq", r.Seq).
		Int("score", r.Score).
		Stringer("category", r.Category).
		Float64("luma", mean).
		Msg("published reading")
	return true, nil
}

// fail moves a running loop to Failed and releases the camera. Called with
// l.mu held. It returns err.
func (l *Loop) fail(err error) error {
	l.state = Failed
	l.err = err
	l.src = nil
	log.Error().Err(err).Msg("analysis loop failed")
	if rerr := l.session.Release(); rerr != nil {
		log.Warn().Err(rerr).Msg("releasing camera after failure")
	}
	return err
}

func (l *Loop) publish(r luxmeter.Reading) {
	l.latest.Store(&r)
	// Replace a reading nobody picked up yet, observers only want the newest.
	select {
	case l.updates <- r:
		return
	default:
	}
	select {
	case <-l.updates:
	default:
	}
	select {
	case l.updates <- r:
	default:
	}
}

// Stop halts scheduling and releases the camera. Once Stop returns, no
// further frame is sampled and the device is closed. Stop can be called any
// number of times; before the first Start it leaves the loop NotStarted.
func (l *Loop) Stop() error {
	l.mu.Lock()
	if l.state == NotStarted {
		l.mu.Unlock()
		return nil
	}
	prev := l.state
	l.state = Stopped
	l.gen++
	l.src = nil
	stop, done := l.stop, l.done
	l.stop, l.done = nil, nil
	err := l.session.Release()
	l.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	if prev != Stopped {
		log.Info().Stringer("from", prev).Msg("analysis loop stopped")
	}
	if err != nil {
		return fmt.Errorf("releasing camera: %v", err)
	}
	return nil
}

// Latest returns the most recently published reading. Ok is false until the
// first reading is published.
func (l *Loop) Latest() (r luxmeter.Reading, ok bool) {
	p := l.latest.Load()
	if p == nil {
		return luxmeter.Reading{}, false
	}
	return *p, true
}

// Updates returns a channel on which published readings are sent. It holds
// at most one reading: a reading that was not received is replaced by the
// next one.
func (l *Loop) Updates() <-chan luxmeter.Reading {
	return l.updates
}

// State returns the current state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Err returns the error that made the loop fail, nil unless Failed.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Failed {
		return nil
	}
	return l.err
}

// Stats returns a snapshot of the loop's counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}
