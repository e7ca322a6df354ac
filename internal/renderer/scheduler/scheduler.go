// Package scheduler drives the per-frame tick loop.
//
// Each tick runs the registered callbacks in ascending priority (ties in
// registration order), all observing the same delta, then runs the frame
// function. Ticks are spaced 1s/fps apart; a tick that overruns its slot
// is followed immediately by the next one and the schedule restarts from
// that point, so ticks are never skipped or executed twice.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MaxFPS is the highest accepted target frame rate.
const MaxFPS = 240

var (
	// ErrInvalidFrameRate is returned for a target fps outside (0, MaxFPS].
	ErrInvalidFrameRate = errors.New("invalid frame rate")

	// ErrAlreadyRunning is returned by Start when the loop is not stopped.
	ErrAlreadyRunning = errors.New("scheduler already running")
)

// State is the scheduler lifecycle state.
type State uint8

const (
	StateStopped State = iota
	StateRunning
	StatePaused
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Clock supplies the current time. Tests substitute a fake.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Callback runs once per tick with the time since the previous tick.
type Callback func(dt time.Duration)

// FrameFunc paints and flushes a frame after the callbacks have run.
type FrameFunc func(dt time.Duration) error

// Handle identifies a registered callback.
type Handle uint64

// PanicError reports a recovered callback or frame panic.
type PanicError struct {
	Handle Handle // zero for the frame function
	Value  any
}

func (e *PanicError) Error() string {
	if e.Handle == 0 {
		return fmt.Sprintf("frame function panic: %v", e.Value)
	}
	return fmt.Sprintf("callback %d panic: %v", e.Handle, e.Value)
}

// Stats reports loop timing.
type Stats struct {
	Frames       uint64
	Overruns     uint64
	LastDelta    time.Duration
	AvgFrameTime time.Duration
}

type entry struct {
	handle   Handle
	priority int
	fn       Callback
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the real clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithErrorHandler receives panics and frame function errors.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Scheduler) {
		s.onError = fn
	}
}

// Scheduler is a frame loop. It is safe for concurrent use.
type Scheduler struct {
	mu sync.Mutex

	interval time.Duration
	fps      int
	clock    Clock
	onError  func(error)

	callbacks  []entry
	sorted     bool
	nextHandle Handle
	frame      FrameFunc

	state    State
	lastTick time.Time

	stop chan struct{}
	wake chan struct{}
	done chan struct{}

	stats     Stats
	totalWork time.Duration
}

// New creates a stopped scheduler targeting fps frames per second.
func New(fps int, opts ...Option) (*Scheduler, error) {
	if err := validateFPS(fps); err != nil {
		return nil, err
	}
	s := &Scheduler{
		fps:      fps,
		interval: time.Second / time.Duration(fps),
		clock:    realClock{},
		sorted:   true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func validateFPS(fps int) error {
	if fps <= 0 || fps > MaxFPS {
		return fmt.Errorf("%w: %d (must be 1-%d)", ErrInvalidFrameRate, fps, MaxFPS)
	}
	return nil
}

// TargetFPS returns the configured frame rate.
func (s *Scheduler) TargetFPS() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fps
}

// Interval returns the time between ticks.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetTargetFPS changes the frame rate. Invalid values are rejected
// without changing the scheduler.
func (s *Scheduler) SetTargetFPS(fps int) error {
	if err := validateFPS(fps); err != nil {
		return err
	}
	s.mu.Lock()
	s.fps = fps
	s.interval = time.Second / time.Duration(fps)
	wake := s.wake
	s.mu.Unlock()

	signal(wake)
	return nil
}

// SetFrameFunc sets the function run after callbacks on each tick.
func (s *Scheduler) SetFrameFunc(fn FrameFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = fn
}

// AddCallback registers fn with the given priority. It takes effect from
// the next tick.
func (s *Scheduler) AddCallback(priority int, fn Callback) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextHandle++
	s.callbacks = append(s.callbacks, entry{handle: s.nextHandle, priority: priority, fn: fn})
	s.sorted = false
	return s.nextHandle
}

// RemoveCallback unregisters a callback. It reports whether h was found.
func (s *Scheduler) RemoveCallback(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.callbacks {
		if e.handle == h {
			s.callbacks = append(s.callbacks[:i:i], s.callbacks[i+1:]...)
			return true
		}
	}
	return false
}

// State returns the lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a snapshot of loop timing.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Start launches the loop. It fails with ErrAlreadyRunning unless the
// scheduler is stopped. Cancelling ctx stops the loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.state = StateRunning
	s.stop = make(chan struct{})
	s.wake = make(chan struct{}, 1)
	s.done = make(chan struct{})
	s.lastTick = s.clock.Now()
	stop, wake, done := s.stop, s.wake, s.done
	s.mu.Unlock()

	go s.loop(ctx, stop, wake, done)
	return nil
}

// Pause suspends ticking. It does nothing unless running.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		s.state = StatePaused
	}
}

// Resume continues after Pause. The first delta after resuming does not
// include the paused time.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	if s.state != StatePaused {
		s.mu.Unlock()
		return
	}
	s.state = StateRunning
	s.lastTick = s.clock.Now()
	wake := s.wake
	s.mu.Unlock()

	signal(wake)
}

// Stop ends the loop and waits for it to exit. It is safe to call from
// any state and more than once, but not from a callback or frame function.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	done := s.done
	if s.state != StateStopped {
		s.state = StateStopped
		close(s.stop)
	}
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Done is closed when the current loop exits. It is nil before the first Start.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func signal(ch chan struct{}) {
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop(ctx context.Context, stop, wake, done chan struct{}) {
	defer close(done)

	interval := s.Interval()
	next := s.clock.Now().Add(interval)
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			if s.state != StateStopped {
				s.state = StateStopped
				close(s.stop)
			}
			s.mu.Unlock()
			return

		case <-stop:
			return

		case <-wake:
			// rate change or resume: restart the schedule from now
			interval = s.Interval()
			next = s.clock.Now().Add(interval)
			timer.Reset(interval)

		case <-timer.C:
			if s.State() != StateRunning {
				// paused: wait for wake
				continue
			}
			s.Tick()

			interval = s.Interval()
			next = next.Add(interval)
			now := s.clock.Now()
			wait := next.Sub(now)
			if wait <= 0 {
				s.mu.Lock()
				s.stats.Overruns++
				s.mu.Unlock()
				next = now
				wait = 0
			}
			timer.Reset(wait)
		}
	}
}

// Tick runs one frame synchronously: callbacks in order, then the frame
// function. The loop calls it on every tick; tests call it directly.
func (s *Scheduler) Tick() {
	start := s.clock.Now()

	s.mu.Lock()
	var dt time.Duration
	if !s.lastTick.IsZero() {
		dt = start.Sub(s.lastTick)
	}
	s.lastTick = start
	if !s.sorted {
		sort.SliceStable(s.callbacks, func(i, j int) bool {
			a, b := s.callbacks[i], s.callbacks[j]
			if a.priority != b.priority {
				return a.priority < b.priority
			}
			return a.handle < b.handle
		})
		s.sorted = true
	}
	cbs := make([]entry, len(s.callbacks))
	copy(cbs, s.callbacks)
	frame := s.frame
	onError := s.onError
	s.mu.Unlock()

	for _, e := range cbs {
		if err := runCallback(e, dt); err != nil && onError != nil {
			onError(err)
		}
	}
	if frame != nil {
		if err := runFrame(frame, dt); err != nil && onError != nil {
			onError(err)
		}
	}

	work := s.clock.Now().Sub(start)

	s.mu.Lock()
	s.stats.Frames++
	s.stats.LastDelta = dt
	s.totalWork += work
	s.stats.AvgFrameTime = s.totalWork / time.Duration(s.stats.Frames)
	s.mu.Unlock()
}

func runCallback(e entry, dt time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Handle: e.handle, Value: r}
		}
	}()
	e.fn(dt)
	return nil
}

func runFrame(fn FrameFunc, dt time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return fn(dt)
}
