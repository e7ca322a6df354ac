package renderer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/termframe/internal/logging"
	"github.com/dshills/termframe/internal/renderer/backend"
	"github.com/dshills/termframe/internal/renderer/buffer"
	"github.com/dshills/termframe/internal/renderer/compositor"
	"github.com/dshills/termframe/internal/renderer/core"
	"github.com/dshills/termframe/internal/renderer/renderable"
	"github.com/dshills/termframe/internal/renderer/scheduler"
)

var (
	// ErrAlreadyRunning is returned by Open and Start when the renderer
	// is already open or its loop is already running.
	ErrAlreadyRunning = errors.New("renderer already running")

	// ErrNotOpen is returned by Tick before Open.
	ErrNotOpen = errors.New("renderer not open")
)

// Options configures the renderer.
type Options struct {
	// TargetFPS is the frame rate of the loop, 1-240.
	TargetFPS int

	// OffThread moves diffing and terminal output to a worker goroutine.
	OffThread bool

	// DirtyRows limits diffing to rows that were written since the last
	// frame.
	DirtyRows bool

	// Background is the color the back buffer is cleared to each frame.
	Background core.RGBA

	// Mouse enables mouse reporting on the backend.
	Mouse bool

	// Logger receives lifecycle messages and diagnostics. nil discards.
	Logger *logging.Logger

	// DiagnosticsBuffer is the capacity of the Diagnostics channel.
	DiagnosticsBuffer int

	// Clock drives frame timing; nil uses the real clock.
	Clock scheduler.Clock
}

// DefaultOptions returns sensible default options.
func DefaultOptions() Options {
	return Options{
		TargetFPS:         60,
		DirtyRows:         true,
		Background:        core.Black,
		Mouse:             true,
		DiagnosticsBuffer: 64,
	}
}

// KeyHandlerID identifies a global key handler.
type KeyHandlerID uint64

type keyEntry struct {
	id KeyHandlerID
	fn func(core.KeyEvent) bool
}

// Stats reports renderer counters.
type Stats struct {
	// Frames is the number of frames painted.
	Frames uint64

	// Deferred counts frames skipped in off-thread mode because the
	// worker had not yet returned a back buffer.
	Deferred uint64

	PaintErrors uint64
	FlushErrors uint64

	// DroppedDiagnostics counts errors not delivered because the
	// Diagnostics channel was full.
	DroppedDiagnostics uint64

	Scheduler scheduler.Stats
	Worker    compositor.WorkerStats
}

// Renderer is the main rendering facade. It owns the scene root, the
// compositor and the frame loop, and routes backend input into the tree.
//
// Tree mutations must happen on the frame goroutine: inside frame
// callbacks, key and mouse handlers, or functions passed to Do.
type Renderer struct {
	mu sync.Mutex

	opts    Options
	backend backend.Backend
	log     *logging.Logger

	root   *renderable.Node
	router *renderable.Router
	sched  *scheduler.Scheduler

	comp   *compositor.Compositor
	worker *compositor.Worker

	width, height int
	resize        *[2]int

	keyHandlers []keyEntry
	nextKeyID   KeyHandlerID
	tasks       []func()

	inputs    chan backend.Event
	inputDone chan struct{}
	diag      chan error

	open bool

	frames      atomic.Uint64
	deferred    atomic.Uint64
	paintErrors atomic.Uint64
	flushErrors atomic.Uint64
	dropped     atomic.Uint64
}

// New creates a renderer drawing to b. The backend is not touched until
// Open or Start.
func New(b backend.Backend, opts Options) (*Renderer, error) {
	if opts.Logger == nil {
		opts.Logger = logging.NullLogger
	}
	if opts.DiagnosticsBuffer <= 0 {
		opts.DiagnosticsBuffer = DefaultOptions().DiagnosticsBuffer
	}

	r := &Renderer{
		opts:    opts,
		backend: b,
		log:     opts.Logger.WithComponent("renderer"),
		root:    renderable.New(nil).SetName("root"),
		inputs:  make(chan backend.Event, 256),
		diag:    make(chan error, opts.DiagnosticsBuffer),
	}
	r.router = renderable.NewRouter(r.root)

	schedOpts := []scheduler.Option{scheduler.WithErrorHandler(r.report)}
	if opts.Clock != nil {
		schedOpts = append(schedOpts, scheduler.WithClock(opts.Clock))
	}
	sched, err := scheduler.New(opts.TargetFPS, schedOpts...)
	if err != nil {
		return nil, err
	}
	sched.SetFrameFunc(r.frame)
	r.sched = sched
	return r, nil
}

// Root returns the scene root. Its size tracks the terminal.
func (r *Renderer) Root() *renderable.Node {
	return r.root
}

// Router returns the input router, for focus control.
func (r *Renderer) Router() *renderable.Router {
	return r.router
}

// Scheduler returns the frame scheduler, for registering callbacks.
func (r *Renderer) Scheduler() *scheduler.Scheduler {
	return r.sched
}

// Backend returns the backend.
func (r *Renderer) Backend() backend.Backend {
	return r.backend
}

// Size returns the current terminal size.
func (r *Renderer) Size() (width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

// Options returns the options the renderer was created with.
func (r *Renderer) Options() Options {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts
}

// SetTargetFPS changes the frame rate. Invalid values are rejected
// without effect.
func (r *Renderer) SetTargetFPS(fps int) error {
	if err := r.sched.SetTargetFPS(fps); err != nil {
		return err
	}
	r.mu.Lock()
	r.opts.TargetFPS = fps
	r.mu.Unlock()
	return nil
}

// Diagnostics delivers paint, flush and input errors. Errors are dropped
// when the channel is full.
func (r *Renderer) Diagnostics() <-chan error {
	return r.diag
}

// report logs err and offers it to the diagnostics channel.
func (r *Renderer) report(err error) {
	var pe *renderable.PaintError
	var fe *compositor.FlushError
	switch {
	case errors.As(err, &pe):
		r.paintErrors.Add(1)
		r.log.Warn("paint: %v", err)
	case errors.As(err, &fe):
		r.flushErrors.Add(1)
		r.log.Error("flush: %v", err)
	default:
		r.log.Error("%v", err)
	}

	select {
	case r.diag <- err:
	default:
		r.dropped.Add(1)
	}
}

// OnKey registers a global key handler. Global handlers run after the
// focused node's handlers, in registration order, until one returns true.
func (r *Renderer) OnKey(fn func(core.KeyEvent) bool) KeyHandlerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextKeyID++
	r.keyHandlers = append(r.keyHandlers, keyEntry{id: r.nextKeyID, fn: fn})
	return r.nextKeyID
}

// RemoveKeyHandler unregisters a global key handler.
func (r *Renderer) RemoveKeyHandler(id KeyHandlerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.keyHandlers {
		if e.id == id {
			r.keyHandlers = append(r.keyHandlers[:i:i], r.keyHandlers[i+1:]...)
			return true
		}
	}
	return false
}

// Do queues fn to run on the frame goroutine before the next paint.
func (r *Renderer) Do(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, fn)
}

// HandleEvent queues a backend event for the next frame. It reports
// false if the input queue is full.
func (r *Renderer) HandleEvent(ev backend.Event) bool {
	if ev.Type == backend.EventResize {
		r.requestResize(ev.Width, ev.Height)
		return true
	}
	select {
	case r.inputs <- ev:
		return true
	default:
		return false
	}
}

func (r *Renderer) requestResize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resize = &[2]int{width, height}
}

// Stats returns a snapshot of renderer counters.
func (r *Renderer) Stats() Stats {
	s := Stats{
		Frames:             r.frames.Load(),
		Deferred:           r.deferred.Load(),
		PaintErrors:        r.paintErrors.Load(),
		FlushErrors:        r.flushErrors.Load(),
		DroppedDiagnostics: r.dropped.Load(),
		Scheduler:          r.sched.Stats(),
	}
	r.mu.Lock()
	w := r.worker
	r.mu.Unlock()
	if w != nil {
		s.Worker = w.Stats()
	}
	return s
}

// Open initializes the backend, allocates the compositor and mounts the
// tree without starting the loop. Frames can then be driven with Tick.
// If any step fails, everything acquired so far is released.
func (r *Renderer) Open() (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.open {
		return ErrAlreadyRunning
	}

	defer func() {
		if err != nil {
			r.releaseLocked()
		}
	}()

	if err = r.backend.Init(); err != nil {
		return err
	}
	r.open = true

	if r.opts.Mouse {
		r.backend.EnableMouse()
	}
	r.backend.HideCursor()

	w, h := r.backend.Size()
	comp, err := compositor.New(w, h, r.opts.Background, compositor.WithDirtyRows(r.opts.DirtyRows))
	if err != nil {
		return err
	}
	r.comp = comp
	r.width, r.height = w, h
	r.resize = nil

	r.root.SetSize(w, h)
	r.root.Resize(w, h)
	r.root.Mount()

	if r.opts.OffThread {
		r.worker = compositor.NewWorker(comp, r.backend, r.report)
		r.worker.Start()
	}

	r.backend.OnResize(r.requestResize)

	r.inputDone = make(chan struct{})
	go r.inputLoop(r.inputDone)

	r.log.Info("opened %dx%d fps=%d offthread=%v", w, h, r.opts.TargetFPS, r.opts.OffThread)
	return nil
}

// Start opens the renderer if needed and runs the frame loop until Stop
// or until ctx is cancelled. Cancelling ctx stops the loop but leaves the
// terminal open; call Stop to release it.
func (r *Renderer) Start(ctx context.Context) error {
	r.mu.Lock()
	opened := r.open
	r.mu.Unlock()

	if !opened {
		if err := r.Open(); err != nil {
			return err
		}
	}
	if err := r.sched.Start(ctx); err != nil {
		if errors.Is(err, scheduler.ErrAlreadyRunning) {
			return ErrAlreadyRunning
		}
		return err
	}
	return nil
}

// Tick runs one frame synchronously. It fails while the loop is running.
func (r *Renderer) Tick() error {
	r.mu.Lock()
	opened := r.open
	r.mu.Unlock()

	if !opened {
		return ErrNotOpen
	}
	if r.sched.State() != scheduler.StateStopped {
		return ErrAlreadyRunning
	}
	r.sched.Tick()
	return nil
}

// Stop ends the loop and restores the terminal. It is safe to call from
// any state and more than once, but not from the frame goroutine; key
// handlers should cancel the Start context instead.
func (r *Renderer) Stop() {
	r.sched.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.open {
		r.releaseLocked()
		r.log.Info("stopped after %d frames", r.frames.Load())
	}
}

// releaseLocked tears down in reverse order of Open. Callers hold r.mu.
func (r *Renderer) releaseLocked() {
	wasOpen := r.open
	r.open = false

	if r.worker != nil {
		r.worker.Stop()
		r.worker = nil
	}
	r.root.Unmount()
	if wasOpen {
		r.backend.OnResize(nil)
		r.backend.Shutdown()
	}
	if done := r.inputDone; done != nil {
		r.inputDone = nil
		// the input loop may be blocked on r.mu in HandleEvent
		r.mu.Unlock()
		<-done
		r.mu.Lock()
	}
}

func (r *Renderer) inputLoop(done chan struct{}) {
	defer close(done)
	for {
		ev := r.backend.PollEvent()
		switch ev.Type {
		case backend.EventClosed:
			return
		case backend.EventNone:
			continue
		case backend.EventError:
			r.report(ev.Err)
			return
		}
		if !r.HandleEvent(ev) {
			r.log.Warn("input queue full, dropped %s event", ev.Type)
		}
	}
}

// LastFrame returns a copy of what was most recently flushed to the
// terminal. It returns nil before Open, while the loop is running, and
// while an off-thread worker owns the compositor.
func (r *Renderer) LastFrame() *buffer.OptimizedBuffer {
	if r.sched.State() != scheduler.StateStopped {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.comp == nil || r.worker != nil {
		return nil
	}
	return r.comp.Front().Clone()
}

// frame is the scheduler frame function: input, queued tasks, resize,
// paint, then diff and flush.
func (r *Renderer) frame(time.Duration) error {
	r.drainInput()

	r.mu.Lock()
	tasks := r.tasks
	r.tasks = nil
	resize := r.resize
	r.resize = nil
	comp, worker := r.comp, r.worker
	bg := r.opts.Background
	r.mu.Unlock()

	if comp == nil {
		return nil
	}

	for _, fn := range tasks {
		fn()
	}

	if resize != nil {
		if err := r.applyResize(comp, worker, resize[0], resize[1]); err != nil {
			return err
		}
	}

	var buf *buffer.OptimizedBuffer
	if worker != nil {
		var ok bool
		if buf, ok = worker.TryAcquire(); !ok {
			r.deferred.Add(1)
			return nil
		}
	} else {
		buf = comp.Back()
	}

	buf.Clear(bg)
	r.root.Paint(buf, r.report)
	r.frames.Add(1)

	if worker != nil {
		return worker.Submit(buf)
	}
	return comp.DiffAndFlush(r.backend)
}

func (r *Renderer) applyResize(comp *compositor.Compositor, worker *compositor.Worker, width, height int) error {
	var err error
	if worker != nil {
		err = worker.Resize(width, height)
	} else {
		err = comp.Resize(width, height)
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.width, r.height = width, height
	r.mu.Unlock()

	r.root.SetSize(width, height)
	r.root.Resize(width, height)
	r.log.Debug("resized to %dx%d", width, height)
	return nil
}

// drainInput dispatches queued input without blocking.
func (r *Renderer) drainInput() {
	for {
		select {
		case ev := <-r.inputs:
			r.dispatch(ev)
		default:
			return
		}
	}
}

func (r *Renderer) dispatch(ev backend.Event) {
	switch ev.Type {
	case backend.EventKey:
		if r.router.DispatchKey(ev.Key) {
			return
		}
		r.mu.Lock()
		handlers := make([]keyEntry, len(r.keyHandlers))
		copy(handlers, r.keyHandlers)
		r.mu.Unlock()
		for _, h := range handlers {
			if h.fn(ev.Key) {
				return
			}
		}
	case backend.EventMouse:
		r.router.DispatchMouse(ev.Mouse)
	}
}
