// Package backend provides terminal backend abstraction for the renderer.
//
// A Backend receives composed frames through the compositor.Flusher
// interface and produces input events. Three implementations exist: a raw
// ANSI tty backend, a tcell backend, and a NullBackend for tests.
package backend

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dshills/termframe/internal/renderer/buffer"
	"github.com/dshills/termframe/internal/renderer/compositor"
	"github.com/dshills/termframe/internal/renderer/core"
)

var (
	// ErrNotTerminal is returned by Init when the input is not a terminal.
	ErrNotTerminal = errors.New("not a terminal")

	// ErrNotInitialized is returned when flushing to a backend before Init.
	ErrNotInitialized = errors.New("backend not initialized")
)

// InitError reports a failure while putting the terminal into TUI mode.
type InitError struct {
	Backend string
	Err     error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("%s backend init: %v", e.Backend, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// EventType identifies the type of terminal event.
type EventType int

const (
	EventNone EventType = iota
	EventKey
	EventMouse
	EventResize
	EventError
	EventClosed
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventKey:
		return "key"
	case EventMouse:
		return "mouse"
	case EventResize:
		return "resize"
	case EventError:
		return "error"
	case EventClosed:
		return "closed"
	default:
		return "none"
	}
}

// Event represents a terminal event.
type Event struct {
	Type EventType

	Key   core.KeyEvent
	Mouse core.MouseInput

	// Resize event fields
	Width, Height int

	Err error
}

// KeyEventOf wraps a key in an Event.
func KeyEventOf(k core.KeyEvent) Event {
	return Event{Type: EventKey, Key: k}
}

// MouseEventOf wraps a pointer report in an Event.
func MouseEventOf(m core.MouseInput) Event {
	return Event{Type: EventMouse, Mouse: m}
}

// Backend is a terminal the renderer can draw to and read input from.
type Backend interface {
	compositor.Flusher

	// Init prepares the terminal. It must be called before any other method.
	Init() error

	// Shutdown restores the terminal. It is safe to call more than once.
	Shutdown()

	// Size returns the terminal dimensions in cells.
	Size() (width, height int)

	// OnResize registers a callback run when the terminal size changes.
	OnResize(callback func(width, height int))

	// ShowCursor displays the cursor at the given position.
	ShowCursor(x, y int)

	// HideCursor hides the cursor.
	HideCursor()

	// PollEvent blocks until an event arrives. After Shutdown it returns
	// an EventClosed event.
	PollEvent() Event

	// PostEvent queues a synthetic event. It reports false when the queue
	// is full or the backend is shut down.
	PostEvent(event Event) bool

	// HasTrueColor reports whether 24-bit color output is used.
	HasTrueColor() bool

	// Beep sounds the terminal bell.
	Beep()

	EnableMouse()
	DisableMouse()
}

// eventQueueSize is the capacity of backend event queues.
const eventQueueSize = 256

// eventQueue is the shared PollEvent/PostEvent implementation.
type eventQueue struct {
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make(chan Event, eventQueueSize),
		done:   make(chan struct{}),
	}
}

func (q *eventQueue) poll() Event {
	select {
	case ev := <-q.events:
		return ev
	case <-q.done:
		return Event{Type: EventClosed}
	}
}

func (q *eventQueue) post(ev Event) bool {
	select {
	case <-q.done:
		return false
	default:
	}
	select {
	case q.events <- ev:
		return true
	default:
		return false
	}
}

func (q *eventQueue) close() {
	q.closeOnce.Do(func() { close(q.done) })
}

// NullBackend is a headless backend for testing. Flushed frames are
// applied to an in-memory screen that tests can inspect.
type NullBackend struct {
	mu sync.Mutex

	width, height int
	screen        *buffer.OptimizedBuffer
	frames        []compositor.Frame
	flushErr      error

	cursorX, cursorY int
	cursorVisible    bool
	mouse            bool
	initialized      bool
	shutdown         bool

	resizeHandler func(width, height int)
	queue         *eventQueue
}

// NewNullBackend creates a null backend with the given dimensions.
func NewNullBackend(width, height int) *NullBackend {
	return &NullBackend{
		width:  width,
		height: height,
		screen: buffer.MustNew(max(width, 1), max(height, 1)),
		queue:  newEventQueue(),
	}
}

// Init implements Backend.
func (b *NullBackend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initialized = true
	return nil
}

// Shutdown implements Backend.
func (b *NullBackend) Shutdown() {
	b.mu.Lock()
	b.shutdown = true
	b.mu.Unlock()
	b.queue.close()
}

// IsShutdown reports whether Shutdown has been called.
func (b *NullBackend) IsShutdown() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shutdown
}

// Size implements Backend.
func (b *NullBackend) Size() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width, b.height
}

// OnResize implements Backend.
func (b *NullBackend) OnResize(callback func(width, height int)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resizeHandler = callback
}

// Flush applies the frame to the in-memory screen.
func (b *NullBackend) Flush(frame compositor.Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.flushErr != nil {
		return b.flushErr
	}
	if frame.Width > 0 && frame.Height > 0 {
		if w, h := b.screen.Size(); w != frame.Width || h != frame.Height {
			b.screen.Resize(frame.Width, frame.Height)
		}
	}
	compositor.Apply(b.screen, frame.Runs)
	b.frames = append(b.frames, frame)
	return nil
}

// SetFlushError makes subsequent flushes fail with err. nil restores
// normal operation.
func (b *NullBackend) SetFlushError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushErr = err
}

// Frames returns the frames flushed so far.
func (b *NullBackend) Frames() []compositor.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]compositor.Frame, len(b.frames))
	copy(out, b.frames)
	return out
}

// Screen returns a copy of what a real terminal would display.
func (b *NullBackend) Screen() *buffer.OptimizedBuffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.screen.Clone()
}

// GetCell returns the displayed cell at (x, y).
func (b *NullBackend) GetCell(x, y int) core.Cell {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, _ := b.screen.GetCell(x, y)
	return c
}

// ShowCursor implements Backend.
func (b *NullBackend) ShowCursor(x, y int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cursorX, b.cursorY = x, y
	b.cursorVisible = true
}

// HideCursor implements Backend.
func (b *NullBackend) HideCursor() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cursorVisible = false
}

// CursorPosition returns the cursor position and visibility.
func (b *NullBackend) CursorPosition() (x, y int, visible bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursorX, b.cursorY, b.cursorVisible
}

// PollEvent implements Backend.
func (b *NullBackend) PollEvent() Event {
	return b.queue.poll()
}

// PostEvent implements Backend.
func (b *NullBackend) PostEvent(event Event) bool {
	return b.queue.post(event)
}

func (b *NullBackend) HasTrueColor() bool { return true }
func (b *NullBackend) Beep()              {}

// EnableMouse implements Backend.
func (b *NullBackend) EnableMouse() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mouse = true
}

// DisableMouse implements Backend.
func (b *NullBackend) DisableMouse() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mouse = false
}

// MouseEnabled reports whether mouse reporting is on.
func (b *NullBackend) MouseEnabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mouse
}

// Resize simulates a terminal resize: the handler runs and a resize
// event is queued.
func (b *NullBackend) Resize(width, height int) {
	b.mu.Lock()
	b.width = width
	b.height = height
	handler := b.resizeHandler
	b.mu.Unlock()

	if handler != nil {
		handler(width, height)
	}
	b.queue.post(Event{Type: EventResize, Width: width, Height: height})
}
