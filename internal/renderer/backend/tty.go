package backend

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/dshills/termframe/internal/renderer/compositor"
)

// escapeTimeout is how long a lone ESC waits for the rest of a sequence
// before it is reported as the Escape key.
const escapeTimeout = 50 * time.Millisecond

// Fallback size when the terminal cannot be queried.
const (
	fallbackWidth  = 80
	fallbackHeight = 24
)

// Terminal mode sequences.
const (
	seqAltScreenEnter = "\x1b[?1049h"
	seqAltScreenExit  = "\x1b[?1049l"
	seqCursorHide     = "\x1b[?25l"
	seqCursorShow     = "\x1b[?25h"
	seqAutoWrapOff    = "\x1b[?7l"
	seqAutoWrapOn     = "\x1b[?7h"
	seqClear          = "\x1b[2J"
	seqReset          = "\x1b[0m"
	seqMouseOn        = "\x1b[?1000h\x1b[?1002h\x1b[?1006h"
	seqMouseOff       = "\x1b[?1006l\x1b[?1002l\x1b[?1000l"
	seqBell           = "\a"
)

// enterSequence puts the terminal into full-screen mode.
func enterSequence(mouse bool) string {
	s := seqAltScreenEnter + seqCursorHide + seqAutoWrapOff + seqReset + seqClear
	if mouse {
		s += seqMouseOn
	}
	return s
}

// exitSequence undoes enterSequence.
func exitSequence(mouse bool) string {
	s := ""
	if mouse {
		s = seqMouseOff
	}
	return s + seqReset + seqAutoWrapOn + seqCursorShow + seqAltScreenExit
}

// errStopped is returned by readInput once the stop channel is closed.
var errStopped = errors.New("input reader stopped")

// TTYBackend drives a terminal directly with ANSI sequences. The input
// file is put into raw mode on Init and restored on Shutdown.
type TTYBackend struct {
	in, out *os.File
	enc     *compositor.ANSIEncoder

	mu            sync.Mutex
	state         *term.State
	width, height int
	mouse         bool
	initialized   bool
	shutdown      bool
	resizeHandler func(width, height int)

	queue *eventQueue
	stop  chan struct{}
	wg    sync.WaitGroup
}

// NewTTYBackend creates a backend on stdin and stdout.
func NewTTYBackend(mode compositor.ColorMode) *TTYBackend {
	return NewTTYBackendFiles(os.Stdin, os.Stdout, mode)
}

// NewTTYBackendFiles creates a backend reading from in and writing to out.
func NewTTYBackendFiles(in, out *os.File, mode compositor.ColorMode) *TTYBackend {
	return &TTYBackend{
		in:     in,
		out:    out,
		enc:    compositor.NewANSIEncoder(out, mode),
		width:  fallbackWidth,
		height: fallbackHeight,
		queue:  newEventQueue(),
	}
}

// Init enters raw mode and the alternate screen. On any failure the
// terminal is left as it was found.
func (b *TTYBackend) Init() (err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return nil
	}
	if b.shutdown {
		return &InitError{Backend: "ansi", Err: errors.New("backend already shut down")}
	}
	if err := platformCheck(); err != nil {
		return &InitError{Backend: "ansi", Err: err}
	}

	inFd := int(b.in.Fd())
	if !term.IsTerminal(inFd) {
		return &InitError{Backend: "ansi", Err: ErrNotTerminal}
	}

	state, err := term.MakeRaw(inFd)
	if err != nil {
		return &InitError{Backend: "ansi", Err: fmt.Errorf("raw mode: %w", err)}
	}
	defer func() {
		if err != nil {
			term.Restore(inFd, state)
		}
	}()

	if _, err = io.WriteString(b.out, enterSequence(b.mouse)); err != nil {
		return &InitError{Backend: "ansi", Err: err}
	}

	b.state = state
	b.width, b.height = b.querySize()
	b.stop = make(chan struct{})
	b.initialized = true

	b.wg.Add(2)
	go b.readLoop(inFd, b.stop)
	go b.resizeLoop(b.stop)
	return nil
}

// Shutdown stops the input and resize goroutines and restores the
// terminal. It is safe to call more than once and before Init.
func (b *TTYBackend) Shutdown() {
	b.mu.Lock()
	if b.shutdown {
		b.mu.Unlock()
		return
	}
	b.shutdown = true
	wasInit := b.initialized
	if wasInit {
		close(b.stop)
	}
	b.mu.Unlock()

	if wasInit {
		b.wg.Wait()

		b.mu.Lock()
		io.WriteString(b.out, exitSequence(b.mouse))
		term.Restore(int(b.in.Fd()), b.state)
		b.initialized = false
		b.mu.Unlock()
	}
	b.queue.close()
}

func (b *TTYBackend) querySize() (int, int) {
	if w, h, err := terminalSize(int(b.out.Fd())); err == nil && w > 0 && h > 0 {
		return w, h
	}
	return fallbackWidth, fallbackHeight
}

// Size implements Backend.
func (b *TTYBackend) Size() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width, b.height
}

// OnResize implements Backend.
func (b *TTYBackend) OnResize(callback func(width, height int)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resizeHandler = callback
}

// Flush encodes the frame as ANSI output.
func (b *TTYBackend) Flush(frame compositor.Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return ErrNotInitialized
	}
	return b.enc.Flush(frame)
}

// writeLocked writes a control sequence. Callers hold b.mu.
func (b *TTYBackend) writeLocked(s string) {
	if b.initialized {
		io.WriteString(b.out, s)
	}
}

// ShowCursor implements Backend.
func (b *TTYBackend) ShowCursor(x, y int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeLocked("\x1b[" + strconv.Itoa(y+1) + ";" + strconv.Itoa(x+1) + "H" + seqCursorShow)
}

// HideCursor implements Backend.
func (b *TTYBackend) HideCursor() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeLocked(seqCursorHide)
}

// PollEvent implements Backend.
func (b *TTYBackend) PollEvent() Event {
	return b.queue.poll()
}

// PostEvent implements Backend.
func (b *TTYBackend) PostEvent(event Event) bool {
	return b.queue.post(event)
}

// HasTrueColor implements Backend.
func (b *TTYBackend) HasTrueColor() bool {
	return b.enc.Mode() == compositor.ColorModeTrueColor
}

// Beep implements Backend.
func (b *TTYBackend) Beep() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeLocked(seqBell)
}

// EnableMouse turns on SGR mouse reporting. Before Init it only records
// the setting.
func (b *TTYBackend) EnableMouse() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mouse {
		b.mouse = true
		b.writeLocked(seqMouseOn)
	}
}

// DisableMouse turns off mouse reporting.
func (b *TTYBackend) DisableMouse() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mouse {
		b.mouse = false
		b.writeLocked(seqMouseOff)
	}
}

func (b *TTYBackend) readLoop(fd int, stop <-chan struct{}) {
	defer b.wg.Done()

	var dec Decoder
	buf := make([]byte, 256)
	for {
		n, err := readInput(fd, buf, escapeTimeout, stop)
		if err != nil {
			if !errors.Is(err, errStopped) {
				b.queue.post(Event{Type: EventError, Err: err})
			}
			return
		}
		if n == 0 {
			if dec.Pending() {
				b.postAll(dec.Flush())
			}
			continue
		}
		b.postAll(dec.Feed(buf[:n]))
	}
}

func (b *TTYBackend) postAll(events []Event) {
	for _, ev := range events {
		b.queue.post(ev)
	}
}

func (b *TTYBackend) resizeLoop(stop <-chan struct{}) {
	defer b.wg.Done()

	signals, release := resizeSignals()
	defer release()

	for {
		select {
		case <-stop:
			return
		case <-signals:
			w, h := b.querySize()

			b.mu.Lock()
			changed := w != b.width || h != b.height
			b.width, b.height = w, h
			handler := b.resizeHandler
			b.mu.Unlock()

			if !changed {
				continue
			}
			if handler != nil {
				handler(w, h)
			}
			b.queue.post(Event{Type: EventResize, Width: w, Height: h})
		}
	}
}
