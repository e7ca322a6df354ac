package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 100 * time.Millisecond

// ReloadHandler receives the reloaded configuration, or the error that
// prevented it.
type ReloadHandler func(cfg Config, err error)

// Watcher reloads a config file when it changes.
//
// The file's directory is watched rather than the file itself so that
// editors that save by renaming a temporary file are noticed.
type Watcher struct {
	mu sync.Mutex

	fsw    *fsnotify.Watcher
	path   string
	loader *Loader
	delay  time.Duration
	handle ReloadHandler

	timer   *time.Timer
	reloads int

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the debounce duration for rapid changes.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithLoader reloads through l instead of the default loader.
func WithLoader(l *Loader) WatcherOption {
	return func(w *Watcher) {
		w.loader = l
	}
}

// NewWatcher starts watching path. handle is called from the watcher's
// goroutine after every settled change.
func NewWatcher(path string, handle ReloadHandler, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		fsw:     fsw,
		path:    abs,
		delay:   DefaultDebounce,
		handle:  handle,
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.loader == nil {
		w.loader = NewLoader()
	}

	w.closedWg.Add(1)
	go w.processLoop()
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Reloads returns how many reloads have been delivered.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

// Close stops the watcher. Pending reloads are dropped and a reload
// already running finishes before Close returns, so handle is never
// called afterwards. It must not be called from handle.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.stopTimerLocked()
	w.mu.Unlock()

	w.closedWg.Wait()
	return w.fsw.Close()
}

func (w *Watcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.relevant(ev) {
				w.schedule()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.handle(Config{}, err)
		}
	}
}

// relevant reports whether ev touches the watched file. Chmod alone is
// ignored.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	name, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	return name == w.path
}

// schedule delays the reload until no further events arrive for the
// debounce period.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.stopTimerLocked()
	// each armed timer holds the WaitGroup until it runs or is stopped
	w.closedWg.Add(1)
	w.timer = time.AfterFunc(w.delay, w.reload)
}

// stopTimerLocked cancels a pending reload. Callers hold w.mu.
func (w *Watcher) stopTimerLocked() {
	if w.timer != nil && w.timer.Stop() {
		w.closedWg.Done()
	}
	w.timer = nil
}

func (w *Watcher) reload() {
	defer w.closedWg.Done()

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.reloads++
	w.mu.Unlock()

	cfg, err := w.loader.Load(w.path)
	w.handle(cfg, err)
}
