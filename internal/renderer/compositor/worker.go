package compositor

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dshills/termframe/internal/renderer/buffer"
)

// ErrWorkerStopped is returned by Worker calls made after Stop.
var ErrWorkerStopped = errors.New("compositor worker stopped")

type requestKind uint8

const (
	reqSubmit requestKind = iota
	reqResize
)

type request struct {
	kind  requestKind
	buf   *buffer.OptimizedBuffer
	w, h  int
	reply chan error
}

// WorkerStats reports worker activity.
type WorkerStats struct {
	Flushed uint64
	Errors  uint64
}

// Worker runs diff, flush and swap on its own goroutine.
//
// The worker owns the compositor. The paint side receives the back buffer
// from Ready, draws into it and returns it with Submit; it must not touch
// the buffer after submitting. Resize is synchronous and is only legal
// while the paint side holds no buffer.
type Worker struct {
	comp    *Compositor
	flusher Flusher
	onError func(error)

	requests chan request
	ready    chan *buffer.OptimizedBuffer
	quit     chan struct{}
	wg       sync.WaitGroup

	started  atomic.Bool
	stopOnce sync.Once

	flushed atomic.Uint64
	errs    atomic.Uint64
}

// NewWorker creates a worker around comp. onError receives flush failures
// and may be nil.
func NewWorker(comp *Compositor, f Flusher, onError func(error)) *Worker {
	return &Worker{
		comp:     comp,
		flusher:  f,
		onError:  onError,
		requests: make(chan request, 1),
		ready:    make(chan *buffer.OptimizedBuffer, 1),
		quit:     make(chan struct{}),
	}
}

// Start launches the worker goroutine and publishes the first back buffer.
// Subsequent calls do nothing.
func (w *Worker) Start() {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	w.ready <- w.comp.Back()
	w.wg.Add(1)
	go w.loop()
}

// Stop terminates the worker and waits for it to exit. Safe to call more
// than once and before Start.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.quit)
	})
	w.wg.Wait()
}

// Ready delivers the back buffer when it is available for painting.
func (w *Worker) Ready() <-chan *buffer.OptimizedBuffer {
	return w.ready
}

// TryAcquire returns the back buffer if the worker has published it.
func (w *Worker) TryAcquire() (*buffer.OptimizedBuffer, bool) {
	select {
	case buf := <-w.ready:
		return buf, true
	default:
		return nil, false
	}
}

// Submit hands a painted back buffer to the worker for flushing.
func (w *Worker) Submit(buf *buffer.OptimizedBuffer) error {
	if w.stopped() {
		return ErrWorkerStopped
	}
	select {
	case w.requests <- request{kind: reqSubmit, buf: buf}:
		return nil
	case <-w.quit:
		return ErrWorkerStopped
	}
}

// Resize resizes the compositor on the worker goroutine and waits for
// completion.
func (w *Worker) Resize(width, height int) error {
	if w.stopped() {
		return ErrWorkerStopped
	}
	reply := make(chan error, 1)
	select {
	case w.requests <- request{kind: reqResize, w: width, h: height, reply: reply}:
	case <-w.quit:
		return ErrWorkerStopped
	}
	select {
	case err := <-reply:
		return err
	case <-w.quit:
		return ErrWorkerStopped
	}
}

func (w *Worker) stopped() bool {
	select {
	case <-w.quit:
		return true
	default:
		return false
	}
}

// Stats returns a snapshot of worker counters.
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		Flushed: w.flushed.Load(),
		Errors:  w.errs.Load(),
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.quit:
			return
		case req := <-w.requests:
			switch req.kind {
			case reqSubmit:
				w.flush(req.buf)
			case reqResize:
				req.reply <- w.resize(req.w, req.h)
			}
		}
	}
}

func (w *Worker) flush(buf *buffer.OptimizedBuffer) {
	if buf != w.comp.Back() {
		// stale buffer from before a resize; republish the current one
		w.publish()
		return
	}
	if err := w.comp.DiffAndFlush(w.flusher); err != nil {
		w.errs.Add(1)
		if w.onError != nil {
			w.onError(err)
		}
	}
	w.flushed.Add(1)
	w.publish()
}

func (w *Worker) resize(width, height int) error {
	// reclaim the published buffer so it is not mutated while the paint
	// side could receive it
	select {
	case <-w.ready:
	default:
	}
	err := w.comp.Resize(width, height)
	w.publish()
	return err
}

func (w *Worker) publish() {
	select {
	case w.ready <- w.comp.Back():
	default:
	}
}
