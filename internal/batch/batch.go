// Package batch runs automated Data Matrix extraction over a folder of
// images on a single background worker.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/dmscan/internal/barcode"
	"github.com/MeKo-Tech/dmscan/internal/preprocess"
)

// ErrBusy is returned by Start while another job is running.
var ErrBusy = errors.New("batch: a job is already running")

// Runner executes batch jobs one at a time.
type Runner struct {
	locator       barcode.Locator
	engine        preprocess.Engine
	preprocess    preprocess.Options
	clock         func() time.Time
	logger        *slog.Logger
	maxBaseLength int

	mu     sync.Mutex
	active bool
}

// NewRunner creates a Runner that decodes with locator.
func NewRunner(locator barcode.Locator, opts ...Option) *Runner {
	r := defaultRunner()
	r.locator = locator
	for _, o := range opts {
		o(r)
	}
	return r
}

// Handle controls a job started with Start.
type Handle struct {
	cancel  context.CancelFunc
	done    chan struct{}
	summary Summary
	err     error
}

// Cancel asks the job to stop before the next image. It does not wait.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed once the terminal event has been emitted.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the job has finished and returns its summary. The
// error is non-nil only for fatal failures.
func (h *Handle) Wait() (Summary, error) {
	<-h.done
	return h.summary, h.err
}

// Start validates job and runs it on a new goroutine. Events go to sink,
// which may be nil. Start fails with ErrBusy while another job is active.
func (r *Runner) Start(ctx context.Context, job Job, sink Sink) (*Handle, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	if !r.acquire() {
		return nil, ErrBusy
	}
	if sink == nil {
		sink = noopSink{}
	}

	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer r.release()
		defer cancel()
		h.summary, h.err = r.execute(ctx, job.withDefaults(), sink)
	}()
	return h, nil
}

// Run is the synchronous form of Start.
func (r *Runner) Run(ctx context.Context, job Job, sink Sink) (Summary, error) {
	h, err := r.Start(ctx, job, sink)
	if err != nil {
		return Summary{}, err
	}
	return h.Wait()
}

// Busy reports whether a job is running.
func (r *Runner) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Runner) acquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return false
	}
	r.active = true
	return true
}

func (r *Runner) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = false
}
