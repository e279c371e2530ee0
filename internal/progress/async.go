package progress

import (
	"sync"

	"github.com/MeKo-Tech/dmscan/internal/batch"
)

// AsyncSink decouples the batch worker from a slow consumer. Events are
// queued without bound and delivered to the wrapped sink by one goroutine,
// in order; none are dropped.
type AsyncSink struct {
	wrapped batch.Sink

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []batch.Event
	closed bool
	done   chan struct{}
}

// NewAsyncSink starts the delivery goroutine. Call Close to flush and stop it.
func NewAsyncSink(wrapped batch.Sink) *AsyncSink {
	a := &AsyncSink{wrapped: wrapped, done: make(chan struct{})}
	a.cond = sync.NewCond(&a.mu)
	go a.loop()
	return a
}

// Emit queues e. Events emitted after Close are discarded.
func (a *AsyncSink) Emit(e batch.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.queue = append(a.queue, e)
	a.cond.Signal()
}

// Close delivers all queued events and waits for the goroutine to exit.
func (a *AsyncSink) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		a.cond.Signal()
	}
	a.mu.Unlock()
	<-a.done
}

// Pending returns the number of events not yet delivered.
func (a *AsyncSink) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue)
}

func (a *AsyncSink) loop() {
	defer close(a.done)
	for {
		a.mu.Lock()
		for len(a.queue) == 0 && !a.closed {
			a.cond.Wait()
		}
		if len(a.queue) == 0 && a.closed {
			a.mu.Unlock()
			return
		}
		batchOf := a.queue
		a.queue = nil
		a.mu.Unlock()

		for _, e := range batchOf {
			a.wrapped.Emit(e)
		}
	}
}
