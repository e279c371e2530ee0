package batch

import (
	"fmt"
	"sync"
	"time"

	"github.com/MeKo-Tech/dmscan/internal/region"
	"github.com/MeKo-Tech/dmscan/internal/scanerr"
)

// EventKind tags a progress event.
type EventKind string

const (
	EventImageStarted   EventKind = "image_started"
	EventMatrixFound    EventKind = "matrix_found"
	EventImageCompleted EventKind = "image_completed"
	EventImageFailed    EventKind = "image_failed"
	EventJobCompleted   EventKind = "job_completed"
	EventJobFailed      EventKind = "job_failed"
)

// Terminal reports whether no further events follow this kind.
func (k EventKind) Terminal() bool {
	return k == EventJobCompleted || k == EventJobFailed
}

// Event is one progress notification. Events of a job are emitted in
// processing order with strictly increasing Seq.
type Event struct {
	Seq      uint64    `json:"seq"`
	Time     time.Time `json:"time"`
	Kind     EventKind `json:"kind"`
	Path     string    `json:"path,omitempty"`
	Position int       `json:"position,omitempty"` // 1-based index of the image
	Total    int       `json:"total"`

	// MatrixFound
	Index    int    `json:"index,omitempty"`
	Filename string `json:"filename,omitempty"`
	Output   string `json:"output,omitempty"`
	Text     string `json:"text,omitempty"`

	// ImageCompleted
	Count int `json:"count,omitempty"`

	// ImageFailed and JobFailed
	ErrKind scanerr.Kind   `json:"error_kind,omitempty"`
	Err     error          `json:"-"`
	Region  *region.Region `json:"region,omitempty"`

	// JobCompleted
	Summary *Summary `json:"summary,omitempty"`
}

// Error returns the error message, or "" when the event carries no error.
func (e Event) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e Event) String() string {
	switch e.Kind {
	case EventImageStarted:
		return fmt.Sprintf("[%d/%d] %s: started", e.Position, e.Total, e.Path)
	case EventMatrixFound:
		return fmt.Sprintf("[%d/%d] %s: matrix %d -> %s (%q)", e.Position, e.Total, e.Path, e.Index, e.Filename, e.Text)
	case EventImageCompleted:
		return fmt.Sprintf("[%d/%d] %s: %d matrices", e.Position, e.Total, e.Path, e.Count)
	case EventImageFailed:
		return fmt.Sprintf("[%d/%d] %s: failed: %s", e.Position, e.Total, e.Path, e.Error())
	case EventJobCompleted:
		if e.Summary != nil {
			return "job completed: " + e.Summary.String()
		}
		return "job completed"
	case EventJobFailed:
		return "job failed: " + e.Error()
	default:
		return string(e.Kind)
	}
}

// Sink receives progress events. Emit is called from the worker goroutine,
// one event at a time, in order.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

type noopSink struct{}

func (noopSink) Emit(Event) {}

// Recorder is a Sink that keeps every event.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the kinds of the recorded events in order.
func (r *Recorder) Kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]EventKind, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}

// emitter stamps events with sequence numbers and times.
type emitter struct {
	sink  Sink
	clock func() time.Time
	seq   uint64
	total int
}

func (em *emitter) emit(e Event) {
	em.seq++
	e.Seq = em.seq
	e.Time = em.clock()
	e.Total = em.total
	em.sink.Emit(e)
}
