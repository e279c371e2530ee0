// Package progress provides batch.Sink implementations for presenting job
// progress: a console bar, structured logs, fan-out, asynchronous delivery
// and Prometheus metrics.
package progress

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/dmscan/internal/batch"
)

// ConsoleSink displays a progress bar on the console.
type ConsoleSink struct {
	writer         io.Writer
	prefix         string
	width          int
	lastUpdate     time.Time
	updateInterval time.Duration
	mutex          sync.Mutex
	startTime      time.Time
	done           int
	showRate       bool
}

// NewConsoleSink creates a new console progress reporter.
func NewConsoleSink(writer io.Writer, prefix string) *ConsoleSink {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleSink{
		writer:         writer,
		prefix:         prefix,
		width:          40,
		updateInterval: 100 * time.Millisecond,
		showRate:       true,
	}
}

// WithWidth sets the progress bar width.
func (c *ConsoleSink) WithWidth(width int) *ConsoleSink {
	c.width = width
	return c
}

// WithUpdateInterval sets how frequently the progress bar updates.
func (c *ConsoleSink) WithUpdateInterval(interval time.Duration) *ConsoleSink {
	c.updateInterval = interval
	return c
}

// WithRate toggles the images-per-second display.
func (c *ConsoleSink) WithRate(show bool) *ConsoleSink {
	c.showRate = show
	return c
}

func (c *ConsoleSink) Emit(e batch.Event) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	switch e.Kind {
	case batch.EventImageStarted:
		if c.startTime.IsZero() {
			c.startTime = time.Now()
		}
	case batch.EventImageCompleted, batch.EventImageFailed:
		if e.Kind == batch.EventImageFailed {
			_, _ = fmt.Fprintf(c.writer, "\n%s%s\n", c.prefix, e.String())
			if e.Index > 0 {
				// a single matrix failed; the image continues
				return
			}
		}
		c.done++
		now := time.Now()
		if now.Sub(c.lastUpdate) < c.updateInterval && c.done < e.Total {
			return // Don't update too frequently
		}
		c.lastUpdate = now
		c.drawProgressBar(c.done, e.Total, now)
	case batch.EventJobCompleted, batch.EventJobFailed:
		_, _ = fmt.Fprintf(c.writer, "\n%s%s\n", c.prefix, e.String())
	}
}

func (c *ConsoleSink) drawProgressBar(current, total int, now time.Time) {
	if total == 0 {
		return
	}

	percent := float64(current) / float64(total) * 100.0
	filled := min(int(float64(c.width)*float64(current)/float64(total)), c.width)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)

	status := fmt.Sprintf("\r%s[%s] %d/%d (%.1f%%)", c.prefix, bar, current, total, percent)
	if elapsed := now.Sub(c.startTime); c.showRate && elapsed > 0 {
		status += fmt.Sprintf(" %.1f/s", float64(current)/elapsed.Seconds())
	}
	_, _ = fmt.Fprint(c.writer, status)
}

// LogSink writes every event as a structured log record.
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogSink creates a log-based progress reporter.
func NewLogSink(logger *slog.Logger, level slog.Level) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger, level: level}
}

func (l *LogSink) Emit(e batch.Event) {
	attrs := []any{"seq", e.Seq, "kind", string(e.Kind)}
	if e.Path != "" {
		attrs = append(attrs, "file", e.Path, "position", e.Position, "total", e.Total)
	}

	ctx := context.Background()
	switch e.Kind {
	case batch.EventMatrixFound:
		l.logger.Log(ctx, l.level, "matrix extracted",
			append(attrs, "index", e.Index, "text", e.Text, "output", e.Output)...)
	case batch.EventImageCompleted:
		l.logger.Log(ctx, l.level, "image completed", append(attrs, "count", e.Count)...)
	case batch.EventImageFailed:
		if e.Index > 0 {
			attrs = append(attrs, "index", e.Index)
		}
		l.logger.Log(ctx, slog.LevelWarn, "image failed",
			append(attrs, "error_kind", string(e.ErrKind), "error", e.Error())...)
	case batch.EventJobCompleted:
		if e.Summary != nil {
			attrs = append(attrs,
				"processed", e.Summary.ImagesProcessed,
				"failed", e.Summary.ImagesFailed,
				"extracted", e.Summary.MatricesExtracted,
				"cancelled", e.Summary.Cancelled,
				"elapsed", e.Summary.Duration.Round(time.Millisecond))
		}
		l.logger.Log(ctx, l.level, "job completed", attrs...)
	case batch.EventJobFailed:
		l.logger.Log(ctx, slog.LevelError, "job failed",
			append(attrs, "error_kind", string(e.ErrKind), "error", e.Error())...)
	default:
		l.logger.Log(ctx, slog.LevelDebug, "image started", attrs...)
	}
}

// MultiSink forwards each event to several sinks in order.
type MultiSink struct {
	sinks []batch.Sink
}

// NewMultiSink creates a sink that reports to multiple sinks. Nil sinks are
// skipped.
func NewMultiSink(sinks ...batch.Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		m.Add(s)
	}
	return m
}

// Add adds another sink.
func (m *MultiSink) Add(s batch.Sink) {
	if s != nil {
		m.sinks = append(m.sinks, s)
	}
}

func (m *MultiSink) Emit(e batch.Event) {
	for _, s := range m.sinks {
		s.Emit(e)
	}
}

// ThrottledSink drops ImageStarted events that arrive faster than
// minInterval. All other events pass through.
type ThrottledSink struct {
	wrapped     batch.Sink
	minInterval time.Duration
	lastUpdate  time.Time
	mutex       sync.Mutex
}

// NewThrottledSink creates a throttled wrapper around another sink.
func NewThrottledSink(wrapped batch.Sink, minInterval time.Duration) *ThrottledSink {
	return &ThrottledSink{wrapped: wrapped, minInterval: minInterval}
}

func (t *ThrottledSink) Emit(e batch.Event) {
	if e.Kind == batch.EventImageStarted {
		t.mutex.Lock()
		now := time.Now()
		if !t.lastUpdate.IsZero() && now.Sub(t.lastUpdate) < t.minInterval {
			t.mutex.Unlock()
			return
		}
		t.lastUpdate = now
		t.mutex.Unlock()
	}
	t.wrapped.Emit(e)
}
