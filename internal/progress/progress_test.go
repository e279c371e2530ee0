package progress

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MeKo-Tech/dmscan/internal/batch"
	"github.com/MeKo-Tech/dmscan/internal/scanerr"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jobEvents() []batch.Event {
	summary := batch.Summary{ImagesTotal: 2, ImagesProcessed: 1, ImagesFailed: 1, MatricesFound: 2, MatricesExtracted: 1, WriteErrors: 1, Duration: 2 * time.Second}
	events := []batch.Event{
		{Kind: batch.EventImageStarted, Path: "a.png", Position: 1},
		{Kind: batch.EventMatrixFound, Path: "a.png", Position: 1, Index: 1, Text: "X1", Filename: "X1_s.png", Output: "out/a/X1_s.png"},
		{Kind: batch.EventImageFailed, Path: "a.png", Position: 1, Index: 2, ErrKind: scanerr.KindWriteError, Err: errors.New("disk full")},
		{Kind: batch.EventImageCompleted, Path: "a.png", Position: 1, Count: 2},
		{Kind: batch.EventImageStarted, Path: "b.png", Position: 2},
		{Kind: batch.EventImageFailed, Path: "b.png", Position: 2, ErrKind: scanerr.KindLoadError, Err: errors.New("corrupt")},
		{Kind: batch.EventJobCompleted, Summary: &summary},
	}
	for i := range events {
		events[i].Seq = uint64(i + 1)
		events[i].Total = 2
	}
	return events
}

func emitAll(s batch.Sink, events []batch.Event) {
	for _, e := range events {
		s.Emit(e)
	}
}

func TestConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, "scan ").WithWidth(10).WithUpdateInterval(0).WithRate(false)

	emitAll(sink, jobEvents())
	out := buf.String()

	assert.Contains(t, out, "[█████░░░░░] 1/2 (50.0%)")
	assert.Contains(t, out, "[██████████] 2/2 (100.0%)")
	assert.Contains(t, out, "scan [1/2] a.png: failed: disk full")
	assert.Contains(t, out, "scan [2/2] b.png: failed: corrupt")
	assert.Contains(t, out, "job completed: 1/2 images processed")
	assert.NotContains(t, out, "/s")
}

func TestConsoleSink_NilWriterAndEmptyJob(t *testing.T) {
	sink := NewConsoleSink(nil, "")
	assert.Equal(t, os.Stderr, sink.writer)

	var buf bytes.Buffer
	sink = NewConsoleSink(&buf, "")
	sink.Emit(batch.Event{Kind: batch.EventJobCompleted, Summary: &batch.Summary{}})
	assert.Contains(t, buf.String(), "0/0 images processed")
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	emitAll(NewLogSink(logger, slog.LevelInfo), jobEvents())
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 7)

	assert.Contains(t, lines[0], `"msg":"image started"`)
	assert.Contains(t, lines[1], `"msg":"matrix extracted"`)
	assert.Contains(t, lines[1], `"text":"X1"`)
	assert.Contains(t, lines[2], `"level":"WARN"`)
	assert.Contains(t, lines[2], `"index":2`)
	assert.Contains(t, lines[3], `"count":2`)
	assert.Contains(t, lines[5], `"error_kind":"load_error"`)
	assert.Contains(t, lines[6], `"msg":"job completed"`)
	assert.Contains(t, lines[6], `"extracted":1`)
}

func TestLogSink_JobFailed(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	NewLogSink(logger, slog.LevelInfo).Emit(batch.Event{
		Kind: batch.EventJobFailed, ErrKind: scanerr.KindSourceUnavailable, Err: errors.New("no such dir"),
	})
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
	assert.Contains(t, buf.String(), `"error":"no such dir"`)
}

func TestMultiSink(t *testing.T) {
	var a, b batch.Recorder
	m := NewMultiSink(&a, nil)
	m.Add(&b)
	m.Add(nil)

	emitAll(m, jobEvents())
	assert.Len(t, a.Events(), 7)
	assert.Equal(t, a.Kinds(), b.Kinds())
}

func TestThrottledSink(t *testing.T) {
	var rec batch.Recorder
	sink := NewThrottledSink(&rec, time.Hour)

	sink.Emit(batch.Event{Kind: batch.EventImageStarted, Position: 1})
	sink.Emit(batch.Event{Kind: batch.EventImageStarted, Position: 2})
	sink.Emit(batch.Event{Kind: batch.EventImageCompleted, Position: 2})
	sink.Emit(batch.Event{Kind: batch.EventJobCompleted})

	assert.Equal(t, []batch.EventKind{batch.EventImageStarted, batch.EventImageCompleted, batch.EventJobCompleted}, rec.Kinds())
}

type slowSink struct {
	mu   sync.Mutex
	seqs []uint64
}

func (s *slowSink) Emit(e batch.Event) {
	time.Sleep(time.Millisecond)
	s.mu.Lock()
	s.seqs = append(s.seqs, e.Seq)
	s.mu.Unlock()
}

func TestAsyncSink_PreservesOrder(t *testing.T) {
	slow := &slowSink{}
	async := NewAsyncSink(slow)

	for i := 1; i <= 50; i++ {
		async.Emit(batch.Event{Seq: uint64(i)})
	}
	async.Close()

	require.Len(t, slow.seqs, 50)
	for i, seq := range slow.seqs {
		assert.Equal(t, uint64(i+1), seq)
	}
	assert.Zero(t, async.Pending())

	async.Emit(batch.Event{Seq: 99})
	async.Close()
	assert.Len(t, slow.seqs, 50)
}

func TestAsyncSink_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every event is delivered once in order", prop.ForAll(
		func(n int) bool {
			var rec batch.Recorder
			async := NewAsyncSink(&rec)
			for i := range n {
				async.Emit(batch.Event{Seq: uint64(i)})
			}
			async.Close()

			events := rec.Events()
			if len(events) != n {
				return false
			}
			for i, e := range events {
				if e.Seq != uint64(i) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 200),
	))

	properties.TestingRun(t)
}

func TestMetricsSink(t *testing.T) {
	m := NewMetricsSink()
	emitAll(m, jobEvents())

	assert.InDelta(t, 1, testutil.ToFloat64(m.imagesTotal.WithLabelValues("completed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.imagesTotal.WithLabelValues("failed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.matricesTotal), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.failuresTotal.WithLabelValues("write_error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.failuresTotal.WithLabelValues("load_error")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.jobDuration), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.jobCancelled), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.lastPosition), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.matricesPerImage))
}

func TestMetricsSink_Cancelled(t *testing.T) {
	m := NewMetricsSink()
	m.Emit(batch.Event{Kind: batch.EventJobCompleted, Summary: &batch.Summary{Cancelled: true}})
	assert.InDelta(t, 1, testutil.ToFloat64(m.jobCancelled), 0)

	m.Emit(batch.Event{Kind: batch.EventJobFailed, ErrKind: scanerr.KindSourceUnavailable, Summary: &batch.Summary{}})
	assert.InDelta(t, 0, testutil.ToFloat64(m.jobCancelled), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.failuresTotal.WithLabelValues("source_unavailable")), 0)
}

func TestMetricsSink_WriteTextfile(t *testing.T) {
	m := NewMetricsSink()
	emitAll(m, jobEvents())

	path := filepath.Join(t.TempDir(), "dmscan.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "dmscan_matrices_extracted_total 1")
	assert.Contains(t, string(data), `dmscan_images_total{status="completed"} 1`)

	assert.Error(t, m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom")))
}
