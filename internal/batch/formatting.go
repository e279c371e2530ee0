package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MatrixRecord is one extracted matrix in a report.
type MatrixRecord struct {
	Index    int    `json:"index"`
	Text     string `json:"text"`
	Filename string `json:"filename"`
	Output   string `json:"output"`
}

// FailureRecord is one failure in a report.
type FailureRecord struct {
	Index int    `json:"index,omitempty"` // 0 for whole-image failures
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// ImageRecord collects the outcome of one image.
type ImageRecord struct {
	Path      string          `json:"path"`
	Position  int             `json:"position"`
	Completed bool            `json:"completed"`
	Count     int             `json:"count"`
	Matrices  []MatrixRecord  `json:"matrices,omitempty"`
	Failures  []FailureRecord `json:"failures,omitempty"`
}

// Report is a Sink that builds a per-image log of a job, printable as
// text, json or csv.
type Report struct {
	mu      sync.Mutex
	images  []*ImageRecord
	byPath  map[string]*ImageRecord
	summary *Summary
	fatal   string
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{byPath: make(map[string]*ImageRecord)}
}

func (r *Report) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e.Kind {
	case EventImageStarted:
		rec := &ImageRecord{Path: e.Path, Position: e.Position}
		r.images = append(r.images, rec)
		if r.byPath == nil {
			r.byPath = make(map[string]*ImageRecord)
		}
		r.byPath[e.Path] = rec
	case EventMatrixFound:
		if rec := r.byPath[e.Path]; rec != nil {
			rec.Matrices = append(rec.Matrices, MatrixRecord{
				Index: e.Index, Text: e.Text, Filename: e.Filename, Output: e.Output,
			})
		}
	case EventImageFailed:
		if rec := r.byPath[e.Path]; rec != nil {
			rec.Failures = append(rec.Failures, FailureRecord{
				Index: e.Index, Kind: string(e.ErrKind), Error: e.Error(),
			})
		}
	case EventImageCompleted:
		if rec := r.byPath[e.Path]; rec != nil {
			rec.Completed = true
			rec.Count = e.Count
		}
	case EventJobCompleted:
		r.summary = e.Summary
	case EventJobFailed:
		r.summary = e.Summary
		r.fatal = e.Error()
	}
}

// Images returns copies of the image records in processing order.
func (r *Report) Images() []ImageRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ImageRecord, len(r.images))
	for i, rec := range r.images {
		out[i] = *rec
	}
	return out
}

// Summary returns the final summary once the job has ended.
func (r *Report) Summary() (Summary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.summary == nil {
		return Summary{}, false
	}
	return *r.summary, true
}

// Format renders the report as "text", "json" or "csv".
func (r *Report) Format(format string) (string, error) {
	images := r.Images()
	summary, _ := r.Summary()
	r.mu.Lock()
	fatal := r.fatal
	r.mu.Unlock()

	switch strings.ToLower(format) {
	case "json":
		return formatJSON(images, summary, fatal)
	case "csv":
		return formatCSV(images)
	case "", "text":
		return formatText(images, summary, fatal), nil
	default:
		return "", fmt.Errorf("unsupported report format %q", format)
	}
}

// Save writes the formatted report to file, or to w when file is empty.
func (r *Report) Save(format, file string, w io.Writer) error {
	output, err := r.Format(format)
	if err != nil {
		return fmt.Errorf("failed to format report: %w", err)
	}
	if file != "" {
		if err := os.WriteFile(file, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write report file: %w", err)
		}
		return nil
	}
	_, err = io.WriteString(w, output)
	return err
}

// formatJSON formats the report as JSON.
func formatJSON(images []ImageRecord, summary Summary, fatal string) (string, error) {
	doc := struct {
		Images  []ImageRecord `json:"images"`
		Summary Summary       `json:"summary"`
		Error   string        `json:"error,omitempty"`
	}{Images: images, Summary: summary, Error: fatal}
	if doc.Images == nil {
		doc.Images = []ImageRecord{}
	}

	bts, err := json.MarshalIndent(doc, "", "  ")
	return string(bts), err
}

// formatCSV formats the report as one row per matrix or failure.
func formatCSV(images []ImageRecord) (string, error) {
	rows := [][]string{{"file", "status", "index", "text", "output", "error_kind", "error"}}

	for _, img := range images {
		for _, m := range img.Matrices {
			rows = append(rows, []string{img.Path, "extracted", strconv.Itoa(m.Index), m.Text, m.Output, "", ""})
		}
		for _, f := range img.Failures {
			rows = append(rows, []string{img.Path, "failed", strconv.Itoa(f.Index), "", "", f.Kind, f.Error})
		}
		if len(img.Matrices) == 0 && len(img.Failures) == 0 {
			// Add empty row for files without matrices
			rows = append(rows, []string{img.Path, "empty", "0", "", "", "", ""})
		}
	}

	var output strings.Builder
	writer := csv.NewWriter(&output)
	if err := writer.WriteAll(rows); err != nil {
		return "", err
	}
	return output.String(), nil
}

// formatText formats the report as plain text.
func formatText(images []ImageRecord, summary Summary, fatal string) string {
	var output strings.Builder
	for i, img := range images {
		if i > 0 {
			output.WriteString("\n")
		}
		output.WriteString(fmt.Sprintf("# %s\n", img.Path))
		for _, m := range img.Matrices {
			output.WriteString(fmt.Sprintf("  %d: %q -> %s\n", m.Index, m.Text, m.Filename))
		}
		for _, f := range img.Failures {
			if f.Index > 0 {
				output.WriteString(fmt.Sprintf("  %d: error [%s] %s\n", f.Index, f.Kind, f.Error))
			} else {
				output.WriteString(fmt.Sprintf("  error [%s] %s\n", f.Kind, f.Error))
			}
		}
		if img.Completed && img.Count == 0 {
			output.WriteString("  no matrices\n")
		}
	}
	if fatal != "" {
		output.WriteString(fmt.Sprintf("\nfatal: %s\n", fatal))
	}
	output.WriteString(fmt.Sprintf("\n%s in %v\n", summary.String(), summary.Duration.Round(time.Millisecond)))
	return output.String()
}
