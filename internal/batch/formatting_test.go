package batch

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/dmscan/internal/scanerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *Report {
	r := NewReport()
	summary := Summary{ImagesTotal: 2, ImagesProcessed: 1, ImagesFailed: 1, MatricesFound: 1, MatricesExtracted: 1, Duration: 1500 * time.Millisecond}
	for _, e := range []Event{
		{Kind: EventImageStarted, Path: "/in/a.png", Position: 1},
		{Kind: EventMatrixFound, Path: "/in/a.png", Index: 1, Text: "ABC123", Filename: "ABC123_s.png", Output: "/out/a/ABC123_s.png"},
		{Kind: EventImageCompleted, Path: "/in/a.png", Count: 1},
		{Kind: EventImageStarted, Path: "/in/b.png", Position: 2},
		{Kind: EventImageFailed, Path: "/in/b.png", ErrKind: scanerr.KindLoadError, Err: errors.New("corrupt")},
		{Kind: EventJobCompleted, Summary: &summary},
	} {
		r.Emit(e)
	}
	return r
}

func TestReport_Text(t *testing.T) {
	output, err := sampleReport().Format("text")
	require.NoError(t, err)

	assert.Contains(t, output, "# /in/a.png")
	assert.Contains(t, output, `1: "ABC123" -> ABC123_s.png`)
	assert.Contains(t, output, "# /in/b.png")
	assert.Contains(t, output, "error [load_error] corrupt")
	assert.Contains(t, output, "1/2 images processed, 1 failed, 1/1 matrices extracted in 1.5s")
}

func TestReport_JSON(t *testing.T) {
	output, err := sampleReport().Format("json")
	require.NoError(t, err)

	var doc struct {
		Images  []ImageRecord `json:"images"`
		Summary Summary       `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &doc))
	require.Len(t, doc.Images, 2)
	assert.Equal(t, "ABC123", doc.Images[0].Matrices[0].Text)
	assert.True(t, doc.Images[0].Completed)
	assert.False(t, doc.Images[1].Completed)
	assert.Equal(t, "load_error", doc.Images[1].Failures[0].Kind)
	assert.Equal(t, 2, doc.Summary.ImagesTotal)
}

func TestReport_CSV(t *testing.T) {
	output, err := sampleReport().Format("csv")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(output), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "file,status,index,text,output,error_kind,error", lines[0])
	assert.Equal(t, "/in/a.png,extracted,1,ABC123,/out/a/ABC123_s.png,,", lines[1])
	assert.Equal(t, "/in/b.png,failed,0,,,load_error,corrupt", lines[2])
}

func TestReport_EmptyAndUnsupported(t *testing.T) {
	r := NewReport()
	output, err := r.Format("json")
	require.NoError(t, err)
	assert.Contains(t, output, `"images": []`)

	_, err = r.Format("xml")
	assert.Error(t, err)
}

func TestReport_ZeroValue(t *testing.T) {
	var r Report
	r.Emit(Event{Kind: EventImageStarted, Path: "/in/a.png", Position: 1})
	r.Emit(Event{Kind: EventMatrixFound, Path: "/in/a.png", Index: 1, Text: "Z-1", Filename: "Z-1_s.png"})

	images := r.Images()
	require.Len(t, images, 1)
	require.Len(t, images[0].Matrices, 1)
	assert.Equal(t, "Z-1", images[0].Matrices[0].Text)
}

func TestReport_Fatal(t *testing.T) {
	r := NewReport()
	r.Emit(Event{Kind: EventJobFailed, ErrKind: scanerr.KindOutputDirectoryUnavailable, Err: errors.New("read-only"), Summary: &Summary{}})

	output, err := r.Format("text")
	require.NoError(t, err)
	assert.Contains(t, output, "fatal: read-only")
}

func TestReport_Save(t *testing.T) {
	r := sampleReport()

	var buf bytes.Buffer
	require.NoError(t, r.Save("text", "", &buf))
	assert.Contains(t, buf.String(), "# /in/a.png")

	file := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, r.Save("csv", file, nil))
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "file,status"))
}
