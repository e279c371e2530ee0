package batch

import (
	"fmt"
	"strings"
	"time"

	"github.com/MeKo-Tech/dmscan/internal/region"
	"github.com/MeKo-Tech/dmscan/internal/scanerr"
)

// Job describes one automated run. It is passed by value and never changes
// while the run is in progress.
type Job struct {
	SourceDir string
	OutputDir string
	Scale     region.ScaleFactor

	// OutputFormat forces crops to png, jpg or bmp. Empty keeps the
	// source image's format.
	OutputFormat string

	// OverlayDir, if set, receives a copy of each image with a box drawn
	// around every extracted matrix.
	OverlayDir string
}

// Validate checks the job before it is started.
func (j Job) Validate() error {
	if strings.TrimSpace(j.SourceDir) == "" {
		return scanerr.Newf(scanerr.KindInvalidJob, "", "source directory is required")
	}
	if strings.TrimSpace(j.OutputDir) == "" {
		return scanerr.Newf(scanerr.KindInvalidJob, "", "output directory is required")
	}
	scale := j.Scale
	if scale == 0 {
		scale = region.NoScale
	}
	if err := scale.Validate(); err != nil {
		return scanerr.New(scanerr.KindInvalidJob, "", err)
	}
	switch strings.ToLower(j.OutputFormat) {
	case "", "png", "jpg", "jpeg", "bmp":
	default:
		return scanerr.Newf(scanerr.KindInvalidJob, "", "unsupported output format %q", j.OutputFormat)
	}
	return nil
}

// withDefaults returns the job with an unset scale replaced by 1.
func (j Job) withDefaults() Job {
	if j.Scale == 0 {
		j.Scale = region.NoScale
	}
	return j
}

// Summary aggregates the outcome of a job.
type Summary struct {
	ImagesTotal       int           `json:"images_total"`
	ImagesProcessed   int           `json:"images_processed"`
	ImagesFailed      int           `json:"images_failed"`
	MatricesFound     int           `json:"matrices_found"`
	MatricesExtracted int           `json:"matrices_extracted"`
	WriteErrors       int           `json:"write_errors"`
	Cancelled         bool          `json:"cancelled"`
	Duration          time.Duration `json:"duration_ns"`
}

func (s Summary) String() string {
	out := fmt.Sprintf("%d/%d images processed, %d failed, %d/%d matrices extracted",
		s.ImagesProcessed, s.ImagesTotal, s.ImagesFailed, s.MatricesExtracted, s.MatricesFound)
	if s.WriteErrors > 0 {
		out += fmt.Sprintf(", %d write errors", s.WriteErrors)
	}
	if s.Cancelled {
		out += " (cancelled)"
	}
	return out
}

// ImageState is the processing state of one image.
type ImageState int

const (
	StatePending ImageState = iota
	StatePreprocessing
	StateDetecting
	StateExtracting
	StateCompleted
	StateFailed
)

func (s ImageState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StatePreprocessing:
		return "preprocessing"
	case StateDetecting:
		return "detecting"
	case StateExtracting:
		return "extracting"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
