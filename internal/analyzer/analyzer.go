// Package analyzer decodes a single user-selected region of an image.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/dmscan/internal/barcode"
	"github.com/MeKo-Tech/dmscan/internal/preprocess"
	"github.com/MeKo-Tech/dmscan/internal/region"
	"github.com/MeKo-Tech/dmscan/internal/scanerr"
	"github.com/MeKo-Tech/dmscan/internal/utils"
)

// DecodeResult is the outcome of analysing one region.
//
// Decoded is true when a symbol was read; Text may then legitimately be
// empty. When Decoded is false, Reason says why nothing was read.
type DecodeResult struct {
	Region   region.Region `json:"region"`
	Text     string        `json:"text"`
	Decoded  bool          `json:"decoded"`
	Reason   scanerr.Kind  `json:"reason,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
}

// Outcome pairs a result with its error for asynchronous delivery.
type Outcome struct {
	Result DecodeResult
	Err    error
}

// Analyzer runs the preprocess and locate steps on a cropped region.
type Analyzer struct {
	locator barcode.Locator
	engine  preprocess.Engine
	opts    preprocess.Options
	logger  *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithPreprocessOptions overrides the preprocessing options. The scale is
// always forced to 1 because a manual selection is already small.
func WithPreprocessOptions(opts preprocess.Options) Option {
	return func(a *Analyzer) { a.opts = opts }
}

// WithEngine selects the preprocessing engine.
func WithEngine(e preprocess.Engine) Option {
	return func(a *Analyzer) { a.engine = e }
}

// WithLogger sets the logger used for warnings.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// New creates an Analyzer around a locator.
func New(locator barcode.Locator, opts ...Option) *Analyzer {
	a := &Analyzer{
		locator: locator,
		engine:  preprocess.DefaultEngine(),
		opts:    preprocess.DefaultOptions(),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	a.opts.Scale = region.NoScale
	return a
}

// AnalyzeRegion decodes the Data Matrix inside r. The region is clipped to
// the image; a region that does not overlap it is an error. Finding no
// symbol is not an error: the result then has Decoded false and Reason
// KindNoMatrixFound. When several symbols are found the first one wins and
// a warning is attached.
func (a *Analyzer) AnalyzeRegion(ctx context.Context, src utils.SourceImage, r region.Region) (DecodeResult, error) {
	if src.Image == nil {
		return DecodeResult{}, scanerr.Newf(scanerr.KindInvalidImage, src.Path, "no image loaded")
	}
	if err := ctx.Err(); err != nil {
		return DecodeResult{}, scanerr.New(scanerr.KindCancelled, src.Path, err)
	}

	crop, clipped, err := utils.CropRegion(src.Image, r)
	if err != nil {
		return DecodeResult{}, withPath(err, src.Path)
	}

	normalized, err := a.engine.Normalize(crop, a.opts)
	if err != nil {
		return DecodeResult{}, withPath(err, src.Path)
	}

	dets, err := a.locator.Locate(ctx, normalized)
	if err != nil {
		kind := scanerr.KindDecodeError
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			kind = scanerr.KindCancelled
		}
		return DecodeResult{}, scanerr.New(kind, src.Path, err).WithRegion(clipped.Rect())
	}

	res := DecodeResult{Region: clipped}
	if len(dets) == 0 {
		res.Reason = scanerr.KindNoMatrixFound
		return res, nil
	}

	res.Decoded = true
	res.Text = dets[0].Text
	if len(dets) > 1 {
		msg := fmt.Sprintf("%d matrices found in region, using the first", len(dets))
		res.Warnings = append(res.Warnings, msg)
		a.logger.Warn("multiple matrices in selection",
			"file", src.Path, "region", clipped.String(), "count", len(dets))
	}
	return res, nil
}

// AnalyzeRegionAsync runs AnalyzeRegion on its own goroutine. The returned
// channel receives exactly one Outcome and is then closed.
func (a *Analyzer) AnalyzeRegionAsync(ctx context.Context, src utils.SourceImage, r region.Region) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		res, err := a.AnalyzeRegion(ctx, src, r)
		out <- Outcome{Result: res, Err: err}
	}()
	return out
}

// withPath fills in the file path on taxonomy errors that lack one.
func withPath(err error, path string) error {
	var se *scanerr.Error
	if errors.As(err, &se) && se.Path == "" {
		cp := *se
		cp.Path = path
		return &cp
	}
	return err
}
