package batch

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/dmscan/internal/barcode"
	"github.com/MeKo-Tech/dmscan/internal/common"
	"github.com/MeKo-Tech/dmscan/internal/naming"
	"github.com/MeKo-Tech/dmscan/internal/region"
	"github.com/MeKo-Tech/dmscan/internal/scanerr"
	"github.com/MeKo-Tech/dmscan/internal/utils"
)

var overlayColor = color.RGBA{255, 0, 0, 255}

// run holds the mutable state of one job on the worker goroutine.
type run struct {
	*Runner
	job     Job
	em      *emitter
	namer   *naming.Namer
	summary Summary
}

// execute runs the whole job and always emits exactly one terminal event.
func (r *Runner) execute(ctx context.Context, job Job, sink Sink) (Summary, error) {
	timer := common.NewTimerWithClock("batch", r.clock)
	em := &emitter{sink: sink, clock: r.clock}

	files, err := DiscoverImages(job.SourceDir)
	if err != nil {
		return r.fail(em, timer, Summary{}, err)
	}
	em.total = len(files)
	summary := Summary{ImagesTotal: len(files)}

	if err := prepareOutputDir(job.OutputDir); err != nil {
		return r.fail(em, timer, summary, err)
	}

	rn := &run{
		Runner:  r,
		job:     job,
		em:      em,
		namer:   naming.New(naming.Options{Clock: r.clock, MaxBaseLength: r.maxBaseLength}),
		summary: summary,
	}
	r.logger.Info("batch started", "source", job.SourceDir, "output", job.OutputDir,
		"images", len(files), "scale", float64(job.Scale), "run", rn.namer.RunStamp())

	for i, path := range files {
		if ctx.Err() != nil {
			rn.summary.Cancelled = true
			break
		}
		rn.processImage(ctx, path, i+1)
	}

	rn.summary.Duration = timer.Stop()
	final := rn.summary
	em.emit(Event{Kind: EventJobCompleted, Summary: &final})
	r.logger.Info("batch finished", "summary", final.String(), "duration", timer.String())
	return final, nil
}

// fail emits the single JobFailed event for a fatal error.
func (r *Runner) fail(em *emitter, timer *common.Timer, summary Summary, err error) (Summary, error) {
	summary.Duration = timer.Stop()
	em.emit(Event{
		Kind:    EventJobFailed,
		Path:    pathOf(err),
		ErrKind: scanerr.KindOf(err),
		Err:     err,
		Summary: &summary,
	})
	r.logger.Error("batch failed", "error", err)
	return summary, err
}

// prepareOutputDir creates dir and checks that files can be created in it.
func prepareOutputDir(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return scanerr.New(scanerr.KindOutputDirectoryUnavailable, dir, err)
	}
	probe, err := os.CreateTemp(dir, ".dmscan-probe-*")
	if err != nil {
		return scanerr.New(scanerr.KindOutputDirectoryUnavailable, dir, err)
	}
	name := probe.Name()
	_ = probe.Close()
	if err := os.Remove(name); err != nil {
		return scanerr.New(scanerr.KindOutputDirectoryUnavailable, dir, err)
	}
	return nil
}

func (rn *run) setState(path string, state ImageState) {
	rn.logger.Debug("image state", "file", path, "state", state.String())
}

// processImage handles one source image. Per-image and per-match errors are
// reported as events; they never stop the job.
func (rn *run) processImage(ctx context.Context, path string, position int) {
	rn.setState(path, StatePending)
	rn.em.emit(Event{Kind: EventImageStarted, Path: path, Position: position})

	src, err := utils.LoadSource(path)
	if err != nil {
		rn.failImage(path, position, err)
		return
	}

	rn.setState(path, StatePreprocessing)
	opts := rn.preprocess
	opts.Scale = rn.job.Scale
	normalized, err := rn.engine.Normalize(src.Image, opts)
	if err != nil {
		rn.failImage(path, position, asKind(err, scanerr.KindInvalidImage, path))
		return
	}

	rn.setState(path, StateDetecting)
	dets, err := rn.locator.Locate(ctx, normalized)
	if err != nil {
		kind := scanerr.KindDecodeError
		if ctx.Err() != nil {
			kind = scanerr.KindCancelled
			rn.summary.Cancelled = true
		}
		rn.failImage(path, position, scanerr.New(kind, path, err))
		return
	}
	rn.summary.MatricesFound += len(dets)

	rn.setState(path, StateExtracting)
	var boxes []image.Rectangle
	for i, det := range dets {
		if box, ok := rn.extract(src, det, i+1, position); ok {
			boxes = append(boxes, box)
		}
	}

	if rn.job.OverlayDir != "" && len(boxes) > 0 {
		rn.writeOverlay(src, boxes)
	}

	rn.setState(path, StateCompleted)
	rn.summary.ImagesProcessed++
	rn.em.emit(Event{Kind: EventImageCompleted, Path: path, Position: position, Count: len(dets)})
}

// extract maps one detection back to the original image, crops it and
// writes it below OutputDir/<basename>/.
func (rn *run) extract(src utils.SourceImage, det barcode.Detection, index, position int) (image.Rectangle, bool) {
	mapped := rn.job.Scale.ToOriginal(det.BBox)
	clipped, ok := mapped.Clip(src.Bounds())
	if !ok {
		err := scanerr.Newf(scanerr.KindRegionOutOfBounds, src.Path,
			"matrix %d at %v maps outside the image", index, mapped).WithRegion(mapped.Rect())
		rn.failMatch(src.Path, position, index, &mapped, err)
		return image.Rectangle{}, false
	}

	crop, _, err := utils.CropRegion(src.Image, clipped)
	if err != nil {
		rn.failMatch(src.Path, position, index, &clipped, asKind(err, scanerr.KindRegionOutOfBounds, src.Path))
		return image.Rectangle{}, false
	}

	dir := filepath.Join(rn.job.OutputDir, src.BaseName())
	if err := os.MkdirAll(dir, 0o750); err != nil {
		rn.summary.WriteErrors++
		rn.failMatch(src.Path, position, index, &clipped, scanerr.New(scanerr.KindWriteError, dir, err))
		return image.Rectangle{}, false
	}

	name, err := rn.namer.Reserve(dir, det.Text, index, outputExt(src.Path, rn.job.OutputFormat))
	if err != nil {
		rn.summary.WriteErrors++
		rn.failMatch(src.Path, position, index, &clipped, scanerr.New(scanerr.KindWriteError, dir, err))
		return image.Rectangle{}, false
	}

	out := filepath.Join(dir, name)
	if err := utils.SaveImageAtomic(crop, out); err != nil {
		rn.summary.WriteErrors++
		rn.failMatch(src.Path, position, index, &clipped, asKind(err, scanerr.KindWriteError, out))
		return image.Rectangle{}, false
	}

	rn.summary.MatricesExtracted++
	rn.em.emit(Event{
		Kind:     EventMatrixFound,
		Path:     src.Path,
		Position: position,
		Index:    index,
		Filename: name,
		Output:   out,
		Text:     det.Text,
		Region:   &clipped,
	})
	return clipped.Rect(), true
}

func (rn *run) failImage(path string, position int, err error) {
	rn.setState(path, StateFailed)
	rn.summary.ImagesFailed++
	rn.logger.Warn("image failed", "file", path, "error", err)
	rn.em.emit(Event{
		Kind:     EventImageFailed,
		Path:     path,
		Position: position,
		ErrKind:  scanerr.KindOf(err),
		Err:      err,
	})
}

func (rn *run) failMatch(path string, position, index int, r *region.Region, err error) {
	rn.logger.Warn("matrix not extracted", "file", path, "index", index, "error", err)
	rn.em.emit(Event{
		Kind:     EventImageFailed,
		Path:     path,
		Position: position,
		Index:    index,
		ErrKind:  scanerr.KindOf(err),
		Err:      err,
		Region:   r,
	})
}

// writeOverlay saves the source image with every extracted matrix boxed.
// Overlay failures are logged only.
func (rn *run) writeOverlay(src utils.SourceImage, boxes []image.Rectangle) {
	ov := utils.RenderOverlay(src.Image, boxes, overlayColor)
	if err := os.MkdirAll(rn.job.OverlayDir, 0o750); err != nil {
		rn.logger.Warn("overlay directory unavailable", "dir", rn.job.OverlayDir, "error", err)
		return
	}
	out := filepath.Join(rn.job.OverlayDir, src.BaseName()+"_overlay.png")
	if err := utils.SaveImageAtomic(ov, out); err != nil {
		rn.logger.Warn("overlay not written", "file", out, "error", err)
	}
}

// outputExt returns the extension for crops of src. A forced format wins;
// otherwise the source extension is kept, lowercased.
func outputExt(src, format string) string {
	switch strings.ToLower(format) {
	case "png":
		return ".png"
	case "jpg", "jpeg":
		return ".jpg"
	case "bmp":
		return ".bmp"
	}
	return strings.ToLower(filepath.Ext(src))
}

// asKind keeps taxonomy errors as they are and wraps anything else in kind.
func asKind(err error, kind scanerr.Kind, path string) error {
	var se *scanerr.Error
	if errors.As(err, &se) {
		if se.Path == "" {
			cp := *se
			cp.Path = path
			return &cp
		}
		return err
	}
	return scanerr.New(kind, path, err)
}

func pathOf(err error) string {
	var se *scanerr.Error
	if errors.As(err, &se) {
		return se.Path
	}
	return ""
}
