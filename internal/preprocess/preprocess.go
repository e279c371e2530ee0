// Package preprocess turns photographs into high-contrast single-channel
// images suitable for Data Matrix localisation.
//
// The default engine is pure Go. Build with the tag `preprocess_gocv` to
// run the same steps through OpenCV instead:
//
//	go build -tags=preprocess_gocv ./...
package preprocess

import (
	"image"

	"github.com/MeKo-Tech/dmscan/internal/region"
	"github.com/MeKo-Tech/dmscan/internal/scanerr"
)

// Fixed non-local-means profile tuned for typical photographic noise.
const (
	DenoiseStrength     = 10.0
	DenoisePatchRadius  = 1
	DenoiseSearchRadius = 5
)

// maxPixels bounds the images we are willing to allocate working buffers for.
const maxPixels = 1 << 28

// Options controls Normalize.
type Options struct {
	// Scale downsizes the image before any other step. 0 means 1.
	Scale region.ScaleFactor
	// Denoise enables non-local-means denoising.
	Denoise bool
	// BlockSize is the adaptive threshold window (odd, >= 3).
	BlockSize int
	// C is subtracted from the local mean before comparison.
	C float64
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Scale:     region.NoScale,
		Denoise:   true,
		BlockSize: 31,
		C:         5,
	}
}

// Engine implements the normalisation steps.
type Engine interface {
	Name() string
	Normalize(img image.Image, opts Options) (*image.Gray, error)
}

// DefaultEngine returns the engine selected at build time.
func DefaultEngine() Engine { return newDefaultEngine() }

// Normalize runs the default engine: optional area-averaging downscale,
// grayscale conversion, denoising and adaptive thresholding. The input is
// never modified.
func Normalize(img image.Image, opts Options) (*image.Gray, error) {
	return DefaultEngine().Normalize(img, opts)
}

// validate checks the input image and fills in option defaults.
func validate(img image.Image, opts Options) (Options, error) {
	if img == nil {
		return opts, scanerr.Newf(scanerr.KindInvalidImage, "", "input image is nil")
	}
	b := img.Bounds()
	if b.Empty() {
		return opts, scanerr.Newf(scanerr.KindInvalidImage, "", "zero area image %dx%d", b.Dx(), b.Dy())
	}
	if int64(b.Dx())*int64(b.Dy()) > maxPixels {
		return opts, scanerr.Newf(scanerr.KindInvalidImage, "", "unsupported image size %dx%d", b.Dx(), b.Dy())
	}
	if opts.Scale == 0 {
		opts.Scale = region.NoScale
	}
	if err := opts.Scale.Validate(); err != nil {
		return opts, scanerr.New(scanerr.KindInvalidImage, "", err)
	}
	if opts.BlockSize < 3 {
		opts.BlockSize = DefaultOptions().BlockSize
	}
	if opts.BlockSize%2 == 0 {
		opts.BlockSize++
	}
	return opts, nil
}
