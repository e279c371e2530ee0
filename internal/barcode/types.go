package barcode

import (
	"context"
	"image"
)

// Point is an integer point in image coordinates.
type Point struct {
	X int
	Y int
}

// Detection is one decoded Data Matrix symbol.
type Detection struct {
	Text   string
	BBox   image.Rectangle // in the coordinate space of the located image
	Points []Point         // corner or key points reported by the decoder
}

// Options controls locator behavior.
type Options struct {
	// TryHarder enables a more exhaustive search (slower but more robust).
	TryHarder bool

	// MaxDepth bounds the recursive search for further symbols around
	// each one already found. 0 finds at most one symbol.
	MaxDepth int

	// MinSize is the smallest sub-region edge, in pixels, worth searching.
	MinSize int

	// Padding grows every bounding box by this many modules on each side,
	// clipped to the image, so a crop keeps the quiet zone the decoder
	// needs.
	Padding int
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		TryHarder: true,
		MaxDepth:  4,
		MinSize:   16,
		Padding:   2,
	}
}

// Locator finds and decodes every Data Matrix symbol in an image.
//
// Locate returns detections in decoder order. An image without symbols
// yields an empty slice and a nil error; errors are reserved for failures
// of the decoder itself or cancellation of ctx.
type Locator interface {
	Locate(ctx context.Context, img image.Image) ([]Detection, error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(ctx context.Context, img image.Image) ([]Detection, error)

func (f LocatorFunc) Locate(ctx context.Context, img image.Image) ([]Detection, error) {
	return f(ctx, img)
}

// NewLocator returns the default locator implementation.
func NewLocator(opts Options) Locator { return NewZXingLocator(opts) }
