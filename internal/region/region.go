// Package region models rectangular pixel areas of a source image and the
// scale mapping between detection and original resolution.
package region

import (
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"
)

// Region is an axis-aligned rectangle in source-image pixel coordinates.
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"width"`
	H int `json:"height"`
}

// FromRect converts an image.Rectangle into a Region.
func FromRect(r image.Rectangle) Region {
	r = r.Canon()
	return Region{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// FromPoints builds the region spanned by two drag corners given in any order.
func FromPoints(a, b image.Point) Region {
	return FromRect(image.Rectangle{Min: a, Max: b})
}

// Parse reads a region written as "x,y,w,h".
func Parse(s string) (Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Region{}, fmt.Errorf("region %q: want x,y,w,h", s)
	}
	vals := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Region{}, fmt.Errorf("region %q: %w", s, err)
		}
		vals[i] = v
	}
	return Region{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
}

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Valid reports whether the region has positive width and height.
func (r Region) Valid() bool { return r.W > 0 && r.H > 0 }

// Within reports whether the region is valid and lies entirely inside bounds.
func (r Region) Within(bounds image.Rectangle) bool {
	return r.Valid() && r.Rect().In(bounds)
}

// Clip intersects the region with bounds. The second return value is false
// when the region is degenerate or does not overlap bounds at all.
func (r Region) Clip(bounds image.Rectangle) (Region, bool) {
	if !r.Valid() {
		return Region{}, false
	}
	c := r.Rect().Intersect(bounds)
	if c.Empty() {
		return Region{}, false
	}
	return FromRect(c), true
}

func (r Region) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.W, r.H)
}

// ScaleFactor is a uniform downscale ratio in (0, 1] applied before detection.
type ScaleFactor float64

// NoScale leaves images at their original resolution.
const NoScale ScaleFactor = 1

// Validate checks that s lies in (0, 1].
func (s ScaleFactor) Validate() error {
	f := float64(s)
	if math.IsNaN(f) || f <= 0 || f > 1 {
		return fmt.Errorf("scale factor %v outside (0, 1]", f)
	}
	return nil
}

// Size returns the scaled dimensions of a w x h image, never below 1x1.
func (s ScaleFactor) Size(w, h int) (int, int) {
	sw := int(math.Round(float64(w) * float64(s)))
	sh := int(math.Round(float64(h) * float64(s)))
	return max(sw, 1), max(sh, 1)
}

// ToOriginal maps a rectangle detected on the scaled image back to original
// resolution by dividing by s. Origin and size are rounded independently so
// the result's size is within one pixel of size/s.
func (s ScaleFactor) ToOriginal(r image.Rectangle) Region {
	r = r.Canon()
	f := float64(s)
	if f <= 0 {
		f = 1
	}
	return Region{
		X: int(math.Round(float64(r.Min.X) / f)),
		Y: int(math.Round(float64(r.Min.Y) / f)),
		W: int(math.Round(float64(r.Dx()) / f)),
		H: int(math.Round(float64(r.Dy()) / f)),
	}
}
