package utils

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/MeKo-Tech/dmscan/internal/region"
	"github.com/MeKo-Tech/dmscan/internal/scanerr"
	"github.com/disintegration/imaging"
)

// CropRegion copies the pixels of r out of img. The region is clipped to the
// image first; a region with no overlap yields a RegionOutOfBounds error.
// The returned image starts at (0, 0) and never shares memory with img.
func CropRegion(img image.Image, r region.Region) (*image.NRGBA, region.Region, error) {
	if img == nil {
		return nil, region.Region{}, scanerr.Newf(scanerr.KindInvalidImage, "", "input image is nil")
	}
	b := img.Bounds()
	clipped, ok := r.Clip(b)
	if !ok {
		return nil, region.Region{}, scanerr.Newf(scanerr.KindRegionOutOfBounds, "",
			"region %v outside image %dx%d", r, b.Dx(), b.Dy()).WithRegion(r.Rect())
	}
	return imaging.Crop(img, clipped.Rect()), clipped, nil
}

// ToGray converts img to an 8-bit single-channel image anchored at (0, 0).
// Gray inputs are copied rather than shared.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if g, ok := img.(*image.Gray); ok {
		for y := range b.Dy() {
			src := g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):]
			copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], src[:b.Dx()])
		}
		return out
	}
	gray := imaging.Grayscale(img)
	for y := range b.Dy() {
		row := gray.Pix[y*gray.Stride:]
		for x := range b.Dx() {
			out.Pix[y*out.Stride+x] = row[x*4]
		}
	}
	return out
}

// DrawRect draws a rectangle outline with the given thickness on dst.
func DrawRect(dst draw.Image, rect image.Rectangle, col color.Color, thickness int) {
	if thickness <= 0 {
		thickness = 1
	}
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	src := image.NewUniform(col)
	for t := range thickness {
		edges := []image.Rectangle{
			image.Rect(rect.Min.X, rect.Min.Y+t, rect.Max.X, rect.Min.Y+t+1),
			image.Rect(rect.Min.X, rect.Max.Y-1-t, rect.Max.X, rect.Max.Y-t),
			image.Rect(rect.Min.X+t, rect.Min.Y, rect.Min.X+t+1, rect.Max.Y),
			image.Rect(rect.Max.X-1-t, rect.Min.Y, rect.Max.X-t, rect.Max.Y),
		}
		for _, e := range edges {
			draw.Draw(dst, e.Intersect(rect), src, image.Point{}, draw.Src)
		}
	}
}

// RenderOverlay returns a copy of img with every rectangle outlined in col.
func RenderOverlay(img image.Image, rects []image.Rectangle, col color.Color) *image.NRGBA {
	out := imaging.Clone(img)
	off := img.Bounds().Min
	for _, r := range rects {
		DrawRect(out, r.Sub(off), col, 3)
	}
	return out
}
