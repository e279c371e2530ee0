package preprocess

import (
	"image"
	"math"

	"github.com/MeKo-Tech/dmscan/internal/mempool"
)

// DenoiseNLM applies non-local-means denoising to a grayscale image.
//
// For every search offset the squared pixel differences are accumulated in
// an integral image so that patch distances cost O(1) per pixel. Pixels
// beyond the border are clamped to the nearest edge pixel.
func DenoiseNLM(src *image.Gray, h float64, patchRadius, searchRadius int) *image.Gray {
	b := src.Bounds()
	w, ht := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, ht))
	if w == 0 || ht == 0 {
		return out
	}
	if h <= 0 {
		copyGray(out, src)
		return out
	}

	pix := grayPlane(src)
	n := w * ht
	acc := mempool.GetFloat64(n)
	wsum := mempool.GetFloat64(n)
	integral := mempool.GetInt64((w + 1) * (ht + 1))
	defer mempool.PutFloat64(acc)
	defer mempool.PutFloat64(wsum)
	defer mempool.PutInt64(integral)
	inv := 1 / (h * h)

	// Weights depend only on the mean squared patch distance; cache them.
	var lut [65026]float64
	for i := range lut {
		lut[i] = math.Exp(-float64(i) * inv)
	}

	for dy := -searchRadius; dy <= searchRadius; dy++ {
		for dx := -searchRadius; dx <= searchRadius; dx++ {
			if dx == 0 && dy == 0 {
				for i, v := range pix {
					acc[i] += float64(v)
					wsum[i]++
				}
				continue
			}
			buildDiffIntegral(integral, pix, w, ht, dx, dy)
			for y := 0; y < ht; y++ {
				y0 := max(y-patchRadius, 0)
				y1 := min(y+patchRadius+1, ht)
				qy := clampInt(y+dy, 0, ht-1)
				for x := 0; x < w; x++ {
					x0 := max(x-patchRadius, 0)
					x1 := min(x+patchRadius+1, w)
					sum := integral[y1*(w+1)+x1] - integral[y0*(w+1)+x1] -
						integral[y1*(w+1)+x0] + integral[y0*(w+1)+x0]
					count := int64((x1 - x0) * (y1 - y0))
					weight := lut[sum/count]
					qx := clampInt(x+dx, 0, w-1)
					i := y*w + x
					acc[i] += weight * float64(pix[qy*w+qx])
					wsum[i] += weight
				}
			}
		}
	}

	for i := range out.Pix[:n] {
		v := acc[i] / wsum[i]
		out.Pix[i] = uint8(math.Min(255, math.Max(0, math.Round(v))))
	}
	return out
}

// buildDiffIntegral fills integral with the summed-area table of
// (p(x,y) - p(x+dx,y+dy))^2.
func buildDiffIntegral(integral []int64, pix []uint8, w, h, dx, dy int) {
	stride := w + 1
	for x := 0; x <= w; x++ {
		integral[x] = 0
	}
	for y := 0; y < h; y++ {
		qy := clampInt(y+dy, 0, h-1)
		var row int64
		integral[(y+1)*stride] = 0
		for x := 0; x < w; x++ {
			qx := clampInt(x+dx, 0, w-1)
			d := int64(pix[y*w+x]) - int64(pix[qy*w+qx])
			row += d * d
			integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + row
		}
	}
}

// grayPlane returns the pixels of g as a tightly packed row-major slice.
func grayPlane(g *image.Gray) []uint8 {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if g.Stride == w && b.Min == (image.Point{}) {
		return g.Pix[:w*h]
	}
	out := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		off := g.PixOffset(b.Min.X, b.Min.Y+y)
		copy(out[y*w:(y+1)*w], g.Pix[off:off+w])
	}
	return out
}

func copyGray(dst, src *image.Gray) {
	copy(dst.Pix, grayPlane(src))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
