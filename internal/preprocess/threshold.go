package preprocess

import (
	"image"

	"github.com/MeKo-Tech/dmscan/internal/mempool"
)

// AdaptiveThreshold binarises src against the mean of a blockSize x
// blockSize neighbourhood. A pixel becomes white (255) iff its value is
// greater than the local mean minus c, otherwise black (0). Windows are
// clipped at the image border.
func AdaptiveThreshold(src *image.Gray, blockSize int, c float64) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}
	if blockSize < 3 {
		blockSize = 3
	}
	r := blockSize / 2

	pix := grayPlane(src)
	stride := w + 1
	integral := mempool.GetInt64(stride * (h + 1))
	defer mempool.PutInt64(integral)
	for y := 0; y < h; y++ {
		var row int64
		for x := 0; x < w; x++ {
			row += int64(pix[y*w+x])
			integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + row
		}
	}

	for y := 0; y < h; y++ {
		y0 := max(y-r, 0)
		y1 := min(y+r+1, h)
		for x := 0; x < w; x++ {
			x0 := max(x-r, 0)
			x1 := min(x+r+1, w)
			sum := integral[y1*stride+x1] - integral[y0*stride+x1] -
				integral[y1*stride+x0] + integral[y0*stride+x0]
			mean := float64(sum) / float64((x1-x0)*(y1-y0))
			if float64(pix[y*w+x]) > mean-c {
				out.Pix[y*w+x] = 255
			}
		}
	}
	return out
}
