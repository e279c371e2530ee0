package preprocess

import (
	"image"

	"github.com/MeKo-Tech/dmscan/internal/utils"
	"github.com/disintegration/imaging"
)

// GoEngine is the dependency-free implementation built on imaging.
type GoEngine struct{}

func (GoEngine) Name() string { return "go" }

func (GoEngine) Normalize(img image.Image, opts Options) (*image.Gray, error) {
	opts, err := validate(img, opts)
	if err != nil {
		return nil, err
	}

	work := img
	if opts.Scale < 1 {
		b := img.Bounds()
		w, h := opts.Scale.Size(b.Dx(), b.Dy())
		// Box filter averages every source pixel under the target pixel.
		work = imaging.Resize(img, w, h, imaging.Box)
	}

	gray := utils.ToGray(work)
	if opts.Denoise {
		gray = DenoiseNLM(gray, DenoiseStrength, DenoisePatchRadius, DenoiseSearchRadius)
	}
	return AdaptiveThreshold(gray, opts.BlockSize, opts.C), nil
}
