//go:build preprocess_gocv

package preprocess

import (
	"fmt"
	"image"

	"github.com/MeKo-Tech/dmscan/internal/scanerr"
	"github.com/MeKo-Tech/dmscan/internal/utils"
	"gocv.io/x/gocv"
)

func newDefaultEngine() Engine { return CVEngine{} }

// CVEngine runs the normalisation steps through OpenCV.
type CVEngine struct{}

func (CVEngine) Name() string { return "gocv" }

func (CVEngine) Normalize(img image.Image, opts Options) (*image.Gray, error) {
	opts, err := validate(img, opts)
	if err != nil {
		return nil, err
	}

	src, err := gocv.ImageToMatRGBA(img)
	if err != nil {
		return nil, scanerr.New(scanerr.KindInvalidImage, "", fmt.Errorf("to mat: %w", err))
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	if opts.Scale < 1 {
		w, h := opts.Scale.Size(src.Cols(), src.Rows())
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(src, &resized, image.Pt(w, h), 0, 0, gocv.InterpolationArea)
		gocv.CvtColor(resized, &gray, gocv.ColorRGBAToGray)
	} else {
		gocv.CvtColor(src, &gray, gocv.ColorRGBAToGray)
	}

	if opts.Denoise {
		denoised := gocv.NewMat()
		defer denoised.Close()
		gocv.FastNlMeansDenoisingWithParams(gray, &denoised, float32(DenoiseStrength),
			2*DenoisePatchRadius+1, 2*DenoiseSearchRadius+1)
		denoised.CopyTo(&gray)
	}

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.AdaptiveThreshold(gray, &binary, 255, gocv.AdaptiveThresholdMean, gocv.ThresholdBinary,
		opts.BlockSize, float32(opts.C))

	out, err := binary.ToImage()
	if err != nil {
		return nil, scanerr.New(scanerr.KindInvalidImage, "", fmt.Errorf("from mat: %w", err))
	}
	return utils.ToGray(out), nil
}
