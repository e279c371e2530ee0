package preprocess

import (
	"image"
	"image/color"
	"math"
	"math/rand"
	"testing"

	"github.com/MeKo-Tech/dmscan/internal/region"
	"github.com/MeKo-Tech/dmscan/internal/scanerr"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformGray(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func noisyGray(w, h int, base, spread int, seed int64) *image.Gray {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		v := base + rng.Intn(2*spread+1) - spread
		img.Pix[i] = uint8(clampInt(v, 0, 255))
	}
	return img
}

func isBinary(img *image.Gray) bool {
	for _, v := range img.Pix {
		if v != 0 && v != 255 {
			return false
		}
	}
	return true
}

func stddev(pix []uint8) float64 {
	var sum, sq float64
	for _, v := range pix {
		sum += float64(v)
	}
	mean := sum / float64(len(pix))
	for _, v := range pix {
		d := float64(v) - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(pix)))
}

func TestAdaptiveThreshold_Uniform(t *testing.T) {
	src := uniformGray(20, 20, 90)

	white := AdaptiveThreshold(src, 7, 5)
	for _, v := range white.Pix {
		require.Equal(t, uint8(255), v)
	}

	// value > mean - 0 never holds on a flat image
	black := AdaptiveThreshold(src, 7, 0)
	for _, v := range black.Pix {
		require.Equal(t, uint8(0), v)
	}
}

func TestAdaptiveThreshold_DarkSquare(t *testing.T) {
	src := uniformGray(60, 60, 230)
	for y := 25; y < 35; y++ {
		for x := 25; x < 35; x++ {
			src.SetGray(x, y, color.Gray{Y: 20})
		}
	}

	out := AdaptiveThreshold(src, 31, 5)
	assert.Equal(t, uint8(0), out.GrayAt(30, 30).Y)
	assert.Equal(t, uint8(0), out.GrayAt(25, 25).Y)
	assert.Equal(t, uint8(255), out.GrayAt(5, 5).Y)
	assert.Equal(t, uint8(255), out.GrayAt(40, 30).Y)
}

func TestAdaptiveThreshold_SubImageOrigin(t *testing.T) {
	full := uniformGray(30, 30, 200)
	full.SetGray(12, 12, color.Gray{Y: 0})
	sub, ok := full.SubImage(image.Rect(10, 10, 20, 20)).(*image.Gray)
	require.True(t, ok)

	out := AdaptiveThreshold(sub, 5, 5)
	assert.Equal(t, image.Rect(0, 0, 10, 10), out.Bounds())
	assert.Equal(t, uint8(0), out.GrayAt(2, 2).Y)
	assert.Equal(t, uint8(255), out.GrayAt(7, 7).Y)
}

func TestDenoiseNLM_UniformUnchanged(t *testing.T) {
	src := uniformGray(16, 12, 77)
	out := DenoiseNLM(src, DenoiseStrength, DenoisePatchRadius, DenoiseSearchRadius)
	assert.Equal(t, src.Pix, out.Pix)
}

func TestDenoiseNLM_ReducesNoise(t *testing.T) {
	src := noisyGray(32, 32, 128, 8, 42)
	before := stddev(src.Pix)

	out := DenoiseNLM(src, DenoiseStrength, DenoisePatchRadius, DenoiseSearchRadius)
	after := stddev(out.Pix)

	assert.Less(t, after, before/2, "before=%.2f after=%.2f", before, after)
}

func TestDenoiseNLM_ZeroStrengthCopies(t *testing.T) {
	src := noisyGray(8, 8, 100, 30, 1)
	out := DenoiseNLM(src, 0, 1, 2)
	assert.Equal(t, src.Pix, out.Pix)
}

func TestNormalize(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for i := range src.Pix {
		src.Pix[i] = 200
	}
	orig := append([]uint8(nil), src.Pix...)

	out, err := GoEngine{}.Normalize(src, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 30), out.Bounds())
	assert.True(t, isBinary(out))
	assert.Equal(t, orig, src.Pix, "input must not be modified")

	opts := DefaultOptions()
	opts.Scale = 0.5
	opts.Denoise = false
	out, err = GoEngine{}.Normalize(src, opts)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 15), out.Bounds())
}

func TestNormalize_Errors(t *testing.T) {
	tests := []struct {
		name string
		img  image.Image
		opts Options
	}{
		{"nil image", nil, DefaultOptions()},
		{"zero area", image.NewGray(image.Rect(0, 0, 0, 10)), DefaultOptions()},
		{"scale above one", uniformGray(4, 4, 1), Options{Scale: 1.5}},
		{"negative scale", uniformGray(4, 4, 1), Options{Scale: -0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.img, tt.opts)
			require.Error(t, err)
			assert.True(t, scanerr.IsKind(err, scanerr.KindInvalidImage))
		})
	}
}

func TestValidate_Defaults(t *testing.T) {
	opts, err := validate(uniformGray(2, 2, 0), Options{BlockSize: 10})
	require.NoError(t, err)
	assert.Equal(t, region.NoScale, opts.Scale)
	assert.Equal(t, 11, opts.BlockSize)

	opts, err = validate(uniformGray(2, 2, 0), Options{})
	require.NoError(t, err)
	assert.Equal(t, 31, opts.BlockSize)
}

func TestDefaultEngine(t *testing.T) {
	assert.NotEmpty(t, DefaultEngine().Name())
}

func TestAdaptiveThreshold_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("output is binary and keeps dimensions", prop.ForAll(
		func(w, h, block int, seed int64) bool {
			src := noisyGray(w, h, 128, 100, seed)
			out := AdaptiveThreshold(src, block, 5)
			return out.Bounds() == image.Rect(0, 0, w, h) && isBinary(out)
		},
		gen.IntRange(1, 24),
		gen.IntRange(1, 24),
		gen.IntRange(3, 15),
		gen.Int64(),
	))

	properties.Property("normalize keeps scaled dimensions", prop.ForAll(
		func(w, h int, scale float64) bool {
			src := noisyGray(w, h, 128, 60, int64(w*h))
			out, err := GoEngine{}.Normalize(src, Options{Scale: region.ScaleFactor(scale), BlockSize: 7, C: 5})
			if err != nil {
				return false
			}
			ew, eh := region.ScaleFactor(scale).Size(w, h)
			return out.Bounds().Dx() == ew && out.Bounds().Dy() == eh && isBinary(out)
		},
		gen.IntRange(2, 32),
		gen.IntRange(2, 32),
		gen.Float64Range(0.1, 1),
	))

	properties.TestingRun(t)
}
