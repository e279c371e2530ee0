package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Placement positions a Data Matrix symbol on a synthetic scene.
type Placement struct {
	Text       string
	At         image.Point // top-left corner of the symbol
	ModuleSize int         // pixels per module; 0 means 6
}

// SceneConfig describes a synthetic photograph.
type SceneConfig struct {
	Width      int
	Height     int
	Background color.Color
	Caption    string // optional label drawn in the bottom-left corner
	Symbols    []Placement
}

// RenderMatrix renders text as a Data Matrix symbol with moduleSize pixels
// per module and no quiet zone.
func RenderMatrix(text string, moduleSize int) (*image.Gray, error) {
	if moduleSize <= 0 {
		moduleSize = 6
	}
	bits, err := datamatrix.NewDataMatrixWriter().Encode(text, gozxing.BarcodeFormat_DATA_MATRIX, 0, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %q: %w", text, err)
	}

	w, h := bits.GetWidth(), bits.GetHeight()
	img := image.NewGray(image.Rect(0, 0, w*moduleSize, h*moduleSize))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	for y := range h {
		for x := range w {
			if !bits.Get(x, y) {
				continue
			}
			module := image.Rect(x*moduleSize, y*moduleSize, (x+1)*moduleSize, (y+1)*moduleSize)
			draw.Draw(img, module, image.Black, image.Point{}, draw.Src)
		}
	}
	return img, nil
}

// GenerateMatrix is RenderMatrix failing the test on error.
func GenerateMatrix(t *testing.T, text string, moduleSize int) *image.Gray {
	t.Helper()

	img, err := RenderMatrix(text, moduleSize)
	require.NoError(t, err)
	return img
}

// RenderScene renders a white (or Background) canvas with the configured
// symbols pasted onto it.
func RenderScene(cfg SceneConfig) (*image.NRGBA, error) {
	bg := cfg.Background
	if bg == nil {
		bg = color.White
	}
	img := image.NewNRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	for _, p := range cfg.Symbols {
		sym, err := RenderMatrix(p.Text, p.ModuleSize)
		if err != nil {
			return nil, err
		}
		img = imaging.Paste(img, sym, p.At)
	}

	if cfg.Caption != "" {
		drawer := &font.Drawer{
			Dst:  img,
			Src:  image.Black,
			Face: basicfont.Face7x13,
			Dot:  fixed.P(4, cfg.Height-4),
		}
		drawer.DrawString(cfg.Caption)
	}
	return img, nil
}

// GenerateScene is RenderScene failing the test on error.
func GenerateScene(t *testing.T, cfg SceneConfig) *image.NRGBA {
	t.Helper()

	img, err := RenderScene(cfg)
	require.NoError(t, err)
	return img
}

// CreateTestImage creates a simple test image with the specified dimensions and color.
func CreateTestImage(width, height int, backgroundColor color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)
	return img
}

// SaveImage encodes img to path in the format implied by its extension.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	dir := filepath.Dir(path)
	require.NoError(t, EnsureDir(dir), "Failed to create directory %s", dir)
	require.NoError(t, imaging.Save(img, path), "Failed to save image %s", path)
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	img, err := imaging.Open(path)
	require.NoError(t, err, "Failed to open image %s", path)
	return img
}
