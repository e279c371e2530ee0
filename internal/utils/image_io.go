package utils

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/dmscan/internal/scanerr"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
)

// SupportedImageExtensions lists supported file extensions for loading.
var SupportedImageExtensions = []string{".png", ".jpg", ".jpeg", ".bmp"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedImageExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path      string
	Format    string
	SizeBytes int64
	Width     int
	Height    int
}

// SourceImage is a decoded bitmap together with the file it came from.
// It is never modified after loading.
type SourceImage struct {
	Path  string
	Image image.Image
	Meta  ImageMetadata
}

// Bounds returns the pixel bounds of the image.
func (s SourceImage) Bounds() image.Rectangle {
	if s.Image == nil {
		return image.Rectangle{}
	}
	return s.Image.Bounds()
}

// BaseName returns the file name without directory or extension.
func (s SourceImage) BaseName() string {
	base := filepath.Base(s.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadImage opens and decodes an image file, returning the image and metadata.
func LoadImage(path string) (image.Image, ImageMetadata, error) {
	if path == "" {
		return nil, ImageMetadata{}, scanerr.New(scanerr.KindLoadError, path, errors.New("empty path"))
	}
	if !IsSupportedImage(path) {
		return nil, ImageMetadata{}, scanerr.Newf(scanerr.KindLoadError, path,
			"unsupported format: %s", filepath.Ext(path))
	}

	f, err := os.Open(path) //nolint:gosec // G304: reading user-provided image path is expected
	if err != nil {
		return nil, ImageMetadata{}, scanerr.New(scanerr.KindLoadError, path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Debug("closing image file", "file", path, "error", err)
		}
	}()

	fi, err := f.Stat()
	if err != nil {
		return nil, ImageMetadata{}, scanerr.New(scanerr.KindLoadError, path, err)
	}

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, ImageMetadata{}, scanerr.New(scanerr.KindLoadError, path, fmt.Errorf("decode: %w", err))
	}

	b := img.Bounds()
	if b.Empty() {
		return nil, ImageMetadata{}, scanerr.Newf(scanerr.KindInvalidImage, path, "zero area image")
	}
	meta := ImageMetadata{
		Path:      path,
		Format:    format,
		SizeBytes: fi.Size(),
		Width:     b.Dx(),
		Height:    b.Dy(),
	}
	return img, meta, nil
}

// LoadSource loads path into a SourceImage.
func LoadSource(path string) (SourceImage, error) {
	img, meta, err := LoadImage(path)
	if err != nil {
		return SourceImage{}, err
	}
	return SourceImage{Path: path, Image: img, Meta: meta}, nil
}

// FormatFromExtension maps a file extension to an imaging output format.
func FormatFromExtension(ext string) (imaging.Format, error) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return imaging.FormatFromExtension(ext)
}

// SaveImageAtomic encodes img into path. The data is written to a temporary
// file in the same directory and renamed into place, so path either holds a
// complete image or does not exist.
func SaveImageAtomic(img image.Image, path string) (err error) {
	format, err := FormatFromExtension(filepath.Ext(path))
	if err != nil {
		return scanerr.New(scanerr.KindWriteError, path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".dmscan-*.tmp")
	if err != nil {
		return scanerr.New(scanerr.KindWriteError, path, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err = imaging.Encode(tmp, img, format); err != nil {
		return scanerr.New(scanerr.KindWriteError, path, fmt.Errorf("encode: %w", err))
	}
	if err = tmp.Sync(); err != nil {
		return scanerr.New(scanerr.KindWriteError, path, err)
	}
	if err = tmp.Close(); err != nil {
		return scanerr.New(scanerr.KindWriteError, path, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return scanerr.New(scanerr.KindWriteError, path, err)
	}
	return nil
}
