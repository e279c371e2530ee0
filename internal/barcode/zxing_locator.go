package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"
)

// minSymbolModules is the edge of the smallest Data Matrix symbol.
const minSymbolModules = 10

// ZXingLocator decodes Data Matrix symbols with gozxing.
//
// The gozxing Data Matrix reader returns one symbol per call. Further
// symbols are found by searching the areas left, right, above and below
// each hit, or both halves of an area without a hit, up to
// Options.MaxDepth levels deep.
type ZXingLocator struct {
	opts Options
}

// NewZXingLocator creates a locator with the given options.
func NewZXingLocator(opts Options) *ZXingLocator {
	if opts.MaxDepth < 0 {
		opts.MaxDepth = 0
	}
	if opts.MinSize <= 0 {
		opts.MinSize = DefaultOptions().MinSize
	}
	if opts.Padding < 0 {
		opts.Padding = 0
	}
	return &ZXingLocator{opts: opts}
}

// Options returns the effective options.
func (l *ZXingLocator) Options() Options { return l.opts }

func (l *ZXingLocator) Locate(ctx context.Context, img image.Image) ([]Detection, error) {
	if img == nil {
		return nil, errors.New("barcode: nil image")
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("barcode: empty image %v", bounds)
	}

	hints := map[gozxing.DecodeHintType]interface{}{}
	if l.opts.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	var found []Detection
	if err := l.search(ctx, img, bounds, 0, hints, &found); err != nil {
		return nil, err
	}
	return found, nil
}

func (l *ZXingLocator) search(ctx context.Context, img image.Image, area image.Rectangle, depth int,
	hints map[gozxing.DecodeHintType]interface{}, found *[]Detection,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if area.Dx() < l.opts.MinSize || area.Dy() < l.opts.MinSize {
		return nil
	}

	det, ok, err := l.decodeArea(img, area, hints)
	if err != nil {
		return err
	}
	if depth >= l.opts.MaxDepth {
		if ok && !containsDuplicate(*found, det) {
			*found = append(*found, det)
		}
		return nil
	}

	var subAreas []image.Rectangle
	if ok {
		if !containsDuplicate(*found, det) {
			*found = append(*found, det)
		}
		hit := det.BBox
		subAreas = []image.Rectangle{
			image.Rect(area.Min.X, area.Min.Y, hit.Min.X, area.Max.Y), // left
			image.Rect(hit.Max.X, area.Min.Y, area.Max.X, area.Max.Y), // right
			image.Rect(area.Min.X, area.Min.Y, area.Max.X, hit.Min.Y), // above
			image.Rect(area.Min.X, hit.Max.Y, area.Max.X, area.Max.Y), // below
		}
	} else {
		// Several symbols in one area confuse the detector; retry on
		// overlapping halves.
		subAreas = splitArea(area)
	}
	for _, sub := range subAreas {
		sub = sub.Intersect(area)
		if sub.Empty() || sub == area {
			continue
		}
		if err := l.search(ctx, img, sub, depth+1, hints, found); err != nil {
			return err
		}
	}
	return nil
}

// decodeArea runs the reader on one area of img. Points and boxes in the
// result are translated back to img coordinates.
func (l *ZXingLocator) decodeArea(img image.Image, area image.Rectangle,
	hints map[gozxing.DecodeHintType]interface{},
) (Detection, bool, error) {
	src := img
	if area != img.Bounds() {
		src = imaging.Crop(img, area)
	}

	bitmap, err := gozxing.NewBinaryBitmap(gozxing.NewHybridBinarizer(gozxing.NewLuminanceSourceFromImage(src)))
	if err != nil {
		return Detection{}, false, fmt.Errorf("barcode: prepare bitmap: %w", err)
	}

	result, err := datamatrix.NewDataMatrixReader().Decode(bitmap, hints)
	if err != nil {
		var readerErr gozxing.ReaderException
		if errors.As(err, &readerErr) {
			// not found, unreadable or failed checksum: no symbol here
			return Detection{}, false, nil
		}
		return Detection{}, false, fmt.Errorf("barcode: decode: %w", err)
	}

	var points []Point
	for _, p := range result.GetResultPoints() {
		if p == nil {
			continue
		}
		points = append(points, Point{
			X: area.Min.X + int(math.Round(p.GetX())),
			Y: area.Min.Y + int(math.Round(p.GetY())),
		})
	}
	bbox := rectFromPoints(points)
	if bbox.Empty() {
		return Detection{}, false, nil
	}
	bbox = bbox.Inset(-l.opts.Padding * moduleSize(bbox)).Intersect(img.Bounds())

	return Detection{Text: result.GetText(), BBox: bbox, Points: points}, true, nil
}

// containsDuplicate reports whether det was already found. Equal text at an
// overlapping location counts as the same symbol.
func containsDuplicate(found []Detection, det Detection) bool {
	for _, f := range found {
		if f.Text == det.Text && f.BBox.Overlaps(det.BBox) {
			return true
		}
	}
	return false
}

// splitArea halves r along its longer side. The halves overlap by a quarter
// of that side so a symbol on the cut line lies wholly inside one of them.
func splitArea(r image.Rectangle) []image.Rectangle {
	if r.Dx() >= r.Dy() {
		mid := r.Min.X + r.Dx()/2
		overlap := r.Dx() / 8
		return []image.Rectangle{
			image.Rect(r.Min.X, r.Min.Y, mid+overlap, r.Max.Y),
			image.Rect(mid-overlap, r.Min.Y, r.Max.X, r.Max.Y),
		}
	}
	mid := r.Min.Y + r.Dy()/2
	overlap := r.Dy() / 8
	return []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, mid+overlap),
		image.Rect(r.Min.X, mid-overlap, r.Max.X, r.Max.Y),
	}
}

// moduleSize estimates the module edge of the symbol filling bbox. The
// smallest symbol is 10 modules wide, so the estimate never falls short.
func moduleSize(bbox image.Rectangle) int {
	edge := max(bbox.Dx(), bbox.Dy())
	return max(1, (edge+minSymbolModules-1)/minSymbolModules)
}

// rectFromPoints returns the bounding box enclosing pts (max edges exclusive).
func rectFromPoints(pts []Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}
