package analyzer

import (
	"context"
	"image"
	"sync"

	"github.com/MeKo-Tech/dmscan/internal/region"
	"github.com/MeKo-Tech/dmscan/internal/scanerr"
	"github.com/MeKo-Tech/dmscan/internal/utils"
)

// Session holds the interactive state of manual mode: the current image and
// the rectangle the user dragged over it.
type Session struct {
	analyzer *Analyzer

	mu        sync.Mutex
	source    *utils.SourceImage
	selection *region.Region
	last      *DecodeResult
}

// NewSession creates an empty session.
func NewSession(a *Analyzer) *Session {
	return &Session{analyzer: a}
}

// SelectImage loads path and makes it the current image. The previous
// image and selection are discarded; on failure the session is unchanged.
func (s *Session) SelectImage(path string) (utils.SourceImage, error) {
	src, err := utils.LoadSource(path)
	if err != nil {
		return utils.SourceImage{}, err
	}
	s.SetImage(src)
	return src, nil
}

// SetImage replaces the current image with an already decoded one.
func (s *Session) SetImage(src utils.SourceImage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = &src
	s.selection = nil
	s.last = nil
}

// Image returns the current image, if any.
func (s *Session) Image() (utils.SourceImage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source == nil {
		return utils.SourceImage{}, false
	}
	return *s.source, true
}

// SetSelection records the rectangle spanned by two drag corners, given in
// any order.
func (s *Session) SetSelection(start, end image.Point) region.Region {
	r := region.FromPoints(start, end)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = &r
	return r
}

// ClearSelection forgets the current selection.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = nil
}

// Selection returns the current selection, if any.
func (s *Session) Selection() (region.Region, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selection == nil {
		return region.Region{}, false
	}
	return *s.selection, true
}

// LastResult returns the result of the most recent successful Analyze.
func (s *Session) LastResult() (DecodeResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return DecodeResult{}, false
	}
	return *s.last, true
}

// Analyze decodes the current selection of the current image.
func (s *Session) Analyze(ctx context.Context) (DecodeResult, error) {
	s.mu.Lock()
	if s.source == nil || s.selection == nil {
		s.mu.Unlock()
		return DecodeResult{}, scanerr.Newf(scanerr.KindNoSelection, "", "select an image and an area first")
	}
	src, sel := *s.source, *s.selection
	s.mu.Unlock()

	res, err := s.analyzer.AnalyzeRegion(ctx, src, sel)
	if err != nil {
		return res, err
	}

	s.mu.Lock()
	// keep the result only if the image was not replaced meanwhile
	if s.source != nil && s.source.Path == src.Path {
		s.last = &res
	}
	s.mu.Unlock()
	return res, nil
}
