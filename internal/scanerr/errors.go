// Package scanerr defines the error taxonomy shared by the scanning pipeline.
package scanerr

import (
	"errors"
	"fmt"
	"image"
)

// Kind categorizes a pipeline failure.
type Kind string

const (
	KindInvalidImage               Kind = "invalid_image"
	KindRegionOutOfBounds          Kind = "region_out_of_bounds"
	KindNoMatrixFound              Kind = "no_matrix_found"
	KindLoadError                  Kind = "load_error"
	KindWriteError                 Kind = "write_error"
	KindOutputDirectoryUnavailable Kind = "output_directory_unavailable"
	KindSourceUnavailable          Kind = "source_unavailable"
	KindDecodeError                Kind = "decode_error"
	KindCancelled                  Kind = "cancelled"
	KindNoSelection                Kind = "no_selection"
	KindInvalidJob                 Kind = "invalid_job"
)

// Fatal reports whether errors of this kind abort a whole batch job.
func (k Kind) Fatal() bool {
	switch k {
	case KindOutputDirectoryUnavailable, KindSourceUnavailable, KindInvalidJob:
		return true
	default:
		return false
	}
}

// Error is a categorized pipeline error. Path and Region identify what the
// failure concerns; either may be empty.
type Error struct {
	Kind   Kind
	Path   string
	Region image.Rectangle
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Path != "" {
		msg += " [" + e.Path + "]"
	}
	if !e.Region.Empty() {
		msg += fmt.Sprintf(" region=%v", e.Region)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Path == "" && t.Err == nil
}

// New creates an error of the given kind for path.
func New(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// Newf creates an error of the given kind with a formatted cause.
func Newf(kind Kind, path, format string, args ...any) *Error {
	return &Error{Kind: kind, Path: path, Err: fmt.Errorf(format, args...)}
}

// WithRegion returns a copy of e annotated with r.
func (e *Error) WithRegion(r image.Rectangle) *Error {
	cp := *e
	cp.Region = r
	return &cp
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
