package psf

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfBounds              = errors.New("read past end of buffer")
	ErrInvalidUTF8              = errors.New("string is not valid UTF-8")
	ErrUnexpectedTag            = errors.New("unexpected tag")
	ErrUnknownSectionKind       = errors.New("unknown section kind")
	ErrUnknownDataType          = errors.New("unknown data type")
	ErrUnsupportedDataType      = errors.New("unsupported data type for sample decoding")
	ErrUnsupportedLayout        = errors.New("unsupported PSF layout")
	ErrSweepSignalNameCollision = errors.New("sweep variable name collides with a signal")
	ErrInconsistentSampleCount  = errors.New("inconsistent sample count")
)

// DecodeError carries the location of a decode failure. Kind is one of the
// package's sentinel errors and is what errors.Is matches against.
type DecodeError struct {
	Kind    error
	Section SectionKind
	Offset  int
	// Expected and Got are populated for tag mismatches and bound checks.
	Expected uint32
	Got      uint32
	Detail   string
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("psf: %s section at offset %d: %v", e.Section, e.Offset, e.Kind)
	if e.Kind == ErrUnexpectedTag {
		msg += fmt.Sprintf(" (expected %d, got %d)", e.Expected, e.Got)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Kind
}

func newError(kind error, section SectionKind, offset int, format string, args ...interface{}) *DecodeError {
	return &DecodeError{
		Kind:    kind,
		Section: section,
		Offset:  offset,
		Detail:  fmt.Sprintf(format, args...),
	}
}

func tagError(section SectionKind, offset int, expected, got uint32) *DecodeError {
	return &DecodeError{
		Kind:     ErrUnexpectedTag,
		Section:  section,
		Offset:   offset,
		Expected: expected,
		Got:      got,
	}
}
