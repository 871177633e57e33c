package analysis

import (
	"errors"
	"fmt"
)

var (
	ErrMissingSignal      = errors.New("signal not found")
	ErrDuplicateSignal    = errors.New("signal name used more than once")
	ErrSampleKindMismatch = errors.New("signal has the wrong sample kind")
	ErrBeforeSweep        = errors.New("query precedes the first sweep point")
)

// viewError prefixes kind with the view being built and keeps kind matchable
// through errors.Is.
func viewError(view string, kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w: %s", view, kind, fmt.Sprintf(format, args...))
}
