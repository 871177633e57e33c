// Package psfascii holds the shape produced by the text-format PSF grammar.
// Parsing the text format lives elsewhere; this package only fixes the
// contract the analysis views consume, so results from both encodings can be
// compared directly.
package psfascii

import "example.com/psfgate/internal/psf"

type TraceKind uint8

const (
	TraceSignal TraceKind = iota + 1
	TraceGroup
)

// Trace is one entry of the flat trace list. A group entry is followed by
// Count signal entries that belong to it.
type Trace struct {
	Kind  TraceKind
	Name  string
	Units string
	Count int
}

func Signal(name, units string) Trace {
	return Trace{Kind: TraceSignal, Name: name, Units: units}
}

func Group(name string, count int) Trace {
	return Trace{Kind: TraceGroup, Name: name, Count: count}
}

type Sweep struct {
	Name  string
	Units string
}

// Point is one entry of the value stream. Signal names a sweep variable, a
// standalone signal, a group, or a group member. A signal carries one value;
// a group carries one value per member in declaration order. Exactly one of
// Real and Complex is set.
type Point struct {
	Signal  string
	Real    []float64
	Complex []complex128
}

func RealPoint(signal string, v ...float64) Point {
	return Point{Signal: signal, Real: v}
}

func ComplexPoint(signal string, v ...complex128) Point {
	return Point{Signal: signal, Complex: v}
}

type AST struct {
	Header psf.Header
	Sweeps []Sweep
	Traces []Trace
	Points []Point
}
