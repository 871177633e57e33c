// Package psftest builds synthetic binary PSF files for tests and samples.
package psftest

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Section kind codes written to the directory.
const (
	KindHeader uint32 = 0
	KindType   uint32 = 1
	KindSweep  uint32 = 2
	KindTrace  uint32 = 3
	KindValue  uint32 = 4
)

// Data-type codes used in type definitions.
const (
	CodeInt8    uint32 = 1
	CodeString  uint32 = 2
	CodeInt32   uint32 = 5
	CodeReal    uint32 = 11
	CodeComplex uint32 = 12
	CodeStruct  uint32 = 16
)

const (
	tagSignal    = 16
	tagGroup     = 17
	tagValues    = 20
	tagContainer = 22
	tagString    = 33
	tagInt       = 34
	tagReal      = 35
)

// Header keys filled in automatically for windowed files.
const (
	WindowSizeKey  = "PSF window size"
	TracesKey      = "PSF traces"
	SweepPointsKey = "PSF sweep points"
)

// Prop is a named value. Value must be a string, an int32 or a float64.
type Prop struct {
	Name  string
	Value any
}

func Str(name, v string) Prop          { return Prop{Name: name, Value: v} }
func Int(name string, v int32) Prop    { return Prop{Name: name, Value: v} }
func Real(name string, v float64) Prop { return Prop{Name: name, Value: v} }

type Type struct {
	ID    uint32
	Name  string
	Code  uint32
	Props []Prop
}

type Signal struct {
	ID    uint32
	Name  string
	Type  uint32
	Props []Prop
}

type Group struct {
	ID      uint32
	Name    string
	Signals []Signal
}

// Trace is a standalone signal, or a group when Group is set.
type Trace struct {
	Signal Signal
	Group  *Group
}

func SignalTrace(s Signal) Trace { return Trace{Signal: s} }
func GroupTrace(g Group) Trace   { return Trace{Group: &g} }

// File describes a PSF file. Sections are written in kind order; those listed
// in Omit are left out of the file and its directory.
type File struct {
	Header []Prop
	Types  []Type
	Sweeps []Signal
	Traces []Trace

	// WindowSize is the per-signal slab size in bytes. Zero leaves the
	// window keys out of the header.
	WindowSize int
	// WindowPoints caps the samples per window; zero means WindowSize/8.
	WindowPoints int
	// Fill is the number of zero filler bytes ahead of the first window.
	Fill int
	// InitFlags is ORed into every window init word above the count bits.
	InitFlags uint32

	Sweep   []float64
	Samples map[uint32][]float64
	Complex map[uint32][]complex128

	Omit []uint32
}

// Image is a built file plus the offsets tests use to corrupt it.
type Image struct {
	Data []byte
	// Sections maps each written section kind to its start offset.
	Sections map[uint32]int
	// Windows lists the offset of every window init word.
	Windows []int
}

// Leaves returns the signals of all traces in file order.
func (f *File) Leaves() []Signal {
	var out []Signal
	for _, tr := range f.Traces {
		if tr.Group != nil {
			out = append(out, tr.Group.Signals...)
			continue
		}
		out = append(out, tr.Signal)
	}
	return out
}

// Build encodes the file.
func (f *File) Build() (Image, error) {
	img := Image{Sections: map[uint32]int{}}
	omit := map[uint32]bool{}
	for _, k := range f.Omit {
		omit[k] = true
	}
	w := &writer{}
	type entry struct{ kind, start uint32 }
	var dir []entry

	sections := []struct {
		kind  uint32
		write func(*writer) error
	}{
		{KindHeader, f.writeHeader},
		{KindType, f.writeTypes},
		{KindSweep, f.writeSweeps},
		{KindTrace, f.writeTraces},
		{KindValue, func(w *writer) error { return f.writeValues(w, &img) }},
	}
	for _, s := range sections {
		if omit[s.kind] {
			continue
		}
		start := w.len()
		w.u32(s.kind)
		endAt := w.reserve()
		if err := s.write(w); err != nil {
			return Image{}, fmt.Errorf("section %d: %w", s.kind, err)
		}
		w.patch(endAt, uint32(w.len()))
		img.Sections[s.kind] = start
		dir = append(dir, entry{s.kind, uint32(start)})
	}

	ds := w.len()
	for _, e := range dir {
		w.u32(e.kind)
		w.u32(e.start)
	}
	w.u32(0)
	w.u32(0)
	w.u32(uint32(ds))
	img.Data = w.buf
	return img, nil
}

func (f *File) header() []Prop {
	props := append([]Prop(nil), f.Header...)
	if f.WindowSize == 0 {
		return props
	}
	have := map[string]bool{}
	for _, p := range props {
		have[p.Name] = true
	}
	auto := []Prop{
		Int(WindowSizeKey, int32(f.WindowSize)),
		Int(TracesKey, int32(len(f.Leaves()))),
		Int(SweepPointsKey, int32(len(f.Sweep))),
	}
	for _, p := range auto {
		if !have[p.Name] {
			props = append(props, p)
		}
	}
	return props
}

func (f *File) writeHeader(w *writer) error {
	for _, p := range f.header() {
		if err := w.prop(p); err != nil {
			return err
		}
	}
	return nil
}

func (f *File) writeTypes(w *writer) error {
	w.u32(tagContainer)
	endAt := w.reserve()
	for _, t := range f.Types {
		w.u32(tagSignal)
		w.u32(t.ID)
		w.str(t.Name)
		w.u32(0)
		w.u32(t.Code)
		for _, p := range t.Props {
			if err := w.prop(p); err != nil {
				return err
			}
		}
	}
	w.patch(endAt, uint32(w.len()))
	return nil
}

func (f *File) writeSweeps(w *writer) error {
	for _, s := range f.Sweeps {
		if err := w.signal(s); err != nil {
			return err
		}
	}
	return nil
}

func (f *File) writeTraces(w *writer) error {
	w.u32(tagContainer)
	endAt := w.reserve()
	for _, tr := range f.Traces {
		if tr.Group == nil {
			if err := w.signal(tr.Signal); err != nil {
				return err
			}
			continue
		}
		w.u32(tagGroup)
		w.u32(tr.Group.ID)
		w.str(tr.Group.Name)
		w.u32(uint32(len(tr.Group.Signals)))
		for _, s := range tr.Group.Signals {
			if err := w.signal(s); err != nil {
				return err
			}
		}
	}
	w.patch(endAt, uint32(w.len()))
	return nil
}

// writeValues lays windows out exactly as the decoder walks them: the init
// word, the sweep doubles, then one slab per leaf with its samples pushed to
// the end of the slab.
func (f *File) writeValues(w *writer, img *Image) error {
	w.u32(tagValues)
	w.u32(uint32(f.Fill))
	w.u32(0)
	w.zeros(f.Fill)
	if f.WindowSize == 0 || len(f.Sweep) == 0 {
		return nil
	}

	leaves := f.Leaves()
	for _, s := range leaves {
		n := -1
		if v, ok := f.Samples[s.ID]; ok {
			n = len(v)
		} else if v, ok := f.Complex[s.ID]; ok {
			n = len(v)
		}
		if n != len(f.Sweep) {
			return fmt.Errorf("signal %q has %d samples, sweep has %d", s.Name, n, len(f.Sweep))
		}
	}

	per := f.WindowPoints
	if per <= 0 {
		per = f.WindowSize / 8
	}
	if per <= 0 || per > 0xFFFF {
		return fmt.Errorf("window of %d points", per)
	}

	for done := 0; done < len(f.Sweep); {
		count := per
		if rest := len(f.Sweep) - done; count > rest {
			count = rest
		}
		img.Windows = append(img.Windows, w.len())
		w.u32(f.InitFlags&^0xFFFF | uint32(count))
		for _, v := range f.Sweep[done : done+count] {
			w.f64(v)
		}
		base := w.len()
		next := base + len(leaves)*f.WindowSize
		w.grow(next)
		lead := f.WindowSize - count*8
		if lead < 0 {
			return fmt.Errorf("window of %d points exceeds %d-byte slab", count, f.WindowSize)
		}
		last := done+count == len(f.Sweep)
		for k, s := range leaves {
			at := base + k*f.WindowSize + lead
			if v, ok := f.Samples[s.ID]; ok {
				for _, x := range v[done : done+count] {
					at = w.f64At(at, x)
				}
			} else {
				for _, x := range f.Complex[s.ID][done : done+count] {
					at = w.f64At(at, real(x))
					at = w.f64At(at, imag(x))
				}
			}
			// complex samples take two doubles and spill past the slab
			if k+1 < len(leaves) && at > base+(k+1)*f.WindowSize+lead {
				return fmt.Errorf("signal %q overruns the slab of %q", s.Name, leaves[k+1].Name)
			}
			if at > next && !last {
				return fmt.Errorf("signal %q overruns the next window", s.Name)
			}
		}
		done += count
	}
	return nil
}

type writer struct {
	buf []byte
}

func (w *writer) len() int { return len(w.buf) }

func (w *writer) u32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *writer) f64(v float64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(v))
}

func (w *writer) zeros(n int) {
	w.buf = append(w.buf, make([]byte, n)...)
}

func (w *writer) grow(n int) {
	if n > len(w.buf) {
		w.zeros(n - len(w.buf))
	}
}

func (w *writer) f64At(at int, v float64) int {
	w.grow(at + 8)
	binary.BigEndian.PutUint64(w.buf[at:], math.Float64bits(v))
	return at + 8
}

func (w *writer) reserve() int {
	at := w.len()
	w.u32(0)
	return at
}

func (w *writer) patch(at int, v uint32) {
	binary.BigEndian.PutUint32(w.buf[at:], v)
}

func (w *writer) str(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
	w.zeros((4 - len(s)%4) % 4)
}

func (w *writer) prop(p Prop) error {
	switch v := p.Value.(type) {
	case string:
		w.u32(tagString)
		w.str(p.Name)
		w.str(v)
	case int32:
		w.u32(tagInt)
		w.str(p.Name)
		w.u32(uint32(v))
	case float64:
		w.u32(tagReal)
		w.str(p.Name)
		w.f64(v)
	default:
		return fmt.Errorf("property %q: unsupported value %T", p.Name, p.Value)
	}
	return nil
}

func (w *writer) signal(s Signal) error {
	w.u32(tagSignal)
	w.u32(s.ID)
	w.str(s.Name)
	w.u32(s.Type)
	for _, p := range s.Props {
		if err := w.prop(p); err != nil {
			return err
		}
	}
	return nil
}
