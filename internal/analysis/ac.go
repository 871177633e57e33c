package analysis

import (
	"math/cmplx"
	"sort"

	"example.com/psfgate/internal/psf"
	"example.com/psfgate/internal/psfascii"
)

// FreqKey is the name the AC sweep variable is published under.
const FreqKey = "freq"

// AC is a name-indexed view of a small-signal frequency sweep.
type AC struct {
	freq    []float64
	signals map[string][]complex128
}

func ACFromBinary(ast *psf.AST) (*AC, error) {
	c, err := collectBinary("ac", ast, psf.SamplesComplex)
	if err != nil {
		return nil, err
	}
	return newAC(c)
}

func ACFromASCII(ast *psfascii.AST) (*AC, error) {
	c, err := collectASCII("ac", ast, psf.SamplesComplex)
	if err != nil {
		return nil, err
	}
	return newAC(c)
}

func newAC(c *columns) (*AC, error) {
	if err := c.requireSweep(FreqKey); err != nil {
		return nil, err
	}
	a := &AC{freq: c.sweep, signals: make(map[string][]complex128, len(c.data))}
	for name, vec := range c.data {
		a.signals[name] = vec.Complex
	}
	return a, nil
}

func (a *AC) Freq() []float64 {
	return a.freq
}

func (a *AC) Signal(name string) ([]complex128, bool) {
	v, ok := a.signals[name]
	return v, ok
}

func (a *AC) IdxBeforeFreq(f float64) (int, bool) {
	return idxBefore(a.freq, f)
}

func (a *AC) SampleAt(name string, f float64) (complex128, error) {
	v, ok := a.signals[name]
	if !ok {
		return 0, viewError("ac", ErrMissingSignal, "%q", name)
	}
	i, ok := a.IdxBeforeFreq(f)
	if !ok {
		return 0, viewError("ac", ErrBeforeSweep, "f=%g", f)
	}
	return v[i], nil
}

// Names lists every signal including FreqKey, sorted.
func (a *AC) Names() []string {
	names := append(sortedKeys(a.signals), FreqKey)
	sort.Strings(names)
	return names
}

func (a *AC) Len() int {
	return len(a.signals) + 1
}

// ApproxEq compares frequencies elementwise and complex samples by the
// magnitude of their difference.
func (a *AC) ApproxEq(o *AC, eps float64) bool {
	if o == nil || !sameKeys(a.signals, o.signals) || !realClose(a.freq, o.freq, eps) {
		return false
	}
	for name, v := range a.signals {
		w := o.signals[name]
		if len(v) != len(w) {
			return false
		}
		for i := range v {
			if !(cmplx.Abs(v[i]-w[i]) <= eps) {
				return false
			}
		}
	}
	return true
}

// Columns returns freq followed by the signals in name order.
func (a *AC) Columns() []Column {
	cols := []Column{{Name: FreqKey, Kind: psf.SamplesReal, Real: a.freq}}
	for _, name := range sortedKeys(a.signals) {
		cols = append(cols, Column{Name: name, Kind: psf.SamplesComplex, Complex: a.signals[name]})
	}
	return cols
}
