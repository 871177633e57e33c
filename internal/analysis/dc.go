package analysis

import (
	"sort"

	"example.com/psfgate/internal/psf"
	"example.com/psfgate/internal/psfascii"
)

// DC is either an operating point or a swept DC analysis; exactly one of OP
// and Sweep is set.
type DC struct {
	OP    *OperatingPoint
	Sweep *DCSweep
}

// OperatingPoint holds one value per signal.
type OperatingPoint struct {
	Signals map[string]float64
}

// DCSweep holds signals swept over a named parameter, which keeps its own
// name.
type DCSweep struct {
	Param   string
	Values  []float64
	Signals map[string][]float64
}

func DCFromBinary(ast *psf.AST) (*DC, error) {
	c, err := collectBinary("dc", ast, psf.SamplesReal)
	if err != nil {
		return nil, err
	}
	return newDC(c), nil
}

func DCFromASCII(ast *psfascii.AST) (*DC, error) {
	c, err := collectASCII("dc", ast, psf.SamplesReal)
	if err != nil {
		return nil, err
	}
	return newDC(c), nil
}

// newDC relies on checkLengths having required a single sample per signal
// when there is no sweep.
func newDC(c *columns) *DC {
	if !c.hasSweep {
		op := &OperatingPoint{Signals: make(map[string]float64, len(c.data))}
		for name, vec := range c.data {
			op.Signals[name] = vec.Real[0]
		}
		return &DC{OP: op}
	}
	sw := &DCSweep{Param: c.sweepName, Values: c.sweep, Signals: make(map[string][]float64, len(c.data))}
	for name, vec := range c.data {
		sw.Signals[name] = vec.Real
	}
	return &DC{Sweep: sw}
}

func (op *OperatingPoint) Value(name string) (float64, bool) {
	v, ok := op.Signals[name]
	return v, ok
}

func (s *DCSweep) Signal(name string) ([]float64, bool) {
	if name == s.Param {
		return s.Values, true
	}
	v, ok := s.Signals[name]
	return v, ok
}

func (s *DCSweep) IdxBeforeParam(x float64) (int, bool) {
	return idxBefore(s.Values, x)
}

func (s *DCSweep) SampleAt(name string, x float64) (float64, error) {
	v, ok := s.Signal(name)
	if !ok {
		return 0, viewError("dc", ErrMissingSignal, "%q", name)
	}
	i, ok := s.IdxBeforeParam(x)
	if !ok {
		return 0, viewError("dc", ErrBeforeSweep, "%s=%g", s.Param, x)
	}
	return v[i], nil
}

// Names lists the signals, plus the swept parameter for a sweep, sorted.
func (d *DC) Names() []string {
	if d.OP != nil {
		return sortedKeys(d.OP.Signals)
	}
	names := append(sortedKeys(d.Sweep.Signals), d.Sweep.Param)
	sort.Strings(names)
	return names
}

func (d *DC) Len() int {
	if d.OP != nil {
		return len(d.OP.Signals)
	}
	return len(d.Sweep.Signals) + 1
}

func (d *DC) ApproxEq(o *DC, eps float64) bool {
	if o == nil {
		return false
	}
	switch {
	case d.OP != nil && o.OP != nil:
		if !sameKeys(d.OP.Signals, o.OP.Signals) {
			return false
		}
		for name, v := range d.OP.Signals {
			if !realClose([]float64{v}, []float64{o.OP.Signals[name]}, eps) {
				return false
			}
		}
		return true
	case d.Sweep != nil && o.Sweep != nil:
		if d.Sweep.Param != o.Sweep.Param || !sameKeys(d.Sweep.Signals, o.Sweep.Signals) ||
			!realClose(d.Sweep.Values, o.Sweep.Values, eps) {
			return false
		}
		for name, v := range d.Sweep.Signals {
			if !realClose(v, o.Sweep.Signals[name], eps) {
				return false
			}
		}
		return true
	}
	return false
}

// Columns returns the swept parameter, if any, followed by the signals in
// name order. An operating point yields single-row columns.
func (d *DC) Columns() []Column {
	var cols []Column
	if d.OP != nil {
		for _, name := range sortedKeys(d.OP.Signals) {
			cols = append(cols, Column{Name: name, Kind: psf.SamplesReal, Real: []float64{d.OP.Signals[name]}})
		}
		return cols
	}
	cols = append(cols, Column{Name: d.Sweep.Param, Kind: psf.SamplesReal, Real: d.Sweep.Values})
	for _, name := range sortedKeys(d.Sweep.Signals) {
		cols = append(cols, Column{Name: name, Kind: psf.SamplesReal, Real: d.Sweep.Signals[name]})
	}
	return cols
}
