package analysis

import (
	"sort"

	"example.com/psfgate/internal/psf"
	"example.com/psfgate/internal/psfascii"
)

// TimeKey is the name the transient sweep variable is published under.
const TimeKey = "time"

// Transient is a name-indexed view of a transient run. Every signal has one
// real sample per time point.
type Transient struct {
	time    []float64
	signals map[string][]float64
}

func TransientFromBinary(ast *psf.AST) (*Transient, error) {
	c, err := collectBinary("transient", ast, psf.SamplesReal)
	if err != nil {
		return nil, err
	}
	return newTransient(c)
}

func TransientFromASCII(ast *psfascii.AST) (*Transient, error) {
	c, err := collectASCII("transient", ast, psf.SamplesReal)
	if err != nil {
		return nil, err
	}
	return newTransient(c)
}

func newTransient(c *columns) (*Transient, error) {
	if err := c.requireSweep(TimeKey); err != nil {
		return nil, err
	}
	t := &Transient{time: c.sweep, signals: make(map[string][]float64, len(c.data))}
	for name, vec := range c.data {
		t.signals[name] = vec.Real
	}
	return t, nil
}

func (t *Transient) Time() []float64 {
	return t.time
}

// Signal returns the samples of name; TimeKey yields the time vector.
func (t *Transient) Signal(name string) ([]float64, bool) {
	if name == TimeKey {
		return t.time, true
	}
	v, ok := t.signals[name]
	return v, ok
}

// IdxBeforeTime returns the index of the last time point at or before x.
func (t *Transient) IdxBeforeTime(x float64) (int, bool) {
	return idxBefore(t.time, x)
}

// SampleAt returns the value of name at the last time point at or before x.
func (t *Transient) SampleAt(name string, x float64) (float64, error) {
	v, ok := t.Signal(name)
	if !ok {
		return 0, viewError("transient", ErrMissingSignal, "%q", name)
	}
	i, ok := t.IdxBeforeTime(x)
	if !ok {
		return 0, viewError("transient", ErrBeforeSweep, "t=%g", x)
	}
	return v[i], nil
}

// Names lists every signal including TimeKey, sorted.
func (t *Transient) Names() []string {
	names := append(sortedKeys(t.signals), TimeKey)
	sort.Strings(names)
	return names
}

func (t *Transient) Len() int {
	return len(t.signals) + 1
}

// ApproxEq reports whether both views hold the same names and every sample
// differs by at most eps.
func (t *Transient) ApproxEq(o *Transient, eps float64) bool {
	if o == nil || !sameKeys(t.signals, o.signals) || !realClose(t.time, o.time, eps) {
		return false
	}
	for name, v := range t.signals {
		if !realClose(v, o.signals[name], eps) {
			return false
		}
	}
	return true
}

// Columns returns time followed by the signals in name order.
func (t *Transient) Columns() []Column {
	cols := []Column{{Name: TimeKey, Kind: psf.SamplesReal, Real: t.time}}
	for _, name := range sortedKeys(t.signals) {
		cols = append(cols, Column{Name: name, Kind: psf.SamplesReal, Real: t.signals[name]})
	}
	return cols
}
