package analysis

import (
	"math"
	"sort"

	"example.com/psfgate/internal/psf"
	"example.com/psfgate/internal/psfascii"
)

// columns is the name-keyed form both encodings are reduced to before a view
// renames its sweep variable. Group names never appear as keys; only member
// signals do.
type columns struct {
	view      string
	want      psf.SampleKind
	hasSweep  bool
	sweepName string
	sweep     []float64
	data      map[string]psf.SampleVector
}

func newColumns(view string, want psf.SampleKind) *columns {
	return &columns{view: view, want: want, data: map[string]psf.SampleVector{}}
}

func (c *columns) declare(name string) error {
	if _, dup := c.data[name]; dup || (c.hasSweep && name == c.sweepName) {
		return viewError(c.view, ErrDuplicateSignal, "%q", name)
	}
	c.data[name] = psf.SampleVector{Kind: c.want}
	return nil
}

func collectBinary(view string, ast *psf.AST, want psf.SampleKind) (*columns, error) {
	if ast == nil {
		return nil, viewError(view, psf.ErrUnsupportedLayout, "no decoded file")
	}
	if len(ast.Sweeps) > 1 {
		return nil, viewError(view, psf.ErrUnsupportedLayout, "%d sweep variables", len(ast.Sweeps))
	}
	c := newColumns(view, want)
	if sw, ok := ast.SweepVar(); ok {
		vec, ok := ast.Values[sw.ID]
		if !ok {
			return nil, viewError(view, ErrMissingSignal, "sweep %q has no samples", sw.Name)
		}
		if vec.Kind != psf.SamplesReal {
			return nil, viewError(view, ErrSampleKindMismatch, "sweep %q is %s", sw.Name, vec.Kind)
		}
		c.hasSweep, c.sweepName, c.sweep = true, sw.Name, vec.Real
	}
	for _, s := range ast.Leaves() {
		if err := c.declare(s.Name); err != nil {
			return nil, err
		}
		vec, ok := ast.Values[s.ID]
		if !ok {
			return nil, viewError(view, ErrMissingSignal, "%q (trace %d) has no samples", s.Name, s.ID)
		}
		if vec.Kind != want {
			return nil, viewError(view, ErrSampleKindMismatch, "%q is %s, want %s", s.Name, vec.Kind, want)
		}
		c.data[s.Name] = vec
	}
	return c, c.checkLengths()
}

func collectASCII(view string, ast *psfascii.AST, want psf.SampleKind) (*columns, error) {
	if ast == nil {
		return nil, viewError(view, psf.ErrUnsupportedLayout, "no parsed file")
	}
	if len(ast.Sweeps) > 1 {
		return nil, viewError(view, psf.ErrUnsupportedLayout, "%d sweep variables", len(ast.Sweeps))
	}
	c := newColumns(view, want)
	if len(ast.Sweeps) == 1 {
		c.hasSweep, c.sweepName, c.sweep = true, ast.Sweeps[0].Name, []float64{}
	}

	// members maps every name a value entry may use to the signals it fills.
	members := map[string][]string{}
	for i := 0; i < len(ast.Traces); {
		tr := ast.Traces[i]
		switch tr.Kind {
		case psfascii.TraceSignal:
			if err := c.declare(tr.Name); err != nil {
				return nil, err
			}
			members[tr.Name] = []string{tr.Name}
			i++
		case psfascii.TraceGroup:
			if tr.Count < 0 || i+tr.Count >= len(ast.Traces) {
				return nil, viewError(view, psf.ErrUnsupportedLayout,
					"group %q declares %d members, %d entries follow", tr.Name, tr.Count, len(ast.Traces)-i-1)
			}
			names := make([]string, 0, tr.Count)
			for _, m := range ast.Traces[i+1 : i+1+tr.Count] {
				if m.Kind != psfascii.TraceSignal {
					return nil, viewError(view, psf.ErrUnsupportedLayout, "group %q contains group %q", tr.Name, m.Name)
				}
				if err := c.declare(m.Name); err != nil {
					return nil, err
				}
				names = append(names, m.Name)
			}
			if _, dup := members[tr.Name]; dup {
				return nil, viewError(view, ErrDuplicateSignal, "group %q", tr.Name)
			}
			members[tr.Name] = names
			for _, n := range names {
				if _, taken := members[n]; !taken {
					members[n] = []string{n}
				}
			}
			i += tr.Count + 1
		default:
			return nil, viewError(view, psf.ErrUnsupportedLayout, "trace %q has kind %d", tr.Name, tr.Kind)
		}
	}

	for _, p := range ast.Points {
		if p.Real != nil && p.Complex != nil {
			return nil, viewError(view, ErrSampleKindMismatch, "value for %q is both real and complex", p.Signal)
		}
		if c.hasSweep && p.Signal == c.sweepName {
			if p.Complex != nil {
				return nil, viewError(view, ErrSampleKindMismatch, "sweep %q is complex", p.Signal)
			}
			if len(p.Real) != 1 {
				return nil, viewError(view, psf.ErrInconsistentSampleCount, "sweep point carries %d values", len(p.Real))
			}
			c.sweep = append(c.sweep, p.Real[0])
			continue
		}
		names, ok := members[p.Signal]
		if !ok {
			return nil, viewError(view, ErrMissingSignal, "value for undeclared trace %q", p.Signal)
		}
		kind, n := psf.SamplesReal, len(p.Real)
		if p.Complex != nil {
			kind, n = psf.SamplesComplex, len(p.Complex)
		}
		if kind != want {
			return nil, viewError(view, ErrSampleKindMismatch, "%q is %s, want %s", p.Signal, kind, want)
		}
		if n != len(names) {
			return nil, viewError(view, psf.ErrInconsistentSampleCount,
				"value for %q carries %d entries for %d signals", p.Signal, n, len(names))
		}
		for k, name := range names {
			vec := c.data[name]
			if kind == psf.SamplesComplex {
				vec.Complex = append(vec.Complex, p.Complex[k])
			} else {
				vec.Real = append(vec.Real, p.Real[k])
			}
			c.data[name] = vec
		}
	}
	return c, c.checkLengths()
}

// checkLengths requires every signal to match the sweep length, or to hold a
// single sample when there is no sweep.
func (c *columns) checkLengths() error {
	want := 1
	if c.hasSweep {
		want = len(c.sweep)
	}
	for _, name := range c.names() {
		if n := c.data[name].Len(); n != want {
			return viewError(c.view, psf.ErrInconsistentSampleCount, "%q has %d samples, want %d", name, n, want)
		}
	}
	return nil
}

func (c *columns) names() []string {
	names := make([]string, 0, len(c.data))
	for name := range c.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *columns) requireSweep(rename string) error {
	if !c.hasSweep {
		return viewError(c.view, ErrMissingSignal, "no sweep variable")
	}
	if _, clash := c.data[rename]; clash {
		return viewError(c.view, ErrDuplicateSignal, "%q collides with the renamed sweep %q", rename, c.sweepName)
	}
	return nil
}

// Column is one named series of a view, ready for tabular output.
type Column struct {
	Name    string
	Kind    psf.SampleKind
	Real    []float64
	Complex []complex128
}

func (c Column) IsComplex() bool {
	return c.Kind == psf.SamplesComplex
}

func (c Column) Len() int {
	if c.IsComplex() {
		return len(c.Complex)
	}
	return len(c.Real)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func realClose(a, b []float64, eps float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !(math.Abs(a[i]-b[i]) <= eps) {
			return false
		}
	}
	return true
}

func sameKeys[V any](a, b map[string]V) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
