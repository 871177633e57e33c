package analysis

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/psfgate/internal/psf"
	"example.com/psfgate/internal/psfascii"
	"example.com/psfgate/internal/psftest"
)

const (
	typeReal    uint32 = 1
	typeComplex uint32 = 2
)

var testTypes = []psftest.Type{
	{ID: typeReal, Name: "V", Code: psftest.CodeReal},
	{ID: typeComplex, Name: "VC", Code: psftest.CodeComplex},
}

func vdivSample(name string, i int) float64 {
	switch name {
	case "out":
		return 0.5 * math.Sin(float64(i)/3)
	case "in":
		return math.Sin(float64(i) / 3)
	default:
		return 1.8
	}
}

// vdivBinary is a sine source into a divider: one aliased group and two
// standalone signals sampled at 11 time points.
func vdivBinary(t *testing.T) *psf.AST {
	t.Helper()
	f := &psftest.File{
		Types:  testTypes,
		Sweeps: []psftest.Signal{{ID: 1, Name: "time", Type: typeReal}},
		Traces: []psftest.Trace{
			psftest.GroupTrace(psftest.Group{ID: 2, Name: "vout", Signals: []psftest.Signal{{ID: 3, Name: "out", Type: typeReal}}}),
			psftest.SignalTrace(psftest.Signal{ID: 4, Name: "in", Type: typeReal}),
			psftest.SignalTrace(psftest.Signal{ID: 5, Name: "vdd", Type: typeReal}),
		},
		WindowSize: 48,
		Samples:    map[uint32][]float64{},
	}
	ids := map[uint32]string{3: "out", 4: "in", 5: "vdd"}
	for i := 0; i < 11; i++ {
		f.Sweep = append(f.Sweep, float64(i)*1e-6)
		for id, name := range ids {
			f.Samples[id] = append(f.Samples[id], vdivSample(name, i))
		}
	}
	img, err := f.Build()
	require.NoError(t, err)
	ast, err := psf.Decode(img.Data)
	require.NoError(t, err)
	return ast
}

// vdivASCII is the text-format rendition of vdivBinary, with values offset
// by skew.
func vdivASCII(skew float64) *psfascii.AST {
	ast := &psfascii.AST{
		Sweeps: []psfascii.Sweep{{Name: "time", Units: "s"}},
		Traces: []psfascii.Trace{
			psfascii.Group("vout", 1),
			psfascii.Signal("out", "V"),
			psfascii.Signal("in", "V"),
			psfascii.Signal("vdd", "V"),
		},
	}
	for i := 0; i < 11; i++ {
		ast.Points = append(ast.Points,
			psfascii.RealPoint("time", float64(i)*1e-6),
			psfascii.RealPoint("vout", vdivSample("out", i)+skew),
			psfascii.RealPoint("in", vdivSample("in", i)),
			psfascii.RealPoint("vdd", vdivSample("vdd", i)),
		)
	}
	return ast
}

func TestTransientFromBinary(t *testing.T) {
	tr, err := TransientFromBinary(vdivBinary(t))
	require.NoError(t, err)

	assert.Equal(t, 4, tr.Len())
	assert.Equal(t, []string{"in", "out", "time", "vdd"}, tr.Names())
	assert.Len(t, tr.Time(), 11)

	out, ok := tr.Signal("out")
	require.True(t, ok)
	assert.Equal(t, vdivSample("out", 4), out[4])

	_, ok = tr.Signal("vout")
	assert.False(t, ok, "group names are not signal keys")

	time, ok := tr.Signal(TimeKey)
	require.True(t, ok)
	assert.Equal(t, 2e-6, time[2])
}

func TestTransientCrossFormat(t *testing.T) {
	bin, err := TransientFromBinary(vdivBinary(t))
	require.NoError(t, err)

	ascii, err := TransientFromASCII(vdivASCII(1e-14))
	require.NoError(t, err)
	assert.True(t, ascii.ApproxEq(bin, 1e-12))
	assert.True(t, bin.ApproxEq(ascii, 1e-12))

	skewed, err := TransientFromASCII(vdivASCII(1e-6))
	require.NoError(t, err)
	assert.False(t, skewed.ApproxEq(bin, 1e-12))

	fewer := vdivASCII(0)
	fewer.Traces = fewer.Traces[:3]
	var points []psfascii.Point
	for _, p := range fewer.Points {
		if p.Signal != "vdd" {
			points = append(points, p)
		}
	}
	fewer.Points = points
	partial, err := TransientFromASCII(fewer)
	require.NoError(t, err)
	assert.False(t, partial.ApproxEq(bin, 1e-12))
	assert.False(t, bin.ApproxEq(nil, 1e-12))
}

func TestTransientSampleAt(t *testing.T) {
	tr, err := TransientFromASCII(vdivASCII(0))
	require.NoError(t, err)

	v, err := tr.SampleAt("in", tr.Time()[3])
	require.NoError(t, err)
	assert.Equal(t, vdivSample("in", 3), v)

	v, err = tr.SampleAt("in", 3.5e-6)
	require.NoError(t, err)
	assert.Equal(t, vdivSample("in", 3), v)

	v, err = tr.SampleAt("in", 1)
	require.NoError(t, err)
	assert.Equal(t, vdivSample("in", 10), v)

	_, err = tr.SampleAt("in", -1e-9)
	assert.ErrorIs(t, err, ErrBeforeSweep)

	_, err = tr.SampleAt("nope", 0)
	assert.ErrorIs(t, err, ErrMissingSignal)
}

func TestIdxBefore(t *testing.T) {
	v := []float64{0, 1, 2, 4, 8}
	tests := []struct {
		name string
		x    float64
		want int
		ok   bool
	}{
		{name: "before first", x: -0.5, ok: false},
		{name: "first exact", x: 0, want: 0, ok: true},
		{name: "between", x: 3, want: 2, ok: true},
		{name: "exact middle", x: 4, want: 3, ok: true},
		{name: "last exact", x: 8, want: 4, ok: true},
		{name: "after last", x: 100, want: 4, ok: true},
		{name: "nan", x: math.NaN(), ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := idxBefore(v, tt.x)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}

	_, ok := idxBefore(nil, 1)
	assert.False(t, ok)
}

func TestIdxBeforeMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		n := 1 + rng.Intn(200)
		v := make([]float64, n)
		x := rng.Float64()
		for i := range v {
			x += 1e-3 + rng.Float64()
			v[i] = x
		}
		for q := 0; q < 100; q++ {
			target := v[0] - 1 + rng.Float64()*(v[n-1]-v[0]+2)
			if q%10 == 0 {
				target = v[rng.Intn(n)]
			}
			i, ok := idxBefore(v, target)
			if target < v[0] {
				require.False(t, ok, "t=%g v[0]=%g", target, v[0])
				continue
			}
			require.True(t, ok)
			require.LessOrEqual(t, v[i], target)
			if i+1 < n {
				require.Greater(t, v[i+1], target)
			}
		}
	}
}

func acBinary(t *testing.T) *psf.AST {
	t.Helper()
	f := &psftest.File{
		Types:      testTypes,
		Sweeps:     []psftest.Signal{{ID: 1, Name: "freq", Type: typeReal}},
		Traces:     []psftest.Trace{psftest.SignalTrace(psftest.Signal{ID: 2, Name: "out", Type: typeComplex})},
		WindowSize: 64,
		Sweep:      []float64{1, 10, 100, 1000},
		Complex:    map[uint32][]complex128{2: {complex(1, 0), complex(0.9, -0.1), complex(0.5, -0.5), complex(0.1, -0.3)}},
	}
	img, err := f.Build()
	require.NoError(t, err)
	ast, err := psf.Decode(img.Data)
	require.NoError(t, err)
	return ast
}

func TestACViews(t *testing.T) {
	bin, err := ACFromBinary(acBinary(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"freq", "out"}, bin.Names())
	assert.Equal(t, 2, bin.Len())

	v, err := bin.SampleAt("out", 500)
	require.NoError(t, err)
	assert.Equal(t, complex(0.5, -0.5), v)
	_, err = bin.SampleAt("out", 0.5)
	assert.ErrorIs(t, err, ErrBeforeSweep)

	ascii := &psfascii.AST{
		Sweeps: []psfascii.Sweep{{Name: "freq", Units: "Hz"}},
		Traces: []psfascii.Trace{psfascii.Signal("out", "V")},
	}
	for i, f := range bin.Freq() {
		out, _ := bin.Signal("out")
		ascii.Points = append(ascii.Points, psfascii.RealPoint("freq", f), psfascii.ComplexPoint("out", out[i]))
	}
	fromText, err := ACFromASCII(ascii)
	require.NoError(t, err)
	assert.True(t, fromText.ApproxEq(bin, 1e-12))

	_, err = TransientFromBinary(acBinary(t))
	assert.ErrorIs(t, err, ErrSampleKindMismatch)

	cols := bin.Columns()
	require.Len(t, cols, 2)
	assert.False(t, cols[0].IsComplex())
	assert.True(t, cols[1].IsComplex())
	assert.Equal(t, 4, cols[1].Len())
}

func TestDCOperatingPoint(t *testing.T) {
	ast := &psf.AST{
		Traces: []psf.Trace{
			psf.SignalTrace(psf.SignalRef{ID: 1, Name: "vdd"}),
			psf.GroupTrace(psf.TraceGroup{ID: 2, Name: "m1", DeclaredCount: 2, Signals: []psf.SignalRef{
				{ID: 3, Name: "m1:id"}, {ID: 4, Name: "m1:vgs"},
			}}),
		},
		Values: map[psf.TraceID]psf.SampleVector{
			1: {Kind: psf.SamplesReal, Real: []float64{1.8}},
			3: {Kind: psf.SamplesReal, Real: []float64{1e-4}},
			4: {Kind: psf.SamplesReal, Real: []float64{0.7}},
		},
	}
	dc, err := DCFromBinary(ast)
	require.NoError(t, err)
	require.NotNil(t, dc.OP)
	assert.Nil(t, dc.Sweep)
	assert.Equal(t, []string{"m1:id", "m1:vgs", "vdd"}, dc.Names())
	v, ok := dc.OP.Value("m1:vgs")
	assert.True(t, ok)
	assert.Equal(t, 0.7, v)

	ast.Values[4] = psf.SampleVector{Kind: psf.SamplesReal, Real: []float64{0.7, 0.8}}
	_, err = DCFromBinary(ast)
	assert.ErrorIs(t, err, psf.ErrInconsistentSampleCount)
}

func TestDCSweepFromASCII(t *testing.T) {
	ast := &psfascii.AST{
		Sweeps: []psfascii.Sweep{{Name: "vin", Units: "V"}},
		Traces: []psfascii.Trace{psfascii.Group("I", 2), psfascii.Signal("I:p", "A"), psfascii.Signal("I:n", "A")},
	}
	for i := 0; i < 5; i++ {
		x := float64(i) * 0.1
		ast.Points = append(ast.Points, psfascii.RealPoint("vin", x), psfascii.RealPoint("I", x*1e-3, -x*1e-3))
	}
	dc, err := DCFromASCII(ast)
	require.NoError(t, err)
	require.NotNil(t, dc.Sweep)
	assert.Equal(t, "vin", dc.Sweep.Param)
	assert.Equal(t, []string{"I:n", "I:p", "vin"}, dc.Names())
	assert.Equal(t, 3, dc.Len())

	v, err := dc.Sweep.SampleAt("I:n", 0.25)
	require.NoError(t, err)
	assert.InDelta(t, -0.2e-3, v, 1e-15)

	same, err := DCFromASCII(ast)
	require.NoError(t, err)
	assert.True(t, dc.ApproxEq(same, 0))
	assert.False(t, dc.ApproxEq(&DC{OP: &OperatingPoint{}}, 1))
}

func TestFromASCIIRejects(t *testing.T) {
	base := func() *psfascii.AST {
		return &psfascii.AST{
			Sweeps: []psfascii.Sweep{{Name: "time"}},
			Traces: []psfascii.Trace{psfascii.Signal("a", "V")},
			Points: []psfascii.Point{psfascii.RealPoint("time", 0), psfascii.RealPoint("a", 1)},
		}
	}
	tests := []struct {
		name   string
		mutate func(*psfascii.AST)
		want   error
	}{
		{name: "nested group", mutate: func(a *psfascii.AST) {
			a.Traces = []psfascii.Trace{psfascii.Group("g", 1), psfascii.Group("h", 1), psfascii.Signal("a", "V")}
		}, want: psf.ErrUnsupportedLayout},
		{name: "short group", mutate: func(a *psfascii.AST) {
			a.Traces = []psfascii.Trace{psfascii.Group("g", 2), psfascii.Signal("a", "V")}
		}, want: psf.ErrUnsupportedLayout},
		{name: "two sweeps", mutate: func(a *psfascii.AST) {
			a.Sweeps = append(a.Sweeps, psfascii.Sweep{Name: "temp"})
		}, want: psf.ErrUnsupportedLayout},
		{name: "undeclared trace", mutate: func(a *psfascii.AST) {
			a.Points = append(a.Points, psfascii.RealPoint("b", 2))
		}, want: ErrMissingSignal},
		{name: "duplicate signal", mutate: func(a *psfascii.AST) {
			a.Traces = append(a.Traces, psfascii.Signal("a", "V"))
		}, want: ErrDuplicateSignal},
		{name: "signal named like renamed sweep", mutate: func(a *psfascii.AST) {
			a.Sweeps[0].Name = "t"
			a.Traces = append(a.Traces, psfascii.Signal("time", "s"))
			a.Points = []psfascii.Point{psfascii.RealPoint("t", 0), psfascii.RealPoint("a", 1), psfascii.RealPoint("time", 1)}
		}, want: ErrDuplicateSignal},
		{name: "complex in transient", mutate: func(a *psfascii.AST) {
			a.Points[1] = psfascii.ComplexPoint("a", complex(1, 1))
		}, want: ErrSampleKindMismatch},
		{name: "missing sample", mutate: func(a *psfascii.AST) {
			a.Points = append(a.Points, psfascii.RealPoint("time", 1))
		}, want: psf.ErrInconsistentSampleCount},
		{name: "group value width", mutate: func(a *psfascii.AST) {
			a.Points[1] = psfascii.RealPoint("a", 1, 2)
		}, want: psf.ErrInconsistentSampleCount},
		{name: "no sweep", mutate: func(a *psfascii.AST) {
			a.Sweeps = nil
			a.Points = a.Points[1:]
		}, want: ErrMissingSignal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := base()
			tt.mutate(a)
			tr, err := TransientFromASCII(a)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, tr)
		})
	}
}

func TestFromBinaryDispatch(t *testing.T) {
	kind, err := ParseKind("Transient")
	require.NoError(t, err)
	assert.Equal(t, KindTransient, kind)
	_, err = ParseKind("noise")
	assert.Error(t, err)

	v, err := FromBinary(KindTransient, vdivBinary(t))
	require.NoError(t, err)
	assert.Equal(t, 4, v.Len())
	cols := v.Columns()
	require.Len(t, cols, 4)
	assert.Equal(t, TimeKey, cols[0].Name)

	v, err = FromBinary(KindAC, vdivBinary(t))
	assert.ErrorIs(t, err, ErrSampleKindMismatch)
	assert.Nil(t, v)

	dc, err := FromBinary(KindDC, vdivBinary(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"in", "out", "time", "vdd"}, dc.Names())

	_, err = FromBinary(KindTransient, nil)
	assert.ErrorIs(t, err, psf.ErrUnsupportedLayout)
}
