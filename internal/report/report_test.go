package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/psfgate/internal/common"
	"example.com/psfgate/internal/psf"
	"example.com/psfgate/internal/psftest"
)

func decodedFixture(t *testing.T) (common.Input, *psf.AST) {
	t.Helper()
	f := &psftest.File{
		Header: []psftest.Prop{psftest.Str("simulator", "spectre")},
		Types: []psftest.Type{
			{ID: 1, Name: "V", Code: psftest.CodeReal, Props: []psftest.Prop{psftest.Str("units", "V")}},
		},
		Sweeps: []psftest.Signal{{ID: 10, Name: "time", Type: 1}},
		Traces: []psftest.Trace{
			psftest.GroupTrace(psftest.Group{ID: 20, Name: "nodes", Signals: []psftest.Signal{
				{ID: 21, Name: "out", Type: 1},
			}}),
			psftest.SignalTrace(psftest.Signal{ID: 22, Name: "bad", Type: 1}),
		},
		WindowSize: 32,
		Sweep:      []float64{0, 1, 2},
		Samples: map[uint32][]float64{
			21: {1, -2, 3.5},
			22: {math.NaN(), math.NaN(), math.NaN()},
		},
	}
	img, err := f.Build()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "run.tran")
	require.NoError(t, os.WriteFile(path, img.Data, 0644))
	in, err := common.ReadInput(path)
	require.NoError(t, err)
	ast, err := psf.Decode(in.Data)
	require.NoError(t, err)
	return in, ast
}

func TestBuildSummary(t *testing.T) {
	in, ast := decodedFixture(t)
	sum := BuildSummary(in, ast)

	assert.Equal(t, in.Path, sum.File)
	assert.Equal(t, int64(len(in.Data)), sum.StoredSize)
	assert.Equal(t, common.CompressionNone, sum.Compression)
	assert.Len(t, sum.Sha256, 64)
	assert.Equal(t, "spectre", sum.Header["simulator"])
	assert.Equal(t, "time", sum.Sweep)
	assert.Equal(t, 3, sum.SweepPoints)
	assert.Equal(t, int64(32), sum.WindowSize)

	require.Len(t, sum.Signals, 2)
	out := sum.Signals[0]
	assert.Equal(t, "out", out.Name)
	assert.Equal(t, "nodes", out.Group)
	assert.Equal(t, "real", out.Type)
	assert.Equal(t, "V", out.Units)
	assert.Equal(t, 3, out.Count)
	require.NotNil(t, out.Min)
	require.NotNil(t, out.Max)
	assert.Equal(t, -2.0, *out.Min)
	assert.Equal(t, 3.5, *out.Max)

	bad := sum.Signals[1]
	assert.Empty(t, bad.Group)
	assert.Nil(t, bad.Min)
	assert.Nil(t, bad.Max)
}

func TestSummaryComplexMagnitude(t *testing.T) {
	ast := &psf.AST{
		Header: psf.Header{},
		Types:  psf.Types{1: {ID: 1, DataType: psf.DataTypeComplex}},
		Traces: []psf.Trace{psf.SignalTrace(psf.SignalRef{ID: 5, Name: "z", TypeID: 1})},
		Values: map[psf.TraceID]psf.SampleVector{
			5: {Kind: psf.SamplesComplex, Complex: []complex128{complex(3, 4), complex(0, 1)}},
		},
	}
	sum := BuildSummary(common.Input{Path: "z.ac"}, ast)
	require.Len(t, sum.Signals, 1)
	assert.Equal(t, "complex", sum.Signals[0].Type)
	assert.Equal(t, 1.0, *sum.Signals[0].Min)
	assert.Equal(t, 5.0, *sum.Signals[0].Max)
	assert.Empty(t, sum.Sweep)
}

func TestSummaryJSONRoundTrip(t *testing.T) {
	in, ast := decodedFixture(t)
	sum := BuildSummary(in, ast)
	path := filepath.Join(t.TempDir(), "run.summary.json")
	require.NoError(t, SaveSummaryJSON(sum, path))
	got, err := LoadSummaryJSON(path)
	require.NoError(t, err)
	assert.Equal(t, sum, got)
}

func TestSaveSummaryPDF(t *testing.T) {
	in, ast := decodedFixture(t)
	path := filepath.Join(t.TempDir(), "run.pdf")
	require.NoError(t, SaveSummaryPDF(BuildSummary(in, ast), path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	// Without a digest the QR code is skipped.
	path = filepath.Join(t.TempDir(), "bare.pdf")
	require.NoError(t, SaveSummaryPDF(Summary{File: "bare"}, path))
}

func TestHashToQR(t *testing.T) {
	png, err := HashToQR("ab:cd-0123", 0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	_, err = HashToQR("  zz  ", 64)
	assert.Error(t, err)
	assert.Equal(t, "ABCD0123", sanitizeHash("ab:cd-0123"))
}

func TestManifest(t *testing.T) {
	in, ast := decodedFixture(t)
	m := NewManifest()
	m.AddDecoded(BuildSummary(in, ast), "out/run.tran.summary.json")
	m.AddFailed("in/broken.psf.gz", 8, "", os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, SaveManifest(m, path))
	got, err := LoadManifest(path)
	require.NoError(t, err)

	require.Len(t, got.Items, 2)
	assert.Equal(t, "sha256", got.ShaAlgo)
	assert.Equal(t, "tran", got.Items[0].Type)
	assert.Equal(t, "ok", got.Items[0].Status)
	assert.Equal(t, in.Sha256, got.Items[0].Sha256)
	assert.Equal(t, "psf", got.Items[1].Type)
	assert.Equal(t, "failed", got.Items[1].Status)
	assert.NotEmpty(t, got.Items[1].Error)
	assert.Equal(t, 1, got.Failed())
}
