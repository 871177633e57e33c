package export

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/psfgate/internal/analysis"
	"example.com/psfgate/internal/psf"
	"example.com/psfgate/internal/psfascii"
)

type fixedSource []analysis.Column

func (f fixedSource) Columns() []analysis.Column { return f }

func transient(t *testing.T) *analysis.Transient {
	t.Helper()
	ast := &psfascii.AST{
		Sweeps: []psfascii.Sweep{{Name: "time"}},
		Traces: []psfascii.Trace{psfascii.Signal("vout", "V"), psfascii.Signal("iin", "A")},
		Points: []psfascii.Point{
			psfascii.RealPoint("time", 0), psfascii.RealPoint("vout", 0.5), psfascii.RealPoint("iin", -1e-3),
			psfascii.RealPoint("time", 1e-9), psfascii.RealPoint("vout", 0.75), psfascii.RealPoint("iin", 2e-3),
		},
	}
	tr, err := analysis.TransientFromASCII(ast)
	require.NoError(t, err)
	return tr
}

func TestFromViewTransient(t *testing.T) {
	tbl, err := FromView(transient(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"time", "iin", "vout"}, tbl.Columns)
	assert.Equal(t, [][]float64{{0, -1e-3, 0.5}, {1e-9, 2e-3, 0.75}}, tbl.Rows)
}

func TestFromViewSplitsComplex(t *testing.T) {
	src := fixedSource{
		{Name: "freq", Kind: psf.SamplesReal, Real: []float64{1, 10}},
		{Name: "out", Kind: psf.SamplesComplex, Complex: []complex128{complex(1, -1), complex(0.5, 0.25)}},
	}
	tbl, err := FromView(src)
	require.NoError(t, err)
	assert.Equal(t, []string{"freq", "out.re", "out.im"}, tbl.Columns)
	assert.Equal(t, [][]float64{{1, 1, -1}, {10, 0.5, 0.25}}, tbl.Rows)

	ragged := fixedSource{
		{Name: "a", Kind: psf.SamplesReal, Real: []float64{1, 2}},
		{Name: "b", Kind: psf.SamplesReal, Real: []float64{1}},
	}
	_, err = FromView(ragged)
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	tbl, err := FromView(transient(t))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tbl))
	assert.Equal(t, "time,iin,vout\n0,-0.001,0.5\n1e-09,0.002,0.75\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	tbl := &Table{Columns: []string{"x", "y"}, Rows: [][]float64{{1, math.NaN()}, {2, math.Inf(1)}, {3, 4}}}
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, tbl))

	var got struct {
		Columns []string     `json:"columns"`
		Rows    [][]*float64 `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, []string{"x", "y"}, got.Columns)
	require.Len(t, got.Rows, 3)
	assert.Nil(t, got.Rows[0][1])
	assert.Nil(t, got.Rows[1][1])
	require.NotNil(t, got.Rows[2][1])
	assert.Equal(t, 4.0, *got.Rows[2][1])
}

func TestMsgpackKeepsNonFinite(t *testing.T) {
	tbl := &Table{Columns: []string{"x"}, Rows: [][]float64{{math.NaN()}, {-0.5}}}
	var buf bytes.Buffer
	require.NoError(t, WriteMsgpack(&buf, tbl))
	got, err := ReadMsgpack(&buf)
	require.NoError(t, err)
	assert.Equal(t, tbl.Columns, got.Columns)
	assert.True(t, math.IsNaN(got.Rows[0][0]))
	assert.Equal(t, -0.5, got.Rows[1][0])
}

func TestFormats(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"csv", FormatCSV, true},
		{" JSON ", FormatJSON, true},
		{"msgpack", FormatMsgpack, true},
		{"mpk", FormatMsgpack, true},
		{"xlsx", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, FormatJSON, FormatForPath("out/run.JSON", FormatCSV))
	assert.Equal(t, FormatCSV, FormatForPath("out/run.dat", FormatCSV))
}

func TestWriteFile(t *testing.T) {
	tbl, err := FromView(transient(t))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "tran.csv")
	require.NoError(t, WriteFile(path, FormatCSV, tbl))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "time,iin,vout\n"))

	assert.Error(t, Write(&bytes.Buffer{}, Format("xml"), tbl))
}
