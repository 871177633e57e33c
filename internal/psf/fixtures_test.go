package psf_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"example.com/psfgate/internal/psftest"
)

const (
	typeVoltage uint32 = 1
	typeCurrent uint32 = 2
	typePhasor  uint32 = 3
	typeCount   uint32 = 4
)

var fixtureTypes = []psftest.Type{
	{ID: typeVoltage, Name: "V", Code: psftest.CodeReal, Props: []psftest.Prop{psftest.Str("units", "V")}},
	{ID: typeCurrent, Name: "I", Code: psftest.CodeReal, Props: []psftest.Prop{psftest.Str("units", "A")}},
	{ID: typePhasor, Name: "VC", Code: psftest.CodeComplex},
	{ID: typeCount, Name: "N", Code: psftest.CodeInt32},
}

// transientFile is a four-signal transient run: a group of two node voltages
// followed by two standalone signals.
func transientFile(points, windowSize int) *psftest.File {
	f := &psftest.File{
		Header: []psftest.Prop{
			psftest.Str("PSFversion", "1.00"),
			psftest.Str("simulator", "spectre"),
			psftest.Real("tolerance", 1e-9),
		},
		Types:  fixtureTypes,
		Sweeps: []psftest.Signal{{ID: 10, Name: "time", Type: typeVoltage, Props: []psftest.Prop{psftest.Str("units", "s")}}},
		Traces: []psftest.Trace{
			psftest.GroupTrace(psftest.Group{ID: 20, Name: "nodes", Signals: []psftest.Signal{
				{ID: 21, Name: "out", Type: typeVoltage},
				{ID: 22, Name: "in", Type: typeVoltage},
			}}),
			psftest.SignalTrace(psftest.Signal{ID: 23, Name: "V0:p", Type: typeCurrent, Props: []psftest.Prop{psftest.Int("key", 7)}}),
			psftest.SignalTrace(psftest.Signal{ID: 24, Name: "n1", Type: typeVoltage}),
		},
		WindowSize: windowSize,
		Samples:    map[uint32][]float64{},
	}
	for i := 0; i < points; i++ {
		f.Sweep = append(f.Sweep, float64(i)*1e-9)
	}
	for _, id := range []uint32{21, 22, 23, 24} {
		vals := make([]float64, points)
		for i := range vals {
			vals[i] = sampleValue(id, i)
		}
		f.Samples[id] = vals
	}
	return f
}

func sampleValue(id uint32, i int) float64 {
	return float64(id) + math.Sin(float64(i)/7)
}

// acFile holds two complex signals in a single window.
func acFile(points int) *psftest.File {
	f := &psftest.File{
		Types:      fixtureTypes,
		Sweeps:     []psftest.Signal{{ID: 1, Name: "freq", Type: typeVoltage}},
		Traces:     []psftest.Trace{psftest.SignalTrace(psftest.Signal{ID: 2, Name: "out", Type: typePhasor}), psftest.SignalTrace(psftest.Signal{ID: 3, Name: "in", Type: typePhasor})},
		WindowSize: 16 * points,
		Complex:    map[uint32][]complex128{},
	}
	for i := 0; i < points; i++ {
		f.Sweep = append(f.Sweep, math.Pow(10, float64(i)))
		f.Complex[2] = append(f.Complex[2], complex(float64(i), -float64(i)))
		f.Complex[3] = append(f.Complex[3], complex(1, float64(i)/2))
	}
	return f
}

func build(t *testing.T, f *psftest.File) psftest.Image {
	t.Helper()
	img, err := f.Build()
	if err != nil {
		t.Fatalf("build fixture: %v", err)
	}
	return img
}

func putU32(buf []byte, at int, v uint32) {
	binary.BigEndian.PutUint32(buf[at:], v)
}

// recordOffset finds the tag word of the signal record carrying name.
func recordOffset(t *testing.T, data []byte, name string) int {
	t.Helper()
	needle := binary.BigEndian.AppendUint32(nil, uint32(len(name)))
	needle = append(needle, name...)
	at := bytes.Index(data, needle)
	if at < 8 {
		t.Fatalf("record %q not found", name)
	}
	return at - 8
}

// truncate cuts the payload at cut and rewrites the directory so that it
// still lists every section starting before the cut.
func truncate(data []byte, cut int) []byte {
	ds := int(binary.BigEndian.Uint32(data[len(data)-4:]))
	out := append([]byte{}, data[:cut]...)
	for at := ds; at+8 <= len(data)-12; at += 8 {
		if int(binary.BigEndian.Uint32(data[at+4:])) < cut {
			out = append(out, data[at:at+8]...)
		}
	}
	out = binary.BigEndian.AppendUint32(out, 0)
	out = binary.BigEndian.AppendUint32(out, 0)
	return binary.BigEndian.AppendUint32(out, uint32(cut))
}
