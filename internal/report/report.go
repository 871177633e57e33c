// Package report summarises decoded PSF files.
package report

import (
	"encoding/json"
	"math"
	"math/cmplx"
	"os"
	"sort"

	"example.com/psfgate/internal/common"
	"example.com/psfgate/internal/psf"
)

type SignalSummary struct {
	Name  string `json:"name"`
	Group string `json:"group,omitempty"`
	Type  string `json:"type"`
	Units string `json:"units,omitempty"`
	Count int    `json:"count"`

	// Min and Max are magnitudes for complex signals. Both are nil when the
	// signal has no finite samples.
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

type Summary struct {
	File        string            `json:"file"`
	StoredSize  int64             `json:"storedSize"`
	DecodedSize int64             `json:"decodedSize"`
	Sha256      string            `json:"sha256"`
	Compression string            `json:"compression"`
	Header      map[string]string `json:"header"`
	Sweep       string            `json:"sweep,omitempty"`
	SweepPoints int               `json:"sweepPoints"`
	WindowSize  int64             `json:"windowSize,omitempty"`
	Signals     []SignalSummary   `json:"signals"`
}

// BuildSummary describes ast as decoded from in. Signals keep file order.
func BuildSummary(in common.Input, ast *psf.AST) Summary {
	sum := Summary{
		File:        in.Path,
		StoredSize:  in.StoredSize,
		DecodedSize: in.DecodedSize,
		Sha256:      in.Sha256,
		Compression: in.Compression,
		Header:      make(map[string]string, len(ast.Header)),
	}
	for k, v := range ast.Header {
		sum.Header[k] = v.String()
	}
	if ws, ok := ast.Header.Int(psf.HeaderWindowSize); ok {
		sum.WindowSize = ws
	}
	if sw, ok := ast.SweepVar(); ok {
		sum.Sweep = sw.Name
		sum.SweepPoints = ast.Values[sw.ID].Len()
	}
	for _, tr := range ast.Traces {
		group := ""
		if tr.Kind == psf.TraceKindGroup {
			group = tr.Group.Name
		}
		for _, s := range tr.Leaves() {
			sum.Signals = append(sum.Signals, summarize(ast, s, group))
		}
	}
	return sum
}

func summarize(ast *psf.AST, s psf.SignalRef, group string) SignalSummary {
	out := SignalSummary{Name: s.Name, Group: group, Type: "unknown"}
	if td, ok := ast.Types[s.TypeID]; ok {
		out.Type = td.DataType.String()
		if u, ok := td.Properties.Lookup("units"); ok {
			out.Units = u.String()
		}
	}
	if u, ok := s.Properties.Lookup("units"); ok {
		out.Units = u.String()
	}
	vec := ast.Values[s.ID]
	out.Count = vec.Len()
	lo, hi := math.Inf(1), math.Inf(-1)
	observe := func(v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if vec.Kind == psf.SamplesComplex {
		for _, z := range vec.Complex {
			observe(cmplx.Abs(z))
		}
	} else {
		for _, v := range vec.Real {
			observe(v)
		}
	}
	if lo <= hi {
		out.Min, out.Max = &lo, &hi
	}
	return out
}

// HeaderKeys returns the header keys in sorted order.
func (s Summary) HeaderKeys() []string {
	keys := make([]string, 0, len(s.Header))
	for k := range s.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func SaveSummaryJSON(sum Summary, out string) error {
	b, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func LoadSummaryJSON(path string) (Summary, error) {
	var sum Summary
	b, err := os.ReadFile(path)
	if err != nil {
		return sum, err
	}
	err = json.Unmarshal(b, &sum)
	return sum, err
}
