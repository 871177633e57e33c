// Package export writes analysis views as tables.
package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"example.com/psfgate/internal/analysis"
)

type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatMsgpack:
		return f, nil
	case "mpk", "msgp":
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want csv, json or msgpack)", s)
	}
}

// FormatForPath picks a format from the extension of path, falling back to
// def when the extension is not recognised.
func FormatForPath(path string, def Format) Format {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if f, err := ParseFormat(ext); err == nil {
		return f
	}
	return def
}

// Table is a row-major grid of samples. The first column is the sweep
// variable when the view has one. Complex series are split into name.re and
// name.im columns.
type Table struct {
	Columns []string    `json:"columns" msgpack:"columns"`
	Rows    [][]float64 `json:"rows" msgpack:"rows"`
}

// Source is satisfied by every analysis view.
type Source interface {
	Columns() []analysis.Column
}

// FromView flattens a view into a table. All columns must have the same
// length.
func FromView(v Source) (*Table, error) {
	cols := v.Columns()
	t := &Table{}
	var series [][]float64
	rows := -1
	for _, c := range cols {
		if rows >= 0 && c.Len() != rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, c.Len(), rows)
		}
		rows = c.Len()
		if !c.IsComplex() {
			t.Columns = append(t.Columns, c.Name)
			series = append(series, c.Real)
			continue
		}
		re := make([]float64, len(c.Complex))
		im := make([]float64, len(c.Complex))
		for i, z := range c.Complex {
			re[i], im[i] = real(z), imag(z)
		}
		t.Columns = append(t.Columns, c.Name+".re", c.Name+".im")
		series = append(series, re, im)
	}
	if rows < 0 {
		rows = 0
	}
	t.Rows = make([][]float64, rows)
	for i := range t.Rows {
		row := make([]float64, len(series))
		for j, s := range series {
			row[j] = s[i]
		}
		t.Rows[i] = row
	}
	return t, nil
}
