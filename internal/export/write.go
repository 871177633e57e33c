package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
)

// Write encodes t in the given format.
func Write(w io.Writer, format Format, t *Table) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatJSON:
		return WriteJSON(w, t)
	case FormatMsgpack:
		return WriteMsgpack(w, t)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// WriteFile writes t to path, replacing any existing file.
func WriteFile(path string, format Format, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := Write(bw, format, t); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV writes a header row followed by one record per row. Values use
// the shortest representation that round-trips.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			record[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(record[:len(row)]); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes {"columns": [...], "rows": [[...], ...]}. NaN and
// infinities have no JSON form and are written as null.
func WriteJSON(w io.Writer, t *Table) error {
	out := struct {
		Columns []string     `json:"columns"`
		Rows    [][]*float64 `json:"rows"`
	}{Columns: t.Columns, Rows: make([][]*float64, len(t.Rows))}
	for i, row := range t.Rows {
		r := make([]*float64, len(row))
		for j := range row {
			if v := row[j]; !math.IsNaN(v) && !math.IsInf(v, 0) {
				r[j] = &row[j]
			}
		}
		out.Rows[i] = r
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func WriteMsgpack(w io.Writer, t *Table) error {
	return msgpack.NewEncoder(w).Encode(t)
}

// ReadMsgpack decodes a table written by WriteMsgpack.
func ReadMsgpack(r io.Reader) (*Table, error) {
	var t Table
	if err := msgpack.NewDecoder(r).Decode(&t); err != nil {
		return nil, err
	}
	return &t, nil
}
