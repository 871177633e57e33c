package psf

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"example.com/psfgate/internal/common"
)

// Decoder turns a PSF file buffer into an AST. A Decoder holds no per-file
// state and may be shared by concurrent callers.
type Decoder struct {
	log     zerolog.Logger
	metrics *common.Metrics
}

// NewDecoder returns a decoder that logs nothing and records no metrics.
func NewDecoder() *Decoder {
	return &Decoder{log: zerolog.Nop()}
}

// SetLogger routes decode progress events to l at debug level.
func (d *Decoder) SetLogger(l zerolog.Logger) {
	d.log = l
}

// SetMetrics attaches a metrics recorder.
func (d *Decoder) SetMetrics(m *common.Metrics) {
	d.metrics = m
}

// Decode runs the stages in their fixed order: directory, header, types,
// sweeps, traces, values. Either the whole file decodes or an error is
// returned; no partial AST escapes.
func Decode(buf []byte) (*AST, error) {
	return NewDecoder().Decode(buf)
}

func (d *Decoder) Decode(buf []byte) (*AST, error) {
	ast, stats, err := d.decode(buf)
	d.record(int64(len(buf)), stats, err)
	return ast, err
}

// record accounts one file of size bytes. Failed files count their bytes
// too, so progress against a stat-based total reaches completion.
func (d *Decoder) record(size int64, stats valueStats, err error) {
	if d.metrics == nil {
		return
	}
	if err != nil {
		d.metrics.AddBytes(size)
		d.metrics.IncFailure()
		return
	}
	d.metrics.AddFile(size)
	d.metrics.AddWindows(stats.windows, stats.samples)
}

func (d *Decoder) decode(buf []byte) (*AST, valueStats, error) {
	var stats valueStats
	toc, err := ScanTOC(buf)
	if err != nil {
		return nil, stats, err
	}
	for _, kind := range toc.Kinds() {
		r := toc[kind]
		d.log.Debug().Str("section", kind.String()).Int("start", r.Start).Int("end", r.End).Msg("section")
	}
	header, err := DecodeHeader(buf, toc)
	if err != nil {
		return nil, stats, err
	}
	types, err := DecodeTypes(buf, toc)
	if err != nil {
		return nil, stats, err
	}
	sweeps, err := DecodeSweeps(buf, toc)
	if err != nil {
		return nil, stats, err
	}
	traces, err := DecodeTraces(buf, toc)
	if err != nil {
		return nil, stats, err
	}
	values, stats, err := decodeValues(buf, toc, header, types, sweeps, traces, d.log)
	if err != nil {
		return nil, stats, err
	}
	d.log.Debug().
		Int("types", len(types)).
		Int("traces", len(traces)).
		Int("windows", stats.windows).
		Int64("samples", stats.samples).
		Msg("decoded file")
	return &AST{
		Header: header,
		Types:  types,
		Sweeps: sweeps,
		Traces: traces,
		Values: values,
	}, stats, nil
}

// DecodeFile loads path (decompressing gzip or zstd content) and decodes it.
func (d *Decoder) DecodeFile(path string) (*AST, error) {
	in, err := common.ReadInput(path)
	if err != nil {
		return nil, err
	}
	ast, err := d.Decode(in.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ast, nil
}

// FileResult is the outcome of decoding one file in a batch.
type FileResult struct {
	Path  string
	Input common.Input
	AST   *AST
	Err   error
}

// DecodeFiles decodes paths with at most limit files in flight. A failing
// file is reported in its result and does not stop the others. Results keep
// the order of paths. Cancelling ctx stops files that have not started yet.
func (d *Decoder) DecodeFiles(ctx context.Context, paths []string, limit int) ([]FileResult, error) {
	results := make([]FileResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := FileResult{Path: path}
			in, err := common.ReadInput(path)
			if err != nil {
				res.Err = err
				d.record(storedSize(path), valueStats{}, err)
			} else {
				// progress totals come from the files on disk, so count
				// stored bytes rather than decompressed ones
				var stats valueStats
				res.AST, stats, res.Err = d.decode(in.Data)
				d.record(in.StoredSize, stats, res.Err)
				// the decoded AST owns copies of everything it needs
				in.Data = nil
				res.Input = in
			}
			if res.Err != nil {
				d.log.Warn().Err(res.Err).Str("file", path).Msg("decode failed")
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func storedSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return 0
	}
	return fi.Size()
}
