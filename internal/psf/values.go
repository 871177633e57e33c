package psf

import (
	"github.com/rs/zerolog"
)

const (
	bytesPerDouble  = 8
	windowCountMask = 0xFFFF
)

// windowLayout holds the header parameters of a windowed value section.
type windowLayout struct {
	windowSize  int
	numTraces   int
	sweepPoints int64
}

func readWindowLayout(header Header) (windowLayout, error) {
	var layout windowLayout
	ws, ok := header.Int(HeaderWindowSize)
	if !ok {
		return layout, newError(ErrUnsupportedLayout, SectionHeader, 0, "%q missing; only windowed files are supported", HeaderWindowSize)
	}
	traces, ok := header.Int(HeaderTraces)
	if !ok {
		return layout, newError(ErrUnsupportedLayout, SectionHeader, 0, "%q missing", HeaderTraces)
	}
	points, ok := header.Int(HeaderSweepPoints)
	if !ok {
		return layout, newError(ErrUnsupportedLayout, SectionHeader, 0, "%q missing", HeaderSweepPoints)
	}
	if ws < bytesPerDouble || traces < 0 || points < 0 {
		return layout, newError(ErrUnsupportedLayout, SectionHeader, 0,
			"window size %d, traces %d, sweep points %d", ws, traces, points)
	}
	layout.windowSize = int(ws)
	layout.numTraces = int(traces)
	layout.sweepPoints = points
	return layout, nil
}

// slab is one signal's fixed-size region within every window.
type slab struct {
	signal SignalRef
	offset int
	kind   SampleKind
}

// planSlabs assigns each leaf signal, in flattened trace order, the next
// multiple of the window size and resolves how its samples are encoded.
func planSlabs(leaves []SignalRef, sweep SignalRef, types Types, windowSize int) ([]slab, error) {
	slabs := make([]slab, len(leaves))
	seen := map[TraceID]bool{sweep.ID: true}
	for k, s := range leaves {
		if s.Name == sweep.Name {
			return nil, newError(ErrSweepSignalNameCollision, SectionTrace, 0, "signal %q", s.Name)
		}
		if seen[s.ID] {
			return nil, newError(ErrUnsupportedLayout, SectionTrace, 0, "trace id %d used by more than one signal", s.ID)
		}
		seen[s.ID] = true
		td, ok := types[s.TypeID]
		if !ok {
			return nil, newError(ErrUnknownDataType, SectionTrace, 0, "signal %q references undefined type %d", s.Name, s.TypeID)
		}
		var kind SampleKind
		switch td.DataType {
		case DataTypeReal:
			kind = SamplesReal
		case DataTypeComplex:
			kind = SamplesComplex
		default:
			return nil, newError(ErrUnsupportedDataType, SectionValue, 0, "signal %q has type %s", s.Name, td.DataType)
		}
		slabs[k] = slab{signal: s, offset: k * windowSize, kind: kind}
	}
	return slabs, nil
}

type valueStats struct {
	windows int
	samples int64
}

// DecodeValues reconstructs per-signal sample vectors from a windowed value
// section. The returned map is keyed by trace id and includes the sweep
// variable.
func DecodeValues(buf []byte, toc TOC, header Header, types Types, sweeps []SignalRef, traces []Trace) (map[TraceID]SampleVector, error) {
	values, _, err := decodeValues(buf, toc, header, types, sweeps, traces, zerolog.Nop())
	return values, err
}

func decodeValues(buf []byte, toc TOC, header Header, types Types, sweeps []SignalRef, traces []Trace, log zerolog.Logger) (map[TraceID]SampleVector, valueStats, error) {
	var stats valueStats
	layout, err := readWindowLayout(header)
	if err != nil {
		return nil, stats, err
	}
	switch {
	case len(sweeps) == 0:
		return nil, stats, newError(ErrUnsupportedLayout, SectionSweep, 0, "windowed values need a sweep variable")
	case len(sweeps) > 1:
		return nil, stats, newError(ErrUnsupportedLayout, SectionSweep, 0, "%d sweep variables", len(sweeps))
	}
	sweep := sweeps[0]
	slabs, err := planSlabs(flattenTraces(traces), sweep, types, layout.windowSize)
	if err != nil {
		return nil, stats, err
	}

	c, err := openSection(buf, toc, SectionValue)
	if err != nil {
		return nil, stats, err
	}
	if err := c.expectTag(tagValueBlock); err != nil {
		return nil, stats, err
	}
	// Zero filler: a length word and a reserved word, then length bytes.
	fill, err := c.ReadU32()
	if err != nil {
		return nil, stats, err
	}
	if err := c.Skip(4 + int(fill)); err != nil {
		return nil, stats, err
	}

	// The declared point count is untrusted; the remaining bytes are shared
	// by the sweep column and every slab, so no column can hold more.
	hint := layout.sweepPoints
	if fit := int64(c.Remaining() / (bytesPerDouble * (len(slabs) + 1))); hint > fit {
		hint = fit
	}
	vectors := make(map[TraceID]*SampleVector, len(slabs)+1)
	vector := func(id TraceID, kind SampleKind) *SampleVector {
		v, ok := vectors[id]
		if !ok {
			v = &SampleVector{Kind: kind}
			if kind == SamplesComplex {
				v.Complex = make([]complex128, 0, hint)
			} else {
				v.Real = make([]float64, 0, hint)
			}
			vectors[id] = v
		}
		return v
	}

	capacity := layout.windowSize / bytesPerDouble
	for stats.samples < layout.sweepPoints {
		initAt := c.Offset()
		init, err := c.ReadU32()
		if err != nil {
			return nil, stats, err
		}
		count := int(init & windowCountMask)
		if count == 0 {
			return nil, stats, newError(ErrUnsupportedLayout, SectionValue, initAt,
				"empty window after %d of %d sweep points", stats.samples, layout.sweepPoints)
		}
		if count > capacity {
			return nil, stats, newError(ErrUnsupportedLayout, SectionValue, initAt,
				"window holds %d samples, capacity is %d", count, capacity)
		}

		sv := vector(sweep.ID, SamplesReal)
		for i := 0; i < count; i++ {
			v, err := c.ReadF64()
			if err != nil {
				return nil, stats, err
			}
			sv.Real = append(sv.Real, v)
		}

		base := c.Offset()
		// Samples sit at the end of each slab; the leading bytes are unused
		// when the window is not full.
		lead := layout.windowSize - count*bytesPerDouble
		for _, sl := range slabs {
			sc := *c
			if err := sc.Seek(base + sl.offset + lead); err != nil {
				return nil, stats, err
			}
			dst := vector(sl.signal.ID, sl.kind)
			if err := readSamples(&sc, dst, count); err != nil {
				return nil, stats, err
			}
		}

		stats.windows++
		stats.samples += int64(count)
		log.Debug().
			Int("window", stats.windows).
			Int("offset", initAt).
			Int("samples", count).
			Msg("decoded value window")
		if stats.samples < layout.sweepPoints {
			if err := c.Seek(base + layout.numTraces*layout.windowSize); err != nil {
				return nil, stats, err
			}
		}
	}
	if stats.samples != layout.sweepPoints {
		return nil, stats, newError(ErrInconsistentSampleCount, SectionValue, c.Offset(),
			"windows hold %d samples, header declares %d", stats.samples, layout.sweepPoints)
	}

	out := make(map[TraceID]SampleVector, len(vectors))
	for id, v := range vectors {
		out[id] = *v
	}
	return out, stats, nil
}

func readSamples(c *Cursor, dst *SampleVector, count int) error {
	for i := 0; i < count; i++ {
		re, err := c.ReadF64()
		if err != nil {
			return err
		}
		if dst.Kind == SamplesReal {
			dst.Real = append(dst.Real, re)
			continue
		}
		im, err := c.ReadF64()
		if err != nil {
			return err
		}
		dst.Complex = append(dst.Complex, complex(re, im))
	}
	return nil
}
