package psf

import (
	"fmt"
	"sort"
)

// SectionKind identifies one of the five payload sections.
type SectionKind uint32

const (
	SectionHeader SectionKind = 0
	SectionType   SectionKind = 1
	SectionSweep  SectionKind = 2
	SectionTrace  SectionKind = 3
	SectionValue  SectionKind = 4

	// sectionDirectory attributes errors raised while reading the trailing
	// directory itself.
	sectionDirectory SectionKind = 0xFFFFFFFF
)

const (
	footerSize   = 12
	tocEntrySize = 8
)

func (k SectionKind) String() string {
	switch k {
	case SectionHeader:
		return "header"
	case SectionType:
		return "type"
	case SectionSweep:
		return "sweep"
	case SectionTrace:
		return "trace"
	case SectionValue:
		return "value"
	case sectionDirectory:
		return "directory"
	default:
		return fmt.Sprintf("section(%d)", uint32(k))
	}
}

func sectionKindFromCode(code uint32) (SectionKind, bool) {
	if code <= uint32(SectionValue) {
		return SectionKind(code), true
	}
	return 0, false
}

// ByteRange is a half-open range [Start, End) of the file buffer.
type ByteRange struct {
	Start int
	End   int
}

func (r ByteRange) Len() int {
	return r.End - r.Start
}

// TOC maps each present section to its byte range.
type TOC map[SectionKind]ByteRange

// Kinds lists the sections present, in ascending start order.
func (t TOC) Kinds() []SectionKind {
	kinds := make([]SectionKind, 0, len(t))
	for k := range t {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		return t[kinds[i]].Start < t[kinds[j]].Start
	})
	return kinds
}

// ScanTOC reads the trailing directory. The last word of the buffer is the
// payload size ds; the n = (len - ds - 12) / 8 directory entries end 12 bytes
// before the end of the buffer. Each section runs up to the start of the
// next listed one; the last runs to the end of the buffer.
func ScanTOC(buf []byte) (TOC, error) {
	size := len(buf)
	if size < footerSize {
		return nil, newError(ErrOutOfBounds, sectionDirectory, 0, "file of %d bytes has no footer", size)
	}
	c := NewCursor(buf)
	ds, err := c.PeekU32(size - 4)
	if err != nil {
		return nil, err
	}
	span := size - int(ds) - footerSize
	if int(ds) > size || span < 0 {
		return nil, newError(ErrOutOfBounds, sectionDirectory, size-4,
			"payload size %d does not fit a %d-byte file", ds, size)
	}
	n := span / tocEntrySize
	tocOffset := size - footerSize - tocEntrySize*n

	toc := make(TOC, n)
	var prev SectionKind
	havePrev := false
	for i := 0; i < n; i++ {
		at := tocOffset + tocEntrySize*i
		code, err := c.PeekU32(at)
		if err != nil {
			return nil, err
		}
		kind, ok := sectionKindFromCode(code)
		if !ok {
			return nil, newError(ErrUnknownSectionKind, sectionDirectory, at, "code %d", code)
		}
		start, err := c.PeekU32(at + 4)
		if err != nil {
			return nil, err
		}
		if int(start) > size {
			return nil, newError(ErrOutOfBounds, sectionDirectory, at+4,
				"%s section starts at %d beyond file end %d", kind, start, size)
		}
		if havePrev {
			p := toc[prev]
			if int(start) < p.Start {
				return nil, newError(ErrOutOfBounds, sectionDirectory, at+4,
					"%s section starts at %d before %s section at %d", kind, start, prev, p.Start)
			}
			p.End = int(start)
			toc[prev] = p
		}
		toc[kind] = ByteRange{Start: int(start), End: size}
		prev = kind
		havePrev = true
	}
	return toc, nil
}

func (t TOC) section(kind SectionKind) (ByteRange, error) {
	r, ok := t[kind]
	if !ok {
		return ByteRange{}, newError(ErrUnsupportedLayout, kind, 0, "section missing from directory")
	}
	return r, nil
}
