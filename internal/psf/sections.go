package psf

// Every section opens with a preamble of (section id, end offset). Type and
// Trace sections follow it with a container prolog (22, end offset).

func openSection(buf []byte, toc TOC, kind SectionKind) (*Cursor, error) {
	r, err := toc.section(kind)
	if err != nil {
		return nil, err
	}
	c, err := newSectionCursor(buf, kind, r.Start, r.End)
	if err != nil {
		return nil, err
	}
	if _, err := c.ReadU32(); err != nil {
		return nil, err
	}
	end, err := c.ReadU32()
	if err != nil {
		return nil, err
	}
	if err := c.limit(int(end)); err != nil {
		return nil, err
	}
	return c, nil
}

func openContainer(c *Cursor) error {
	if err := c.expectTag(tagContainer); err != nil {
		return err
	}
	end, err := c.ReadU32()
	if err != nil {
		return err
	}
	return c.limit(int(end))
}

// moreRecords reports whether another record can start before the end of
// the section. A trailing word on its own is not a record.
func moreRecords(c *Cursor) bool {
	return c.Remaining() > 4
}

func readNamedValue(c *Cursor) (NamedValue, error) {
	at := c.Offset()
	tag, err := c.ReadU32()
	if err != nil {
		return NamedValue{}, err
	}
	name, err := c.ReadPaddedString()
	if err != nil {
		return NamedValue{}, err
	}
	nv := NamedValue{Name: name}
	switch tag {
	case tagStringValue:
		s, err := c.ReadPaddedString()
		if err != nil {
			return NamedValue{}, err
		}
		nv.Value = StringValue(s)
	case tagIntValue:
		i, err := c.ReadI32()
		if err != nil {
			return NamedValue{}, err
		}
		nv.Value = IntValue(int64(i))
	case tagRealValue:
		f, err := c.ReadF64()
		if err != nil {
			return NamedValue{}, err
		}
		nv.Value = RealValue(f)
	default:
		e := tagError(c.section, at, tagStringValue, tag)
		e.Detail = "named value tag must be 33, 34 or 35"
		return NamedValue{}, e
	}
	return nv, nil
}

func isValueTag(tag uint32) bool {
	return tag == tagStringValue || tag == tagIntValue || tag == tagRealValue
}

// readProperties consumes named values for as long as the next word is a
// value tag.
func readProperties(c *Cursor) (Properties, error) {
	var props Properties
	for moreRecords(c) {
		tag, err := c.PeekU32(c.Offset())
		if err != nil {
			return nil, err
		}
		if !isValueTag(tag) {
			break
		}
		nv, err := readNamedValue(c)
		if err != nil {
			return nil, err
		}
		props = append(props, nv)
	}
	return props, nil
}

// readSignalRef decodes the body of a record whose 16 tag was already read.
func readSignalRef(c *Cursor) (SignalRef, error) {
	id, err := c.ReadU32()
	if err != nil {
		return SignalRef{}, err
	}
	name, err := c.ReadPaddedString()
	if err != nil {
		return SignalRef{}, err
	}
	typeID, err := c.ReadU32()
	if err != nil {
		return SignalRef{}, err
	}
	props, err := readProperties(c)
	if err != nil {
		return SignalRef{}, err
	}
	return SignalRef{ID: TraceID(id), Name: name, TypeID: TypeID(typeID), Properties: props}, nil
}

// DecodeHeader decodes the header section. Later duplicate keys replace
// earlier ones.
func DecodeHeader(buf []byte, toc TOC) (Header, error) {
	c, err := openSection(buf, toc, SectionHeader)
	if err != nil {
		return nil, err
	}
	header := make(Header)
	for moreRecords(c) {
		nv, err := readNamedValue(c)
		if err != nil {
			return nil, err
		}
		header[nv.Name] = nv.Value
	}
	return header, nil
}

// DecodeTypes decodes the type section into a map keyed by type id.
func DecodeTypes(buf []byte, toc TOC) (Types, error) {
	c, err := openSection(buf, toc, SectionType)
	if err != nil {
		return nil, err
	}
	if err := openContainer(c); err != nil {
		return nil, err
	}
	types := make(Types)
	for moreRecords(c) {
		if err := c.expectTag(tagSignalRef); err != nil {
			return nil, err
		}
		id, err := c.ReadU32()
		if err != nil {
			return nil, err
		}
		name, err := c.ReadPaddedString()
		if err != nil {
			return nil, err
		}
		// array flag, unused
		if _, err := c.ReadU32(); err != nil {
			return nil, err
		}
		codeAt := c.Offset()
		code, err := c.ReadU32()
		if err != nil {
			return nil, err
		}
		dt, ok := dataTypeFromCode(code)
		if !ok {
			return nil, newError(ErrUnknownDataType, SectionType, codeAt, "type %q uses code %d", name, code)
		}
		props, err := readProperties(c)
		if err != nil {
			return nil, err
		}
		types[TypeID(id)] = TypeDef{ID: TypeID(id), Name: name, DataType: dt, Properties: props}
	}
	return types, nil
}

// DecodeSweeps decodes the sweep section. A file without a sweep section
// (an operating point) yields an empty list.
func DecodeSweeps(buf []byte, toc TOC) ([]SignalRef, error) {
	if _, ok := toc[SectionSweep]; !ok {
		return nil, nil
	}
	c, err := openSection(buf, toc, SectionSweep)
	if err != nil {
		return nil, err
	}
	var sweeps []SignalRef
	for moreRecords(c) {
		if err := c.expectTag(tagSignalRef); err != nil {
			return nil, err
		}
		s, err := readSignalRef(c)
		if err != nil {
			return nil, err
		}
		sweeps = append(sweeps, s)
	}
	return sweeps, nil
}

// DecodeTraces decodes the trace section in file order. Groups hold exactly
// their declared number of signals and never contain other groups.
func DecodeTraces(buf []byte, toc TOC) ([]Trace, error) {
	if _, ok := toc[SectionTrace]; !ok {
		return nil, nil
	}
	c, err := openSection(buf, toc, SectionTrace)
	if err != nil {
		return nil, err
	}
	if err := openContainer(c); err != nil {
		return nil, err
	}
	var traces []Trace
	for moreRecords(c) {
		at := c.Offset()
		tag, err := c.ReadU32()
		if err != nil {
			return nil, err
		}
		switch tag {
		case tagSignalRef:
			s, err := readSignalRef(c)
			if err != nil {
				return nil, err
			}
			traces = append(traces, SignalTrace(s))
		case tagGroup:
			g, err := readGroup(c)
			if err != nil {
				return nil, err
			}
			traces = append(traces, GroupTrace(g))
		default:
			e := tagError(SectionTrace, at, tagSignalRef, tag)
			e.Detail = "trace entry must be a signal (16) or group (17)"
			return nil, e
		}
	}
	return traces, nil
}

func readGroup(c *Cursor) (TraceGroup, error) {
	id, err := c.ReadU32()
	if err != nil {
		return TraceGroup{}, err
	}
	name, err := c.ReadPaddedString()
	if err != nil {
		return TraceGroup{}, err
	}
	count, err := c.ReadU32()
	if err != nil {
		return TraceGroup{}, err
	}
	// Every member takes at least 16 bytes; cap the allocation accordingly.
	capacity := int(count)
	if fit := c.Remaining() / 16; capacity > fit {
		capacity = fit
	}
	g := TraceGroup{ID: GroupID(id), Name: name, DeclaredCount: count, Signals: make([]SignalRef, 0, capacity)}
	for i := uint32(0); i < count; i++ {
		at := c.Offset()
		tag, err := c.ReadU32()
		if err != nil {
			return TraceGroup{}, err
		}
		if tag == tagGroup {
			e := tagError(SectionTrace, at, tagSignalRef, tag)
			e.Detail = "nested trace groups are not supported"
			return TraceGroup{}, e
		}
		if tag != tagSignalRef {
			return TraceGroup{}, tagError(SectionTrace, at, tagSignalRef, tag)
		}
		s, err := readSignalRef(c)
		if err != nil {
			return TraceGroup{}, err
		}
		g.Signals = append(g.Signals, s)
	}
	return g, nil
}
