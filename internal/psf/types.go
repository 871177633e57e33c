package psf

import (
	"fmt"
	"math"
)

// Record and prolog tags.
const (
	tagSignalRef   = 16
	tagGroup       = 17
	tagValueBlock  = 20
	tagContainer   = 22
	tagStringValue = 33
	tagIntValue    = 34
	tagRealValue   = 35
)

// Header keys that steer value decoding.
const (
	HeaderWindowSize  = "PSF window size"
	HeaderTraces      = "PSF traces"
	HeaderSweepPoints = "PSF sweep points"
)

type TypeID uint32

type TraceID uint32

// GroupID shares the identifier namespace of TraceID.
type GroupID uint32

// TraceID converts a group identifier into the trace namespace.
func (g GroupID) TraceID() TraceID {
	return TraceID(g)
}

// DataType is the element type named by a TypeDef.
type DataType uint32

const (
	DataTypeInt8    DataType = 1
	DataTypeString  DataType = 2
	DataTypeInt32   DataType = 5
	DataTypeReal    DataType = 11
	DataTypeComplex DataType = 12
	DataTypeStruct  DataType = 16
)

func dataTypeFromCode(code uint32) (DataType, bool) {
	switch dt := DataType(code); dt {
	case DataTypeInt8, DataTypeString, DataTypeInt32, DataTypeReal, DataTypeComplex, DataTypeStruct:
		return dt, true
	default:
		return 0, false
	}
}

func (d DataType) String() string {
	switch d {
	case DataTypeInt8:
		return "int8"
	case DataTypeString:
		return "string"
	case DataTypeInt32:
		return "int32"
	case DataTypeReal:
		return "real"
	case DataTypeComplex:
		return "complex"
	case DataTypeStruct:
		return "struct"
	default:
		return fmt.Sprintf("datatype(%d)", uint32(d))
	}
}

type ValueKind uint8

const (
	ValueInt ValueKind = iota + 1
	ValueReal
	ValueString
	ValueNaN
)

// Value is a scalar header or property value.
type Value struct {
	Kind ValueKind
	Int  int64
	Real float64
	Str  string
}

func IntValue(v int64) Value     { return Value{Kind: ValueInt, Int: v} }
func RealValue(v float64) Value  { return Value{Kind: ValueReal, Real: v} }
func StringValue(v string) Value { return Value{Kind: ValueString, Str: v} }
func NaNValue() Value            { return Value{Kind: ValueNaN, Real: math.NaN()} }

func (v Value) String() string {
	switch v.Kind {
	case ValueInt:
		return fmt.Sprintf("%d", v.Int)
	case ValueReal:
		return fmt.Sprintf("%g", v.Real)
	case ValueString:
		return v.Str
	case ValueNaN:
		return "NaN"
	default:
		return ""
	}
}

type NamedValue struct {
	Name  string
	Value Value
}

// Properties keeps file order; duplicate names are preserved.
type Properties []NamedValue

// Lookup returns the first property with the given name.
func (p Properties) Lookup(name string) (Value, bool) {
	for _, nv := range p {
		if nv.Name == name {
			return nv.Value, true
		}
	}
	return Value{}, false
}

type Header map[string]Value

func (h Header) Int(key string) (int64, bool) {
	v, ok := h[key]
	if !ok || v.Kind != ValueInt {
		return 0, false
	}
	return v.Int, true
}

func (h Header) Real(key string) (float64, bool) {
	v, ok := h[key]
	if !ok {
		return 0, false
	}
	switch v.Kind {
	case ValueReal, ValueNaN:
		return v.Real, true
	case ValueInt:
		return float64(v.Int), true
	}
	return 0, false
}

func (h Header) Str(key string) (string, bool) {
	v, ok := h[key]
	if !ok || v.Kind != ValueString {
		return "", false
	}
	return v.Str, true
}

// Windowed reports whether the file stores values in fixed-size windows.
func (h Header) Windowed() bool {
	_, ok := h[HeaderWindowSize]
	return ok
}

type TypeDef struct {
	ID         TypeID
	Name       string
	DataType   DataType
	Properties Properties
}

type Types map[TypeID]TypeDef

type SignalRef struct {
	ID         TraceID
	Name       string
	TypeID     TypeID
	Properties Properties
}

// TraceGroup owns its member signals; len(Signals) == DeclaredCount.
type TraceGroup struct {
	ID            GroupID
	Name          string
	DeclaredCount uint32
	Signals       []SignalRef
}

type TraceKind uint8

const (
	TraceKindSignal TraceKind = iota + 1
	TraceKindGroup
)

// Trace is either a standalone signal or a group of signals. Exactly one of
// Signal and Group is meaningful, selected by Kind.
type Trace struct {
	Kind   TraceKind
	Signal SignalRef
	Group  TraceGroup
}

func SignalTrace(s SignalRef) Trace {
	return Trace{Kind: TraceKindSignal, Signal: s}
}

func GroupTrace(g TraceGroup) Trace {
	return Trace{Kind: TraceKindGroup, Group: g}
}

// Leaves returns the signals carried by the trace in file order.
func (t Trace) Leaves() []SignalRef {
	if t.Kind == TraceKindGroup {
		return t.Group.Signals
	}
	return []SignalRef{t.Signal}
}

type SampleKind uint8

const (
	SamplesReal SampleKind = iota + 1
	SamplesComplex
)

func (k SampleKind) String() string {
	switch k {
	case SamplesReal:
		return "real"
	case SamplesComplex:
		return "complex"
	default:
		return "unknown"
	}
}

// SampleVector holds one signal's samples. Only the slice matching Kind is
// populated.
type SampleVector struct {
	Kind    SampleKind
	Real    []float64
	Complex []complex128
}

func (s SampleVector) Len() int {
	if s.Kind == SamplesComplex {
		return len(s.Complex)
	}
	return len(s.Real)
}

// AST is the fully decoded content of one PSF file. It is produced once by
// Decode and must not be modified afterwards.
type AST struct {
	Header Header
	Types  Types
	Sweeps []SignalRef
	Traces []Trace
	Values map[TraceID]SampleVector
}

// Leaves flattens the trace list: group members in group order, standalone
// signals in their own position.
func (a *AST) Leaves() []SignalRef {
	return flattenTraces(a.Traces)
}

// SweepVar returns the independent variable, if the file has one.
func (a *AST) SweepVar() (SignalRef, bool) {
	if len(a.Sweeps) == 0 {
		return SignalRef{}, false
	}
	return a.Sweeps[0], true
}

// Lookup resolves id against standalone signals, group members and groups.
// A group resolves to its own name and reports isGroup.
func (a *AST) Lookup(id TraceID) (name string, isGroup bool, ok bool) {
	for _, s := range a.Sweeps {
		if s.ID == id {
			return s.Name, false, true
		}
	}
	for _, tr := range a.Traces {
		if tr.Kind == TraceKindGroup && tr.Group.ID.TraceID() == id {
			return tr.Group.Name, true, true
		}
		for _, s := range tr.Leaves() {
			if s.ID == id {
				return s.Name, false, true
			}
		}
	}
	return "", false, false
}

// DataTypeOf resolves the element type of a signal.
func (a *AST) DataTypeOf(s SignalRef) (DataType, bool) {
	td, ok := a.Types[s.TypeID]
	if !ok {
		return 0, false
	}
	return td.DataType, true
}

func flattenTraces(traces []Trace) []SignalRef {
	var out []SignalRef
	for _, tr := range traces {
		out = append(out, tr.Leaves()...)
	}
	return out
}
