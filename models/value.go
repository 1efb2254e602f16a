// Package models defines the core data structures shared by every layer of
// the document database: the document itself, its dynamically-typed field
// values, and the head record the in-memory store retains per identifier.
package models

import "fmt"

// ValueKind tags the concrete type carried by a Value. The numeric values
// match the codec's type-tag byte (see storage/binary's TLV encoder) so a
// Kind can be written directly as the wire tag.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindString
	KindInt32
	KindFloat64
	KindBool
	KindListString
	KindMap
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt32:
		return "int32"
	case KindFloat64:
		return "float64"
	case KindBool:
		return "bool"
	case KindListString:
		return "list<string>"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Value is the tagged sum type every entry of a Document's Data map holds:
// Null | String | Int32 | Float64 | Bool | []string | map[string]Value.
//
// Only one of the typed fields is meaningful at a time, selected by Kind.
// Value is a plain struct rather than an interface so it marshals cleanly
// through both the TLV codec and the msgpack structured-envelope adapter
// without needing custom (Un)MarshalJSON machinery at every call site.
type Value struct {
	Kind ValueKind `msgpack:"kind"`

	Str  string           `msgpack:"str,omitempty"`
	I32  int32            `msgpack:"i32,omitempty"`
	F64  float64          `msgpack:"f64,omitempty"`
	Bool bool             `msgpack:"bool,omitempty"`
	List []string         `msgpack:"list,omitempty"`
	Map  map[string]Value `msgpack:"map,omitempty"`
}

func NullValue() Value                { return Value{Kind: KindNull} }
func StringValue(s string) Value      { return Value{Kind: KindString, Str: s} }
func Int32Value(n int32) Value        { return Value{Kind: KindInt32, I32: n} }
func Float64Value(f float64) Value    { return Value{Kind: KindFloat64, F64: f} }
func BoolValue(b bool) Value          { return Value{Kind: KindBool, Bool: b} }
func ListStringValue(l []string) Value {
	cp := make([]string, len(l))
	copy(cp, l)
	return Value{Kind: KindListString, List: cp}
}
func MapValue(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{Kind: KindMap, Map: cp}
}

// Clone returns a deep copy of v: a List or Map value gets its own backing
// slice/map (recursively, for nested maps) so a caller mutating a cloned
// Value can never reach back into the store's retained state.
func (v Value) Clone() Value {
	switch v.Kind {
	case KindListString:
		cp := make([]string, len(v.List))
		copy(cp, v.List)
		v.List = cp
		return v
	case KindMap:
		cp := make(map[string]Value, len(v.Map))
		for k, mv := range v.Map {
			cp[k] = mv.Clone()
		}
		v.Map = cp
		return v
	default:
		return v
	}
}

// IsScalar reports whether v is a type the equality/range index can index
// directly: everything except lists and nested maps. The equality index
// treats a ListString value as non-scalar, since §3 scopes the
// equality/range index to "every data entry whose value is a scalar";
// list and map values in Data are not indexed anywhere.
func (v Value) IsScalar() bool {
	switch v.Kind {
	case KindNull, KindString, KindInt32, KindFloat64, KindBool:
		return true
	default:
		return false
	}
}

// IsNumeric reports whether v participates in numeric range queries.
func (v Value) IsNumeric() bool {
	return v.Kind == KindInt32 || v.Kind == KindFloat64
}

// AsFloat64 returns v's numeric value as a float64, per spec §4.C's rule
// that integer data values are compared as floats when queried by range.
// ok is false for non-numeric kinds.
func (v Value) AsFloat64() (f float64, ok bool) {
	switch v.Kind {
	case KindInt32:
		return float64(v.I32), true
	case KindFloat64:
		return v.F64, true
	default:
		return 0, false
	}
}

// AsEqualityString returns the byte-identical string representation used
// by the equality index for scalar values. Booleans and numbers get a
// canonical textual form so equality lookups can be keyed uniformly by
// string regardless of the stored Kind.
func (v Value) AsEqualityString() (s string, ok bool) {
	switch v.Kind {
	case KindString:
		return v.Str, true
	case KindInt32:
		return fmt.Sprintf("%d", v.I32), true
	case KindFloat64:
		return fmt.Sprintf("%g", v.F64), true
	case KindBool:
		return fmt.Sprintf("%t", v.Bool), true
	case KindNull:
		return "", false
	default:
		return "", false
	}
}

// Equal reports deep equality between two Values, used by the codec
// round-trip tests.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindString:
		return v.Str == other.Str
	case KindInt32:
		return v.I32 == other.I32
	case KindFloat64:
		return v.F64 == other.F64 || (v.F64 != v.F64 && other.F64 != other.F64) // NaN == NaN for our purposes
	case KindBool:
		return v.Bool == other.Bool
	case KindListString:
		if len(v.List) != len(other.List) {
			return false
		}
		for i := range v.List {
			if v.List[i] != other.List[i] {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.Map) != len(other.Map) {
			return false
		}
		for k, mv := range v.Map {
			ov, found := other.Map[k]
			if !found || !mv.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
