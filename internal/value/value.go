// Package value implements the tagged-union runtime value representation
// described in the engine's data model: nil, booleans, light userdata,
// numbers, vectors, strings, userdata, tables, functions, threads and
// buffers. The tag set is closed — types outside it never appear in a
// running script.
package value

import "fmt"

// Tag identifies the variant held by a Value. The set is closed.
type Tag uint8

const (
	TNil Tag = iota
	TBoolean
	TLightUserData
	TNumber
	TVector
	TString
	TUserData
	TTable
	TFunction
	TThread
	TBuffer
)

func (t Tag) String() string {
	switch t {
	case TNil:
		return "nil"
	case TBoolean:
		return "boolean"
	case TLightUserData:
		return "lightuserdata"
	case TNumber:
		return "number"
	case TVector:
		return "vector"
	case TString:
		return "string"
	case TUserData:
		return "userdata"
	case TTable:
		return "table"
	case TFunction:
		return "function"
	case TThread:
		return "thread"
	case TBuffer:
		return "buffer"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// Vector is the 3-component vector variant. Components are float32 because
// the legacy VM truncates doubles to 32 bits before storing them in a
// vector slot.
type Vector struct {
	X, Y, Z float32
}

// LightUserData carries an opaque pointer-sized payload plus an 8-bit
// subtag. LSL integers are stored this way: Tag8 identifies "this is an LSL
// integer" and Payload holds the 32-bit value's bit pattern zero-extended
// into the pointer-width field (Integer stores uintptr(uint32(i))).
type LightUserData struct {
	Tag8    uint8
	Payload uintptr
}

// UserData is an owned, tagged, metatable-bearing blob. Concrete userdata
// kinds (UUID, quaternion, DetectedEvent, LLEvents, LLTimers, ...) wrap this
// in the closure/table/persistence layers; this package only needs the
// shape, not the kinds, to avoid an import cycle with internal/table.
type UserData struct {
	SubTag    string
	Data      any
	Metatable Tabler
}

// Tabler is the subset of *table.Table visible from this package without
// creating an import cycle (internal/table imports internal/value for its
// slot type).
type Tabler interface {
	TableIdentity() uintptr
}

// Value is the tagged union. Only one of the fields is meaningful,
// selected by Tag.
type Value struct {
	Tag Tag

	Bool   int32 // TBoolean: carries a 32-bit int representation, not merely 0/1
	Number float64
	Vec    Vector
	Str    string
	LUD    LightUserData
	UD     *UserData
	Table  Tabler
	Fn     any // *closure.Closure, kept as any to avoid an import cycle
	Thread any // *vmthread.Thread, kept as any to avoid an import cycle
	Buf    []byte
}

// Nil is the shared nil value.
var Nil = Value{Tag: TNil}

func Boolean(b bool) Value {
	if b {
		return Value{Tag: TBoolean, Bool: 1}
	}
	return Value{Tag: TBoolean, Bool: 0}
}

func Number(n float64) Value { return Value{Tag: TNumber, Number: n} }

func String(s string) Value { return Value{Tag: TString, Str: s} }

func VectorValue(v Vector) Value { return Value{Tag: TVector, Vec: v} }

func Buffer(b []byte) Value { return Value{Tag: TBuffer, Buf: b} }

// IsTruthy follows the legacy rule: nil and boolean-false are falsy,
// everything else (including 0 and "") is truthy. Key values get no
// separate truthiness rule anywhere in this module: a key is truthy like
// any other non-nil, non-false value.
func (v Value) IsTruthy() bool {
	switch v.Tag {
	case TNil:
		return false
	case TBoolean:
		return v.Bool != 0
	default:
		return true
	}
}

// IsSimple reports whether v is one of the types the persistence engine
// bypasses the reference table for: nil, boolean, number, vector,
// lightuserdata. For these, emitting a reference would cost as much as the
// value itself.
func (v Value) IsSimple() bool {
	switch v.Tag {
	case TNil, TBoolean, TNumber, TVector, TLightUserData:
		return true
	default:
		return false
	}
}

func (v Value) GoString() string {
	switch v.Tag {
	case TNil:
		return "nil"
	case TBoolean:
		return fmt.Sprintf("boolean(%d)", v.Bool)
	case TNumber:
		return fmt.Sprintf("number(%v)", v.Number)
	case TVector:
		return fmt.Sprintf("vector(%v,%v,%v)", v.Vec.X, v.Vec.Y, v.Vec.Z)
	case TString:
		return fmt.Sprintf("string(%q)", v.Str)
	case TLightUserData:
		return fmt.Sprintf("lightuserdata(tag=%d,payload=%d)", v.LUD.Tag8, v.LUD.Payload)
	case TBuffer:
		return fmt.Sprintf("buffer(%d bytes)", len(v.Buf))
	default:
		return v.Tag.String()
	}
}
