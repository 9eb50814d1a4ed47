package value

// LSLType is the LSL-level type tag, distinct from the runtime Tag. An
// integer is stored as a tagged lightuserdata whose payload holds the
// 32-bit value; a float as a number; a key as a tagged userdata; a
// quaternion as a tagged userdata of 4 floats; a list as an array-backed
// table.
type LSLType uint8

const (
	LSLInteger LSLType = iota
	LSLFloat
	LSLString
	LSLKey
	LSLVector
	LSLQuaternion
	LSLList
	LSLNull
	LSLError
)

func (t LSLType) String() string {
	switch t {
	case LSLInteger:
		return "integer"
	case LSLFloat:
		return "float"
	case LSLString:
		return "string"
	case LSLKey:
		return "key"
	case LSLVector:
		return "vector"
	case LSLQuaternion:
		return "quaternion"
	case LSLList:
		return "list"
	case LSLNull:
		return "null"
	case LSLError:
		return "error"
	default:
		return "unknown"
	}
}

// Subtag identifiers used on UserData.SubTag for LSL-level kinds that ride
// on top of the runtime TUserData variant.
const (
	SubTagKey           = "key"
	SubTagQuaternion    = "quaternion"
	SubTagDetectedEvent = "detectedevent"
)

// lightUserDataIntegerTag marks a LightUserData as carrying an LSL integer.
const lightUserDataIntegerTag uint8 = 1

// Integer wraps a 32-bit LSL integer as the tagged lightuserdata the
// runtime uses to represent it.
func Integer(i int32) Value {
	return Value{Tag: TLightUserData, LUD: LightUserData{Tag8: lightUserDataIntegerTag, Payload: uintptr(uint32(i))}}
}

// AsInteger extracts the 32-bit LSL integer payload. ok is false if v is not
// an LSL integer.
func (v Value) AsInteger() (int32, bool) {
	if v.Tag != TLightUserData || v.LUD.Tag8 != lightUserDataIntegerTag {
		return 0, false
	}
	return int32(uint32(v.LUD.Payload)), true
}

// LSLTypeOf implements the lsl_type(value) mapping from the data model:
// an integer at the LSL level is a tagged lightuserdata; a float a number;
// a key a tagged userdata wrapping an interned UUID or uncompressed
// string; a quaternion a tagged userdata of 4 floats; a list an
// array-backed table.
func LSLTypeOf(v Value) LSLType {
	switch v.Tag {
	case TLightUserData:
		if v.LUD.Tag8 == lightUserDataIntegerTag {
			return LSLInteger
		}
		return LSLNull
	case TNumber:
		return LSLFloat
	case TString:
		return LSLString
	case TVector:
		return LSLVector
	case TUserData:
		if v.UD == nil {
			return LSLNull
		}
		switch v.UD.SubTag {
		case SubTagKey:
			return LSLKey
		case SubTagQuaternion:
			return LSLQuaternion
		default:
			return LSLNull
		}
	case TTable:
		return LSLList
	case TNil:
		return LSLNull
	default:
		return LSLError
	}
}
