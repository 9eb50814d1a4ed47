package ares

import (
	"bytes"
	"fmt"

	"github.com/christophe-duc/lslengine/internal/closure"
	"github.com/christophe-duc/lslengine/internal/uuidkey"
	"github.com/christophe-duc/lslengine/internal/value"
)

// upvalPatch names one closure slot that was filled with a stand-in closed
// upvalue because its owning thread hadn't been read yet; relinkUpvalue
// walks these once the real, possibly still-open, upvalue turns up.
type upvalPatch struct {
	cl    *closure.Closure
	index int
}

// Reader mirrors Writer: the reference table it rebuilds maps wire id to
// live value (the inverse of Writer's identity-to-id map), and it carries
// the extra bookkeeping closures-before-threads deserialization needs for
// upvalues (§4.7).
type Reader struct {
	buf          *bytes.Reader
	unperms      *UnpermanentsTable
	protoUnperms *ProtoUnpermanentsTable
	depth        int
	maxDepth     int

	// refs holds every reference-tracked identity seen so far, in
	// registration order — value.Value for ordinary aggregates (strings,
	// tables, userdata, closures, threads), or *closure.Proto, the one
	// non-value.Value aggregate that shares this same table. Upvalues are
	// deliberately not ref-tracked here: their sharing is resolved by ID
	// through upvalByWireID/upvalSites instead (§4.7), since a closure can
	// reference one before its owning thread has been read at all. A
	// REFERENCE tag's id always indexes whichever kind of entry was
	// registered at that position; callers know which kind to expect from
	// context (readValue only ever resolves value.Value entries; readProto
	// only ever resolves *closure.Proto).
	refs []any

	uuids *uuidkey.Table

	upvalByWireID map[uint64]*closure.Upvalue
	upvalSites    map[uint64][]upvalPatch

	nativeProtos []*closure.Proto
}

func (r *Reader) registerRef(v any) {
	r.refs = append(r.refs, v)
}

func (r *Reader) refAt(id int) (value.Value, error) {
	if id < 0 || id >= len(r.refs) {
		return value.Nil, ErrBadReference
	}
	v, ok := r.refs[id].(value.Value)
	if !ok {
		return value.Nil, ErrBadReference
	}
	return v, nil
}

func (r *Reader) protoRefAt(id int) (*closure.Proto, error) {
	if id < 0 || id >= len(r.refs) {
		return nil, ErrBadReference
	}
	p, ok := r.refs[id].(*closure.Proto)
	if !ok {
		return nil, ErrBadReference
	}
	return p, nil
}

// relinkUpvalue patches every closure slot recorded against wireID to point
// at real instead of the closed stand-in they were given when the closure
// was deserialized before its owning thread.
func (r *Reader) relinkUpvalue(wireID uint64, real *closure.Upvalue) {
	for _, site := range r.upvalSites[wireID] {
		site.cl.Upvalues[site.index] = real
	}
	delete(r.upvalSites, wireID)
	r.upvalByWireID[wireID] = real
}

// readValue is writeValue's mirror: it reads one tag byte, and either
// decodes a simple/buffer value inline, resolves a REFERENCE/PERMANENT
// marker, or dispatches to the type-specific body reader, which registers
// the new object's reference slot before reading any of its children.
func (r *Reader) readValue() (value.Value, error) {
	r.depth++
	defer func() { r.depth-- }()
	if r.depth > r.maxDepth {
		return value.Nil, ErrComplexityExceeded
	}

	tagByte, err := r.readByte()
	if err != nil {
		return value.Nil, err
	}

	switch tagByte {
	case byte(value.TNil):
		return value.Nil, nil
	case byte(value.TBoolean):
		b, err := r.readInt32()
		if err != nil {
			return value.Nil, err
		}
		return value.Value{Tag: value.TBoolean, Bool: b}, nil
	case byte(value.TNumber):
		n, err := r.readF64()
		if err != nil {
			return value.Nil, err
		}
		return value.Number(n), nil
	case byte(value.TVector):
		x, err := r.readF32()
		if err != nil {
			return value.Nil, err
		}
		y, err := r.readF32()
		if err != nil {
			return value.Nil, err
		}
		z, err := r.readF32()
		if err != nil {
			return value.Nil, err
		}
		return value.VectorValue(value.Vector{X: x, Y: y, Z: z}), nil
	case byte(value.TLightUserData):
		tag8, err := r.readByte()
		if err != nil {
			return value.Nil, err
		}
		payload, err := r.readUint64()
		if err != nil {
			return value.Nil, err
		}
		return value.Value{Tag: value.TLightUserData, LUD: value.LightUserData{Tag8: tag8, Payload: uintptr(payload)}}, nil
	case byte(value.TBuffer):
		return r.readBufferValue()
	case tcReference:
		id, err := r.readVarint()
		if err != nil {
			return value.Nil, err
		}
		return r.refAt(id)
	case tcPermanent:
		origTagByte, err := r.readByte()
		if err != nil {
			return value.Nil, err
		}
		key, err := r.readStringBytes()
		if err != nil {
			return value.Nil, err
		}
		v, ok := r.unperms.lookup(key)
		if !ok {
			return value.Nil, fmt.Errorf("ares: %w: %q", ErrUnknownPermanent, key)
		}
		if v.Tag != value.Tag(origTagByte) {
			return value.Nil, fmt.Errorf("ares: %w: %q", ErrPermanentTypeMismatch, key)
		}
		return v, nil
	}

	switch tagByte {
	case byte(value.TString):
		return r.readStringValue()
	case byte(value.TTable):
		return r.readTableValue()
	case byte(value.TUserData):
		return r.readUserDataValue()
	case byte(value.TFunction):
		return r.readClosureValue()
	case byte(value.TThread):
		return r.readThreadValue()
	default:
		return value.Nil, unexpectedTag(tagByte)
	}
}

func (r *Reader) readStringValue() (value.Value, error) {
	s, err := r.readStringBytes()
	if err != nil {
		return value.Nil, err
	}
	v := value.String(s)
	r.registerRef(v)
	return v, nil
}

func (r *Reader) readBufferValue() (value.Value, error) {
	n, err := r.readUint64()
	if err != nil {
		return value.Nil, err
	}
	buf := make([]byte, n)
	if err := r.readFull(buf); err != nil {
		return value.Nil, err
	}
	return value.Buffer(buf), nil
}

func (r *Reader) readFull(p []byte) error {
	n, err := r.buf.Read(p)
	for n < len(p) && err == nil {
		var m int
		m, err = r.buf.Read(p[n:])
		n += m
	}
	if n < len(p) {
		return fmt.Errorf("ares: %w", ErrTruncatedInt)
	}
	return nil
}
