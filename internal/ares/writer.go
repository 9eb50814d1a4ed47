package ares

import (
	"bytes"

	"github.com/christophe-duc/lslengine/internal/value"
)

// Writer accumulates one Persist call's byte stream: the reference table
// that gives aggregates cycle-safe identity, the permanents short-circuit,
// and the depth counter the complexity bound enforces.
type Writer struct {
	buf        bytes.Buffer
	perms      *PermanentsTable
	protoPerms *ProtoPermanentsTable
	refs       map[any]int
	depth      int
	maxDepth   int
	path       *pathTracker

	anyProtoNative bool
}

func (w *Writer) registerRef(identity any) int {
	id := len(w.refs)
	w.refs[identity] = id
	return id
}

// writeValue is the single recursive entry point every aggregate writer
// routes through for its children: it handles the depth bound, the
// permanents short-circuit, and reference-table dedup before dispatching
// to the type-specific body writer.
func (w *Writer) writeValue(v value.Value) error {
	w.depth++
	defer func() { w.depth-- }()
	if w.depth > w.maxDepth {
		return ErrComplexityExceeded
	}

	switch v.Tag {
	case value.TNil:
		return w.writeByteTag(byte(value.TNil))
	case value.TBoolean:
		if err := w.writeByteTag(byte(value.TBoolean)); err != nil {
			return err
		}
		return w.writeInt32(v.Bool)
	case value.TNumber:
		if err := w.writeByteTag(byte(value.TNumber)); err != nil {
			return err
		}
		return w.writeF64(v.Number)
	case value.TVector:
		if err := w.writeByteTag(byte(value.TVector)); err != nil {
			return err
		}
		if err := w.writeF32(v.Vec.X); err != nil {
			return err
		}
		if err := w.writeF32(v.Vec.Y); err != nil {
			return err
		}
		return w.writeF32(v.Vec.Z)
	case value.TLightUserData:
		if err := w.writeByteTag(byte(value.TLightUserData)); err != nil {
			return err
		}
		if err := w.writeByte(v.LUD.Tag8); err != nil {
			return err
		}
		return w.writeUint64(uint64(v.LUD.Payload))
	case value.TBuffer:
		return w.writeBufferValue(v)
	}

	id, hasIdentity := identityOf(v)
	if hasIdentity {
		if key, ok := w.perms.lookup(id); ok {
			if err := w.writeByteTag(byte(tcPermanent)); err != nil {
				return err
			}
			if err := w.writeByteTag(byte(v.Tag)); err != nil {
				return err
			}
			return w.writeStringBytes(key)
		}
		if refID, seen := w.refs[id]; seen {
			if err := w.writeByteTag(byte(tcReference)); err != nil {
				return err
			}
			return w.writeVarint(refID)
		}
		w.registerRef(id)
	}

	switch v.Tag {
	case value.TString:
		return w.writeStringValue(v)
	case value.TTable:
		return w.writeTableValue(v)
	case value.TUserData:
		return w.writeUserDataValue(v)
	case value.TFunction:
		return w.writeClosureValue(v)
	case value.TThread:
		return w.writeThreadValue(v)
	default:
		return ErrUnknownTypeCode
	}
}

func (w *Writer) writeStringValue(v value.Value) error {
	if err := w.writeByteTag(byte(value.TString)); err != nil {
		return err
	}
	return w.writeStringBytes(v.Str)
}

func (w *Writer) writeBufferValue(v value.Value) error {
	if err := w.writeByteTag(byte(value.TBuffer)); err != nil {
		return err
	}
	if err := w.writeUint64(uint64(len(v.Buf))); err != nil {
		return err
	}
	_, err := w.buf.Write(v.Buf)
	return err
}
