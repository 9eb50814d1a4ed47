package ares

import (
	"fmt"
	"sync"

	"github.com/christophe-duc/lslengine/internal/quat"
	"github.com/christophe-duc/lslengine/internal/uuidkey"
	"github.com/christophe-duc/lslengine/internal/value"
)

// Persistable is implemented by a userdata payload that knows how to
// encode its own contents. ares calls this for every userdata subtag
// other than the "key" and "quaternion" builtins, which it encodes itself;
// reading such a payload back needs a factory registered via
// RegisterPayloadType.
type Persistable interface {
	PersistPayload(w *Writer) error
}

// Unpersistable is the read-side counterpart: a PayloadFactory returns one
// of these, then ares calls UnpersistPayload to fill it in from the
// stream.
type Unpersistable interface {
	UnpersistPayload(r *Reader) error
}

// PayloadFactory constructs an empty payload ready to be filled by
// UnpersistPayload, for one userdata subtag.
type PayloadFactory func() Unpersistable

var (
	payloadMu       sync.Mutex
	payloadFactories = make(map[string]PayloadFactory)
)

// RegisterPayloadType associates a userdata subtag with the factory used
// to reconstruct it, the way database/sql drivers register themselves by
// name rather than the sql package importing every driver directly. This
// lets internal/events and internal/timers give their userdata payloads
// persistence support without ares importing either package.
func RegisterPayloadType(subtag string, factory PayloadFactory) {
	payloadMu.Lock()
	defer payloadMu.Unlock()
	payloadFactories[subtag] = factory
}

func lookupPayloadFactory(subtag string) (PayloadFactory, bool) {
	payloadMu.Lock()
	defer payloadMu.Unlock()
	f, ok := payloadFactories[subtag]
	return f, ok
}

func (w *Writer) writeUserDataValue(v value.Value) error {
	if err := w.writeByteTag(byte(value.TUserData)); err != nil {
		return err
	}
	ud := v.UD
	if ud == nil {
		if err := w.writeByteTag(byte(subtagCodeKey)); err != nil {
			return err
		}
		return w.writeStringBytes("")
	}
	code := subtagCodeOf(ud.SubTag)
	if err := w.writeByteTag(byte(code)); err != nil {
		return err
	}

	switch code {
	case subtagCodeKey:
		k, _ := uuidkey.FromValue(v)
		s := ""
		if k != nil {
			s = k.String()
		}
		return w.writeStringBytes(s)
	case subtagCodeQuaternion:
		q, _ := quat.FromValue(v)
		if err := w.writeF32(q.X); err != nil {
			return err
		}
		if err := w.writeF32(q.Y); err != nil {
			return err
		}
		if err := w.writeF32(q.Z); err != nil {
			return err
		}
		return w.writeF32(q.S)
	default:
		if err := w.writeStringBytes(ud.SubTag); err != nil {
			return err
		}
		p, ok := ud.Data.(Persistable)
		if !ok {
			return fmt.Errorf("ares: userdata subtag %q does not implement Persistable", ud.SubTag)
		}
		return p.PersistPayload(w)
	}
}

func (r *Reader) readUserDataValue() (value.Value, error) {
	codeByte, err := r.readByte()
	if err != nil {
		return value.Nil, err
	}
	code := userdataSubtagCode(codeByte)

	switch code {
	case subtagCodeKey:
		s, err := r.readStringBytes()
		if err != nil {
			return value.Nil, err
		}
		k := r.uuids.Intern(s)
		out := uuidkey.ToValue(k)
		r.registerRef(out)
		return out, nil
	case subtagCodeQuaternion:
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
		s, err := r.readF32()
		if err != nil {
			return value.Nil, err
		}
		out := quat.ToValue(quat.Quaternion{X: x, Y: y, Z: z, S: s})
		r.registerRef(out)
		return out, nil
	default:
		subtag, err := r.readStringBytes()
		if err != nil {
			return value.Nil, err
		}
		factory, ok := lookupPayloadFactory(subtag)
		if !ok {
			return value.Nil, fmt.Errorf("ares: %w: %q", ErrUnknownUserDataSubtag, subtag)
		}
		payload := factory()
		ud := &value.UserData{SubTag: subtag, Data: payload}
		out := value.Value{Tag: value.TUserData, UD: ud}
		r.registerRef(out)
		if err := payload.UnpersistPayload(r); err != nil {
			return value.Nil, err
		}
		return out, nil
	}
}
