package events

import (
	"github.com/christophe-duc/lslengine/internal/ares"
	"github.com/christophe-duc/lslengine/internal/value"
)

// subtagDetectedEvent is the userdata subtag a multi-event's detected-array
// entries carry; it rides ares' generic registered-payload path since it
// isn't one of ares' two built-in subtags (key, quaternion).
const subtagDetectedEvent = value.SubTagDetectedEvent

// DetectedEvent is one entry of the readonly array substituted for a
// multi-event's first argument (§4.9): an index the handler uses with the
// ll detected-* builtins to query the host, plus the liveness flags the
// specification's persistence section records for it. Valid goes false
// for every entry once the dispatch that created them finishes, so a
// reference leaked past its handler can no longer query the host; Locked
// is reserved for a host that wants to freeze an entry mid-dispatch (e.g.
// the detected object was deleted) without waiting for dispatch to end.
type DetectedEvent struct {
	Index  int32
	Valid  bool
	Locked bool
}

// newDetectedEventValue wraps de as the TUserData value scripts see.
func newDetectedEventValue(de *DetectedEvent) value.Value {
	return value.Value{Tag: value.TUserData, UD: &value.UserData{SubTag: subtagDetectedEvent, Data: de}}
}

// PersistPayload implements ares.Persistable.
func (de *DetectedEvent) PersistPayload(w *ares.Writer) error {
	if err := w.WriteInt32(de.Index); err != nil {
		return err
	}
	if err := w.WriteBool(de.Valid); err != nil {
		return err
	}
	return w.WriteBool(de.Locked)
}

// UnpersistPayload implements ares.Unpersistable.
func (de *DetectedEvent) UnpersistPayload(r *ares.Reader) error {
	idx, err := r.ReadInt32()
	if err != nil {
		return err
	}
	valid, err := r.ReadBool()
	if err != nil {
		return err
	}
	locked, err := r.ReadBool()
	if err != nil {
		return err
	}
	de.Index, de.Valid, de.Locked = idx, valid, locked
	return nil
}

func init() {
	ares.RegisterPayloadType(subtagDetectedEvent, func() ares.Unpersistable {
		return &DetectedEvent{}
	})
}
