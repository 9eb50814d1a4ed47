package events

import (
	"sort"

	"github.com/christophe-duc/lslengine/internal/ares"
	"github.com/christophe-duc/lslengine/internal/value"
)

// SubTag is the userdata subtag LLEvents occupies on the wire and as a
// script-visible value (§4.6: "LLEvents writes the listeners table").
const SubTag = "llevents"

// PersistPayload writes every event's handler list as (name, handlers...),
// terminated by an empty name. Internal registrations are flagged so a
// restored Manager can tell them apart from user registrations without
// needing the timer manager to re-identify its own wrapper by pointer.
// Host callbacks (call, onRegister, enabled) are not part of the stream —
// they are live Go closures over host state, reinstalled via BindHost
// after Unpersist (§6, §9).
func (m *Manager) PersistPayload(w *ares.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.handlers))
	for name := range m.handlers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		list := m.handlers[name]
		if len(list) == 0 {
			continue
		}
		if err := w.WriteString(name); err != nil {
			return err
		}
		if err := w.WriteUint64(uint64(len(list))); err != nil {
			return err
		}
		for _, box := range list {
			if err := w.WriteValue(box.handler()); err != nil {
				return err
			}
			if err := w.WriteBool(box.internal); err != nil {
				return err
			}
		}
	}
	return w.WriteString("")
}

// UnpersistPayload mirrors PersistPayload. The manager's host callbacks
// are left nil; the caller must BindHost before relying on dispatch.
func (m *Manager) UnpersistPayload(r *ares.Reader) error {
	if m.handlers == nil {
		m.handlers = make(map[string][]*wrapperBox)
	}
	for {
		name, err := r.ReadString()
		if err != nil {
			return err
		}
		if name == "" {
			return nil
		}
		n, err := r.ReadUint64()
		if err != nil {
			return err
		}
		list := make([]*wrapperBox, n)
		for i := range list {
			handler, err := r.ReadValue()
			if err != nil {
				return err
			}
			internal, err := r.ReadBool()
			if err != nil {
				return err
			}
			list[i] = newWrapperBox(handler, internal)
		}
		m.handlers[name] = list
	}
}

func newManagerPayload() ares.Unpersistable {
	return NewManager(nil, nil)
}

func init() {
	ares.RegisterPayloadType(SubTag, newManagerPayload)
}

// Value wraps m as the TUserData value scripts and the persister see. The
// wrapper pointer is the one NewManager allocated, not a fresh one, so
// every occurrence of m in a persisted graph dedups to the same object.
func (m *Manager) Value() value.Value {
	return value.Value{Tag: value.TUserData, UD: m.ud}
}
