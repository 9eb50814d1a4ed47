package timers

import (
	"github.com/christophe-duc/lslengine/internal/ares"
	"github.com/christophe-duc/lslengine/internal/events"
	"github.com/christophe-duc/lslengine/internal/value"
)

// PersistPayload writes the LLEvents reference this manager dispatches
// "timer" through, the timer wrapper closure it registered (or Nil if no
// timer is currently live), and every scheduled record. Host callbacks
// (clock, setTimerEvent, call) are not part of the stream — they are live
// Go closures over host state, reinstalled via BindHost after Unpersist
// (§6, §9), same as events.Manager.
func (m *Manager) PersistPayload(w *ares.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.events != nil {
		if err := w.WriteValue(m.events.Value()); err != nil {
			return err
		}
	} else {
		if err := w.WriteValue(value.Nil); err != nil {
			return err
		}
	}
	if err := w.WriteValue(m.tickHandler); err != nil {
		return err
	}
	if err := w.WriteF64(m.lagClamp); err != nil {
		return err
	}

	if err := w.WriteUint64(uint64(len(m.timers))); err != nil {
		return err
	}
	for _, rec := range m.timers {
		if err := w.WriteValue(rec.handler); err != nil {
			return err
		}
		hasInterval := rec.interval != nil
		if err := w.WriteBool(hasInterval); err != nil {
			return err
		}
		if hasInterval {
			if err := w.WriteF64(*rec.interval); err != nil {
				return err
			}
		}
		if err := w.WriteF64(rec.nextRun); err != nil {
			return err
		}
		if err := w.WriteF64(rec.logicalSchedule); err != nil {
			return err
		}
	}
	return nil
}

// UnpersistPayload mirrors PersistPayload. The manager's host callbacks are
// left nil; the caller must BindHost before relying on Tick/add/Off.
func (m *Manager) UnpersistPayload(r *ares.Reader) error {
	evVal, err := r.ReadValue()
	if err != nil {
		return err
	}
	if evVal.Tag == value.TUserData && evVal.UD != nil {
		if ev, ok := evVal.UD.Data.(*events.Manager); ok {
			m.events = ev
		}
	}

	tickHandler, err := r.ReadValue()
	if err != nil {
		return err
	}
	m.tickHandler = tickHandler

	lagClamp, err := r.ReadF64()
	if err != nil {
		return err
	}
	if lagClamp <= 0 {
		lagClamp = defaultLagClampSeconds
	}
	m.lagClamp = lagClamp

	n, err := r.ReadUint64()
	if err != nil {
		return err
	}
	m.timers = make([]*timerRecord, n)
	for i := range m.timers {
		handler, err := r.ReadValue()
		if err != nil {
			return err
		}
		hasInterval, err := r.ReadBool()
		if err != nil {
			return err
		}
		rec := &timerRecord{handler: handler}
		if hasInterval {
			iv, err := r.ReadF64()
			if err != nil {
				return err
			}
			rec.interval = &iv
		}
		nextRun, err := r.ReadF64()
		if err != nil {
			return err
		}
		rec.nextRun = nextRun
		logicalSchedule, err := r.ReadF64()
		if err != nil {
			return err
		}
		rec.logicalSchedule = logicalSchedule
		m.timers[i] = rec
	}
	return nil
}

func newManagerPayload() ares.Unpersistable {
	return NewManager(nil, nil, nil, nil, 0)
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
