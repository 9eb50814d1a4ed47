// Package events implements the event manager (§4.9): a name-keyed list
// of registered handlers, dispatched with handler-list snapshot semantics
// so that additions and removals mid-dispatch behave predictably, plus the
// multi-event substitution that replaces a touch/collision/sensor event's
// first argument with a readonly array of DetectedEvent handles.
package events

import (
	"fmt"

	"github.com/christophe-duc/lslengine/internal/table"
	"github.com/christophe-duc/lslengine/internal/value"
	deadlock "github.com/sasha-s/go-deadlock"
)

// multiEvents names the events whose first argument (normally an LSL
// integer count) is replaced with a readonly array of DetectedEvent
// userdata before handlers run.
var multiEvents = map[string]bool{
	"touch_start":      true,
	"touch":            true,
	"touch_end":        true,
	"collision_start":  true,
	"collision":        true,
	"collision_end":    true,
	"sensor":           true,
	"on_damage":        true,
	"final_damage":     true,
}

// Invoker calls a handler closure with args, the way the engine's VM
// would invoke it. The manager never calls a closure directly: dispatch
// is otherwise host-agnostic so it can be unit tested without a VM.
type Invoker func(handler value.Value, args []value.Value) ([]value.Value, error)

// RegistrationCallback is consulted when an event transitions from zero
// to one registered handler (register=true) or from one to zero
// (register=false). A false return from a register=true call rejects the
// registration.
type RegistrationCallback func(event string, register bool) bool

// Manager holds every registered handler, keyed by event name, and the
// two host hooks dispatch and registration consult. A Manager is safe for
// concurrent use; HandleEvent may run concurrently with On/Off from a
// different goroutine (e.g. a host driving resume from one goroutine
// while another inspects Listeners), so access is guarded the same way
// vmthread.Thread's is — a deadlock-detecting mutex rather than
// sync.Mutex, since a handler that reenters the manager while holding a
// lock should show up as a detected deadlock in tests rather than hang.
type Manager struct {
	mu deadlock.Mutex

	handlers map[string][]*wrapperBox

	onRegister RegistrationCallback
	call       Invoker
	enabled    func() bool

	// ud is the stable TUserData wrapper Value returns. Allocated once so
	// every occurrence of this manager in a persisted graph shares one
	// pointer identity — ares dedups aggregates by the raw *UserData
	// pointer, so a fresh wrapper per Value() call would defeat that and
	// split one LLEvents object into several on the wire.
	ud *value.UserData
}

// NewManager constructs an empty manager. call and onRegister may be nil
// during construction (e.g. immediately after Unpersist, before the host
// rebinds them via BindHost) but must be set before HandleEvent/On are
// used in anger.
func NewManager(call Invoker, onRegister RegistrationCallback) *Manager {
	m := &Manager{
		handlers:   make(map[string][]*wrapperBox),
		call:       call,
		onRegister: onRegister,
	}
	m.ud = &value.UserData{SubTag: SubTag, Data: m}
	return m
}

// BindHost (re)installs the host callbacks a Manager rehydrated by
// persistence does not carry across the wire — callbacks are live Go
// closures over host state, not serializable data (§6, §9).
func (m *Manager) BindHost(call Invoker, onRegister RegistrationCallback, enabled func() bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call = call
	m.onRegister = onRegister
	m.enabled = enabled
}

// On appends a new registration for event and returns handler unchanged,
// so the caller can hold on to it for a later Off.
func (m *Manager) On(event string, handler value.Value) (value.Value, error) {
	return m.on(event, handler, false)
}

// OnInternal is On for registrations the engine itself makes (the timer
// manager's "timer" listener): Listeners substitutes an inert guard for
// these so user code can't unregister them by guessing the closure.
func (m *Manager) OnInternal(event string, handler value.Value) (value.Value, error) {
	return m.on(event, handler, true)
}

func (m *Manager) on(event string, handler value.Value, internal bool) (value.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.handlers[event]) == 0 && m.onRegister != nil {
		if !m.onRegister(event, true) {
			return value.Nil, fmt.Errorf("events: %w: %q", ErrUnsupportedEvent, event)
		}
	}
	m.handlers[event] = append(m.handlers[event], newWrapperBox(handler, internal))
	return handler, nil
}

// Off removes the most recently registered wrapper whose handler equals
// handler, scanning back to front, and reports whether it found one.
func (m *Manager) Off(event string, handler value.Value) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.handlers[event]
	for i := len(list) - 1; i >= 0; i-- {
		if !sameHandler(list[i].handler(), handler) {
			continue
		}
		list = append(append([]*wrapperBox{}, list[:i]...), list[i+1:]...)
		if len(list) == 0 {
			delete(m.handlers, event)
			if m.onRegister != nil {
				m.onRegister(event, false)
			}
		} else {
			m.handlers[event] = list
		}
		return true
	}
	return false
}

// Once registers a self-removing wrapper around handler: the first
// dispatch unregisters it before delegating, so handler runs at most once
// regardless of how many times event is emitted afterward.
func (m *Manager) Once(event string, handler value.Value) (value.Value, error) {
	var self value.Value
	wrapped := newOnceClosure(func(args []value.Value) ([]value.Value, error) {
		m.Off(event, self)
		return m.invoke(handler, args)
	})
	self = wrapped
	return m.On(event, wrapped)
}

func (m *Manager) invoke(handler value.Value, args []value.Value) ([]value.Value, error) {
	if m.call == nil {
		return nil, fmt.Errorf("events: no invoker bound to call handlers with")
	}
	return m.call(handler, args)
}

// Listeners returns a shallow, order-preserving snapshot of event's
// handlers, with internal registrations replaced by an inert guard.
func (m *Manager) Listeners(event string) []value.Value {
	m.mu.Lock()
	defer m.mu.Unlock()

	src := m.handlers[event]
	out := make([]value.Value, len(src))
	for i, w := range src {
		if w.internal {
			out[i] = inertGuardValue()
		} else {
			out[i] = w.handler()
		}
	}
	return out
}

// HandleEvent dispatches event to every handler registered for it at the
// moment dispatch begins (a snapshot), skipping any that Off has removed
// from the live list by the time its turn comes, and stopping immediately
// on the first handler error. For a multi-event, args[0] — normally the
// LSL integer "number detected" — is replaced with a readonly array of
// DetectedEvent handles before any handler runs, and every handle is
// marked invalid once dispatch finishes.
func (m *Manager) HandleEvent(event string, args ...value.Value) error {
	if m.enabled != nil && !m.enabled() {
		return ErrEventHandlingDisabled
	}

	m.mu.Lock()
	snapshot := append([]*wrapperBox(nil), m.handlers[event]...)
	m.mu.Unlock()

	if len(snapshot) == 0 {
		return nil
	}

	detected, dispatchArgs := m.substituteDetected(event, args)
	defer invalidateAll(detected)

	for _, w := range snapshot {
		if m.enabled != nil && !m.enabled() {
			return ErrEventHandlingDisabled
		}
		if !m.stillRegistered(event, w) {
			continue
		}
		if _, err := m.invoke(w.handler(), dispatchArgs); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) stillRegistered(event string, w *wrapperBox) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.handlers[event] {
		if cur == w {
			return true
		}
	}
	return false
}

// substituteDetected builds the readonly DetectedEvent array a multi-event
// dispatch passes in place of args[0]'s original LSL integer count, per
// §4.9/§4.6. Non-multi-events, or a first argument that isn't an LSL
// integer, pass args through unchanged.
func (m *Manager) substituteDetected(event string, args []value.Value) ([]*DetectedEvent, []value.Value) {
	if !multiEvents[event] || len(args) == 0 {
		return nil, args
	}
	n, ok := args[0].AsInteger()
	if !ok {
		return nil, args
	}

	arr := table.New()
	arr.ReadOnly = true
	detected := make([]*DetectedEvent, 0, n)
	for i := int32(0); i < n; i++ {
		de := &DetectedEvent{Index: i, Valid: true}
		detected = append(detected, de)
		arr.Set(value.Number(float64(i+1)), newDetectedEventValue(de))
	}

	out := append([]value.Value(nil), args...)
	out[0] = value.Value{Tag: value.TTable, Table: arr}
	return detected, out
}

func invalidateAll(detected []*DetectedEvent) {
	for _, de := range detected {
		de.Valid = false
	}
}
