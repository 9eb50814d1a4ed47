// Package timers implements the timer manager (§4.10): a flat array of
// scheduled handlers, a single outstanding host wake-up request recomputed
// on every add/remove, and drift-aware firing with a clamp on how far a
// late repeater is allowed to catch up in one tick.
package timers

import (
	"math"

	"github.com/christophe-duc/lslengine/internal/events"
	"github.com/christophe-duc/lslengine/internal/value"
	deadlock "github.com/sasha-s/go-deadlock"
)

// SubTag is the userdata subtag LLTimers occupies on the wire and as a
// script-visible value (§4.6: "LLTimers writes the timers table, the
// LLEvents reference, and the timer wrapper closure").
const SubTag = "lltimers"

// defaultLagClampSeconds is used when NewManager is given a
// non-positive clamp.
const defaultLagClampSeconds = 2.0

// Manager tracks every scheduled timer for one thread and integrates with
// an events.Manager as the "timer" event's sole internal listener: adding
// the first timer registers that listener, removing the last unregisters
// it (§4.10).
type Manager struct {
	mu deadlock.Mutex

	timers   []*timerRecord
	lagClamp float64
	ticking  bool

	clock         func() float64
	setTimerEvent func(seconds float64)
	call          events.Invoker
	events        *events.Manager

	tickHandler value.Value // the "timer" registration this manager owns, if any

	// ud is the stable TUserData wrapper Value returns, allocated once so
	// repeated occurrences of this manager in a persisted graph dedup to
	// the same object — see events.Manager.ud for the same reasoning.
	ud *value.UserData
}

// NewManager constructs a timer manager bound to ev as its "timer" event
// source. clock returns the current monotonic time in seconds; setTimerEvent
// requests (or, with 0, cancels) a single future "timer" event; call invokes
// a handler closure the way the engine's VM would. lagClampSeconds <= 0
// selects defaultLagClampSeconds.
func NewManager(ev *events.Manager, clock func() float64, setTimerEvent func(seconds float64), call events.Invoker, lagClampSeconds float64) *Manager {
	if lagClampSeconds <= 0 {
		lagClampSeconds = defaultLagClampSeconds
	}
	m := &Manager{
		lagClamp:      lagClampSeconds,
		clock:         clock,
		setTimerEvent: setTimerEvent,
		call:          call,
		events:        ev,
	}
	m.ud = &value.UserData{SubTag: SubTag, Data: m}
	return m
}

// BindHost reinstalls the host hooks a Manager rehydrated by persistence
// does not carry across the wire (§6, §9) — see events.Manager.BindHost
// for the same reasoning.
func (m *Manager) BindHost(ev *events.Manager, clock func() float64, setTimerEvent func(seconds float64), call events.Invoker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = ev
	m.clock = clock
	m.setTimerEvent = setTimerEvent
	m.call = call
}

// On and Every both register a repeating timer that first fires seconds
// from now.
func (m *Manager) On(seconds float64, handler value.Value) error {
	return m.add(seconds, handler, true)
}

// Every is On's spelling for a recurring timer, per §4.10.
func (m *Manager) Every(seconds float64, handler value.Value) error {
	return m.add(seconds, handler, true)
}

// Once registers a one-shot timer.
func (m *Manager) Once(seconds float64, handler value.Value) error {
	return m.add(seconds, handler, false)
}

func (m *Manager) add(seconds float64, handler value.Value, repeating bool) error {
	if seconds < 0 {
		return ErrNegativeInterval
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	rec := &timerRecord{
		handler:         handler,
		nextRun:         now + seconds,
		logicalSchedule: now + seconds,
	}
	if repeating {
		iv := seconds
		rec.interval = &iv
	}

	wasEmpty := len(m.timers) == 0
	m.timers = append(m.timers, rec)
	if wasEmpty {
		m.registerTimerListener()
	}
	m.reschedule()
	return nil
}

// Off removes the most recently registered timer whose handler equals
// handler, scanning back to front, and reports whether it found one.
func (m *Manager) Off(handler value.Value) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.timers) - 1; i >= 0; i-- {
		if !sameTimerHandler(m.timers[i].handler, handler) {
			continue
		}
		m.timers = append(append([]*timerRecord{}, m.timers[:i]...), m.timers[i+1:]...)
		if len(m.timers) == 0 {
			m.unregisterTimerListener()
		}
		m.reschedule()
		return true
	}
	return false
}

// registerTimerListener and unregisterTimerListener must be called with mu
// held.
func (m *Manager) registerTimerListener() {
	if m.events == nil {
		return
	}
	m.tickHandler = value.Value{Tag: value.TFunction, Fn: newTickClosure(m)}
	_, _ = m.events.OnInternal("timer", m.tickHandler)
}

func (m *Manager) unregisterTimerListener() {
	if m.events == nil || m.tickHandler.Tag != value.TFunction {
		return
	}
	m.events.Off("timer", m.tickHandler)
	m.tickHandler = value.Nil
}

// reschedule must be called with mu held. It recomputes the nearest
// next_run across every timer and asks the host for a single wake-up at
// that relative delay, or cancels the pending request if no timers remain.
func (m *Manager) reschedule() {
	if m.setTimerEvent == nil {
		return
	}
	if len(m.timers) == 0 {
		m.setTimerEvent(0.0)
		return
	}
	now := m.clock()
	minNext := m.timers[0].nextRun
	for _, t := range m.timers[1:] {
		if t.nextRun < minNext {
			minNext = t.nextRun
		}
	}
	wakeAfter := minNext - now
	if wakeAfter < 1e-6 {
		wakeAfter = 1e-6
	}
	m.setTimerEvent(wakeAfter)
}

// Tick fires every timer whose next_run has passed, per §4.10's firing
// semantics, and re-requests a wake-up once done. It rejects reentrant
// invocation (a handler whose call chain somehow re-triggers "timer").
func (m *Manager) Tick() error {
	m.mu.Lock()
	if m.ticking {
		m.mu.Unlock()
		return ErrReentrantTick
	}
	m.ticking = true
	snapshot := append([]*timerRecord(nil), m.timers...)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.ticking = false
		m.reschedule()
		m.mu.Unlock()
	}()

	now := m.clock()
	for _, rec := range snapshot {
		if rec.nextRun > now {
			continue
		}
		m.fire(rec, now)
	}
	return nil
}

// fire handles one eligible record: the live-array recheck, one-shot
// removal, repeater rescheduling with lag clamp, and the handler call
// itself. Returns false if rec was no longer live.
func (m *Manager) fire(rec *timerRecord, now float64) bool {
	m.mu.Lock()
	idx := m.indexOf(rec)
	if idx < 0 {
		m.mu.Unlock()
		return false
	}

	scheduleAtEntry := rec.logicalSchedule
	interval := rec.interval

	if rec.interval == nil {
		m.timers = append(append([]*timerRecord{}, m.timers[:idx]...), m.timers[idx+1:]...)
		if len(m.timers) == 0 {
			m.unregisterTimerListener()
		}
	} else {
		nextScheduled := rec.nextRun + *rec.interval
		lag := now - nextScheduled
		if lag > m.lagClamp {
			skip := math.Ceil(lag / *rec.interval)
			rec.nextRun = nextScheduled + skip**rec.interval
			rec.logicalSchedule = rec.nextRun
		} else {
			rec.nextRun = nextScheduled
			rec.logicalSchedule += *rec.interval
		}
	}
	m.mu.Unlock()

	if m.call == nil {
		return true
	}
	_, _ = m.call(rec.handler, []value.Value{value.Number(scheduleAtEntry), intervalArg(interval)})
	return true
}

func (m *Manager) indexOf(rec *timerRecord) int {
	for i, t := range m.timers {
		if t == rec {
			return i
		}
	}
	return -1
}
