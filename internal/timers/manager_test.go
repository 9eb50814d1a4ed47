package timers_test

import (
	"testing"

	"github.com/christophe-duc/lslengine/internal/closure"
	"github.com/christophe-duc/lslengine/internal/events"
	"github.com/christophe-duc/lslengine/internal/timers"
	"github.com/christophe-duc/lslengine/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// simClock is a manually advanced clock so tests control drift and lag
// without sleeping.
type simClock struct{ now float64 }

func (c *simClock) clock() float64 { return c.now }

func recordingCall(calls *[]string, names map[*closure.Closure]string) events.Invoker {
	return func(handler value.Value, args []value.Value) ([]value.Value, error) {
		cl := handler.Fn.(*closure.Closure)
		*calls = append(*calls, names[cl])
		return nil, nil
	}
}

func namedHandler(names map[*closure.Closure]string, name string) value.Value {
	cl := closure.NewCClosure(func(args []value.Value) ([]value.Value, error) { return nil, nil })
	names[cl] = name
	return value.Value{Tag: value.TFunction, Fn: cl}
}

func newTestManager(clock *simClock, wakeRequests *[]float64, calls *[]string, names map[*closure.Closure]string) (*events.Manager, *timers.Manager) {
	ev := events.NewManager(nil, nil)
	setTimerEvent := func(seconds float64) { *wakeRequests = append(*wakeRequests, seconds) }
	m := timers.NewManager(ev, clock.clock, setTimerEvent, recordingCall(calls, names), 0)
	ev.BindHost(func(handler value.Value, args []value.Value) ([]value.Value, error) {
		cl := handler.Fn.(*closure.Closure)
		return cl.Native(args)
	}, func(string, bool) bool { return true }, nil)
	return ev, m
}

func TestOnceFiresExactlyOnceAndUnregistersListener(t *testing.T) {
	clock := &simClock{now: 0}
	var wakes []float64
	var calls []string
	names := map[*closure.Closure]string{}
	ev, m := newTestManager(clock, &wakes, &calls, names)

	h := namedHandler(names, "once")
	require.NoError(t, m.Once(5, h))
	assert.Len(t, ev.Listeners("timer"), 1)

	clock.now = 10
	require.NoError(t, m.Tick())
	assert.Equal(t, []string{"once"}, calls)

	// the one-shot removed itself, so the internal "timer" listener is gone
	assert.Empty(t, ev.Listeners("timer"))

	calls = nil
	require.NoError(t, m.Tick())
	assert.Empty(t, calls)
}

func TestRepeaterReschedulesByInterval(t *testing.T) {
	clock := &simClock{now: 0}
	var wakes []float64
	var calls []string
	names := map[*closure.Closure]string{}
	_, m := newTestManager(clock, &wakes, &calls, names)

	h := namedHandler(names, "tick")
	require.NoError(t, m.Every(2, h))

	clock.now = 2
	require.NoError(t, m.Tick())
	assert.Equal(t, []string{"tick"}, calls)

	calls = nil
	clock.now = 4
	require.NoError(t, m.Tick())
	assert.Equal(t, []string{"tick"}, calls)
}

func TestLagClampSkipsAheadWhenFarBehind(t *testing.T) {
	clock := &simClock{now: 0}
	var wakes []float64
	var fireAts []float64
	names := map[*closure.Closure]string{}
	ev := events.NewManager(nil, nil)
	setTimerEvent := func(seconds float64) { wakes = append(wakes, seconds) }
	call := func(handler value.Value, args []value.Value) ([]value.Value, error) {
		fireAts = append(fireAts, args[0].Number)
		return nil, nil
	}
	// lagClamp of 1 second, interval of 1 second: a 100-second jump should
	// skip forward rather than fire 100 times in one Tick.
	m := timers.NewManager(ev, clock.clock, setTimerEvent, call, 1)
	ev.BindHost(func(handler value.Value, args []value.Value) ([]value.Value, error) {
		cl := handler.Fn.(*closure.Closure)
		return cl.Native(args)
	}, func(string, bool) bool { return true }, nil)

	h := value.Value{Tag: value.TFunction, Fn: closure.NewCClosure(func(args []value.Value) ([]value.Value, error) { return nil, nil })}
	require.NoError(t, m.Every(1, h))

	clock.now = 100
	require.NoError(t, m.Tick())
	assert.Len(t, fireAts, 1, "a single catch-up tick should fire at most once, not replay every missed interval")
}

func TestOffCancelsOutstandingWakeRequest(t *testing.T) {
	clock := &simClock{now: 0}
	var wakes []float64
	var calls []string
	names := map[*closure.Closure]string{}
	_, m := newTestManager(clock, &wakes, &calls, names)

	h := namedHandler(names, "h")
	require.NoError(t, m.On(5, h))
	require.NotEmpty(t, wakes)

	assert.True(t, m.Off(h))
	assert.Equal(t, 0.0, wakes[len(wakes)-1])
}

func TestReentrantTickIsRejected(t *testing.T) {
	clock := &simClock{now: 0}
	var wakes []float64
	ev := events.NewManager(nil, nil)
	setTimerEvent := func(seconds float64) { wakes = append(wakes, seconds) }

	var m *timers.Manager
	var innerErr error
	reentrant := value.Value{Tag: value.TFunction, Fn: closure.NewCClosure(func(args []value.Value) ([]value.Value, error) {
		innerErr = m.Tick()
		return nil, nil
	})}
	call := func(handler value.Value, args []value.Value) ([]value.Value, error) {
		cl := handler.Fn.(*closure.Closure)
		return cl.Native(args)
	}
	m = timers.NewManager(ev, clock.clock, setTimerEvent, call, 0)
	ev.BindHost(call, func(string, bool) bool { return true }, nil)

	require.NoError(t, m.On(1, reentrant))
	clock.now = 1
	require.NoError(t, m.Tick())
	assert.ErrorIs(t, innerErr, timers.ErrReentrantTick)
}

func TestNegativeIntervalRejected(t *testing.T) {
	clock := &simClock{now: 0}
	var wakes []float64
	var calls []string
	names := map[*closure.Closure]string{}
	_, m := newTestManager(clock, &wakes, &calls, names)

	err := m.On(-1, value.Nil)
	assert.ErrorIs(t, err, timers.ErrNegativeInterval)
}
