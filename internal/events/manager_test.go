package events_test

import (
	"testing"

	"github.com/christophe-duc/lslengine/internal/closure"
	"github.com/christophe-duc/lslengine/internal/events"
	"github.com/christophe-duc/lslengine/internal/table"
	"github.com/christophe-duc/lslengine/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingInvoker calls every handler inline and records which closure
// pointer ran, the way a real VM call would but without needing one.
func recordingInvoker(calls *[]string, names map[*closure.Closure]string) events.Invoker {
	return func(handler value.Value, args []value.Value) ([]value.Value, error) {
		cl := handler.Fn.(*closure.Closure)
		if cl.Native != nil {
			return cl.Native(args)
		}
		*calls = append(*calls, names[cl])
		return nil, nil
	}
}

func namedHandler(calls *[]string, names map[*closure.Closure]string, name string) value.Value {
	cl := closure.NewCClosure(func(args []value.Value) ([]value.Value, error) {
		*calls = append(*calls, name)
		return nil, nil
	})
	names[cl] = name
	return value.Value{Tag: value.TFunction, Fn: cl}
}

func TestOnOffLeavesExactlyOneRegistration(t *testing.T) {
	var calls []string
	names := map[*closure.Closure]string{}
	m := events.NewManager(recordingInvoker(&calls, names), nil)

	h := namedHandler(&calls, names, "h")
	_, err := m.On("touch_start", h)
	require.NoError(t, err)
	_, err = m.On("touch_start", h)
	require.NoError(t, err)
	assert.True(t, m.Off("touch_start", h))

	assert.Len(t, m.Listeners("touch_start"), 1)
}

func TestHandlerRemovingAnotherDuringDispatchPreventsItRunning(t *testing.T) {
	var calls []string
	names := map[*closure.Closure]string{}
	m := events.NewManager(recordingInvoker(&calls, names), nil)

	var other value.Value
	remover := func(args []value.Value) ([]value.Value, error) {
		m.Off("custom", other)
		calls = append(calls, "remover")
		return nil, nil
	}
	removerCl := closure.NewCClosure(remover)
	removerValue := value.Value{Tag: value.TFunction, Fn: removerCl}
	other = namedHandler(&calls, names, "other")

	_, err := m.On("custom", removerValue)
	require.NoError(t, err)
	_, err = m.On("custom", other)
	require.NoError(t, err)

	require.NoError(t, m.HandleEvent("custom"))
	assert.Equal(t, []string{"remover"}, calls)
}

func TestHandlerAddedDuringDispatchIsNotCalledThatDispatch(t *testing.T) {
	var calls []string
	names := map[*closure.Closure]string{}
	m := events.NewManager(recordingInvoker(&calls, names), nil)

	adder := func(args []value.Value) ([]value.Value, error) {
		calls = append(calls, "adder")
		late := namedHandler(&calls, names, "late")
		_, _ = m.On("custom", late)
		return nil, nil
	}
	_, err := m.On("custom", value.Value{Tag: value.TFunction, Fn: closure.NewCClosure(adder)})
	require.NoError(t, err)

	require.NoError(t, m.HandleEvent("custom"))
	assert.Equal(t, []string{"adder"}, calls)

	calls = nil
	require.NoError(t, m.HandleEvent("custom"))
	assert.ElementsMatch(t, []string{"adder", "late"}, calls)
}

func TestOnceRunsAtMostOnce(t *testing.T) {
	var calls []string
	names := map[*closure.Closure]string{}
	m := events.NewManager(recordingInvoker(&calls, names), nil)

	h := namedHandler(&calls, names, "once")
	_, err := m.Once("custom", h)
	require.NoError(t, err)

	require.NoError(t, m.HandleEvent("custom"))
	require.NoError(t, m.HandleEvent("custom"))
	require.NoError(t, m.HandleEvent("custom"))

	assert.Equal(t, []string{"once"}, calls)
	assert.Empty(t, m.Listeners("custom"))
}

func TestRegistrationCallbackFiresOnFirstAddAndLastRemove(t *testing.T) {
	var regLog []string
	onReg := func(event string, register bool) bool {
		if register {
			regLog = append(regLog, "register:"+event)
		} else {
			regLog = append(regLog, "unregister:"+event)
		}
		return true
	}

	m := events.NewManager(nil, onReg)
	names := map[*closure.Closure]string{}
	var calls []string
	h := namedHandler(&calls, names, "h")

	_, err := m.On("touch_start", h)
	require.NoError(t, err)
	_, err = m.On("touch_start", h)
	require.NoError(t, err)
	assert.True(t, m.Off("touch_start", h))
	assert.True(t, m.Off("touch_start", h))

	assert.Equal(t, []string{"register:touch_start", "unregister:touch_start"}, regLog)
}

func TestRegistrationCallbackRejectionFailsOn(t *testing.T) {
	m := events.NewManager(nil, func(event string, register bool) bool { return false })
	_, err := m.On("touch_start", value.Nil)
	assert.ErrorIs(t, err, events.ErrUnsupportedEvent)
}

func TestMultiEventSubstitutesDetectedArray(t *testing.T) {
	var seenLen int
	var seenIndexes []int32
	invoker := func(handler value.Value, args []value.Value) ([]value.Value, error) {
		arr := args[0].Table.(*table.Table)
		seenLen = 1
		for i := int32(1); ; i++ {
			v := arr.Get(value.Number(float64(i)))
			if v.Tag == value.TNil {
				break
			}
			de := v.UD.Data.(*events.DetectedEvent)
			seenIndexes = append(seenIndexes, de.Index)
			assert.True(t, de.Valid)
		}
		return nil, nil
	}

	m := events.NewManager(invoker, nil)
	_, err := m.On("touch_start", value.Value{Tag: value.TFunction, Fn: closure.NewCClosure(func(args []value.Value) ([]value.Value, error) { return nil, nil })})
	require.NoError(t, err)

	require.NoError(t, m.HandleEvent("touch_start", value.Integer(3)))
	assert.Equal(t, 1, seenLen)
	assert.Equal(t, []int32{0, 1, 2}, seenIndexes)
}
