package vmthread

import (
	"testing"

	"github.com/christophe-duc/lslengine/internal/table"
	"github.com/christophe-duc/lslengine/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharedUpvalueIdentity(t *testing.T) {
	th := New(table.New(), 2)
	th.SetStackSlot(3, value.Number(1))

	uv1 := th.OpenUpvalueAt(3)
	uv2 := th.OpenUpvalueAt(3)
	require.Same(t, uv1, uv2, "two references to the same local must share one upvalue object")

	uv1.Set(value.Number(99))
	assert.Equal(t, value.Number(99), uv2.Get(), "mutating through one reference must be visible through the other")
}

func TestCloseUpvaluesFromDetaches(t *testing.T) {
	th := New(table.New(), 2)
	th.SetStackSlot(0, value.Number(7))
	uv := th.OpenUpvalueAt(0)

	th.CloseUpvaluesFrom(0)
	assert.False(t, uv.Open)
	assert.Equal(t, value.Number(7), uv.Get())

	// mutating the stack slot after close must not affect the upvalue
	th.SetStackSlot(0, value.Number(1000))
	assert.Equal(t, value.Number(7), uv.Get())
}

func TestCallStackPushPop(t *testing.T) {
	th := New(table.New(), 0)
	th.PushCall(CallInfo{FuncSlot: 0, Base: 1, Kind: CallLua})
	cur, ok := th.Current()
	require.True(t, ok)
	assert.Equal(t, CallLua, cur.Kind)

	popped, ok := th.PopCall()
	require.True(t, ok)
	assert.Equal(t, 1, popped.Base)

	_, ok = th.PopCall()
	assert.False(t, ok)
}
