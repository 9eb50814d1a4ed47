package fork_test

import (
	"testing"

	"github.com/christophe-duc/lslengine/internal/bytecode"
	"github.com/christophe-duc/lslengine/internal/closure"
	"github.com/christophe-duc/lslengine/internal/fork"
	"github.com/christophe-duc/lslengine/internal/table"
	"github.com/christophe-duc/lslengine/internal/value"
	"github.com/christophe-duc/lslengine/internal/vmthread"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBaseThread(t *testing.T) *vmthread.Thread {
	t.Helper()

	proto := closure.NewProto("base.lsl")
	proto.Code = []bytecode.Instr{{Op: bytecode.OpReturn}}
	proto.MaxStackSize = 2

	globals := table.New()
	cl := closure.NewLClosure(proto, globals)
	globals.Set(value.String("main"), value.Value{Tag: value.TFunction, Fn: cl})
	globals.Set(value.String("counter"), value.Number(0))

	th := vmthread.New(globals, 0)
	th.EnsureStack(2)
	th.SetStackSlot(0, value.Value{Tag: value.TFunction, Fn: cl})
	th.PushCall(vmthread.CallInfo{Kind: vmthread.CallLua, Closure: cl, FuncSlot: 0})
	return th
}

func TestNewForkServerAnchorsBaseThread(t *testing.T) {
	base := newBaseThread(t)
	fs, err := fork.NewForkServer(base, nil)
	require.NoError(t, err)
	require.NotNil(t, fs)
}

func TestForkProducesIndependentThreadWithSameGlobals(t *testing.T) {
	base := newBaseThread(t)
	fs, err := fork.NewForkServer(base, nil)
	require.NoError(t, err)

	childA, err := fs.Fork(2)
	require.NoError(t, err)
	childB, err := fs.Fork(3)
	require.NoError(t, err)

	assert.Equal(t, 2, childA.MemCat)
	assert.Equal(t, 3, childB.MemCat)
	assert.NotSame(t, childA, childB)

	childA.Globals.Set(value.String("counter"), value.Number(1))
	assert.Equal(t, value.Number(0), childB.Globals.Get(value.String("counter")))
}

func TestForkSharesProtoIdentityWithBase(t *testing.T) {
	base := newBaseThread(t)
	fs, err := fork.NewForkServer(base, nil)
	require.NoError(t, err)

	child, err := fs.Fork(2)
	require.NoError(t, err)

	baseFn := base.Globals.Get(value.String("main")).Fn.(*closure.Closure)
	childFn := child.Globals.Get(value.String("main")).Fn.(*closure.Closure)
	assert.Same(t, baseFn.Proto, childFn.Proto, "forked children should share the base's already-loaded prototype, not a fresh copy")
}

func TestCheckpointDoesNotReplaceForkBase(t *testing.T) {
	base := newBaseThread(t)
	fs, err := fork.NewForkServer(base, nil)
	require.NoError(t, err)

	child, err := fs.Fork(2)
	require.NoError(t, err)
	child.Globals.Set(value.String("counter"), value.Number(42))

	data, err := fs.Checkpoint(child)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	restored, err := fs.Fork(2)
	require.NoError(t, err)
	assert.Equal(t, value.Number(0), restored.Globals.Get(value.String("counter")),
		"a fresh Fork should still come from the original base, not the checkpointed child")
}
