package vm

import (
	"testing"

	"github.com/christophe-duc/lslengine/internal/bytecode"
	"github.com/christophe-duc/lslengine/internal/closure"
	"github.com/christophe-duc/lslengine/internal/table"
	"github.com/christophe-duc/lslengine/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noImports struct{}

func (noImports) ResolveImport(string) (closure.NativeFunc, bool) { return nil, false }

func TestExecAddAndReturn(t *testing.T) {
	p := closure.NewProto("test")
	p.Constants = []value.Value{value.Number(1), value.Number(2)}
	p.MaxStackSize = 3
	p.Code = []bytecode.Instr{
		{Op: bytecode.OpLoadK, A: 0, B: 0},
		{Op: bytecode.OpLoadK, A: 1, B: 1},
		{Op: bytecode.OpAdd, A: 2, B: 0, C: 1},
		{Op: bytecode.OpReturn, A: 2, B: 1},
	}

	results, err := Exec(p, nil, table.New(), noImports{}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, value.Number(3), results[0])
}

func TestExecLoadsLSLInteger(t *testing.T) {
	p := closure.NewProto("test")
	p.Constants = []value.Value{value.Integer(1)}
	p.MaxStackSize = 1
	p.Code = []bytecode.Instr{
		{Op: bytecode.OpLoadK, A: 0, B: 0},
		{Op: bytecode.OpReturn, A: 0, B: 1},
	}
	results, err := Exec(p, nil, table.New(), noImports{}, nil)
	require.NoError(t, err)
	got, ok := results[0].AsInteger()
	require.True(t, ok)
	assert.Equal(t, int32(1), got)
}

func TestExecJumpIfNot(t *testing.T) {
	p := closure.NewProto("test")
	p.Constants = []value.Value{value.Number(10), value.Number(20)}
	p.MaxStackSize = 1
	p.Code = []bytecode.Instr{
		{Op: bytecode.OpLoadBool, A: 0, B: 0},    // false
		{Op: bytecode.OpJumpIfNot, A: 1, B: 0},   // skip next instr since false
		{Op: bytecode.OpLoadK, A: 0, B: 0},
		{Op: bytecode.OpLoadK, A: 0, B: 1},
		{Op: bytecode.OpReturn, A: 0, B: 1},
	}
	results, err := Exec(p, nil, table.New(), noImports{}, nil)
	require.NoError(t, err)
	assert.Equal(t, value.Number(20), results[0])
}
