package ares_test

import (
	"testing"

	"github.com/christophe-duc/lslengine/internal/ares"
	"github.com/christophe-duc/lslengine/internal/bytecode"
	"github.com/christophe-duc/lslengine/internal/closure"
	"github.com/christophe-duc/lslengine/internal/table"
	"github.com/christophe-duc/lslengine/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, v value.Value, opts ares.Options) value.Value {
	t.Helper()
	data, err := ares.Persist(v, nil, opts)
	require.NoError(t, err)
	out, err := ares.Unpersist(data, nil, opts)
	require.NoError(t, err)
	return out
}

func TestRoundTripSimpleValues(t *testing.T) {
	cases := []value.Value{
		value.Nil,
		value.Boolean(true),
		value.Boolean(false),
		value.Number(3.5),
		value.String("hello"),
		value.VectorValue(value.Vector{X: 1, Y: 2, Z: 3}),
		value.Integer(-42),
	}
	for _, in := range cases {
		out := roundTrip(t, in, ares.Options{})
		assert.Equal(t, in.Tag, out.Tag)
		switch in.Tag {
		case value.TNumber:
			assert.Equal(t, in.Number, out.Number)
		case value.TString:
			assert.Equal(t, in.Str, out.Str)
		case value.TBoolean:
			assert.Equal(t, in.Bool, out.Bool)
		case value.TVector:
			assert.Equal(t, in.Vec, out.Vec)
		case value.TLightUserData:
			assert.Equal(t, in.LUD, out.LUD)
		}
	}
}

func TestRoundTripTableWithCycle(t *testing.T) {
	tbl := table.New()
	tbl.Set(value.Number(1), value.String("first"))
	tbl.Set(value.String("self"), value.Value{Tag: value.TTable, Table: tbl})

	out := roundTrip(t, value.Value{Tag: value.TTable, Table: tbl}, ares.Options{})
	require.Equal(t, value.TTable, out.Tag)
	got, ok := out.Table.(*table.Table)
	require.True(t, ok)

	assert.Equal(t, value.String("first"), got.Get(value.Number(1)))

	self := got.Get(value.String("self"))
	require.Equal(t, value.TTable, self.Tag)
	selfTable, ok := self.Table.(*table.Table)
	require.True(t, ok)
	assert.Same(t, got, selfTable)
}

func TestRoundTripSharedTableIdentity(t *testing.T) {
	shared := table.New()
	shared.Set(value.Number(1), value.Number(99))

	outer := table.New()
	outer.Set(value.Number(1), value.Value{Tag: value.TTable, Table: shared})
	outer.Set(value.Number(2), value.Value{Tag: value.TTable, Table: shared})

	out := roundTrip(t, value.Value{Tag: value.TTable, Table: outer}, ares.Options{})
	got := out.Table.(*table.Table)
	a := got.Get(value.Number(1)).Table.(*table.Table)
	b := got.Get(value.Number(2)).Table.(*table.Table)
	assert.Same(t, a, b)
}

func TestRoundTripClosureSharesUpvalueAcrossTwoClosures(t *testing.T) {
	proto := closure.NewProto("script")
	proto.Code = []bytecode.Instr{{Op: bytecode.OpReturn}}
	proto.MaxStackSize = 2
	proto.NumUpvalues = 1

	uv := closure.NewClosedUpvalue(value.Number(7))
	env := table.New()
	clA := closure.NewLClosure(proto, env, uv)
	clB := closure.NewLClosure(proto, env, uv)

	holder := table.New()
	holder.Set(value.Number(1), value.Value{Tag: value.TFunction, Fn: clA})
	holder.Set(value.Number(2), value.Value{Tag: value.TFunction, Fn: clB})

	out := roundTrip(t, value.Value{Tag: value.TTable, Table: holder}, ares.Options{})
	got := out.Table.(*table.Table)
	fnA := got.Get(value.Number(1)).Fn.(*closure.Closure)
	fnB := got.Get(value.Number(2)).Fn.(*closure.Closure)

	assert.Same(t, fnA.Proto, fnB.Proto)
	require.Len(t, fnA.Upvalues, 1)
	require.Len(t, fnB.Upvalues, 1)
	assert.Same(t, fnA.Upvalues[0], fnB.Upvalues[0])
	assert.Equal(t, value.Number(7), fnA.Upvalues[0].Get())
}

func TestPersistPermanentShortCircuitsNativeClosure(t *testing.T) {
	native := closure.NewCClosure(func(args []value.Value) ([]value.Value, error) { return nil, nil })
	v := value.Value{Tag: value.TFunction, Fn: native}

	perms := ares.NewPermanentsTable()
	perms.Register(native, "host/myfunc")

	data, err := ares.Persist(v, perms, ares.Options{})
	require.NoError(t, err)

	unperms := ares.NewUnpermanentsTable()
	unperms.Register("host/myfunc", v)

	out, err := ares.Unpersist(data, unperms, ares.Options{})
	require.NoError(t, err)
	assert.Equal(t, value.TFunction, out.Tag)
	assert.Same(t, native, out.Fn.(*closure.Closure))
}

func TestPersistUnknownPermanentFails(t *testing.T) {
	native := closure.NewCClosure(func(args []value.Value) ([]value.Value, error) { return nil, nil })
	v := value.Value{Tag: value.TFunction, Fn: native}

	_, err := ares.Persist(v, nil, ares.Options{})
	assert.ErrorIs(t, err, ares.ErrUnknownPermanent)
}

func TestPersistComplexityBoundRejectsDeepNesting(t *testing.T) {
	var root *table.Table
	var cur *table.Table
	for i := 0; i < 10; i++ {
		next := table.New()
		if cur != nil {
			cur.Set(value.Number(1), value.Value{Tag: value.TTable, Table: next})
		} else {
			root = next
		}
		cur = next
	}

	_, err := ares.Persist(value.Value{Tag: value.TTable, Table: root}, nil, ares.Options{MaxComplexity: 3})
	assert.ErrorIs(t, err, ares.ErrComplexityExceeded)
}

func TestUnpersistRejectsBadHeader(t *testing.T) {
	_, err := ares.Unpersist([]byte("not a stream"), nil, ares.Options{})
	assert.Error(t, err)
}
