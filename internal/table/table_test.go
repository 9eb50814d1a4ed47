package table

import (
	"testing"

	"github.com/christophe-duc/lslengine/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArrayLenInvariant(t *testing.T) {
	tb := New()
	tb.Set(value.Number(1), value.Number(10))
	tb.Set(value.Number(2), value.Number(20))
	tb.Set(value.Number(3), value.Number(30))
	assert.Equal(t, 3, tb.Len())

	tb.Set(value.Number(3), value.Nil)
	assert.Equal(t, 2, tb.Len())
}

func TestGetSetRoundTrip(t *testing.T) {
	tb := New()
	tb.Set(value.String("x"), value.Number(42))
	assert.Equal(t, value.Number(42), tb.Get(value.String("x")))
	assert.Equal(t, value.Nil, tb.Get(value.String("missing")))
}

func TestTombstonesInvisibleToIteration(t *testing.T) {
	tb := New()
	tb.Set(value.String("a"), value.Number(1))
	tb.Set(value.String("b"), value.Number(2))
	tb.Set(value.String("a"), value.Nil)

	seen := map[string]bool{}
	k, v, ok := tb.Next(value.Nil)
	for ok {
		seen[k.Str] = true
		_ = v
		k, v, ok = tb.Next(k)
	}
	assert.False(t, seen["a"])
	assert.True(t, seen["b"])
}

func TestIterOrderFrozenUntilMutation(t *testing.T) {
	tb := New()
	tb.Set(value.String("a"), value.Number(1))
	tb.Set(value.String("b"), value.Number(2))

	live := tb.liveKeys()
	require.Len(t, live, 2)
	// reverse the natural order
	tb.OverrideIterOrder([]int{1, 0})

	var order []string
	k, _, ok := tb.Next(value.Nil)
	for ok {
		order = append(order, k.Str)
		k, _, ok = tb.Next(k)
	}
	assert.Equal(t, []string{"b", "a"}, order)

	// any structural mutation invalidates the override
	tb.Set(value.String("c"), value.Number(3))
	order = nil
	k, _, ok = tb.Next(value.Nil)
	for ok {
		order = append(order, k.Str)
		k, _, ok = tb.Next(k)
	}
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestArrayAbsorbsContiguousHashSuccessor(t *testing.T) {
	tb := New()
	tb.Set(value.Number(1), value.Number(100))
	tb.Set(value.Number(3), value.Number(300)) // sparse, lands in hash part
	tb.Set(value.Number(2), value.Number(200)) // fills the gap, should absorb 3 too
	assert.Equal(t, 3, tb.Len())
	assert.Equal(t, value.Number(300), tb.Get(value.Number(3)))
}
