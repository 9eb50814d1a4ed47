package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegerRoundTrip(t *testing.T) {
	cases := []int32{0, 1, -1, 2147483647, -2147483648}
	for _, c := range cases {
		v := Integer(c)
		require.Equal(t, TLightUserData, v.Tag)
		got, ok := v.AsInteger()
		require.True(t, ok)
		assert.Equal(t, c, got)
	}
}

func TestLSLTypeOf(t *testing.T) {
	assert.Equal(t, LSLInteger, LSLTypeOf(Integer(1)))
	assert.Equal(t, LSLFloat, LSLTypeOf(Number(1.5)))
	assert.Equal(t, LSLString, LSLTypeOf(String("hi")))
	assert.Equal(t, LSLVector, LSLTypeOf(VectorValue(Vector{1, 2, 3})))
	assert.Equal(t, LSLNull, LSLTypeOf(Nil))
}

func TestIsTruthy(t *testing.T) {
	assert.False(t, Nil.IsTruthy())
	assert.False(t, Boolean(false).IsTruthy())
	assert.True(t, Boolean(true).IsTruthy())
	assert.True(t, Number(0).IsTruthy())
	assert.True(t, String("").IsTruthy())
}

func TestIsSimpleBypassesReferenceTable(t *testing.T) {
	assert.True(t, Nil.IsSimple())
	assert.True(t, Boolean(true).IsSimple())
	assert.True(t, Number(1).IsSimple())
	assert.True(t, VectorValue(Vector{}).IsSimple())
	assert.True(t, Integer(5).IsSimple())
	assert.False(t, String("x").IsSimple())
	assert.False(t, Buffer([]byte("x")).IsSimple())
}

func TestBooleanCarriesIntRepresentation(t *testing.T) {
	// Booleans carry a 32-bit int representation, not merely 0/1.
	b := Boolean(true)
	assert.Equal(t, int32(1), b.Bool)
	b = Boolean(false)
	assert.Equal(t, int32(0), b.Bool)
}
