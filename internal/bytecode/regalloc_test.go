package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegScopeRestoresTop(t *testing.T) {
	ra, err := NewRegisterAllocator(2)
	require.NoError(t, err)

	scope := ra.OpenScope()
	a := ra.Alloc()
	b := ra.Alloc()
	assert.Equal(t, 2, a)
	assert.Equal(t, 3, b)
	scope.Close()

	c := ra.Alloc()
	assert.Equal(t, 2, c, "temp registers released by the scope must be reused")
}

func TestTargetRegScopeElidesMove(t *testing.T) {
	ra, err := NewRegisterAllocator(1)
	require.NoError(t, err)
	trs := ra.NewTargetRegScope()

	trs.Want(0) // request the result land directly in local 0
	reg, requested := trs.Take()
	assert.Equal(t, 0, reg)
	assert.True(t, requested)

	// a second Take with no pending request allocates fresh
	reg2, requested2 := trs.Take()
	assert.False(t, requested2)
	assert.NotEqual(t, 0, reg2)
}

func TestTooManyLocalsRejected(t *testing.T) {
	_, err := NewRegisterAllocator(maxLocalsPerFunction + 1)
	assert.ErrorIs(t, err, ErrTooManyLocals)
}
