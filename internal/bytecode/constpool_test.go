package bytecode

import (
	"testing"

	"github.com/christophe-duc/lslengine/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstantPoolDedupes(t *testing.T) {
	p := NewConstantPool()
	i1, err := p.Add(value.Number(1))
	require.NoError(t, err)
	i2, err := p.Add(value.Number(1))
	require.NoError(t, err)
	assert.Equal(t, i1, i2)
	assert.Equal(t, 1, p.Len())
}

func TestReserveSmallIndexFitsKVariant(t *testing.T) {
	p := NewConstantPool()
	idx, err := p.ReserveSmallIndex(value.Number(1)) // the "one" constant for ++/--
	require.NoError(t, err)
	assert.True(t, FitsSmallIndex(idx))
}

func TestDistinctValuesGetDistinctIndices(t *testing.T) {
	p := NewConstantPool()
	i1, _ := p.Add(value.String("a"))
	i2, _ := p.Add(value.String("b"))
	assert.NotEqual(t, i1, i2)
}
