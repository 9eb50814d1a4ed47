package bytecode

import (
	"fmt"

	"github.com/christophe-duc/lslengine/internal/value"
)

// maxSmallIndex is one past the largest index an 8-bit K-variant opcode
// (LOADK/ADDK/SUBK/MULK/DIVK/MODK/IDIVK/SUBRK/DIVRK) can address.
const maxSmallIndex = 256

// maxConstants is the number of distinct indices a 16-bit constant
// reference can address (0 through 65535).
const maxConstants = 65536

// ErrTooManyConstants is returned once a pool would exceed maxConstants
// entries.
var ErrTooManyConstants = fmt.Errorf("bytecode: too many constants (max %d)", maxConstants)

type constKey struct {
	tag value.Tag
	num float64
	str string
}

func keyFor(v value.Value) constKey {
	switch v.Tag {
	case value.TNumber:
		return constKey{tag: v.Tag, num: v.Number}
	case value.TString:
		return constKey{tag: v.Tag, str: v.Str}
	case value.TBoolean:
		return constKey{tag: v.Tag, num: float64(v.Bool)}
	case value.TLightUserData:
		return constKey{tag: v.Tag, num: float64(v.LUD.Payload), str: fmt.Sprint(v.LUD.Tag8)}
	default:
		return constKey{tag: v.Tag, str: v.GoString()}
	}
}

// ConstantPool deduplicates constants by (tag, canonical bytes) and lets
// callers reserve low indices (<256) before any unreserved constant is
// added, so every K-variant opcode the emitter needs stays addressable
// with an 8-bit index.
type ConstantPool struct {
	values  []value.Value
	index   map[constKey]int
	smallUsed int // count of indices reserved in [0, maxSmallIndex)
}

// NewConstantPool creates an empty pool.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{index: make(map[constKey]int)}
}

// Add deduplicates v into the pool and returns its index.
func (p *ConstantPool) Add(v value.Value) (int, error) {
	k := keyFor(v)
	if idx, ok := p.index[k]; ok {
		return idx, nil
	}
	if len(p.values) >= maxConstants {
		return 0, ErrTooManyConstants
	}
	idx := len(p.values)
	p.values = append(p.values, v)
	p.index[k] = idx
	return idx, nil
}

// ReserveSmallIndex adds v (if not already present) while asserting it
// lands below maxSmallIndex — the resource visitor calls this for every
// constant it knows an 8-bit K-variant opcode will need (e.g. the "one"
// constant for ++/--) before the emitter adds anything else, so that low
// indices are never squeezed out by unrelated constants.
func (p *ConstantPool) ReserveSmallIndex(v value.Value) (int, error) {
	idx, err := p.Add(v)
	if err != nil {
		return 0, err
	}
	if idx >= maxSmallIndex {
		return 0, fmt.Errorf("bytecode: cannot reserve small index for constant, pool already has %d entries", idx)
	}
	return idx, nil
}

// FitsSmallIndex reports whether idx addresses within an 8-bit K-variant
// operand.
func FitsSmallIndex(idx int) bool { return idx >= 0 && idx < maxSmallIndex }

// Get returns the constant at idx.
func (p *ConstantPool) Get(idx int) value.Value {
	if idx < 0 || idx >= len(p.values) {
		return value.Nil
	}
	return p.values[idx]
}

// Len returns the number of constants in the pool.
func (p *ConstantPool) Len() int { return len(p.values) }

// Values returns the backing slice (for embedding into a Proto).
func (p *ConstantPool) Values() []value.Value {
	out := make([]value.Value, len(p.values))
	copy(out, p.values)
	return out
}
