// Package table implements the array+hash table described in the data
// model: a dense array part covering slots 1..N, a hash part for
// everything else, an optional iteration-order override, and the
// readonly/safeenv flags carried by every table.
package table

import (
	"sync/atomic"

	"github.com/christophe-duc/lslengine/internal/value"
)

var identitySeq uint64

func nextIdentity() uintptr {
	return uintptr(atomic.AddUint64(&identitySeq, 1))
}

// node is a hash-part key/value pair. A tombstone is a node whose Key is
// nil; dead keys are invisible to iteration.
type node struct {
	Key   value.Value
	Val   value.Value
	order int // insertion position; not consulted by iteration
}

// Table is the array+hash table value.
type Table struct {
	identity uintptr

	array []value.Value // 1-based logically; array[i] holds slot i+1
	hash  map[hashKey]*node
	keys  []hashKey // insertion-stable key list for default iteration

	Metatable *Table
	ReadOnly  bool
	SafeEnv   bool

	// iterOrder maps a node's position (by index into keys, post-filter of
	// tombstones) to a forced traversal position. It freezes iteration
	// order until the table is mutated in a way that invalidates it.
	iterOrder []int
}

// hashKey is a comparable projection of value.Value suitable for use as a
// Go map key. Only the variants that can legally be table keys need be
// represented.
type hashKey struct {
	tag  value.Tag
	num  float64
	str  string
	vec  value.Vector
	ptr  uintptr
}

func keyOf(v value.Value) (hashKey, bool) {
	switch v.Tag {
	case value.TNil:
		return hashKey{}, false
	case value.TNumber:
		return hashKey{tag: v.Tag, num: v.Number}, true
	case value.TString:
		return hashKey{tag: v.Tag, str: v.Str}, true
	case value.TBoolean:
		return hashKey{tag: v.Tag, num: float64(v.Bool)}, true
	case value.TVector:
		return hashKey{tag: v.Tag, vec: v.Vec}, true
	case value.TLightUserData:
		return hashKey{tag: v.Tag, ptr: v.LUD.Payload, num: float64(v.LUD.Tag8)}, true
	case value.TTable:
		if t, ok := v.Table.(*Table); ok {
			return hashKey{tag: v.Tag, ptr: t.identity}, true
		}
		return hashKey{}, false
	default:
		// Userdata, functions, threads and any other tag are not usable
		// as keys: Set ignores them and Get returns Nil.
		return hashKey{}, false
	}
}

// New creates an empty table.
func New() *Table {
	return &Table{identity: nextIdentity(), hash: make(map[hashKey]*node)}
}

// TableIdentity implements value.Tabler.
func (t *Table) TableIdentity() uintptr { return t.identity }

// Len returns the array part's length with trailing nils trimmed: slot N
// is non-nil, though an earlier slot may hold nil.
func (t *Table) Len() int {
	n := len(t.array)
	for n > 0 && t.array[n-1].Tag == value.TNil {
		n--
	}
	return n
}

// Get retrieves the value at key k, or value.Nil if absent.
func (t *Table) Get(k value.Value) value.Value {
	if k.Tag == value.TNumber {
		if idx := int(k.Number); float64(idx) == k.Number && idx >= 1 && idx <= len(t.array) {
			return t.array[idx-1]
		}
	}
	hk, ok := keyOf(k)
	if !ok {
		return value.Nil
	}
	if n, found := t.hash[hk]; found && n.Key.Tag != value.TNil {
		return n.Val
	}
	return value.Nil
}

// Set stores v at key k. Setting value.Nil removes the key (turning a hash
// node into a tombstone, or storing nil in the array slot; the array part
// never shrinks, Len just trims trailing nils).
func (t *Table) Set(k, v value.Value) {
	t.iterOrder = nil // every Set, even a plain value update, drops a frozen order

	if k.Tag == value.TNumber {
		idx := int(k.Number)
		if float64(idx) == k.Number && idx >= 1 {
			t.setArray(idx, v)
			return
		}
	}
	hk, ok := keyOf(k)
	if !ok {
		return
	}
	if v.Tag == value.TNil {
		if n, found := t.hash[hk]; found {
			n.Key = value.Nil // tombstone
		}
		return
	}
	if n, found := t.hash[hk]; found {
		n.Key = k // revives a tombstone
		n.Val = v
		return
	}
	n := &node{Key: k, Val: v, order: len(t.keys)}
	t.hash[hk] = n
	t.keys = append(t.keys, hk)
}

func (t *Table) setArray(idx int, v value.Value) {
	if idx <= len(t.array) {
		t.array[idx-1] = v
		return
	}
	if v.Tag == value.TNil {
		hk := hashKey{tag: value.TNumber, num: float64(idx)}
		if n, found := t.hash[hk]; found {
			n.Key = value.Nil // tombstone
		}
		return
	}
	if idx == len(t.array)+1 {
		t.array = append(t.array, v)
		// Migrate any contiguous hash-part successors into the array, the
		// way growing an array part absorbs adjacent integer keys.
		for {
			nextKey := hashKey{tag: value.TNumber, num: float64(len(t.array) + 1)}
			n, found := t.hash[nextKey]
			if !found || n.Key.Tag == value.TNil {
				break
			}
			t.array = append(t.array, n.Val)
			n.Key = value.Nil
		}
		return
	}
	// Sparse: goes into the hash part keyed by number.
	hk := hashKey{tag: value.TNumber, num: float64(idx)}
	if n, found := t.hash[hk]; found {
		n.Val = v
		n.Key = value.Number(float64(idx))
		return
	}
	t.hash[hk] = &node{Key: value.Number(float64(idx)), Val: v, order: len(t.keys)}
	t.keys = append(t.keys, hk)
}

// ArraySize returns the raw capacity of the array part, including any
// trailing nils Len() would trim — persistence records this dimension
// rather than the logical length so a restored table's array part grows
// back to the same size before any values are reinserted.
func (t *Table) ArraySize() int { return len(t.array) }

// HashSize returns the number of hash-part slots, tombstones included —
// the other dimension persistence's table header records.
func (t *Table) HashSize() int { return len(t.keys) }

// Resize grows/truncates the array and hash parts to the recorded
// dimensions, as persistence does on read after inserting every pair.
func (t *Table) Resize(arraySize, hashHint int) {
	for len(t.array) < arraySize {
		t.array = append(t.array, value.Nil)
	}
	_ = hashHint // map growth is amortized by Go's runtime; no pre-size API needed
}
