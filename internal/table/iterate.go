package table

import "github.com/christophe-duc/lslengine/internal/value"

// liveKeys returns the hash-part keys currently visible to iteration
// (tombstones excluded), in the table's natural insertion order.
func (t *Table) liveKeys() []hashKey {
	live := make([]hashKey, 0, len(t.keys))
	for _, hk := range t.keys {
		if n := t.hash[hk]; n != nil && n.Key.Tag != value.TNil {
			live = append(live, hk)
		}
	}
	return live
}

// orderedKeys applies the frozen iterOrder, if any, to liveKeys: iterOrder
// maps a live-key position to the position it should occupy in traversal.
func (t *Table) orderedKeys() []hashKey {
	live := t.liveKeys()
	if len(t.iterOrder) == 0 || len(t.iterOrder) != len(live) {
		return live
	}
	out := make([]hashKey, len(live))
	for pos, target := range t.iterOrder {
		if target < 0 || target >= len(out) {
			return live // stale order, ignore rather than panic
		}
		out[target] = live[pos]
	}
	return out
}

// OverrideIterOrder freezes hash-part traversal order to the given
// permutation (one entry per currently-live hash node, in liveKeys()
// order, each naming the traversal position it should occupy). This is
// luaH_overrideiterorder: called by the persister on read when the
// restored node ordering differs from the recorded one, so that a
// subsequent pairs() sees the original sequence. Any later Set call,
// including one that only replaces a value, drops the override; Get
// never does.
func (t *Table) OverrideIterOrder(order []int) {
	t.iterOrder = append([]int(nil), order...)
}

// HashOrder returns the hash part's keys in current traversal order
// (the frozen iterOrder if one is active, else insertion order) —
// persistence uses this to detect whether a restored table's natural
// chaining order matches the order it originally recorded.
func (t *Table) HashOrder() []value.Value {
	ordered := t.orderedKeys()
	out := make([]value.Value, len(ordered))
	for i, hk := range ordered {
		if n, ok := t.hash[hk]; ok {
			out[i] = n.Key
		}
	}
	return out
}

// Next implements stateless iteration: given the previous key (value.Nil to
// start), returns the next key/value pair, or (Nil, Nil, false) when
// iteration is exhausted. Iterates the array part first (in index order),
// then the hash part (in iterOrder, if frozen, else insertion order).
func (t *Table) Next(prev value.Value) (k, v value.Value, ok bool) {
	arrLen := len(t.array)

	arrIndex := 0
	if prev.Tag == value.TNil {
		arrIndex = 0
	} else if prev.Tag == value.TNumber {
		idx := int(prev.Number)
		if float64(idx) == prev.Number && idx >= 1 && idx <= arrLen {
			arrIndex = idx
		} else {
			return t.nextHash(prev, nil)
		}
	} else {
		return t.nextHash(prev, nil)
	}

	for arrIndex < arrLen {
		if t.array[arrIndex].Tag != value.TNil {
			return value.Number(float64(arrIndex + 1)), t.array[arrIndex], true
		}
		arrIndex++
	}
	return t.nextHash(value.Nil, t.orderedKeys())
}

func (t *Table) nextHash(prev value.Value, ordered []hashKey) (value.Value, value.Value, bool) {
	if ordered == nil {
		ordered = t.orderedKeys()
	}
	startAt := 0
	if prev.Tag != value.TNil {
		prevKey, ok := keyOf(prev)
		if !ok {
			return value.Nil, value.Nil, false
		}
		found := -1
		for i, hk := range ordered {
			if hk == prevKey {
				found = i
				break
			}
		}
		if found < 0 {
			return value.Nil, value.Nil, false
		}
		startAt = found + 1
	}
	if startAt >= len(ordered) {
		return value.Nil, value.Nil, false
	}
	hk := ordered[startAt]
	n := t.hash[hk]
	return n.Key, n.Val, true
}
