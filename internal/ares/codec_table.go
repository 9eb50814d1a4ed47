package ares

import (
	"fmt"

	"github.com/christophe-duc/lslengine/internal/table"
	"github.com/christophe-duc/lslengine/internal/value"
)

// sameKey compares two table keys for identity by hand: value.Value embeds
// a []byte field, so it isn't comparable with ==, and keys are restricted
// to the variants table.Table accepts anyway (nil, number, string,
// boolean, vector, lightuserdata, table).
func sameKey(a, b value.Value) bool {
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case value.TNil:
		return true
	case value.TNumber:
		return a.Number == b.Number
	case value.TString:
		return a.Str == b.Str
	case value.TBoolean:
		return a.Bool == b.Bool
	case value.TVector:
		return a.Vec == b.Vec
	case value.TLightUserData:
		return a.LUD == b.LUD
	case value.TTable:
		return a.Table != nil && b.Table != nil && a.Table.TableIdentity() == b.Table.TableIdentity()
	default:
		return false
	}
}

// writeTableValue emits a table's metadata (array/hash dimensions, flags,
// metatable, recorded iteration order) followed by every live pair, array
// part first in index order, then the hash part in its current traversal
// order (§4.5 table layout, §9's "keys inserted in reverse order chain
// identically" note governs how readTableValue replays them).
func (w *Writer) writeTableValue(v value.Value) error {
	if err := w.writeByteTag(byte(value.TTable)); err != nil {
		return err
	}
	t, ok := v.Table.(*table.Table)
	if !ok {
		return fmt.Errorf("ares: table value does not implement the concrete table type")
	}

	if err := w.writeUint64(uint64(t.ArraySize())); err != nil {
		return err
	}
	if err := w.writeUint64(uint64(t.HashSize())); err != nil {
		return err
	}
	if err := w.writeBool(t.ReadOnly); err != nil {
		return err
	}
	if err := w.writeBool(t.SafeEnv); err != nil {
		return err
	}

	hasMeta := t.Metatable != nil
	if err := w.writeBool(hasMeta); err != nil {
		return err
	}
	if hasMeta {
		if err := w.writeValue(value.Value{Tag: value.TTable, Table: t.Metatable}); err != nil {
			return err
		}
	}

	for i := 1; i <= t.ArraySize(); i++ {
		w.path.pushIndex(i)
		elem := t.Get(value.Number(float64(i)))
		err := w.writeValue(elem)
		w.path.pop()
		if err != nil {
			return err
		}
	}

	hashOrder := t.HashOrder()
	if err := w.writeUint64(uint64(len(hashOrder))); err != nil {
		return err
	}
	for _, k := range hashOrder {
		if err := w.writeValue(k); err != nil {
			return err
		}
		if err := w.writeValue(t.Get(k)); err != nil {
			return err
		}
	}
	return nil
}

// readTableValue is writeTableValue's mirror. Hash pairs are inserted in
// reverse of the recorded order because a hash table's internal chaining
// tends to reproduce the original bucket order that way; afterward, if the
// restored table's natural traversal order still doesn't match what was
// recorded, OverrideIterOrder pins it explicitly.
func (r *Reader) readTableValue() (value.Value, error) {
	t := table.New()
	out := value.Value{Tag: value.TTable, Table: t}
	r.registerRef(out)

	arraySize, err := r.readUint64()
	if err != nil {
		return value.Nil, err
	}
	hashSize, err := r.readUint64()
	if err != nil {
		return value.Nil, err
	}
	ro, err := r.readBool()
	if err != nil {
		return value.Nil, err
	}
	se, err := r.readBool()
	if err != nil {
		return value.Nil, err
	}
	t.ReadOnly = ro
	t.SafeEnv = se

	hasMeta, err := r.readBool()
	if err != nil {
		return value.Nil, err
	}
	if hasMeta {
		mv, err := r.readValue()
		if err != nil {
			return value.Nil, err
		}
		if mt, ok := mv.Table.(*table.Table); ok {
			t.Metatable = mt
		}
	}

	for i := 1; i <= int(arraySize); i++ {
		elem, err := r.readValue()
		if err != nil {
			return value.Nil, err
		}
		t.Set(value.Number(float64(i)), elem)
	}

	nPairs, err := r.readUint64()
	if err != nil {
		return value.Nil, err
	}
	recorded := make([]tablePair, nPairs)
	for i := range recorded {
		k, err := r.readValue()
		if err != nil {
			return value.Nil, err
		}
		v, err := r.readValue()
		if err != nil {
			return value.Nil, err
		}
		recorded[i] = tablePair{k, v}
	}
	for i := len(recorded) - 1; i >= 0; i-- {
		t.Set(recorded[i].K, recorded[i].V)
	}

	t.Resize(int(arraySize), int(hashSize))

	if order, ok := computeIterOverride(recorded, t); ok {
		t.OverrideIterOrder(order)
	}

	return out, nil
}

// tablePair is one recorded hash-part key/value pair, in the order it was
// persisted.
type tablePair struct{ K, V value.Value }

// computeIterOverride compares the order table pairs were originally
// recorded in against the order the restored table now naturally yields
// them, returning the permutation OverrideIterOrder needs to pin the
// original order back in place, or ok=false if they already match.
func computeIterOverride(recorded []tablePair, t *table.Table) ([]int, bool) {
	natural := t.HashOrder()
	if len(natural) != len(recorded) {
		return nil, false
	}
	order := make([]int, len(natural))
	matches := true
	for naturalPos, k := range natural {
		recordedPos := -1
		for i, p := range recorded {
			if sameKey(p.K, k) {
				recordedPos = i
				break
			}
		}
		if recordedPos < 0 {
			return nil, false
		}
		order[recordedPos] = naturalPos
		if recordedPos != naturalPos {
			matches = false
		}
	}
	if matches {
		return nil, false
	}
	return order, true
}
