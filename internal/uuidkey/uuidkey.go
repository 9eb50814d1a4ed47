// Package uuidkey implements UUID interning (§4.11): two weak-value tables
// per runtime, one keyed by uncompressed string form and one by the
// canonical 16-byte form, so that two scripts parsing the same key string
// end up pointing at the same interned instance and can compare by
// identity.
package uuidkey

import (
	"fmt"
	"sync"

	"github.com/christophe-duc/lslengine/internal/value"
)

// Key is an interned UUID. Constructing one from a well-formed 36-character
// canonical string ("xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx") produces a
// compressed instance backed by 16 raw bytes; any other string produces an
// uncompressed instance that only round-trips through its original text.
// Equality of two Keys is pointer identity after interning, matching the
// legacy key-as-string-with-pointer-equality semantics.
type Key struct {
	compressed bool
	bytes      [16]byte
	raw        string
}

// String reconstructs the canonical form from the binary bytes when
// compressed, or returns the original text otherwise.
func (k *Key) String() string {
	if !k.compressed {
		return k.raw
	}
	b := k.bytes
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

// Table interns UUID keys by their canonical string form. Entries are
// retained only as long as something else in the runtime still holds the
// *Key; this module approximates the legacy weak-table behaviour with
// ForgetUUID, an explicit eviction the host calls once it knows no live
// value references a key (e.g. after a persistence round-trip replaces
// every holder) rather than true GC-weak semantics, which Go does not
// expose without the unsafe/finalizer machinery the rest of this module
// avoids.
type Table struct {
	mu         sync.Mutex
	byString   map[string]*Key
	byCanon    map[[16]byte]*Key
}

// New creates an empty intern table.
func New() *Table {
	return &Table{
		byString: make(map[string]*Key),
		byCanon:  make(map[[16]byte]*Key),
	}
}

// Intern returns the interned Key for s, creating and registering one on
// first sight. A well-formed 36-character canonical string interns into
// the compressed table; anything else interns into the string table.
func (t *Table) Intern(s string) *Key {
	t.mu.Lock()
	defer t.mu.Unlock()

	if b, ok := parseCanonical(s); ok {
		if k, found := t.byCanon[b]; found {
			return k
		}
		k := &Key{compressed: true, bytes: b}
		t.byCanon[b] = k
		return k
	}
	if k, found := t.byString[s]; found {
		return k
	}
	k := &Key{raw: s}
	t.byString[s] = k
	return k
}

// ForgetUUID evicts k from whichever table holds it. Safe to call on a key
// that is not (or no longer) interned.
func (t *Table) ForgetUUID(k *Key) {
	if k == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if k.compressed {
		delete(t.byCanon, k.bytes)
		return
	}
	delete(t.byString, k.raw)
}

// ToValue wraps an interned Key as the tagged userdata LSL keys ride on.
func ToValue(k *Key) value.Value {
	return value.Value{Tag: value.TUserData, UD: &value.UserData{SubTag: value.SubTagKey, Data: k}}
}

// FromValue extracts the interned Key from a key-typed Value, or reports
// ok=false if v is not a key.
func FromValue(v value.Value) (*Key, bool) {
	if v.Tag != value.TUserData || v.UD == nil || v.UD.SubTag != value.SubTagKey {
		return nil, false
	}
	k, ok := v.UD.Data.(*Key)
	return k, ok
}

func parseCanonical(s string) ([16]byte, bool) {
	var out [16]byte
	if len(s) != 36 {
		return out, false
	}
	if s[8] != '-' || s[13] != '-' || s[18] != '-' || s[23] != '-' {
		return out, false
	}
	groups := []struct {
		start, end int
		dstStart   int
	}{
		{0, 8, 0},
		{9, 13, 4},
		{14, 18, 6},
		{19, 23, 8},
		{24, 36, 10},
	}
	for _, g := range groups {
		if err := decodeHexInto(out[g.dstStart:], s[g.start:g.end]); err != nil {
			return out, false
		}
	}
	return out, true
}

func decodeHexInto(dst []byte, hexStr string) error {
	if len(hexStr)%2 != 0 || len(hexStr)/2 > len(dst) {
		return fmt.Errorf("uuidkey: malformed hex group %q", hexStr)
	}
	for i := 0; i < len(hexStr)/2; i++ {
		hi, ok1 := hexDigit(hexStr[i*2])
		lo, ok2 := hexDigit(hexStr[i*2+1])
		if !ok1 || !ok2 {
			return fmt.Errorf("uuidkey: invalid hex digit in %q", hexStr)
		}
		dst[i] = hi<<4 | lo
	}
	return nil
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
