package uuidkey

import "testing"

func TestCanonicalStringsInternToTheSamePointer(t *testing.T) {
	tbl := New()
	a := tbl.Intern("550e8400-e29b-41d4-a716-446655440000")
	b := tbl.Intern("550e8400-e29b-41d4-a716-446655440000")
	if a != b {
		t.Fatalf("expected identical interned pointer, got distinct instances")
	}
	if got := a.String(); got != "550e8400-e29b-41d4-a716-446655440000" {
		t.Fatalf("round-trip mismatch: got %q", got)
	}
}

func TestNonCanonicalStringInternsOnceAndPassesThroughUnchanged(t *testing.T) {
	tbl := New()
	a := tbl.Intern("not-a-uuid")
	b := tbl.Intern("not-a-uuid")
	if a != b {
		t.Fatalf("expected identical interned pointer for repeated raw string")
	}
	if a.String() != "not-a-uuid" {
		t.Fatalf("expected raw passthrough, got %q", a.String())
	}
}

func TestForgetUUIDEvictsFromTheOwningTable(t *testing.T) {
	tbl := New()
	k := tbl.Intern("550e8400-e29b-41d4-a716-446655440000")
	tbl.ForgetUUID(k)
	k2 := tbl.Intern("550e8400-e29b-41d4-a716-446655440000")
	if k == k2 {
		t.Fatalf("expected a fresh instance after eviction")
	}
}

func TestDifferentCasingInternsToTheSameCanonicalBytes(t *testing.T) {
	tbl := New()
	a := tbl.Intern("550E8400-E29B-41D4-A716-446655440000")
	b := tbl.Intern("550e8400-e29b-41d4-a716-446655440000")
	if a != b {
		t.Fatalf("expected case-insensitive canonical interning to collapse to one pointer")
	}
}
