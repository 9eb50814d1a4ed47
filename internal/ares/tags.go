package ares

import "github.com/christophe-duc/lslengine/internal/value"

// Wire tags beyond value.Tag's range (0-10): REFERENCE and PERMANENT are
// stream-level markers, not runtime value variants, so they live past
// TBuffer rather than colliding with it.
const (
	tcReference byte = 0x80 + iota
	tcPermanent
	tcProtoBody
	tcProtoPermanent
)

// closureKind distinguishes a native (host) closure, which persistence
// can only restore via the permanents table, from a Lua (LSL) closure,
// which persistence reconstructs from its prototype.
type closureKind byte

const (
	closureKindLua closureKind = iota
	closureKindNative
)

// userdataSubtagCode is the wire encoding of value.UserData.SubTag: the two
// subtags ares knows natively get short fixed codes, everything else is
// carried as its string name so a registered PayloadFactory can look it up.
type userdataSubtagCode byte

const (
	subtagCodeKey userdataSubtagCode = iota
	subtagCodeQuaternion
	subtagCodeRegistered
)

func subtagCodeOf(subTag string) userdataSubtagCode {
	switch subTag {
	case value.SubTagKey:
		return subtagCodeKey
	case value.SubTagQuaternion:
		return subtagCodeQuaternion
	default:
		return subtagCodeRegistered
	}
}
