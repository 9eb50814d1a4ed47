package closure

import (
	"sync/atomic"

	"github.com/christophe-duc/lslengine/internal/value"
)

var upvalueSeq uint64

// StackHost is the subset of *vmthread.Thread an open upvalue needs:
// read/write access to one stack slot. Expressed as an interface so this
// package does not import vmthread (vmthread, in turn, creates upvalues
// when it closes them, which would be a cycle).
type StackHost interface {
	StackSlot(index int) value.Value
	SetStackSlot(index int, v value.Value)
	ThreadIdentity() uintptr
}

// Upvalue is the unit of variable identity for closures: two closures
// capturing the same local share the same Upvalue until that local is
// closed, at which point it copies the final value out of the stack and
// is never again read from it.
type Upvalue struct {
	ID uint64 // stable identity used by the persister to rehydrate sharing

	Open  bool
	Host  StackHost
	Index int
	value value.Value
}

// NewOpenUpvalue creates an upvalue still pointing into host's stack at
// index.
func NewOpenUpvalue(host StackHost, index int) *Upvalue {
	return &Upvalue{ID: atomic.AddUint64(&upvalueSeq, 1), Open: true, Host: host, Index: index}
}

// NewClosedUpvalue creates an upvalue that already owns its value (used
// when deserializing a closure whose upvalue was closed at persist time).
func NewClosedUpvalue(v value.Value) *Upvalue {
	return &Upvalue{ID: atomic.AddUint64(&upvalueSeq, 1), Open: false, value: v}
}

// Get reads the upvalue's current value, following the open stack slot if
// still open.
func (u *Upvalue) Get() value.Value {
	if u.Open {
		return u.Host.StackSlot(u.Index)
	}
	return u.value
}

// Set writes through to the open stack slot, or to the closed value once
// the upvalue no longer points into a thread's stack.
func (u *Upvalue) Set(v value.Value) {
	if u.Open {
		u.Host.SetStackSlot(u.Index, v)
		return
	}
	u.value = v
}

// Close detaches the upvalue from its thread's stack, copying out the
// final value. Called when the owning thread unwinds past Index.
func (u *Upvalue) Close() {
	if !u.Open {
		return
	}
	u.value = u.Host.StackSlot(u.Index)
	u.Open = false
	u.Host = nil
}
