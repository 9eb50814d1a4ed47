// Package vmthread implements the coroutine model (§3.4): a value stack, a
// call-info stack, an open-upvalue list threaded through the stack, a
// status, a globals table and a memory-category tag.
package vmthread

import (
	"sync/atomic"

	"github.com/christophe-duc/lslengine/internal/closure"
	"github.com/christophe-duc/lslengine/internal/table"
	"github.com/christophe-duc/lslengine/internal/value"
	deadlock "github.com/sasha-s/go-deadlock"
)

var threadSeq uint64

// Status is the coroutine's run state.
type Status uint8

const (
	StatusOK Status = iota
	StatusYielded
	StatusErrored
	StatusFinished
	StatusBroken
)

// CallKind distinguishes an L-closure frame, a C-closure frame, or (at the
// bottom of the stack) no frame at all.
type CallKind uint8

const (
	CallNone CallKind = iota
	CallLua
	CallC
)

// CallInfo is one active call frame.
type CallInfo struct {
	FuncSlot  int
	Base      int
	Top       int
	NResults  int
	SavedPC   int // meaningful only for CallLua frames
	Kind      CallKind
	Flags     uint8
	Closure   *closure.Closure
}

// Thread is a coroutine: the VM's unit of execution and the unit the
// persistence engine freezes and resurrects.
//
// Access is guarded by a deadlock-detecting mutex even though the engine
// is cooperatively single-threaded per script (§5): the host may still
// call Resume from one goroutine while a fork-server checkpoint reads the
// same thread from another, and the mutex turns that race into a detected
// deadlock/log line during `go test -race` rather than silent corruption.
// It is a defensive boundary, not a concurrency model.
type Thread struct {
	mu deadlock.Mutex

	identity uintptr

	Stack    []value.Value
	CallInfo []CallInfo
	OpenUV   []*closure.Upvalue // threaded through the stack, sorted by Index
	Status   Status
	Globals  *table.Table
	MemCat   int // 0 = system, >=2 = user
}

// New creates a fresh thread with the given globals table and memory
// category.
func New(globals *table.Table, memCat int) *Thread {
	return &Thread{
		identity: uintptr(atomic.AddUint64(&threadSeq, 1)),
		Globals:  globals,
		MemCat:   memCat,
		Stack:    make([]value.Value, 0, 64),
	}
}

// ThreadIdentity implements closure.StackHost and gives the persister a
// stable identity key.
func (t *Thread) ThreadIdentity() uintptr { return t.identity }

// StackSlot implements closure.StackHost.
func (t *Thread) StackSlot(index int) value.Value {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.Stack) {
		return value.Nil
	}
	return t.Stack[index]
}

// SetStackSlot implements closure.StackHost.
func (t *Thread) SetStackSlot(index int, v value.Value) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for len(t.Stack) <= index {
		t.Stack = append(t.Stack, value.Nil)
	}
	t.Stack[index] = v
}

// EnsureStack grows the stack to at least n slots.
func (t *Thread) EnsureStack(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for len(t.Stack) < n {
		t.Stack = append(t.Stack, value.Nil)
	}
}

// FindOpenUpvalue returns the open upvalue at index if one already exists,
// so that two closures capturing the same local share it.
func (t *Thread) FindOpenUpvalue(index int) *closure.Upvalue {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, uv := range t.OpenUV {
		if uv.Open && uv.Index == index {
			return uv
		}
	}
	return nil
}

// OpenUpvalueAt returns the existing open upvalue at index, creating one if
// none exists yet.
func (t *Thread) OpenUpvalueAt(index int) *closure.Upvalue {
	if uv := t.FindOpenUpvalue(index); uv != nil {
		return uv
	}
	uv := closure.NewOpenUpvalue(t, index)
	t.mu.Lock()
	t.OpenUV = append(t.OpenUV, uv)
	t.mu.Unlock()
	return uv
}

// CloseUpvaluesFrom closes every open upvalue at or above index, as
// happens when the thread unwinds past their stack slots (a block or
// function returns).
func (t *Thread) CloseUpvaluesFrom(index int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.OpenUV[:0]
	for _, uv := range t.OpenUV {
		if uv.Open && uv.Index >= index {
			uv.Close()
			continue
		}
		kept = append(kept, uv)
	}
	t.OpenUV = kept
}

// PushCall pushes a new call frame.
func (t *Thread) PushCall(ci CallInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.CallInfo = append(t.CallInfo, ci)
}

// PopCall pops the current call frame, closing any upvalues that pointed
// into it.
func (t *Thread) PopCall() (CallInfo, bool) {
	t.mu.Lock()
	if len(t.CallInfo) == 0 {
		t.mu.Unlock()
		return CallInfo{}, false
	}
	ci := t.CallInfo[len(t.CallInfo)-1]
	t.CallInfo = t.CallInfo[:len(t.CallInfo)-1]
	t.mu.Unlock()
	t.CloseUpvaluesFrom(ci.Base)
	return ci, true
}

// Current returns the active call frame, if any.
func (t *Thread) Current() (CallInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.CallInfo) == 0 {
		return CallInfo{}, false
	}
	return t.CallInfo[len(t.CallInfo)-1], true
}
