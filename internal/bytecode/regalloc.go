package bytecode

import "fmt"

// maxLocalsPerFunction mirrors the resource visitor's limit (§4.2): more
// than ~200 locals in one function is a translation error.
const maxLocalsPerFunction = 200

// ErrTooManyLocals is returned once a function declares more locals than
// the resource visitor allows.
var ErrTooManyLocals = fmt.Errorf("bytecode: too many locals in one function (max %d)", maxLocalsPerFunction)

// RegisterAllocator manages a function's virtual register stack: a fixed
// low zone [0, NLocals) for parameters and declared locals, and a
// grow-down temporary zone above it for expression evaluation.
type RegisterAllocator struct {
	numLocals int
	top       int // one past the highest temp register currently in use
	maxUsed   int
}

// NewRegisterAllocator reserves the low zone for numLocals parameters and
// locals.
func NewRegisterAllocator(numLocals int) (*RegisterAllocator, error) {
	if numLocals > maxLocalsPerFunction {
		return nil, ErrTooManyLocals
	}
	return &RegisterAllocator{numLocals: numLocals, top: numLocals, maxUsed: numLocals}, nil
}

// Local returns the fixed register index for the i-th parameter/local.
func (r *RegisterAllocator) Local(i int) int { return i }

// Alloc reserves one fresh temporary register above the local zone.
func (r *RegisterAllocator) Alloc() int {
	reg := r.top
	r.top++
	if r.top > r.maxUsed {
		r.maxUsed = r.top
	}
	return reg
}

// MaxStackSize returns the largest register index ever allocated, plus
// one — the Proto.MaxStackSize the VM needs to size the frame.
func (r *RegisterAllocator) MaxStackSize() int { return r.maxUsed }

// RegScope marks the current temp-zone top on entry and restores it on
// Close, releasing every temp register allocated inside the scope. This
// is how the emitter bounds register lifetime to one expression/statement
// without tracking individual frees.
type RegScope struct {
	ra      *RegisterAllocator
	savedTop int
}

// OpenScope begins a RegScope.
func (r *RegisterAllocator) OpenScope() *RegScope {
	return &RegScope{ra: r, savedTop: r.top}
}

// Close restores the allocator's temp-zone top to what it was when the
// scope was opened.
func (s *RegScope) Close() {
	s.ra.top = s.savedTop
}

// TargetRegScope lets a caller request that the next expression place its
// result directly in a specific register, eliding a final MOVE. The
// request is one-shot: Take() clears it so nested subexpressions don't
// accidentally reuse the same target.
type TargetRegScope struct {
	ra      *RegisterAllocator
	pending bool
	target  int
}

// NewTargetRegScope creates a scope with no pending request.
func (r *RegisterAllocator) NewTargetRegScope() *TargetRegScope {
	return &TargetRegScope{ra: r}
}

// Want registers target as the next expression's desired result register.
func (s *TargetRegScope) Want(target int) {
	s.pending = true
	s.target = target
}

// Take consumes the pending request, returning the requested register (and
// true), or allocates and returns a fresh temporary (and false) if no
// request was pending. Either way, the request is cleared so a nested
// expression does not see a stale target.
func (s *TargetRegScope) Take() (reg int, wasRequested bool) {
	if s.pending {
		s.pending = false
		return s.target, true
	}
	return s.ra.Alloc(), false
}

// Pending reports whether a target request is currently outstanding,
// without consuming it.
func (s *TargetRegScope) Pending() bool { return s.pending }
