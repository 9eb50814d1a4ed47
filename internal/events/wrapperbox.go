package events

import (
	"github.com/christophe-duc/lslengine/internal/closure"
	"github.com/christophe-duc/lslengine/internal/table"
	"github.com/christophe-duc/lslengine/internal/value"
)

// wrapperBox gives a registration identity independent of the handler
// closure itself: a single-element readonly table, per §4.9, so the same
// closure registered twice for the same event produces two independently
// removable entries. internal marks a registration the engine itself made
// (the timer manager's "timer" listener) so Listeners can hide it behind
// an inert guard rather than the real closure.
type wrapperBox struct {
	slot     *table.Table
	internal bool
}

func newWrapperBox(handler value.Value, internal bool) *wrapperBox {
	t := table.New()
	t.Set(value.Number(1), handler)
	t.ReadOnly = true
	return &wrapperBox{slot: t, internal: internal}
}

func (b *wrapperBox) handler() value.Value {
	return b.slot.Get(value.Number(1))
}

// inertGuard is substituted for an internal registration's handler when a
// caller asks Listeners for the current list, so user code can observe
// that something is listening without being able to drive it directly.
var inertGuard = closure.NewCClosure(func(args []value.Value) ([]value.Value, error) { return nil, nil })

func inertGuardValue() value.Value {
	return value.Value{Tag: value.TFunction, Fn: inertGuard}
}

// newOnceClosure wraps a native Go function as the TFunction value Once
// registers; it exists only so Manager.Once doesn't reach into the
// closure package directly for a one-line allocation.
func newOnceClosure(fn closure.NativeFunc) value.Value {
	return value.Value{Tag: value.TFunction, Fn: closure.NewCClosure(fn)}
}

// sameHandler compares two handler values by the identity that matters
// for Off: the underlying closure pointer. Handlers are always
// TFunction values produced by the compiler or the host, never bare data.
func sameHandler(a, b value.Value) bool {
	if a.Tag != value.TFunction || b.Tag != value.TFunction {
		return false
	}
	ca, _ := a.Fn.(*closure.Closure)
	cb, _ := b.Fn.(*closure.Closure)
	return ca != nil && ca == cb
}
