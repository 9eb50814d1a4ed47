package engine

import (
	"github.com/christophe-duc/lslengine/internal/closure"
	"github.com/christophe-duc/lslengine/internal/value"
	"github.com/christophe-duc/lslengine/internal/vm"
	"golang.org/x/xerrors"
)

// ErrNoThreadVM is returned by invoke when asked to run an L closure
// (compiled LSL code) before any unit has been loaded, so there is no
// thread whose globals it could run against. Even with a thread loaded,
// this module's vm.Exec only dispatches calls that resolve to native closures (§19
// clarification: it is a minimal interpreter sufficient to exercise the
// emitter's output, not a general-purpose register VM), so an event or
// timer handler that is itself LSL-compiled can only be invoked if every
// call it makes in turn bottoms out in a builtin or host native.
var ErrNoThreadVM = xerrors.New("engine: no loaded thread to run an LSL closure against")

// invoke is the events.Invoker/timers-compatible dispatch function every
// subsystem built by NewEngine is handed: a native (host-registered or
// builtin) closure runs directly, an LSL-compiled closure runs through
// vm.Exec against the currently loaded thread's globals and this
// engine's import resolver.
func (e *Engine) invoke(handler value.Value, args []value.Value) ([]value.Value, error) {
	if handler.Tag != value.TFunction {
		return nil, xerrors.Errorf("engine: invoke: not a function value (%s)", handler.Tag)
	}
	cl, ok := handler.Fn.(*closure.Closure)
	if !ok || cl == nil {
		return nil, xerrors.New("engine: invoke: malformed closure value")
	}

	switch cl.Kind {
	case closure.KindC:
		return cl.Native(args)
	case closure.KindL:
		e.mu.Lock()
		th := e.thread
		paths := e.importPaths
		e.mu.Unlock()
		if th == nil {
			return nil, ErrNoThreadVM
		}
		return vm.Exec(cl.Proto, args, th.Globals, e.resolver(), paths)
	default:
		return nil, xerrors.Errorf("engine: invoke: unknown closure kind %d", cl.Kind)
	}
}
