package engine

import (
	"strings"

	"github.com/christophe-duc/lslengine/internal/closure"
	"github.com/christophe-duc/lslengine/internal/quat"
	"github.com/christophe-duc/lslengine/internal/table"
	"github.com/christophe-duc/lslengine/internal/value"
	"github.com/christophe-duc/lslengine/internal/vm"
	"golang.org/x/xerrors"
)

// nativeFn is the shape RegisterNative and the built-in resolver both
// traffic in; closure.NativeFunc has the identical signature, and
// nativeFn is this package's own name for it.
type nativeFn func(args []value.Value) ([]value.Value, error)

// ErrNotAnInteger is returned by a bit32.* builtin given a non-integer
// argument.
var ErrNotAnInteger = xerrors.New("engine: bit32 argument is not an LSL integer")

// resolver adapts Engine to vm.ImportResolver: GETIMPORT paths resolve,
// in order, to the bit32.*/lsl.* runtime helpers the emitter targets
// directly, then to whatever the host registered via RegisterNative
// under the bare name following "lsl." (the `ll.*` builtin library,
// §19 non-goals — registered as opaque permanents, this module supplies
// only the resolution contract).
type resolver struct{ e *Engine }

func (e *Engine) resolver() vm.ImportResolver { return resolver{e: e} }

func (r resolver) ResolveImport(path string) (closure.NativeFunc, bool) {
	if fn, ok := builtinImports[path]; ok {
		return func(args []value.Value) ([]value.Value, error) { return fn(r.e, args) }, true
	}
	if path == "lsl.print" {
		return func(args []value.Value) ([]value.Value, error) {
			r.e.mu.Lock()
			r.e.yields = append(r.e.yields, args...)
			r.e.mu.Unlock()
			return nil, nil
		}, true
	}
	if name, ok := strings.CutPrefix(path, "lsl."); ok {
		r.e.mu.Lock()
		fn, ok := r.e.natives[name]
		r.e.mu.Unlock()
		if ok {
			return fn, true
		}
	}
	return nil, false
}

// builtinImports is the fixed set of runtime helpers the emitter's
// GETIMPORT targets directly rather than through a host-registered
// native (§4.4, §4.9 bitwise decision table; §4.4 member-assignment
// read-modify-write; §4.2 state-change).
var builtinImports = map[string]func(e *Engine, args []value.Value) ([]value.Value, error){
	"bit32.band":    func(e *Engine, a []value.Value) ([]value.Value, error) { return bit32Binary(a, func(x, y int32) int32 { return x & y }) },
	"bit32.bor":     func(e *Engine, a []value.Value) ([]value.Value, error) { return bit32Binary(a, func(x, y int32) int32 { return x | y }) },
	"bit32.bxor":    func(e *Engine, a []value.Value) ([]value.Value, error) { return bit32Binary(a, func(x, y int32) int32 { return x ^ y }) },
	"bit32.lshift":  func(e *Engine, a []value.Value) ([]value.Value, error) { return bit32Binary(a, func(x, y int32) int32 { return x << uint32(y&31) }) },
	"bit32.arshift": func(e *Engine, a []value.Value) ([]value.Value, error) { return bit32Binary(a, func(x, y int32) int32 { return x >> uint32(y&31) }) },
	"bit32.bnot":       bit32Not,
	"lsl.replace_axis": lslReplaceAxis,
	"lsl.change_state": lslChangeState,
	"lsl.table_concat": lslTableConcat,
	"lsl.cast":         lslCast,
	"lsl.list_new":     lslListNew,
}

func bit32Args(args []value.Value) (int32, int32, error) {
	x, ok := args[0].AsInteger()
	if !ok {
		return 0, 0, ErrNotAnInteger
	}
	if len(args) < 2 {
		return x, 0, nil
	}
	y, ok := args[1].AsInteger()
	if !ok {
		return 0, 0, ErrNotAnInteger
	}
	return x, y, nil
}

func bit32Binary(args []value.Value, op func(x, y int32) int32) ([]value.Value, error) {
	x, y, err := bit32Args(args)
	if err != nil {
		return nil, err
	}
	return []value.Value{value.Integer(op(x, y))}, nil
}

func bit32Not(e *Engine, args []value.Value) ([]value.Value, error) {
	x, ok := args[0].AsInteger()
	if !ok {
		return nil, ErrNotAnInteger
	}
	return []value.Value{value.Integer(^x)}, nil
}

// lslReplaceAxis implements the read-modify-write a vector/quaternion
// member assignment (v.x = n) desugars to: args are (container, the
// single-character axis name as a string, the new value), the result is
// the container with that one component replaced.
func lslReplaceAxis(e *Engine, args []value.Value) ([]value.Value, error) {
	container, axisArg, newVal := args[0], args[1], args[2]
	if len(axisArg.Str) != 1 {
		return nil, xerrors.New("engine: replace_axis: malformed axis name")
	}
	axis := axisArg.Str[0]
	nv := float32(newVal.Number)

	switch container.Tag {
	case value.TVector:
		v := container.Vec
		switch axis {
		case 'x':
			v.X = nv
		case 'y':
			v.Y = nv
		case 'z':
			v.Z = nv
		default:
			return nil, xerrors.Errorf("engine: replace_axis: vector has no %q component", string(axis))
		}
		return []value.Value{value.VectorValue(v)}, nil
	case value.TUserData:
		q, ok := quat.FromValue(container)
		if !ok {
			return nil, xerrors.New("engine: replace_axis: not a vector or quaternion")
		}
		switch axis {
		case 'x':
			q.X = nv
		case 'y':
			q.Y = nv
		case 'z':
			q.Z = nv
		case 's':
			q.S = nv
		default:
			return nil, xerrors.Errorf("engine: replace_axis: quaternion has no %q component", string(axis))
		}
		return []value.Value{quat.ToValue(q)}, nil
	default:
		return nil, xerrors.New("engine: replace_axis: not a vector or quaternion")
	}
}

// lslChangeState records the state the running handler asked to switch
// to (§4.2's `state` statement); the handler always falls through an
// immediate void return right after this call, so there is no
// "continue running in the old state" case to guard against.
func lslChangeState(e *Engine, args []value.Value) ([]value.Value, error) {
	id, _ := args[0].AsInteger()
	e.mu.Lock()
	name := e.stateNameByID(int(id))
	e.pendingState = &name
	e.mu.Unlock()
	return nil, nil
}

// lslTableConcat implements list `+`: a fresh table holding every
// element of both operand lists, left operand's elements first. The
// emitter calls this as lsl.table_concat(rhs, lhs) — argument order
// reversed to match RTL evaluation — so recovering the source's
// left-then-right element order means walking args back to front.
func lslTableConcat(e *Engine, args []value.Value) ([]value.Value, error) {
	out := table.New()
	n := 0
	for i := len(args) - 1; i >= 0; i-- {
		t, ok := args[i].Table.(*table.Table)
		if !ok {
			continue
		}
		for j := 1; j <= t.Len(); j++ {
			n++
			out.Set(value.Number(float64(n)), t.Get(value.Number(float64(j))))
		}
	}
	return []value.Value{{Tag: value.TTable, Table: out}}, nil
}

// lslListNew builds a list value from a call's laid-out arguments: the
// only way the emitter materializes a `list` literal, since there is no
// native table-constructor opcode.
func lslListNew(e *Engine, args []value.Value) ([]value.Value, error) {
	out := table.New()
	for i, a := range args {
		out.Set(value.Number(float64(i+1)), a)
	}
	return []value.Value{{Tag: value.TTable, Table: out}}, nil
}

// lslCast returns its first argument unchanged for every type pair: it
// performs no string<->key reinterpretation and no list-of-one
// wrap/unwrap. The emitter never imports lsl.cast — int/float casts
// compile to OpLSLCastIntFloat and every other cast to a plain MOVE
// (evalCast) — so it is reachable only through a GETIMPORT of that path.
func lslCast(e *Engine, args []value.Value) ([]value.Value, error) {
	return []value.Value{args[0]}, nil
}

func (e *Engine) stateNameByID(id int) string {
	if name, ok := e.stateNames[id]; ok {
		return name
	}
	if id == 0 {
		return "default"
	}
	return ""
}
