// compile.go implements the §17 Compile/Load/Execute trio: turn source
// text into a persisted bytecode blob, reconstruct a fresh thread from
// that blob, and (for the common case of just wanting to run a script
// once) do both plus an initial dispatch in one call.
package engine

import (
	"fmt"

	"github.com/christophe-duc/lslengine/internal/ares"
	"github.com/christophe-duc/lslengine/internal/ast"
	"github.com/christophe-duc/lslengine/internal/closure"
	"github.com/christophe-duc/lslengine/internal/compiler/emit"
	"github.com/christophe-duc/lslengine/internal/quat"
	"github.com/christophe-duc/lslengine/internal/table"
	"github.com/christophe-duc/lslengine/internal/value"
	"github.com/christophe-duc/lslengine/internal/vmthread"
	"github.com/spkg/bom"
	"golang.org/x/xerrors"
)

const (
	wireEntries = "entries"
	wireGlobals = "globals"
	wireImports = "imports"
	wireStates  = "states"
)

// Compile runs the installed Frontend over source, emits bytecode for
// every function and event handler (internal/compiler/emit.CompileFile),
// and persists the result as a self-contained blob (internal/ares) a
// later Load call can reconstruct without re-running the front end.
//
// The wire format is a plain table with four keys: "entries" (mangled
// name -> L closure), "globals" (declared name -> initial value),
// "imports" (1-based array of this unit's import pool, stringified), and
// "states" (state ID -> state name). There is no permanents table:
// nothing in the graph is a native value.
func (e *Engine) Compile(source []byte) ([]byte, error) {
	if e.frontend == nil {
		return nil, xerrors.New("engine: no frontend installed")
	}
	// LSL scripts exported from viewer editors routinely carry a UTF-8
	// BOM; strip it the same way the teacher's view_helpers.go does
	// before handing source to anything that tokenizes it.
	file, err := e.frontend(bom.Clean(source))
	if err != nil {
		return nil, err
	}
	return e.compileFile(file)
}

func (e *Engine) compileFile(file *ast.File) ([]byte, error) {
	unit, err := emit.CompileFile(file)
	if err != nil {
		return nil, err
	}

	entries := table.New()
	for name, proto := range unit.Protos {
		cl := closure.NewLClosure(proto, table.New())
		entries.Set(value.String(name), value.Value{Tag: value.TFunction, Fn: cl})
	}

	globals := table.New()
	for _, g := range file.Globals {
		globals.Set(value.String(g.Name), defaultGlobalValue(g))
	}

	importPaths := unit.Imports.Paths()
	imports := table.New()
	for i, p := range importPaths {
		imports.Set(value.Number(float64(i+1)), value.String(p.String()))
	}

	states := table.New()
	for _, st := range file.States {
		states.Set(value.Number(float64(st.StateID)), value.String(st.Name))
	}

	root := table.New()
	root.Set(value.String(wireEntries), value.Value{Tag: value.TTable, Table: entries})
	root.Set(value.String(wireGlobals), value.Value{Tag: value.TTable, Table: globals})
	root.Set(value.String(wireImports), value.Value{Tag: value.TTable, Table: imports})
	root.Set(value.String(wireStates), value.Value{Tag: value.TTable, Table: states})

	return ares.Persist(value.Value{Tag: value.TTable, Table: root}, nil, ares.Options{
		MaxComplexity: e.Config.MaxPersistComplexity,
		PathTracking:  e.Config.PersistPathTracking,
		UUIDs:         e.Runtime.UUIDs,
	})
}

// defaultGlobalValue is a global variable's value before any assignment
// has run: its declared initializer if that initializer is a constant
// the emitter never needed to reduce further, else the LSL zero value
// for its declared type.
func defaultGlobalValue(g *ast.GlobalDecl) value.Value {
	if ce, ok := g.Init.(*ast.ConstExpr); ok {
		return ce.Value
	}
	return zeroValueFor(g.Type)
}

func zeroValueFor(t value.LSLType) value.Value {
	switch t {
	case value.LSLInteger:
		return value.Integer(0)
	case value.LSLFloat:
		return value.Number(0)
	case value.LSLString, value.LSLKey:
		return value.String("")
	case value.LSLVector:
		return value.VectorValue(value.Vector{})
	case value.LSLQuaternion:
		return quat.ToValue(quat.Quaternion{S: 1})
	case value.LSLList:
		return value.Value{Tag: value.TTable, Table: table.New()}
	default:
		return value.Nil
	}
}

// Load reconstructs a thread from a Compile-produced blob: a fresh
// globals table seeded from the unit's recorded defaults (or, for a
// Runtime already carrying values from a prior Load, left untouched —
// reloading the same script onto a live Runtime must not clobber state
// that has since changed), plus the entries/import-path/state tables
// Engine needs to dispatch events and calls against this unit.
func (e *Engine) Load(bytecode []byte, chunkname string) (*vmthread.Thread, error) {
	root, err := ares.Unpersist(bytecode, nil, ares.Options{
		MaxComplexity: e.Config.MaxPersistComplexity,
		UUIDs:         e.Runtime.UUIDs,
	})
	if err != nil {
		return nil, xerrors.Errorf("engine: load %s: %w", chunkname, err)
	}
	rootTable, ok := root.Table.(*table.Table)
	if root.Tag != value.TTable || !ok {
		return nil, xerrors.Errorf("engine: load %s: malformed unit (not a table)", chunkname)
	}

	entries, err := subTable(rootTable, wireEntries)
	if err != nil {
		return nil, err
	}
	globalDefaults, err := subTable(rootTable, wireGlobals)
	if err != nil {
		return nil, err
	}
	importsTable, err := subTable(rootTable, wireImports)
	if err != nil {
		return nil, err
	}
	statesTable, err := subTable(rootTable, wireStates)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for k, v, ok := globalDefaults.Next(value.Nil); ok; k, v, ok = globalDefaults.Next(k) {
		if existing := e.Runtime.Globals.Get(k); existing.Tag == value.TNil {
			e.Runtime.Globals.Set(k, v)
		}
	}

	entryMap := make(map[string]*closure.Closure)
	for k, v, ok := entries.Next(value.Nil); ok; k, v, ok = entries.Next(k) {
		cl, isCl := v.Fn.(*closure.Closure)
		if !isCl {
			return nil, xerrors.Errorf("engine: load %s: entry %q is not a closure", chunkname, k.Str)
		}
		entryMap[k.Str] = cl
	}

	var importPaths []string
	for i := 1; ; i++ {
		v := importsTable.Get(value.Number(float64(i)))
		if v.Tag == value.TNil {
			break
		}
		importPaths = append(importPaths, v.Str)
	}

	stateNames := make(map[int]string)
	for k, v, ok := statesTable.Next(value.Nil); ok; k, v, ok = statesTable.Next(k) {
		stateNames[int(k.Number)] = v.Str
	}

	th := vmthread.New(e.Runtime.Globals, 0)
	e.thread = th
	e.entries = entryMap
	e.importPaths = importPaths
	e.stateNames = stateNames
	e.chunkname = chunkname

	return th, nil
}

func subTable(root *table.Table, key string) (*table.Table, error) {
	v := root.Get(value.String(key))
	if v.Tag != value.TTable {
		return nil, xerrors.Errorf("engine: malformed unit: missing %q table", key)
	}
	t, ok := v.Table.(*table.Table)
	if !ok {
		return nil, xerrors.Errorf("engine: malformed unit: %q is not a table.Table", key)
	}
	return t, nil
}

// PendingState reports and clears the state name a running handler most
// recently requested via the `state` statement (internal/engine/builtins.go's
// lslChangeState), if any. A host drives the actual state transition —
// this module only records the request (§4.2, §19 non-goals: dispatch
// policy around *when* a pending state change takes effect relative to
// the rest of the current event is the host's to define).
func (e *Engine) PendingState() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pendingState == nil {
		return "", false
	}
	name := *e.pendingState
	e.pendingState = nil
	return name, true
}

// Entries returns a snapshot of every compiled function/event handler
// in the currently loaded unit, keyed by mangled name (emit.MangledName).
// Intended for introspection (the CLI's disassembler); Call/Entry are
// the dispatch path.
func (e *Engine) Entries() map[string]*closure.Closure {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]*closure.Closure, len(e.entries))
	for k, v := range e.entries {
		out[k] = v
	}
	return out
}

// Entry looks up a loaded unit's compiled function or event handler by
// its mangled name (emit.MangledName), returning the closure value Call
// can dispatch through invoke.
func (e *Engine) Entry(mangledName string) (value.Value, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cl, ok := e.entries[mangledName]
	if !ok {
		return value.Nil, false
	}
	return value.Value{Tag: value.TFunction, Fn: cl}, true
}

// Call invokes a loaded unit's entry point by mangled name, the way an
// event dispatch or a direct host call would.
func (e *Engine) Call(mangledName string, args ...value.Value) ([]value.Value, error) {
	handler, ok := e.Entry(mangledName)
	if !ok {
		return nil, xerrors.Errorf("engine: no such entry %q", mangledName)
	}
	return e.invoke(handler, args)
}

// Yields drains and returns every value "print" has accumulated since
// the last call to Yields — print-as-yield is this module's stand-in for
// host I/O (§5, §8): a script calling print(x) is observed by the host
// as x appearing here, not by any console write.
func (e *Engine) Yields() []value.Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.yields
	e.yields = nil
	return out
}

// Execute is the common case of compiling, loading, and running a
// script's default::state_entry handler in one call, then returning its
// yielded values as a list. The unit is always loaded under the chunk
// name "=execute".
func (e *Engine) Execute(source []byte) (value.Value, error) {
	bc, err := e.Compile(source)
	if err != nil {
		return value.Nil, err
	}
	if _, err := e.Load(bc, "=execute"); err != nil {
		return value.Nil, err
	}

	const entryPoint = "default::state_entry"
	if _, ok := e.Entry(entryPoint); ok {
		if _, err := e.Call(entryPoint); err != nil {
			return value.Nil, fmt.Errorf("engine: execute: %w", err)
		}
	}

	out := table.New()
	for i, v := range e.Yields() {
		out.Set(value.Number(float64(i+1)), v)
	}
	return value.Value{Tag: value.TTable, Table: out}, nil
}
