// Package resolve implements the resource visitor (§4.2): a first AST
// pass that assigns function/state IDs and local register slots, and
// precomputes the constants and imports a second pass (the emitter) will
// need, before any bytecode is emitted.
//
// Functions and event handlers are visited first in source order (so
// their function IDs are 0..K-1), then top-level states (state IDs
// 0..S-1), then each function's body to register parameters and locals
// in declaration order — the emitter needs a local's register index
// before it emits a reference to it, to use MOVE elision and emit loads
// in declaration order.
package resolve

import (
	"sort"

	"github.com/christophe-duc/lslengine/internal/ast"
	"github.com/christophe-duc/lslengine/internal/bytecode"
	"github.com/christophe-duc/lslengine/internal/value"
	"github.com/go-errors/errors"
	"github.com/samber/lo"
)

const (
	maxFunctionsAndStates = 32767
	maxLocalsPerFunction  = 200
)

// ErrTooManyFunctions is raised when more than 32767 functions or states
// are declared.
var ErrTooManyFunctions = errors.New("resolve: too many functions/states (max 32767)")

// ErrTooManyLocals is raised when a function declares more than ~200
// locals.
var ErrTooManyLocals = errors.New("resolve: too many locals in one function (max 200)")

// LocalMeta records where one local/parameter lives.
type LocalMeta struct {
	Symbol   ast.SymbolID
	Name     string
	Register int
	Type     value.LSLType
}

// FuncMeta is per-function-like-node metadata: its assigned ID, its
// locals in declaration order, and what it was observed to need.
type FuncMeta struct {
	FunctionID    int
	StateID       int // -1 for a free function, else the owning state
	Locals        []LocalMeta
	NeededImports map[bytecode.ImportPath]struct{}
	NeededOnes    map[value.LSLType]struct{}
	IrreducibleCF bool // set when the body contains any jump or label statement; no later pass reads it
}

// SymbolMeta is the map the emitter consumes: per-symbol register index
// plus per-function-like-node aggregate metadata, discarded after code
// generation.
type SymbolMeta struct {
	BySymbol map[ast.SymbolID]LocalMeta
	ByFunc   map[ast.SymbolID]*FuncMeta // keyed by the function/event handler's own symbol
	StateIDs map[string]int
}

// Visitor walks an ast.File once, populating a SymbolMeta.
type Visitor struct {
	meta *SymbolMeta
	nextFuncID int
}

// NewVisitor creates an empty visitor.
func NewVisitor() *Visitor {
	return &Visitor{meta: &SymbolMeta{
		BySymbol: map[ast.SymbolID]LocalMeta{},
		ByFunc:   map[ast.SymbolID]*FuncMeta{},
		StateIDs: map[string]int{},
	}}
}

// Visit implements the full pass described in the package doc.
func (v *Visitor) Visit(f *ast.File) (*SymbolMeta, error) {
	// Pass 1: functions and event handlers in source order get IDs 0..K-1.
	for _, fn := range f.Funcs {
		if err := v.assignFuncID(fn.Symbol, -1); err != nil {
			return nil, err
		}
	}
	for _, st := range f.States {
		for _, ev := range st.Events {
			if err := v.assignFuncID(ev.Symbol, st.StateID); err != nil {
				return nil, err
			}
		}
	}

	// Pass 2: states get IDs 0..S-1 (already provided by the front end in
	// StateID, but we validate the count here).
	if len(f.States) > maxFunctionsAndStates {
		return nil, ErrTooManyFunctions
	}
	for _, st := range f.States {
		v.meta.StateIDs[st.Name] = st.StateID
	}

	// Pass 3: walk each function-like body registering locals/params in
	// declaration order, and detect needed imports/one-constants.
	for _, fn := range f.Funcs {
		if err := v.visitBody(fn.Symbol, fn.Params, fn.Body); err != nil {
			return nil, err
		}
	}
	for _, st := range f.States {
		for _, ev := range st.Events {
			if err := v.visitBody(ev.Symbol, ev.Params, ev.Body); err != nil {
				return nil, err
			}
		}
	}

	return v.meta, nil
}

func (v *Visitor) assignFuncID(sym ast.SymbolID, stateID int) error {
	if v.nextFuncID >= maxFunctionsAndStates {
		return ErrTooManyFunctions
	}
	v.meta.ByFunc[sym] = &FuncMeta{
		FunctionID:    v.nextFuncID,
		StateID:       stateID,
		NeededImports: map[bytecode.ImportPath]struct{}{},
		NeededOnes:    map[value.LSLType]struct{}{},
	}
	v.nextFuncID++
	return nil
}

func (v *Visitor) visitBody(fnSym ast.SymbolID, params []ast.Param, body []ast.Stmt) error {
	fm := v.meta.ByFunc[fnSym]
	reg := 0
	addLocal := func(sym ast.SymbolID, name string, typ value.LSLType) error {
		if len(fm.Locals) >= maxLocalsPerFunction {
			return ErrTooManyLocals
		}
		lm := LocalMeta{Symbol: sym, Name: name, Register: reg, Type: typ}
		fm.Locals = append(fm.Locals, lm)
		v.meta.BySymbol[sym] = lm
		reg++
		return nil
	}

	for _, p := range params {
		if err := addLocal(p.Symbol, p.Name, p.Type); err != nil {
			return err
		}
	}

	var walkStmts func([]ast.Stmt) error
	walkExpr := func(e ast.Expr) { v.detectNeeds(fm, e) }

	walkStmts = func(stmts []ast.Stmt) error {
		for _, s := range stmts {
			switch n := s.(type) {
			case *ast.LocalStmt:
				if err := addLocal(n.Decl.Symbol, n.Decl.Name, n.Decl.Type); err != nil {
					return err
				}
				if n.Decl.Init != nil {
					walkExpr(n.Decl.Init)
				}
			case *ast.AssignStmt:
				walkExpr(n.RHS)
				if n.Op == ast.AssignMulFloat {
					fm.NeededImports[bytecode.ImportPath{Module: "lsl", Member: "cast"}] = struct{}{}
				}
				if _, ok := n.LHS.(*ast.MemberLvalue); ok {
					fm.NeededImports[bytecode.ImportPath{Module: "lsl", Member: "replace_axis"}] = struct{}{}
				}
			case *ast.IfStmt:
				walkExpr(n.Cond)
				if err := walkStmts(n.Then); err != nil {
					return err
				}
				if err := walkStmts(n.Else); err != nil {
					return err
				}
			case *ast.WhileStmt:
				walkExpr(n.Cond)
				if err := walkStmts(n.Body); err != nil {
					return err
				}
			case *ast.DoWhileStmt:
				if err := walkStmts(n.Body); err != nil {
					return err
				}
				walkExpr(n.Cond)
			case *ast.ForStmt:
				if err := walkStmts(n.Init); err != nil {
					return err
				}
				if n.Cond != nil {
					walkExpr(n.Cond)
				}
				if err := walkStmts(n.Post); err != nil {
					return err
				}
				if err := walkStmts(n.Body); err != nil {
					return err
				}
			case *ast.ReturnStmt:
				if n.Value != nil {
					walkExpr(n.Value)
				}
			case *ast.ExprStmt:
				walkExpr(n.X)
			case *ast.IncDecStmt:
				typ := value.LSLInteger
				if le, ok := n.Target.(*ast.LocalLvalue); ok {
					if lm, found := v.meta.BySymbol[le.Symbol]; found {
						typ = lm.Type
					}
				}
				fm.NeededOnes[typ] = struct{}{}
				if _, ok := n.Target.(*ast.MemberLvalue); ok {
					fm.NeededImports[bytecode.ImportPath{Module: "lsl", Member: "replace_axis"}] = struct{}{}
				}
			case *ast.StateChangeStmt:
				fm.NeededImports[bytecode.ImportPath{Module: "lsl", Member: "change_state"}] = struct{}{}
			case *ast.JumpStmt, *ast.LabelStmt:
				fm.IrreducibleCF = true
			}
		}
		return nil
	}

	return walkStmts(body)
}

// detectNeeds records imports a subexpression will require at emission
// time: bitwise ops need bit32.*, list concatenation needs
// lsl.table_concat, explicit casts need lsl.cast.
func (v *Visitor) detectNeeds(fm *FuncMeta, e ast.Expr) {
	switch n := e.(type) {
	case *ast.BinaryExpr:
		v.detectNeeds(fm, n.L)
		v.detectNeeds(fm, n.R)
		switch n.Op {
		case ast.OpBAnd:
			fm.NeededImports[bytecode.ImportPath{Module: "bit32", Member: "band"}] = struct{}{}
		case ast.OpBOr:
			fm.NeededImports[bytecode.ImportPath{Module: "bit32", Member: "bor"}] = struct{}{}
		case ast.OpBXor:
			fm.NeededImports[bytecode.ImportPath{Module: "bit32", Member: "bxor"}] = struct{}{}
		case ast.OpShl:
			fm.NeededImports[bytecode.ImportPath{Module: "bit32", Member: "lshift"}] = struct{}{}
		case ast.OpShr:
			fm.NeededImports[bytecode.ImportPath{Module: "bit32", Member: "arshift"}] = struct{}{}
		case ast.OpAdd:
			if n.Type() == value.LSLList {
				fm.NeededImports[bytecode.ImportPath{Module: "lsl", Member: "table_concat"}] = struct{}{}
			}
		}
	case *ast.UnaryExpr:
		v.detectNeeds(fm, n.X)
		if n.Op == ast.OpBNot {
			fm.NeededImports[bytecode.ImportPath{Module: "bit32", Member: "bnot"}] = struct{}{}
		}
	case *ast.CastExpr:
		v.detectNeeds(fm, n.X)
		fm.NeededImports[bytecode.ImportPath{Module: "lsl", Member: "cast"}] = struct{}{}
	case *ast.CallExpr:
		for _, a := range n.Args {
			v.detectNeeds(fm, a)
		}
	case *ast.ListExpr:
		for _, el := range n.Elems {
			v.detectNeeds(fm, el)
		}
	case *ast.MemberExpr:
		v.detectNeeds(fm, n.Container)
	}
}

// NeededImportPaths returns fm's needed imports as a stable-ordered slice,
// useful for the emitter's pre-reservation pass.
func (fm *FuncMeta) NeededImportPaths() []bytecode.ImportPath {
	paths := lo.Keys(fm.NeededImports)
	sort.Slice(paths, func(i, j int) bool { return paths[i].String() < paths[j].String() })
	return paths
}
