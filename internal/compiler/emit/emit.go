// Package emit is the second compiler pass (§4.1-4.4): it walks a
// desugared, resolved ast.File and produces one closure.Proto per
// function/event handler by driving a bytecode.Builder.
//
// The central subtlety this package exists to get right is that LSL
// evaluates subexpressions right-to-left (RTL) while the register
// layout a CALL instruction expects is left-to-right (LTR) ascending —
// the callee in the CALL base register, argument 0 in the register just
// above it, argument N-1 in the highest. The emitter evaluates arguments
// in reverse and lands each one directly in its final ascending slot by
// passing that slot to evalExpr as its target register, so the two
// orderings never have to be reconciled by a later shuffle.
package emit

import (
	"github.com/christophe-duc/lslengine/internal/ast"
	"github.com/christophe-duc/lslengine/internal/bytecode"
	"github.com/christophe-duc/lslengine/internal/closure"
	"github.com/christophe-duc/lslengine/internal/compiler/resolve"
	"github.com/christophe-duc/lslengine/internal/value"
	"github.com/go-errors/errors"
)

// ErrUnknownGlobal is returned when a GlobalExpr/GlobalLvalue names a
// symbol the resolve pass never recorded.
var ErrUnknownGlobal = errors.New("emit: reference to undeclared global")

// ErrUnknownLabel is returned when a jump statement names a label that
// was never defined anywhere in the same function body.
var ErrUnknownLabel = errors.New("emit: jump to undeclared label")

// FuncEmitter emits one function or event handler body into a single
// closure.Proto.
type FuncEmitter struct {
	proto   *closure.Proto
	b       *bytecode.Builder
	consts  *bytecode.ConstantPool
	imports *bytecode.ImportPool
	ra      *bytecode.RegisterAllocator
	meta    *resolve.SymbolMeta
	fm      *resolve.FuncMeta

	oneInt   int // small-index constant for the integer 1, -1 if unused
	oneFloat int

	labelPCs     map[string]int
	pendingJumps map[string][]int // label -> jump instruction pcs awaiting patch
}

// NewFuncEmitter builds an emitter for one function body, given shared
// constant/import pools (shared across all functions in a File so
// string/number constants dedupe globally) and this function's
// resolved metadata.
func NewFuncEmitter(sourceName string, consts *bytecode.ConstantPool, imports *bytecode.ImportPool, meta *resolve.SymbolMeta, fm *resolve.FuncMeta, numParams int) (*FuncEmitter, error) {
	numLocals := len(fm.Locals)
	ra, err := bytecode.NewRegisterAllocator(numLocals)
	if err != nil {
		return nil, err
	}
	fe := &FuncEmitter{
		proto:    closure.NewProto(sourceName),
		b:        bytecode.NewBuilder(),
		consts:   consts,
		imports:  imports,
		ra:       ra,
		meta:     meta,
		fm:       fm,
		oneInt:   -1,
		oneFloat: -1,
		labelPCs: map[string]int{},
		pendingJumps: map[string][]int{},
	}
	fe.proto.NumParams = numParams
	fe.proto.BytecodeID = uint64(fm.FunctionID)
	return fe, nil
}

// reserveOnes pre-reserves the small-index "one" constants this
// function's ++/-- operators need, in the order resolve discovered
// them, matching the emitter's small-index pre-reservation convention.
func (fe *FuncEmitter) reserveOnes() error {
	if _, ok := fe.fm.NeededOnes[value.LSLInteger]; ok {
		idx, err := fe.consts.ReserveSmallIndex(value.Integer(1))
		if err != nil {
			return err
		}
		fe.oneInt = idx
	}
	if _, ok := fe.fm.NeededOnes[value.LSLFloat]; ok {
		idx, err := fe.consts.ReserveSmallIndex(value.Number(1))
		if err != nil {
			return err
		}
		fe.oneFloat = idx
	}
	return nil
}

// EmitBody emits every statement of body in order, then a synthetic
// void return if the body fell through without one, and finalizes the
// Proto (code, max stack size, constants).
func (fe *FuncEmitter) EmitBody(body []ast.Stmt) (*closure.Proto, error) {
	if err := fe.reserveOnes(); err != nil {
		return nil, err
	}
	for _, s := range body {
		if err := fe.emitStmt(s); err != nil {
			return nil, err
		}
	}
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpReturn, A: 0, B: 0}) // synthetic void return
	if err := fe.patchLabelJumps(); err != nil {
		return nil, err
	}
	fe.proto.Code = fe.b.Code()
	fe.proto.MaxStackSize = fe.ra.MaxStackSize()
	fe.proto.Constants = fe.consts.Values()
	return fe.proto, nil
}

// patchLabelJumps resolves every jump statement's target now that every
// label in the function has been emitted and has a known pc (the
// two-pass patch §4.4 describes: emit first, patch once all labels are
// known, since a jump statement may reference a label defined later in
// the same body).
func (fe *FuncEmitter) patchLabelJumps() error {
	for label, pcs := range fe.pendingJumps {
		dest, ok := fe.labelPCs[label]
		if !ok {
			return ErrUnknownLabel
		}
		for _, pc := range pcs {
			if err := fe.b.PatchJump(pc, dest); err != nil {
				return err
			}
		}
	}
	return nil
}

// localReg returns the register holding a resolved local/param symbol.
func (fe *FuncEmitter) localReg(sym ast.SymbolID) (int, bool) {
	lm, ok := fe.meta.BySymbol[sym]
	if !ok {
		return 0, false
	}
	return fe.ra.Local(lm.Register), true
}
