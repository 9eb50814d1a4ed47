package emit

import (
	"testing"

	"github.com/christophe-duc/lslengine/internal/ast"
	"github.com/christophe-duc/lslengine/internal/bytecode"
	"github.com/christophe-duc/lslengine/internal/compiler/resolve"
	"github.com/christophe-duc/lslengine/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEmitter(t *testing.T, fm *resolve.FuncMeta, meta *resolve.SymbolMeta, numParams int) *FuncEmitter {
	t.Helper()
	fe, err := NewFuncEmitter("test", bytecode.NewConstantPool(), bytecode.NewImportPool(), meta, fm, numParams)
	require.NoError(t, err)
	return fe
}

func emptyMeta(fm *resolve.FuncMeta) *resolve.SymbolMeta {
	return &resolve.SymbolMeta{BySymbol: map[ast.SymbolID]resolve.LocalMeta{}, ByFunc: map[ast.SymbolID]*resolve.FuncMeta{}}
}

func newFuncMeta() *resolve.FuncMeta {
	return &resolve.FuncMeta{
		NeededImports: map[bytecode.ImportPath]struct{}{},
		NeededOnes:    map[value.LSLType]struct{}{},
	}
}

// A call's two arguments, evaluated in reverse source order, must still
// land in ascending registers just above the callee slot, ready for
// CALL — the critical RTL-evaluation / LTR-register-layout split.
func TestCallArgumentsLandAscendingDespiteRTLEvaluation(t *testing.T) {
	fm := newFuncMeta()
	meta := emptyMeta(fm)
	fe := newEmitter(t, fm, meta, 0)

	call := &ast.CallExpr{
		Callee: "llSay",
		Args: []ast.Expr{
			ast.NewConst(value.Integer(0), value.LSLInteger),
			ast.NewConst(value.String("hi"), value.LSLString),
		},
	}
	base, err := fe.evalExpr(call, -1)
	require.NoError(t, err)

	code := fe.b.Code()
	// find the two LOADK instructions targeting base+1 and base+2 (base
	// holds the callee).
	var sawArg0, sawArg1 bool
	for _, instr := range code {
		if instr.Op == bytecode.OpLoadK && int(instr.A) == base+1 {
			sawArg0 = true
		}
		if instr.Op == bytecode.OpLoadK && int(instr.A) == base+2 {
			sawArg1 = true
		}
	}
	assert.True(t, sawArg0, "argument 0 must land in the register just above the callee")
	assert.True(t, sawArg1, "argument 1 must land in base+2 regardless of RTL evaluation order")
}

func TestComparisonGTReusesLT(t *testing.T) {
	fm := newFuncMeta()
	meta := emptyMeta(fm)
	fe := newEmitter(t, fm, meta, 0)

	bin := &ast.BinaryExpr{
		Op: ast.OpGt,
		L:  ast.NewConst(value.Number(1), value.LSLFloat),
		R:  ast.NewConst(value.Number(2), value.LSLFloat),
	}
	_, err := fe.evalExpr(bin, -1)
	require.NoError(t, err)

	code := fe.b.Code()
	found := false
	for _, instr := range code {
		if instr.Op == bytecode.OpJumpIfLt {
			found = true
		}
	}
	assert.True(t, found, "`>` must compile via JumpIfLt with swapped operands")
}

func TestIncDecUsesReservedOneConstant(t *testing.T) {
	sym := ast.SymbolID(1)
	fm := newFuncMeta()
	fm.NeededOnes[value.LSLInteger] = struct{}{}
	fm.Locals = []resolve.LocalMeta{{Symbol: sym, Name: "i", Register: 0, Type: value.LSLInteger}}
	meta := &resolve.SymbolMeta{
		BySymbol: map[ast.SymbolID]resolve.LocalMeta{sym: fm.Locals[0]},
		ByFunc:   map[ast.SymbolID]*resolve.FuncMeta{},
	}
	fe := newEmitter(t, fm, meta, 1)
	require.NoError(t, fe.reserveOnes())

	require.NoError(t, fe.emitIncDec(&ast.IncDecStmt{Target: &ast.LocalLvalue{Symbol: sym}, Op: ast.IncOp, Post: true}))

	code := fe.b.Code()
	require.Len(t, code, 1)
	assert.Equal(t, bytecode.OpAddK, code[0].Op)
	assert.Equal(t, fe.oneInt, code[0].C)
}

// A list literal must build a real table (via lsl.list_new), not the
// old LOADNIL no-op.
func TestListLiteralCallsListNew(t *testing.T) {
	fm := newFuncMeta()
	meta := emptyMeta(fm)
	fe := newEmitter(t, fm, meta, 0)

	list := &ast.ListExpr{
		Elems: []ast.Expr{
			ast.NewConst(value.Integer(1), value.LSLInteger),
			ast.NewConst(value.Integer(2), value.LSLInteger),
			ast.NewConst(value.Integer(3), value.LSLInteger),
		},
	}
	_, err := fe.evalExpr(list, -1)
	require.NoError(t, err)

	code := fe.b.Code()
	for _, instr := range code {
		assert.NotEqual(t, bytecode.OpLoadNil, instr.Op, "a list literal must never compile to LOADNIL")
	}
	var sawCall bool
	for _, instr := range code {
		if instr.Op == bytecode.OpCall {
			sawCall = true
		}
	}
	assert.True(t, sawCall, "a list literal must call lsl.list_new")
}

// `lhs != []` against a literal empty list must shortcut to a single
// LENGTH opcode rather than the generic boolean jump dance.
func TestListNotEqualEmptyShortcutsToLength(t *testing.T) {
	sym := ast.SymbolID(1)
	fm := newFuncMeta()
	fm.Locals = []resolve.LocalMeta{{Symbol: sym, Name: "a", Register: 0, Type: value.LSLList}}
	meta := &resolve.SymbolMeta{
		BySymbol: map[ast.SymbolID]resolve.LocalMeta{sym: fm.Locals[0]},
		ByFunc:   map[ast.SymbolID]*resolve.FuncMeta{},
	}
	fe := newEmitter(t, fm, meta, 1)

	cmp := &ast.BinaryExpr{
		Op: ast.OpNe,
		L:  &ast.LocalExpr{Symbol: sym},
		R:  &ast.ListExpr{},
	}
	dst, err := fe.evalExpr(cmp, -1)
	require.NoError(t, err)

	code := fe.b.Code()
	require.Len(t, code, 1, "the != [] shortcut must emit exactly one instruction")
	assert.Equal(t, bytecode.OpLength, code[0].Op)
	assert.Equal(t, dst, code[0].A)
}

// Compound `*=` must multiply the current value by the RHS as doubles
// and cast the product back to an integer, not just overwrite the local
// with the RHS (the bug this operator was silently dropped into).
func TestCompoundMulFloatMultipliesAndCasts(t *testing.T) {
	sym := ast.SymbolID(1)
	fm := newFuncMeta()
	fm.Locals = []resolve.LocalMeta{{Symbol: sym, Name: "i", Register: 0, Type: value.LSLInteger}}
	meta := &resolve.SymbolMeta{
		BySymbol: map[ast.SymbolID]resolve.LocalMeta{sym: fm.Locals[0]},
		ByFunc:   map[ast.SymbolID]*resolve.FuncMeta{},
	}
	fe := newEmitter(t, fm, meta, 1)

	assign := &ast.AssignStmt{
		LHS: &ast.LocalLvalue{Symbol: sym},
		Op:  ast.AssignMulFloat,
		RHS: ast.NewConst(value.Number(1.5), value.LSLFloat),
	}
	require.NoError(t, fe.emitStmt(assign))

	code := fe.b.Code()
	var sawWiden, sawMul, sawTrunc, sawNarrow bool
	for _, instr := range code {
		switch instr.Op {
		case bytecode.OpLSLCastIntFloat:
			if instr.Aux == bytecode.CastIntToFloat {
				sawWiden = true
			} else {
				sawNarrow = true
			}
		case bytecode.OpMul:
			sawMul = true
		case bytecode.OpLSLDouble2Float:
			sawTrunc = true
		}
	}
	assert.True(t, sawWiden, "must widen the current int value to a double")
	assert.True(t, sawMul, "must multiply as doubles, not just assign the RHS")
	assert.True(t, sawTrunc, "the product must be truncated to 32-bit precision")
	assert.True(t, sawNarrow, "the truncated product must be cast back to an integer")
}

// A non-bare float expression (e.g. a cast result) assigned into a
// float local must be truncated to 32-bit precision (§4.4); a bare
// local or constant read must not be re-truncated.
func TestFloatArithmeticAssignmentTruncates(t *testing.T) {
	sym := ast.SymbolID(1)
	fm := newFuncMeta()
	fm.Locals = []resolve.LocalMeta{{Symbol: sym, Name: "f", Register: 0, Type: value.LSLFloat}}
	meta := &resolve.SymbolMeta{
		BySymbol: map[ast.SymbolID]resolve.LocalMeta{sym: fm.Locals[0]},
		ByFunc:   map[ast.SymbolID]*resolve.FuncMeta{},
	}
	fe := newEmitter(t, fm, meta, 1)

	assign := &ast.AssignStmt{
		LHS: &ast.LocalLvalue{Symbol: sym},
		Op:  ast.AssignSet,
		RHS: ast.NewCast(ast.NewConst(value.Integer(3), value.LSLInteger), value.LSLInteger, value.LSLFloat),
	}
	require.NoError(t, fe.emitStmt(assign))

	code := fe.b.Code()
	var sawTrunc bool
	for _, instr := range code {
		if instr.Op == bytecode.OpLSLDouble2Float {
			sawTrunc = true
		}
	}
	assert.True(t, sawTrunc, "storing a non-bare float expression (here, a cast result) must truncate to 32-bit precision")

	fe2 := newEmitter(t, fm, meta, 1)
	plainAssign := &ast.AssignStmt{
		LHS: &ast.LocalLvalue{Symbol: sym},
		Op:  ast.AssignSet,
		RHS: ast.NewConst(value.Number(1), value.LSLFloat),
	}
	require.NoError(t, fe2.emitStmt(plainAssign))
	for _, instr := range fe2.b.Code() {
		assert.NotEqual(t, bytecode.OpLSLDouble2Float, instr.Op, "a bare constant store must not be truncated")
	}
}

func TestWhileLoopPatchesBackwardAndForwardJumps(t *testing.T) {
	sym := ast.SymbolID(1)
	fm := newFuncMeta()
	fm.Locals = []resolve.LocalMeta{{Symbol: sym, Name: "i", Register: 0, Type: value.LSLInteger}}
	meta := &resolve.SymbolMeta{
		BySymbol: map[ast.SymbolID]resolve.LocalMeta{sym: fm.Locals[0]},
		ByFunc:   map[ast.SymbolID]*resolve.FuncMeta{},
	}
	fe := newEmitter(t, fm, meta, 1)

	loop := &ast.WhileStmt{
		Cond: &ast.LocalExpr{Symbol: sym},
		Body: []ast.Stmt{
			&ast.IncDecStmt{Target: &ast.LocalLvalue{Symbol: sym}, Op: ast.DecOp},
		},
	}
	require.NoError(t, fe.reserveOnes())
	require.NoError(t, fe.emitStmt(loop))

	code := fe.b.Code()
	var sawBack bool
	for _, instr := range code {
		if instr.Op == bytecode.OpJumpBack {
			sawBack = true
		}
	}
	assert.True(t, sawBack)
}
