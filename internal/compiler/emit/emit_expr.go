package emit

import (
	"github.com/christophe-duc/lslengine/internal/ast"
	"github.com/christophe-duc/lslengine/internal/bytecode"
	"github.com/christophe-duc/lslengine/internal/value"
)

// evalExpr evaluates e, returning the register holding its result. If
// want >= 0 the emitter tries to land the result directly in that
// register (MOVE elision); pass -1 to let the
// emitter allocate a fresh temp.
func (fe *FuncEmitter) evalExpr(e ast.Expr, want int) (int, error) {
	switch n := e.(type) {
	case *ast.ConstExpr:
		return fe.evalConst(n.Value, want)
	case *ast.LocalExpr:
		reg, ok := fe.localReg(n.Symbol)
		if !ok {
			return 0, ErrUnknownGlobal
		}
		if want >= 0 && want != reg {
			fe.b.Emit(bytecode.Instr{Op: bytecode.OpMove, A: want, B: reg})
			return want, nil
		}
		return reg, nil
	case *ast.GlobalExpr:
		dst := fe.takeReg(want)
		fe.b.Emit(bytecode.Instr{Op: bytecode.OpGetGlobal, A: dst, B: fe.stringK(n.Name)})
		return dst, nil
	case *ast.MemberExpr:
		return fe.evalMember(n, want)
	case *ast.CastExpr:
		return fe.evalCast(n, want)
	case *ast.UnaryExpr:
		return fe.evalUnary(n, want)
	case *ast.BinaryExpr:
		return fe.evalBinary(n, want)
	case *ast.CallExpr:
		return fe.evalCall(n, want)
	case *ast.ListExpr:
		return fe.evalList(n, want)
	default:
		return 0, ErrUnknownGlobal
	}
}

func (fe *FuncEmitter) takeReg(want int) int {
	if want >= 0 {
		return want
	}
	return fe.ra.Alloc()
}

func (fe *FuncEmitter) stringK(s string) int {
	idx, _ := fe.consts.Add(value.String(s))
	return idx
}

func (fe *FuncEmitter) evalConst(v value.Value, want int) (int, error) {
	dst := fe.takeReg(want)
	idx, err := fe.consts.Add(v)
	if err != nil {
		return 0, err
	}
	op := bytecode.OpLoadK
	if !bytecode.FitsSmallIndex(idx) {
		op = bytecode.OpLoadKS
	}
	fe.b.Emit(bytecode.Instr{Op: op, A: dst, B: idx})
	return dst, nil
}

// evalMember emits the GETTABLE-style access for .x/.y/.z/.s accessors
// on vector/quaternion/rotation userdata.
func (fe *FuncEmitter) evalMember(n *ast.MemberExpr, want int) (int, error) {
	containerReg, err := fe.evalExpr(n.Container, -1)
	if err != nil {
		return 0, err
	}
	dst := fe.takeReg(want)
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpGetTable, A: dst, B: containerReg, C: int(n.Member)})
	return dst, nil
}

// evalCast implements the §4.4 truncation rules: LSLFloat->LSLInteger
// truncates toward zero (OpLSLCastIntFloat/CastFloatToInt), while
// LSLInteger->LSLFloat widens exactly (OpLSLDouble2Float is for the
// reverse float64-internal-representation narrowing, not this case).
func (fe *FuncEmitter) evalCast(n *ast.CastExpr, want int) (int, error) {
	src, err := fe.evalExpr(n.X, -1)
	if err != nil {
		return 0, err
	}
	dst := fe.takeReg(want)
	switch {
	case n.From == value.LSLFloat && n.Type() == value.LSLInteger:
		fe.b.Emit(bytecode.Instr{Op: bytecode.OpLSLCastIntFloat, A: dst, B: src, Aux: bytecode.CastFloatToInt})
	case n.From == value.LSLInteger && n.Type() == value.LSLFloat:
		fe.b.Emit(bytecode.Instr{Op: bytecode.OpLSLCastIntFloat, A: dst, B: src, Aux: bytecode.CastIntToFloat})
	default:
		if dst != src {
			fe.b.Emit(bytecode.Instr{Op: bytecode.OpMove, A: dst, B: src})
		}
	}
	return dst, nil
}

func (fe *FuncEmitter) evalUnary(n *ast.UnaryExpr, want int) (int, error) {
	src, err := fe.evalExpr(n.X, -1)
	if err != nil {
		return 0, err
	}
	dst := fe.takeReg(want)
	switch n.Op {
	case ast.OpNeg:
		fe.b.Emit(bytecode.Instr{Op: bytecode.OpUnm, A: dst, B: src})
	case ast.OpNot:
		fe.b.Emit(bytecode.Instr{Op: bytecode.OpNot, A: dst, B: src})
	case ast.OpBNot:
		return fe.evalBitwiseImportCall("bnot", dst, src)
	}
	return dst, nil
}

// evalBinary evaluates the right operand first (RTL), then the left,
// matching the source evaluation order, then emits the operator with
// operands referenced in their logical L,R positions regardless of the
// order they were computed in.
func (fe *FuncEmitter) evalBinary(n *ast.BinaryExpr, want int) (int, error) {
	if isComparison(n.Op) {
		return fe.evalComparison(n, want)
	}
	if isBitwise(n.Op) {
		return fe.evalBitwise(n, want)
	}
	if n.Op == ast.OpAdd && n.Type() == value.LSLList {
		return fe.evalListConcat(n, want)
	}
	rReg, err := fe.evalExpr(n.R, -1)
	if err != nil {
		return 0, err
	}
	lReg, err := fe.evalExpr(n.L, -1)
	if err != nil {
		return 0, err
	}
	dst := fe.takeReg(want)
	op, ok := arithOp(n.Op)
	if !ok {
		return 0, ErrUnknownGlobal
	}
	fe.b.Emit(bytecode.Instr{Op: op, A: dst, B: lReg, C: rReg})
	fe.truncateFloat(n, dst)
	return dst, nil
}

// evalListConcat implements list `+` (§4.3): there is no native
// table-concatenation opcode, so both operands are laid into the
// lsl.table_concat call's two argument registers in (rhs, lhs) order —
// reversed from the call convention every other binary op uses — since
// that is the order the teacher's evaluation-order contract calls for
// to keep RTL evaluation and LTR layout reconciled for this one operator.
func (fe *FuncEmitter) evalListConcat(n *ast.BinaryExpr, want int) (int, error) {
	base := fe.ra.Alloc() // callee slot
	fe.ra.Alloc()         // first argument slot
	fe.ra.Alloc()         // second argument slot
	rReg, err := fe.evalExpr(n.R, -1)
	if err != nil {
		return 0, err
	}
	lReg, err := fe.evalExpr(n.L, -1)
	if err != nil {
		return 0, err
	}
	if rReg != base+1 {
		fe.b.Emit(bytecode.Instr{Op: bytecode.OpMove, A: base + 1, B: rReg})
	}
	if lReg != base+2 {
		fe.b.Emit(bytecode.Instr{Op: bytecode.OpMove, A: base + 2, B: lReg})
	}
	aux, _ := fe.importRef("lsl", "table_concat")
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpGetImport, A: base, Aux: aux})
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpCall, A: base, B: 2, C: 1})
	dst := fe.takeReg(want)
	if dst != base {
		fe.b.Emit(bytecode.Instr{Op: bytecode.OpMove, A: dst, B: base})
	}
	return dst, nil
}

func arithOp(op ast.BinOp) (bytecode.Op, bool) {
	switch op {
	case ast.OpAdd:
		return bytecode.OpAdd, true
	case ast.OpSub:
		return bytecode.OpSub, true
	case ast.OpMul:
		return bytecode.OpMul, true
	case ast.OpDiv:
		return bytecode.OpDiv, true
	case ast.OpMod:
		return bytecode.OpMod, true
	case ast.OpIDiv:
		return bytecode.OpIDiv, true
	case ast.OpConcat:
		return bytecode.OpConcat, true
	default:
		return 0, false
	}
}

func isComparison(op ast.BinOp) bool {
	switch op {
	case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		return true
	default:
		return false
	}
}

func isBitwise(op ast.BinOp) bool {
	switch op {
	case ast.OpBAnd, ast.OpBOr, ast.OpBXor, ast.OpShl, ast.OpShr:
		return true
	default:
		return false
	}
}

// evalBitwise routes &, |, ~, <<, >> through the bit32.* import table,
// since there is no native bitwise opcode (§10 bitwise decision table):
// the two operands are evaluated RTL, then laid out ascending as the
// two-argument call the resolved bit32 function expects.
func (fe *FuncEmitter) evalBitwise(n *ast.BinaryExpr, want int) (int, error) {
	member := map[ast.BinOp]string{
		ast.OpBAnd: "band",
		ast.OpBOr:  "bor",
		ast.OpBXor: "bxor",
		ast.OpShl:  "lshift",
		ast.OpShr:  "arshift",
	}[n.Op]

	base := fe.ra.Alloc() // callee slot
	fe.ra.Alloc()         // first argument slot
	fe.ra.Alloc()         // second argument slot
	rReg, err := fe.evalExpr(n.R, -1)
	if err != nil {
		return 0, err
	}
	lReg, err := fe.evalExpr(n.L, -1)
	if err != nil {
		return 0, err
	}
	if lReg != base+1 {
		fe.b.Emit(bytecode.Instr{Op: bytecode.OpMove, A: base + 1, B: lReg})
	}
	if rReg != base+2 {
		fe.b.Emit(bytecode.Instr{Op: bytecode.OpMove, A: base + 2, B: rReg})
	}
	aux, _ := fe.importRef("bit32", member)
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpGetImport, A: base, Aux: aux})
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpCall, A: base, B: 2, C: 1})
	dst := fe.takeReg(want)
	if dst != base {
		fe.b.Emit(bytecode.Instr{Op: bytecode.OpMove, A: dst, B: base})
	}
	return dst, nil
}

func (fe *FuncEmitter) evalBitwiseImportCall(member string, dst, arg int) (int, error) {
	base := fe.ra.Alloc() // callee slot
	fe.ra.Alloc()         // argument slot
	if arg != base+1 {
		fe.b.Emit(bytecode.Instr{Op: bytecode.OpMove, A: base + 1, B: arg})
	}
	aux, _ := fe.importRef("bit32", member)
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpGetImport, A: base, Aux: aux})
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpCall, A: base, B: 1, C: 1})
	if dst != base {
		fe.b.Emit(bytecode.Instr{Op: bytecode.OpMove, A: dst, B: base})
	}
	return dst, nil
}

// evalComparison implements the `>`/`>=` operand-swap reuse of
// `<`/`<=`: LSL has no GT/GE opcode, so `a > b` compiles as `b < a`
// and `a >= b` as `b <= a`, saving two opcodes at the cost of swapping
// evaluation order (the swap is applied after RTL evaluation, so
// source side-effect order is preserved; only which register is
// compared first-operand changes).
func (fe *FuncEmitter) evalComparison(n *ast.BinaryExpr, want int) (int, error) {
	if n.Op == ast.OpNe {
		if lit, ok := n.R.(*ast.ListExpr); ok && len(lit.Elems) == 0 {
			return fe.evalListLength(n.L, want)
		}
		if lit, ok := n.L.(*ast.ListExpr); ok && len(lit.Elems) == 0 {
			return fe.evalListLength(n.R, want)
		}
	}
	if (n.Op == ast.OpEq || n.Op == ast.OpNe) && (n.L.Type() == value.LSLList || n.R.Type() == value.LSLList) {
		return fe.evalListComparison(n, want)
	}
	rReg, err := fe.evalExpr(n.R, -1)
	if err != nil {
		return 0, err
	}
	lReg, err := fe.evalExpr(n.L, -1)
	if err != nil {
		return 0, err
	}
	dst := fe.takeReg(want)

	a, b, op := lReg, rReg, n.Op
	switch op {
	case ast.OpGt:
		a, b, op = rReg, lReg, ast.OpLt
	case ast.OpGe:
		a, b, op = rReg, lReg, ast.OpLe
	}

	// negated tracks whether the underlying jump condition (Eq/Lt/Le)
	// must be inverted to answer the source operator (Ne negates Eq;
	// Lt/Le/Eq answer themselves).
	negated := op == ast.OpNe
	var jumpOp bytecode.Op
	switch op {
	case ast.OpEq, ast.OpNe:
		jumpOp = bytecode.OpJumpIfEq
	case ast.OpLt:
		jumpOp = bytecode.OpJumpIfLt
	case ast.OpLe:
		jumpOp = bytecode.OpJumpIfLe
	}

	jtrue := fe.b.Emit(bytecode.Instr{Op: jumpOp, B: a, C: b})
	falseVal, trueVal := 0, 1
	if negated {
		falseVal, trueVal = trueVal, falseVal
	}
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpLoadBool, A: dst, B: falseVal})
	jend := fe.b.Emit(bytecode.Instr{Op: bytecode.OpJump})
	if err := fe.b.PatchJump(jtrue, fe.b.Here()); err != nil {
		return 0, err
	}
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpLoadBool, A: dst, B: trueVal})
	if err := fe.b.PatchJump(jend, fe.b.Here()); err != nil {
		return 0, err
	}
	return dst, nil
}

// evalListComparison implements LSL's length-only list ==/!= (§4.3):
// lists never compare element-by-element, only by length difference.
// The `lhs != []` shortcut (a single LENGTH opcode) is handled earlier,
// in evalComparison, before the result type is even consulted — this
// path only runs for comparisons evalComparison didn't already shortcut,
// and subtracts lengths (cast through float first: the native
// SUB/JUMPIFEQ opcodes only operate on TNumber registers), testing that
// difference against zero.
func (fe *FuncEmitter) evalListComparison(n *ast.BinaryExpr, want int) (int, error) {
	rReg, err := fe.evalExpr(n.R, -1)
	if err != nil {
		return 0, err
	}
	lReg, err := fe.evalExpr(n.L, -1)
	if err != nil {
		return 0, err
	}
	lLen := fe.ra.Alloc()
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpLength, A: lLen, B: lReg})
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpLSLCastIntFloat, A: lLen, B: lLen, Aux: bytecode.CastIntToFloat})
	rLen := fe.ra.Alloc()
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpLength, A: rLen, B: rReg})
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpLSLCastIntFloat, A: rLen, B: rLen, Aux: bytecode.CastIntToFloat})
	diff := fe.ra.Alloc()
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpSub, A: diff, B: lLen, C: rLen})
	zero := fe.ra.Alloc()
	zeroIdx, err := fe.consts.Add(value.Number(0))
	if err != nil {
		return 0, err
	}
	zeroOp := bytecode.OpLoadK
	if !bytecode.FitsSmallIndex(zeroIdx) {
		zeroOp = bytecode.OpLoadKS
	}
	fe.b.Emit(bytecode.Instr{Op: zeroOp, A: zero, B: zeroIdx})

	dst := fe.takeReg(want)
	negated := n.Op == ast.OpNe
	jtrue := fe.b.Emit(bytecode.Instr{Op: bytecode.OpJumpIfEq, B: diff, C: zero})
	falseVal, trueVal := 0, 1
	if negated {
		falseVal, trueVal = trueVal, falseVal
	}
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpLoadBool, A: dst, B: falseVal})
	jend := fe.b.Emit(bytecode.Instr{Op: bytecode.OpJump})
	if err := fe.b.PatchJump(jtrue, fe.b.Here()); err != nil {
		return 0, err
	}
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpLoadBool, A: dst, B: trueVal})
	if err := fe.b.PatchJump(jend, fe.b.Here()); err != nil {
		return 0, err
	}
	return dst, nil
}

// evalListLength emits the `lhs != []` shortcut (§8 testable property:
// `a != []` on a length-3 list yields 3, not a boolean).
func (fe *FuncEmitter) evalListLength(e ast.Expr, want int) (int, error) {
	src, err := fe.evalExpr(e, -1)
	if err != nil {
		return 0, err
	}
	dst := fe.takeReg(want)
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpLength, A: dst, B: src})
	return dst, nil
}

func (fe *FuncEmitter) importRef(module, member string) (int, int) {
	idx := fe.imports.Add(bytecode.ImportPath{Module: module, Member: member})
	aux, _ := fe.imports.PackedAux(idx)
	return aux, idx
}

// evalCall lays call arguments out in ascending, ready-to-call
// registers just above the callee slot while evaluating them in reverse
// (RTL) source order: the last argument is computed first but written
// directly into the highest argument slot by passing it as evalExpr's
// target register, so no post-hoc shuffle is ever needed to satisfy the
// CALL convention.
func (fe *FuncEmitter) evalCall(n *ast.CallExpr, want int) (int, error) {
	base := fe.ra.Alloc() // callee slot
	for i := 0; i < len(n.Args); i++ {
		fe.ra.Alloc()
	}
	for i := len(n.Args) - 1; i >= 0; i-- {
		target := base + 1 + i
		got, err := fe.evalExpr(n.Args[i], target)
		if err != nil {
			return 0, err
		}
		if got != target {
			fe.b.Emit(bytecode.Instr{Op: bytecode.OpMove, A: target, B: got})
		}
		fe.truncateFloat(n.Args[i], target)
	}
	aux, _ := fe.importRef("lsl", n.Callee)
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpGetImport, A: base, Aux: aux})
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpCall, A: base, B: len(n.Args), C: 1})
	if want >= 0 && want != base {
		fe.b.Emit(bytecode.Instr{Op: bytecode.OpMove, A: want, B: base})
		return want, nil
	}
	return base, nil
}

// evalList builds an actual list value (§3.1/§2): there is no native
// table-constructor opcode, so every element is laid into an
// lsl.list_new call's ascending argument registers, the same
// RTL-eval/LTR-layout convention evalCall uses for ordinary calls.
func (fe *FuncEmitter) evalList(n *ast.ListExpr, want int) (int, error) {
	base := fe.ra.Alloc() // callee slot
	for i := 0; i < len(n.Elems); i++ {
		fe.ra.Alloc()
	}
	for i := len(n.Elems) - 1; i >= 0; i-- {
		target := base + 1 + i
		got, err := fe.evalExpr(n.Elems[i], target)
		if err != nil {
			return 0, err
		}
		if got != target {
			fe.b.Emit(bytecode.Instr{Op: bytecode.OpMove, A: target, B: got})
		}
		fe.truncateFloat(n.Elems[i], target)
	}
	aux, _ := fe.importRef("lsl", "list_new")
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpGetImport, A: base, Aux: aux})
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpCall, A: base, B: len(n.Elems), C: 1})
	dst := fe.takeReg(want)
	if dst != base {
		fe.b.Emit(bytecode.Instr{Op: bytecode.OpMove, A: dst, B: base})
	}
	return dst, nil
}

// truncateFloat applies the §4.4 32-bit truncation rule: a value
// arriving from any float expression other than a bare constant or
// local read (arithmetic, a cast, a call result, a member read) is
// narrowed to float32 precision in reg before it is stored to a local,
// global, field, list element, or call argument. A constant or local
// read already carries a value that was truncated the last time it was
// written, so truncating it again would be redundant at best.
func (fe *FuncEmitter) truncateFloat(e ast.Expr, reg int) {
	if e.Type() != value.LSLFloat {
		return
	}
	switch e.(type) {
	case *ast.ConstExpr, *ast.LocalExpr:
		return
	}
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpLSLDouble2Float, A: reg})
}
