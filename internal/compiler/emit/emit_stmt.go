package emit

import (
	"github.com/christophe-duc/lslengine/internal/ast"
	"github.com/christophe-duc/lslengine/internal/bytecode"
	"github.com/christophe-duc/lslengine/internal/value"
)

func (fe *FuncEmitter) emitStmt(s ast.Stmt) error {
	switch n := s.(type) {
	case *ast.ExprStmt:
		scope := fe.ra.OpenScope()
		defer scope.Close()
		_, err := fe.evalExpr(n.X, -1)
		return err
	case *ast.LocalStmt:
		return fe.emitLocal(n)
	case *ast.AssignStmt:
		return fe.emitAssign(n)
	case *ast.IfStmt:
		return fe.emitIf(n)
	case *ast.WhileStmt:
		return fe.emitWhile(n)
	case *ast.DoWhileStmt:
		return fe.emitDoWhile(n)
	case *ast.ForStmt:
		return fe.emitFor(n)
	case *ast.ReturnStmt:
		return fe.emitReturn(n)
	case *ast.IncDecStmt:
		return fe.emitIncDec(n)
	case *ast.StateChangeStmt:
		return fe.emitStateChange(n)
	case *ast.JumpStmt:
		pc := fe.b.Emit(bytecode.Instr{Op: bytecode.OpJump})
		fe.pendingJumps[n.Label] = append(fe.pendingJumps[n.Label], pc)
		return nil
	case *ast.LabelStmt:
		fe.labelPCs[n.Label] = fe.b.Here()
		return nil
	}
	return nil
}

func (fe *FuncEmitter) emitLocal(n *ast.LocalStmt) error {
	reg, ok := fe.localReg(n.Decl.Symbol)
	if !ok {
		return ErrUnknownGlobal
	}
	if n.Decl.Init == nil {
		fe.b.Emit(bytecode.Instr{Op: bytecode.OpLoadNil, A: reg})
		return nil
	}
	if _, err := fe.evalExpr(n.Decl.Init, reg); err != nil {
		return err
	}
	fe.truncateFloat(n.Decl.Init, reg)
	return nil
}

func (fe *FuncEmitter) emitAssign(n *ast.AssignStmt) error {
	switch lv := n.LHS.(type) {
	case *ast.LocalLvalue:
		reg, ok := fe.localReg(lv.Symbol)
		if !ok {
			return ErrUnknownGlobal
		}
		if n.Op == ast.AssignMulFloat {
			return fe.emitMulFloatAssign(reg, n.RHS)
		}
		if _, err := fe.evalExpr(n.RHS, reg); err != nil {
			return err
		}
		fe.truncateFloat(n.RHS, reg)
		return nil
	case *ast.GlobalLvalue:
		scope := fe.ra.OpenScope()
		defer scope.Close()
		src, err := fe.evalExpr(n.RHS, -1)
		if err != nil {
			return err
		}
		fe.truncateFloat(n.RHS, src)
		fe.b.Emit(bytecode.Instr{Op: bytecode.OpSetGlobal, A: src, B: fe.stringK(lv.Name)})
		return nil
	case *ast.MemberLvalue:
		scope := fe.ra.OpenScope()
		defer scope.Close()
		containerReg, err := fe.evalExpr(lv.Container, -1)
		if err != nil {
			return err
		}
		valReg, err := fe.evalExpr(n.RHS, -1)
		if err != nil {
			return err
		}
		fe.truncateFloat(n.RHS, valReg)
		aux, _ := fe.importRef("lsl", "replace_axis")
		base := fe.ra.Alloc()
		fe.ra.Alloc() // container arg slot
		fe.ra.Alloc() // member-char arg slot
		fe.ra.Alloc() // new-value arg slot
		memberIdx, err := fe.consts.Add(value.String(string(lv.Member)))
		if err != nil {
			return err
		}
		fe.b.Emit(bytecode.Instr{Op: bytecode.OpGetImport, A: base, Aux: aux})
		fe.b.Emit(bytecode.Instr{Op: bytecode.OpMove, A: base + 1, B: containerReg})
		fe.b.Emit(bytecode.Instr{Op: bytecode.OpLoadK, A: base + 2, B: memberIdx})
		fe.b.Emit(bytecode.Instr{Op: bytecode.OpMove, A: base + 3, B: valReg})
		fe.b.Emit(bytecode.Instr{Op: bytecode.OpCall, A: base, B: 3, C: 1})
		if l, ok := lv.Container.(*ast.LocalExpr); ok {
			dstReg, _ := fe.localReg(l.Symbol)
			fe.b.Emit(bytecode.Instr{Op: bytecode.OpMove, A: dstReg, B: base})
		}
		return nil
	}
	return nil
}

// emitMulFloatAssign implements the §4.3 compound `*=` (ast.AssignMulFloat,
// "the only compound assignment operator"): the current integer value
// widens to a double via lsl.cast's native counterpart
// (OpLSLCastIntFloat), the product is computed as doubles so the native
// MUL opcode applies, §4.4 truncation narrows it to 32-bit precision,
// and a final cast narrows it back to an integer before the write-back.
//
// The desugar pass (§9) already wraps this statement's RHS in a
// float->int ast.CastExpr so the assignment's static type checks out;
// that wrapper describes the *stored* type, not the multiply, so it is
// unwrapped here to recover the original float factor the multiply
// itself needs.
func (fe *FuncEmitter) emitMulFloatAssign(reg int, rhs ast.Expr) error {
	scope := fe.ra.OpenScope()
	defer scope.Close()

	factor := rhs
	if ce, ok := rhs.(*ast.CastExpr); ok && ce.From == value.LSLFloat && ce.Type() == value.LSLInteger {
		factor = ce.X
	}

	rReg, err := fe.evalExpr(factor, -1)
	if err != nil {
		return err
	}
	fe.truncateFloat(factor, rReg)

	widened := fe.ra.Alloc()
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpLSLCastIntFloat, A: widened, B: reg, Aux: bytecode.CastIntToFloat})
	product := fe.ra.Alloc()
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpMul, A: product, B: widened, C: rReg})
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpLSLDouble2Float, A: product})
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpLSLCastIntFloat, A: reg, B: product, Aux: bytecode.CastFloatToInt})
	return nil
}

func (fe *FuncEmitter) emitIf(n *ast.IfStmt) error {
	scope := fe.ra.OpenScope()
	condReg, err := fe.evalExpr(n.Cond, -1)
	if err != nil {
		return err
	}
	jf := fe.b.Emit(bytecode.Instr{Op: bytecode.OpJumpIfNot, B: condReg})
	scope.Close()

	for _, s := range n.Then {
		if err := fe.emitStmt(s); err != nil {
			return err
		}
	}
	if len(n.Else) == 0 {
		return fe.b.PatchJump(jf, fe.b.Here())
	}
	jend := fe.b.Emit(bytecode.Instr{Op: bytecode.OpJump})
	if err := fe.b.PatchJump(jf, fe.b.Here()); err != nil {
		return err
	}
	for _, s := range n.Else {
		if err := fe.emitStmt(s); err != nil {
			return err
		}
	}
	return fe.b.PatchJump(jend, fe.b.Here())
}

func (fe *FuncEmitter) emitWhile(n *ast.WhileStmt) error {
	top := fe.b.Here()
	scope := fe.ra.OpenScope()
	condReg, err := fe.evalExpr(n.Cond, -1)
	if err != nil {
		return err
	}
	jf := fe.b.Emit(bytecode.Instr{Op: bytecode.OpJumpIfNot, B: condReg})
	scope.Close()
	for _, s := range n.Body {
		if err := fe.emitStmt(s); err != nil {
			return err
		}
	}
	pcBack := fe.b.Emit(bytecode.Instr{Op: bytecode.OpJumpBack})
	if err := fe.b.PatchJump(pcBack, top); err != nil {
		return err
	}
	return fe.b.PatchJump(jf, fe.b.Here())
}

func (fe *FuncEmitter) emitDoWhile(n *ast.DoWhileStmt) error {
	top := fe.b.Here()
	for _, s := range n.Body {
		if err := fe.emitStmt(s); err != nil {
			return err
		}
	}
	scope := fe.ra.OpenScope()
	defer scope.Close()
	condReg, err := fe.evalExpr(n.Cond, -1)
	if err != nil {
		return err
	}
	jf := fe.b.Emit(bytecode.Instr{Op: bytecode.OpJumpIfNot, B: condReg})
	pcBack := fe.b.Emit(bytecode.Instr{Op: bytecode.OpJumpBack})
	if err := fe.b.PatchJump(pcBack, top); err != nil {
		return err
	}
	return fe.b.PatchJump(jf, fe.b.Here())
}

func (fe *FuncEmitter) emitFor(n *ast.ForStmt) error {
	for _, s := range n.Init {
		if err := fe.emitStmt(s); err != nil {
			return err
		}
	}
	top := fe.b.Here()
	var jf int
	hasCond := n.Cond != nil
	if hasCond {
		scope := fe.ra.OpenScope()
		condReg, err := fe.evalExpr(n.Cond, -1)
		if err != nil {
			return err
		}
		jf = fe.b.Emit(bytecode.Instr{Op: bytecode.OpJumpIfNot, B: condReg})
		scope.Close()
	}
	for _, s := range n.Body {
		if err := fe.emitStmt(s); err != nil {
			return err
		}
	}
	for _, s := range n.Post {
		if err := fe.emitStmt(s); err != nil {
			return err
		}
	}
	pcBack := fe.b.Emit(bytecode.Instr{Op: bytecode.OpJumpBack})
	if err := fe.b.PatchJump(pcBack, top); err != nil {
		return err
	}
	if hasCond {
		return fe.b.PatchJump(jf, fe.b.Here())
	}
	return nil
}

func (fe *FuncEmitter) emitReturn(n *ast.ReturnStmt) error {
	if n.Value == nil {
		fe.b.Emit(bytecode.Instr{Op: bytecode.OpReturn, A: 0, B: 0})
		return nil
	}
	scope := fe.ra.OpenScope()
	defer scope.Close()
	reg, err := fe.evalExpr(n.Value, -1)
	if err != nil {
		return err
	}
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpReturn, A: reg, B: 1})
	return nil
}

// emitIncDec implements ++/-- using the pre-reserved "one" constant for
// the target's static type (§4.4): a float local adds the float one
// directly, an int local adds the int one, neither needs a cast. As a
// statement (this AST has no expression form of ++/--) pre/post only
// affects a value that nothing here reads, so both compile identically.
func (fe *FuncEmitter) emitIncDec(n *ast.IncDecStmt) error {
	lv, ok := n.Target.(*ast.LocalLvalue)
	if !ok {
		return fe.emitMemberIncDec(n)
	}
	reg, ok := fe.localReg(lv.Symbol)
	if !ok {
		return ErrUnknownGlobal
	}
	lm := fe.meta.BySymbol[lv.Symbol]
	oneIdx := fe.oneInt
	if lm.Type == value.LSLFloat {
		oneIdx = fe.oneFloat
	}

	op := bytecode.OpAddK
	if n.Op == ast.DecOp {
		op = bytecode.OpSubK
	}
	fe.b.Emit(bytecode.Instr{Op: op, A: reg, B: reg, C: oneIdx})
	return nil
}

func (fe *FuncEmitter) emitMemberIncDec(n *ast.IncDecStmt) error {
	// member ++/-- (v.x++) desugars to a read-modify-write through
	// lsl.replace_axis, same as a member assignment.
	lv := n.Target.(*ast.MemberLvalue)
	one := value.Integer(1)
	assignOp := ast.AssignSet
	rhsOp := ast.OpAdd
	if n.Op == ast.DecOp {
		rhsOp = ast.OpSub
	}
	return fe.emitAssign(&ast.AssignStmt{
		LHS: lv,
		Op:  assignOp,
		RHS: &ast.BinaryExpr{Op: rhsOp, L: &ast.MemberExpr{Container: lv.Container, Member: lv.Member}, R: ast.NewConst(one, value.LSLInteger)},
	})
}

func (fe *FuncEmitter) emitStateChange(n *ast.StateChangeStmt) error {
	base := fe.ra.Alloc() // callee slot
	fe.ra.Alloc()         // state-id argument slot
	aux, _ := fe.importRef("lsl", "change_state")
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpGetImport, A: base, Aux: aux})
	if _, err := fe.evalConst(value.Integer(int32(n.TargetStateID)), base+1); err != nil {
		return err
	}
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpCall, A: base, B: 1, C: 0})
	fe.b.Emit(bytecode.Instr{Op: bytecode.OpReturn, A: 0, B: 0})
	return nil
}
