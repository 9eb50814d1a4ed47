// Package desugar implements the cast-injection pass (§9): it rewrites
// an ast.File in place so that every implicit integer/float conversion
// the emitter needs to see is represented as an explicit ast.CastExpr
// node. Running this pass before code emission keeps the emitter's
// per-operator decision tables simple — it never has to re-derive
// whether a conversion is needed, only whether the node in front of it
// is a CastExpr.
package desugar

import (
	"github.com/christophe-duc/lslengine/internal/ast"
	"github.com/christophe-duc/lslengine/internal/value"
)

// Pass rewrites a File's function and event bodies, injecting casts
// where an operator requires operands of a uniform type but the source
// mixed integer and float operands.
type Pass struct{}

// New returns a ready-to-use desugaring pass.
func New() *Pass { return &Pass{} }

// Run applies the pass to every function and event handler body in f.
func (p *Pass) Run(f *ast.File) {
	for _, fn := range f.Funcs {
		fn.Body = p.stmts(fn.Body)
	}
	for _, st := range f.States {
		for _, ev := range st.Events {
			ev.Body = p.stmts(ev.Body)
		}
	}
}

func (p *Pass) stmts(in []ast.Stmt) []ast.Stmt {
	for i, s := range in {
		in[i] = p.stmt(s)
	}
	return in
}

func (p *Pass) stmt(s ast.Stmt) ast.Stmt {
	switch n := s.(type) {
	case *ast.LocalStmt:
		if n.Decl.Init != nil {
			n.Decl.Init = p.coerce(p.expr(n.Decl.Init), n.Decl.Type)
		}
	case *ast.AssignStmt:
		n.RHS = p.expr(n.RHS)
		if n.Op == ast.AssignMulFloat {
			// int *= float always truncates the product back to int (§9).
			n.RHS = ast.NewCast(n.RHS, n.RHS.Type(), value.LSLInteger)
		}
	case *ast.IfStmt:
		n.Cond = p.expr(n.Cond)
		n.Then = p.stmts(n.Then)
		n.Else = p.stmts(n.Else)
	case *ast.WhileStmt:
		n.Cond = p.expr(n.Cond)
		n.Body = p.stmts(n.Body)
	case *ast.DoWhileStmt:
		n.Body = p.stmts(n.Body)
		n.Cond = p.expr(n.Cond)
	case *ast.ForStmt:
		n.Init = p.stmts(n.Init)
		if n.Cond != nil {
			n.Cond = p.expr(n.Cond)
		}
		n.Post = p.stmts(n.Post)
		n.Body = p.stmts(n.Body)
	case *ast.ReturnStmt:
		if n.Value != nil {
			n.Value = p.expr(n.Value)
		}
	case *ast.ExprStmt:
		n.X = p.expr(n.X)
	}
	return s
}

// expr recurses into an expression tree, inserting a CastExpr around
// whichever side of an asymmetric binary comparison or arithmetic
// operator is int while the other is float, per the §4.4 decision
// table: an int compared against or combined with a float is cast up
// to float before the operation, never the reverse.
func (p *Pass) expr(e ast.Expr) ast.Expr {
	switch n := e.(type) {
	case *ast.BinaryExpr:
		n.L = p.expr(n.L)
		n.R = p.expr(n.R)
		if isArithOrCompare(n.Op) {
			lt, rt := n.L.Type(), n.R.Type()
			if lt == value.LSLInteger && rt == value.LSLFloat {
				n.L = ast.NewCast(n.L, lt, rt)
			} else if lt == value.LSLFloat && rt == value.LSLInteger {
				n.R = ast.NewCast(n.R, rt, lt)
			}
		}
		return n
	case *ast.UnaryExpr:
		n.X = p.expr(n.X)
		return n
	case *ast.MemberExpr:
		n.Container = p.expr(n.Container)
		return n
	case *ast.CastExpr:
		n.X = p.expr(n.X)
		return n
	case *ast.CallExpr:
		for i, a := range n.Args {
			n.Args[i] = p.expr(a)
		}
		return n
	case *ast.ListExpr:
		for i, el := range n.Elems {
			n.Elems[i] = p.expr(el)
		}
		return n
	default:
		return e
	}
}

// coerce inserts a cast around e if e's static type differs from want
// and the pair is int/float, the only implicit conversion LSL permits
// on assignment/initialization into a differently-typed slot.
func (p *Pass) coerce(e ast.Expr, want value.LSLType) ast.Expr {
	got := e.Type()
	if got == want {
		return e
	}
	if (got == value.LSLInteger && want == value.LSLFloat) ||
		(got == value.LSLFloat && want == value.LSLInteger) {
		return ast.NewCast(e, got, want)
	}
	return e
}

func isArithOrCompare(op ast.BinOp) bool {
	switch op {
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod,
		ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		return true
	default:
		return false
	}
}
