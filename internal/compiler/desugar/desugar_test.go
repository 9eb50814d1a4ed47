package desugar

import (
	"testing"

	"github.com/christophe-duc/lslengine/internal/ast"
	"github.com/christophe-duc/lslengine/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntCastUpToFloatInComparison(t *testing.T) {
	intLit := ast.NewConst(value.Integer(1), value.LSLInteger)
	floatLit := ast.NewConst(value.Number(1.5), value.LSLFloat)

	bin := &ast.BinaryExpr{Op: ast.OpLt, L: intLit, R: floatLit}
	f := &ast.File{Funcs: []*ast.FuncDecl{{
		Body: []ast.Stmt{&ast.ExprStmt{X: bin}},
	}}}

	New().Run(f)

	es := f.Funcs[0].Body[0].(*ast.ExprStmt)
	rewritten := es.X.(*ast.BinaryExpr)

	cast, ok := rewritten.L.(*ast.CastExpr)
	require.True(t, ok, "int operand must be wrapped in a cast to float")
	assert.Equal(t, value.LSLInteger, cast.From)
	assert.Equal(t, value.LSLFloat, cast.Type())
	assert.Equal(t, value.LSLFloat, rewritten.R.Type())
}

func TestFloatOperandNeverCastDownToInt(t *testing.T) {
	intLit := ast.NewConst(value.Integer(1), value.LSLInteger)
	floatLit := ast.NewConst(value.Number(1.5), value.LSLFloat)

	bin := &ast.BinaryExpr{Op: ast.OpAdd, L: floatLit, R: intLit}
	f := &ast.File{Funcs: []*ast.FuncDecl{{
		Body: []ast.Stmt{&ast.ExprStmt{X: bin}},
	}}}

	New().Run(f)

	rewritten := f.Funcs[0].Body[0].(*ast.ExprStmt).X.(*ast.BinaryExpr)
	_, lIsCast := rewritten.L.(*ast.CastExpr)
	assert.False(t, lIsCast, "the already-float operand must not be touched")

	cast, ok := rewritten.R.(*ast.CastExpr)
	require.True(t, ok)
	assert.Equal(t, value.LSLInteger, cast.From)
}

func TestCompoundMulFloatTruncatesResult(t *testing.T) {
	assignSym := ast.SymbolID(1)
	stmt := &ast.AssignStmt{
		LHS: &ast.LocalLvalue{Symbol: assignSym},
		Op:  ast.AssignMulFloat,
		RHS: ast.NewConst(value.Number(2.5), value.LSLFloat),
	}
	f := &ast.File{Funcs: []*ast.FuncDecl{{Body: []ast.Stmt{stmt}}}}

	New().Run(f)

	rewritten := f.Funcs[0].Body[0].(*ast.AssignStmt)
	cast, ok := rewritten.RHS.(*ast.CastExpr)
	require.True(t, ok)
	assert.Equal(t, value.LSLInteger, cast.Type())
}
