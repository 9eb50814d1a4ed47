package resolve

import (
	"testing"

	"github.com/christophe-duc/lslengine/internal/ast"
	"github.com/christophe-duc/lslengine/internal/bytecode"
	"github.com/christophe-duc/lslengine/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalsGetRegistersInDeclarationOrder(t *testing.T) {
	fnSym := ast.SymbolID(1)
	aSym := ast.SymbolID(2)
	bSym := ast.SymbolID(3)

	f := &ast.File{
		SrcName: "test",
		Funcs: []*ast.FuncDecl{
			{
				Symbol: fnSym,
				Name:   "doit",
				Params: []ast.Param{{Symbol: aSym, Name: "a", Type: value.LSLInteger}},
				Body: []ast.Stmt{
					&ast.LocalStmt{Decl: &ast.LocalDecl{Symbol: bSym, Name: "b", Type: value.LSLFloat}},
				},
			},
		},
	}

	v := NewVisitor()
	meta, err := v.Visit(f)
	require.NoError(t, err)

	fm := meta.ByFunc[fnSym]
	require.Equal(t, 0, fm.FunctionID)
	require.Len(t, fm.Locals, 2)
	assert.Equal(t, 0, fm.Locals[0].Register)
	assert.Equal(t, 1, fm.Locals[1].Register)
	assert.Equal(t, aSym, fm.Locals[0].Symbol)
	assert.Equal(t, bSym, fm.Locals[1].Symbol)
}

func TestFunctionsAndEventsGetIDsInSourceOrder(t *testing.T) {
	fn1 := ast.SymbolID(1)
	ev1 := ast.SymbolID(2)

	f := &ast.File{
		Funcs: []*ast.FuncDecl{{Symbol: fn1, Name: "helper"}},
		States: []*ast.StateDecl{
			{
				StateID: 0,
				Name:    "default",
				Events:  []*ast.EventDecl{{Symbol: ev1, Name: "touch_start"}},
			},
		},
	}

	v := NewVisitor()
	meta, err := v.Visit(f)
	require.NoError(t, err)

	assert.Equal(t, 0, meta.ByFunc[fn1].FunctionID)
	assert.Equal(t, 1, meta.ByFunc[ev1].FunctionID)
	assert.Equal(t, 0, meta.ByFunc[ev1].StateID)
	assert.Equal(t, -1, meta.ByFunc[fn1].StateID)
}

func TestBitwiseOpsRecordBit32Imports(t *testing.T) {
	fnSym := ast.SymbolID(1)
	f := &ast.File{
		Funcs: []*ast.FuncDecl{
			{
				Symbol: fnSym,
				Body: []ast.Stmt{
					&ast.ExprStmt{X: &ast.BinaryExpr{
						Op: ast.OpBAnd,
						L:  &ast.ConstExpr{Value: value.Integer(1)},
						R:  &ast.ConstExpr{Value: value.Integer(2)},
					}},
				},
			},
		},
	}

	v := NewVisitor()
	meta, err := v.Visit(f)
	require.NoError(t, err)

	fm := meta.ByFunc[fnSym]
	_, ok := fm.NeededImports[bytecode.ImportPath{Module: "bit32", Member: "band"}]
	assert.True(t, ok)
}

func TestIncDecRecordsOneConstantNeed(t *testing.T) {
	localSym := ast.SymbolID(2)
	fnSym := ast.SymbolID(1)
	f := &ast.File{
		Funcs: []*ast.FuncDecl{
			{
				Symbol: fnSym,
				Body: []ast.Stmt{
					&ast.LocalStmt{Decl: &ast.LocalDecl{Symbol: localSym, Name: "i", Type: value.LSLInteger}},
					&ast.IncDecStmt{Target: &ast.LocalLvalue{Symbol: localSym}, Op: ast.IncOp, Post: true},
				},
			},
		},
	}

	v := NewVisitor()
	meta, err := v.Visit(f)
	require.NoError(t, err)

	fm := meta.ByFunc[fnSym]
	_, ok := fm.NeededOnes[value.LSLInteger]
	assert.True(t, ok)
}

func TestTooManyLocalsRejected(t *testing.T) {
	fnSym := ast.SymbolID(1)
	body := make([]ast.Stmt, 0, maxLocalsPerFunction+1)
	for i := 0; i < maxLocalsPerFunction+1; i++ {
		body = append(body, &ast.LocalStmt{Decl: &ast.LocalDecl{
			Symbol: ast.SymbolID(100 + i),
			Name:   "x",
			Type:   value.LSLInteger,
		}})
	}
	f := &ast.File{Funcs: []*ast.FuncDecl{{Symbol: fnSym, Body: body}}}

	v := NewVisitor()
	_, err := v.Visit(f)
	assert.ErrorIs(t, err, ErrTooManyLocals)
}
