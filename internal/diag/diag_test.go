package diag

import (
	"testing"

	"github.com/christophe-duc/lslengine/internal/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCompileErrorsSingle(t *testing.T) {
	errs := []CompileError{{Span: ast.Span{Line: 3}, Message: "undeclared global 'x'"}}
	assert.Equal(t, ":Line 3: undeclared global 'x'", FormatCompileErrors(errs))
}

func TestFormatCompileErrorsEscapesEmbeddedNewlines(t *testing.T) {
	errs := []CompileError{{Span: ast.Span{Line: 1}, Message: "a\nb"}}
	assert.Equal(t, `:Line 1: a\nb`, FormatCompileErrors(errs))
}

func TestFormatCompileErrorsJoinsMultiple(t *testing.T) {
	errs := []CompileError{
		{Span: ast.Span{Line: 1}, Message: "first"},
		{Span: ast.Span{Line: 5}, Message: "second"},
	}
	assert.Equal(t, ":Line 1: first\nLine 5: second", FormatCompileErrors(errs))
}

func TestFormatCompileErrorsEmpty(t *testing.T) {
	assert.Equal(t, "", FormatCompileErrors(nil))
}

func TestErrorsImplementsError(t *testing.T) {
	var err error = Errors{{Span: ast.Span{Line: 2}, Message: "boom"}}
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Line 2: boom")
}

func TestPrettyPrintPlacesCaretUnderColumn(t *testing.T) {
	src := []byte("integer x = 1;\ninteger y = x + ;\n")
	errs := []CompileError{{Span: ast.Span{Line: 2, Col: 17}, Message: "expected expression"}}
	out := PrettyPrint(src, errs, false)
	assert.Contains(t, out, "Line 2: expected expression")
	assert.Contains(t, out, "integer y = x + ;")
	assert.Contains(t, out, "^")
}
