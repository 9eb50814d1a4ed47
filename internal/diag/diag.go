// Package diag formats compile-time diagnostics (§6, §7): the
// "Line N: message" batch format the compile entry point returns on
// failure, and a CLI-only pretty-printer that underlines the offending
// source line.
package diag

import (
	"strconv"
	"strings"

	"github.com/christophe-duc/lslengine/internal/ast"
	"github.com/fatih/color"
	runewidth "github.com/mattn/go-runewidth"
)

// CompileError is one (span, message) diagnostic, the sum-typed result a
// systems-language implementation surfaces in place of the original's
// C++ exceptions (§9 design notes).
type CompileError struct {
	Span    ast.Span
	Message string
}

// Errors is a batch of CompileError, itself an error so a pass can return
// every diagnostic it collected in one value rather than bailing at the
// first.
type Errors []CompileError

func (e Errors) Error() string { return FormatCompileErrors(e) }

// FormatCompileErrors implements the §6 compile-entry format: each error
// becomes "Line N: message", embedded newlines in message are escaped as
// literal "\n", and entries are joined by real newlines with a leading
// colon prefixing the whole diagnostic.
func FormatCompileErrors(errs []CompileError) string {
	if len(errs) == 0 {
		return ""
	}
	lines := make([]string, len(errs))
	for i, e := range errs {
		escaped := strings.ReplaceAll(e.Message, "\n", `\n`)
		lines[i] = "Line " + strconv.Itoa(e.Span.Line) + ": " + escaped
	}
	return ":" + strings.Join(lines, "\n")
}

// PrettyPrint renders src's offending lines with a caret under the
// reported column, optionally colorized. This is a CLI convenience, not
// part of the §6 compile contract (which returns only the plain
// "Line N: message" text).
func PrettyPrint(src []byte, errs []CompileError, useColor bool) string {
	srcLines := strings.Split(string(src), "\n")
	var b strings.Builder
	for i, e := range errs {
		if i > 0 {
			b.WriteByte('\n')
		}
		header := "Line " + strconv.Itoa(e.Span.Line) + ": " + e.Message
		if useColor {
			header = color.New(color.FgRed, color.Bold).Sprint(header)
		}
		b.WriteString(header)
		b.WriteByte('\n')

		lineIdx := e.Span.Line - 1
		if lineIdx < 0 || lineIdx >= len(srcLines) {
			continue
		}
		line := srcLines[lineIdx]
		b.WriteString(line)
		b.WriteByte('\n')
		b.WriteString(caretLine(line, e.Span.Col, useColor))
		b.WriteByte('\n')
	}
	return b.String()
}

// caretLine builds a line of spaces wide enough (in display columns,
// accounting for wide runes via go-runewidth) to place a caret under
// col, 1-based.
func caretLine(line string, col int, useColor bool) string {
	if col < 1 {
		col = 1
	}
	width := 0
	runes := []rune(line)
	for i := 0; i < col-1 && i < len(runes); i++ {
		width += runewidth.RuneWidth(runes[i])
	}
	caret := strings.Repeat(" ", width) + "^"
	if useColor {
		return color.New(color.FgGreen).Sprint(caret)
	}
	return caret
}
