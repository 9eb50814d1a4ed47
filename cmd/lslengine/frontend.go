package main

import (
	"github.com/christophe-duc/lslengine/internal/ast"
	"github.com/go-errors/errors"
)

// ErrNoFrontend is returned by noFrontend, the placeholder this binary
// installs in place of a real LSL parser/type-checker: that front end is
// explicitly out of scope for this module (§1, §19 non-goals — "the
// parser and type checker ... a separate front-end whose output is an
// annotated AST"). A host embedding internal/engine supplies its own
// engine.Frontend; this CLI has none to supply, so `compile` always fails
// with this error and `execute`/`disasm`/`diff` only work against an
// already-compiled bytecode blob.
var ErrNoFrontend = errors.New("lslengine: no LSL front end is bundled with this binary; supply one via engine.Frontend")

func noFrontend(source []byte) (*ast.File, error) {
	return nil, ErrNoFrontend
}
