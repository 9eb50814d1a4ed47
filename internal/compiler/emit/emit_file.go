package emit

import (
	"fmt"

	"github.com/christophe-duc/lslengine/internal/ast"
	"github.com/christophe-duc/lslengine/internal/bytecode"
	"github.com/christophe-duc/lslengine/internal/closure"
	"github.com/christophe-duc/lslengine/internal/compiler/desugar"
	"github.com/christophe-duc/lslengine/internal/compiler/resolve"
)

// Unit is a fully emitted compilation unit: every function and event
// handler proto, addressable by its mangled global name, plus the
// shared constant/import pools every proto's code indexes into.
type Unit struct {
	Protos  map[string]*closure.Proto
	Consts  *bytecode.ConstantPool
	Imports *bytecode.ImportPool
}

// MangledName returns the global symbol name a function or event
// handler is installed under: a free function keeps its declared name,
// an event handler is qualified by its owning state so `default` and a
// custom state can each have their own `touch_start`.
func MangledName(stateName, declaredName string) string {
	if stateName == "" {
		return declaredName
	}
	return fmt.Sprintf("%s::%s", stateName, declaredName)
}

// CompileFile runs resolve, desugar, and emission over f and returns
// the resulting Unit. The constant and import pools are shared across
// every proto so that e.g. the string constant "touch_start" used in
// two different event bodies gets one index, not two.
func CompileFile(f *ast.File) (*Unit, error) {
	desugar.New().Run(f)

	meta, err := resolve.NewVisitor().Visit(f)
	if err != nil {
		return nil, err
	}

	unit := &Unit{
		Protos:  map[string]*closure.Proto{},
		Consts:  bytecode.NewConstantPool(),
		Imports: bytecode.NewImportPool(),
	}

	for _, fn := range f.Funcs {
		fm := meta.ByFunc[fn.Symbol]
		fe, err := NewFuncEmitter(f.SrcName, unit.Consts, unit.Imports, meta, fm, len(fn.Params))
		if err != nil {
			return nil, err
		}
		proto, err := fe.EmitBody(fn.Body)
		if err != nil {
			return nil, err
		}
		unit.Protos[MangledName("", fn.Name)] = proto
	}

	for _, st := range f.States {
		for _, ev := range st.Events {
			fm := meta.ByFunc[ev.Symbol]
			fe, err := NewFuncEmitter(f.SrcName, unit.Consts, unit.Imports, meta, fm, len(ev.Params))
			if err != nil {
				return nil, err
			}
			proto, err := fe.EmitBody(ev.Body)
			if err != nil {
				return nil, err
			}
			unit.Protos[MangledName(st.Name, ev.Name)] = proto
		}
	}

	return unit, nil
}
