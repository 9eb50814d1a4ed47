// Package vm implements a minimal interpreter sufficient to execute the
// opcode subset the emitter produces (§19 clarification — the original
// register VM's instruction dispatcher is out of scope, so this module
// supplies just enough of one to exercise Engine.Execute end to end).
package vm

import (
	"fmt"
	"math"

	"github.com/christophe-duc/lslengine/internal/bytecode"
	"github.com/christophe-duc/lslengine/internal/closure"
	"github.com/christophe-duc/lslengine/internal/table"
	"github.com/christophe-duc/lslengine/internal/value"
)

// ImportResolver looks up the native function bound to a dotted import
// path (e.g. "bit32.band"). The host's ll.* builtin library and the
// lsl.* helper namespace are both examples of things resolved this way;
// this module does not implement their bodies (§1 non-goals), only the
// resolution contract.
type ImportResolver interface {
	ResolveImport(path string) (closure.NativeFunc, bool)
}

// Exec runs proto's code against a fresh register file seeded with args,
// using globals for GETGLOBAL/SETGLOBAL and imports to resolve GETIMPORT.
// importPaths is the compilation unit's import pool rendered to dotted
// strings (bytecode.ImportPool.Paths(), stringified), indexed the same
// way GETIMPORT's packed Aux word indexes it; pass nil if proto never
// emits OpGetImport. It implements just enough of the register-VM
// contract (§4.1) for the emitter's output to be exercised end to end;
// it is not a general-purpose register VM product (§19 clarification).
func Exec(proto *closure.Proto, args []value.Value, globals interface {
	Get(value.Value) value.Value
	Set(value.Value, value.Value)
}, imports ImportResolver, importPaths []string) ([]value.Value, error) {
	regs := make([]value.Value, proto.MaxStackSize)
	for i, a := range args {
		if i < len(regs) {
			regs[i] = a
		}
	}

	pc := 0
	code := proto.Code
	for {
		if pc < 0 || pc >= len(code) {
			return nil, fmt.Errorf("bytecode: pc %d out of range (len %d)", pc, len(code))
		}
		instr := code[pc]
		next := pc + 1

		switch instr.Op {
		case bytecode.OpLoadNil:
			regs[instr.A] = value.Nil
		case bytecode.OpLoadBool:
			regs[instr.A] = value.Boolean(instr.B != 0)
		case bytecode.OpLoadK, bytecode.OpLoadKS:
			regs[instr.A] = proto.Constants[instr.B]
		case bytecode.OpMove:
			regs[instr.A] = regs[instr.B]
		case bytecode.OpGetGlobal:
			regs[instr.A] = globals.Get(proto.Constants[instr.B])
		case bytecode.OpSetGlobal:
			globals.Set(proto.Constants[instr.B], regs[instr.A])
		case bytecode.OpGetImport:
			idx := int(instr.Aux >> 8)
			if idx < 0 || idx >= len(importPaths) {
				return nil, fmt.Errorf("bytecode: bad import aux %d (idx %d, have %d paths)", instr.Aux, idx, len(importPaths))
			}
			path := importPaths[idx]
			fn, ok := imports.ResolveImport(path)
			if !ok {
				return nil, fmt.Errorf("bytecode: unresolved import %q", path)
			}
			regs[instr.A] = value.Value{Tag: value.TFunction, Fn: closure.NewCClosure(fn)}

		case bytecode.OpAdd:
			regs[instr.A] = value.Number(regs[instr.B].Number + regs[instr.C].Number)
		case bytecode.OpSub:
			regs[instr.A] = value.Number(regs[instr.B].Number - regs[instr.C].Number)
		case bytecode.OpMul:
			regs[instr.A] = value.Number(regs[instr.B].Number * regs[instr.C].Number)
		case bytecode.OpDiv:
			regs[instr.A] = value.Number(regs[instr.B].Number / regs[instr.C].Number)
		case bytecode.OpIDiv:
			regs[instr.A] = value.Number(math.Trunc(regs[instr.B].Number / regs[instr.C].Number))
		case bytecode.OpMod:
			regs[instr.A] = value.Number(math.Mod(regs[instr.B].Number, regs[instr.C].Number))
		case bytecode.OpAddK:
			regs[instr.A] = value.Number(regs[instr.B].Number + proto.Constants[instr.C].Number)
		case bytecode.OpSubK:
			regs[instr.A] = value.Number(regs[instr.B].Number - proto.Constants[instr.C].Number)
		case bytecode.OpMulK:
			regs[instr.A] = value.Number(regs[instr.B].Number * proto.Constants[instr.C].Number)
		case bytecode.OpDivK:
			regs[instr.A] = value.Number(regs[instr.B].Number / proto.Constants[instr.C].Number)
		case bytecode.OpModK:
			regs[instr.A] = value.Number(math.Mod(regs[instr.B].Number, proto.Constants[instr.C].Number))
		case bytecode.OpIDivK:
			regs[instr.A] = value.Number(math.Trunc(regs[instr.B].Number / proto.Constants[instr.C].Number))
		case bytecode.OpSubRK:
			regs[instr.A] = value.Number(proto.Constants[instr.C].Number - regs[instr.B].Number)
		case bytecode.OpDivRK:
			regs[instr.A] = value.Number(proto.Constants[instr.C].Number / regs[instr.B].Number)

		case bytecode.OpUnm:
			regs[instr.A] = value.Number(-regs[instr.B].Number)
		case bytecode.OpNot:
			regs[instr.A] = value.Boolean(!regs[instr.B].IsTruthy())
		case bytecode.OpLength:
			regs[instr.A] = lengthOf(regs[instr.B])
		case bytecode.OpConcat:
			regs[instr.A] = value.String(regs[instr.B].Str + regs[instr.C].Str)

		case bytecode.OpLSLDouble2Float:
			regs[instr.A] = value.Number(float64(float32(regs[instr.A].Number)))
		case bytecode.OpLSLCastIntFloat:
			if instr.Aux == bytecode.CastIntToFloat {
				i, _ := regs[instr.B].AsInteger()
				regs[instr.A] = value.Number(float64(i))
			} else {
				regs[instr.A] = value.Integer(int32(regs[instr.B].Number))
			}

		case bytecode.OpJump:
			next = pc + 1 + int(instr.A)
		case bytecode.OpJumpBack:
			next = pc + 1 + int(instr.A)
		case bytecode.OpJumpIf:
			if regs[instr.B].IsTruthy() {
				next = pc + 1 + int(instr.A)
			}
		case bytecode.OpJumpIfNot:
			if !regs[instr.B].IsTruthy() {
				next = pc + 1 + int(instr.A)
			}
		case bytecode.OpJumpIfEq:
			if numEq(regs[instr.B], regs[instr.C]) {
				next = pc + 1 + int(instr.A)
			}
		case bytecode.OpJumpIfLt:
			if regs[instr.B].Number < regs[instr.C].Number {
				next = pc + 1 + int(instr.A)
			}
		case bytecode.OpJumpIfLe:
			if regs[instr.B].Number <= regs[instr.C].Number {
				next = pc + 1 + int(instr.A)
			}

		case bytecode.OpReturn:
			n := int(instr.B)
			out := make([]value.Value, n)
			for i := 0; i < n; i++ {
				out[i] = regs[int(instr.A)+i]
			}
			return out, nil

		case bytecode.OpCall:
			fnReg := regs[instr.A]
			if fnReg.Tag != value.TFunction {
				return nil, fmt.Errorf("bytecode: attempt to call a %s value", fnReg.Tag)
			}
			cl, _ := fnReg.Fn.(*closure.Closure)
			nargs := int(instr.B)
			callArgs := make([]value.Value, nargs)
			for i := 0; i < nargs; i++ {
				callArgs[i] = regs[int(instr.A)+1+i]
			}
			results, err := invoke(cl, callArgs)
			if err != nil {
				return nil, err
			}
			for i := 0; i < int(instr.C); i++ {
				if i < len(results) {
					regs[int(instr.A)+i] = results[i]
				} else {
					regs[int(instr.A)+i] = value.Nil
				}
			}

		default:
			return nil, fmt.Errorf("bytecode: unimplemented opcode %d", instr.Op)
		}

		pc = next
	}
}

func invoke(cl *closure.Closure, args []value.Value) ([]value.Value, error) {
	if cl == nil {
		return nil, fmt.Errorf("bytecode: nil closure")
	}
	switch cl.Kind {
	case closure.KindC:
		return cl.Native(args)
	default:
		return nil, fmt.Errorf("bytecode: calling an L closure through Exec requires a thread-aware VM, not this minimal interpreter")
	}
}

func lengthOf(v value.Value) value.Value {
	switch v.Tag {
	case value.TString:
		return value.Integer(int32(len(v.Str)))
	case value.TTable:
		if t, ok := v.Table.(*table.Table); ok {
			return value.Integer(int32(t.Len()))
		}
		return value.Integer(0)
	default:
		return value.Integer(0)
	}
}

func numEq(a, b value.Value) bool {
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case value.TNumber:
		return a.Number == b.Number
	case value.TString:
		return a.Str == b.Str
	default:
		return false
	}
}
