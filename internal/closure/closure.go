// Package closure implements prototypes, closures and upvalues (§3.3):
// immutable compiled functions (Proto), the two closure kinds that wrap
// them (C closures over native functions, L closures over a Proto), and
// the shared-by-identity Upvalue that gives closures their captured-local
// semantics.
package closure

import (
	"sync/atomic"

	"github.com/christophe-duc/lslengine/internal/bytecode"
	"github.com/christophe-duc/lslengine/internal/table"
	"github.com/christophe-duc/lslengine/internal/value"
)

var protoSeq uint64

// DebugInfo carries optional source-level names, kept only for
// diagnostics; never consulted by the emitter or the VM.
type DebugInfo struct {
	SourceName string
	LineMap    []int32 // per-instruction source line, parallel to Code
	LocalNames []string
	UpvalNames []string
}

// Proto is an immutable compiled function: bytecode, constants, child
// prototypes, and the metadata the VM needs to run it.
type Proto struct {
	ID uint64 // stable, process-unique — used to key the fork server's persist-perms table

	SourceName    string
	BytecodeID    uint64
	Code          []bytecode.Instr
	Constants     []value.Value
	Children      []*Proto
	MaxStackSize  int
	NumParams     int
	NumUpvalues   int
	IsVararg      bool
	LineDefined   int32
	YieldPoints   []uint32 // PCs at which thread state is consistent enough to serialize
	Debug         *DebugInfo
	NativeCode    bool // set by an external JIT hook; this module never sets it
	nativeCodeHook func(*Proto)
}

// NewProto allocates a Proto with a fresh process-unique ID.
func NewProto(sourceName string) *Proto {
	return &Proto{ID: atomic.AddUint64(&protoSeq, 1), SourceName: sourceName}
}

// SetNativeRejitHook installs the callback a JIT invokes to recompile this
// proto after it (or a sibling sharing the same rejit batch) is
// reconstructed by the persistence engine. A Proto deserialized with
// NativeCode set but no hook installed simply runs interpreted.
func (p *Proto) SetNativeRejitHook(fn func(*Proto)) { p.nativeCodeHook = fn }

// Rejit invokes the installed native-rejit hook, if any. The persistence
// engine calls this once per batch of deserialized protos that had
// NativeCode set, mirroring anyProtoNative's single rejit pass.
func (p *Proto) Rejit() {
	if p.nativeCodeHook != nil {
		p.nativeCodeHook(p)
	}
}

// IsYieldPoint reports whether pc is a PC at which the full effect of the
// instruction has committed and the thread can be safely serialized.
func (p *Proto) IsYieldPoint(pc uint32) bool {
	for _, yp := range p.YieldPoints {
		if yp == pc {
			return true
		}
	}
	return false
}

// YieldPointIndex returns the index of pc within YieldPoints, used by the
// serializer to write the saved PC as a yield-point index rather than a
// raw offset (§4.7).
func (p *Proto) YieldPointIndex(pc uint32) (int, bool) {
	for i, yp := range p.YieldPoints {
		if yp == pc {
			return i, true
		}
	}
	return 0, false
}

// PCAtYieldPointIndex is the inverse of YieldPointIndex, used on
// deserialization. A bounds violation returns ok=false; the caller falls
// back to clamping the PC to the last valid entry (§4.7, §9 open
// questions).
func (p *Proto) PCAtYieldPointIndex(idx int) (uint32, bool) {
	if idx < 0 || idx >= len(p.YieldPoints) {
		return 0, false
	}
	return p.YieldPoints[idx], true
}

// Kind distinguishes C closures from L closures.
type Kind uint8

const (
	KindC Kind = iota
	KindL
)

// NativeFunc is the signature of a C-closure body: it receives its
// arguments and returns results or an error. Continuation is the optional
// re-entry point invoked after a suspension inside this call returns.
type NativeFunc func(args []value.Value) (results []value.Value, err error)

// Closure is either a C closure (native function + optional continuation +
// inline upvalues) or an L closure (prototype + upvalue refs + env table).
type Closure struct {
	Kind Kind

	// C closure fields.
	Native       NativeFunc
	Continuation NativeFunc
	CUpvalues    []value.Value

	// L closure fields.
	Proto    *Proto
	Upvalues []*Upvalue
	Env      *table.Table
}

// NewCClosure builds a native closure with inline upvalues captured by
// value (C closures always have closed upvalues, per §4.6).
func NewCClosure(fn NativeFunc, upvalues ...value.Value) *Closure {
	return &Closure{Kind: KindC, Native: fn, CUpvalues: upvalues}
}

// NewLClosure builds a Lua-style closure over proto, sharing the given
// upvalues by identity and installing env as its sandboxed globals table.
func NewLClosure(p *Proto, env *table.Table, upvalues ...*Upvalue) *Closure {
	return &Closure{Kind: KindL, Proto: p, Env: env, Upvalues: upvalues}
}
