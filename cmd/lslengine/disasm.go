package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/christophe-duc/lslengine/internal/bytecode"
	"github.com/christophe-duc/lslengine/internal/closure"
)

// disassembleProto renders one proto's code as one "PC OP A B C Aux"
// line per instruction, the shape the debug diff subcommand compares
// between two compiled units.
func disassembleProto(name string, p *closure.Proto) string {
	var b strings.Builder
	fmt.Fprintf(&b, "; %s (maxstack=%d, params=%d, upvalues=%d)\n", name, p.MaxStackSize, p.NumParams, p.NumUpvalues)
	for pc, instr := range p.Code {
		fmt.Fprintf(&b, "%04d  %-15s A=%-3d B=%-3d C=%-3d", pc, instr.Op, instr.A, instr.B, instr.C)
		if instr.Op == bytecode.OpGetImport || instr.Op == bytecode.OpLSLCastIntFloat {
			fmt.Fprintf(&b, " Aux=%d", instr.Aux)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// disassembleEntries renders every entry of a loaded unit in
// deterministic (sorted-by-name) order, so two independently compiled
// copies of the same source produce byte-identical disassembly and a
// genuine semantic change is the only thing that shows up in a diff.
func disassembleEntries(entries map[string]*closure.Closure) string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		cl := entries[name]
		if cl.Kind != closure.KindL {
			continue
		}
		b.WriteString(disassembleProto(name, cl.Proto))
		b.WriteByte('\n')
	}
	return b.String()
}
