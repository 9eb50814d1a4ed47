package bytecode

import "fmt"

// maxJumpRange bounds the PC-relative 16-bit jump offset the VM contract
// promises (§4.1).
const maxJumpRange = 1 << 15

// ErrJumpOutOfRange is returned when a patched jump's offset does not fit
// the 16-bit PC-relative encoding.
var ErrJumpOutOfRange = fmt.Errorf("bytecode: jump target out of 16-bit patch range")

// Builder is the façade the emitter drives: Emit appends one instruction
// and returns its PC, jump instructions are emitted with a placeholder
// target and patched once the destination is known.
type Builder struct {
	code []Instr
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder { return &Builder{} }

// Emit appends instr and returns its PC.
func (b *Builder) Emit(instr Instr) int {
	b.code = append(b.code, instr)
	return len(b.code) - 1
}

// Here returns the PC the next Emit call will use.
func (b *Builder) Here() int { return len(b.code) }

// PatchJump rewrites the jump instruction at pc so its offset targets
// dest. Forward jumps (dest > pc) use OpJump's relative-offset
// convention; backward jumps (dest <= pc) are expected to already carry
// OpJumpBack and are patched the same way — the op itself, not this
// function, records direction.
func (b *Builder) PatchJump(pc int, dest int) error {
	if pc < 0 || pc >= len(b.code) {
		return fmt.Errorf("bytecode: patch target pc %d out of range", pc)
	}
	offset := dest - (pc + 1)
	if offset >= maxJumpRange || offset < -maxJumpRange {
		return ErrJumpOutOfRange
	}
	b.code[pc].A = offset
	return nil
}

// Code returns the finished instruction stream.
func (b *Builder) Code() []Instr {
	out := make([]Instr, len(b.code))
	copy(out, b.code)
	return out
}

// Len returns the number of instructions emitted so far.
func (b *Builder) Len() int { return len(b.code) }
