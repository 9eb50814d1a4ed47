package ares

import (
	"fmt"

	"github.com/christophe-duc/lslengine/internal/bytecode"
	"github.com/christophe-duc/lslengine/internal/closure"
	"github.com/christophe-duc/lslengine/internal/value"
)

// Prototypes aren't value.Values, so they ride the same pointer-keyed
// reference table writeValue uses for ordinary aggregates, addressed
// directly by the raw Go pointer rather than through identityOf. Visiting
// the same *Proto twice in one stream — the common case of several
// closures sharing a prototype — costs only a REFERENCE tag on the second
// visit. Upvalues do not use this table (see writeUpvalue).
func (w *Writer) writeProto(p *closure.Proto) error {
	if p == nil {
		return w.writeBool(false)
	}
	if err := w.writeBool(true); err != nil {
		return err
	}
	if name, ok := w.protoPerms.lookup(p); ok {
		if err := w.writeByteTag(byte(tcProtoPermanent)); err != nil {
			return err
		}
		return w.writeStringBytes(name)
	}
	if refID, seen := w.refs[p]; seen {
		if err := w.writeByteTag(byte(tcReference)); err != nil {
			return err
		}
		return w.writeVarint(refID)
	}
	w.registerRef(p)
	if err := w.writeByteTag(byte(tcProtoBody)); err != nil {
		return err
	}

	if err := w.writeStringBytes(p.SourceName); err != nil {
		return err
	}
	if err := w.writeUint64(p.BytecodeID); err != nil {
		return err
	}
	if err := w.writeUint64(uint64(len(p.Code))); err != nil {
		return err
	}
	for _, instr := range p.Code {
		if err := w.writeInstr(instr); err != nil {
			return err
		}
	}
	if err := w.writeUint64(uint64(len(p.Constants))); err != nil {
		return err
	}
	for _, c := range p.Constants {
		if err := w.writeValue(c); err != nil {
			return err
		}
	}
	if err := w.writeUint64(uint64(len(p.Children))); err != nil {
		return err
	}
	for _, child := range p.Children {
		if err := w.writeProto(child); err != nil {
			return err
		}
	}
	if err := w.writeUint32(uint32(p.MaxStackSize)); err != nil {
		return err
	}
	if err := w.writeUint32(uint32(p.NumParams)); err != nil {
		return err
	}
	if err := w.writeUint32(uint32(p.NumUpvalues)); err != nil {
		return err
	}
	if err := w.writeBool(p.IsVararg); err != nil {
		return err
	}
	if err := w.writeInt32(p.LineDefined); err != nil {
		return err
	}
	if err := w.writeUint64(uint64(len(p.YieldPoints))); err != nil {
		return err
	}
	for _, yp := range p.YieldPoints {
		if err := w.writeUint32(yp); err != nil {
			return err
		}
	}
	if err := w.writeBool(p.NativeCode); err != nil {
		return err
	}
	if p.NativeCode {
		w.anyProtoNative = true
	}
	return w.writeDebugInfo(p.Debug)
}

func (w *Writer) writeDebugInfo(d *closure.DebugInfo) error {
	if d == nil {
		return w.writeBool(false)
	}
	if err := w.writeBool(true); err != nil {
		return err
	}
	if err := w.writeStringBytes(d.SourceName); err != nil {
		return err
	}
	if err := w.writeUint64(uint64(len(d.LineMap))); err != nil {
		return err
	}
	for _, l := range d.LineMap {
		if err := w.writeInt32(l); err != nil {
			return err
		}
	}
	if err := w.writeUint64(uint64(len(d.LocalNames))); err != nil {
		return err
	}
	for _, n := range d.LocalNames {
		if err := w.writeStringBytes(n); err != nil {
			return err
		}
	}
	if err := w.writeUint64(uint64(len(d.UpvalNames))); err != nil {
		return err
	}
	for _, n := range d.UpvalNames {
		if err := w.writeStringBytes(n); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeInstr(instr bytecode.Instr) error {
	if err := w.writeByte(byte(instr.Op)); err != nil {
		return err
	}
	if err := w.writeInt32(int32(instr.A)); err != nil {
		return err
	}
	if err := w.writeInt32(int32(instr.B)); err != nil {
		return err
	}
	if err := w.writeInt32(int32(instr.C)); err != nil {
		return err
	}
	return w.writeInt32(int32(instr.Aux))
}

// readProto mirrors writeProto. The returned pointer is nil when the
// stream recorded no prototype.
func (r *Reader) readProto() (*closure.Proto, error) {
	present, err := r.readBool()
	if err != nil || !present {
		return nil, err
	}

	tagByte, err := r.readByte()
	if err != nil {
		return nil, err
	}
	if tagByte == tcReference {
		refID, err := r.readVarint()
		if err != nil {
			return nil, err
		}
		return r.protoRefAt(refID)
	}
	if tagByte == tcProtoPermanent {
		name, err := r.readStringBytes()
		if err != nil {
			return nil, err
		}
		p, ok := r.protoUnperms.lookup(name)
		if !ok {
			return nil, fmt.Errorf("ares: %w: %q", ErrUnknownPermanent, name)
		}
		return p, nil
	}
	if tagByte != tcProtoBody {
		return nil, unexpectedTag(tagByte)
	}

	p := closure.NewProto("")
	r.registerRef(p)

	p.SourceName, err = r.readStringBytes()
	if err != nil {
		return nil, err
	}
	p.BytecodeID, err = r.readUint64()
	if err != nil {
		return nil, err
	}

	nCode, err := r.readUint64()
	if err != nil {
		return nil, err
	}
	p.Code = make([]bytecode.Instr, nCode)
	for i := range p.Code {
		p.Code[i], err = r.readInstr()
		if err != nil {
			return nil, err
		}
	}

	nConst, err := r.readUint64()
	if err != nil {
		return nil, err
	}
	p.Constants = make([]value.Value, nConst)
	for i := range p.Constants {
		p.Constants[i], err = r.readValue()
		if err != nil {
			return nil, err
		}
	}

	nChildren, err := r.readUint64()
	if err != nil {
		return nil, err
	}
	p.Children = make([]*closure.Proto, nChildren)
	for i := range p.Children {
		p.Children[i], err = r.readProto()
		if err != nil {
			return nil, err
		}
	}

	maxStack, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	p.MaxStackSize = int(maxStack)
	numParams, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	p.NumParams = int(numParams)
	numUpvalues, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	p.NumUpvalues = int(numUpvalues)
	p.IsVararg, err = r.readBool()
	if err != nil {
		return nil, err
	}
	p.LineDefined, err = r.readInt32()
	if err != nil {
		return nil, err
	}

	nYield, err := r.readUint64()
	if err != nil {
		return nil, err
	}
	p.YieldPoints = make([]uint32, nYield)
	for i := range p.YieldPoints {
		p.YieldPoints[i], err = r.readUint32()
		if err != nil {
			return nil, err
		}
	}

	p.NativeCode, err = r.readBool()
	if err != nil {
		return nil, err
	}
	if p.NativeCode {
		r.nativeProtos = append(r.nativeProtos, p)
	}

	p.Debug, err = r.readDebugInfo()
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Reader) readDebugInfo() (*closure.DebugInfo, error) {
	present, err := r.readBool()
	if err != nil || !present {
		return nil, err
	}
	d := &closure.DebugInfo{}
	d.SourceName, err = r.readStringBytes()
	if err != nil {
		return nil, err
	}
	nLines, err := r.readUint64()
	if err != nil {
		return nil, err
	}
	d.LineMap = make([]int32, nLines)
	for i := range d.LineMap {
		d.LineMap[i], err = r.readInt32()
		if err != nil {
			return nil, err
		}
	}
	nLocals, err := r.readUint64()
	if err != nil {
		return nil, err
	}
	d.LocalNames = make([]string, nLocals)
	for i := range d.LocalNames {
		d.LocalNames[i], err = r.readStringBytes()
		if err != nil {
			return nil, err
		}
	}
	nUpvals, err := r.readUint64()
	if err != nil {
		return nil, err
	}
	d.UpvalNames = make([]string, nUpvals)
	for i := range d.UpvalNames {
		d.UpvalNames[i], err = r.readStringBytes()
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (r *Reader) readInstr() (bytecode.Instr, error) {
	opByte, err := r.readByte()
	if err != nil {
		return bytecode.Instr{}, err
	}
	a, err := r.readInt32()
	if err != nil {
		return bytecode.Instr{}, err
	}
	b, err := r.readInt32()
	if err != nil {
		return bytecode.Instr{}, err
	}
	c, err := r.readInt32()
	if err != nil {
		return bytecode.Instr{}, err
	}
	aux, err := r.readInt32()
	if err != nil {
		return bytecode.Instr{}, err
	}
	return bytecode.Instr{Op: bytecode.Op(opByte), A: int(a), B: int(b), C: int(c), Aux: int(aux)}, nil
}
