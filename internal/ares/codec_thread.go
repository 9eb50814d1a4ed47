package ares

import (
	"github.com/christophe-duc/lslengine/internal/closure"
	"github.com/christophe-duc/lslengine/internal/table"
	"github.com/christophe-duc/lslengine/internal/value"
	"github.com/christophe-duc/lslengine/internal/vmthread"
)

// writeThreadValue emits a coroutine's full execution state: globals,
// stack, status, memory category, call-info frames (with a Lua frame's
// saved PC translated to a yield-point index rather than a raw offset, so
// a stream survives recompilation as long as yield points land at the same
// logical places), and finally its open upvalues as (offset, value, id)
// triples terminated by a zero offset (§4.7).
func (w *Writer) writeThreadValue(v value.Value) error {
	if err := w.writeByteTag(byte(value.TThread)); err != nil {
		return err
	}
	th, ok := v.Thread.(*vmthread.Thread)
	if !ok {
		return ErrUnknownTypeCode
	}

	if err := w.writeValue(value.Value{Tag: value.TTable, Table: th.Globals}); err != nil {
		return err
	}

	if err := w.writeUint64(uint64(len(th.Stack))); err != nil {
		return err
	}
	for _, slot := range th.Stack {
		if err := w.writeValue(slot); err != nil {
			return err
		}
	}

	if err := w.writeByte(byte(th.Status)); err != nil {
		return err
	}
	if err := w.writeInt32(int32(th.MemCat)); err != nil {
		return err
	}

	if err := w.writeUint64(uint64(len(th.CallInfo))); err != nil {
		return err
	}
	for _, ci := range th.CallInfo {
		if err := w.writeCallInfo(ci); err != nil {
			return err
		}
	}

	for _, uv := range th.OpenUV {
		if !uv.Open {
			continue
		}
		if err := w.writeVarint(uv.Index + 1); err != nil {
			return err
		}
		if err := w.writeValue(uv.Get()); err != nil {
			return err
		}
		if err := w.writeUint64(uv.ID); err != nil {
			return err
		}
	}
	return w.writeVarint(0)
}

func (w *Writer) writeCallInfo(ci vmthread.CallInfo) error {
	if err := w.writeInt32(int32(ci.FuncSlot)); err != nil {
		return err
	}
	if err := w.writeInt32(int32(ci.Base)); err != nil {
		return err
	}
	if err := w.writeInt32(int32(ci.Top)); err != nil {
		return err
	}
	if err := w.writeInt32(int32(ci.NResults)); err != nil {
		return err
	}
	if err := w.writeByte(byte(ci.Kind)); err != nil {
		return err
	}
	if err := w.writeByte(ci.Flags); err != nil {
		return err
	}

	hasClosure := ci.Closure != nil
	if err := w.writeBool(hasClosure); err != nil {
		return err
	}
	if hasClosure {
		if err := w.writeValue(value.Value{Tag: value.TFunction, Fn: ci.Closure}); err != nil {
			return err
		}
	}

	if ci.Kind == vmthread.CallLua && hasClosure && ci.Closure.Proto != nil {
		idx, ok := ci.Closure.Proto.YieldPointIndex(uint32(ci.SavedPC))
		if !ok {
			return ErrPCNotAtYieldPoint
		}
		return w.writeInt32(int32(idx))
	}
	return w.writeInt32(int32(ci.SavedPC))
}

func (r *Reader) readThreadValue() (value.Value, error) {
	th := vmthread.New(nil, 0)
	out := value.Value{Tag: value.TThread, Thread: th}
	r.registerRef(out)

	globalsVal, err := r.readValue()
	if err != nil {
		return value.Nil, err
	}
	th.Globals, _ = globalsVal.Table.(*table.Table)

	nStack, err := r.readUint64()
	if err != nil {
		return value.Nil, err
	}
	th.EnsureStack(int(nStack))
	for i := 0; i < int(nStack); i++ {
		slot, err := r.readValue()
		if err != nil {
			return value.Nil, err
		}
		th.SetStackSlot(i, slot)
	}

	statusByte, err := r.readByte()
	if err != nil {
		return value.Nil, err
	}
	th.Status = vmthread.Status(statusByte)

	memCat, err := r.readInt32()
	if err != nil {
		return value.Nil, err
	}
	th.MemCat = int(memCat)

	nFrames, err := r.readUint64()
	if err != nil {
		return value.Nil, err
	}
	th.CallInfo = make([]vmthread.CallInfo, nFrames)
	for i := range th.CallInfo {
		th.CallInfo[i], err = r.readCallInfo()
		if err != nil {
			return value.Nil, err
		}
	}

	for {
		offset, err := r.readVarint()
		if err != nil {
			return value.Nil, err
		}
		if offset == 0 {
			break
		}
		val, err := r.readValue()
		if err != nil {
			return value.Nil, err
		}
		id, err := r.readUint64()
		if err != nil {
			return value.Nil, err
		}
		th.SetStackSlot(offset-1, val)
		real := th.OpenUpvalueAt(offset - 1)
		r.relinkUpvalue(id, real)
	}

	return out, nil
}

func (r *Reader) readCallInfo() (vmthread.CallInfo, error) {
	var ci vmthread.CallInfo
	funcSlot, err := r.readInt32()
	if err != nil {
		return ci, err
	}
	base, err := r.readInt32()
	if err != nil {
		return ci, err
	}
	top, err := r.readInt32()
	if err != nil {
		return ci, err
	}
	nResults, err := r.readInt32()
	if err != nil {
		return ci, err
	}
	kindByte, err := r.readByte()
	if err != nil {
		return ci, err
	}
	flags, err := r.readByte()
	if err != nil {
		return ci, err
	}
	hasClosure, err := r.readBool()
	if err != nil {
		return ci, err
	}

	ci.FuncSlot = int(funcSlot)
	ci.Base = int(base)
	ci.Top = int(top)
	ci.NResults = int(nResults)
	ci.Kind = vmthread.CallKind(kindByte)
	ci.Flags = flags

	if hasClosure {
		clVal, err := r.readValue()
		if err != nil {
			return ci, err
		}
		ci.Closure, _ = clVal.Fn.(*closure.Closure)
	}

	savedIdx, err := r.readInt32()
	if err != nil {
		return ci, err
	}
	if ci.Kind == vmthread.CallLua && ci.Closure != nil && ci.Closure.Proto != nil {
		if pc, ok := ci.Closure.Proto.PCAtYieldPointIndex(int(savedIdx)); ok {
			ci.SavedPC = int(pc)
		} else {
			ci.SavedPC = int(lastYieldPointOrZero(ci.Closure.Proto))
		}
	} else {
		ci.SavedPC = int(savedIdx)
	}
	return ci, nil
}

// lastYieldPointOrZero is the graceful fallback (§9 open questions) for a
// saved yield-point index that no longer falls within a recompiled
// prototype's YieldPoints: the frame resumes at the last valid yield point
// rather than failing the whole deserialization.
func lastYieldPointOrZero(p *closure.Proto) uint32 {
	if len(p.YieldPoints) == 0 {
		return 0
	}
	return p.YieldPoints[len(p.YieldPoints)-1]
}
