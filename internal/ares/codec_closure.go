package ares

import (
	"github.com/christophe-duc/lslengine/internal/closure"
	"github.com/christophe-duc/lslengine/internal/table"
	"github.com/christophe-duc/lslengine/internal/value"
)

// writeClosureValue emits a native closure through the permanents table —
// its Go function pointer has no portable representation, so a caller that
// never registered one gets ErrUnknownPermanent rather than a wire format
// this module would have to invent for raw code pointers. An L closure
// emits its prototype (shared via the same reference table as any other
// aggregate), its env table, and each upvalue slot.
func (w *Writer) writeClosureValue(v value.Value) error {
	if err := w.writeByteTag(byte(value.TFunction)); err != nil {
		return err
	}
	cl, ok := v.Fn.(*closure.Closure)
	if !ok || cl == nil {
		return ErrUnknownTypeCode
	}
	if cl.Kind == closure.KindC {
		return ErrUnknownPermanent // native closures must be pre-registered as permanents
	}

	if err := w.writeByteTag(byte(closureKindLua)); err != nil {
		return err
	}
	if err := w.writeProto(cl.Proto); err != nil {
		return err
	}
	if err := w.writeValue(value.Value{Tag: value.TTable, Table: cl.Env}); err != nil {
		return err
	}
	if err := w.writeUint64(uint64(len(cl.Upvalues))); err != nil {
		return err
	}
	for _, uv := range cl.Upvalues {
		if err := w.writeUpvalue(uv); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) readClosureValue() (value.Value, error) {
	kindByte, err := r.readByte()
	if err != nil {
		return value.Nil, err
	}
	if closureKind(kindByte) != closureKindLua {
		return value.Nil, ErrUnknownTypeCode
	}

	cl := &closure.Closure{Kind: closure.KindL}
	out := value.Value{Tag: value.TFunction, Fn: cl}
	r.registerRef(out)

	cl.Proto, err = r.readProto()
	if err != nil {
		return value.Nil, err
	}
	envVal, err := r.readValue()
	if err != nil {
		return value.Nil, err
	}
	if env, ok := envVal.Table.(*table.Table); ok {
		cl.Env = env
	}

	nUpvals, err := r.readUint64()
	if err != nil {
		return value.Nil, err
	}
	cl.Upvalues = make([]*closure.Upvalue, nUpvals)
	for i := range cl.Upvalues {
		cl.Upvalues[i], err = r.readUpvalue(cl, i)
		if err != nil {
			return value.Nil, err
		}
	}
	return out, nil
}
