package ares

import "github.com/christophe-duc/lslengine/internal/closure"

// writeUpvalue emits one closure upvalue slot in full every time it is
// referenced — unlike writeProto, it does not deduplicate via the pointer
// reference table. Sharing is instead resolved entirely on the read side,
// keyed by u.ID: a thread's own open-upvalue triples (§4.7, written by
// writeThreadValue) carry the same ID, so whichever side of the
// closures-vs-thread ordering problem reads first just has to wait for the
// other to supply the real, live binding.
func (w *Writer) writeUpvalue(u *closure.Upvalue) error {
	if u == nil {
		return w.writeBool(false)
	}
	if err := w.writeBool(true); err != nil {
		return err
	}
	if err := w.writeUint64(u.ID); err != nil {
		return err
	}
	if err := w.writeBool(u.Open); err != nil {
		return err
	}
	return w.writeValue(u.Get())
}

// readUpvalue mirrors writeUpvalue for one slot belonging to cl.Upvalues[index].
// If the owning thread's triple for this ID was already processed, the real
// upvalue is returned directly; otherwise a closed stand-in is returned and
// (cl, index) is recorded so relinkUpvalue can patch it in later.
func (r *Reader) readUpvalue(cl *closure.Closure, index int) (*closure.Upvalue, error) {
	present, err := r.readBool()
	if err != nil || !present {
		return nil, err
	}
	id, err := r.readUint64()
	if err != nil {
		return nil, err
	}
	if _, err := r.readBool(); err != nil { // recorded open flag; the thread's own triple is authoritative
		return nil, err
	}
	v, err := r.readValue()
	if err != nil {
		return nil, err
	}

	if existing, ok := r.upvalByWireID[id]; ok {
		return existing, nil
	}
	standin := closure.NewClosedUpvalue(v)
	r.upvalByWireID[id] = standin
	r.upvalSites[id] = append(r.upvalSites[id], upvalPatch{cl: cl, index: index})
	return standin, nil
}
