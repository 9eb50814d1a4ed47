package ares

import "github.com/christophe-duc/lslengine/internal/value"

// Exported wrappers over Writer/Reader's primitive codec methods, for use
// by a Persistable/Unpersistable payload registered from another package
// via RegisterPayloadType. The unexported methods stay unexported so the
// rest of this package keeps using the terse names internally.

func (w *Writer) WriteBool(b bool) error     { return w.writeBool(b) }
func (w *Writer) WriteInt32(v int32) error   { return w.writeInt32(v) }
func (w *Writer) WriteUint32(v uint32) error { return w.writeUint32(v) }
func (w *Writer) WriteUint64(v uint64) error { return w.writeUint64(v) }
func (w *Writer) WriteF32(v float32) error   { return w.writeF32(v) }
func (w *Writer) WriteF64(v float64) error   { return w.writeF64(v) }
func (w *Writer) WriteString(s string) error { return w.writeStringBytes(s) }
func (w *Writer) WriteValue(v value.Value) error { return w.writeValue(v) }

func (r *Reader) ReadBool() (bool, error)       { return r.readBool() }
func (r *Reader) ReadInt32() (int32, error)     { return r.readInt32() }
func (r *Reader) ReadUint32() (uint32, error)   { return r.readUint32() }
func (r *Reader) ReadUint64() (uint64, error)   { return r.readUint64() }
func (r *Reader) ReadF32() (float32, error)     { return r.readF32() }
func (r *Reader) ReadF64() (float64, error)     { return r.readF64() }
func (r *Reader) ReadString() (string, error)   { return r.readStringBytes() }
func (r *Reader) ReadValue() (value.Value, error) { return r.readValue() }
