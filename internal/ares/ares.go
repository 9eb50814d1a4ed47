// Package ares implements the persistence engine (§3.6, §4.5-4.7): the
// recursive serializer/deserializer a fork server uses to freeze and
// resurrect a running thread. A reference table gives aggregates
// (tables, closures, prototypes, threads) identity-preserving, cycle-safe
// round trips, and shared upvalues are matched back together by their
// wire id; a permanents table lets the host substitute
// non-portable values (native functions, system metatables) with stable
// string keys instead of trying to serialize them.
package ares

import (
	"bytes"
	"fmt"

	"github.com/christophe-duc/lslengine/internal/closure"
	"github.com/christophe-duc/lslengine/internal/uuidkey"
	"github.com/christophe-duc/lslengine/internal/value"
)

// defaultMaxComplexity is the depth bound applied when Options.MaxComplexity
// is zero.
const defaultMaxComplexity = 10000

// Options configures a single Persist/Unpersist call.
type Options struct {
	// MaxComplexity bounds recursion depth; 0 selects defaultMaxComplexity.
	MaxComplexity int

	// PathTracking, when true, makes Writer keep a breadcrumb of the
	// table array indices it is descending through (root[2][1]…). Only
	// array slots are tracked, and the path is not attached to the
	// errors Persist returns.
	PathTracking bool

	// UUIDs is the intern table new key userdata is rehydrated through.
	// A throwaway table is used if nil, meaning keys deserialized in
	// separate calls would not share identity — callers that need
	// cross-call key identity should pass the runtime's real table.
	UUIDs *uuidkey.Table

	// ProtoPermanents, when set, short-circuits any prototype it has a
	// name for to that name on the wire instead of a full body (§4.8).
	ProtoPermanents *ProtoPermanentsTable
	// ProtoUnpermanents is ProtoPermanents' read-side inverse.
	ProtoUnpermanents *ProtoUnpermanentsTable
}

func (o Options) maxComplexity() int {
	if o.MaxComplexity <= 0 {
		return defaultMaxComplexity
	}
	return o.MaxComplexity
}

// PermanentsTable maps well-known non-portable values, keyed by identity,
// to a stable string the stream can carry instead of the value itself.
type PermanentsTable struct {
	byIdentity map[any]string
}

// NewPermanentsTable creates an empty table.
func NewPermanentsTable() *PermanentsTable {
	return &PermanentsTable{byIdentity: make(map[any]string)}
}

// Register associates identity (a *closure.Closure, Tabler, *UserData, or
// similar comparable handle) with key.
func (p *PermanentsTable) Register(identity any, key string) {
	p.byIdentity[identity] = key
}

func (p *PermanentsTable) lookup(identity any) (string, bool) {
	if p == nil || identity == nil {
		return "", false
	}
	key, ok := p.byIdentity[identity]
	return key, ok
}

// UnpermanentsTable maps a permanent's string key back to the live value
// it names, for deserialization.
type UnpermanentsTable struct {
	byKey map[string]value.Value
}

// NewUnpermanentsTable creates an empty table.
func NewUnpermanentsTable() *UnpermanentsTable {
	return &UnpermanentsTable{byKey: make(map[string]value.Value)}
}

// Register associates key with v, so a PERMANENT tag carrying key resolves
// to v on read.
func (u *UnpermanentsTable) Register(key string, v value.Value) {
	u.byKey[key] = v
}

func (u *UnpermanentsTable) lookup(key string) (value.Value, bool) {
	if u == nil {
		return value.Nil, false
	}
	v, ok := u.byKey[key]
	return v, ok
}

// ProtoPermanentsTable maps prototypes, keyed by pointer, to a stable
// string name. A fork server registers every prototype reachable from its
// base thread this way, so a checkpoint carries a short name instead of a
// full body for code the child already has loaded (§4.8).
type ProtoPermanentsTable struct {
	byProto map[*closure.Proto]string
}

// NewProtoPermanentsTable creates an empty table.
func NewProtoPermanentsTable() *ProtoPermanentsTable {
	return &ProtoPermanentsTable{byProto: make(map[*closure.Proto]string)}
}

// Register associates p with name. Re-registering the same pointer
// overwrites its name.
func (pt *ProtoPermanentsTable) Register(p *closure.Proto, name string) {
	pt.byProto[p] = name
}

func (pt *ProtoPermanentsTable) lookup(p *closure.Proto) (string, bool) {
	if pt == nil {
		return "", false
	}
	name, ok := pt.byProto[p]
	return name, ok
}

// ProtoUnpermanentsTable is ProtoPermanentsTable's inverse, used while
// reading: a name resolves back to the live prototype pointer it names.
type ProtoUnpermanentsTable struct {
	byName map[string]*closure.Proto
}

// NewProtoUnpermanentsTable creates an empty table.
func NewProtoUnpermanentsTable() *ProtoUnpermanentsTable {
	return &ProtoUnpermanentsTable{byName: make(map[string]*closure.Proto)}
}

// Register associates name with p.
func (pt *ProtoUnpermanentsTable) Register(name string, p *closure.Proto) {
	pt.byName[name] = p
}

func (pt *ProtoUnpermanentsTable) lookup(name string) (*closure.Proto, bool) {
	if pt == nil {
		return nil, false
	}
	p, ok := pt.byName[name]
	return p, ok
}

// Persist serializes root into a self-describing byte stream. permanents
// may be nil, meaning no value ever short-circuits through it.
func Persist(root value.Value, permanents *PermanentsTable, opts Options) ([]byte, error) {
	var out bytes.Buffer
	writeHeader(&out)

	w := &Writer{
		perms:      permanents,
		protoPerms: opts.ProtoPermanents,
		refs:       make(map[any]int),
		maxDepth:   opts.maxComplexity(),
		path:       newPathTracker(opts.PathTracking),
	}
	if err := w.writeValue(root); err != nil {
		return nil, err
	}
	if w.anyProtoNative {
		// A real JIT would batch-rejit here; this module has no JIT, so
		// the flag is threaded through for a host that does to consult.
		_ = w.anyProtoNative
	}
	out.Write(w.buf.Bytes())
	return out.Bytes(), nil
}

// Unpersist reconstructs the value tree a matching Persist call produced.
// unpermanents may be nil only if the stream is known to contain no
// PERMANENT tags.
func Unpersist(data []byte, unpermanents *UnpermanentsTable, opts Options) (value.Value, error) {
	br := bytes.NewReader(data)
	if _, err := readHeader(br); err != nil {
		return value.Nil, err
	}

	uuids := opts.UUIDs
	if uuids == nil {
		uuids = uuidkey.New()
	}
	r := &Reader{
		buf:           br,
		unperms:       unpermanents,
		protoUnperms:  opts.ProtoUnpermanents,
		maxDepth:      opts.maxComplexity(),
		uuids:         uuids,
		upvalByWireID: make(map[uint64]*closure.Upvalue),
		upvalSites:    make(map[uint64][]upvalPatch),
		nativeProtos:  nil,
	}
	v, err := r.readValue()
	if err != nil {
		return value.Nil, err
	}
	for _, p := range r.nativeProtos {
		p.Rejit()
	}
	return v, nil
}

// identityOf returns the comparable handle writeValue's reference table
// and permanents lookup key non-simple values by, and whether v has one.
// Strings are keyed by content rather than a Go pointer (plain Go strings
// carry no stable identity of their own); buffers have none at all, so
// each occurrence of a buffer value is serialized in full rather than
// reference-deduplicated — acceptable since a buffer cannot contain a
// cycle back to itself.
func identityOf(v value.Value) (any, bool) {
	switch v.Tag {
	case value.TString:
		return v.Str, true
	case value.TTable:
		return v.Table, true
	case value.TUserData:
		return v.UD, true
	case value.TFunction:
		return v.Fn, true
	case value.TThread:
		return v.Thread, true
	default:
		return nil, false
	}
}

func unexpectedTag(tagByte byte) error {
	return fmt.Errorf("ares: %w (byte %d)", ErrUnknownTypeCode, tagByte)
}
