package ares

import "golang.org/x/xerrors"

// Typed error taxonomy a caller can test with errors.Is/xerrors.Is.
var (
	// ErrUnknownTypeCode is returned when a stream byte does not name any
	// type this engine knows how to deserialize.
	ErrUnknownTypeCode = xerrors.New("ares: unknown type code in stream")

	// ErrBadReference is returned when a REFERENCE tag names an id outside
	// the range of objects seen so far.
	ErrBadReference = xerrors.New("ares: reference id out of range")

	// ErrUnknownPermanent is the ERR_SPER_UPERMNIL case: a PERMANENT key
	// has no entry in the unpermanents table supplied to Unpersist.
	ErrUnknownPermanent = xerrors.New("ares: no unpermanent registered for key")

	// ErrPermanentTypeMismatch is the ERR_SPER_UPERM case: the unpermanent
	// resolved for a key does not carry the type tag the stream recorded.
	ErrPermanentTypeMismatch = xerrors.New("ares: unpermanent type does not match persisted type")

	// ErrTruncatedInt is returned when a length-prefixed field's declared
	// size does not fit in the remaining stream.
	ErrTruncatedInt = xerrors.New("ares: truncated length-prefixed field")

	// ErrInvalidCallInfo names an invalid thread call-info frame. No code
	// path in this package returns it: readCallInfo accepts a frame whose
	// function value isn't a closure by leaving its Closure nil, and a Lua
	// frame with no prototype keeps its raw saved PC.
	ErrInvalidCallInfo = xerrors.New("ares: invalid call-info frame")

	// ErrPCNotAtYieldPoint is returned when persisting a running thread
	// whose saved PC does not correspond to a recorded yield point.
	ErrPCNotAtYieldPoint = xerrors.New("ares: saved PC is not at a yield point")

	// ErrComplexityExceeded is returned once the recursion depth counter
	// passes Options.MaxComplexity.
	ErrComplexityExceeded = xerrors.New("ares: persistence complexity bound exceeded")

	// ErrBadHeader is returned when the stream's magic/canary/size fields
	// do not match what this engine writes.
	ErrBadHeader = xerrors.New("ares: malformed or incompatible stream header")

	// ErrUnknownUserDataSubtag is returned when a userdata's subtag names
	// neither a built-in kind (key, quaternion) nor a type registered via
	// RegisterPayloadType.
	ErrUnknownUserDataSubtag = xerrors.New("ares: no persistence codec registered for userdata subtag")
)
