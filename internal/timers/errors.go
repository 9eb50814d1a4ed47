package timers

import "golang.org/x/xerrors"

var (
	// ErrNegativeInterval is returned by On/Every/Once for a negative
	// seconds argument.
	ErrNegativeInterval = xerrors.New("timers: interval must not be negative")
	// ErrReentrantTick is returned when Tick is invoked while already
	// running — a handler that somehow re-enters the timer-event path
	// rather than a call-stack walk, the Go-idiomatic equivalent (§9 open
	// question, resolved in DESIGN.md).
	ErrReentrantTick = xerrors.New("timers: reentrant tick rejected")
)
