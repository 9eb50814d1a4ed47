// Package engine ties every other package in this module into the
// single object a host embeds (§6): compile a script, load it into a
// thread, execute it, and keep its event/timer managers and fork server
// wired to that thread's closures. Modeled on the teacher's
// pkg/app.App — a construct-in-order, bail-on-first-error struct that
// holds one instance of every long-lived subsystem and the host
// callbacks they were built around.
package engine

import (
	"github.com/christophe-duc/lslengine/internal/ast"
	"github.com/christophe-duc/lslengine/internal/closure"
	"github.com/christophe-duc/lslengine/internal/events"
	"github.com/christophe-duc/lslengine/internal/fork"
	"github.com/christophe-duc/lslengine/internal/table"
	"github.com/christophe-duc/lslengine/internal/timers"
	"github.com/christophe-duc/lslengine/internal/uuidkey"
	"github.com/christophe-duc/lslengine/internal/value"
	"github.com/christophe-duc/lslengine/internal/vmthread"
	"github.com/christophe-duc/lslengine/pkg/config"
	"github.com/sirupsen/logrus"
	deadlock "github.com/sasha-s/go-deadlock"
	"golang.org/x/xerrors"
)

// ErrNotLoaded is returned by any operation that needs a loaded script
// (event dispatch, forking) before Load has run.
var ErrNotLoaded = xerrors.New("engine: no script loaded")

// Frontend turns source text into the annotated AST this module accepts
// as its front-end boundary (§1, §19 non-goals: the parser/type checker
// itself is out of scope). A host supplies one; Engine never parses
// LSL source on its own.
type Frontend func(source []byte) (*ast.File, error)

// HostCallbacks is the §6 callback set a host installs so the engine can
// reach back into the world it runs in: register/unregister event
// interest, learn the current and performance-counter clock, seed
// randomness, interrupt a runaway script, spawn a detached worker
// thread, and veto an allocation before it happens.
type HostCallbacks struct {
	EventHandlerRegistration events.RegistrationCallback
	SetTimerEvent            func(seconds float64)
	ClockProvider            func() float64
	RandomProvider           func() float64
	PerformanceClockProvider func() float64
	Interrupt                func() error
	UserThread               func(fn func())
	BeforeAllocate           func(category int, size int64) error
}

// Runtime is the per-engine state that outlives any single script load:
// the globals a script's top-level variables live in and the UUID
// intern table (§4.11) every key value in this runtime shares.
//
// SPEC_FULL.md describes this as `value.Runtime`; it lives here instead
// of in internal/value because internal/value is the base tagged-union
// package that internal/uuidkey and internal/table already import — a
// Runtime type there referencing both would be an import cycle.
type Runtime struct {
	Globals *table.Table
	UUIDs   *uuidkey.Table
}

// NewRuntime creates an empty Runtime with a fresh globals table and
// UUID intern table.
func NewRuntime() *Runtime {
	return &Runtime{Globals: table.New(), UUIDs: uuidkey.New()}
}

// Engine wires Config, a logger, the runtime, the event and timer
// managers, the fork server (once a script is loaded), the host
// callbacks, and the compile-time frontend into the one object a host
// embeds.
type Engine struct {
	mu deadlock.Mutex

	Config    *config.Config
	Log       *logrus.Entry
	Runtime   *Runtime
	Events    *events.Manager
	Timers    *timers.Manager
	Fork      *fork.ForkServer
	Callbacks HostCallbacks

	frontend Frontend
	natives  map[string]nativeFn

	thread       *vmthread.Thread
	entries      map[string]*closure.Closure
	importPaths  []string
	stateNames   map[int]string
	chunkname    string
	yields       []value.Value
	pendingState *string
}

// NewAppConfig-style construction: NewEngine builds the Runtime, event
// manager, and timer manager in order and bails on the first error,
// mirroring the teacher's app.NewApp shape. frontend may be nil if the
// host only ever calls Load with pre-compiled bytecode.
func NewEngine(cfg *config.Config, log *logrus.Entry, frontend Frontend, cb HostCallbacks) (*Engine, error) {
	if cfg == nil {
		d := config.DefaultConfig()
		cfg = &d
	}
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}

	e := &Engine{
		Config:    cfg,
		Log:       log,
		Runtime:   NewRuntime(),
		Callbacks: cb,
		frontend:  frontend,
		natives:   make(map[string]nativeFn),
	}

	e.Events = events.NewManager(e.invoke, cb.EventHandlerRegistration)
	e.Timers = timers.NewManager(e.Events, e.clock(), e.setTimerEvent(), e.invoke, cfg.TimerLagClampSeconds)

	return e, nil
}

func (e *Engine) clock() func() float64 {
	if e.Callbacks.ClockProvider != nil {
		return e.Callbacks.ClockProvider
	}
	return func() float64 { return 0 }
}

func (e *Engine) setTimerEvent() func(seconds float64) {
	if e.Callbacks.SetTimerEvent != nil {
		return e.Callbacks.SetTimerEvent
	}
	return func(float64) {}
}

// RegisterNative installs a host-provided native function under a
// script-visible name (the `ll.*` builtin library, §19 non-goals:
// "registered as opaque permanents, not implemented" — this is the
// registration mechanism, the bodies are the host's to supply).
func (e *Engine) RegisterNative(name string, fn func(args []value.Value) ([]value.Value, error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.natives[name] = fn
}

// Thread returns the currently loaded script's thread, or nil if Load
// has not yet run.
func (e *Engine) Thread() *vmthread.Thread {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.thread
}

// EnableForking anchors a fork server to the currently loaded script's
// thread (§4.8): every subsequent Fork call reconstructs a fresh child
// from this frozen base instead of re-running the script's setup code.
func (e *Engine) EnableForking() error {
	e.mu.Lock()
	th := e.thread
	e.mu.Unlock()
	if th == nil {
		return ErrNotLoaded
	}
	fs, err := fork.NewForkServer(th, e.Log)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.Fork = fs
	e.mu.Unlock()
	return nil
}
