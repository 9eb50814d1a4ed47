package timers

import (
	"github.com/christophe-duc/lslengine/internal/closure"
	"github.com/christophe-duc/lslengine/internal/value"
)

// newTickClosure builds the native closure registered as the internal
// "timer" event listener: the event manager's dispatch args are ignored,
// Tick drives everything off its own clock.
func newTickClosure(m *Manager) *closure.Closure {
	return closure.NewCClosure(func(args []value.Value) ([]value.Value, error) {
		return nil, m.Tick()
	})
}
