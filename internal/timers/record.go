package timers

import (
	"github.com/christophe-duc/lslengine/internal/closure"
	"github.com/christophe-duc/lslengine/internal/value"
)

// timerRecord is one registered timer: a repeater carries a non-nil
// Interval; a one-shot has Interval nil and is removed from the live
// array before its handler runs.
type timerRecord struct {
	handler         value.Value
	interval        *float64
	nextRun         float64
	logicalSchedule float64
}

func sameTimerHandler(a, b value.Value) bool {
	if a.Tag != value.TFunction || b.Tag != value.TFunction {
		return false
	}
	ca, _ := a.Fn.(*closure.Closure)
	cb, _ := b.Fn.(*closure.Closure)
	return ca != nil && ca == cb
}

// intervalArg is the value.Value a handler receives for its
// interval_or_nil argument: nil for a one-shot, the interval as an LSL
// float otherwise.
func intervalArg(interval *float64) value.Value {
	if interval == nil {
		return value.Nil
	}
	return value.Number(*interval)
}
