package fork

import (
	"github.com/christophe-duc/lslengine/internal/closure"
	"github.com/christophe-duc/lslengine/internal/table"
	"github.com/christophe-duc/lslengine/internal/value"
	"github.com/christophe-duc/lslengine/internal/vmthread"
)

// collectProtos walks every prototype reachable from th — its call stack,
// its value stack, and its globals table — and returns each one exactly
// once, in first-sight order. A thread is expected to reach only a modest,
// mostly-static set of compiled functions, so a plain visited-set walk is
// preferred over anything cleverer.
func collectProtos(th *vmthread.Thread) []*closure.Proto {
	seen := make(map[*closure.Proto]bool)
	var order []*closure.Proto

	var walkProto func(p *closure.Proto)
	walkProto = func(p *closure.Proto) {
		if p == nil || seen[p] {
			return
		}
		seen[p] = true
		order = append(order, p)
		for _, child := range p.Children {
			walkProto(child)
		}
	}

	walkClosure := func(cl *closure.Closure) {
		if cl != nil && cl.Kind == closure.KindL {
			walkProto(cl.Proto)
		}
	}

	visitedTables := make(map[*table.Table]bool)
	var walkValue func(v value.Value)
	walkValue = func(v value.Value) {
		switch v.Tag {
		case value.TFunction:
			if cl, ok := v.Fn.(*closure.Closure); ok {
				walkClosure(cl)
			}
		case value.TTable:
			t, ok := v.Table.(*table.Table)
			if !ok || t == nil || visitedTables[t] {
				return
			}
			visitedTables[t] = true
			for i := 1; i <= t.ArraySize(); i++ {
				walkValue(t.Get(value.Number(float64(i))))
			}
			for _, k := range t.HashOrder() {
				walkValue(k)
				walkValue(t.Get(k))
			}
		}
	}

	for _, slot := range th.Stack {
		walkValue(slot)
	}
	for _, ci := range th.CallInfo {
		walkClosure(ci.Closure)
	}
	if th.Globals != nil {
		walkValue(value.Value{Tag: value.TTable, Table: th.Globals})
	}

	return order
}

// protoPermKey names a prototype the way every generation of a fork server
// agrees on: source name plus the compiler-assigned bytecode id, so two
// processes that loaded the same compiled chunk independently still agree
// on the name.
func protoPermKey(p *closure.Proto) string {
	return "proto/" + p.SourceName + "/" + uitoa(p.BytecodeID)
}

func uitoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
