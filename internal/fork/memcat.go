package fork

import "sync"

// memCategoryAccounting tracks how many fork/checkpoint operations are
// currently in flight per memory category, so a host callback can attribute
// the allocation spike each operation causes to the right script instead of
// to the fork server itself.
var memCategoryAccounting struct {
	mu     sync.Mutex
	active map[int]int
}

func init() {
	memCategoryAccounting.active = make(map[int]int)
}

func enterMemCategory(cat int) {
	memCategoryAccounting.mu.Lock()
	defer memCategoryAccounting.mu.Unlock()
	memCategoryAccounting.active[cat]++
}

func leaveMemCategory(cat int) {
	memCategoryAccounting.mu.Lock()
	defer memCategoryAccounting.mu.Unlock()
	memCategoryAccounting.active[cat]--
	if memCategoryAccounting.active[cat] <= 0 {
		delete(memCategoryAccounting.active, cat)
	}
}

// ActiveMemCategories reports how many fork/checkpoint operations are
// currently in flight for each memory category with at least one, for
// diagnostics.
func ActiveMemCategories() map[int]int {
	memCategoryAccounting.mu.Lock()
	defer memCategoryAccounting.mu.Unlock()
	out := make(map[int]int, len(memCategoryAccounting.active))
	for k, v := range memCategoryAccounting.active {
		out[k] = v
	}
	return out
}
