package ares

import "fmt"

// pathTracker accumulates a human-readable breadcrumb (root.field[2]…) as
// the writer descends. It is a plain stack of labels; disabled trackers do
// no work at all. The writer pushes only table array indices, and no error
// it returns includes the rendered path.
type pathTracker struct {
	enabled bool
	labels  []string
}

func newPathTracker(enabled bool) *pathTracker {
	return &pathTracker{enabled: enabled}
}

func (p *pathTracker) pushField(name string) {
	if p.enabled {
		p.labels = append(p.labels, "."+name)
	}
}

func (p *pathTracker) pushIndex(i int) {
	if p.enabled {
		p.labels = append(p.labels, fmt.Sprintf("[%d]", i))
	}
}

func (p *pathTracker) pop() {
	if p.enabled && len(p.labels) > 0 {
		p.labels = p.labels[:len(p.labels)-1]
	}
}

// String renders the current path, rooted at "root".
func (p *pathTracker) String() string {
	out := "root"
	for _, l := range p.labels {
		out += l
	}
	return out
}
