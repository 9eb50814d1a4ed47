package bytecode

import "fmt"

// ImportPath is a 1- or 2-string dotted path, e.g. {"bit32", "band"} or
// {"print"}, resolved lazily by the VM through an import table.
type ImportPath struct {
	Module string // empty for a bare single-segment import
	Member string
}

func (p ImportPath) String() string {
	if p.Module == "" {
		return p.Member
	}
	return p.Module + "." + p.Member
}

// ImportPool deduplicates import paths and packs their index for the
// GETIMPORT auxiliary word: the import's own slot shifted left by 8 bits,
// with the path's segment count (1 or 2) in the low 8 bits —
// sufficient for the 1-/2-segment paths this engine ever emits.
type ImportPool struct {
	paths []ImportPath
	index map[ImportPath]int
}

// NewImportPool creates an empty pool.
func NewImportPool() *ImportPool {
	return &ImportPool{index: make(map[ImportPath]int)}
}

// Add deduplicates path into the pool and returns its slot index.
func (p *ImportPool) Add(path ImportPath) int {
	if idx, ok := p.index[path]; ok {
		return idx
	}
	idx := len(p.paths)
	p.paths = append(p.paths, path)
	p.index[path] = idx
	return idx
}

// PackedAux computes the GETIMPORT auxiliary word for the import at idx.
func (p *ImportPool) PackedAux(idx int) (int, error) {
	if idx < 0 || idx >= len(p.paths) {
		return 0, fmt.Errorf("bytecode: import index %d out of range", idx)
	}
	path := p.paths[idx]
	segments := 1
	if path.Module != "" {
		segments = 2
	}
	return idx<<8 | segments, nil
}

// Paths returns every registered import path in index order.
func (p *ImportPool) Paths() []ImportPath {
	out := make([]ImportPath, len(p.paths))
	copy(out, p.paths)
	return out
}
