package tria

import "github.com/notargets/DGMesh/utils"

// TriaLevel holds the cells of one refinement level. The cell-only arrays
// run parallel to Cells.
type TriaLevel struct {
	Cells *TriaObjects

	RefineFlags     []bool
	CoarsenFlags    []bool
	Subdomains      []utils.SubdomainID
	LevelSubdomains []utils.SubdomainID
}

func newTriaLevel(dim int) *TriaLevel {
	return &TriaLevel{Cells: newTriaObjects(dim)}
}

func (l *TriaLevel) allocate(n int) int {
	start := l.Cells.allocate(n)
	for len(l.RefineFlags) < l.Cells.Len() {
		l.RefineFlags = append(l.RefineFlags, false)
		l.CoarsenFlags = append(l.CoarsenFlags, false)
		l.Subdomains = append(l.Subdomains, 0)
		l.LevelSubdomains = append(l.LevelSubdomains, 0)
	}
	for i := start; i < start+n; i++ {
		l.resetCell(i)
	}
	return start
}

func (l *TriaLevel) resetCell(i int) {
	l.RefineFlags[i] = false
	l.CoarsenFlags[i] = false
	l.Subdomains[i] = 0
	l.LevelSubdomains[i] = utils.InvalidSubdomainID
}

func (l *TriaLevel) release(start, n int) {
	l.Cells.release(start, n)
	for i := start; i < start+n; i++ {
		l.resetCell(i)
	}
}

// nUsed counts used cells on the level
func (l *TriaLevel) nUsed() int {
	n := 0
	for _, u := range l.Cells.Used {
		if u {
			n++
		}
	}
	return n
}

func (l *TriaLevel) clone() *TriaLevel {
	return &TriaLevel{
		Cells:           l.Cells.clone(),
		RefineFlags:     append([]bool(nil), l.RefineFlags...),
		CoarsenFlags:    append([]bool(nil), l.CoarsenFlags...),
		Subdomains:      append([]utils.SubdomainID(nil), l.Subdomains...),
		LevelSubdomains: append([]utils.SubdomainID(nil), l.LevelSubdomains...),
	}
}
