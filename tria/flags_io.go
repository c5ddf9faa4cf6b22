package tria

import "fmt"

// SaveRefineFlags returns the refine flags of the active cells in
// ActiveCells order
func (t *Triangulation) SaveRefineFlags() []bool {
	return t.saveCellFlags(func(l *TriaLevel) []bool { return l.RefineFlags })
}

// LoadRefineFlags restores flags written by SaveRefineFlags
func (t *Triangulation) LoadRefineFlags(flags []bool) error {
	return t.loadCellFlags(flags, func(l *TriaLevel) []bool { return l.RefineFlags })
}

func (t *Triangulation) SaveCoarsenFlags() []bool {
	return t.saveCellFlags(func(l *TriaLevel) []bool { return l.CoarsenFlags })
}

func (t *Triangulation) LoadCoarsenFlags(flags []bool) error {
	return t.loadCellFlags(flags, func(l *TriaLevel) []bool { return l.CoarsenFlags })
}

func (t *Triangulation) saveCellFlags(get func(*TriaLevel) []bool) []bool {
	out := make([]bool, 0, t.cache.NActiveCells)
	for c := range t.ActiveCells() {
		out = append(out, get(t.level(c.id.Level))[c.id.Index])
	}
	return out
}

func (t *Triangulation) loadCellFlags(flags []bool, get func(*TriaLevel) []bool) error {
	if len(flags) != t.cache.NActiveCells {
		return fmt.Errorf("%w: %d flags for %d active cells", ErrSizeMismatch, len(flags), t.cache.NActiveCells)
	}
	i := 0
	for c := range t.ActiveCells() {
		get(t.level(c.id.Level))[c.id.Index] = flags[i]
		i++
	}
	return nil
}

// usedObjects calls fn for every used cell, then every used level-free
// object from the highest structural dimension down
func (t *Triangulation) usedObjects(fn func(store *TriaObjects, i int)) {
	for _, lvl := range t.levels {
		for i, used := range lvl.Cells.Used {
			if used {
				fn(lvl.Cells, i)
			}
		}
	}
	for k := t.dim - 1; k >= 1; k-- {
		for i, used := range t.objects[k].Used {
			if used {
				fn(t.objects[k], i)
			}
		}
	}
}

func (t *Triangulation) nUsedObjects() int {
	n := 0
	t.usedObjects(func(*TriaObjects, int) { n++ })
	return n
}

// SaveUserFlags returns the user flags of all used cells, level by level,
// followed by those of the faces and lines
func (t *Triangulation) SaveUserFlags() []bool {
	var out []bool
	t.usedObjects(func(s *TriaObjects, i int) { out = append(out, s.UserFlags[i]) })
	return out
}

func (t *Triangulation) LoadUserFlags(flags []bool) error {
	if n := t.nUsedObjects(); len(flags) != n {
		return fmt.Errorf("%w: %d user flags for %d objects", ErrSizeMismatch, len(flags), n)
	}
	i := 0
	t.usedObjects(func(s *TriaObjects, j int) {
		s.UserFlags[j] = flags[i]
		i++
	})
	return nil
}

// ClearUserFlags clears the user flag of every object
func (t *Triangulation) ClearUserFlags() {
	t.usedObjects(func(s *TriaObjects, i int) { s.UserFlags[i] = false })
}

// SaveUserIndices returns user indices in SaveUserFlags order
func (t *Triangulation) SaveUserIndices() []uint {
	var out []uint
	t.usedObjects(func(s *TriaObjects, i int) { out = append(out, s.UserIndex[i]) })
	return out
}

func (t *Triangulation) LoadUserIndices(idx []uint) error {
	if n := t.nUsedObjects(); len(idx) != n {
		return fmt.Errorf("%w: %d user indices for %d objects", ErrSizeMismatch, len(idx), n)
	}
	i := 0
	t.usedObjects(func(s *TriaObjects, j int) {
		s.UserIndex[j] = idx[i]
		i++
	})
	return nil
}

// ClearUserData zeroes every user index
func (t *Triangulation) ClearUserData() {
	t.usedObjects(func(s *TriaObjects, i int) { s.UserIndex[i] = 0 })
}
