package tria

// executeCoarsening removes every sibling group whose members are all
// flagged, then drops sub-object refinements no refined cell needs and
// trailing empty levels. It returns the parents that became active.
func (t *Triangulation) executeCoarsening() []CellID {
	var parents []CellID
	for l := 0; l+1 < len(t.levels); l++ {
		store := t.cells(l)
		for i, used := range store.Used {
			if used && t.groupCoarsens(CellID{l, i}) {
				parents = append(parents, CellID{l, i})
			}
		}
	}
	for _, id := range parents {
		c := Cell{t: t, id: id}
		for fn := range t.Signals.PreCoarseningOnCell.Slots() {
			fn(c)
		}
	}
	for _, id := range parents {
		t.coarsenCell(id)
	}
	for _, lvl := range t.levels {
		clear(lvl.CoarsenFlags)
	}
	if len(parents) > 0 {
		t.unrefineUnneeded()
		t.trimLevels()
	}
	return parents
}

// coarsenCell deletes the children of a cell, the objects created in its
// interior and its center vertex
func (t *Triangulation) coarsenCell(id CellID) {
	lvl := t.level(id.Level)
	store := lvl.Cells
	verts := append([]int(nil), store.vertices(id.Index)...)
	center := store.Centers[id.Index]
	start := store.Children[id.Index]
	n := t.ref.NChildren()

	for c := 0; c < n; c++ {
		t.detachCell(CellID{id.Level + 1, start + c})
	}
	t.level(id.Level + 1).release(start, n)
	t.releaseInterior(verts, t.dim, center)

	store.Children[id.Index] = -1
	store.Centers[id.Index] = -1
	lvl.RefineFlags[id.Index] = false
	lvl.CoarsenFlags[id.Index] = false
	t.releaseVertex(center)
}

// releaseInterior frees the objects created inside a refined k-object,
// higher dimensions first
func (t *Triangulation) releaseInterior(verts []int, k, center int) {
	for m := k - 1; m >= 1; m-- {
		for _, obj := range must(t.interiorObjects(verts, k, m, center)) {
			j := t.mustLookup(m, obj)
			if t.objects[m].hasChildren(j) {
				t.unrefineObject(m, j)
			}
			t.dropObjectKey(m, j)
			t.objects[m].release(j, 1)
		}
	}
}

// unrefineUnneeded removes the children of every level-free object that no
// refined cell contains. Faces go before lines so that their interior
// lines are released while the bounding lines are still refined.
func (t *Triangulation) unrefineUnneeded() {
	var needed [3]map[int]bool
	for m := 1; m < t.dim; m++ {
		needed[m] = make(map[int]bool)
	}
	for l, lvl := range t.levels {
		for i, used := range lvl.Cells.Used {
			if !used || !lvl.Cells.hasChildren(i) {
				continue
			}
			subs := t.cellSubObjects(CellID{l, i})
			for m := 1; m < t.dim; m++ {
				for _, idx := range subs[m] {
					needed[m][idx] = true
				}
			}
		}
	}
	for m := t.dim - 1; m >= 1; m-- {
		store := t.objects[m]
		for i := 0; i < store.Len(); i++ {
			if store.Used[i] && store.hasChildren(i) && !needed[m][i] {
				t.unrefineObject(m, i)
			}
		}
	}
}

// unrefineObject makes a level-free object active again, children first
func (t *Triangulation) unrefineObject(k, idx int) {
	store := t.objects[k]
	verts := append([]int(nil), store.vertices(idx)...)
	center := store.Centers[idx]
	start := store.Children[idx]
	n := 1 << k

	for c := 0; c < n; c++ {
		if store.hasChildren(start + c) {
			t.unrefineObject(k, start+c)
		}
	}
	t.releaseInterior(verts, k, center)
	for c := 0; c < n; c++ {
		t.dropObjectKey(k, start+c)
	}
	store.release(start, n)
	store.Children[idx] = -1
	store.Centers[idx] = -1
	t.releaseVertex(center)
}

// trimLevels drops trailing levels without used cells
func (t *Triangulation) trimLevels() {
	for len(t.levels) > 1 && t.levels[len(t.levels)-1].nUsed() == 0 {
		t.levels = t.levels[:len(t.levels)-1]
	}
}
