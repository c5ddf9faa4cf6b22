package tria

import (
	"slices"

	"github.com/notargets/DGMesh/utils"
)

// PrepareCoarseningAndRefinement regularizes and smooths the refine and
// coarsen flags until they stop changing. Within the fixed-point loop refine
// flags are only added and coarsen flags only removed. It reports whether
// any flag changed.
func (t *Triangulation) PrepareCoarseningAndRefinement() bool {
	if t.Empty() {
		return false
	}
	before := t.flagSnapshot()
	s := t.cfg.Smoothing

	t.basicFlagFixes()
	t.eliminateRefinedIslands()

	passes := 0
	for {
		passes++
		refine, coarsen := t.countFlags()

		if s.Has(CoarsestLevel1) {
			t.refineCoarsestLevel()
		}
		if s.Has(EliminateUnrefinedIslands) && !s.Has(PatchLevel1) && t.dim > 1 {
			t.eliminateUnrefinedIslands()
		}
		if s.Has(PatchLevel1) {
			t.propagatePatchLevel1()
		}
		t.enforceRegularity(t.computeAfterState())
		t.FixCoarsenFlags()

		r, c := t.countFlags()
		if r == refine && c == coarsen {
			break
		}
	}
	t.smoothingPasses = passes
	after := t.flagSnapshot()
	r, c := t.countFlags()
	utils.Tracef("smoothing converged after %d passes: %d refine, %d coarsen flags", passes, r, c)
	return !slices.Equal(before, after)
}

// FixCoarsenFlags clears coarsen flags that cannot be honored: flags on
// cells also flagged for refinement, partial sibling groups and groups whose
// removal would break the level rules or the active smoothing.
func (t *Triangulation) FixCoarsenFlags() {
	if t.Empty() {
		return
	}
	t.basicFlagFixes()
	t.clearPartialGroups()
	for {
		changed := false
		s := t.computeAfterState()
		for l := len(t.levels) - 2; l >= 0; l-- {
			store := t.cells(l)
			for i, used := range store.Used {
				id := CellID{l, i}
				if !used || !t.groupCoarsens(id) {
					continue
				}
				if t.violates(s, id) || (t.cfg.Smoothing.Has(DoNotProduceUnrefinedIslands) && t.wouldBeUnrefinedIsland(id)) {
					t.cancelGroup(id)
					changed = true
				}
			}
		}
		if t.cfg.Smoothing.Has(PatchLevel1) && t.fixPatchLevel1Coarsening() {
			changed = true
		}
		if !changed {
			return
		}
	}
}

func (t *Triangulation) flagSnapshot() []bool {
	var out []bool
	for _, lvl := range t.levels {
		out = append(out, lvl.RefineFlags...)
		out = append(out, lvl.CoarsenFlags...)
	}
	return out
}

func (t *Triangulation) countFlags() (refine, coarsen int) {
	for _, lvl := range t.levels {
		for i, used := range lvl.Cells.Used {
			if !used {
				continue
			}
			if lvl.RefineFlags[i] {
				refine++
			}
			if lvl.CoarsenFlags[i] {
				coarsen++
			}
		}
	}
	return refine, coarsen
}

// basicFlagFixes drops flags on cells with children, lets refinement win
// over coarsening and forbids coarsening onto level 0 (or level 1 with
// CoarsestLevel1)
func (t *Triangulation) basicFlagFixes() {
	for l, lvl := range t.levels {
		for i, used := range lvl.Cells.Used {
			if !used {
				continue
			}
			if lvl.Cells.hasChildren(i) {
				lvl.RefineFlags[i] = false
				lvl.CoarsenFlags[i] = false
			}
			if lvl.RefineFlags[i] || l == 0 || (l == 1 && t.cfg.Smoothing.Has(CoarsestLevel1)) {
				lvl.CoarsenFlags[i] = false
			}
		}
	}
}

// clearPartialGroups clears coarsen flags of sibling groups that are not
// removable as a whole
func (t *Triangulation) clearPartialGroups() {
	for l := 0; l+1 < len(t.levels); l++ {
		store := t.cells(l)
		child := t.level(l + 1)
		for i, used := range store.Used {
			if !used || !store.hasChildren(i) {
				continue
			}
			start := store.Children[i]
			flagged, all := false, true
			for c := 0; c < t.ref.NChildren(); c++ {
				j := start + c
				ok := !child.Cells.hasChildren(j) && child.CoarsenFlags[j] && !child.RefineFlags[j]
				flagged = flagged || child.CoarsenFlags[j]
				all = all && ok
			}
			if flagged && !all {
				t.cancelGroup(CellID{l, i})
			}
		}
	}
}

// groupCoarsens reports whether the children of id will be removed by the
// pending coarsening
func (t *Triangulation) groupCoarsens(id CellID) bool {
	store := t.cells(id.Level)
	if !store.hasChildren(id.Index) {
		return false
	}
	child := t.level(id.Level + 1)
	start := store.Children[id.Index]
	for c := 0; c < t.ref.NChildren(); c++ {
		j := start + c
		if child.Cells.hasChildren(j) || !child.CoarsenFlags[j] || child.RefineFlags[j] {
			return false
		}
	}
	return true
}

func (t *Triangulation) cancelGroup(id CellID) {
	store := t.cells(id.Level)
	child := t.level(id.Level + 1)
	start := store.Children[id.Index]
	for c := 0; c < t.ref.NChildren(); c++ {
		child.CoarsenFlags[start+c] = false
	}
}

// refinedAfter reports whether a cell will have children after the pending
// coarsening and refinement
func (t *Triangulation) refinedAfter(id CellID) bool {
	if t.cells(id.Level).hasChildren(id.Index) {
		return !t.groupCoarsens(id)
	}
	return t.level(id.Level).RefineFlags[id.Index]
}

// activeAfter reports whether a cell will be active after the pending
// coarsening and refinement
func (t *Triangulation) activeAfter(id CellID) bool {
	if t.cells(id.Level).hasChildren(id.Index) {
		return t.groupCoarsens(id)
	}
	if t.level(id.Level).RefineFlags[id.Index] {
		return false
	}
	if p, ok := t.cellParent(id); ok && t.groupCoarsens(p) {
		return false
	}
	return true
}

// afterState predicts the refinement of level-free objects and the finest
// active level at every vertex once the current flags are executed.
type afterState struct {
	refined     [3][]bool
	vertexLevel []int
}

func (t *Triangulation) computeAfterState() *afterState {
	s := &afterState{vertexLevel: make([]int, len(t.vertices))}
	for v := range s.vertexLevel {
		s.vertexLevel[v] = -1
	}
	for m := 1; m < t.dim; m++ {
		s.refined[m] = make([]bool, t.objects[m].Len())
	}
	for l, lvl := range t.levels {
		for i, used := range lvl.Cells.Used {
			if !used {
				continue
			}
			id := CellID{l, i}
			if t.refinedAfter(id) {
				s.markRefined(t, id)
			}
			switch {
			case !lvl.Cells.hasChildren(i) && lvl.RefineFlags[i]:
				s.raise(lvl.Cells.vertices(i), l+1)
			case t.activeAfter(id):
				s.raise(lvl.Cells.vertices(i), l)
			}
		}
	}
	if t.dim == 1 {
		for _, pair := range t.periodic {
			v1 := t.faceOf(CellID{0, pair.Cell1}, pair.Face1)
			v2 := t.faceOf(CellID{0, pair.Cell2}, pair.Face2)
			top := max(s.vertexLevel[v1], s.vertexLevel[v2])
			s.vertexLevel[v1], s.vertexLevel[v2] = top, top
		}
	}
	return s
}

func (s *afterState) markRefined(t *Triangulation, id CellID) {
	subs := t.cellSubObjects(id)
	for m := 1; m < t.dim; m++ {
		for _, idx := range subs[m] {
			s.refined[m][idx] = true
		}
	}
}

func (s *afterState) raise(verts []int, level int) {
	for _, v := range verts {
		s.vertexLevel[v] = max(s.vertexLevel[v], level)
	}
}

// childRefined reports whether a child of a level-free object will be
// refined, i.e. the object will have grandchildren
func (s *afterState) childRefined(t *Triangulation, m, idx int) bool {
	store := t.objects[m]
	if !store.hasChildren(idx) {
		return false
	}
	for c := 0; c < 1<<m; c++ {
		if s.refined[m][store.child(idx, c)] {
			return true
		}
	}
	return false
}

// violates reports whether id, active after the pending pass, would have a
// neighbor more than one level finer across a face, a line in 3D, a
// periodic face or, when limited, a vertex
func (t *Triangulation) violates(s *afterState, id CellID) bool {
	subs := t.cellSubObjects(id)
	for m := 1; m < t.dim; m++ {
		for _, idx := range subs[m] {
			if s.childRefined(t, m, idx) {
				return true
			}
		}
	}
	if t.dim == 1 || t.cfg.Smoothing.Has(LimitLevelDifferenceAtVertices) {
		for _, v := range t.cells(id.Level).vertices(id.Index) {
			if s.vertexLevel[v] > id.Level+1 {
				return true
			}
		}
	}
	if t.dim > 1 && len(t.periodic) > 0 {
		for f := 0; f < t.ref.NFaces(); f++ {
			if !t.faceAtBoundary(id, f) {
				continue
			}
			n, g, ok := t.periodicPartner(id, f)
			if ok && n.Level == id.Level && s.childRefined(t, t.dim-1, t.faceOf(n, g)) {
				return true
			}
		}
	}
	return false
}

// enforceRegularity sweeps the cells that will be active from the finest
// level down. A violating cell is flagged for refinement, or, if it is the
// parent of a coarsening group, the group is kept.
func (t *Triangulation) enforceRegularity(s *afterState) bool {
	changed := false
	for l := len(t.levels) - 1; l >= 0; l-- {
		lvl := t.level(l)
		for i, used := range lvl.Cells.Used {
			id := CellID{l, i}
			if !used || !t.activeAfter(id) || !t.violates(s, id) {
				continue
			}
			if lvl.Cells.hasChildren(i) {
				t.cancelGroup(id)
				s.markRefined(t, id)
				for _, c := range t.Cell(id).Children() {
					s.raise(t.cells(c.Level).vertices(c.Index), c.Level)
				}
			} else {
				lvl.RefineFlags[i] = true
				lvl.CoarsenFlags[i] = false
				s.markRefined(t, id)
				s.raise(lvl.Cells.vertices(i), l+1)
			}
			changed = true
		}
	}
	return changed
}

// refineCoarsestLevel flags every active level-0 cell
func (t *Triangulation) refineCoarsestLevel() {
	lvl := t.level(0)
	for i, used := range lvl.Cells.Used {
		if used && !lvl.Cells.hasChildren(i) {
			lvl.RefineFlags[i] = true
			lvl.CoarsenFlags[i] = false
		}
	}
}

// neighborCounts classifies the neighbors across interior faces as refined
// or unrefined after the pending pass. Coarser neighbors count as
// unrefined.
func (t *Triangulation) neighborCounts(id CellID) (refined, unrefined int) {
	for f := 0; f < t.ref.NFaces(); f++ {
		if t.faceAtBoundary(id, f) {
			continue
		}
		n, ok := t.neighbor(id, f)
		if !ok {
			continue
		}
		if n.Level == id.Level && t.refinedAfter(n) {
			refined++
		} else {
			unrefined++
		}
	}
	return refined, unrefined
}

// eliminateUnrefinedIslands flags active cells whose refined neighbors
// strictly outnumber the others
func (t *Triangulation) eliminateUnrefinedIslands() {
	for l := len(t.levels) - 1; l >= 0; l-- {
		lvl := t.level(l)
		for i, used := range lvl.Cells.Used {
			if !used || lvl.Cells.hasChildren(i) || lvl.RefineFlags[i] {
				continue
			}
			if r, u := t.neighborCounts(CellID{l, i}); r > u {
				lvl.RefineFlags[i] = true
				lvl.CoarsenFlags[i] = false
			}
		}
	}
}

// wouldBeUnrefinedIsland reports whether the parent of a coarsening group
// would end up mostly surrounded by refined cells
func (t *Triangulation) wouldBeUnrefinedIsland(id CellID) bool {
	r, u := t.neighborCounts(id)
	return r > u
}

// eliminateRefinedIslands flags for coarsening the children of refined
// cells none of whose same-level neighbors is refined or about to be.
// Inner and boundary cells are controlled by separate smoothing flags.
func (t *Triangulation) eliminateRefinedIslands() {
	s := t.cfg.Smoothing
	inner, boundary := s.Has(EliminateRefinedInnerIslands), s.Has(EliminateRefinedBoundaryIslands)
	if (!inner && !boundary) || s.Has(PatchLevel1) || t.dim < 2 {
		return
	}
	for l := 0; l+1 < len(t.levels); l++ {
		if l == 0 && s.Has(CoarsestLevel1) {
			continue
		}
		store := t.cells(l)
		child := t.level(l + 1)
	cells:
		for i, used := range store.Used {
			if !used || !store.hasChildren(i) {
				continue
			}
			id := CellID{l, i}
			start := store.Children[i]
			for c := 0; c < t.ref.NChildren(); c++ {
				if child.Cells.hasChildren(start+c) || child.RefineFlags[start+c] {
					continue cells
				}
			}
			atBoundary := false
			for f := 0; f < t.ref.NFaces(); f++ {
				if t.faceAtBoundary(id, f) {
					atBoundary = true
					continue
				}
				n, ok := t.sameLevelNeighbor(id, f)
				if !ok {
					continue
				}
				nl := t.level(n.Level)
				if nl.Cells.hasChildren(n.Index) || nl.RefineFlags[n.Index] {
					continue cells
				}
			}
			if (atBoundary && !boundary) || (!atBoundary && !inner) {
				continue
			}
			for c := 0; c < t.ref.NChildren(); c++ {
				child.CoarsenFlags[start+c] = true
			}
		}
	}
}

// propagatePatchLevel1 refines all siblings of a cell that will be refined,
// and keeps their sibling groups
func (t *Triangulation) propagatePatchLevel1() {
	for l := 0; l+1 < len(t.levels); l++ {
		store := t.cells(l)
		child := t.level(l + 1)
		for i, used := range store.Used {
			if !used || !store.hasChildren(i) {
				continue
			}
			start := store.Children[i]
			refined := false
			for c := 0; c < t.ref.NChildren(); c++ {
				if t.refinedAfter(CellID{l + 1, start + c}) {
					refined = true
					break
				}
			}
			if !refined {
				continue
			}
			for c := 0; c < t.ref.NChildren(); c++ {
				j := start + c
				if child.Cells.hasChildren(j) {
					t.cancelGroup(CellID{l + 1, j})
				} else {
					child.RefineFlags[j] = true
					child.CoarsenFlags[j] = false
				}
			}
		}
	}
}

// fixPatchLevel1Coarsening keeps a coarsening group unless every sibling
// of its parent coarsens as well. Groups onto level 0 never coarsen.
func (t *Triangulation) fixPatchLevel1Coarsening() bool {
	changed := false
	for l := 0; l+1 < len(t.levels); l++ {
		store := t.cells(l)
		for i, used := range store.Used {
			id := CellID{l, i}
			if !used || !t.groupCoarsens(id) {
				continue
			}
			if l == 0 {
				t.cancelGroup(id)
				changed = true
				continue
			}
			parent, _ := t.cellParent(id)
			for _, sib := range t.Cell(parent).Children() {
				if !t.groupCoarsens(sib) {
					for _, other := range t.Cell(parent).Children() {
						if t.cells(other.Level).hasChildren(other.Index) {
							t.cancelGroup(other)
						}
					}
					changed = true
					break
				}
			}
		}
	}
	return changed
}
