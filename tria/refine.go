package tria

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/notargets/DGMesh/utils"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// ExecuteCoarseningAndRefinement regularizes the flags, removes flagged
// sibling groups and refines flagged cells. A *GeometryError leaves the mesh
// as it was after coarsening. A *DistortedCellsError is returned after the
// mesh is fully updated.
func (t *Triangulation) ExecuteCoarseningAndRefinement() error {
	if t.Empty() {
		return ErrEmpty
	}
	t.PrepareCoarseningAndRefinement()
	fire(&t.Signals.PreRefinement)

	coarsened := t.executeCoarsening()
	refined, err := t.executeRefinement()
	t.updateNumberCache()
	if err != nil {
		utils.Opsf("refinement abandoned: %v", err)
		fire(&t.Signals.PostRefinement)
		fire(&t.Signals.AnyChange)
		return err
	}
	utils.Diagf("coarsened %d groups, refined %d cells: %d levels, %d active cells",
		len(coarsened), len(refined), t.cache.NLevels, t.cache.NActiveCells)

	for _, id := range refined {
		c := Cell{t: t, id: id}
		for fn := range t.Signals.PostRefinementOnCell.Slots() {
			fn(c)
		}
	}
	fire(&t.Signals.PostRefinement)
	fire(&t.Signals.AnyChange)

	if t.cfg.CheckForDistortedCells && len(refined) > 0 {
		if derr := t.distortedChildren(refined); derr != nil {
			utils.Opsf("%d refined cells have distorted children", len(derr.Cells))
			return derr
		}
	}
	return nil
}

// RefineGlobal refines every active cell times times. Distortion reports
// of the individual passes are merged.
func (t *Triangulation) RefineGlobal(times int) error {
	var distorted *DistortedCellsError
	for i := 0; i < times; i++ {
		t.SetAllRefineFlags()
		err := t.ExecuteCoarseningAndRefinement()
		var d *DistortedCellsError
		switch {
		case err == nil:
		case errors.As(err, &d):
			if distorted == nil {
				distorted = &DistortedCellsError{}
			}
			distorted.Cells = append(distorted.Cells, d.Cells...)
			distorted.Ancestors = appendUnique(distorted.Ancestors, d.Ancestors...)
		default:
			return err
		}
	}
	if distorted != nil {
		return distorted
	}
	return nil
}

// SetAllRefineFlags flags every active cell for refinement
func (t *Triangulation) SetAllRefineFlags() {
	for _, lvl := range t.levels {
		for i, used := range lvl.Cells.Used {
			if used && !lvl.Cells.hasChildren(i) {
				lvl.RefineFlags[i] = true
				lvl.CoarsenFlags[i] = false
			}
		}
	}
}

func appendUnique(ids []CellID, more ...CellID) []CellID {
	for _, id := range more {
		found := false
		for _, have := range ids {
			if have == id {
				found = true
				break
			}
		}
		if !found {
			ids = append(ids, id)
		}
	}
	return ids
}

// executeRefinement refines the sub-objects of every flagged cell, lines
// first, then places all cell centers and finally creates the children.
// Nothing is left half refined when a manifold fails.
func (t *Triangulation) executeRefinement() ([]CellID, error) {
	var flagged []CellID
	for l, lvl := range t.levels {
		for i, used := range lvl.Cells.Used {
			if used && !lvl.Cells.hasChildren(i) && lvl.RefineFlags[i] {
				flagged = append(flagged, CellID{l, i})
			}
		}
	}
	if len(flagged) == 0 {
		return nil, nil
	}

	for m := 1; m < t.dim; m++ {
		var objs []int
		seen := make(map[int]bool)
		for _, id := range flagged {
			for _, idx := range t.cellSubObjects(id)[m] {
				if !seen[idx] && !t.objects[m].hasChildren(idx) {
					seen[idx] = true
					objs = append(objs, idx)
				}
			}
		}
		if err := t.refineObjects(m, objs); err != nil {
			t.unrefineUnneeded()
			return nil, err
		}
	}

	centers, err := t.computePoints(len(flagged), func(i int) (r3.Vec, error) {
		id := flagged[i]
		store := t.cells(id.Level)
		p, err := t.newCenter(store.vertices(id.Index), t.dim, store.Manifolds[id.Index])
		if err != nil {
			return p, &GeometryError{Object: "cell " + id.String(), Err: err}
		}
		return p, nil
	})
	if err != nil {
		t.unrefineUnneeded()
		return nil, err
	}
	for i, id := range flagged {
		t.refineCell(id, centers[i])
	}
	return flagged, nil
}

// computePoints evaluates fn for 0..n-1, concurrently when configured.
// Only read-only manifold queries may run inside fn.
func (t *Triangulation) computePoints(n int, fn func(i int) (r3.Vec, error)) ([]r3.Vec, error) {
	out := make([]r3.Vec, n)
	if !t.cfg.ParallelGeometry || n < 2 {
		for i := range out {
			p, err := fn(i)
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		return out, nil
	}
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range out {
		g.Go(func() error {
			p, err := fn(i)
			if err != nil {
				return err
			}
			out[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Triangulation) refineObjects(k int, objs []int) error {
	if len(objs) == 0 {
		return nil
	}
	store := t.objects[k]
	points, err := t.computePoints(len(objs), func(i int) (r3.Vec, error) {
		idx := objs[i]
		p, err := t.newCenter(store.vertices(idx), k, store.Manifolds[idx])
		if err != nil {
			name := "line"
			if k == 2 {
				name = "quad"
			}
			return p, &GeometryError{Object: fmt.Sprintf("%s %d", name, idx), Err: err}
		}
		return p, nil
	})
	if err != nil {
		return err
	}
	for i, idx := range objs {
		t.refineObject(k, idx, points[i])
	}
	return nil
}

// refineObject splits a level-free object whose own sub-objects are
// refined. Children and interior objects inherit its tag and manifold.
func (t *Triangulation) refineObject(k, idx int, p r3.Vec) {
	store := t.objects[k]
	verts := append([]int(nil), store.vertices(idx)...)
	tag, man := store.Tags[idx], store.Manifolds[idx]
	center := t.addVertex(p)

	for m := 1; m < k; m++ {
		for _, obj := range must(t.interiorObjects(verts, k, m, center)) {
			sub := t.objects[m]
			j := sub.allocate(1)
			t.initObject(sub, j, obj)
			sub.Tags[j] = tag
			sub.Manifolds[j] = man
		}
	}
	start := store.allocate(1 << k)
	for c := 0; c < 1<<k; c++ {
		t.initObject(store, start+c, must(t.childVertices(verts, k, c, center)))
		store.Parents[start+c] = idx
		store.Tags[start+c] = tag
		store.Manifolds[start+c] = man
	}
	store.Children[idx] = start
	store.Centers[idx] = center
}

// refineCell creates the children of a flagged cell. All its sub-objects
// must already be refined.
func (t *Triangulation) refineCell(id CellID, p r3.Vec) {
	lvl := t.level(id.Level)
	store := lvl.Cells
	verts := append([]int(nil), store.vertices(id.Index)...)
	man := store.Manifolds[id.Index]
	center := t.addVertex(p)

	for m := 1; m < t.dim; m++ {
		for _, obj := range must(t.interiorObjects(verts, t.dim, m, center)) {
			sub := t.objects[m]
			j := sub.allocate(1)
			t.initObject(sub, j, obj)
			sub.Tags[j] = uint32(utils.InternalFaceBoundaryID)
			sub.Manifolds[j] = man
		}
	}

	t.ensureLevel(id.Level + 1)
	child := t.level(id.Level + 1)
	n := t.ref.NChildren()
	start := child.allocate(n)
	for c := 0; c < n; c++ {
		i := start + c
		t.initObject(child.Cells, i, must(t.childVertices(verts, t.dim, c, center)))
		child.Cells.Parents[i] = id.Index
		child.Cells.Tags[i] = store.Tags[id.Index]
		child.Cells.Manifolds[i] = man
		child.Subdomains[i] = lvl.Subdomains[id.Index]
		if err := t.attachCell(CellID{id.Level + 1, i}); err != nil {
			panic(fmt.Sprintf("tria: refining %v: %v", id, err))
		}
	}
	store.Children[id.Index] = start
	store.Centers[id.Index] = center
	lvl.RefineFlags[id.Index] = false
	lvl.CoarsenFlags[id.Index] = false
}

// must unwraps lattice lookups that cannot fail on a consistent mesh
func must[T any](v T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("tria: inconsistent mesh: %v", err))
	}
	return v
}
