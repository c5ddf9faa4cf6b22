package tria

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

// BaseCellWeight is the weight every active cell carries before the
// CellWeight observers add theirs.
const BaseCellWeight = 1000

// CellWeights returns the load of every active cell in ActiveCells order:
// BaseCellWeight plus the sum of all CellWeight observers
func (t *Triangulation) CellWeights() []uint {
	out := make([]uint, 0, t.cache.NActiveCells)
	for c := range t.ActiveCells() {
		w := uint(BaseCellWeight)
		status := c.Status()
		for fn := range t.Signals.CellWeight.Slots() {
			w += fn(c, status)
		}
		out = append(out, w)
	}
	return out
}

// NotifyPrePartition fires PrePartition ahead of a subdomain assignment
func (t *Triangulation) NotifyPrePartition() { fire(&t.Signals.PrePartition) }

// HasHangingNodes reports whether an active cell has a refined face or line
func (t *Triangulation) HasHangingNodes() bool {
	for c := range t.ActiveCells() {
		subs := t.cellSubObjects(c.id)
		for m := 1; m < t.dim; m++ {
			for _, idx := range subs[m] {
				if t.objects[m].hasChildren(idx) {
					return true
				}
			}
		}
	}
	return false
}

// MaxAdjacentCells returns the largest number of active cells sharing a
// vertex
func (t *Triangulation) MaxAdjacentCells() int {
	count := make([]int, len(t.vertices))
	best := 0
	for c := range t.ActiveCells() {
		for _, v := range t.cells(c.id.Level).vertices(c.id.Index) {
			count[v]++
			best = max(best, count[v])
		}
	}
	return best
}

// CopyTriangulation makes t a deep copy of src, including smoothing and
// attached manifolds. t must be empty and of the same dimensions. The Copy
// signal of t fires with src.
func (t *Triangulation) CopyTriangulation(src *Triangulation) error {
	if !t.Empty() {
		return ErrNotEmpty
	}
	if src.Empty() {
		return fmt.Errorf("%w: nothing to copy", ErrEmpty)
	}
	if src.dim != t.dim || src.spacedim != t.spacedim {
		return fmt.Errorf("%w: copying %dD in %dD into %dD in %dD", ErrSizeMismatch, src.dim, src.spacedim, t.dim, t.spacedim)
	}
	t.cfg.Smoothing = src.cfg.Smoothing
	t.cfg.CheckForDistortedCells = src.cfg.CheckForDistortedCells
	t.levels = make([]*TriaLevel, len(src.levels))
	for l, lvl := range src.levels {
		t.levels[l] = lvl.clone()
	}
	for k := 1; k < t.dim; k++ {
		t.objects[k] = src.objects[k].clone()
		t.keys[k] = maps.Clone(src.keys[k])
	}
	t.vertices = slices.Clone(src.vertices)
	t.vertexUsed = slices.Clone(src.vertexUsed)
	t.freeVertices = slices.Clone(src.freeVertices)
	t.vertexBoundary = maps.Clone(src.vertexBoundary)
	t.vertexManifold = maps.Clone(src.vertexManifold)
	t.adjacency = maps.Clone(src.adjacency)
	t.periodic = slices.Clone(src.periodic)
	t.periodicMap = maps.Clone(src.periodicMap)
	t.anisotropic = src.anisotropic
	maps.Copy(t.manifolds, src.manifolds)
	t.updateNumberCache()

	for fn := range t.Signals.Copy.Slots() {
		fn(src)
	}
	fire(&t.Signals.AnyChange)
	return nil
}

// FindActiveCell returns the active cell whose bounding box holds p and
// whose center is closest to it
func (t *Triangulation) FindActiveCell(p r3.Vec) (CellID, bool) {
	best, bestDist := NoCell, 0.0
	for c := range t.ActiveCells() {
		if !inBox(c.Vertices(), p) {
			continue
		}
		d := r3.Norm(r3.Sub(c.Center(), p))
		if !best.Valid() || d < bestDist {
			best, bestDist = c.id, d
		}
	}
	return best, best.Valid()
}

func inBox(pts []r3.Vec, p r3.Vec) bool {
	const eps = 1e-12
	lo, hi := pts[0], pts[0]
	for _, q := range pts[1:] {
		lo = r3.Vec{X: min(lo.X, q.X), Y: min(lo.Y, q.Y), Z: min(lo.Z, q.Z)}
		hi = r3.Vec{X: max(hi.X, q.X), Y: max(hi.Y, q.Y), Z: max(hi.Z, q.Z)}
	}
	return p.X >= lo.X-eps && p.X <= hi.X+eps && p.Y >= lo.Y-eps && p.Y <= hi.Y+eps &&
		p.Z >= lo.Z-eps && p.Z <= hi.Z+eps
}

func sortedKeys[K cmp.Ordered](m map[K]bool) []K {
	keys := slices.Collect(maps.Keys(m))
	slices.Sort(keys)
	return keys
}
