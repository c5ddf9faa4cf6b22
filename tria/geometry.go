package tria

import (
	"fmt"

	"github.com/notargets/DGMesh/manifold"
	"github.com/notargets/DGMesh/utils"
	"gonum.org/v1/gonum/spatial/r3"
)

// CoarseCellGeometry describes the level-0 cells carrying manifold id for a
// transfinite interpolation. Lines and faces with the same id, or without
// an attached manifold, are straight or blended from their lines.
func (t *Triangulation) CoarseCellGeometry(id utils.ManifoldID) []manifold.CoarseCell {
	var out []manifold.CoarseCell
	edges := t.ref.Edges()
	for c := range t.CellsOnLevel(0) {
		if c.ManifoldID() != id {
			continue
		}
		cell := manifold.CoarseCell{Vertices: c.Vertices()}
		if t.dim > 1 {
			verts := c.VertexIndices()
			cell.EdgeManifolds = make([]manifold.Manifold, len(edges))
			for e, pair := range edges {
				line := t.mustLookup(1, []int{verts[pair[0]], verts[pair[1]]})
				lid := t.objects[1].Manifolds[line]
				if m, ok := t.manifolds[lid]; ok && lid != id {
					cell.EdgeManifolds[e] = m
				}
			}
		}
		if t.dim == 3 {
			cell.FaceManifolds = make([]manifold.Manifold, t.ref.NFaces())
			for f := range cell.FaceManifolds {
				fid := t.objects[2].Manifolds[t.faceOf(c.ID(), f)]
				if m, ok := t.manifolds[fid]; ok && fid != id {
					cell.FaceManifolds[f] = m
				}
			}
		}
		out = append(out, cell)
	}
	return out
}

// InitializeTransfinite feeds the coarse cells carrying id into tfi and
// attaches it under id
func (t *Triangulation) InitializeTransfinite(id utils.ManifoldID, tfi *manifold.TransfiniteInterpolation) error {
	if t.dim < 2 {
		return fmt.Errorf("%w: transfinite interpolation needs dim 2 or 3", ErrSizeMismatch)
	}
	cells := t.CoarseCellGeometry(id)
	if len(cells) == 0 {
		return fmt.Errorf("%w: no coarse cell carries manifold %d", ErrInvalidID, id)
	}
	if err := tfi.Initialize(cells); err != nil {
		return err
	}
	return t.SetManifold(id, tfi)
}

// SetAllManifoldIDs sets the manifold id of every used cell, face and line
func (t *Triangulation) SetAllManifoldIDs(id utils.ManifoldID) {
	t.usedObjects(func(s *TriaObjects, i int) { s.Manifolds[i] = id })
	if t.dim == 1 {
		for v, used := range t.vertexUsed {
			if used {
				t.vertexManifold[v] = id
			}
		}
	}
}

// SetAllManifoldIDsOnBoundary sets the manifold id of every boundary face
// and its lines
func (t *Triangulation) SetAllManifoldIDsOnBoundary(id utils.ManifoldID) {
	t.setBoundaryManifolds(func(utils.BoundaryID) bool { return true }, id)
}

// SetAllManifoldIDsOnBoundaryID does the same for faces tagged b
func (t *Triangulation) SetAllManifoldIDsOnBoundaryID(b utils.BoundaryID, id utils.ManifoldID) {
	t.setBoundaryManifolds(func(have utils.BoundaryID) bool { return have == b }, id)
}

func (t *Triangulation) setBoundaryManifolds(match func(utils.BoundaryID) bool, id utils.ManifoldID) {
	if t.dim == 1 {
		for v, b := range t.vertexBoundary {
			if match(b) {
				t.vertexManifold[v] = id
			}
		}
		return
	}
	faces := t.objects[t.dim-1]
	for i, used := range faces.Used {
		b := utils.BoundaryID(faces.Tags[i])
		if !used || b == utils.InternalFaceBoundaryID || !match(b) {
			continue
		}
		ObjectEditor{Object{t: t, id: ObjectID{t.dim - 1, i}}}.SetAllManifoldIDs(id)
	}
}

// BoundaryIDs returns the distinct boundary ids of active boundary faces in
// increasing order
func (t *Triangulation) BoundaryIDs() []utils.BoundaryID {
	seen := make(map[utils.BoundaryID]bool)
	if t.dim == 1 {
		for _, b := range t.vertexBoundary {
			seen[b] = true
		}
	} else {
		for f := range t.ActiveFaces() {
			if f.AtBoundary() {
				seen[f.BoundaryID()] = true
			}
		}
	}
	return sortedKeys(seen)
}

// ManifoldIDs returns the distinct manifold ids of used objects in
// increasing order
func (t *Triangulation) ManifoldIDs() []utils.ManifoldID {
	seen := make(map[utils.ManifoldID]bool)
	t.usedObjects(func(s *TriaObjects, i int) { seen[s.Manifolds[i]] = true })
	for _, m := range t.vertexManifold {
		seen[m] = true
	}
	return sortedKeys(seen)
}

// VertexBoundaryID returns the boundary id of a 1D boundary vertex
func (t *Triangulation) VertexBoundaryID(v int) (utils.BoundaryID, bool) {
	b, ok := t.vertexBoundary[v]
	return b, ok
}

// VertexManifoldID returns the manifold id recorded for a 1D vertex
func (t *Triangulation) VertexManifoldID(v int) utils.ManifoldID {
	if m, ok := t.vertexManifold[v]; ok {
		return m
	}
	return utils.FlatManifoldID
}

// BoundingBox returns the smallest box holding all used vertices
func (t *Triangulation) BoundingBox() (lo, hi r3.Vec) {
	first := true
	for _, p := range t.UsedVertices() {
		if first {
			lo, hi, first = p, p, false
			continue
		}
		lo = r3.Vec{X: min(lo.X, p.X), Y: min(lo.Y, p.Y), Z: min(lo.Z, p.Z)}
		hi = r3.Vec{X: max(hi.X, p.X), Y: max(hi.Y, p.Y), Z: max(hi.Z, p.Z)}
	}
	return lo, hi
}
