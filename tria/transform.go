package tria

import (
	"fmt"

	"github.com/notargets/DGMesh/manifold"
	"gonum.org/v1/gonum/spatial/r3"
)

// Transform moves every used vertex through fn. Nothing moves if fn
// produces a non-finite point. Attached manifolds are not transformed.
func (t *Triangulation) Transform(fn func(r3.Vec) r3.Vec) error {
	moved := make([]r3.Vec, len(t.vertices))
	for v, used := range t.vertexUsed {
		if !used {
			continue
		}
		p := fn(t.vertices[v])
		if !manifold.IsFinite(p) {
			return fmt.Errorf("%w: vertex %d maps to %v", ErrInvalidTopology, v, p)
		}
		if err := t.checkSpaceDim(p); err != nil {
			return fmt.Errorf("vertex %d: %w", v, err)
		}
		moved[v] = p
	}
	for v, used := range t.vertexUsed {
		if used {
			t.vertices[v] = moved[v]
		}
	}
	fire(&t.Signals.MeshMovement)
	fire(&t.Signals.AnyChange)
	return nil
}

// Shift translates the mesh
func (t *Triangulation) Shift(by r3.Vec) error {
	return t.Transform(func(p r3.Vec) r3.Vec { return r3.Add(p, by) })
}

// Scale stretches the mesh about the origin
func (t *Triangulation) Scale(f float64) error {
	return t.Transform(func(p r3.Vec) r3.Vec { return r3.Scale(f, p) })
}

// MoveVertex places a used vertex at p
func (t *Triangulation) MoveVertex(v int, p r3.Vec) error {
	if !t.VertexUsed(v) {
		return fmt.Errorf("%w: vertex %d is not used", ErrInvalidID, v)
	}
	if !manifold.IsFinite(p) {
		return fmt.Errorf("%w: non-finite position %v", ErrInvalidTopology, p)
	}
	if err := t.checkSpaceDim(p); err != nil {
		return err
	}
	t.vertices[v] = p
	fire(&t.Signals.MeshMovement)
	fire(&t.Signals.AnyChange)
	return nil
}

func (t *Triangulation) checkSpaceDim(p r3.Vec) error {
	if (t.spacedim < 3 && p.Z != 0) || (t.spacedim < 2 && p.Y != 0) {
		return fmt.Errorf("%w: %v has components beyond space dimension %d", ErrInvalidTopology, p, t.spacedim)
	}
	return nil
}
