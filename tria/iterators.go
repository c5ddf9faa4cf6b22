package tria

import (
	"iter"

	"gonum.org/v1/gonum/spatial/r3"
)

// Cells yields every used cell, coarsest level first
func (t *Triangulation) Cells() iter.Seq[Cell] {
	return func(yield func(Cell) bool) {
		for l := range t.levels {
			for c := range t.CellsOnLevel(l) {
				if !yield(c) {
					return
				}
			}
		}
	}
}

// ActiveCells yields every cell without children
func (t *Triangulation) ActiveCells() iter.Seq[Cell] {
	return func(yield func(Cell) bool) {
		for c := range t.Cells() {
			if c.Active() && !yield(c) {
				return
			}
		}
	}
}

// CellsOnLevel yields the used cells of one level. An invalid level yields
// nothing.
func (t *Triangulation) CellsOnLevel(level int) iter.Seq[Cell] {
	return func(yield func(Cell) bool) {
		if level < 0 || level >= len(t.levels) {
			return
		}
		store := t.cells(level)
		for i := 0; i < store.Len(); i++ {
			if !store.Used[i] {
				continue
			}
			if !yield(Cell{t: t, id: CellID{level, i}}) {
				return
			}
		}
	}
}

func (t *Triangulation) ActiveCellsOnLevel(level int) iter.Seq[Cell] {
	return func(yield func(Cell) bool) {
		for c := range t.CellsOnLevel(level) {
			if c.Active() && !yield(c) {
				return
			}
		}
	}
}

// objectsOf yields the used objects of structural dimension k < dim
func (t *Triangulation) objectsOf(k int, activeOnly bool) iter.Seq[Object] {
	return func(yield func(Object) bool) {
		if k < 1 || k >= t.dim {
			return
		}
		store := t.objects[k]
		for i := 0; i < store.Len(); i++ {
			if !store.Used[i] || (activeOnly && store.hasChildren(i)) {
				continue
			}
			if !yield(Object{t: t, id: ObjectID{k, i}}) {
				return
			}
		}
	}
}

// Faces yields every used face. In 1D faces are vertices and the sequence
// is empty; use UsedVertices.
func (t *Triangulation) Faces() iter.Seq[Object] { return t.objectsOf(t.dim-1, false) }

// ActiveFaces yields faces without children
func (t *Triangulation) ActiveFaces() iter.Seq[Object] { return t.objectsOf(t.dim-1, true) }

// Lines yields every used line that is not a cell
func (t *Triangulation) Lines() iter.Seq[Object] { return t.objectsOf(1, false) }

// Quads yields every used quadrilateral face of a 3D mesh
func (t *Triangulation) Quads() iter.Seq[Object] { return t.objectsOf(2, false) }

// UsedVertices yields index and position of every used vertex
func (t *Triangulation) UsedVertices() iter.Seq2[int, r3.Vec] {
	return func(yield func(int, r3.Vec) bool) {
		for v, used := range t.vertexUsed {
			if used && !yield(v, t.vertices[v]) {
				return
			}
		}
	}
}
