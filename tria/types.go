package tria

import (
	"fmt"

	"github.com/notargets/DGMesh/utils"
)

// CellID addresses a cell by refinement level and index within the level.
// Indices are stable for the life of the cell and may be reused after the
// cell is coarsened away.
type CellID struct {
	Level, Index int
}

// NoCell is returned where no cell exists, e.g. across a boundary face.
var NoCell = CellID{Level: -1, Index: -1}

func (c CellID) Valid() bool { return c.Level >= 0 && c.Index >= 0 }

func (c CellID) String() string { return fmt.Sprintf("%d.%d", c.Level, c.Index) }

// ObjectID addresses a level-free sub-object: a line (StructDim 1) or, in
// 3D, a quadrilateral face (StructDim 2).
type ObjectID struct {
	StructDim, Index int
}

func (o ObjectID) Valid() bool { return o.StructDim > 0 && o.Index >= 0 }

// CellData describes one coarse cell. Vertices are in lexicographic order:
// bit i of the local vertex number is the coordinate along local axis i.
// A zero ManifoldID selects manifold 0; use utils.FlatManifoldID for
// straight geometry that ignores attached manifolds.
type CellData struct {
	Vertices   []int
	MaterialID utils.MaterialID
	ManifoldID utils.ManifoldID
}

// SubObjectData assigns tags to an existing sub-object, identified by its
// vertex set in any order.
type SubObjectData struct {
	Vertices   []int
	BoundaryID utils.BoundaryID
	ManifoldID utils.ManifoldID
}

// SubCellData carries tags for sub-objects of the coarse mesh. Lines are the
// faces in 2D and the edges in 3D; Quads are only valid in 3D. Vertices is
// only valid in 1D, where faces are vertices.
type SubCellData struct {
	Lines    []SubObjectData
	Quads    []SubObjectData
	Vertices []SubObjectData
}

// CellStatus describes what the next refinement will do to a cell. It is
// passed to cell-weight observers.
type CellStatus uint8

const (
	CellPersist CellStatus = iota
	CellRefine
	CellCoarsen
	CellInvalid
)

func (s CellStatus) String() string {
	switch s {
	case CellPersist:
		return "persist"
	case CellRefine:
		return "refine"
	case CellCoarsen:
		return "coarsen"
	}
	return "invalid"
}
