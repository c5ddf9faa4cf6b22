package tria

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotEmpty         = errors.New("tria: triangulation is not empty")
	ErrEmpty            = errors.New("tria: triangulation is empty")
	ErrInvalidLevel     = errors.New("tria: invalid level")
	ErrSizeMismatch     = errors.New("tria: size mismatch")
	ErrInvalidTopology  = errors.New("tria: invalid topology")
	ErrDisconnected     = errors.New("tria: coarse mesh is not connected")
	ErrSubscribed       = errors.New("tria: triangulation has active subscriptions")
	ErrNotActive        = errors.New("tria: cell is not active")
	ErrInvalidSmoothing = errors.New("tria: invalid mesh smoothing")
	ErrInvalidID        = errors.New("tria: invalid id")
)

// DistortedCellsError lists cells whose mapping has a non-positive Jacobian
// determinant at a vertex. The triangulation is complete when it is
// returned; callers may inspect or ignore it.
type DistortedCellsError struct {
	Cells     []CellID // distorted coarse cells, or refined parents with distorted children
	Ancestors []CellID // level-0 ancestors of Cells
}

func (e *DistortedCellsError) Error() string {
	ids := make([]string, len(e.Cells))
	for i, c := range e.Cells {
		ids[i] = c.String()
	}
	return fmt.Sprintf("tria: %d distorted cells: %s", len(e.Cells), strings.Join(ids, ", "))
}

// GeometryError reports a manifold failure while placing a new vertex.
// The refinement that hit it was abandoned; coarsening requested in the same
// call has been executed.
type GeometryError struct {
	Object string
	Err    error
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("tria: cannot place new vertex of %s: %v", e.Object, e.Err)
}

func (e *GeometryError) Unwrap() error { return e.Err }
