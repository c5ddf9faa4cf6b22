package tria

// cellDistorted reports a non-positive Jacobian determinant at some vertex.
// Cells of lower dimension than the space are never distorted.
func (t *Triangulation) cellDistorted(id CellID) bool {
	if t.dim != t.spacedim {
		return false
	}
	for _, d := range t.ref.VertexDeterminants(Cell{t: t, id: id}.Vertices(), t.spacedim) {
		if d <= 0 {
			return true
		}
	}
	return false
}

func (t *Triangulation) distortedCells(ids []CellID) []CellID {
	var bad []CellID
	for _, id := range ids {
		if t.cellDistorted(id) {
			bad = append(bad, id)
		}
	}
	return bad
}

// distortedChildren lists refined parents with a distorted child
func (t *Triangulation) distortedChildren(parents []CellID) *DistortedCellsError {
	var bad, ancestors []CellID
	for _, p := range parents {
		for c := 0; c < t.ref.NChildren(); c++ {
			if t.cellDistorted(t.cellChild(p, c)) {
				bad = append(bad, p)
				ancestors = appendUnique(ancestors, t.coarseAncestor(p))
				break
			}
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return &DistortedCellsError{Cells: bad, Ancestors: ancestors}
}

func (t *Triangulation) coarseAncestor(id CellID) CellID {
	for {
		p, ok := t.cellParent(id)
		if !ok {
			return id
		}
		id = p
	}
}

// DistortedActiveCells lists active cells with a non-positive Jacobian
// determinant at a vertex, regardless of the distortion setting
func (t *Triangulation) DistortedActiveCells() []CellID {
	var ids []CellID
	for c := range t.ActiveCells() {
		ids = append(ids, c.id)
	}
	return t.distortedCells(ids)
}
