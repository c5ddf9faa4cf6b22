package tria

import (
	"fmt"
	"strconv"

	"github.com/katalvlaran/lvlath/bfs"
	"github.com/katalvlaran/lvlath/core"
	"github.com/notargets/DGMesh/utils"
	"gonum.org/v1/gonum/spatial/r3"
)

// CreateTriangulation builds the coarse mesh. The triangulation must be
// empty. On a precondition failure it stays empty. When distortion checking
// is enabled, distorted coarse cells are reported as *DistortedCellsError
// after the mesh has been built.
func (t *Triangulation) CreateTriangulation(vertices []r3.Vec, cells []CellData, sub SubCellData) error {
	if !t.Empty() {
		return ErrNotEmpty
	}
	if err := t.validateCoarse(vertices, cells); err != nil {
		return err
	}
	if err := t.buildCoarse(vertices, cells, sub); err != nil {
		t.resetStorage()
		return err
	}
	t.updateNumberCache()
	utils.Diagf("created %dD triangulation: %d cells, %d vertices", t.dim, len(cells), t.cache.NUsedVertices)
	fire(&t.Signals.Create)
	fire(&t.Signals.AnyChange)

	if t.cfg.CheckForDistortedCells {
		ids := make([]CellID, 0, len(cells))
		for i := range cells {
			ids = append(ids, CellID{0, i})
		}
		if bad := t.distortedCells(ids); len(bad) > 0 {
			utils.Opsf("%d distorted coarse cells", len(bad))
			return &DistortedCellsError{Cells: bad, Ancestors: bad}
		}
	}
	return nil
}

func (t *Triangulation) validateCoarse(vertices []r3.Vec, cells []CellData) error {
	if len(cells) == 0 {
		return fmt.Errorf("%w: no cells", ErrEmpty)
	}
	for i, p := range vertices {
		if (t.spacedim < 3 && p.Z != 0) || (t.spacedim < 2 && p.Y != 0) {
			return fmt.Errorf("%w: vertex %d = %v has components beyond space dimension %d", ErrInvalidTopology, i, p, t.spacedim)
		}
	}
	nv := t.ref.NVertices()
	for c, cell := range cells {
		if len(cell.Vertices) != nv {
			return fmt.Errorf("%w: cell %d has %d vertices, want %d", ErrSizeMismatch, c, len(cell.Vertices), nv)
		}
		for _, v := range cell.Vertices {
			if v < 0 || v >= len(vertices) {
				return fmt.Errorf("%w: cell %d references vertex %d of %d", ErrInvalidTopology, c, v, len(vertices))
			}
		}
		if utils.NewVertexKey(cell.Vertices...).HasDuplicates() {
			return fmt.Errorf("%w: cell %d repeats a vertex: %v", ErrInvalidTopology, c, cell.Vertices)
		}
	}
	return nil
}

func (t *Triangulation) buildCoarse(vertices []r3.Vec, cells []CellData, sub SubCellData) error {
	t.vertices = append([]r3.Vec(nil), vertices...)
	t.vertexUsed = make([]bool, len(vertices))
	t.ensureLevel(0)
	lvl := t.level(0)
	start := lvl.allocate(len(cells))

	for c, cell := range cells {
		id := CellID{0, start + c}
		// Sub-objects bottom up, shared ones found through their keys
		for m := 1; m < t.dim; m++ {
			for _, local := range t.ref.SubObjects(m) {
				verts := pick(cell.Vertices, local)
				if _, ok := t.lookup(m, verts); ok {
					continue
				}
				store := t.objects[m]
				idx := store.allocate(1)
				t.initObject(store, idx, verts)
				store.Tags[idx] = uint32(utils.InternalFaceBoundaryID)
			}
		}
		t.initObject(lvl.Cells, id.Index, cell.Vertices)
		lvl.Cells.Tags[id.Index] = uint32(cell.MaterialID)
		lvl.Cells.Manifolds[id.Index] = cell.ManifoldID
		for _, v := range cell.Vertices {
			t.vertexUsed[v] = true
		}
		if err := t.attachCell(id); err != nil {
			return fmt.Errorf("cell %d: %w", c, err)
		}
	}
	t.rebuildFreeVertices()

	if err := t.checkConnected(len(cells)); err != nil {
		return err
	}
	t.markCoarseBoundary()
	return t.applySubCellData(sub)
}

// checkConnected builds the coarse cell graph and walks it breadth first
func (t *Triangulation) checkConnected(n int) error {
	g := core.NewGraph()
	name := func(i int) string { return "c" + strconv.Itoa(i) }
	for i := 0; i < n; i++ {
		if err := g.AddVertex(name(i)); err != nil {
			return fmt.Errorf("cell graph: %w", err)
		}
	}
	seen := make(map[[2]int]bool)
	for key, pair := range t.adjacency {
		if key.level != 0 || pair[0] < 0 || pair[1] < 0 {
			continue
		}
		a, b := min(pair[0], pair[1]), max(pair[0], pair[1])
		if seen[[2]int{a, b}] {
			continue
		}
		seen[[2]int{a, b}] = true
		if _, err := g.AddEdge(name(a), name(b), 0); err != nil {
			return fmt.Errorf("cell graph: %w", err)
		}
	}
	res, err := bfs.BFS(g, name(0))
	if err != nil {
		return fmt.Errorf("cell graph: %w", err)
	}
	if len(res.Order) < n {
		return fmt.Errorf("%w: %d of %d cells reachable from cell 0", ErrDisconnected, len(res.Order), n)
	}
	return nil
}

// markCoarseBoundary tags faces with a single adjacent cell, and in 3D their
// lines, with boundary id 0
func (t *Triangulation) markCoarseBoundary() {
	for key, pair := range t.adjacency {
		if key.level != 0 || (pair[0] >= 0 && pair[1] >= 0) {
			continue
		}
		if t.dim == 1 {
			t.vertexBoundary[key.face] = 0
			continue
		}
		faces := t.objects[t.dim-1]
		faces.Tags[key.face] = 0
		if t.dim == 3 {
			for _, line := range t.subObjects(faces.vertices(key.face), 2, 1) {
				t.objects[1].Tags[line] = 0
			}
		}
	}
}

func (t *Triangulation) applySubCellData(sub SubCellData) error {
	apply := func(m int, recs []SubObjectData, what string) error {
		for i, rec := range recs {
			if len(rec.Vertices) != 1<<m {
				return fmt.Errorf("%w: %s record %d has %d vertices", ErrSizeMismatch, what, i, len(rec.Vertices))
			}
			if m == 0 {
				v := rec.Vertices[0]
				_, boundary := t.vertexBoundary[v]
				if !t.VertexUsed(v) {
					return fmt.Errorf("%w: %s record %d names unused vertex %d", ErrInvalidTopology, what, i, v)
				}
				if rec.BoundaryID != utils.InternalFaceBoundaryID {
					if !boundary {
						return fmt.Errorf("%w: boundary id on interior vertex %d", ErrInvalidTopology, v)
					}
					t.vertexBoundary[v] = rec.BoundaryID
				}
				t.vertexManifold[v] = rec.ManifoldID
				continue
			}
			idx, ok := t.lookup(m, rec.Vertices)
			if !ok {
				return fmt.Errorf("%w: %s record %d names no existing object: %v", ErrInvalidTopology, what, i, rec.Vertices)
			}
			store := t.objects[m]
			interior := utils.BoundaryID(store.Tags[idx]) == utils.InternalFaceBoundaryID
			if rec.BoundaryID != utils.InternalFaceBoundaryID {
				if interior {
					return fmt.Errorf("%w: boundary id %d on interior %s %v", ErrInvalidTopology, rec.BoundaryID, what, rec.Vertices)
				}
				store.Tags[idx] = uint32(rec.BoundaryID)
			}
			store.Manifolds[idx] = rec.ManifoldID
		}
		return nil
	}
	switch t.dim {
	case 1:
		if len(sub.Lines) > 0 || len(sub.Quads) > 0 {
			return fmt.Errorf("%w: 1D meshes take vertex records only", ErrInvalidTopology)
		}
		return apply(0, sub.Vertices, "vertex")
	case 2:
		if len(sub.Quads) > 0 || len(sub.Vertices) > 0 {
			return fmt.Errorf("%w: 2D meshes take line records only", ErrInvalidTopology)
		}
		return apply(1, sub.Lines, "line")
	}
	if len(sub.Vertices) > 0 {
		return fmt.Errorf("%w: 3D meshes take line and quad records only", ErrInvalidTopology)
	}
	if err := apply(1, sub.Lines, "line"); err != nil {
		return err
	}
	return apply(2, sub.Quads, "quad")
}
