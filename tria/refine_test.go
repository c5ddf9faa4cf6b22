package tria

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/notargets/DGMesh/manifold"
	"github.com/notargets/DGMesh/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestUnitSquareGlobalRefinement(t *testing.T) {
	tr := newGrid(t, 2, 1, Config{})
	require.NoError(t, tr.RefineGlobal(1))

	assert.Equal(t, 4, tr.NActiveCells())
	assert.Equal(t, 5, tr.NCells())
	assert.Equal(t, 2, tr.NLevels())
	assert.Equal(t, 9, tr.NUsedVertices())
	assert.Equal(t, 16, tr.NLines())
	assert.Equal(t, 12, tr.NActiveLines())

	boundary, interior := 0, 0
	for f := range tr.ActiveFaces() {
		if f.AtBoundary() {
			boundary++
			assert.Equal(t, utils.BoundaryID(0), f.BoundaryID())
		} else {
			interior++
			assert.Equal(t, utils.InternalFaceBoundaryID, f.BoundaryID())
		}
	}
	assert.Equal(t, 8, boundary)
	assert.Equal(t, 4, interior)

	for c := range tr.ActiveCells() {
		assert.Equal(t, utils.MaterialID(0), c.MaterialID())
		assert.InDelta(t, 0.25, c.Measure(), 1e-14)
	}
	// Children are numbered like the corners they contain
	root := tr.Cell(CellID{0, 0})
	for i, ch := range root.Children() {
		assert.Equal(t, root.Vertex(i), tr.Cell(ch).Vertex(i))
		assert.Equal(t, i, tr.Cell(ch).ChildIndex())
	}
	assert.Equal(t, r3.Vec{X: 0.5, Y: 0.5}, tr.Cell(root.Child(0)).Vertex(3))
}

func TestCornerFlagWithVertexLimit(t *testing.T) {
	tr := newGrid(t, 2, 4, Config{Smoothing: LimitLevelDifferenceAtVertices})
	require.NoError(t, tr.EditCell(CellID{0, 0}).SetRefineFlag())

	assert.False(t, tr.PrepareCoarseningAndRefinement(), "no flag should be added")
	refine, coarsen := countFlagged(tr)
	assert.Equal(t, 1, refine)
	assert.Equal(t, 0, coarsen)

	require.NoError(t, tr.ExecuteCoarseningAndRefinement())
	assert.Equal(t, 19, tr.NActiveCells())
	requireOneIrregular(t, tr)
}

func TestRegularityAcrossFaces(t *testing.T) {
	tr := newGrid(t, 2, 2, Config{})
	require.NoError(t, tr.EditCell(CellID{0, 0}).SetRefineFlag())
	require.NoError(t, tr.ExecuteCoarseningAndRefinement())

	// Child 1 of cell 0 touches the face shared with cell 1
	child := tr.Cell(CellID{0, 0}).Child(1)
	require.NoError(t, tr.EditCell(child).SetRefineFlag())
	assert.True(t, tr.PrepareCoarseningAndRefinement())

	assert.True(t, tr.Cell(CellID{0, 1}).RefineFlagSet())
	assert.False(t, tr.Cell(CellID{0, 2}).RefineFlagSet())
	assert.False(t, tr.Cell(CellID{0, 3}).RefineFlagSet())
	refine, _ := countFlagged(tr)
	assert.Equal(t, 2, refine)

	require.NoError(t, tr.ExecuteCoarseningAndRefinement())
	assert.Equal(t, 3, tr.NLevels())
	requireOneIrregular(t, tr)
	requireSiblingsConsistent(t, tr)
	assert.True(t, tr.HasHangingNodes())
}

func TestRegularityAcrossEdges3D(t *testing.T) {
	tr := newGrid(t, 3, 2, Config{})
	require.NoError(t, tr.EditCell(CellID{0, 0}).SetRefineFlag())
	require.NoError(t, tr.ExecuteCoarseningAndRefinement())

	// Child 3 touches the faces shared with cells 1 and 2 and the line
	// shared with cell 3
	require.NoError(t, tr.EditCell(tr.Cell(CellID{0, 0}).Child(3)).SetRefineFlag())
	tr.PrepareCoarseningAndRefinement()
	for i, want := range []bool{false, true, true, true, false, false, false, false} {
		assert.Equal(t, want, tr.Cell(CellID{0, i}).RefineFlagSet(), "cell %d", i)
	}
	require.NoError(t, tr.ExecuteCoarseningAndRefinement())
	requireOneIrregular(t, tr)
}

func TestOneDimensionalVertexRule(t *testing.T) {
	tr := newGrid(t, 1, 3, Config{})
	require.NoError(t, tr.EditCell(CellID{0, 1}).SetRefineFlag())
	require.NoError(t, tr.ExecuteCoarseningAndRefinement())
	assert.Equal(t, 4, tr.NActiveCells())
	assert.Equal(t, 5, tr.NUsedVertices())

	left := tr.Cell(CellID{0, 1}).Child(0)
	require.NoError(t, tr.EditCell(left).SetRefineFlag())
	tr.PrepareCoarseningAndRefinement()
	assert.True(t, tr.Cell(CellID{0, 0}).RefineFlagSet())
	assert.False(t, tr.Cell(CellID{0, 2}).RefineFlagSet())

	require.NoError(t, tr.ExecuteCoarseningAndRefinement())
	requireOneIrregular(t, tr)

	n, ok := tr.Cell(left).Neighbor(0)
	require.True(t, ok)
	assert.Equal(t, 1, n.Level)
}

func TestHexRefineAndCoarsen(t *testing.T) {
	tr := newGrid(t, 3, 1, Config{})
	require.NoError(t, tr.RefineGlobal(1))
	assert.Equal(t, 8, tr.NActiveCells())
	assert.Equal(t, 27, tr.NUsedVertices())
	assert.Equal(t, 42, tr.NFaces())
	assert.Equal(t, 36, tr.NActiveFaces())
	assert.Equal(t, 66, tr.NLines())
	assert.Equal(t, 54, tr.NActiveLines())

	require.NoError(t, tr.RefineGlobal(1))
	assert.Equal(t, 64, tr.NActiveCells())
	assert.Equal(t, 125, tr.NUsedVertices())
	requireOneIrregular(t, tr)
	requireSiblingsConsistent(t, tr)

	for c := range tr.ActiveCellsOnLevel(2) {
		require.NoError(t, tr.EditCell(c.ID()).SetCoarsenFlag())
	}
	require.NoError(t, tr.ExecuteCoarseningAndRefinement())
	assert.Equal(t, 8, tr.NActiveCells())
	assert.Equal(t, 2, tr.NLevels())
	assert.Equal(t, 27, tr.NUsedVertices())
	assert.Equal(t, 42, tr.NFaces())
	assert.Equal(t, 66, tr.NLines())
	assert.False(t, tr.HasHangingNodes())
}

func TestCoarseningRejectsPartialGroup(t *testing.T) {
	tr := newGrid(t, 2, 1, Config{})
	require.NoError(t, tr.RefineGlobal(1))
	children := tr.Cell(CellID{0, 0}).Children()
	for _, ch := range children[:3] {
		require.NoError(t, tr.EditCell(ch).SetCoarsenFlag())
	}
	tr.FixCoarsenFlags()
	_, coarsen := countFlagged(tr)
	assert.Equal(t, 0, coarsen)

	require.NoError(t, tr.ExecuteCoarseningAndRefinement())
	assert.Equal(t, 4, tr.NActiveCells())
}

func TestCoarsenWholeGroup(t *testing.T) {
	tr := newGrid(t, 2, 1, Config{})
	require.NoError(t, tr.RefineGlobal(1))
	for c := range tr.ActiveCells() {
		require.NoError(t, tr.EditCell(c.ID()).SetCoarsenFlag())
	}
	var coarsened []CellID
	tr.Signals.PreCoarseningOnCell.Connect(func(c Cell) { coarsened = append(coarsened, c.ID()) })

	require.NoError(t, tr.ExecuteCoarseningAndRefinement())
	assert.Equal(t, []CellID{{0, 0}}, coarsened)
	assert.Equal(t, 1, tr.NActiveCells())
	assert.Equal(t, 1, tr.NLevels())
	assert.Equal(t, 4, tr.NUsedVertices())
	assert.Equal(t, 4, tr.NLines())
	assert.Equal(t, 4, tr.NActiveLines())
	assert.True(t, tr.Cell(CellID{0, 0}).Active())
}

func TestRefineWinsOverCoarsen(t *testing.T) {
	tr := newGrid(t, 2, 1, Config{})
	require.NoError(t, tr.RefineGlobal(1))
	for c := range tr.ActiveCells() {
		ed := tr.EditCell(c.ID())
		require.NoError(t, ed.SetCoarsenFlag())
		require.NoError(t, ed.SetRefineFlag())
	}
	tr.FixCoarsenFlags()
	refine, coarsen := countFlagged(tr)
	assert.Equal(t, 4, refine)
	assert.Equal(t, 0, coarsen)
}

func TestStorageReusedAcrossCycles(t *testing.T) {
	tr := newGrid(t, 2, 1, Config{})
	var lines, vertices []int
	for cycle := 0; cycle < 3; cycle++ {
		require.NoError(t, tr.RefineGlobal(1))
		lines = append(lines, tr.objects[1].Len())
		vertices = append(vertices, tr.NVertices())
		for c := range tr.ActiveCells() {
			require.NoError(t, tr.EditCell(c.ID()).SetCoarsenFlag())
		}
		require.NoError(t, tr.ExecuteCoarseningAndRefinement())
		assert.Equal(t, 1, tr.NActiveCells())
	}
	assert.Equal(t, []int{16, 16, 16}, lines)
	assert.Equal(t, []int{9, 9, 9}, vertices)
}

func TestExecuteWithoutFlagsIsNoOp(t *testing.T) {
	tr := newGrid(t, 2, 2, Config{Smoothing: LimitLevelDifferenceAtVertices})
	require.NoError(t, tr.EditCell(CellID{0, 0}).SetRefineFlag())
	require.NoError(t, tr.ExecuteCoarseningAndRefinement())

	cache := tr.NumberCache()
	positions := slices.Clone(tr.vertices)
	var active []CellID
	for c := range tr.ActiveCells() {
		active = append(active, c.ID())
	}

	require.NoError(t, tr.ExecuteCoarseningAndRefinement())
	assert.Empty(t, cmp.Diff(cache, tr.NumberCache()))
	assert.Empty(t, cmp.Diff(positions, tr.vertices))
	var after []CellID
	for c := range tr.ActiveCells() {
		after = append(after, c.ID())
	}
	assert.Equal(t, active, after)
}

func TestTagInheritance(t *testing.T) {
	tr, err := New(2, 2, Config{})
	require.NoError(t, err)
	vertices := []r3.Vec{{X: 0}, {X: 1}, {Y: 1}, {X: 1, Y: 1}}
	cells := []CellData{{Vertices: []int{0, 1, 2, 3}, MaterialID: 7, ManifoldID: utils.FlatManifoldID}}
	sub := SubCellData{Lines: []SubObjectData{{Vertices: []int{2, 0}, BoundaryID: 3, ManifoldID: utils.FlatManifoldID}}}
	require.NoError(t, tr.CreateTriangulation(vertices, cells, sub))
	assert.Equal(t, utils.BoundaryID(3), tr.Cell(CellID{0, 0}).FaceBoundaryID(0))

	require.NoError(t, tr.RefineGlobal(1))
	for c := range tr.ActiveCells() {
		assert.Equal(t, utils.MaterialID(7), c.MaterialID())
		assert.Equal(t, utils.FlatManifoldID, c.ManifoldID())
	}
	root := tr.Cell(CellID{0, 0})
	for _, i := range []int{0, 2} {
		assert.Equal(t, utils.BoundaryID(3), tr.Cell(root.Child(i)).FaceBoundaryID(0))
	}
	for _, i := range []int{1, 3} {
		assert.Equal(t, utils.BoundaryID(0), tr.Cell(root.Child(i)).FaceBoundaryID(1))
	}
	assert.Equal(t, []utils.BoundaryID{0, 3}, tr.BoundaryIDs())
}

func TestSphericalBoundaryPoints(t *testing.T) {
	tr, err := New(2, 2, Config{})
	require.NoError(t, err)
	s := 1 / math.Sqrt2
	vertices := []r3.Vec{{X: -s, Y: -s}, {X: s, Y: -s}, {X: -s, Y: s}, {X: s, Y: s}}
	cells := []CellData{{Vertices: []int{0, 1, 2, 3}, ManifoldID: utils.FlatManifoldID}}
	require.NoError(t, tr.CreateTriangulation(vertices, cells, SubCellData{}))
	tr.SetAllManifoldIDsOnBoundary(0)
	require.NoError(t, tr.SetManifold(0, manifold.NewSpherical(r3.Vec{})))

	require.NoError(t, tr.RefineGlobal(1))
	n := 0
	for f := range tr.ActiveFaces() {
		if !f.AtBoundary() {
			continue
		}
		for i := 0; i < f.NVertices(); i++ {
			assert.InDelta(t, 1, r3.Norm(f.Vertex(i)), 1e-12)
		}
		n++
	}
	assert.Equal(t, 8, n)
	center := tr.Cell(tr.Cell(CellID{0, 0}).Child(0)).Vertex(3)
	assert.InDelta(t, 0, r3.Norm(center), 1e-12)
}

type failingManifold struct{ manifold.Flat }

var errBoom = errors.New("boom")

func (failingManifold) GetNewPoint([]r3.Vec, []float64) (r3.Vec, error) {
	return r3.Vec{}, errBoom
}

func TestGeometryErrorRollsBack(t *testing.T) {
	tr, err := New(2, 2, Config{})
	require.NoError(t, err)
	vertices := []r3.Vec{{X: 0}, {X: 1}, {Y: 1}, {X: 1, Y: 1}}
	require.NoError(t, tr.CreateTriangulation(vertices, []CellData{{Vertices: []int{0, 1, 2, 3}, ManifoldID: 5}}, SubCellData{}))
	require.NoError(t, tr.SetManifold(5, failingManifold{}))

	err = tr.RefineGlobal(1)
	var gerr *GeometryError
	require.ErrorAs(t, err, &gerr)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, "cell 0.0", gerr.Object)

	assert.Equal(t, 1, tr.NActiveCells())
	assert.Equal(t, 1, tr.NLevels())
	assert.Equal(t, 4, tr.NUsedVertices())
	assert.Equal(t, 4, tr.NLines())
	assert.Equal(t, 4, tr.NActiveLines())

	tr.ResetManifold(5)
	require.NoError(t, tr.RefineGlobal(1))
	assert.Equal(t, 4, tr.NActiveCells())
	assert.Equal(t, 9, tr.NUsedVertices())
}

func TestParallelGeometryMatchesSerial(t *testing.T) {
	serial := newGrid(t, 2, 2, Config{})
	parallel := newGrid(t, 2, 2, Config{ParallelGeometry: true})
	for _, tr := range []*Triangulation{serial, parallel} {
		tr.SetAllManifoldIDs(utils.FlatManifoldID)
		tr.SetAllManifoldIDsOnBoundary(0)
		require.NoError(t, tr.SetManifold(0, manifold.NewSpherical(r3.Vec{X: 0.5, Y: 0.5})))
		require.NoError(t, tr.RefineGlobal(2))
	}
	assert.Empty(t, cmp.Diff(serial.vertices, parallel.vertices))
	assert.Equal(t, serial.NumberCache(), parallel.NumberCache())
}

func TestDistortedCells(t *testing.T) {
	tr, err := New(2, 2, Config{CheckForDistortedCells: true})
	require.NoError(t, err)
	// Corners 2 and 3 swapped: a bow tie
	vertices := []r3.Vec{{X: 0}, {X: 1}, {X: 1, Y: 1}, {Y: 1}}
	cells := []CellData{{Vertices: []int{0, 1, 2, 3}}}
	err = tr.CreateTriangulation(vertices, cells, SubCellData{})
	var derr *DistortedCellsError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, []CellID{{0, 0}}, derr.Cells)
	assert.False(t, tr.Empty(), "the mesh is built despite the distortion")

	err = tr.RefineGlobal(1)
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, []CellID{{0, 0}}, derr.Cells)
	assert.Equal(t, []CellID{{0, 0}}, derr.Ancestors)
	assert.Equal(t, 4, tr.NActiveCells())
	assert.NotEmpty(t, tr.DistortedActiveCells())
}
