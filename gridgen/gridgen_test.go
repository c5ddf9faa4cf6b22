package gridgen

import (
	"math"
	"testing"

	"github.com/notargets/DGMesh/tria"
	"github.com/notargets/DGMesh/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func newTria(t *testing.T, dim int) *tria.Triangulation {
	t.Helper()
	tr, err := tria.New(dim, dim, tria.Config{CheckForDistortedCells: true})
	require.NoError(t, err)
	return tr
}

func TestHyperCubeColorize(t *testing.T) {
	for dim := 1; dim <= 3; dim++ {
		tr := newTria(t, dim)
		require.NoError(t, HyperCube(tr, -1, 1, true))
		assert.Equal(t, 1, tr.NActiveCells())
		assert.Equal(t, 1<<dim, tr.NUsedVertices())
		want := make([]utils.BoundaryID, 2*dim)
		for f := range want {
			want[f] = utils.BoundaryID(f)
		}
		assert.Equal(t, want, tr.BoundaryIDs(), "dim %d", dim)

		plain := newTria(t, dim)
		require.NoError(t, HyperCube(plain, 0, 1, false))
		assert.Equal(t, []utils.BoundaryID{0}, plain.BoundaryIDs())
	}

	// the id matches the side of the box the face lies on
	tr := newTria(t, 2)
	require.NoError(t, SubdividedHyperRectangle(tr, []int{2, 2}, r3.Vec{}, r3.Vec{X: 1, Y: 1}, true))
	for f := range tr.ActiveFaces() {
		if !f.AtBoundary() {
			continue
		}
		c := f.Center()
		switch f.BoundaryID() {
		case 0:
			assert.InDelta(t, 0, c.X, 1e-14)
		case 1:
			assert.InDelta(t, 1, c.X, 1e-14)
		case 2:
			assert.InDelta(t, 0, c.Y, 1e-14)
		case 3:
			assert.InDelta(t, 1, c.Y, 1e-14)
		default:
			t.Fatalf("unexpected boundary id %d", f.BoundaryID())
		}
	}
}

func TestSubdividedHyperRectangle3D(t *testing.T) {
	tr := newTria(t, 3)
	p2 := r3.Vec{X: 2, Y: 1, Z: 3}
	require.NoError(t, SubdividedHyperRectangle(tr, []int{2, 1, 3}, r3.Vec{}, p2, false))
	assert.Equal(t, 6, tr.NActiveCells())
	assert.Equal(t, 24, tr.NUsedVertices())
	var volume float64
	for c := range tr.ActiveCells() {
		volume += c.Measure()
	}
	assert.InDelta(t, 6, volume, 1e-12)
	assert.Empty(t, tr.DistortedActiveCells())

	for _, p := range tr.UsedVertices() {
		assert.True(t, p.X >= 0 && p.X <= 2 && p.Y >= 0 && p.Y <= 1 && p.Z >= 0 && p.Z <= 3, "%v", p)
	}
}

func TestSubdividedHyperRectangleErrors(t *testing.T) {
	tests := []struct {
		name   string
		reps   []int
		p1, p2 r3.Vec
	}{
		{"wrong repetition count", []int{1}, r3.Vec{}, r3.Vec{X: 1, Y: 1}},
		{"zero repetitions", []int{1, 0}, r3.Vec{}, r3.Vec{X: 1, Y: 1}},
		{"unordered corners", []int{1, 1}, r3.Vec{X: 1}, r3.Vec{X: 0, Y: 1}},
		{"flat box", []int{1, 1}, r3.Vec{}, r3.Vec{X: 1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := newTria(t, 2)
			err := SubdividedHyperRectangle(tr, tc.reps, tc.p1, tc.p2, false)
			require.ErrorIs(t, err, ErrInvalidGeometry)
			assert.True(t, tr.Empty())
		})
	}

	tr := newTria(t, 2)
	require.NoError(t, HyperCube(tr, 0, 1, false))
	require.ErrorIs(t, HyperCube(tr, 0, 1, false), tria.ErrNotEmpty)
}

func TestHyperBall2D(t *testing.T) {
	center := r3.Vec{X: 1, Y: -2}
	const radius = 2.0
	tr := newTria(t, 2)
	require.NoError(t, HyperBall(tr, center, radius))
	assert.Equal(t, 5, tr.NActiveCells())
	assert.Equal(t, 8, tr.NUsedVertices())
	assert.True(t, tr.HasManifold(BoundaryManifoldID))
	assert.True(t, tr.HasManifold(InteriorManifoldID))

	require.NoError(t, tr.RefineGlobal(3))
	assert.Equal(t, 5*64, tr.NActiveCells())
	assert.Empty(t, tr.DistortedActiveCells())

	for f := range tr.ActiveFaces() {
		if !f.AtBoundary() {
			continue
		}
		for i := 0; i < f.NVertices(); i++ {
			assert.InDelta(t, radius, r3.Norm(r3.Sub(f.Vertex(i), center)), 1e-10)
		}
	}
	var area float64
	for c := range tr.ActiveCells() {
		area += c.Measure()
	}
	exact := math.Pi * radius * radius
	assert.InEpsilon(t, exact, area, 0.02)
	assert.Less(t, area, exact)
}

func TestHyperBall3D(t *testing.T) {
	tr := newTria(t, 3)
	require.NoError(t, HyperBall(tr, r3.Vec{}, 1))
	assert.Equal(t, 7, tr.NActiveCells())
	assert.Equal(t, 16, tr.NUsedVertices())

	require.NoError(t, tr.RefineGlobal(1))
	assert.Equal(t, 56, tr.NActiveCells())
	assert.Empty(t, tr.DistortedActiveCells())
	for f := range tr.ActiveFaces() {
		if !f.AtBoundary() {
			continue
		}
		for i := 0; i < f.NVertices(); i++ {
			assert.InDelta(t, 1, r3.Norm(f.Vertex(i)), 1e-10)
		}
	}

	require.NoError(t, tr.RefineGlobal(1))
	assert.Equal(t, 448, tr.NActiveCells())
	assert.Empty(t, tr.DistortedActiveCells())
	var volume float64
	for c := range tr.ActiveCells() {
		volume += c.Measure()
	}
	exact := 4 * math.Pi / 3
	assert.InEpsilon(t, exact, volume, 0.08)
	assert.Less(t, volume, exact)
}

func TestHyperBallErrors(t *testing.T) {
	line := newTria(t, 1)
	require.ErrorIs(t, HyperBall(line, r3.Vec{}, 1), ErrInvalidGeometry)

	tr := newTria(t, 2)
	require.ErrorIs(t, HyperBall(tr, r3.Vec{}, 0), ErrInvalidGeometry)
	assert.True(t, tr.Empty())

	embedded, err := tria.New(2, 3, tria.Config{})
	require.NoError(t, err)
	require.ErrorIs(t, HyperBall(embedded, r3.Vec{}, 1), ErrInvalidGeometry)
}

func TestHyperShell(t *testing.T) {
	const inner, outer = 0.5, 1.0
	tr := newTria(t, 2)
	require.NoError(t, HyperShell(tr, r3.Vec{}, inner, outer, 8))
	assert.Equal(t, 8, tr.NActiveCells())
	assert.Equal(t, []utils.BoundaryID{0, 1}, tr.BoundaryIDs())

	require.NoError(t, tr.RefineGlobal(1))
	assert.Equal(t, 32, tr.NActiveCells())
	assert.Empty(t, tr.DistortedActiveCells())
	for f := range tr.ActiveFaces() {
		if !f.AtBoundary() {
			continue
		}
		want := inner
		if f.BoundaryID() == 1 {
			want = outer
		}
		for i := 0; i < f.NVertices(); i++ {
			assert.InDelta(t, want, r3.Norm(f.Vertex(i)), 1e-12)
		}
	}
	for _, p := range tr.UsedVertices() {
		r := r3.Norm(p)
		assert.True(t, r > inner-1e-12 && r < outer+1e-12, "radius %g", r)
	}

	bad := newTria(t, 2)
	require.ErrorIs(t, HyperShell(bad, r3.Vec{}, 1, 0.5, 8), ErrInvalidGeometry)
	require.ErrorIs(t, HyperShell(bad, r3.Vec{}, 0.5, 1, 2), ErrInvalidGeometry)
}
