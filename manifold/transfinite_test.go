package manifold

import (
	"math"
	"testing"

	"github.com/notargets/DGMesh/element"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestTransfiniteReproducesAffineCells(t *testing.T) {
	tfi, err := NewTransfiniteInterpolation(2)
	require.NoError(t, err)
	corners := []r3.Vec{{}, {X: 2}, {X: 0.5, Y: 1}, {X: 2.5, Y: 1}}
	require.NoError(t, tfi.Initialize([]CoarseCell{{Vertices: corners}}))
	assert.Equal(t, 1, tfi.NCells())

	q := element.MustHypercube(2)
	xi := r3.Vec{X: 0.3, Y: 0.7}
	assert.InDelta(t, 0, r3.Norm(r3.Sub(q.MapPoint(corners, xi), tfi.PushForward(0, xi))), 1e-14)

	back, err := tfi.PullBack(0, q.MapPoint(corners, xi))
	require.NoError(t, err)
	assert.InDelta(t, 0.3, back.X, 1e-9)
	assert.InDelta(t, 0.7, back.Y, 1e-9)

	c, err := tfi.GetNewPoint(corners, []float64{0.25, 0.25, 0.25, 0.25})
	require.NoError(t, err)
	assert.InDelta(t, 0, r3.Norm(r3.Sub(c, element.Barycenter(corners))), 1e-9)
}

func TestTransfiniteFollowsCurvedEdge(t *testing.T) {
	// Outer cell of a disc: inner straight edge at x=0.5, outer arc of radius 1
	s := NewSpherical(r3.Vec{})
	a := 1 / math.Sqrt(2)
	corners := []r3.Vec{
		{X: 0.5, Y: -0.5}, {X: a, Y: -a},
		{X: 0.5, Y: 0.5}, {X: a, Y: a},
	}
	edges := make([]Manifold, 4)
	edges[3] = s // the line (1,3) runs along axis 1 at x-bit 1: the arc
	tfi, err := NewTransfiniteInterpolation(2)
	require.NoError(t, err)
	require.NoError(t, tfi.Initialize([]CoarseCell{{Vertices: corners, EdgeManifolds: edges}}))

	onArc := tfi.PushForward(0, r3.Vec{X: 1, Y: 0.5})
	assert.InDelta(t, 1.0, r3.Norm(onArc), 1e-12)
	assert.InDelta(t, 0.0, onArc.Y, 1e-12)

	back, err := tfi.PullBack(0, onArc)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, back.X, 1e-8)
	assert.InDelta(t, 0.5, back.Y, 1e-8)

	_, err = tfi.GetNewPoint([]r3.Vec{{X: 5}, {X: 6}}, []float64{0.5, 0.5})
	assert.ErrorIs(t, err, ErrPullBack)
}

func TestTransfiniteValidation(t *testing.T) {
	_, err := NewTransfiniteInterpolation(1)
	assert.Error(t, err)

	tfi, err := NewTransfiniteInterpolation(3)
	require.NoError(t, err)
	assert.Error(t, tfi.Initialize([]CoarseCell{{Vertices: make([]r3.Vec, 4)}}))
	assert.Equal(t, 0, tfi.NCells())
	_, err = tfi.GetNewPoint([]r3.Vec{{}}, []float64{1})
	assert.ErrorIs(t, err, ErrPullBack)

	// A failed re-initialization keeps the cells already known
	require.NoError(t, tfi.Initialize([]CoarseCell{{Vertices: unitCube()}}))
	assert.Error(t, tfi.Initialize([]CoarseCell{{Vertices: unitCube()}, {Vertices: unitCube(), FaceManifolds: make([]Manifold, 4)}}))
	assert.Equal(t, 1, tfi.NCells())
	p, err := tfi.GetNewPoint([]r3.Vec{{}, {X: 1, Y: 1, Z: 1}}, []float64{0.5, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 0, r3.Norm(r3.Sub(p, r3.Vec{X: 0.5, Y: 0.5, Z: 0.5})), 1e-9)

	quad, err := NewTransfiniteInterpolation(2)
	require.NoError(t, err)
	assert.Error(t, quad.Initialize([]CoarseCell{{Vertices: make([]r3.Vec, 4), FaceManifolds: make([]Manifold, 4)}}))
}

func unitCube() []r3.Vec {
	h := element.MustHypercube(3)
	out := make([]r3.Vec, h.NVertices())
	for v := range out {
		out[v] = h.UnitVertex(v)
	}
	return out
}

func TestTransfiniteTrilinearHex(t *testing.T) {
	corners := unitCube()
	for v := range corners {
		corners[v] = r3.Add(r3.Scale(2, corners[v]), r3.Vec{X: corners[v].Y, Z: -1})
	}
	tfi, err := NewTransfiniteInterpolation(3)
	require.NoError(t, err)
	require.NoError(t, tfi.Initialize([]CoarseCell{{Vertices: corners}}))

	h := element.MustHypercube(3)
	xi := r3.Vec{X: 0.2, Y: 0.9, Z: 0.4}
	assert.InDelta(t, 0, r3.Norm(r3.Sub(h.MapPoint(corners, xi), tfi.PushForward(0, xi))), 1e-13)
	back, err := tfi.PullBack(0, h.MapPoint(corners, xi))
	require.NoError(t, err)
	assert.InDelta(t, 0, r3.Norm(r3.Sub(back, xi)), 1e-8)
}

func TestTransfiniteFollowsCurvedFace(t *testing.T) {
	// Outer cell of a ball: inner face at x=a/2, outer face on the unit sphere
	s := NewSpherical(r3.Vec{})
	a := 1 / math.Sqrt(3)
	corners := make([]r3.Vec, 8)
	for v := range corners {
		y := float64(2*(v>>1&1) - 1)
		z := float64(2*(v>>2&1) - 1)
		scale := a / 2
		if v&1 == 1 {
			scale = a
		}
		corners[v] = r3.Vec{X: scale, Y: scale * y, Z: scale * z}
	}
	h := element.MustHypercube(3)
	edges := make([]Manifold, h.NEdges())
	for e, pair := range h.Edges() {
		if pair[0]&1 == 1 && h.EdgeAxis(e) != 0 {
			edges[e] = s
		}
	}
	faces := make([]Manifold, h.NFaces())
	faces[1] = s
	tfi, err := NewTransfiniteInterpolation(3)
	require.NoError(t, err)
	require.NoError(t, tfi.Initialize([]CoarseCell{{Vertices: corners, EdgeManifolds: edges, FaceManifolds: faces}}))

	for _, xi := range []r3.Vec{{X: 1, Y: 0.5, Z: 0.5}, {X: 1, Y: 0.2, Z: 0.7}, {X: 1, Y: 0, Z: 0.3}} {
		p := tfi.PushForward(0, xi)
		assert.InDelta(t, 1.0, r3.Norm(p), 1e-12, "xi=%v", xi)
	}
	center := tfi.PushForward(0, r3.Vec{X: 1, Y: 0.5, Z: 0.5})
	assert.InDelta(t, 1.0, center.X, 1e-12)

	// The sphere point placed by the face manifold lies in the image
	onSphere, err := s.GetNewPoint([]r3.Vec{corners[1], corners[3], corners[5], corners[7]}, []float64{0.4, 0.1, 0.3, 0.2})
	require.NoError(t, err)
	back, err := tfi.PullBack(0, onSphere)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, back.X, 1e-8)

	mid, err := tfi.GetNewPoint([]r3.Vec{corners[0], onSphere}, []float64{0.5, 0.5})
	require.NoError(t, err)
	assert.True(t, IsFinite(mid))
}
