package element

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestHypercubeProperties(t *testing.T) {
	tests := []struct {
		dim                               int
		nVerts, nFaces, nEdges, nChildren int
		shortName                         string
	}{
		{1, 2, 2, 1, 2, "Line"},
		{2, 4, 4, 4, 4, "Quad"},
		{3, 8, 6, 12, 8, "Hex"},
	}
	for _, tt := range tests {
		h, err := NewHypercube(tt.dim)
		require.NoError(t, err)
		p := h.GetProperties()
		assert.Equal(t, tt.nVerts, p.NVertices)
		assert.Equal(t, tt.nFaces, p.NFaces)
		assert.Equal(t, tt.nEdges, p.NEdges)
		assert.Equal(t, tt.nChildren, p.NChildren)
		assert.Equal(t, tt.shortName, p.ShortName)
		assert.Equal(t, Dimensionality(tt.dim), p.Dimensions)
		assert.Len(t, h.Edges(), tt.nEdges)
	}

	_, err := NewHypercube(4)
	assert.Error(t, err)
}

func TestFaceVertices(t *testing.T) {
	q := MustHypercube(2)
	assert.Equal(t, []int{0, 2}, q.FaceVertices(0))
	assert.Equal(t, []int{1, 3}, q.FaceVertices(1))
	assert.Equal(t, []int{0, 1}, q.FaceVertices(2))
	assert.Equal(t, []int{2, 3}, q.FaceVertices(3))

	h := MustHypercube(3)
	assert.Equal(t, []int{4, 5, 6, 7}, h.FaceVertices(5))
	for f := 0; f < h.NFaces(); f++ {
		axis, side := h.FaceAxis(f)
		for _, v := range h.FaceVertices(f) {
			assert.Equal(t, float64(side), component(h.UnitVertex(v), axis))
			assert.True(t, h.ChildOnFace(v, f))
		}
	}
}

func TestEdgesRunAlongAxes(t *testing.T) {
	h := MustHypercube(3)
	for e, pair := range h.Edges() {
		axis := h.EdgeAxis(e)
		d := r3.Sub(h.UnitVertex(pair[1]), h.UnitVertex(pair[0]))
		assert.Equal(t, 1.0, component(d, axis), "edge %d", e)
		assert.Equal(t, 1.0, r3.Norm(d), "edge %d", e)
	}
}

func TestCenterWeightsSumToOne(t *testing.T) {
	assert.Equal(t, 0.5, CenterWeight(1, 0))
	assert.Equal(t, 0.5, CenterWeight(2, 1))
	assert.Equal(t, -0.25, CenterWeight(2, 0))
	assert.Equal(t, -0.25, CenterWeight(3, 1))
	assert.Equal(t, 0.125, CenterWeight(3, 0))

	// quad: 4 lines and 4 vertices; hex: 6 faces, 12 lines, 8 vertices
	assert.InDelta(t, 1.0, 4*CenterWeight(2, 1)+4*CenterWeight(2, 0), 1e-15)
	assert.InDelta(t, 1.0, 6*CenterWeight(3, 2)+12*CenterWeight(3, 1)+8*CenterWeight(3, 0), 1e-15)
}

func TestMapPointReproducesCorners(t *testing.T) {
	h := MustHypercube(3)
	corners := make([]r3.Vec, 8)
	for v := range corners {
		u := h.UnitVertex(v)
		corners[v] = r3.Vec{X: 2*u.X + 0.1*u.Y, Y: u.Y - 0.3*u.Z, Z: 4 * u.Z}
	}
	for v := range corners {
		assert.InDelta(t, 0, r3.Norm(r3.Sub(corners[v], h.MapPoint(corners, h.UnitVertex(v)))), 1e-14)
	}
	c := h.MapPoint(corners, r3.Vec{X: 0.5, Y: 0.5, Z: 0.5})
	assert.InDelta(t, 0, r3.Norm(r3.Sub(c, Barycenter(corners))), 1e-14)
}

func TestSubObjects(t *testing.T) {
	h := MustHypercube(3)
	assert.Len(t, h.SubObjects(0), 8)
	assert.Len(t, h.SubObjects(1), 12)
	assert.Len(t, h.SubObjects(2), 6)
	assert.Equal(t, [][]int{{0, 1, 2, 3, 4, 5, 6, 7}}, h.SubObjects(3))

	for i, e := range h.Edges() {
		assert.Equal(t, []int{e[0], e[1]}, h.SubObjects(1)[i])
	}
	// Faces appear as the same vertex sets as FaceVertices, in another order
	faces := h.SubObjects(2)
	for f := 0; f < h.NFaces(); f++ {
		assert.Contains(t, faces, h.FaceVertices(f))
	}
	assert.Nil(t, h.SubObjects(4))
}
