package tria

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// newGrid builds n^dim unit cells of size 1/n on [0,1]^dim. Cell
// (i,j,k) has index i + n*j + n*n*k.
func newGrid(t *testing.T, dim, n int, cfg Config) *Triangulation {
	t.Helper()
	tr, err := New(dim, dim, cfg)
	require.NoError(t, err)
	np := n + 1
	nv, nc := 1, 1
	for i := 0; i < dim; i++ {
		nv *= np
		nc *= n
	}
	vertices := make([]r3.Vec, nv)
	for v := range vertices {
		var c [3]float64
		r := v
		for a := 0; a < dim; a++ {
			c[a] = float64(r%np) / float64(n)
			r /= np
		}
		vertices[v] = r3.Vec{X: c[0], Y: c[1], Z: c[2]}
	}
	cells := make([]CellData, 0, nc)
	stride := [3]int{1, np, np * np}
	for c := 0; c < nc; c++ {
		var idx [3]int
		r := c
		for a := 0; a < dim; a++ {
			idx[a] = r % n
			r /= n
		}
		base := 0
		for a := 0; a < dim; a++ {
			base += idx[a] * stride[a]
		}
		verts := make([]int, 1<<dim)
		for lv := range verts {
			v := base
			for a := 0; a < dim; a++ {
				v += (lv >> a & 1) * stride[a]
			}
			verts[lv] = v
		}
		cells = append(cells, CellData{Vertices: verts})
	}
	require.NoError(t, tr.CreateTriangulation(vertices, cells, SubCellData{}))
	return tr
}

// requireOneIrregular checks that no face or line of an active cell has
// grandchildren, and, for limited meshes, the vertex level rule
func requireOneIrregular(t *testing.T, tr *Triangulation) {
	t.Helper()
	for c := range tr.ActiveCells() {
		subs := tr.cellSubObjects(c.ID())
		for m := 1; m < tr.Dim(); m++ {
			store := tr.objects[m]
			for _, idx := range subs[m] {
				if !store.hasChildren(idx) {
					continue
				}
				for ch := 0; ch < 1<<m; ch++ {
					require.False(t, store.hasChildren(store.child(idx, ch)),
						"cell %v: %d-object %d has grandchildren", c.ID(), m, idx)
				}
			}
		}
	}
	if tr.Dim() == 1 || tr.Smoothing().Has(LimitLevelDifferenceAtVertices) {
		finest := make(map[int]int)
		coarsest := make(map[int]int)
		for c := range tr.ActiveCells() {
			for _, v := range c.VertexIndices() {
				if l, ok := finest[v]; !ok || c.Level() > l {
					finest[v] = c.Level()
				}
				if l, ok := coarsest[v]; !ok || c.Level() < l {
					coarsest[v] = c.Level()
				}
			}
		}
		for v, hi := range finest {
			require.LessOrEqual(t, hi-coarsest[v], 1, "vertex %d", v)
		}
	}
}

// requireSiblingsConsistent checks every used cell is either active or has
// all its children
func requireSiblingsConsistent(t *testing.T, tr *Triangulation) {
	t.Helper()
	for c := range tr.Cells() {
		if c.Active() {
			continue
		}
		for _, ch := range c.Children() {
			require.True(t, tr.validCell(ch), "child %v of %v", ch, c.ID())
			p, ok := tr.Cell(ch).Parent()
			require.True(t, ok)
			require.Equal(t, c.ID(), p)
		}
	}
}

func countFlagged(tr *Triangulation) (refine, coarsen int) {
	for c := range tr.ActiveCells() {
		if c.RefineFlagSet() {
			refine++
		}
		if c.CoarsenFlagSet() {
			coarsen++
		}
	}
	return refine, coarsen
}
