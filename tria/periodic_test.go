package tria

import (
	"testing"

	"github.com/notargets/DGMesh/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// periodicStrip returns a 2x2 grid whose left faces carry id 0, right faces
// id 1 and the rest id 2, with left and right coupled
func periodicStrip(t *testing.T) *Triangulation {
	t.Helper()
	tr := newGrid(t, 2, 2, Config{})
	for _, i := range []int{0, 1} {
		require.NoError(t, tr.EditCell(CellID{0, i}).SetFaceBoundaryID(2, 2))
	}
	for _, i := range []int{2, 3} {
		require.NoError(t, tr.EditCell(CellID{0, i}).SetFaceBoundaryID(3, 2))
	}
	for _, i := range []int{1, 3} {
		require.NoError(t, tr.EditCell(CellID{0, i}).SetFaceBoundaryID(1, 1))
	}
	pairs, err := tr.CollectPeriodicFaces(0, 1, 0)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	for _, p := range pairs {
		assert.Equal(t, r3.Vec{X: 1}, p.Offset)
	}
	require.NoError(t, tr.AddPeriodicFaces(pairs))
	return tr
}

func TestPeriodicPartners(t *testing.T) {
	tr := periodicStrip(t)
	assert.Len(t, tr.PeriodicFacePairs(), 2)

	c0 := tr.Cell(CellID{0, 0})
	_, ok := c0.Neighbor(0)
	assert.False(t, ok)
	n, g, ok := c0.PeriodicNeighbor(0)
	require.True(t, ok)
	assert.Equal(t, CellID{0, 1}, n)
	assert.Equal(t, 1, g)
	assert.False(t, c0.HasPeriodicNeighbor(2))
	assert.False(t, c0.HasPeriodicNeighbor(1))

	require.NoError(t, tr.EditCell(CellID{0, 1}).SetRefineFlag())
	require.NoError(t, tr.ExecuteCoarseningAndRefinement())

	c1 := tr.Cell(CellID{0, 1})
	n, g, ok = tr.Cell(c1.Child(1)).PeriodicNeighbor(1)
	require.True(t, ok)
	assert.Equal(t, CellID{0, 0}, n, "coarser partner")
	assert.Equal(t, 0, g)
	assert.False(t, tr.Cell(c1.Child(0)).HasPeriodicNeighbor(1))

	// Refined partners on the same level are still reported
	n, _, ok = c0.PeriodicNeighbor(0)
	require.True(t, ok)
	assert.Equal(t, CellID{0, 1}, n)
}

func TestPeriodicRegularity(t *testing.T) {
	tr := periodicStrip(t)
	require.NoError(t, tr.EditCell(CellID{0, 1}).SetRefineFlag())
	require.NoError(t, tr.ExecuteCoarseningAndRefinement())

	// Child 1 of cell 1 lies on the periodic face x=1
	require.NoError(t, tr.EditCell(tr.Cell(CellID{0, 1}).Child(1)).SetRefineFlag())
	tr.PrepareCoarseningAndRefinement()
	assert.True(t, tr.Cell(CellID{0, 0}).RefineFlagSet())
	assert.False(t, tr.Cell(CellID{0, 2}).RefineFlagSet())
	assert.False(t, tr.Cell(CellID{0, 3}).RefineFlagSet())

	require.NoError(t, tr.ExecuteCoarseningAndRefinement())
	c0, c1 := tr.Cell(CellID{0, 0}), tr.Cell(CellID{0, 1})
	n, g, ok := tr.Cell(c1.Child(1)).PeriodicNeighbor(1)
	require.True(t, ok)
	assert.Equal(t, c0.Child(0), n)
	assert.Equal(t, 0, g)
	n, _, ok = tr.Cell(c1.Child(3)).PeriodicNeighbor(1)
	require.True(t, ok)
	assert.Equal(t, c0.Child(2), n)
}

func TestPeriodicVertexLevels1D(t *testing.T) {
	tr := newGrid(t, 1, 3, Config{})
	require.NoError(t, tr.EditCell(CellID{0, 2}).SetFaceBoundaryID(1, 1))
	pairs, err := tr.CollectPeriodicFaces(0, 1, 0)
	require.NoError(t, err)
	require.NoError(t, tr.AddPeriodicFaces(pairs))

	require.NoError(t, tr.EditCell(CellID{0, 2}).SetRefineFlag())
	require.NoError(t, tr.ExecuteCoarseningAndRefinement())
	require.NoError(t, tr.EditCell(tr.Cell(CellID{0, 2}).Child(1)).SetRefineFlag())
	tr.PrepareCoarseningAndRefinement()
	assert.True(t, tr.Cell(CellID{0, 0}).RefineFlagSet())
	assert.False(t, tr.Cell(CellID{0, 1}).RefineFlagSet())
}

func TestPeriodicErrors(t *testing.T) {
	tr := newGrid(t, 2, 2, Config{})
	err := tr.AddPeriodicFaces([]PeriodicFacePair{{Cell1: 0, Face1: 1, Cell2: 1, Face2: 0}})
	assert.ErrorIs(t, err, ErrInvalidTopology, "interior faces")

	err = tr.AddPeriodicFaces([]PeriodicFacePair{{Cell1: 0, Face1: 0, Cell2: 1, Face2: 1, Offset: r3.Vec{X: 2}}})
	assert.ErrorIs(t, err, ErrInvalidTopology, "offset does not match")

	err = tr.AddPeriodicFaces([]PeriodicFacePair{{Cell1: 9, Face1: 0, Cell2: 1, Face2: 1}})
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = tr.CollectPeriodicFaces(0, 1, 0)
	assert.ErrorIs(t, err, ErrSizeMismatch)
	_, err = tr.CollectPeriodicFaces(0, 1, 3)
	assert.ErrorIs(t, err, ErrInvalidID)

	err = tr.AddPeriodicFaces([]PeriodicFacePair{{Cell1: 0, Face1: 0, Cell2: 0, Face2: 0}})
	assert.ErrorIs(t, err, ErrInvalidTopology, "face paired with itself")

	good := PeriodicFacePair{Cell1: 0, Face1: 0, Cell2: 1, Face2: 1, Offset: r3.Vec{X: 1}}
	err = tr.AddPeriodicFaces([]PeriodicFacePair{good, good})
	assert.ErrorIs(t, err, ErrInvalidTopology, "face twice in one batch")
	assert.Empty(t, tr.PeriodicFacePairs())
	assert.False(t, tr.Cell(CellID{0, 0}).HasPeriodicNeighbor(0))

	require.NoError(t, tr.AddPeriodicFaces([]PeriodicFacePair{good}))
	assert.ErrorIs(t, tr.AddPeriodicFaces([]PeriodicFacePair{good}), ErrInvalidTopology)
	assert.Equal(t, utils.BoundaryID(0), tr.Cell(CellID{0, 0}).FaceBoundaryID(0))
}
