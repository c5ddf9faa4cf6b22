package snapshot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/notargets/DGMesh/gridgen"
	"github.com/notargets/DGMesh/tria"
	"github.com/notargets/DGMesh/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func refinedSquare(t *testing.T) *tria.Triangulation {
	t.Helper()
	tr, err := tria.New(2, 2, tria.Config{Smoothing: tria.LimitLevelDifferenceAtVertices})
	require.NoError(t, err)
	require.NoError(t, gridgen.HyperCube(tr, 0, 1, true))
	require.NoError(t, tr.RefineGlobal(1))
	require.NoError(t, tr.EditCell(tria.CellID{Level: 1, Index: 0}).SetRefineFlag())
	require.NoError(t, tr.ExecuteCoarseningAndRefinement())
	return tr
}

func vertices(tr *tria.Triangulation) map[int]r3.Vec {
	out := make(map[int]r3.Vec)
	for i, p := range tr.UsedVertices() {
		out[i] = p
	}
	return out
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	tr := refinedSquare(t)

	info, err := s.Save(ctx, "square", tr)
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "square", info.Label)
	assert.Equal(t, 2, info.Dim)
	assert.Equal(t, 3, info.NLevels)
	assert.Equal(t, tr.NActiveCells(), info.NActiveCells)
	assert.Equal(t, tr.NUsedVertices(), info.NUsedVertices)
	assert.Equal(t, "limit_level_difference_at_vertices", info.Smoothing)
	assert.Equal(t, []utils.BoundaryID{0, 1, 2, 3}, info.BoundaryIDs)
	assert.False(t, info.CreatedAt.IsZero())

	loaded, err := tria.New(2, 2, tria.Config{})
	require.NoError(t, err)
	require.NoError(t, s.Load(ctx, info.ID, loaded))
	assert.Equal(t, tr.NActiveCells(), loaded.NActiveCells())
	assert.Equal(t, tr.NLevels(), loaded.NLevels())
	assert.Equal(t, tr.Smoothing(), loaded.Smoothing())
	assert.Equal(t, vertices(tr), vertices(loaded))
	assert.Equal(t, tr.BoundaryIDs(), loaded.BoundaryIDs())

	wrongDim, err := tria.New(3, 3, tria.Config{})
	require.NoError(t, err)
	require.ErrorIs(t, s.Load(ctx, info.ID, wrongDim), tria.ErrSizeMismatch)
	require.ErrorIs(t, s.Load(ctx, "missing", loaded), ErrNotFound)

	empty, err := tria.New(2, 2, tria.Config{})
	require.NoError(t, err)
	_, err = s.Save(ctx, "empty", empty)
	require.ErrorIs(t, err, tria.ErrEmpty)
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	tr := refinedSquare(t)

	a, err := s.Save(ctx, "cycle", tr)
	require.NoError(t, err)
	require.NoError(t, tr.RefineGlobal(1))
	b, err := s.Save(ctx, "cycle", tr)
	require.NoError(t, err)
	_, err = s.Save(ctx, "other", tr)
	require.NoError(t, err)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	cycle, err := s.List(ctx, "cycle")
	require.NoError(t, err)
	require.Len(t, cycle, 2)
	assert.Equal(t, a.ID, cycle[0].ID)
	assert.Equal(t, b.ID, cycle[1].ID)
	assert.Less(t, cycle[0].NActiveCells, cycle[1].NActiveCells)

	require.NoError(t, s.Delete(ctx, a.ID))
	_, err = s.Get(ctx, a.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, a.ID), ErrNotFound)

	var orphans int
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM snapshot_boundary_ids WHERE snapshot_id = ?`, a.ID).Scan(&orphans))
	assert.Zero(t, orphans)

	cycle, err = s.List(ctx, "cycle")
	require.NoError(t, err)
	assert.Len(t, cycle, 1)
}

func TestMigrations(t *testing.T) {
	s := openStore(t)
	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	require.NoError(t, s.MigrateTo(1))
	version, _, err = s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	require.NoError(t, s.MigrateUp())
	require.NoError(t, s.MigrateUp())
	version, _, err = s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	tr := refinedSquare(t)
	info, err := s.Save(ctx, "mem", tr)
	require.NoError(t, err)
	got, err := s.Get(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, info, got)
}
