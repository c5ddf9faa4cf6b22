package tria

import (
	"encoding/gob"
	"fmt"
	"io"
	"slices"

	"github.com/klauspost/compress/gzip"
	"github.com/notargets/DGMesh/utils"
	"gonum.org/v1/gonum/spatial/r3"
)

const archiveVersion = 1

// archive is the persisted form of a Triangulation. Derived maps, signals
// and manifolds are not part of it.
type archive struct {
	Version                int
	Dim, SpaceDim          int
	Smoothing              MeshSmoothing
	CheckForDistortedCells bool
	Anisotropic            bool

	Vertices   []r3.Vec
	VertexUsed []bool
	Levels     []*TriaLevel
	Objects    []*TriaObjects // structural dimensions 1..dim-1
	Cache      NumberCache

	VertexBoundary map[int]utils.BoundaryID
	VertexManifold map[int]utils.ManifoldID
	Periodic       []PeriodicFacePair
}

// Save writes the triangulation as a gzip-compressed gob archive
func (t *Triangulation) Save(w io.Writer) error {
	if t.Empty() {
		return ErrEmpty
	}
	a := archive{
		Version:                archiveVersion,
		Dim:                    t.dim,
		SpaceDim:               t.spacedim,
		Smoothing:              t.cfg.Smoothing,
		CheckForDistortedCells: t.cfg.CheckForDistortedCells,
		Anisotropic:            t.anisotropic,
		Vertices:               t.vertices,
		VertexUsed:             t.vertexUsed,
		Levels:                 t.levels,
		Cache:                  t.cache,
		VertexBoundary:         t.vertexBoundary,
		VertexManifold:         t.vertexManifold,
		Periodic:               t.periodic,
	}
	for k := 1; k < t.dim; k++ {
		a.Objects = append(a.Objects, t.objects[k])
	}
	zw := gzip.NewWriter(w)
	if err := gob.NewEncoder(zw).Encode(&a); err != nil {
		return fmt.Errorf("encode triangulation: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress triangulation: %w", err)
	}
	return nil
}

// Load replaces the contents with an archive written by Save. Smoothing
// and the distortion setting are taken from the archive; manifolds and
// signal connections are kept. The archive dimensions must match. Load
// fires Clear and then Create, and refuses while subscriptions are held.
func (t *Triangulation) Load(r io.Reader) error {
	if len(t.subscriptions) > 0 {
		return fmt.Errorf("%w: load refused", ErrSubscribed)
	}
	zr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()
	var a archive
	if err := gob.NewDecoder(zr).Decode(&a); err != nil {
		return fmt.Errorf("decode archive: %w", err)
	}
	if a.Version != archiveVersion {
		return fmt.Errorf("%w: archive version %d, want %d", ErrInvalidTopology, a.Version, archiveVersion)
	}
	if a.Dim != t.dim || a.SpaceDim != t.spacedim {
		return fmt.Errorf("%w: archive is %dD in %dD, triangulation %dD in %dD",
			ErrSizeMismatch, a.Dim, a.SpaceDim, t.dim, t.spacedim)
	}
	if err := a.Smoothing.Validate(); err != nil {
		return err
	}

	scratch := &Triangulation{dim: t.dim, spacedim: t.spacedim, ref: t.ref}
	scratch.resetStorage()
	if err := scratch.install(&a); err != nil {
		return err
	}

	fire(&t.Signals.Clear)
	t.cfg.Smoothing = a.Smoothing
	t.cfg.CheckForDistortedCells = a.CheckForDistortedCells
	t.adoptStorage(scratch)
	utils.Diagf("loaded %dD triangulation: %d levels, %d active cells", t.dim, t.cache.NLevels, t.cache.NActiveCells)
	fire(&t.Signals.Create)
	fire(&t.Signals.AnyChange)
	return nil
}

// install validates archived storage and rebuilds the derived maps
func (t *Triangulation) install(a *archive) error {
	if len(a.Levels) == 0 {
		return fmt.Errorf("%w: archive has no levels", ErrInvalidTopology)
	}
	if len(a.VertexUsed) != len(a.Vertices) {
		return fmt.Errorf("%w: %d vertices, %d used flags", ErrSizeMismatch, len(a.Vertices), len(a.VertexUsed))
	}
	if len(a.Objects) != t.dim-1 {
		return fmt.Errorf("%w: %d object stores for a %dD mesh", ErrSizeMismatch, len(a.Objects), t.dim)
	}
	for j, store := range a.Objects {
		if store == nil || store.StructDim != j+1 {
			return fmt.Errorf("%w: object store of dimension %d missing", ErrInvalidTopology, j+1)
		}
	}
	for l, lvl := range a.Levels {
		if lvl == nil || lvl.Cells == nil || lvl.Cells.StructDim != t.dim {
			return fmt.Errorf("%w: level %d has no cells", ErrInvalidTopology, l)
		}
	}
	objLen := func(k int) int {
		if k < 1 {
			return 0
		}
		return a.Objects[k-1].Len()
	}
	for j, store := range a.Objects {
		k := j + 1
		b := storeBounds{vertices: len(a.Vertices), faces: objLen(k - 1), parents: store.Len(), children: store.Len()}
		if err := checkStore(store, k, b); err != nil {
			return err
		}
		t.objects[k] = store
	}
	for l, lvl := range a.Levels {
		b := storeBounds{vertices: len(a.Vertices), faces: objLen(t.dim - 1)}
		if l > 0 {
			b.parents = a.Levels[l-1].Cells.Len()
		}
		if l+1 < len(a.Levels) {
			b.children = a.Levels[l+1].Cells.Len()
		}
		if err := checkStore(lvl.Cells, t.dim, b); err != nil {
			return fmt.Errorf("level %d: %w", l, err)
		}
		n := lvl.Cells.Len()
		if len(lvl.RefineFlags) != n || len(lvl.CoarsenFlags) != n || len(lvl.Subdomains) != n || len(lvl.LevelSubdomains) != n {
			return fmt.Errorf("%w: level %d cell arrays", ErrSizeMismatch, l)
		}
	}
	t.levels = a.Levels
	t.vertices = a.Vertices
	t.vertexUsed = a.VertexUsed
	t.anisotropic = a.Anisotropic
	if a.VertexBoundary != nil {
		t.vertexBoundary = a.VertexBoundary
	}
	if a.VertexManifold != nil {
		t.vertexManifold = a.VertexManifold
	}

	for k := 1; k < t.dim; k++ {
		store := t.objects[k]
		store.rebuildFreeList()
		for i, used := range store.Used {
			if used {
				t.keys[k][utils.NewVertexKey(store.vertices(i)...)] = i
			}
		}
	}
	for l, lvl := range t.levels {
		lvl.Cells.rebuildFreeList()
		for i, used := range lvl.Cells.Used {
			if !used {
				continue
			}
			if err := t.attachCell(CellID{l, i}); err != nil {
				return err
			}
		}
	}
	t.rebuildFreeVertices()
	for i, p := range a.Periodic {
		if err := t.checkPeriodicPair(p); err != nil {
			return fmt.Errorf("periodic pair %d: %w", i, err)
		}
		t.linkPeriodic(p)
	}
	t.periodic = a.Periodic

	t.updateNumberCache()
	if !t.cache.equal(a.Cache) {
		return fmt.Errorf("%w: stored counts do not match the stored mesh", ErrInvalidTopology)
	}
	return nil
}

// storeBounds are the array lengths the links of an object store point
// into. Parents and children of cells live on the neighboring levels, those
// of lines and faces in their own store.
type storeBounds struct {
	vertices, faces, parents, children int
}

func checkStore(store *TriaObjects, k int, b storeBounds) error {
	if store == nil || store.StructDim != k {
		return fmt.Errorf("%w: object store of dimension %d missing", ErrInvalidTopology, k)
	}
	n := store.Len()
	if len(store.Vertices) != n*store.nVerts() || len(store.Faces) != n*store.nFaces() ||
		len(store.Parents) != n || len(store.Children) != n || len(store.Centers) != n ||
		len(store.UserFlags) != n || len(store.UserIndex) != n || len(store.Tags) != n || len(store.Manifolds) != n {
		return fmt.Errorf("%w: object store of dimension %d", ErrSizeMismatch, k)
	}
	nc := 1 << k
	for i, used := range store.Used {
		if !used {
			continue
		}
		for _, v := range store.vertices(i) {
			if v < 0 || v >= b.vertices {
				return fmt.Errorf("%w: object %d of dimension %d references vertex %d", ErrInvalidTopology, i, k, v)
			}
		}
		for _, f := range store.faces(i) {
			if f < 0 || f >= b.faces {
				return fmt.Errorf("%w: object %d of dimension %d references face %d", ErrInvalidTopology, i, k, f)
			}
		}
		if p := store.Parents[i]; p < -1 || p >= b.parents {
			return fmt.Errorf("%w: object %d of dimension %d has parent %d", ErrInvalidTopology, i, k, p)
		}
		if c := store.Children[i]; c < -1 || (c >= 0 && c+nc > b.children) {
			return fmt.Errorf("%w: object %d of dimension %d has children from %d", ErrInvalidTopology, i, k, c)
		}
		if c := store.Centers[i]; c < -1 || c >= b.vertices {
			return fmt.Errorf("%w: object %d of dimension %d has center vertex %d", ErrInvalidTopology, i, k, c)
		}
	}
	return nil
}

func (c NumberCache) equal(o NumberCache) bool {
	return c.NLevels == o.NLevels && c.NUsedVertices == o.NUsedVertices &&
		c.NCells == o.NCells && c.NActiveCells == o.NActiveCells &&
		c.Objects == o.Objects && slices.Equal(c.Levels, o.Levels)
}

// adoptStorage moves the mesh of src into t
func (t *Triangulation) adoptStorage(src *Triangulation) {
	t.levels = src.levels
	t.objects = src.objects
	t.vertices = src.vertices
	t.vertexUsed = src.vertexUsed
	t.freeVertices = src.freeVertices
	t.vertexBoundary = src.vertexBoundary
	t.vertexManifold = src.vertexManifold
	t.keys = src.keys
	t.adjacency = src.adjacency
	t.periodic = src.periodic
	t.periodicMap = src.periodicMap
	t.cache = src.cache
	t.anisotropic = src.anisotropic
}
