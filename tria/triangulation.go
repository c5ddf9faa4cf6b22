// Package tria implements hierarchical hypercube meshes in one, two and three
// dimensions: coarse mesh creation, isotropic refinement and coarsening with
// mesh regularization, manifold-driven vertex placement, cell/face queries
// and observer signals.
package tria

import (
	"fmt"
	"slices"

	"github.com/notargets/DGMesh/element"
	"github.com/notargets/DGMesh/manifold"
	"github.com/notargets/DGMesh/utils"
	"gonum.org/v1/gonum/spatial/r3"
)

// Config holds the settings fixed at construction.
type Config struct {
	Smoothing MeshSmoothing
	// CheckForDistortedCells makes creation and refinement report cells
	// with non-positive Jacobian determinants. Only used when the cell
	// dimension equals the space dimension.
	CheckForDistortedCells bool
	// ParallelGeometry evaluates new cell centers concurrently.
	ParallelGeometry bool
}

// faceKey identifies a face on one level: the face object index, or the
// vertex index in 1D
type faceKey struct {
	level, face int
}

// Triangulation is a hierarchical mesh of lines, quadrilaterals or
// hexahedra of dimension Dim embedded in SpaceDim dimensions.
type Triangulation struct {
	dim, spacedim int
	ref           element.Hypercube
	cfg           Config

	levels  []*TriaLevel
	objects [3]*TriaObjects // level-free sub-objects by structural dimension 1..dim-1

	vertices     []r3.Vec
	vertexUsed   []bool
	freeVertices []int

	// 1D only: tags of vertices, which are the faces
	vertexBoundary map[int]utils.BoundaryID
	vertexManifold map[int]utils.ManifoldID

	// derived, rebuilt on load
	keys      [3]map[utils.VertexKey]int
	adjacency map[faceKey][2]int

	manifolds map[utils.ManifoldID]manifold.Manifold
	flat      manifold.Flat

	periodic    []PeriodicFacePair
	periodicMap map[periodicEnd]periodicLink

	cache       NumberCache
	anisotropic bool

	// fixed-point passes of the last PrepareCoarseningAndRefinement,
	// including the one that found no change
	smoothingPasses int

	subscriptions map[string]string

	Signals Signals
}

// New returns an empty triangulation of cells of dimension dim in spacedim
// dimensions.
func New(dim, spacedim int, cfg Config) (*Triangulation, error) {
	if dim < 1 || dim > 3 || spacedim < dim || spacedim > 3 {
		return nil, fmt.Errorf("%w: dim=%d spacedim=%d", ErrSizeMismatch, dim, spacedim)
	}
	if err := cfg.Smoothing.Validate(); err != nil {
		return nil, err
	}
	t := &Triangulation{
		dim:           dim,
		spacedim:      spacedim,
		ref:           element.MustHypercube(dim),
		cfg:           cfg,
		manifolds:     make(map[utils.ManifoldID]manifold.Manifold),
		subscriptions: make(map[string]string),
	}
	t.resetStorage()
	return t, nil
}

func (t *Triangulation) resetStorage() {
	t.levels = nil
	for k := range t.objects {
		t.objects[k] = nil
		t.keys[k] = nil
	}
	for k := 1; k < t.dim; k++ {
		t.objects[k] = newTriaObjects(k)
		t.keys[k] = make(map[utils.VertexKey]int)
	}
	t.vertices = nil
	t.vertexUsed = nil
	t.freeVertices = nil
	t.vertexBoundary = make(map[int]utils.BoundaryID)
	t.vertexManifold = make(map[int]utils.ManifoldID)
	t.adjacency = make(map[faceKey][2]int)
	t.periodic = nil
	t.periodicMap = make(map[periodicEnd]periodicLink)
	t.anisotropic = false
	t.cache = NumberCache{}
}

func (t *Triangulation) Dim() int                 { return t.dim }
func (t *Triangulation) SpaceDim() int            { return t.spacedim }
func (t *Triangulation) Smoothing() MeshSmoothing { return t.cfg.Smoothing }
func (t *Triangulation) Config() Config           { return t.cfg }

// SetMeshSmoothing replaces the smoothing flags used by later refinements
func (t *Triangulation) SetMeshSmoothing(s MeshSmoothing) error {
	if err := s.Validate(); err != nil {
		return err
	}
	t.cfg.Smoothing = s
	return nil
}

// Empty reports whether the triangulation holds no cells
func (t *Triangulation) Empty() bool { return len(t.levels) == 0 }

// AnisotropicRefinementOccurred is always false: only isotropic refinement
// is implemented. The flag is kept for archive compatibility.
func (t *Triangulation) AnisotropicRefinementOccurred() bool { return t.anisotropic }

// SetManifold attaches a manifold to an id. The triangulation keeps a
// reference; the caller owns the manifold.
func (t *Triangulation) SetManifold(id utils.ManifoldID, m manifold.Manifold) error {
	if id == utils.FlatManifoldID {
		return fmt.Errorf("%w: the flat manifold id cannot be reassigned", ErrInvalidID)
	}
	if m == nil {
		return fmt.Errorf("%w: nil manifold for id %d", ErrInvalidID, id)
	}
	t.manifolds[id] = m
	return nil
}

// ResetManifold detaches the manifold of id; objects carrying the id fall
// back to flat geometry
func (t *Triangulation) ResetManifold(id utils.ManifoldID) { delete(t.manifolds, id) }

// ResetAllManifolds detaches every manifold
func (t *Triangulation) ResetAllManifolds() {
	t.manifolds = make(map[utils.ManifoldID]manifold.Manifold)
}

// Manifold returns the manifold attached to id, or the flat manifold
func (t *Triangulation) Manifold(id utils.ManifoldID) manifold.Manifold {
	if m, ok := t.manifolds[id]; ok {
		return m
	}
	return t.flat
}

// HasManifold reports whether a manifold is attached to id
func (t *Triangulation) HasManifold(id utils.ManifoldID) bool {
	_, ok := t.manifolds[id]
	return ok
}

// Clear empties the triangulation. Attached manifolds, smoothing and
// signal connections are kept.
func (t *Triangulation) Clear() error {
	if len(t.subscriptions) > 0 {
		names := make([]string, 0, len(t.subscriptions))
		for _, n := range t.subscriptions {
			names = append(names, n)
		}
		slices.Sort(names)
		utils.Opsf("clear refused, held by %v", names)
		return fmt.Errorf("%w: %v", ErrSubscribed, names)
	}
	t.clearUnchecked()
	return nil
}

func (t *Triangulation) clearUnchecked() {
	fire(&t.Signals.Clear)
	t.resetStorage()
	fire(&t.Signals.AnyChange)
}

// Vertex returns the position of vertex i
func (t *Triangulation) Vertex(i int) r3.Vec {
	t.checkVertex(i)
	return t.vertices[i]
}

// VertexUsed reports whether vertex i belongs to a used cell
func (t *Triangulation) VertexUsed(i int) bool {
	return i >= 0 && i < len(t.vertexUsed) && t.vertexUsed[i]
}

// NVertices returns the size of the vertex array, including unused slots
func (t *Triangulation) NVertices() int { return len(t.vertices) }

func (t *Triangulation) checkVertex(i int) {
	if i < 0 || i >= len(t.vertices) {
		panic(fmt.Sprintf("tria: vertex %d out of range [0,%d)", i, len(t.vertices)))
	}
}

func (t *Triangulation) addVertex(p r3.Vec) int {
	if n := len(t.freeVertices); n > 0 {
		v := t.freeVertices[n-1]
		t.freeVertices = t.freeVertices[:n-1]
		t.vertices[v] = p
		t.vertexUsed[v] = true
		return v
	}
	t.vertices = append(t.vertices, p)
	t.vertexUsed = append(t.vertexUsed, true)
	return len(t.vertices) - 1
}

func (t *Triangulation) releaseVertex(v int) {
	t.vertexUsed[v] = false
	t.vertices[v] = r3.Vec{}
	t.freeVertices = append(t.freeVertices, v)
	delete(t.vertexBoundary, v)
	delete(t.vertexManifold, v)
}

func (t *Triangulation) rebuildFreeVertices() {
	t.freeVertices = t.freeVertices[:0]
	for v := len(t.vertexUsed) - 1; v >= 0; v-- {
		if !t.vertexUsed[v] {
			t.freeVertices = append(t.freeVertices, v)
		}
	}
}

func (t *Triangulation) level(l int) *TriaLevel { return t.levels[l] }

func (t *Triangulation) cells(l int) *TriaObjects { return t.levels[l].Cells }

func (t *Triangulation) ensureLevel(l int) {
	for len(t.levels) <= l {
		t.levels = append(t.levels, newTriaLevel(t.dim))
	}
}

func (t *Triangulation) validCell(id CellID) bool {
	return id.Level >= 0 && id.Level < len(t.levels) &&
		id.Index >= 0 && id.Index < t.cells(id.Level).Len() &&
		t.cells(id.Level).Used[id.Index]
}

func (t *Triangulation) checkCell(id CellID) {
	if !t.validCell(id) {
		panic(fmt.Sprintf("tria: cell %v does not exist", id))
	}
}

func (t *Triangulation) checkLevel(l int) error {
	if l < 0 || l >= len(t.levels) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrInvalidLevel, l, len(t.levels))
	}
	return nil
}

// String summarizes the mesh
func (t *Triangulation) String() string {
	return fmt.Sprintf("Triangulation %dD in %dD: %d levels, %d cells (%d active), %d used vertices, smoothing=%v",
		t.dim, t.spacedim, t.NLevels(), t.NCells(), t.NActiveCells(), t.NUsedVertices(), t.cfg.Smoothing)
}
