package tria

import (
	"fmt"

	"github.com/notargets/DGMesh/element"
	"github.com/notargets/DGMesh/manifold"
	"github.com/notargets/DGMesh/utils"
	"gonum.org/v1/gonum/spatial/r3"
)

// Cell is a read-only view of one cell. It stays valid until the cell is
// removed by coarsening or the triangulation is cleared.
type Cell struct {
	t  *Triangulation
	id CellID
}

// Cell returns a view of a used cell. It panics for ids that do not name a
// used cell.
func (t *Triangulation) Cell(id CellID) Cell {
	t.checkCell(id)
	return Cell{t: t, id: id}
}

func (c Cell) store() *TriaObjects { return c.t.cells(c.id.Level) }
func (c Cell) lvl() *TriaLevel     { return c.t.level(c.id.Level) }

func (c Cell) ID() CellID { return c.id }
func (c Cell) Level() int { return c.id.Level }
func (c Cell) Index() int { return c.id.Index }

// Triangulation returns the mesh the cell belongs to
func (c Cell) Triangulation() *Triangulation { return c.t }

func (c Cell) Active() bool      { return c.t.cellActive(c.id) }
func (c Cell) HasChildren() bool { return !c.Active() }
func (c Cell) NChildren() int {
	if c.Active() {
		return 0
	}
	return c.t.ref.NChildren()
}

// Child returns child i; children are numbered like the corners they contain
func (c Cell) Child(i int) CellID {
	if c.Active() || i < 0 || i >= c.t.ref.NChildren() {
		panic(fmt.Sprintf("tria: cell %v has no child %d", c.id, i))
	}
	return c.t.cellChild(c.id, i)
}

func (c Cell) Children() []CellID {
	out := make([]CellID, c.NChildren())
	for i := range out {
		out[i] = c.t.cellChild(c.id, i)
	}
	return out
}

func (c Cell) Parent() (CellID, bool) { return c.t.cellParent(c.id) }

// ChildIndex returns the position of the cell among its siblings, -1 on
// level 0
func (c Cell) ChildIndex() int { return c.t.childIndex(c.id) }

func (c Cell) NVertices() int { return c.t.ref.NVertices() }

// VertexIndex returns the global index of local vertex i
func (c Cell) VertexIndex(i int) int { return c.store().vertices(c.id.Index)[i] }

func (c Cell) VertexIndices() []int {
	return append([]int(nil), c.store().vertices(c.id.Index)...)
}

func (c Cell) Vertex(i int) r3.Vec { return c.t.vertices[c.VertexIndex(i)] }

func (c Cell) Vertices() []r3.Vec {
	verts := c.store().vertices(c.id.Index)
	out := make([]r3.Vec, len(verts))
	for i, v := range verts {
		out[i] = c.t.vertices[v]
	}
	return out
}

// Center returns the vertex average
func (c Cell) Center() r3.Vec { return element.Barycenter(c.Vertices()) }

// Measure returns the length, area or volume of the multilinear cell
func (c Cell) Measure() float64 { return c.t.ref.Measure(c.Vertices(), c.t.spacedim) }

func (c Cell) Diameter() float64 { return element.Diameter(c.Vertices()) }

func (c Cell) NFaces() int { return c.t.ref.NFaces() }

// Face returns local face f. Faces are vertices in 1D; use FaceVertexIndex
// there.
func (c Cell) Face(f int) Object {
	if c.t.dim == 1 {
		panic("tria: faces of 1D cells are vertices")
	}
	return Object{t: c.t, id: ObjectID{c.t.dim - 1, c.t.faceOf(c.id, f)}}
}

// FaceIndex returns the face object of local face f, or its vertex in 1D
func (c Cell) FaceIndex(f int) int { return c.t.faceOf(c.id, f) }

// Line returns local line i, in element.Hypercube.Edges order. 1D cells
// are lines themselves and have none.
func (c Cell) Line(i int) Object {
	if c.t.dim == 1 {
		panic("tria: 1D cells have no line objects")
	}
	e := c.t.ref.Edges()[i]
	verts := c.store().vertices(c.id.Index)
	return Object{t: c.t, id: ObjectID{1, c.t.mustLookup(1, []int{verts[e[0]], verts[e[1]]})}}
}

// Neighbor returns the cell across face f: the same-level cell if it
// exists, otherwise the coarser active cell. Boundary faces have none.
func (c Cell) Neighbor(f int) (CellID, bool) { return c.t.neighbor(c.id, f) }

// NeighborIsCoarser reports whether the neighbor across f is on a coarser
// level
func (c Cell) NeighborIsCoarser(f int) bool {
	n, ok := c.Neighbor(f)
	return ok && n.Level < c.id.Level
}

// NeighborOfNeighbor returns the local face of the same-level neighbor
// across f that points back at this cell
func (c Cell) NeighborOfNeighbor(f int) (int, bool) {
	n, ok := c.t.sameLevelNeighbor(c.id, f)
	if !ok {
		return -1, false
	}
	face := c.t.faceOf(c.id, f)
	for g := 0; g < c.t.ref.NFaces(); g++ {
		if c.t.faceOf(n, g) == face {
			return g, true
		}
	}
	return -1, false
}

func (c Cell) AtBoundary(f int) bool { return c.t.faceAtBoundary(c.id, f) }

// AnyFaceAtBoundary reports whether some face lies on the boundary
func (c Cell) AnyFaceAtBoundary() bool {
	for f := 0; f < c.NFaces(); f++ {
		if c.AtBoundary(f) {
			return true
		}
	}
	return false
}

// FaceBoundaryID returns the boundary id of face f
func (c Cell) FaceBoundaryID(f int) utils.BoundaryID {
	face := c.t.faceOf(c.id, f)
	if c.t.dim == 1 {
		if b, ok := c.t.vertexBoundary[face]; ok {
			return b
		}
		return utils.InternalFaceBoundaryID
	}
	return utils.BoundaryID(c.t.objects[c.t.dim-1].Tags[face])
}

func (c Cell) MaterialID() utils.MaterialID { return utils.MaterialID(c.store().Tags[c.id.Index]) }
func (c Cell) ManifoldID() utils.ManifoldID { return c.store().Manifolds[c.id.Index] }

// Manifold returns the geometry used for points inside the cell
func (c Cell) Manifold() manifold.Manifold { return c.t.Manifold(c.ManifoldID()) }

func (c Cell) SubdomainID() utils.SubdomainID      { return c.lvl().Subdomains[c.id.Index] }
func (c Cell) LevelSubdomainID() utils.SubdomainID { return c.lvl().LevelSubdomains[c.id.Index] }
func (c Cell) RefineFlagSet() bool                 { return c.lvl().RefineFlags[c.id.Index] }
func (c Cell) CoarsenFlagSet() bool                { return c.lvl().CoarsenFlags[c.id.Index] }
func (c Cell) UserFlagSet() bool                   { return c.store().UserFlags[c.id.Index] }
func (c Cell) UserIndex() uint                     { return c.store().UserIndex[c.id.Index] }

// Status reports what the next refinement will do to the cell
func (c Cell) Status() CellStatus {
	switch {
	case !c.Active():
		return CellInvalid
	case c.RefineFlagSet():
		return CellRefine
	case c.CoarsenFlagSet():
		return CellCoarsen
	}
	return CellPersist
}

// CellEditor is the mutable view of a cell.
type CellEditor struct {
	Cell
}

// EditCell returns a mutable view of a used cell
func (t *Triangulation) EditCell(id CellID) CellEditor {
	return CellEditor{Cell: t.Cell(id)}
}

// SetRefineFlag marks an active cell for refinement
func (c CellEditor) SetRefineFlag() error {
	if !c.Active() {
		return fmt.Errorf("%w: cannot flag %v for refinement", ErrNotActive, c.id)
	}
	c.lvl().RefineFlags[c.id.Index] = true
	return nil
}

func (c CellEditor) ClearRefineFlag() { c.lvl().RefineFlags[c.id.Index] = false }

// SetCoarsenFlag marks an active cell for coarsening. Coarsening happens
// only when all siblings are flagged.
func (c CellEditor) SetCoarsenFlag() error {
	if !c.Active() {
		return fmt.Errorf("%w: cannot flag %v for coarsening", ErrNotActive, c.id)
	}
	c.lvl().CoarsenFlags[c.id.Index] = true
	return nil
}

func (c CellEditor) ClearCoarsenFlag() { c.lvl().CoarsenFlags[c.id.Index] = false }

func (c CellEditor) SetMaterialID(id utils.MaterialID) { c.store().Tags[c.id.Index] = uint32(id) }
func (c CellEditor) SetManifoldID(id utils.ManifoldID) { c.store().Manifolds[c.id.Index] = id }

// SetAllManifoldIDs sets the manifold id of the cell and of all its faces
// and lines
func (c CellEditor) SetAllManifoldIDs(id utils.ManifoldID) {
	c.SetManifoldID(id)
	subs := c.t.cellSubObjects(c.id)
	for m := 1; m < c.t.dim; m++ {
		for _, idx := range subs[m] {
			c.t.objects[m].Manifolds[idx] = id
		}
	}
}

func (c CellEditor) SetSubdomainID(id utils.SubdomainID)      { c.lvl().Subdomains[c.id.Index] = id }
func (c CellEditor) SetLevelSubdomainID(id utils.SubdomainID) { c.lvl().LevelSubdomains[c.id.Index] = id }
func (c CellEditor) SetUserFlag()                             { c.store().UserFlags[c.id.Index] = true }
func (c CellEditor) ClearUserFlag()                           { c.store().UserFlags[c.id.Index] = false }
func (c CellEditor) SetUserIndex(i uint)                      { c.store().UserIndex[c.id.Index] = i }

// SetFaceBoundaryID tags boundary face f. Interior faces cannot carry a
// boundary id.
func (c CellEditor) SetFaceBoundaryID(f int, id utils.BoundaryID) error {
	if !c.AtBoundary(f) {
		return fmt.Errorf("%w: face %d of %v is interior", ErrInvalidID, f, c.id)
	}
	if id == utils.InternalFaceBoundaryID {
		return fmt.Errorf("%w: the interior boundary id is reserved", ErrInvalidID)
	}
	face := c.t.faceOf(c.id, f)
	if c.t.dim == 1 {
		c.t.vertexBoundary[face] = id
		return nil
	}
	c.t.objects[c.t.dim-1].Tags[face] = uint32(id)
	return nil
}

// Object is a read-only view of a face or line.
type Object struct {
	t  *Triangulation
	id ObjectID
}

// Object returns a view of a used level-free object
func (t *Triangulation) Object(id ObjectID) Object {
	if id.StructDim < 1 || id.StructDim >= t.dim || id.Index < 0 ||
		id.Index >= t.objects[id.StructDim].Len() || !t.objects[id.StructDim].Used[id.Index] {
		panic(fmt.Sprintf("tria: object %+v does not exist", id))
	}
	return Object{t: t, id: id}
}

func (o Object) store() *TriaObjects { return o.t.objects[o.id.StructDim] }

func (o Object) ID() ObjectID      { return o.id }
func (o Object) StructDim() int    { return o.id.StructDim }
func (o Object) Index() int        { return o.id.Index }
func (o Object) Active() bool      { return !o.store().hasChildren(o.id.Index) }
func (o Object) HasChildren() bool { return !o.Active() }

func (o Object) NChildren() int {
	if o.Active() {
		return 0
	}
	return 1 << o.id.StructDim
}

func (o Object) Child(i int) Object {
	if o.Active() || i < 0 || i >= 1<<o.id.StructDim {
		panic(fmt.Sprintf("tria: object %+v has no child %d", o.id, i))
	}
	return Object{t: o.t, id: ObjectID{o.id.StructDim, o.store().child(o.id.Index, i)}}
}

func (o Object) Parent() (Object, bool) {
	p := o.store().Parents[o.id.Index]
	if p < 0 {
		return Object{}, false
	}
	return Object{t: o.t, id: ObjectID{o.id.StructDim, p}}, true
}

func (o Object) NVertices() int        { return 1 << o.id.StructDim }
func (o Object) VertexIndex(i int) int { return o.store().vertices(o.id.Index)[i] }
func (o Object) Vertex(i int) r3.Vec   { return o.t.vertices[o.VertexIndex(i)] }

func (o Object) Vertices() []r3.Vec {
	verts := o.store().vertices(o.id.Index)
	out := make([]r3.Vec, len(verts))
	for i, v := range verts {
		out[i] = o.t.vertices[v]
	}
	return out
}

// Face returns face f of a quadrilateral: one of its lines
func (o Object) Face(f int) Object {
	if o.id.StructDim < 2 {
		panic("tria: lines have vertex faces")
	}
	return Object{t: o.t, id: ObjectID{o.id.StructDim - 1, o.store().faces(o.id.Index)[f]}}
}

func (o Object) Center() r3.Vec { return element.Barycenter(o.Vertices()) }

func (o Object) Measure() float64 {
	return element.MustHypercube(o.id.StructDim).Measure(o.Vertices(), o.t.spacedim)
}

func (o Object) BoundaryID() utils.BoundaryID { return utils.BoundaryID(o.store().Tags[o.id.Index]) }
func (o Object) AtBoundary() bool             { return o.BoundaryID() != utils.InternalFaceBoundaryID }
func (o Object) ManifoldID() utils.ManifoldID { return o.store().Manifolds[o.id.Index] }
func (o Object) UserFlagSet() bool            { return o.store().UserFlags[o.id.Index] }
func (o Object) UserIndex() uint              { return o.store().UserIndex[o.id.Index] }

// ObjectEditor is the mutable view of a face or line.
type ObjectEditor struct {
	Object
}

// EditObject returns a mutable view of a used level-free object
func (t *Triangulation) EditObject(id ObjectID) ObjectEditor {
	return ObjectEditor{Object: t.Object(id)}
}

// SetBoundaryID tags a boundary object. Interior objects cannot carry a
// boundary id.
func (o ObjectEditor) SetBoundaryID(id utils.BoundaryID) error {
	if !o.AtBoundary() {
		return fmt.Errorf("%w: object %+v is interior", ErrInvalidID, o.id)
	}
	if id == utils.InternalFaceBoundaryID {
		return fmt.Errorf("%w: the interior boundary id is reserved", ErrInvalidID)
	}
	o.store().Tags[o.id.Index] = uint32(id)
	return nil
}

// SetAllBoundaryIDs tags the object and its lines
func (o ObjectEditor) SetAllBoundaryIDs(id utils.BoundaryID) error {
	if err := o.SetBoundaryID(id); err != nil {
		return err
	}
	subs := o.t.objectSubObjects(o.id.StructDim, o.id.Index)
	for m := 1; m < o.id.StructDim; m++ {
		for _, idx := range subs[m] {
			o.t.objects[m].Tags[idx] = uint32(id)
		}
	}
	return nil
}

func (o ObjectEditor) SetManifoldID(id utils.ManifoldID) { o.store().Manifolds[o.id.Index] = id }

// SetAllManifoldIDs sets the manifold id of the object and its lines
func (o ObjectEditor) SetAllManifoldIDs(id utils.ManifoldID) {
	o.SetManifoldID(id)
	subs := o.t.objectSubObjects(o.id.StructDim, o.id.Index)
	for m := 1; m < o.id.StructDim; m++ {
		for _, idx := range subs[m] {
			o.t.objects[m].Manifolds[idx] = id
		}
	}
}

func (o ObjectEditor) SetUserFlag()        { o.store().UserFlags[o.id.Index] = true }
func (o ObjectEditor) ClearUserFlag()      { o.store().UserFlags[o.id.Index] = false }
func (o ObjectEditor) SetUserIndex(i uint) { o.store().UserIndex[o.id.Index] = i }
