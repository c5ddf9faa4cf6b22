package tria

import (
	"fmt"

	"github.com/notargets/DGMesh/element"
	"github.com/notargets/DGMesh/utils"
)

func pick(verts, local []int) []int {
	out := make([]int, len(local))
	for i, l := range local {
		out[i] = verts[l]
	}
	return out
}

// lookup finds the level-free object of dimension m with the given vertex set
func (t *Triangulation) lookup(m int, verts []int) (int, bool) {
	idx, ok := t.keys[m][utils.NewVertexKey(verts...)]
	return idx, ok
}

func (t *Triangulation) mustLookup(m int, verts []int) int {
	idx, ok := t.lookup(m, verts)
	if !ok {
		panic(fmt.Sprintf("tria: no %d-dimensional object with vertices %v", m, verts))
	}
	return idx
}

// subObjects returns the indices of all m-dimensional sub-objects of a
// k-dimensional object with vertex list verts, m < dim
func (t *Triangulation) subObjects(verts []int, k, m int) []int {
	locals := element.MustHypercube(k).SubObjects(m)
	out := make([]int, len(locals))
	for i, l := range locals {
		out[i] = t.mustLookup(m, pick(verts, l))
	}
	return out
}

// cellSubObjects returns, for m = 1..dim-1, the sub-objects of a cell
func (t *Triangulation) cellSubObjects(id CellID) [3][]int {
	var out [3][]int
	store := t.cells(id.Level)
	verts := store.vertices(id.Index)
	for m := 1; m < t.dim; m++ {
		if m == t.dim-1 {
			out[m] = append([]int(nil), store.faces(id.Index)...)
		} else {
			out[m] = t.subObjects(verts, t.dim, m)
		}
	}
	return out
}

// objectSubObjects returns, for m = 1..k-1, the sub-objects of a level-free
// object of dimension k
func (t *Triangulation) objectSubObjects(k, idx int) [3][]int {
	var out [3][]int
	verts := t.objects[k].vertices(idx)
	for m := 1; m < k; m++ {
		out[m] = t.subObjects(verts, k, m)
	}
	return out
}

// initObject fills the vertices and faces of slot idx in store and, for
// level-free objects, registers its key
func (t *Triangulation) initObject(store *TriaObjects, idx int, verts []int) {
	k := store.StructDim
	copy(store.vertices(idx), verts)
	if k >= 2 {
		h := element.MustHypercube(k)
		faces := store.faces(idx)
		for f := range faces {
			faces[f] = t.mustLookup(k-1, pick(verts, h.FaceVertices(f)))
		}
	}
	if k < t.dim {
		t.keys[k][utils.NewVertexKey(verts...)] = idx
	}
}

// dropObjectKey removes the key of a level-free object before release
func (t *Triangulation) dropObjectKey(k, idx int) {
	delete(t.keys[k], utils.NewVertexKey(t.objects[k].vertices(idx)...))
}

// faceOf returns the face object of local face f, or its vertex in 1D
func (t *Triangulation) faceOf(id CellID, f int) int {
	store := t.cells(id.Level)
	if t.dim == 1 {
		return store.vertices(id.Index)[f]
	}
	return store.faces(id.Index)[f]
}

func (t *Triangulation) attachCell(id CellID) error {
	for f := 0; f < t.ref.NFaces(); f++ {
		key := faceKey{id.Level, t.faceOf(id, f)}
		pair, ok := t.adjacency[key]
		if !ok {
			pair = [2]int{-1, -1}
		}
		switch {
		case pair[0] < 0:
			pair[0] = id.Index
		case pair[1] < 0:
			pair[1] = id.Index
		default:
			return fmt.Errorf("%w: face %d on level %d shared by more than two cells", ErrInvalidTopology, key.face, key.level)
		}
		t.adjacency[key] = pair
	}
	return nil
}

func (t *Triangulation) detachCell(id CellID) {
	for f := 0; f < t.ref.NFaces(); f++ {
		key := faceKey{id.Level, t.faceOf(id, f)}
		pair, ok := t.adjacency[key]
		if !ok {
			continue
		}
		for i := range pair {
			if pair[i] == id.Index {
				pair[i] = -1
			}
		}
		if pair[0] < 0 && pair[1] < 0 {
			delete(t.adjacency, key)
		} else {
			t.adjacency[key] = pair
		}
	}
}

// sameLevelNeighbor returns the other cell on the level sharing face f
func (t *Triangulation) sameLevelNeighbor(id CellID, f int) (CellID, bool) {
	pair, ok := t.adjacency[faceKey{id.Level, t.faceOf(id, f)}]
	if !ok {
		return NoCell, false
	}
	for _, c := range pair {
		if c >= 0 && c != id.Index {
			return CellID{id.Level, c}, true
		}
	}
	return NoCell, false
}

// faceAtBoundary reports whether local face f of a cell lies on the
// domain boundary
func (t *Triangulation) faceAtBoundary(id CellID, f int) bool {
	face := t.faceOf(id, f)
	if t.dim == 1 {
		_, ok := t.vertexBoundary[face]
		return ok
	}
	return utils.BoundaryID(t.objects[t.dim-1].Tags[face]) != utils.InternalFaceBoundaryID
}

// neighbor returns the cell across face f: on the same level when one
// exists, otherwise the coarser cell covering the face
func (t *Triangulation) neighbor(id CellID, f int) (CellID, bool) {
	if n, ok := t.sameLevelNeighbor(id, f); ok {
		return n, true
	}
	if t.faceAtBoundary(id, f) || id.Level == 0 {
		return NoCell, false
	}
	parent := CellID{id.Level - 1, t.cells(id.Level).Parents[id.Index]}
	if !t.ref.ChildOnFace(t.childIndex(id), f) {
		return NoCell, false
	}
	return t.neighbor(parent, f)
}

// childIndex returns the position of a cell among its siblings
func (t *Triangulation) childIndex(id CellID) int {
	store := t.cells(id.Level)
	p := store.Parents[id.Index]
	if p < 0 {
		return -1
	}
	return id.Index - t.cells(id.Level-1).Children[p]
}

func (t *Triangulation) cellActive(id CellID) bool {
	return !t.cells(id.Level).hasChildren(id.Index)
}

func (t *Triangulation) cellChild(id CellID, c int) CellID {
	return CellID{id.Level + 1, t.cells(id.Level).child(id.Index, c)}
}

func (t *Triangulation) cellParent(id CellID) (CellID, bool) {
	if id.Level == 0 {
		return NoCell, false
	}
	return CellID{id.Level - 1, t.cells(id.Level).Parents[id.Index]}, true
}
