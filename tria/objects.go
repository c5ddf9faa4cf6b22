package tria

import "github.com/notargets/DGMesh/utils"

// TriaObjects stores all mesh objects of one structural dimension as
// parallel arrays. Object i owns Vertices[i*nv:(i+1)*nv] and, for
// StructDim >= 2, Faces[i*nf:(i+1)*nf]. Slots are never compacted; unused
// slots are recycled through a free list keyed by block size.
type TriaObjects struct {
	StructDim int

	Vertices []int // 2^k per object, lexicographic
	Faces    []int // 2k per object for k >= 2, face 2i+s fixes axis i at s
	Parents  []int // -1 for coarse and interior objects
	Children []int // first of 2^k contiguous children, -1 when active
	Centers  []int // vertex created by refinement, -1 when active

	Used      []bool
	UserFlags []bool
	UserIndex []uint

	// Tags holds the material id of cells and the boundary id of sub-objects
	Tags      []uint32
	Manifolds []utils.ManifoldID

	free map[int][]int // block size -> block starts
}

func newTriaObjects(structDim int) *TriaObjects {
	return &TriaObjects{StructDim: structDim, free: make(map[int][]int)}
}

func (o *TriaObjects) nVerts() int { return 1 << o.StructDim }

func (o *TriaObjects) nFaces() int {
	if o.StructDim < 2 {
		return 0
	}
	return 2 * o.StructDim
}

// Len returns the number of slots, used or not
func (o *TriaObjects) Len() int { return len(o.Used) }

func (o *TriaObjects) grow(n int) int {
	start := o.Len()
	for i := 0; i < n; i++ {
		o.Vertices = append(o.Vertices, make([]int, o.nVerts())...)
		if nf := o.nFaces(); nf > 0 {
			o.Faces = append(o.Faces, make([]int, nf)...)
		}
		o.Parents = append(o.Parents, -1)
		o.Children = append(o.Children, -1)
		o.Centers = append(o.Centers, -1)
		o.Used = append(o.Used, false)
		o.UserFlags = append(o.UserFlags, false)
		o.UserIndex = append(o.UserIndex, 0)
		o.Tags = append(o.Tags, 0)
		o.Manifolds = append(o.Manifolds, utils.FlatManifoldID)
	}
	return start
}

// allocate returns the first of n contiguous slots, marked used and reset.
// A free block of exactly n slots is preferred, then the smallest larger
// block, which is split.
func (o *TriaObjects) allocate(n int) int {
	start := -1
	if blocks := o.free[n]; len(blocks) > 0 {
		start = blocks[len(blocks)-1]
		o.free[n] = blocks[:len(blocks)-1]
	} else {
		best := -1
		for size, blocks := range o.free {
			if size > n && len(blocks) > 0 && (best < 0 || size < best) {
				best = size
			}
		}
		if best > 0 {
			blocks := o.free[best]
			start = blocks[len(blocks)-1]
			o.free[best] = blocks[:len(blocks)-1]
			o.free[best-n] = append(o.free[best-n], start+n)
		} else {
			start = o.grow(n)
		}
	}
	for i := start; i < start+n; i++ {
		o.reset(i)
		o.Used[i] = true
	}
	return start
}

func (o *TriaObjects) reset(i int) {
	nv, nf := o.nVerts(), o.nFaces()
	for j := 0; j < nv; j++ {
		o.Vertices[i*nv+j] = -1
	}
	for j := 0; j < nf; j++ {
		o.Faces[i*nf+j] = -1
	}
	o.Parents[i] = -1
	o.Children[i] = -1
	o.Centers[i] = -1
	o.UserFlags[i] = false
	o.UserIndex[i] = 0
	o.Tags[i] = 0
	o.Manifolds[i] = utils.FlatManifoldID
}

// release marks n slots starting at start unused and returns them to the
// free list as one block
func (o *TriaObjects) release(start, n int) {
	for i := start; i < start+n; i++ {
		o.reset(i)
		o.Used[i] = false
	}
	o.free[n] = append(o.free[n], start)
}

// rebuildFreeList registers maximal runs of unused slots as free blocks
func (o *TriaObjects) rebuildFreeList() {
	o.free = make(map[int][]int)
	for i := 0; i < o.Len(); {
		if o.Used[i] {
			i++
			continue
		}
		j := i
		for j < o.Len() && !o.Used[j] {
			j++
		}
		o.free[j-i] = append(o.free[j-i], i)
		i = j
	}
}

// freeSlots returns the number of recyclable slots
func (o *TriaObjects) freeSlots() int {
	n := 0
	for size, blocks := range o.free {
		n += size * len(blocks)
	}
	return n
}

func (o *TriaObjects) vertices(i int) []int {
	nv := o.nVerts()
	return o.Vertices[i*nv : (i+1)*nv]
}

func (o *TriaObjects) faces(i int) []int {
	nf := o.nFaces()
	return o.Faces[i*nf : (i+1)*nf]
}

func (o *TriaObjects) hasChildren(i int) bool { return o.Children[i] >= 0 }

func (o *TriaObjects) child(i, c int) int { return o.Children[i] + c }

func (o *TriaObjects) clone() *TriaObjects {
	c := &TriaObjects{
		StructDim: o.StructDim,
		Vertices:  append([]int(nil), o.Vertices...),
		Faces:     append([]int(nil), o.Faces...),
		Parents:   append([]int(nil), o.Parents...),
		Children:  append([]int(nil), o.Children...),
		Centers:   append([]int(nil), o.Centers...),
		Used:      append([]bool(nil), o.Used...),
		UserFlags: append([]bool(nil), o.UserFlags...),
		UserIndex: append([]uint(nil), o.UserIndex...),
		Tags:      append([]uint32(nil), o.Tags...),
		Manifolds: append([]utils.ManifoldID(nil), o.Manifolds...),
		free:      make(map[int][]int, len(o.free)),
	}
	for size, blocks := range o.free {
		c.free[size] = append([]int(nil), blocks...)
	}
	return c
}
