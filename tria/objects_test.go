package tria

import (
	"testing"

	"github.com/notargets/DGMesh/utils"
	"github.com/stretchr/testify/assert"
)

func TestTriaObjectsFreeList(t *testing.T) {
	o := newTriaObjects(1)
	assert.Equal(t, 0, o.allocate(4))
	o.Tags[2] = 7
	o.release(0, 4)
	assert.Equal(t, 4, o.freeSlots())

	// Exact blocks first, otherwise the smallest larger one is split
	assert.Equal(t, 0, o.allocate(1))
	assert.Equal(t, 1, o.allocate(2))
	assert.Equal(t, 3, o.allocate(1))
	assert.Equal(t, 0, o.freeSlots())
	assert.Equal(t, 4, o.allocate(1))
	assert.Equal(t, 5, o.Len())

	assert.Equal(t, uint32(0), o.Tags[2])
	assert.Equal(t, utils.FlatManifoldID, o.Manifolds[2])
	assert.Equal(t, []int{-1, -1}, o.vertices(2))
	assert.False(t, o.hasChildren(2))
}

func TestTriaObjectsRebuildFreeList(t *testing.T) {
	o := newTriaObjects(2)
	o.allocate(6)
	o.release(1, 2)
	o.release(4, 1)
	o.release(5, 1)
	o.rebuildFreeList()
	assert.Equal(t, map[int][]int{2: {1, 4}}, o.free)
	assert.Len(t, o.faces(0), 4)

	c := o.clone()
	c.allocate(2)
	assert.Equal(t, 4, o.freeSlots(), "clones do not share free lists")
	assert.Equal(t, 2, c.freeSlots())
}

func TestTriaLevelAllocate(t *testing.T) {
	l := newTriaLevel(2)
	start := l.allocate(4)
	assert.Equal(t, 0, start)
	assert.Len(t, l.RefineFlags, 4)
	assert.Equal(t, utils.InvalidSubdomainID, l.LevelSubdomains[3])
	l.RefineFlags[1] = true
	l.release(0, 4)
	assert.Equal(t, 0, l.nUsed())
	assert.False(t, l.RefineFlags[1])
	assert.Equal(t, 0, l.allocate(4))
	assert.Equal(t, 4, l.nUsed())
}
