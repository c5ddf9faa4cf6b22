package utils

import (
	"fmt"
	"strings"
)

// MaxKeyVertices is the largest vertex set a key can hold (a hexahedron).
const MaxKeyVertices = 8

// VertexKey is the canonical signature of a mesh object: its vertex indices
// sorted ascending and padded with -1. Two objects with the same vertex set
// have the same key whatever their local orientation.
type VertexKey [MaxKeyVertices]int

// NewVertexKey builds the canonical key of a vertex set.
func NewVertexKey(vertices ...int) VertexKey {
	if len(vertices) > MaxKeyVertices {
		panic(fmt.Sprintf("vertex key holds at most %d vertices, got %d", MaxKeyVertices, len(vertices)))
	}
	var k VertexKey
	for i := range k {
		k[i] = -1
	}
	n := copy(k[:], vertices)
	// Insertion sort, n is at most 8
	for i := 1; i < n; i++ {
		for j := i; j > 0 && k[j-1] > k[j]; j-- {
			k[j-1], k[j] = k[j], k[j-1]
		}
	}
	return k
}

// Len returns the number of vertices in the key.
func (k VertexKey) Len() int {
	n := 0
	for n < MaxKeyVertices && k[n] >= 0 {
		n++
	}
	return n
}

// Vertices returns the sorted vertex indices.
func (k VertexKey) Vertices() []int {
	return append([]int(nil), k[:k.Len()]...)
}

// HasDuplicates reports whether a vertex appears more than once.
func (k VertexKey) HasDuplicates() bool {
	n := k.Len()
	for i := 1; i < n; i++ {
		if k[i] == k[i-1] {
			return true
		}
	}
	return false
}

func (k VertexKey) String() string {
	parts := make([]string, 0, MaxKeyVertices)
	for _, v := range k[:k.Len()] {
		parts = append(parts, fmt.Sprintf("%d", v))
	}
	return strings.Join(parts, "-")
}
