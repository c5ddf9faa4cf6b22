package tria

import (
	"fmt"

	"github.com/notargets/DGMesh/element"
	"github.com/notargets/DGMesh/manifold"
	"github.com/notargets/DGMesh/utils"
	"gonum.org/v1/gonum/spatial/r3"
)

// A refined k-dimensional object is addressed through the lattice
// {0,1,2}^k. Coordinate 0 and 2 are the object's own corners, coordinate 1
// the midplane. The axes at 1 select a sub-object whose center vertex sits
// at that lattice point.
type latticePoint [3]int

func latticePoints(k int) []latticePoint {
	n := 1
	for i := 0; i < k; i++ {
		n *= 3
	}
	out := make([]latticePoint, n)
	for i := range out {
		r := i
		for a := 0; a < k; a++ {
			out[i][a] = r % 3
			r /= 3
		}
	}
	return out
}

func (p latticePoint) freeAxes(k int) []int {
	var free []int
	for a := 0; a < k; a++ {
		if p[a] == 1 {
			free = append(free, a)
		}
	}
	return free
}

// latticeVertex returns the vertex at p of the k-object with corners verts.
// center is the object's own center vertex. Centers of proper sub-objects
// are found through their keys.
func (t *Triangulation) latticeVertex(verts []int, k int, p latticePoint, center int) (int, error) {
	free := p.freeAxes(k)
	if len(free) == k {
		return center, nil
	}
	corner := func(b int) int {
		local := 0
		j := 0
		for a := 0; a < k; a++ {
			bit := p[a] / 2
			if p[a] == 1 {
				bit = b >> j & 1
				j++
			}
			local |= bit << a
		}
		return verts[local]
	}
	if len(free) == 0 {
		return corner(0), nil
	}
	sub := make([]int, 1<<len(free))
	for b := range sub {
		sub[b] = corner(b)
	}
	idx, ok := t.lookup(len(free), sub)
	if !ok || t.objects[len(free)].Centers[idx] < 0 {
		return -1, fmt.Errorf("%w: sub-object %v is not refined", ErrInvalidTopology, sub)
	}
	return t.objects[len(free)].Centers[idx], nil
}

// childVertices returns the corners of child c of a refined k-object
func (t *Triangulation) childVertices(verts []int, k, c, center int) ([]int, error) {
	out := make([]int, 1<<k)
	for b := range out {
		var p latticePoint
		for a := 0; a < k; a++ {
			p[a] = c>>a&1 + b>>a&1
		}
		v, err := t.latticeVertex(verts, k, p, center)
		if err != nil {
			return nil, err
		}
		out[b] = v
	}
	return out, nil
}

// interiorObjects returns the corners of the m-dimensional objects created
// inside a refined k-object, 1 <= m < k. They are grouped by free axes in
// increasing bitmask order, then by offset.
func (t *Triangulation) interiorObjects(verts []int, k, m, center int) ([][]int, error) {
	var out [][]int
	for mask := 0; mask < 1<<k; mask++ {
		var free []int
		for a := 0; a < k; a++ {
			if mask>>a&1 == 1 {
				free = append(free, a)
			}
		}
		if len(free) != m {
			continue
		}
		for off := 0; off < 1<<m; off++ {
			obj := make([]int, 1<<m)
			for b := range obj {
				p := latticePoint{1, 1, 1}
				for a := k; a < 3; a++ {
					p[a] = 0
				}
				for j, a := range free {
					p[a] = off>>j&1 + b>>j&1
				}
				v, err := t.latticeVertex(verts, k, p, center)
				if err != nil {
					return nil, err
				}
				obj[b] = v
			}
			out = append(out, obj)
		}
	}
	return out, nil
}

// centerStencil returns the surrounding points and weights that place the
// center of a k-object whose sub-objects are already refined
func (t *Triangulation) centerStencil(verts []int, k int) ([]r3.Vec, []float64, error) {
	pts := latticePoints(k)
	points := make([]r3.Vec, 0, len(pts)-1)
	weights := make([]float64, 0, len(pts)-1)
	for _, p := range pts {
		m := len(p.freeAxes(k))
		if m == k {
			continue
		}
		v, err := t.latticeVertex(verts, k, p, -1)
		if err != nil {
			return nil, nil, err
		}
		points = append(points, t.vertices[v])
		weights = append(weights, element.CenterWeight(k, m))
	}
	return points, weights, nil
}

// newCenter asks the manifold of an object for its center point
func (t *Triangulation) newCenter(verts []int, k int, id utils.ManifoldID) (r3.Vec, error) {
	points, weights, err := t.centerStencil(verts, k)
	if err != nil {
		return r3.Vec{}, err
	}
	p, err := t.Manifold(id).GetNewPoint(points, weights)
	if err != nil {
		return r3.Vec{}, err
	}
	if !manifold.IsFinite(p) {
		return r3.Vec{}, fmt.Errorf("manifold %d returned non-finite point %v", id, p)
	}
	return p, nil
}
