package element

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Hypercube describes the reference cell [0,1]^d with lexicographic vertex
// numbering: bit i of a vertex index is its coordinate along axis i. The same
// bit convention numbers the children of a refined object, so child c is the
// one containing corner c.
type Hypercube struct {
	dim int
}

// NewHypercube returns the reference hypercube of dimension 0 to 3
func NewHypercube(dim int) (Hypercube, error) {
	if dim < 0 || dim > 3 {
		return Hypercube{}, fmt.Errorf("hypercube dimension must be in [0,3], got %d", dim)
	}
	return Hypercube{dim: dim}, nil
}

// MustHypercube is NewHypercube for dimensions known to be valid
func MustHypercube(dim int) Hypercube {
	h, err := NewHypercube(dim)
	if err != nil {
		panic(err)
	}
	return h
}

func (h Hypercube) Dim() int       { return h.dim }
func (h Hypercube) NVertices() int { return 1 << h.dim }
func (h Hypercube) NFaces() int    { return 2 * h.dim }
func (h Hypercube) NChildren() int { return 1 << h.dim }

func (h Hypercube) NEdges() int {
	if h.dim == 0 {
		return 0
	}
	return h.dim << (h.dim - 1)
}

// GetProperties returns the metadata of this hypercube
func (h Hypercube) GetProperties() ElementProperties {
	names := [...]string{"Vertex", "Line", "Quadrilateral", "Hexahedron"}
	return ElementProperties{
		Name:       "Hypercube " + names[h.dim],
		ShortName:  ElementGeometry(h.dim).String(),
		Type:       ElementGeometry(h.dim),
		NVertices:  h.NVertices(),
		NFaces:     h.NFaces(),
		NEdges:     h.NEdges(),
		NChildren:  h.NChildren(),
		Dimensions: Dimensionality(h.dim),
	}
}

// UnitVertex returns the reference coordinates of vertex v
func (h Hypercube) UnitVertex(v int) r3.Vec {
	var p [3]float64
	for i := 0; i < h.dim; i++ {
		p[i] = float64(v >> i & 1)
	}
	return r3.Vec{X: p[0], Y: p[1], Z: p[2]}
}

// FaceAxis returns the axis a face is normal to and the side it sits on
func (h Hypercube) FaceAxis(face int) (axis, side int) {
	return face / 2, face % 2
}

// FaceVertices returns the local vertices of a face in the face's own
// lexicographic order
func (h Hypercube) FaceVertices(face int) []int {
	axis, side := h.FaceAxis(face)
	out := make([]int, 0, h.NVertices()/2)
	for v := 0; v < h.NVertices(); v++ {
		if v>>axis&1 == side {
			out = append(out, v)
		}
	}
	return out
}

// FaceChildren lists the children adjacent to a face. They are numbered like
// the corners they contain, so this coincides with FaceVertices.
func (h Hypercube) FaceChildren(face int) []int {
	return h.FaceVertices(face)
}

// ChildOnFace reports whether child c touches face
func (h Hypercube) ChildOnFace(c, face int) bool {
	axis, side := h.FaceAxis(face)
	return c>>axis&1 == side
}

// Edges returns vertex pairs of all lines, grouped by the axis they run along
func (h Hypercube) Edges() [][2]int {
	out := make([][2]int, 0, h.NEdges())
	for axis := 0; axis < h.dim; axis++ {
		for v := 0; v < h.NVertices(); v++ {
			if v>>axis&1 == 0 {
				out = append(out, [2]int{v, v | 1<<axis})
			}
		}
	}
	return out
}

// EdgeAxis returns the axis along which edge e runs
func (h Hypercube) EdgeAxis(e int) int {
	if h.dim <= 1 {
		return 0
	}
	return e / (1 << (h.dim - 1))
}

// ShapeValue evaluates the multilinear shape function of vertex v at xi
func (h Hypercube) ShapeValue(v int, xi r3.Vec) float64 {
	c := [3]float64{xi.X, xi.Y, xi.Z}
	val := 1.0
	for i := 0; i < h.dim; i++ {
		if v>>i&1 == 1 {
			val *= c[i]
		} else {
			val *= 1 - c[i]
		}
	}
	return val
}

// MapPoint evaluates the multilinear map defined by the cell corners at xi
func (h Hypercube) MapPoint(corners []r3.Vec, xi r3.Vec) r3.Vec {
	var p r3.Vec
	for v := range corners {
		p = r3.Add(p, r3.Scale(h.ShapeValue(v, xi), corners[v]))
	}
	return p
}

// CenterWeight is the transfinite interpolation weight that the center point
// of an m-dimensional sub-object carries when placing the center of a
// k-dimensional object: (-1)^(k-m+1) 2^-(k-m). Lines get 1/2 on their ends,
// quads 1/2 on edges and -1/4 on corners, hexes 1/2, -1/4 and 1/8.
func CenterWeight(k, m int) float64 {
	d := k - m
	w := math.Ldexp(1, -d)
	if d%2 == 0 {
		w = -w
	}
	return w
}

// SubObjects returns the local vertex lists of all m-dimensional
// sub-objects, each in its own lexicographic order. Sub-objects are grouped
// by their set of free axes in increasing bitmask order, so for m = 1 the
// order matches Edges.
func (h Hypercube) SubObjects(m int) [][]int {
	if m < 0 || m > h.dim {
		return nil
	}
	var out [][]int
	for mask := 0; mask < 1<<h.dim; mask++ {
		if popcount(mask) != m {
			continue
		}
		free := make([]int, 0, m)
		for i := 0; i < h.dim; i++ {
			if mask>>i&1 == 1 {
				free = append(free, i)
			}
		}
		for base := 0; base < h.NVertices(); base++ {
			if base&mask != 0 {
				continue
			}
			verts := make([]int, 1<<m)
			for b := range verts {
				v := base
				for j, axis := range free {
					v |= (b >> j & 1) << axis
				}
				verts[b] = v
			}
			out = append(out, verts)
		}
	}
	return out
}

func popcount(x int) int {
	n := 0
	for ; x != 0; x &= x - 1 {
		n++
	}
	return n
}
