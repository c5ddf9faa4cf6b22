package manifold

import (
	"fmt"
	"math"
	"sort"

	"github.com/notargets/DGMesh/element"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// CoarseCell is the geometry of one coarse cell handed to a
// TransfiniteInterpolation: its corners in lexicographic order, the
// manifold of each of its lines in element.Hypercube.Edges order and, for
// hexahedra, the manifold of each face in face order. A nil edge manifold
// means a straight line; a nil face manifold means the face is blended from
// its bounding lines.
type CoarseCell struct {
	Vertices      []r3.Vec
	EdgeManifolds []Manifold
	FaceManifolds []Manifold
}

// TransfiniteInterpolation blends the curved lines and faces of the coarse
// cells into a volume map (Gordon-Hall). Points inside a coarse cell are
// pulled back to reference coordinates by Newton iteration, averaged there,
// and pushed forward.
type TransfiniteInterpolation struct {
	Tolerance     float64 // relative to the cell diameter
	MaxIterations int

	ref   element.Hypercube
	cells []CoarseCell
	boxes []box
}

type box struct {
	lo, hi r3.Vec
	diam   float64
}

// NewTransfiniteInterpolation returns an uninitialized manifold for cells of
// dimension 2 or 3
func NewTransfiniteInterpolation(dim int) (*TransfiniteInterpolation, error) {
	if dim < 2 || dim > 3 {
		return nil, fmt.Errorf("transfinite interpolation needs dim 2 or 3, got %d", dim)
	}
	return &TransfiniteInterpolation{
		Tolerance:     1e-11,
		MaxIterations: 30,
		ref:           element.MustHypercube(dim),
	}, nil
}

// Initialize records the coarse cells this manifold interpolates. The edge
// and face manifolds are referenced, not copied. On error the previous
// state is kept.
func (m *TransfiniteInterpolation) Initialize(cells []CoarseCell) error {
	nv, ne, nf := m.ref.NVertices(), m.ref.NEdges(), m.ref.NFaces()
	stored := make([]CoarseCell, len(cells))
	boxes := make([]box, len(cells))
	for i, c := range cells {
		if len(c.Vertices) != nv {
			return fmt.Errorf("coarse cell %d: %d vertices, want %d", i, len(c.Vertices), nv)
		}
		if c.EdgeManifolds != nil && len(c.EdgeManifolds) != ne {
			return fmt.Errorf("coarse cell %d: %d edge manifolds, want %d", i, len(c.EdgeManifolds), ne)
		}
		if c.FaceManifolds != nil && (m.ref.Dim() != 3 || len(c.FaceManifolds) != nf) {
			return fmt.Errorf("coarse cell %d: %d face manifolds for a %dD cell", i, len(c.FaceManifolds), m.ref.Dim())
		}
		stored[i] = CoarseCell{Vertices: append([]r3.Vec(nil), c.Vertices...)}
		if c.EdgeManifolds != nil {
			stored[i].EdgeManifolds = append([]Manifold(nil), c.EdgeManifolds...)
		}
		if c.FaceManifolds != nil {
			stored[i].FaceManifolds = append([]Manifold(nil), c.FaceManifolds...)
		}
		boxes[i] = m.boundingBox(&stored[i])
	}
	m.cells, m.boxes = stored, boxes
	return nil
}

// NCells returns the number of coarse cells known to the manifold
func (m *TransfiniteInterpolation) NCells() int { return len(m.cells) }

func (m *TransfiniteInterpolation) boundingBox(c *CoarseCell) box {
	lo, hi := c.Vertices[0], c.Vertices[0]
	grow := func(p r3.Vec) {
		lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	for _, p := range c.Vertices {
		grow(p)
	}
	// Curved lines and faces can bulge beyond the corners
	for e := range m.ref.Edges() {
		grow(m.edgePoint(c, e, 0.5))
	}
	if m.ref.Dim() == 3 {
		for f := 0; f < m.ref.NFaces(); f++ {
			axis, side := m.ref.FaceAxis(f)
			xi := [3]float64{0.5, 0.5, 0.5}
			xi[axis] = float64(side)
			grow(m.facePoint(c, f, r3.Vec{X: xi[0], Y: xi[1], Z: xi[2]}))
		}
	}
	diam := r3.Norm(r3.Sub(hi, lo))
	pad := r3.Vec{X: 0.1 * diam, Y: 0.1 * diam, Z: 0.1 * diam}
	return box{lo: r3.Sub(lo, pad), hi: r3.Add(hi, pad), diam: diam}
}

func (b box) contains(p r3.Vec) bool {
	return p.X >= b.lo.X && p.X <= b.hi.X &&
		p.Y >= b.lo.Y && p.Y <= b.hi.Y &&
		p.Z >= b.lo.Z && p.Z <= b.hi.Z
}

// edgePoint evaluates line e at parameter t. The line manifold is asked for
// the weighted point rather than the geodesic one so that a line agrees
// with the restriction of its faces, which are evaluated the same way.
func (m *TransfiniteInterpolation) edgePoint(c *CoarseCell, e int, t float64) r3.Vec {
	pair := m.ref.Edges()[e]
	p0, p1 := c.Vertices[pair[0]], c.Vertices[pair[1]]
	if c.EdgeManifolds != nil && c.EdgeManifolds[e] != nil {
		p, err := c.EdgeManifolds[e].GetNewPoint([]r3.Vec{p0, p1}, []float64{1 - t, t})
		if err == nil {
			return p
		}
	}
	return r3.Add(r3.Scale(1-t, p0), r3.Scale(t, p1))
}

func edgeWeight(pair [2]int, axis, dim int, c [3]float64) float64 {
	w := 1.0
	for j := 0; j < dim; j++ {
		if j == axis {
			continue
		}
		if pair[0]>>j&1 == 1 {
			w *= c[j]
		} else {
			w *= 1 - c[j]
		}
	}
	return w
}

// lineBlend sums the line curves weighted across the other axes, skipping
// lines along skipAxis
func (m *TransfiniteInterpolation) lineBlend(c *CoarseCell, xi r3.Vec, skipAxis int) r3.Vec {
	cc := [3]float64{xi.X, xi.Y, xi.Z}
	dim := m.ref.Dim()
	var p r3.Vec
	for e, pair := range m.ref.Edges() {
		axis := m.ref.EdgeAxis(e)
		if axis == skipAxis {
			continue
		}
		w := edgeWeight(pair, axis, dim, cc)
		if w == 0 {
			continue
		}
		p = r3.Add(p, r3.Scale(w, m.edgePoint(c, e, cc[axis])))
	}
	return p
}

// facePoint evaluates face f of a hexahedron at xi, whose coordinate normal
// to the face must equal the face side
func (m *TransfiniteInterpolation) facePoint(c *CoarseCell, f int, xi r3.Vec) r3.Vec {
	axis, _ := m.ref.FaceAxis(f)
	if c.FaceManifolds != nil && c.FaceManifolds[f] != nil {
		local := m.ref.FaceVertices(f)
		pts := make([]r3.Vec, len(local))
		w := make([]float64, len(local))
		for i, v := range local {
			pts[i] = c.Vertices[v]
			w[i] = m.ref.ShapeValue(v, xi)
		}
		if p, err := c.FaceManifolds[f].GetNewPoint(pts, w); err == nil {
			return p
		}
	}
	// Coons patch of the four bounding lines
	return r3.Sub(m.lineBlend(c, xi, axis), m.ref.MapPoint(c.Vertices, xi))
}

// PushForward maps reference coordinates of a coarse cell to space. In 2D
// this is the sum of the blended line curves minus the bilinear corner
// interpolant; in 3D the blended faces, minus the blended lines, plus the
// trilinear corner interpolant.
func (m *TransfiniteInterpolation) PushForward(cell int, xi r3.Vec) r3.Vec {
	c := &m.cells[cell]
	corners := m.ref.MapPoint(c.Vertices, xi)
	lines := m.lineBlend(c, xi, -1)
	if m.ref.Dim() == 2 {
		return r3.Sub(lines, corners)
	}
	cc := [3]float64{xi.X, xi.Y, xi.Z}
	var faces r3.Vec
	for f := 0; f < m.ref.NFaces(); f++ {
		axis, side := m.ref.FaceAxis(f)
		w := 1 - cc[axis]
		if side == 1 {
			w = cc[axis]
		}
		if w == 0 {
			continue
		}
		on := cc
		on[axis] = float64(side)
		faces = r3.Add(faces, r3.Scale(w, m.facePoint(c, f, r3.Vec{X: on[0], Y: on[1], Z: on[2]})))
	}
	return r3.Add(r3.Sub(faces, lines), corners)
}

// PullBack finds reference coordinates of x in a coarse cell
func (m *TransfiniteInterpolation) PullBack(cell int, x r3.Vec) (r3.Vec, error) {
	dim := m.ref.Dim()
	tol := m.Tolerance * m.boxes[cell].diam
	xi := []float64{0.5, 0.5, 0.5}
	vec := func(v []float64) r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }
	for it := 0; it < m.MaxIterations; it++ {
		res := r3.Sub(m.PushForward(cell, vec(xi)), x)
		if r3.Norm(res) <= tol {
			return vec(xi), nil
		}
		const h = 1e-7
		jac := mat.NewDense(3, dim, nil)
		for j := 0; j < dim; j++ {
			plus := append([]float64(nil), xi...)
			minus := append([]float64(nil), xi...)
			plus[j] += h
			minus[j] -= h
			d := r3.Scale(1/(2*h), r3.Sub(m.PushForward(cell, vec(plus)), m.PushForward(cell, vec(minus))))
			jac.Set(0, j, d.X)
			jac.Set(1, j, d.Y)
			jac.Set(2, j, d.Z)
		}
		rhs := mat.NewDense(3, 1, []float64{-res.X, -res.Y, -res.Z})
		var step mat.Dense
		if err := step.Solve(jac, rhs); err != nil {
			return r3.Vec{}, fmt.Errorf("%w: singular Jacobian in coarse cell %d: %v", ErrPullBack, cell, err)
		}
		for j := 0; j < dim; j++ {
			xi[j] = math.Max(-0.5, math.Min(1.5, xi[j]+step.At(j, 0)))
		}
	}
	return r3.Vec{}, fmt.Errorf("%w: no convergence for %v in coarse cell %d", ErrPullBack, x, cell)
}

func (m *TransfiniteInterpolation) inside(xi r3.Vec) bool {
	const slack = 1e-8
	c := [3]float64{xi.X, xi.Y, xi.Z}
	for j := 0; j < m.ref.Dim(); j++ {
		if c[j] < -slack || c[j] > 1+slack {
			return false
		}
	}
	return true
}

// candidates returns the coarse cells whose padded bounding box holds every
// point, nearest first
func (m *TransfiniteInterpolation) candidates(points []r3.Vec) []int {
	var center r3.Vec
	for _, p := range points {
		center = r3.Add(center, p)
	}
	center = r3.Scale(1/float64(len(points)), center)
	var out []int
	for i, b := range m.boxes {
		ok := true
		for _, p := range points {
			if !b.contains(p) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, i)
		}
	}
	dist := func(i int) float64 {
		return r3.Norm(r3.Sub(element.Barycenter(m.cells[i].Vertices), center))
	}
	sort.SliceStable(out, func(a, b int) bool { return dist(out[a]) < dist(out[b]) })
	return out
}

func (m *TransfiniteInterpolation) GetNewPoint(points []r3.Vec, weights []float64) (r3.Vec, error) {
	if err := checkWeights(points, weights); err != nil {
		return r3.Vec{}, err
	}
	if len(m.cells) == 0 {
		return r3.Vec{}, fmt.Errorf("%w: transfinite interpolation has no coarse cells", ErrPullBack)
	}
search:
	for _, cell := range m.candidates(points) {
		var xi r3.Vec
		for i, p := range points {
			q, err := m.PullBack(cell, p)
			if err != nil || !m.inside(q) {
				continue search
			}
			xi = r3.Add(xi, r3.Scale(weights[i], q))
		}
		return m.PushForward(cell, xi), nil
	}
	return r3.Vec{}, fmt.Errorf("%w: points not inside any coarse cell", ErrPullBack)
}

func (m *TransfiniteInterpolation) GetIntermediatePoint(p1, p2 r3.Vec, t float64) (r3.Vec, error) {
	return intermediate(m, p1, p2, t)
}

func (m *TransfiniteInterpolation) ProjectToManifold(candidate r3.Vec) (r3.Vec, error) {
	return candidate, nil
}
