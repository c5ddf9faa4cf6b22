// Package gridgen fills empty triangulations with standard coarse meshes:
// boxes, balls and shells.
package gridgen

import (
	"errors"
	"fmt"
	"math"

	"github.com/notargets/DGMesh/element"
	"github.com/notargets/DGMesh/manifold"
	"github.com/notargets/DGMesh/tria"
	"github.com/notargets/DGMesh/utils"
	"gonum.org/v1/gonum/spatial/r3"
)

// Manifold ids used by the curved generators
const (
	BoundaryManifoldID utils.ManifoldID = 0
	InteriorManifoldID utils.ManifoldID = 1
)

var ErrInvalidGeometry = errors.New("gridgen: invalid geometry")

func component(p r3.Vec, i int) float64 {
	switch i {
	case 0:
		return p.X
	case 1:
		return p.Y
	}
	return p.Z
}

func vec(c [3]float64) r3.Vec { return r3.Vec{X: c[0], Y: c[1], Z: c[2]} }

// HyperCube creates the single cell [left,right]^dim. With colorize, face
// 2i+s gets boundary id 2i+s, otherwise all faces keep id 0.
func HyperCube(t *tria.Triangulation, left, right float64, colorize bool) error {
	reps := make([]int, t.Dim())
	var p1, p2 [3]float64
	for i := range reps {
		reps[i] = 1
		p1[i], p2[i] = left, right
	}
	return SubdividedHyperRectangle(t, reps, vec(p1), vec(p2), colorize)
}

// SubdividedHyperRectangle creates reps[i] equal cells along axis i of the
// box spanned by p1 and p2. Only the first dim components of the corners
// are used.
func SubdividedHyperRectangle(t *tria.Triangulation, reps []int, p1, p2 r3.Vec, colorize bool) error {
	dim := t.Dim()
	if len(reps) != dim {
		return fmt.Errorf("%w: %d repetitions for a %dD mesh", ErrInvalidGeometry, len(reps), dim)
	}
	var lo, step [3]float64
	var stride [3]int
	nv, nc := 1, 1
	for i := 0; i < dim; i++ {
		a, b := component(p1, i), component(p2, i)
		if reps[i] < 1 {
			return fmt.Errorf("%w: %d repetitions along axis %d", ErrInvalidGeometry, reps[i], i)
		}
		if !(b > a) {
			return fmt.Errorf("%w: box corners %v and %v are not ordered along axis %d", ErrInvalidGeometry, p1, p2, i)
		}
		lo[i], step[i] = a, (b-a)/float64(reps[i])
		stride[i] = nv
		nv *= reps[i] + 1
		nc *= reps[i]
	}

	vertices := make([]r3.Vec, nv)
	for v := range vertices {
		var c [3]float64
		r := v
		for i := 0; i < dim; i++ {
			n := r % (reps[i] + 1)
			r /= reps[i] + 1
			c[i] = lo[i] + float64(n)*step[i]
			if n == reps[i] {
				c[i] = component(p2, i)
			}
		}
		vertices[v] = vec(c)
	}
	cells := make([]tria.CellData, nc)
	for c := range cells {
		base, r := 0, c
		for i := 0; i < dim; i++ {
			base += (r % reps[i]) * stride[i]
			r /= reps[i]
		}
		verts := make([]int, 1<<dim)
		for lv := range verts {
			v := base
			for i := 0; i < dim; i++ {
				v += (lv >> i & 1) * stride[i]
			}
			verts[lv] = v
		}
		cells[c] = tria.CellData{Vertices: verts, ManifoldID: utils.FlatManifoldID}
	}
	if err := t.CreateTriangulation(vertices, cells, tria.SubCellData{}); err != nil {
		return err
	}
	if colorize {
		return colorizeFaces(t)
	}
	return nil
}

// colorizeFaces tags every boundary face with its local face number, which
// on a box is the side of the box it lies on
func colorizeFaces(t *tria.Triangulation) error {
	for c := range t.CellsOnLevel(0) {
		ed := t.EditCell(c.ID())
		for f := 0; f < c.NFaces(); f++ {
			if !c.AtBoundary(f) {
				continue
			}
			if err := ed.SetFaceBoundaryID(f, utils.BoundaryID(f)); err != nil {
				return err
			}
		}
	}
	return nil
}

// shellCell returns the corners of the cell between the inner and outer
// cube faces normal to axis at side, positively oriented. Corner j of the
// outer cube is vertex j, of the inner cube nCorners+j.
func shellCell(dim, axis, side int, corners []r3.Vec) []int {
	n := 1 << dim
	local := make([]int, 0, dim)
	for k := 1; k < dim; k++ {
		local = append(local, (axis+k)%dim)
	}
	build := func(mirror bool) []int {
		verts := make([]int, n)
		for lv := range verts {
			global := side << axis
			for p, a := range local {
				bit := lv >> p & 1
				if mirror && p == 0 {
					bit = 1 - bit
				}
				global |= bit << a
			}
			radial := lv >> (dim - 1) & 1
			if radial == side {
				verts[lv] = global
			} else {
				verts[lv] = n + global
			}
		}
		return verts
	}
	verts := build(false)
	pts := make([]r3.Vec, n)
	for i, v := range verts {
		pts[i] = corners[v]
	}
	if element.MustHypercube(dim).VertexDeterminants(pts, dim)[0] <= 0 {
		verts = build(true)
	}
	return verts
}

// HyperBall creates a ball of the given radius: a central cube surrounded
// by one cell per cube face (5 cells in 2D, 7 in 3D). The boundary carries
// a spherical manifold under BoundaryManifoldID and the cells a transfinite
// interpolation under InteriorManifoldID.
func HyperBall(t *tria.Triangulation, center r3.Vec, radius float64) error {
	dim := t.Dim()
	if dim < 2 || t.SpaceDim() != dim {
		return fmt.Errorf("%w: hyper ball needs dim 2 or 3 in its own space, got %dD in %dD", ErrInvalidGeometry, dim, t.SpaceDim())
	}
	if !(radius > 0) {
		return fmt.Errorf("%w: radius %g", ErrInvalidGeometry, radius)
	}
	n := 1 << dim
	outer := radius / math.Sqrt(float64(dim))
	inner := outer / 2
	vertices := make([]r3.Vec, 2*n)
	for j := 0; j < n; j++ {
		var o, in [3]float64
		for i := 0; i < dim; i++ {
			s := float64(2*(j>>i&1) - 1)
			o[i], in[i] = s*outer, s*inner
		}
		vertices[j] = r3.Add(center, vec(o))
		vertices[n+j] = r3.Add(center, vec(in))
	}

	centerCell := make([]int, n)
	for j := range centerCell {
		centerCell[j] = n + j
	}
	cells := []tria.CellData{{Vertices: centerCell}}
	for axis := 0; axis < dim; axis++ {
		for side := 0; side < 2; side++ {
			cells = append(cells, tria.CellData{Vertices: shellCell(dim, axis, side, vertices)})
		}
	}
	if err := t.CreateTriangulation(vertices, cells, tria.SubCellData{}); err != nil {
		return err
	}
	return attachBallManifolds(t, center)
}

func attachBallManifolds(t *tria.Triangulation, center r3.Vec) error {
	t.SetAllManifoldIDs(InteriorManifoldID)
	t.SetAllManifoldIDsOnBoundary(BoundaryManifoldID)
	if err := t.SetManifold(BoundaryManifoldID, manifold.NewSpherical(center)); err != nil {
		return err
	}
	tfi, err := manifold.NewTransfiniteInterpolation(t.Dim())
	if err != nil {
		return err
	}
	return t.InitializeTransfinite(InteriorManifoldID, tfi)
}

// HyperShell creates the 2D annulus between inner and outer radius from n
// cells around the circumference. Everything carries the spherical
// manifold BoundaryManifoldID. The inner boundary gets id 0, the outer id 1.
func HyperShell(t *tria.Triangulation, center r3.Vec, inner, outer float64, n int) error {
	if t.Dim() != 2 || t.SpaceDim() != 2 {
		return fmt.Errorf("%w: hyper shell is 2D only, got %dD in %dD", ErrInvalidGeometry, t.Dim(), t.SpaceDim())
	}
	if !(inner > 0) || !(outer > inner) {
		return fmt.Errorf("%w: radii %g and %g", ErrInvalidGeometry, inner, outer)
	}
	if n < 3 {
		return fmt.Errorf("%w: %d cells around a shell", ErrInvalidGeometry, n)
	}
	vertices := make([]r3.Vec, 2*n)
	for k := 0; k < n; k++ {
		phi := 2 * math.Pi * float64(k) / float64(n)
		dir := r3.Vec{X: math.Cos(phi), Y: math.Sin(phi)}
		vertices[k] = r3.Add(center, r3.Scale(inner, dir))
		vertices[n+k] = r3.Add(center, r3.Scale(outer, dir))
	}
	cells := make([]tria.CellData, n)
	for k := range cells {
		next := (k + 1) % n
		// Local axis 0 runs outward, axis 1 counterclockwise
		cells[k] = tria.CellData{Vertices: []int{k, n + k, next, n + next}, ManifoldID: BoundaryManifoldID}
	}
	if err := t.CreateTriangulation(vertices, cells, tria.SubCellData{}); err != nil {
		return err
	}
	t.SetAllManifoldIDs(BoundaryManifoldID)
	for c := range t.CellsOnLevel(0) {
		if err := t.EditCell(c.ID()).SetFaceBoundaryID(1, 1); err != nil {
			return err
		}
	}
	return t.SetManifold(BoundaryManifoldID, manifold.NewSpherical(center))
}
