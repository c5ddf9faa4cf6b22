package tria

import (
	"fmt"
	"math"

	"github.com/notargets/DGMesh/element"
	"github.com/notargets/DGMesh/utils"
	"gonum.org/v1/gonum/spatial/r3"
)

// PeriodicFacePair couples two boundary faces of level-0 cells. Translating
// face 1 by Offset yields face 2.
type PeriodicFacePair struct {
	Cell1, Face1 int
	Cell2, Face2 int
	Offset       r3.Vec
}

type periodicEnd struct {
	cell, face int
}

// periodicLink is one direction of a pair: the partner face and the shift
// from this face to it
type periodicLink struct {
	to    periodicEnd
	shift r3.Vec
}

const periodicTolerance = 1e-8

// faceCenter returns the corner average of local face f
func (t *Triangulation) faceCenter(id CellID, f int) r3.Vec {
	verts := t.cells(id.Level).vertices(id.Index)
	local := t.ref.FaceVertices(f)
	pts := make([]r3.Vec, len(local))
	for i, l := range local {
		pts[i] = t.vertices[verts[l]]
	}
	return element.Barycenter(pts)
}

// AddPeriodicFaces registers face pairs. The faces must be boundary faces
// of level-0 cells whose centers differ by the pair offset.
func (t *Triangulation) AddPeriodicFaces(pairs []PeriodicFacePair) error {
	if t.Empty() {
		return ErrEmpty
	}
	seen := make(map[periodicEnd]int)
	for i, p := range pairs {
		if err := t.checkPeriodicPair(p); err != nil {
			return fmt.Errorf("periodic pair %d: %w", i, err)
		}
		for _, end := range []periodicEnd{{p.Cell1, p.Face1}, {p.Cell2, p.Face2}} {
			if j, ok := seen[end]; ok {
				return fmt.Errorf("periodic pair %d: %w: face %d of cell %d also in pair %d",
					i, ErrInvalidTopology, end.face, end.cell, j)
			}
			seen[end] = i
		}
	}
	for _, p := range pairs {
		t.linkPeriodic(p)
	}
	t.periodic = append(t.periodic, pairs...)
	utils.Diagf("%d periodic face pairs registered", len(t.periodic))
	return nil
}

func (t *Triangulation) checkPeriodicPair(p PeriodicFacePair) error {
	nf := t.ref.NFaces()
	if p.Cell1 == p.Cell2 && p.Face1 == p.Face2 {
		return fmt.Errorf("%w: face %d of cell %d paired with itself", ErrInvalidTopology, p.Face1, p.Cell1)
	}
	for _, end := range []periodicEnd{{p.Cell1, p.Face1}, {p.Cell2, p.Face2}} {
		id := CellID{0, end.cell}
		if !t.validCell(id) {
			return fmt.Errorf("%w: no level-0 cell %d", ErrInvalidID, end.cell)
		}
		if end.face < 0 || end.face >= nf {
			return fmt.Errorf("%w: face %d of %d", ErrInvalidID, end.face, nf)
		}
		if !t.faceAtBoundary(id, end.face) {
			return fmt.Errorf("%w: face %d of cell %d is interior", ErrInvalidTopology, end.face, end.cell)
		}
		if _, ok := t.periodicMap[end]; ok {
			return fmt.Errorf("%w: face %d of cell %d is already periodic", ErrInvalidTopology, end.face, end.cell)
		}
	}
	c1 := r3.Add(t.faceCenter(CellID{0, p.Cell1}, p.Face1), p.Offset)
	c2 := t.faceCenter(CellID{0, p.Cell2}, p.Face2)
	scale := math.Max(1, t.Cell(CellID{0, p.Cell1}).Diameter())
	if r3.Norm(r3.Sub(c1, c2)) > periodicTolerance*scale {
		return fmt.Errorf("%w: shifted face center %v does not match %v", ErrInvalidTopology, c1, c2)
	}
	return nil
}

func (t *Triangulation) linkPeriodic(p PeriodicFacePair) {
	a, b := periodicEnd{p.Cell1, p.Face1}, periodicEnd{p.Cell2, p.Face2}
	t.periodicMap[a] = periodicLink{to: b, shift: p.Offset}
	t.periodicMap[b] = periodicLink{to: a, shift: r3.Scale(-1, p.Offset)}
}

// PeriodicFacePairs returns the registered pairs
func (t *Triangulation) PeriodicFacePairs() []PeriodicFacePair {
	return append([]PeriodicFacePair(nil), t.periodic...)
}

// CollectPeriodicFaces matches level-0 boundary faces tagged b1 with faces
// tagged b2 whose centers agree in every coordinate except direction. The
// pairs are returned, not registered.
func (t *Triangulation) CollectPeriodicFaces(b1, b2 utils.BoundaryID, direction int) ([]PeriodicFacePair, error) {
	if direction < 0 || direction >= t.spacedim {
		return nil, fmt.Errorf("%w: direction %d in %dD", ErrInvalidID, direction, t.spacedim)
	}
	var side1, side2 []periodicEnd
	for c := range t.CellsOnLevel(0) {
		for f := 0; f < c.NFaces(); f++ {
			if !c.AtBoundary(f) {
				continue
			}
			switch c.FaceBoundaryID(f) {
			case b1:
				side1 = append(side1, periodicEnd{c.Index(), f})
			case b2:
				side2 = append(side2, periodicEnd{c.Index(), f})
			}
		}
	}
	if len(side1) != len(side2) {
		return nil, fmt.Errorf("%w: %d faces with id %d, %d with id %d", ErrSizeMismatch, len(side1), b1, len(side2), b2)
	}
	taken := make([]bool, len(side2))
	pairs := make([]PeriodicFacePair, 0, len(side1))
	for _, e1 := range side1 {
		c1 := t.faceCenter(CellID{0, e1.cell}, e1.face)
		scale := math.Max(1, t.Cell(CellID{0, e1.cell}).Diameter())
		match := -1
		for j, e2 := range side2 {
			if taken[j] {
				continue
			}
			d := r3.Sub(t.faceCenter(CellID{0, e2.cell}, e2.face), c1)
			d = setComponent(d, direction, 0)
			if r3.Norm(d) <= periodicTolerance*scale {
				match = j
				break
			}
		}
		if match < 0 {
			return nil, fmt.Errorf("%w: no partner for face %d of cell %d", ErrInvalidTopology, e1.face, e1.cell)
		}
		taken[match] = true
		e2 := side2[match]
		pairs = append(pairs, PeriodicFacePair{
			Cell1: e1.cell, Face1: e1.face,
			Cell2: e2.cell, Face2: e2.face,
			Offset: r3.Sub(t.faceCenter(CellID{0, e2.cell}, e2.face), c1),
		})
	}
	return pairs, nil
}

func setComponent(v r3.Vec, i int, x float64) r3.Vec {
	switch i {
	case 0:
		v.X = x
	case 1:
		v.Y = x
	default:
		v.Z = x
	}
	return v
}

// periodicPartner returns the cell and face across a periodic boundary
// face: the partner on the same level, or the finest coarser one.
func (t *Triangulation) periodicPartner(id CellID, f int) (CellID, int, bool) {
	if len(t.periodicMap) == 0 {
		return NoCell, -1, false
	}
	anc := id
	for anc.Level > 0 {
		if !t.ref.ChildOnFace(t.childIndex(anc), f) {
			return NoCell, -1, false
		}
		anc, _ = t.cellParent(anc)
	}
	link, ok := t.periodicMap[periodicEnd{anc.Index, f}]
	if !ok {
		return NoCell, -1, false
	}
	target := r3.Add(t.faceCenter(id, f), link.shift)
	n, g := CellID{0, link.to.cell}, link.to.face
	for n.Level < id.Level && !t.cellActive(n) {
		best, bestDist := NoCell, math.Inf(1)
		for c := 0; c < t.ref.NChildren(); c++ {
			if !t.ref.ChildOnFace(c, g) {
				continue
			}
			ch := t.cellChild(n, c)
			if d := r3.Norm(r3.Sub(t.faceCenter(ch, g), target)); d < bestDist {
				best, bestDist = ch, d
			}
		}
		n = best
	}
	return n, g, true
}

// PeriodicNeighbor returns the cell across periodic face f and the face of
// that cell, on the same level when it exists, otherwise coarser
func (c Cell) PeriodicNeighbor(f int) (CellID, int, bool) { return c.t.periodicPartner(c.id, f) }

// HasPeriodicNeighbor reports whether face f is part of a periodic pair
func (c Cell) HasPeriodicNeighbor(f int) bool {
	_, _, ok := c.t.periodicPartner(c.id, f)
	return ok
}
