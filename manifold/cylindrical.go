package manifold

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Cylindrical places points on cylinders around an axis through Point. The
// axial coordinate is interpolated linearly and the radial part like
// Spherical in the plane normal to the axis.
type Cylindrical struct {
	Axis  r3.Vec // unit direction
	Point r3.Vec
}

// NewCylindrical returns a cylindrical manifold around the line Point+s*Axis
func NewCylindrical(axis, point r3.Vec) (*Cylindrical, error) {
	if r3.Norm(axis) == 0 {
		return nil, fmt.Errorf("%w: zero cylinder axis", ErrDegenerate)
	}
	return &Cylindrical{Axis: r3.Unit(axis), Point: point}, nil
}

func (c *Cylindrical) split(p r3.Vec) (z float64, radial r3.Vec) {
	v := r3.Sub(p, c.Point)
	z = r3.Dot(v, c.Axis)
	return z, r3.Sub(v, r3.Scale(z, c.Axis))
}

func (c *Cylindrical) GetNewPoint(points []r3.Vec, weights []float64) (r3.Vec, error) {
	if err := checkWeights(points, weights); err != nil {
		return r3.Vec{}, err
	}
	z := 0.0
	radial := make([]r3.Vec, len(points))
	for i, p := range points {
		zi, ri := c.split(p)
		z += weights[i] * zi
		radial[i] = ri
	}
	dir, radius, err := radialAverage(radial, weights)
	if err != nil {
		return r3.Vec{}, err
	}
	return r3.Add(c.Point, r3.Add(r3.Scale(z, c.Axis), r3.Scale(radius, dir))), nil
}

// GetIntermediatePoint follows the helix through p1 and p2: the axial
// coordinate moves linearly while the radial part rotates about the axis
func (c *Cylindrical) GetIntermediatePoint(p1, p2 r3.Vec, t float64) (r3.Vec, error) {
	z1, r1 := c.split(p1)
	z2, r2 := c.split(p2)
	dir, radius, err := slerp(r1, r2, t)
	if err != nil {
		return r3.Vec{}, err
	}
	z := (1-t)*z1 + t*z2
	return r3.Add(c.Point, r3.Add(r3.Scale(z, c.Axis), r3.Scale(radius, dir))), nil
}

func (c *Cylindrical) ProjectToManifold(candidate r3.Vec) (r3.Vec, error) {
	if _, r := c.split(candidate); r3.Norm(r) == 0 {
		return r3.Vec{}, fmt.Errorf("%w: point on the cylinder axis", ErrDegenerate)
	}
	return candidate, nil
}
