package manifold

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Spherical places points on spheres (circles in 2D) around Center. The
// direction of a new point is the normalized weighted average of the input
// directions. Its radius is the weighted average of the input radii, or
// Radius when that is positive.
type Spherical struct {
	Center r3.Vec
	Radius float64
}

// NewSpherical returns a spherical manifold that interpolates radii
func NewSpherical(center r3.Vec) *Spherical {
	return &Spherical{Center: center}
}

// NewSphericalWithRadius returns a spherical manifold that projects every new
// point onto the sphere of the given radius
func NewSphericalWithRadius(center r3.Vec, radius float64) (*Spherical, error) {
	if !(radius > 0) {
		return nil, fmt.Errorf("spherical manifold radius must be positive, got %g", radius)
	}
	return &Spherical{Center: center, Radius: radius}, nil
}

// radialAverage averages directions and lengths of the vectors vs. It is
// shared with Cylindrical, which applies it in the plane normal to its axis.
func radialAverage(vs []r3.Vec, weights []float64) (dir r3.Vec, radius float64, err error) {
	scale := 0.0
	for _, v := range vs {
		scale = math.Max(scale, r3.Norm(v))
	}
	if scale == 0 {
		return r3.Vec{}, 0, fmt.Errorf("%w: all points at the center", ErrDegenerate)
	}
	for i, v := range vs {
		r := r3.Norm(v)
		if r < 1e-12*scale {
			return r3.Vec{}, 0, fmt.Errorf("%w: point %d at the center", ErrDegenerate, i)
		}
		dir = r3.Add(dir, r3.Scale(weights[i]/r, v))
		radius += weights[i] * r
	}
	if r3.Norm(dir) < 1e-10 {
		return r3.Vec{}, 0, fmt.Errorf("%w: directions cancel", ErrDegenerate)
	}
	return r3.Unit(dir), radius, nil
}

func (s *Spherical) GetNewPoint(points []r3.Vec, weights []float64) (r3.Vec, error) {
	if err := checkWeights(points, weights); err != nil {
		return r3.Vec{}, err
	}
	vs := make([]r3.Vec, len(points))
	for i, p := range points {
		vs[i] = r3.Sub(p, s.Center)
	}
	dir, radius, err := radialAverage(vs, weights)
	if err != nil {
		return r3.Vec{}, err
	}
	if s.Radius > 0 {
		radius = s.Radius
	}
	return r3.Add(s.Center, r3.Scale(radius, dir)), nil
}

// slerp rotates the direction of v1 towards v2 by the fraction t of the angle
// between them and interpolates the length linearly
func slerp(v1, v2 r3.Vec, t float64) (dir r3.Vec, radius float64, err error) {
	r1, r2 := r3.Norm(v1), r3.Norm(v2)
	scale := math.Max(r1, r2)
	if r1 <= 1e-12*scale || r2 <= 1e-12*scale {
		return r3.Vec{}, 0, fmt.Errorf("%w: endpoint at the center", ErrDegenerate)
	}
	u1, u2 := r3.Scale(1/r1, v1), r3.Scale(1/r2, v2)
	radius = (1-t)*r1 + t*r2
	cos := math.Max(-1, math.Min(1, r3.Dot(u1, u2)))
	angle := math.Acos(cos)
	if math.Pi-angle < 1e-10 {
		return r3.Vec{}, 0, fmt.Errorf("%w: antipodal endpoints", ErrDegenerate)
	}
	if angle < 1e-12 {
		return u1, radius, nil
	}
	sin := math.Sin(angle)
	dir = r3.Add(r3.Scale(math.Sin((1-t)*angle)/sin, u1), r3.Scale(math.Sin(t*angle)/sin, u2))
	return r3.Unit(dir), radius, nil
}

// GetIntermediatePoint follows the great circle through p1 and p2
func (s *Spherical) GetIntermediatePoint(p1, p2 r3.Vec, t float64) (r3.Vec, error) {
	dir, radius, err := slerp(r3.Sub(p1, s.Center), r3.Sub(p2, s.Center), t)
	if err != nil {
		return r3.Vec{}, err
	}
	if s.Radius > 0 {
		radius = s.Radius
	}
	return r3.Add(s.Center, r3.Scale(radius, dir)), nil
}

func (s *Spherical) ProjectToManifold(candidate r3.Vec) (r3.Vec, error) {
	v := r3.Sub(candidate, s.Center)
	if r3.Norm(v) == 0 {
		return r3.Vec{}, fmt.Errorf("%w: cannot project the center", ErrDegenerate)
	}
	if s.Radius > 0 {
		return r3.Add(s.Center, r3.Scale(s.Radius, r3.Unit(v))), nil
	}
	return candidate, nil
}
