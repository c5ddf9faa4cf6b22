package manifold

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Chart is a manifold described by a map from chart space. New points are
// averaged in chart coordinates and pushed forward. Components of Periodicity
// that are positive mark periodic chart coordinates; averaging unwraps them
// relative to the first point so that points straddling the seam stay close.
type Chart struct {
	PushForward func(chart r3.Vec) r3.Vec
	PullBack    func(space r3.Vec) r3.Vec
	Periodicity r3.Vec
}

// NewChart builds a custom manifold from a push-forward and its inverse
func NewChart(pushForward, pullBack func(r3.Vec) r3.Vec, periodicity r3.Vec) (*Chart, error) {
	if pushForward == nil || pullBack == nil {
		return nil, fmt.Errorf("chart manifold needs both push-forward and pull-back")
	}
	return &Chart{PushForward: pushForward, PullBack: pullBack, Periodicity: periodicity}, nil
}

func unwrap(v, ref, period float64) float64 {
	if period <= 0 {
		return v
	}
	return v - period*math.Round((v-ref)/period)
}

func (c *Chart) GetNewPoint(points []r3.Vec, weights []float64) (r3.Vec, error) {
	if err := checkWeights(points, weights); err != nil {
		return r3.Vec{}, err
	}
	var ref, avg r3.Vec
	for i, p := range points {
		q := c.PullBack(p)
		if !IsFinite(q) {
			return r3.Vec{}, fmt.Errorf("%w: chart point of %v is not finite", ErrPullBack, p)
		}
		if i == 0 {
			ref = q
		}
		q = r3.Vec{
			X: unwrap(q.X, ref.X, c.Periodicity.X),
			Y: unwrap(q.Y, ref.Y, c.Periodicity.Y),
			Z: unwrap(q.Z, ref.Z, c.Periodicity.Z),
		}
		avg = r3.Add(avg, r3.Scale(weights[i], q))
	}
	p := c.PushForward(avg)
	if !IsFinite(p) {
		return r3.Vec{}, fmt.Errorf("%w: push-forward of %v is not finite", ErrDegenerate, avg)
	}
	return p, nil
}

func (c *Chart) GetIntermediatePoint(p1, p2 r3.Vec, t float64) (r3.Vec, error) {
	return intermediate(c, p1, p2, t)
}

func (c *Chart) ProjectToManifold(candidate r3.Vec) (r3.Vec, error) {
	p := c.PushForward(c.PullBack(candidate))
	if !IsFinite(p) {
		return r3.Vec{}, fmt.Errorf("%w: cannot project %v", ErrDegenerate, candidate)
	}
	return p, nil
}

// NewTorus returns the chart manifold of a torus around the z axis with
// center radius R and tube radius r. Chart coordinates are the toroidal
// angle, the poloidal angle and the distance from the tube center line.
func NewTorus(R, r float64) (*Chart, error) {
	if !(r > 0) || !(R > r) {
		return nil, fmt.Errorf("torus needs R > r > 0, got R=%g r=%g", R, r)
	}
	push := func(c r3.Vec) r3.Vec {
		theta, phi, w := c.X, c.Y, c.Z
		rho := R + w*math.Cos(phi)
		return r3.Vec{X: rho * math.Cos(theta), Y: rho * math.Sin(theta), Z: w * math.Sin(phi)}
	}
	pull := func(p r3.Vec) r3.Vec {
		theta := math.Atan2(p.Y, p.X)
		rho := math.Hypot(p.X, p.Y) - R
		return r3.Vec{X: theta, Y: math.Atan2(p.Z, rho), Z: math.Hypot(rho, p.Z)}
	}
	return NewChart(push, pull, r3.Vec{X: 2 * math.Pi, Y: 2 * math.Pi})
}
