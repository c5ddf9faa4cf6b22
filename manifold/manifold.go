// Package manifold describes the geometry that new mesh vertices are placed
// on. Manifolds are referenced from a triangulation by id and are never owned
// by it; they must be safe for concurrent read-only use.
package manifold

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrDegenerate reports an input for which no point can be constructed,
	// e.g. points on a symmetry axis or antipodal points on a sphere.
	ErrDegenerate = errors.New("manifold: degenerate input")
	// ErrPullBack reports that no chart point could be found for a location.
	ErrPullBack = errors.New("manifold: pull-back failed")
	// ErrInvalidWeights reports mismatched or non-normalized weights.
	ErrInvalidWeights = errors.New("manifold: invalid weights")
)

// Manifold places new points between existing ones.
type Manifold interface {
	// GetNewPoint returns the point corresponding to the weighted combination
	// of points. Weights sum to one and may be negative.
	GetNewPoint(points []r3.Vec, weights []float64) (r3.Vec, error)
	// GetIntermediatePoint returns the point at fraction t along the
	// manifold-geodesic from p1 to p2.
	GetIntermediatePoint(p1, p2 r3.Vec, t float64) (r3.Vec, error)
	// ProjectToManifold moves a candidate point onto the manifold.
	ProjectToManifold(candidate r3.Vec) (r3.Vec, error)
}

const weightTolerance = 1e-10

func checkWeights(points []r3.Vec, weights []float64) error {
	if len(points) == 0 || len(points) != len(weights) {
		return fmt.Errorf("%w: %d points, %d weights", ErrInvalidWeights, len(points), len(weights))
	}
	if s := floats.Sum(weights); math.Abs(s-1) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %g", ErrInvalidWeights, s)
	}
	return nil
}

// IsFinite reports whether all components of p are finite numbers.
func IsFinite(p r3.Vec) bool {
	for _, c := range [3]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func intermediate(m Manifold, p1, p2 r3.Vec, t float64) (r3.Vec, error) {
	return m.GetNewPoint([]r3.Vec{p1, p2}, []float64{1 - t, t})
}

// Flat interpolates linearly. It is the geometry of every object whose
// manifold id has no attached manifold.
type Flat struct{}

func (Flat) GetNewPoint(points []r3.Vec, weights []float64) (r3.Vec, error) {
	if err := checkWeights(points, weights); err != nil {
		return r3.Vec{}, err
	}
	var p r3.Vec
	for i := range points {
		p = r3.Add(p, r3.Scale(weights[i], points[i]))
	}
	return p, nil
}

func (f Flat) GetIntermediatePoint(p1, p2 r3.Vec, t float64) (r3.Vec, error) {
	return intermediate(f, p1, p2, t)
}

func (Flat) ProjectToManifold(candidate r3.Vec) (r3.Vec, error) {
	return candidate, nil
}
