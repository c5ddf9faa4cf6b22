package element

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// gaussPoints2 are the 2-point Gauss-Legendre abscissae on [0,1], weights 1/2
var gaussPoints2 = [2]float64{0.5 - 0.5/math.Sqrt(3), 0.5 + 0.5/math.Sqrt(3)}

func component(p r3.Vec, i int) float64 {
	switch i {
	case 0:
		return p.X
	case 1:
		return p.Y
	}
	return p.Z
}

// JacobianAt returns the spacedim x d Jacobian ∂x/∂ξ of the multilinear map
// through corners, evaluated at reference point xi
func (h Hypercube) JacobianAt(corners []r3.Vec, xi r3.Vec, spacedim int) *mat.Dense {
	c := [3]float64{xi.X, xi.Y, xi.Z}
	jac := mat.NewDense(spacedim, h.dim, nil)
	for v := range corners {
		for j := 0; j < h.dim; j++ {
			// ∂N_v/∂ξ_j
			d := 1.0
			for i := 0; i < h.dim; i++ {
				bit := v >> i & 1
				switch {
				case i == j && bit == 1:
				case i == j:
					d = -d
				case bit == 1:
					d *= c[i]
				default:
					d *= 1 - c[i]
				}
			}
			for r := 0; r < spacedim; r++ {
				jac.Set(r, j, jac.At(r, j)+d*component(corners[v], r))
			}
		}
	}
	return jac
}

// VertexJacobian returns the Jacobian at corner v. At a corner the derivative
// along axis j is the difference of the two corners on the edge through v.
func (h Hypercube) VertexJacobian(corners []r3.Vec, v, spacedim int) *mat.Dense {
	jac := mat.NewDense(spacedim, h.dim, nil)
	for j := 0; j < h.dim; j++ {
		lo, hi := v&^(1<<j), v|1<<j
		d := r3.Sub(corners[hi], corners[lo])
		for r := 0; r < spacedim; r++ {
			jac.Set(r, j, component(d, r))
		}
	}
	return jac
}

// Determinant returns det J for square Jacobians and the Gram determinant
// sqrt(det(JᵀJ)) otherwise. The latter is never negative.
func Determinant(jac *mat.Dense) float64 {
	r, c := jac.Dims()
	if c == 0 {
		return 1
	}
	if r == c {
		return mat.Det(jac)
	}
	var g mat.Dense
	g.Mul(jac.T(), jac)
	return math.Sqrt(math.Max(mat.Det(&g), 0))
}

// VertexDeterminants returns the Jacobian determinant at every corner
func (h Hypercube) VertexDeterminants(corners []r3.Vec, spacedim int) []float64 {
	out := make([]float64, h.NVertices())
	for v := range out {
		out[v] = Determinant(h.VertexJacobian(corners, v, spacedim))
	}
	return out
}

// Measure integrates |det J| over the reference cell with a tensor 2-point
// Gauss rule, exact for the multilinear geometries produced by refinement.
func (h Hypercube) Measure(corners []r3.Vec, spacedim int) float64 {
	if h.dim == 0 {
		return 1
	}
	n := 1 << h.dim
	w := math.Ldexp(1, -h.dim)
	sum := 0.0
	for q := 0; q < n; q++ {
		var c [3]float64
		for i := 0; i < h.dim; i++ {
			c[i] = gaussPoints2[q>>i&1]
		}
		xi := r3.Vec{X: c[0], Y: c[1], Z: c[2]}
		sum += w * math.Abs(Determinant(h.JacobianAt(corners, xi, spacedim)))
	}
	return sum
}

// Barycenter returns the corner average
func Barycenter(corners []r3.Vec) r3.Vec {
	var p r3.Vec
	for _, c := range corners {
		p = r3.Add(p, c)
	}
	return r3.Scale(1/float64(len(corners)), p)
}

// Diameter returns the largest corner-to-corner distance
func Diameter(corners []r3.Vec) float64 {
	d := 0.0
	for i := range corners {
		for j := i + 1; j < len(corners); j++ {
			d = math.Max(d, r3.Norm(r3.Sub(corners[i], corners[j])))
		}
	}
	return d
}
