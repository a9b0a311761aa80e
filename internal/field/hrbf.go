package field

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"implicit-skin/internal/mathutil"
)

var (
	ErrTooFewSamples = errors.New("field: too few HRBF samples")
	ErrSingular      = errors.New("field: HRBF system is singular")
)

// HRBF is a Hermite radial basis function interpolant with kernel φ(r) = r³:
//
//	f(x) = Σ αj φ(|x-cj|) - βj·∇φ(x-cj)
//
// It vanishes at every center and its gradient equals the center normal, so
// it is a signed pseudo-distance that is negative inside.
type HRBF struct {
	Centers []mathutil.Vec3
	Alpha   []float64
	Beta    []mathutil.Vec3
}

func kernelGrad(v mathutil.Vec3) mathutil.Vec3 {
	return v.Scale(3 * v.Len())
}

// kernelHessMul returns H(v)·b where H = 3(|v| I + v vᵀ/|v|).
func kernelHessMul(v, b mathutil.Vec3) mathutil.Vec3 {
	r := v.Len()
	if r < mathutil.Epsilon {
		return mathutil.Vec3{}
	}
	return b.Scale(3*r).AddScaled(v, 3*v.Dot(b)/r)
}

// kernelHess returns H(v) row-major.
func kernelHess(v mathutil.Vec3) mathutil.Mat3 {
	r := v.Len()
	if r < mathutil.Epsilon {
		return mathutil.Mat3{}
	}
	var h mathutil.Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			h[i*3+j] = 3 * v[i] * v[j] / r
		}
		h[i*3+i] += 3 * r
	}
	return h
}

// FitHRBF solves for the weights that interpolate zero values and the given
// normals at points. Normals should be unit length and point outward.
func FitHRBF(points, normals []mathutil.Vec3) (*HRBF, error) {
	n := len(points)
	if n < 2 || len(normals) != n {
		return nil, fmt.Errorf("%d points, %d normals: %w", n, len(normals), ErrTooFewSamples)
	}

	a := mat.NewDense(4*n, 4*n, nil)
	b := mat.NewVecDense(4*n, nil)
	for i := 0; i < n; i++ {
		ri := 4 * i
		for j := 0; j < n; j++ {
			cj := 4 * j
			v := points[i].Sub(points[j])
			r := v.Len()
			g := kernelGrad(v)
			h := kernelHess(v)

			// f(ci) row
			a.Set(ri, cj, r*r*r)
			for k := 0; k < 3; k++ {
				a.Set(ri, cj+1+k, -g[k])
			}
			// ∇f(ci) rows
			for row := 0; row < 3; row++ {
				a.Set(ri+1+row, cj, g[row])
				for k := 0; k < 3; k++ {
					a.Set(ri+1+row, cj+1+k, -h[row*3+k])
				}
			}
		}
		for k := 0; k < 3; k++ {
			b.SetVec(ri+1+k, normals[i][k])
		}
	}

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		// mat.Condition is returned for ill-conditioned systems; the answer
		// is not trusted either way.
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}

	h := &HRBF{
		Centers: append([]mathutil.Vec3(nil), points...),
		Alpha:   make([]float64, n),
		Beta:    make([]mathutil.Vec3, n),
	}
	for j := 0; j < n; j++ {
		h.Alpha[j] = x.AtVec(4 * j)
		h.Beta[j] = mathutil.Vec3{x.AtVec(4*j + 1), x.AtVec(4*j + 2), x.AtVec(4*j + 3)}
		if math.IsNaN(h.Alpha[j]) || !h.Beta[j].IsFinite() {
			return nil, ErrSingular
		}
	}
	return h, nil
}

// Eval returns the signed pseudo-distance and its gradient.
func (h *HRBF) Eval(p mathutil.Vec3) (float64, mathutil.Vec3) {
	var f float64
	var grad mathutil.Vec3
	for j, c := range h.Centers {
		v := p.Sub(c)
		r := v.Len()
		g := kernelGrad(v)
		f += h.Alpha[j]*r*r*r - h.Beta[j].Dot(g)
		grad = grad.AddScaled(g, h.Alpha[j]).Sub(kernelHessMul(v, h.Beta[j]))
	}
	return f, grad
}
