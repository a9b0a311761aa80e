// Package field defines scalar fields with gradients and the operators used
// to build and combine them.
//
// Convention: a field is larger inside a shape. Fields built from Reparam are
// compactly supported in [0, 1] with the surface at 0.5.
package field

import "implicit-skin/internal/mathutil"

// Iso is the surface level of reparameterized fields.
const Iso = 0.5

// Field evaluates a value and its gradient at a point. Implementations must be
// free of side effects so they can be called from several goroutines.
type Field interface {
	Eval(p mathutil.Vec3) (float64, mathutil.Vec3)
}

// Func adapts a function to Field.
type Func func(p mathutil.Vec3) (float64, mathutil.Vec3)

func (f Func) Eval(p mathutil.Vec3) (float64, mathutil.Vec3) { return f(p) }

// Scalar evaluates a value only.
type Scalar interface {
	Value(p mathutil.Vec3) float64
}

// ScalarFunc adapts a function to Scalar.
type ScalarFunc func(p mathutil.Vec3) float64

func (f ScalarFunc) Value(p mathutil.Vec3) float64 { return f(p) }

// WithGradient turns a Scalar into a Field by central differences with step h.
func WithGradient(s Scalar, h float64) Field {
	if h <= 0 {
		h = 1e-4
	}
	inv := 1 / (2 * h)
	return Func(func(p mathutil.Vec3) (float64, mathutil.Vec3) {
		var g mathutil.Vec3
		for k := 0; k < 3; k++ {
			a, b := p, p
			a[k] += h
			b[k] -= h
			g[k] = (s.Value(a) - s.Value(b)) * inv
		}
		return s.Value(p), g
	})
}

// Value evaluates only the value of f.
func Value(f Field, p mathutil.Vec3) float64 {
	v, _ := f.Eval(p)
	return v
}
