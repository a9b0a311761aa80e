package field

import (
	"math"

	"implicit-skin/internal/mathutil"
)

// Union is the sharp union: the larger value and its gradient. On a tie the
// first operand wins.
func Union(f1 float64, g1 mathutil.Vec3, f2 float64, g2 mathutil.Vec3) (float64, mathutil.Vec3) {
	if f2 > f1 {
		return f2, g2
	}
	return f1, g1
}

// Blend is a p-norm blend g = (f1^p + f2^p)^(1/p) for non-negative fields.
// Its weights (fi/g)^(p-1) depend only on the operand values, and where one
// operand vanishes the other passes through unchanged, so the result is
// continuous across support boundaries.
type Blend struct {
	Power float64
}

// DefaultBlendPower is used when Blend.Power is not greater than 1.
const DefaultBlendPower = 3

// Combine blends two value/gradient pairs.
func (b Blend) Combine(f1 float64, g1 mathutil.Vec3, f2 float64, g2 mathutil.Vec3) (float64, mathutil.Vec3) {
	if f2 <= 0 {
		return f1, g1
	}
	if f1 <= 0 {
		return f2, g2
	}
	p := b.Power
	if p <= 1 {
		p = DefaultBlendPower
	}
	g := math.Pow(math.Pow(f1, p)+math.Pow(f2, p), 1/p)
	w1 := math.Pow(f1/g, p-1)
	w2 := math.Pow(f2/g, p-1)
	return g, g1.Scale(w1).AddScaled(g2, w2)
}
