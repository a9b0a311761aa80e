package mathutil

import "math"

// Epsilon guards divisions by lengths and determinants.
const Epsilon = 1e-12

// Preview camera matrices. Scenes are Y-up, right-handed.
var (
	// PreviewView looks at the model from the front-right, slightly above:
	// Rx(-20°) @ Ry(-35°)
	PreviewView = Mat3Mul(RotX(Deg2Rad(-20)), RotY(Deg2Rad(-35)))

	// SideView looks down the +X axis.
	SideView = RotY(math.Pi / -2)
)

// AngleBetween returns the unsigned angle in radians between a and b.
// Zero vectors yield 0.
func AngleBetween(a, b Vec3) float64 {
	la, lb := a.Len(), b.Len()
	if la < Epsilon || lb < Epsilon {
		return 0
	}
	c := a.Dot(b) / (la * lb)
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	return math.Acos(c)
}
