package field

// Reparam maps a signed distance d (negative inside) to a compactly supported
// value: 1 for d <= -r, 0 for d >= r and 0.5 on the surface. The profile is a
// quintic with zero first derivative at both ends. The second result is
// d(value)/dd. r must be positive.
func Reparam(d, r float64) (float64, float64) {
	x := d / r
	switch {
	case x <= -1:
		return 1, 0
	case x >= 1:
		return 0, 0
	}
	x2 := x * x
	v := x*(x2*(-3.0/16*x2+5.0/8)-15.0/16) + 0.5
	w := x2 - 1
	return v, -15.0 / 16 * w * w / r
}
