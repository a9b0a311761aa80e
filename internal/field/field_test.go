package field

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"implicit-skin/internal/mathutil"
)

func TestReparam(t *testing.T) {
	tests := []struct {
		d, want float64
	}{
		{-2, 1},
		{-1, 1},
		{0, 0.5},
		{1, 0},
		{3, 0},
	}
	for _, tt := range tests {
		v, _ := Reparam(tt.d, 1)
		assert.InDelta(t, tt.want, v, 1e-12, "d=%g", tt.d)
	}

	// Analytic derivative matches finite differences and is never positive.
	const h = 1e-6
	for d := -0.95; d < 1; d += 0.1 {
		_, dv := Reparam(d, 0.5)
		a, _ := Reparam(d+h, 0.5)
		b, _ := Reparam(d-h, 0.5)
		assert.InDelta(t, (a-b)/(2*h), dv, 1e-5, "d=%g", d)
		assert.LessOrEqual(t, dv, 0.0)
	}
}

func TestWithGradient(t *testing.T) {
	f := WithGradient(ScalarFunc(func(p mathutil.Vec3) float64 {
		return p[0]*p[0] + 2*p[1] - p[2]
	}), 1e-5)
	v, g := f.Eval(mathutil.Vec3{3, 0, 0})
	assert.InDelta(t, 9, v, 1e-12)
	assert.InDelta(t, 6, g[0], 1e-6)
	assert.InDelta(t, 2, g[1], 1e-6)
	assert.InDelta(t, -1, g[2], 1e-6)
}

func TestUnionTieKeepsFirst(t *testing.T) {
	g1 := mathutil.Vec3{1, 0, 0}
	g2 := mathutil.Vec3{0, 1, 0}

	v, g := Union(0.4, g1, 0.4, g2)
	assert.Equal(t, 0.4, v)
	assert.Equal(t, g1, g)

	v, g = Union(0.4, g1, 0.6, g2)
	assert.Equal(t, 0.6, v)
	assert.Equal(t, g2, g)
}

func TestBlendPassthrough(t *testing.T) {
	b := Blend{Power: 3}
	g1 := mathutil.Vec3{1, 2, 3}

	v, g := b.Combine(0.7, g1, 0, mathutil.Vec3{9, 9, 9})
	assert.Equal(t, 0.7, v)
	assert.Equal(t, g1, g)

	v, g = b.Combine(0, mathutil.Vec3{9, 9, 9}, 0.7, g1)
	assert.Equal(t, 0.7, v)
	assert.Equal(t, g1, g)
}

func TestBlendGradient(t *testing.T) {
	// Two overlapping fields of x; the blend of f1(x), f2(x) must have the
	// chain-rule derivative reported by Combine.
	f1 := func(x float64) (float64, float64) { return Reparam(x, 1) }
	f2 := func(x float64) (float64, float64) {
		v, d := Reparam(-x+0.3, 1)
		return v, -d
	}
	b := Blend{}
	blend := func(x float64) (float64, float64) {
		v1, d1 := f1(x)
		v2, d2 := f2(x)
		v, g := b.Combine(v1, mathutil.Vec3{d1}, v2, mathutil.Vec3{d2})
		return v, g[0]
	}

	const h = 1e-6
	for x := -0.6; x <= 0.9; x += 0.15 {
		_, d := blend(x)
		a, _ := blend(x + h)
		c, _ := blend(x - h)
		assert.InDelta(t, (a-c)/(2*h), d, 1e-5, "x=%g", x)
	}

	v, _ := b.Combine(0.5, mathutil.Vec3{}, 0.5, mathutil.Vec3{})
	assert.InDelta(t, 0.5*math.Cbrt(2), v, 1e-12)
}

func spherePoints() []mathutil.Vec3 {
	var pts []mathutil.Vec3
	for x := -1; x <= 1; x++ {
		for y := -1; y <= 1; y++ {
			for z := -1; z <= 1; z++ {
				if x == 0 && y == 0 && z == 0 {
					continue
				}
				pts = append(pts, mathutil.Vec3{float64(x), float64(y), float64(z)}.Normalize())
			}
		}
	}
	return pts
}

func TestFitHRBFInterpolates(t *testing.T) {
	pts := spherePoints()
	h, err := FitHRBF(pts, pts)
	require.NoError(t, err)

	for i, p := range pts {
		v, g := h.Eval(p)
		assert.InDelta(t, 0, v, 1e-6, "sample %d value", i)
		for k := 0; k < 3; k++ {
			assert.InDelta(t, p[k], g[k], 1e-6, "sample %d gradient", i)
		}
	}

	inside, _ := h.Eval(mathutil.Vec3{})
	outside, _ := h.Eval(mathutil.Vec3{2, 0.1, 0})
	assert.Less(t, inside, 0.0)
	assert.Greater(t, outside, 0.0)
}

func TestFitHRBFRejectsBadInput(t *testing.T) {
	_, err := FitHRBF([]mathutil.Vec3{{0, 0, 0}}, []mathutil.Vec3{{1, 0, 0}})
	assert.ErrorIs(t, err, ErrTooFewSamples)

	// Duplicate centers make the system singular.
	p := []mathutil.Vec3{{1, 0, 0}, {1, 0, 0}}
	_, err = FitHRBF(p, p)
	assert.ErrorIs(t, err, ErrSingular)
}
