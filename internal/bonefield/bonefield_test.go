package bonefield

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"implicit-skin/internal/mathutil"
	"implicit-skin/internal/skeleton"
)

var testBind = mathutil.Transform{Rot: mathutil.RotZ(0.3), Pos: mathutil.Vec3{1, 2, 3}}

func testBone(localTail *mathutil.Vec3) skeleton.Bone {
	b := skeleton.Bone{ID: 1, Name: "arm", Bind: testBind, InvBind: testBind.Inverse(), Head: testBind.Pos}
	if localTail != nil {
		b.Tail = testBind.Apply(*localTail)
		b.HasTail = true
	}
	return b
}

// tube returns object-space samples on a cylinder of radius r around the
// local x axis between x=0.25 and x=1.75.
func tube(r float64) []Sample {
	var out []Sample
	for x := 0.25; x < 1.8; x += 0.25 {
		for k := 0; k < 8; k++ {
			a := float64(k) * math.Pi / 4
			n := mathutil.Vec3{0, math.Cos(a), math.Sin(a)}
			p := mathutil.Vec3{x, 0, 0}.AddScaled(n, r)
			out = append(out, Sample{Pos: testBind.Apply(p), Normal: testBind.ApplyVec(n)})
		}
	}
	return out
}

func TestFitNone(t *testing.T) {
	f := Fit(testBone(nil), nil, DefaultOptions())
	assert.Equal(t, KindNone, f.Kind)
	v, g := f.EvalLocal(mathutil.Vec3{})
	assert.Zero(t, v)
	assert.Equal(t, mathutil.Vec3{}, g)
	assert.False(t, f.Place(testBind).Reaches(testBind.Pos))
}

func TestFitCapsule(t *testing.T) {
	tail := mathutil.Vec3{2, 0, 0}
	f := Fit(testBone(&tail), tube(0.5), Options{Shape: ShapeCapsule})
	require.Equal(t, KindCapsule, f.Kind)
	assert.InDelta(t, 0.5, f.Radius, 1e-9)
	assert.InDelta(t, 0.5, f.Support, 1e-9)

	v, _ := f.EvalLocal(mathutil.Vec3{1, 0.5, 0})
	assert.InDelta(t, 0.5, v, 1e-9)
	v, _ = f.EvalLocal(mathutil.Vec3{1, 0, 0})
	assert.InDelta(t, 1, v, 1e-9)
	v, _ = f.EvalLocal(mathutil.Vec3{1, 2, 0})
	assert.Zero(t, v)
}

func TestFitZeroLengthIsPoint(t *testing.T) {
	head := mathutil.Vec3{}
	f := Fit(testBone(&head), tube(0.5), DefaultOptions())
	require.Equal(t, KindPoint, f.Kind)
	assert.Greater(t, f.Radius, 0.5)

	v, g := f.EvalLocal(mathutil.Vec3{f.Radius, 0, 0})
	assert.InDelta(t, 0.5, v, 1e-9)
	assert.Less(t, g[0], 0.0, "gradient points inward")
	assert.True(t, g.IsFinite())

	// Exactly at the head the gradient is undefined and reported as zero.
	_, g = f.EvalLocal(mathutil.Vec3{})
	assert.Equal(t, mathutil.Vec3{}, g)
}

func TestFitLeafUsesPrincipalAxis(t *testing.T) {
	f := Fit(testBone(nil), tube(0.5), Options{Shape: ShapeCapsule})
	require.Equal(t, KindCapsule, f.Kind)
	assert.InDelta(t, 1.75, f.Tail[0], 1e-6)
	assert.InDelta(t, 0, f.Tail[1], 1e-6)
	assert.InDelta(t, 0, f.Tail[2], 1e-6)
}

func TestFitHRBF(t *testing.T) {
	tail := mathutil.Vec3{2, 0, 0}
	f := Fit(testBone(&tail), tube(0.5), DefaultOptions())
	require.Equal(t, KindHRBF, f.Kind)
	assert.LessOrEqual(t, len(f.HRBF.Centers), DefaultOptions().MaxHRBFSamples)

	for i, c := range f.HRBF.Centers {
		v, _ := f.EvalLocal(c)
		assert.InDelta(t, 0.5, v, 1e-6, "center %d", i)
	}
	mid, _ := f.EvalLocal(mathutil.Vec3{1, 0, 0})
	assert.Greater(t, mid, 0.5)

	far, _ := f.EvalLocal(mathutil.Vec3{1, 0, f.Bound + 1})
	assert.Zero(t, far)
}

func TestPlacedMatchesLocal(t *testing.T) {
	tail := mathutil.Vec3{2, 0, 0}
	f := Fit(testBone(&tail), tube(0.5), Options{Shape: ShapeCapsule})

	pose := mathutil.Transform{Rot: mathutil.RotX(0.8), Pos: mathutil.Vec3{0, -1, 0}}
	world := pose.Mul(testBind)
	pl := f.Place(world)

	local := mathutil.Vec3{1.2, 0.4, 0.1}
	p := world.Apply(local)
	v, g := pl.Eval(p)
	vl, _ := f.EvalLocal(local)
	assert.InDelta(t, vl, v, 1e-12)
	assert.True(t, pl.Reaches(p))

	const h = 1e-6
	for k := 0; k < 3; k++ {
		a, b := p, p
		a[k] += h
		b[k] -= h
		va, _ := pl.Eval(a)
		vb, _ := pl.Eval(b)
		assert.InDelta(t, (va-vb)/(2*h), g[k], 1e-5, "axis %d", k)
	}

	box := pl.Bounds()
	assert.True(t, box.Contains(p))
}

func TestFarthestPointsSkipsDuplicates(t *testing.T) {
	s := []Sample{{Pos: mathutil.Vec3{0, 0, 0}}, {Pos: mathutil.Vec3{0, 0, 0}}, {Pos: mathutil.Vec3{1, 0, 0}}}
	got := farthestPoints(s, 10)
	assert.Len(t, got, 2)

	got = farthestPoints(tube(1), 5)
	assert.Len(t, got, 5)
}
