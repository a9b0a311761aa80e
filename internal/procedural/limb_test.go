package procedural

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"implicit-skin/internal/mathutil"
	"implicit-skin/internal/mesh"
	"implicit-skin/internal/skeleton"
)

func TestNewLimbIsClosedAndOutward(t *testing.T) {
	l := NewLimb(LimbOptions{Bones: 2, Segments: 12, RingsPerBone: 4, CapRings: 2})
	m := &l.Mesh
	require.NoError(t, m.Validate())
	assert.Zero(t, mesh.UnmatchedEdges(m.Triangles))

	for i, p := range m.Positions {
		axis := mathutil.Vec3{0, math.Max(0, math.Min(2, p[1])), 0}
		assert.Greater(t, m.Normals[i].Dot(p.Sub(axis)), 0.0, "vertex %d", i)
	}
}

func TestNewLimbWeights(t *testing.T) {
	l := NewLimb(DefaultLimbOptions())
	skel, err := skeleton.New(l.Bones)
	require.NoError(t, err)
	require.NoError(t, skel.ValidateInfluences(l.Influences, len(l.Mesh.Positions)))
	assert.Equal(t, []int{0, 1, 2}, skel.Order())
	assert.True(t, skel.Bones[2].HasTail)

	for v, list := range l.Influences {
		sum := 0.0
		for _, in := range list {
			sum += in.Weight
		}
		assert.InDelta(t, 1, sum, 1e-12, "vertex %d", v)
	}

	// Far from joints every vertex belongs to the bone it sits on.
	assert.Equal(t, []skeleton.Influence{{Bone: 0, Weight: 1}}, weights(0.2, DefaultLimbOptions()))
	assert.Equal(t, []skeleton.Influence{{Bone: 2, Weight: 1}}, weights(2.9, DefaultLimbOptions()))
	mid := weights(1, DefaultLimbOptions())
	require.Len(t, mid, 2)
	assert.InDelta(t, 0.5, mid[0].Weight, 1e-12)
}

func TestBendPose(t *testing.T) {
	l := NewLimb(DefaultLimbOptions())
	skel, err := skeleton.New(l.Bones)
	require.NoError(t, err)

	p := BendPose(skel, 1, math.Pi/2)
	assert.True(t, p[0].IsIdentity())
	// The elbow stays put, the wrist swings to -X.
	assert.InDelta(t, 0, p[1].Apply(mathutil.Vec3{0, 1, 0}).Sub(mathutil.Vec3{0, 1, 0}).Len(), 1e-12)
	wrist := p[2].Apply(mathutil.Vec3{0, 2, 0})
	assert.InDelta(t, 0, wrist.Sub(mathutil.Vec3{-1, 1, 0}).Len(), 1e-12)

	skinned := l.Skinned(skel.BindPose())
	require.Len(t, skinned, len(l.Mesh.Positions))
	for i, q := range skinned {
		assert.InDelta(t, 0, q.Dist(l.Mesh.Positions[i]), 1e-12)
	}
}
