package skin

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"implicit-skin/internal/march"
	"implicit-skin/internal/mathutil"
	"implicit-skin/internal/mesh"
	"implicit-skin/internal/procedural"
	"implicit-skin/internal/skeleton"
)

func setupLimb(t *testing.T, opt Options) (*Engine, *procedural.Limb) {
	t.Helper()
	l := procedural.NewLimb(procedural.LimbOptions{Segments: 16, RingsPerBone: 8})
	e, err := Setup(l.Mesh, l.Bones, l.Influences, opt)
	require.NoError(t, err)
	return e, l
}

func bend(t *testing.T, e *Engine, l *procedural.Limb, angle float64) {
	t.Helper()
	pose := procedural.BendPose(e.Skeleton(), 1, angle)
	require.NoError(t, e.UpdateSkeletonPose(pose))
	require.NoError(t, e.UpdateBaseVertices(l.Skinned(pose)))
}

func TestBindPoseIsFixedPoint(t *testing.T) {
	e, l := setupLimb(t, DefaultOptions())
	require.NoError(t, e.UpdateSkeletonPose(e.Skeleton().BindPose()))
	require.NoError(t, e.UpdateBaseVertices(l.Mesh.Positions))

	out, rep, err := e.Evaluate(context.Background())
	require.NoError(t, err)
	require.Len(t, out, len(l.Mesh.Positions))
	for i, p := range out {
		assert.InDelta(t, 0, p.Dist(l.Mesh.Positions[i]), 1e-9, "vertex %d", i)
	}
	assert.Equal(t, len(out), rep.Converged)
	assert.Zero(t, rep.Relaxed)
}

func TestEvaluateBentLimb(t *testing.T) {
	opt := DefaultOptions()
	opt.RelaxIterations = 0
	e, l := setupLimb(t, opt)
	bend(t, e, l, math.Pi/3)

	out, rep, err := e.Evaluate(context.Background())
	require.NoError(t, err)
	require.Len(t, out, len(l.Mesh.Positions))
	assert.Equal(t, len(out), rep.Vertices)
	assert.Equal(t, rep.Vertices, rep.Converged+rep.Contact+rep.Stalled+rep.Exhausted)
	assert.Greater(t, rep.Converged, rep.Vertices/2)

	// Every vertex ends at least as close to its target as it started.
	moved := 0
	for i, p := range out {
		start := e.base[i]
		before, _ := e.comp.Eval(start)
		after, _ := e.comp.Eval(p)
		assert.LessOrEqual(t, math.Abs(after-e.targets[i]), math.Abs(before-e.targets[i])+1e-12, "vertex %d", i)
		if p.Dist(start) > 1e-4 {
			moved++
		}
	}
	assert.Positive(t, moved)

	// The upper arm, away from the elbow, is rigid.
	skinned := l.Skinned(e.Pose())
	for i, p := range l.Mesh.Positions {
		if p[1] < 0.1 {
			assert.InDelta(t, 0, out[i].Dist(skinned[i]), 1e-6, "vertex %d", i)
		}
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	e, l := setupLimb(t, DefaultOptions())
	bend(t, e, l, math.Pi/2)

	a, _, err := e.Evaluate(context.Background())
	require.NoError(t, err)
	b, _, err := e.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestVertexCountMismatchKeepsOutput(t *testing.T) {
	e, l := setupLimb(t, DefaultOptions())
	bend(t, e, l, math.Pi/4)
	before, _, err := e.Evaluate(context.Background())
	require.NoError(t, err)

	err = e.UpdateBaseVertices(l.Mesh.Positions[:10])
	assert.ErrorIs(t, err, ErrVertexCount)

	after, _, err := e.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, len(l.Mesh.Positions), e.VertexCount())
}

func TestPoseCountMismatch(t *testing.T) {
	e, _ := setupLimb(t, DefaultOptions())
	err := e.UpdateSkeletonPose(skeleton.Pose{mathutil.Identity()})
	assert.ErrorIs(t, err, skeleton.ErrPoseCount)
	assert.Len(t, e.Pose(), 3)
}

func TestSetupErrors(t *testing.T) {
	l := procedural.NewLimb(procedural.LimbOptions{Segments: 8, RingsPerBone: 2})
	m := l.Mesh
	tail := mathutil.Vec3{0, 1, 0}

	broken := *m.Clone()
	broken.Triangles = append(broken.Triangles, [3]int{0, 1, len(broken.Positions)})

	tests := []struct {
		name  string
		mesh  mesh.Mesh
		bones []skeleton.BoneDesc
		infl  [][]skeleton.Influence
		code  Code
	}{
		{"empty mesh", mesh.Mesh{}, l.Bones, nil, EmptyMesh},
		{"bad index", broken, l.Bones, l.Influences, BadTopology},
		{"no bones", m, nil, l.Influences, NoBones},
		{"bad parent", m, []skeleton.BoneDesc{{Parent: -1}, {Parent: 5}}, l.Influences, BadParent},
		{"two roots", m, []skeleton.BoneDesc{{Parent: -1}, {Parent: -1}}, l.Influences, MultipleRoots},
		{"cycle", m, []skeleton.BoneDesc{{Parent: -1, Tail: &tail}, {Parent: 2}, {Parent: 1}}, l.Influences, Cycle},
		{"influences", m, l.Bones, l.Influences[:3], InfluenceMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Setup(tt.mesh, tt.bones, tt.infl, DefaultOptions())
			assert.Nil(t, e)
			var se *SetupError
			require.True(t, errors.As(err, &se), "%v", err)
			assert.Equal(t, tt.code, se.Code)
			assert.NotEmpty(t, se.Error())
		})
	}
}

func TestZeroEngine(t *testing.T) {
	var e Engine
	_, _, err := e.Evaluate(context.Background())
	assert.ErrorIs(t, err, ErrNotSetup)
	assert.ErrorIs(t, e.UpdateBaseVertices(nil), ErrNotSetup)
	assert.ErrorIs(t, e.UpdateSkeletonPose(nil), ErrNotSetup)
	_, err = e.ExtractPreviewSurface(context.Background(), 0.5)
	assert.ErrorIs(t, err, ErrNotSetup)
}

func TestCloneIsIndependent(t *testing.T) {
	e, l := setupLimb(t, DefaultOptions())
	c := e.Clone()
	bend(t, c, l, math.Pi/2)

	out, _, err := e.Evaluate(context.Background())
	require.NoError(t, err)
	for i, p := range out {
		assert.InDelta(t, 0, p.Dist(l.Mesh.Positions[i]), 1e-9)
	}
	assert.True(t, e.Pose()[2].IsIdentity())
	assert.False(t, c.Pose()[2].IsIdentity())
}

func TestEvaluateCancelled(t *testing.T) {
	e, _ := setupLimb(t, DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := e.Evaluate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentUpdatesAndEvaluation(t *testing.T) {
	e, l := setupLimb(t, DefaultOptions())
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, _, err := e.Evaluate(context.Background())
			assert.NoError(t, err)
			assert.Len(t, out, len(l.Mesh.Positions))
		}()
	}
	bend(t, e, l, 0.4)
	wg.Wait()
}

func TestExtractPreviewSurface(t *testing.T) {
	opt := DefaultOptions()
	opt.Extract = march.Options{Resolution: 24}
	e, l := setupLimb(t, opt)
	bend(t, e, l, math.Pi/2)

	m, err := e.ExtractPreviewSurface(context.Background(), 0.5)
	require.NoError(t, err)
	require.NoError(t, m.Validate())
	assert.Zero(t, mesh.UnmatchedEdges(m.Triangles))

	// The forearm swung over to -X.
	b := m.Bounds()
	assert.Less(t, b.Min[0], -0.5)
	assert.Less(t, b.Max[1], 2.0)
}
