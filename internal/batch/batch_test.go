package batch

import (
	"context"
	"encoding/json"
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/HugoSmits86/nativewebp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"implicit-skin/internal/gltfio"
	"implicit-skin/internal/procedural"
	"implicit-skin/internal/raster"
	"implicit-skin/internal/skin"
)

func newSubject(t *testing.T) Subject {
	t.Helper()
	l := procedural.NewLimb(procedural.LimbOptions{Segments: 12, RingsPerBone: 4})
	eng, err := skin.Setup(l.Mesh, l.Bones, l.Influences, skin.DefaultOptions())
	require.NoError(t, err)
	return Subject{Mesh: l.Mesh, Influences: l.Influences, Engine: eng}
}

func TestSweep(t *testing.T) {
	subj := newSubject(t)
	skel := subj.Engine.Skeleton()

	frames, err := Sweep(skel, 1, 90, 4)
	require.NoError(t, err)
	require.Len(t, frames, 4)
	assert.Equal(t, 0.0, frames[0].Angle)
	assert.InDelta(t, 30, frames[1].Angle, 1e-12)
	assert.Equal(t, 90.0, frames[3].Angle)
	for i, tr := range frames[0].Pose {
		assert.InDelta(t, 0, tr.Apply(skel.Bones[i].Head).Dist(skel.Bones[i].Head), 1e-12)
	}

	// The hand bone head sits at y=2 and swings to -X at 90 degrees.
	head := frames[3].Pose[2].Apply(skel.Bones[2].Head)
	assert.InDelta(t, -1, head[0], 1e-9)
	assert.InDelta(t, 1, head[1], 1e-9)

	single, err := Sweep(skel, 1, 45, 0)
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, 45.0, single[0].Angle)

	_, err = Sweep(skel, 3, 10, 2)
	assert.ErrorIs(t, err, ErrJoint)
	_, err = Sweep(skel, -1, 10, 2)
	assert.ErrorIs(t, err, ErrJoint)
}

func TestRun(t *testing.T) {
	subj := newSubject(t)
	frames, err := Sweep(subj.Engine.Skeleton(), 1, 60, 3)
	require.NoError(t, err)

	dir := t.TempDir()
	render := raster.DefaultOptions()
	render.Size = 32
	cfg := Config{
		OutputDir:   dir,
		Render:      render,
		Workers:     2,
		CompareLBS:  true,
		SaveMeshes:  true,
		FrameMillis: 50,
	}
	results, err := Run(context.Background(), cfg, subj, frames)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, r := range results {
		require.NoError(t, r.Err, "frame %d", i)
		assert.Equal(t, i, r.Frame)
		assert.Equal(t, len(subj.Mesh.Positions), r.Report.Vertices)
		assert.Nil(t, r.img)

		f, err := os.Open(filepath.Join(dir, r.Image))
		require.NoError(t, err)
		img, err := nativewebp.Decode(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 32, 32), img.Bounds())

		assert.FileExists(t, filepath.Join(dir, r.LBSImage))
		m, err := gltfio.LoadMesh(filepath.Join(dir, r.Mesh))
		require.NoError(t, err)
		assert.Len(t, m.Positions, len(subj.Mesh.Positions))
	}
	// The bind frame needs no correction.
	assert.Equal(t, results[0].Report.Vertices, results[0].Report.Converged)

	info, err := os.Stat(filepath.Join(dir, AnimationFile))
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestLoadSubject(t *testing.T) {
	subj, err := LoadSubject("", skin.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "procedural limb", subj.Name)
	assert.Equal(t, len(subj.Mesh.Positions), subj.Engine.VertexCount())

	l := procedural.NewLimb(procedural.LimbOptions{Segments: 8, RingsPerBone: 3})
	path := filepath.Join(t.TempDir(), "arm.glb")
	require.NoError(t, gltfio.SaveAsset(path, &gltfio.Asset{Mesh: l.Mesh, Bones: l.Bones, Influences: l.Influences}))
	subj, err = LoadSubject(path, skin.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, len(l.Mesh.Positions), subj.Engine.VertexCount())
	assert.Equal(t, 3, subj.Engine.Skeleton().Len())

	_, err = LoadSubject(filepath.Join(t.TempDir(), "missing.glb"), skin.DefaultOptions())
	assert.Error(t, err)
}

func TestRunErrors(t *testing.T) {
	_, err := Run(context.Background(), Config{OutputDir: t.TempDir()}, Subject{}, nil)
	assert.ErrorIs(t, err, ErrSubject)

	subj := newSubject(t)
	frames, err := Sweep(subj.Engine.Skeleton(), 1, 60, 8)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, Config{OutputDir: t.TempDir(), Render: raster.DefaultOptions()}, subj, frames)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestManifest(t *testing.T) {
	results := []Result{
		{Frame: 0, Angle: 0, Image: "frame_000.webp", Report: skin.Report{Vertices: 4, Converged: 4}},
		{Frame: 1, Angle: 30, Err: os.ErrPermission, Report: skin.Report{MaxResidual: math.Pi}},
	}
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, WriteManifest(path, NewManifest(1, AnimationFile, results)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Manifest
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 1, got.Joint)
	assert.Equal(t, AnimationFile, got.Animation)
	require.Len(t, got.Frames, 2)
	assert.Equal(t, 4, got.Frames[0].Converged)
	assert.Empty(t, got.Frames[0].Error)
	assert.Equal(t, os.ErrPermission.Error(), got.Frames[1].Error)
	assert.Equal(t, math.Pi, got.Frames[1].MaxResidual)
}
