package raster

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"implicit-skin/internal/mathutil"
	"implicit-skin/internal/mesh"
	"implicit-skin/internal/procedural"
)

func limbMesh() *mesh.Mesh {
	l := procedural.NewLimb(procedural.LimbOptions{Segments: 12, RingsPerBone: 4})
	return &l.Mesh
}

func alphaAt(img *image.NRGBA, x, y int) uint8 {
	return img.Pix[img.PixOffset(x, y)+3]
}

func TestRenderMeshCoversCenter(t *testing.T) {
	for _, cam := range []Camera{DefaultCamera(), {View: mathutil.SideView, Perspective: true}} {
		opt := DefaultOptions()
		opt.Size, opt.Supersample, opt.Camera = 64, 2, cam
		img := RenderMesh(limbMesh(), opt)

		require.Equal(t, image.Rect(0, 0, 128, 128), img.Bounds())
		assert.Equal(t, uint8(255), alphaAt(img, 64, 64))
		assert.Zero(t, alphaAt(img, 0, 0))
		assert.Zero(t, alphaAt(img, 127, 127))
	}
}

func TestRenderEmptyMesh(t *testing.T) {
	img := RenderMesh(&mesh.Mesh{}, Options{Size: 8})
	assert.Equal(t, 8, img.Bounds().Dx())
	for i := 3; i < len(img.Pix); i += 4 {
		assert.Zero(t, img.Pix[i])
	}
}

func TestMatcapShading(t *testing.T) {
	tex := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			tex.SetNRGBA(x, y, color.NRGBA{10, 200, 30, 255})
		}
	}
	opt := DefaultOptions()
	opt.Size, opt.Supersample = 48, 1
	opt.Shading, opt.Matcap = ShadeMatcap, tex
	img := RenderMesh(limbMesh(), opt)

	seen := 0
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i+3] == 0 {
			continue
		}
		seen++
		assert.Equal(t, []uint8{10, 200, 30}, img.Pix[i:i+3])
	}
	assert.Positive(t, seen)
}

func TestFixedFrameKeepsScale(t *testing.T) {
	m := limbMesh()
	opt := DefaultOptions()
	opt.Size, opt.Supersample = 64, 1

	fb := func(o Options) int {
		img := RenderMesh(m, o)
		n := 0
		for i := 3; i < len(img.Pix); i += 4 {
			if img.Pix[i] != 0 {
				n++
			}
		}
		return n
	}
	fitted := fb(opt)
	opt.Frame = m.Bounds().Pad(3)
	framed := fb(opt)
	assert.Less(t, framed, fitted)
	assert.Positive(t, framed)
}

func TestParseShading(t *testing.T) {
	for s, want := range map[string]Shading{"": ShadeFlat, "flat": ShadeFlat, "smooth": ShadeSmooth, "matcap": ShadeMatcap} {
		got, err := ParseShading(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseShading("toon")
	assert.Error(t, err)
}

func TestShadeIsTwoSided(t *testing.T) {
	lc := DefaultLightConfig()
	n := mathutil.Vec3{0.3, 0, 0.9}.Normalize()
	// Only the specular term depends on orientation.
	assert.Greater(t, lc.Shade(n), 0.0)
	assert.InDelta(t, lc.Shade(mathutil.Vec3{1, 0, 0}), lc.Shade(mathutil.Vec3{-1, 0, 0}), 0.1)
}

func TestDepthTest(t *testing.T) {
	lc := DefaultLightConfig()
	tri := func(z float64) [3]Vertex {
		n := mathutil.Vec3{0, 0, 1}
		return [3]Vertex{{X: 1, Y: 1, Z: z, N: n}, {X: 1, Y: 14, Z: z, N: n}, {X: 14, Y: 1, Z: z, N: n}}
	}
	far, near := [3]uint8{255, 0, 0}, [3]uint8{0, 0, 255}

	fb := NewFrameBuffer(16, 16)
	RasterizeTriangle(fb, tri(1), near, ShadeFlat, nil, &lc)
	RasterizeTriangle(fb, tri(-1), far, ShadeFlat, nil, &lc)
	c := fb.Image().NRGBAAt(4, 4)
	assert.Equal(t, uint8(255), c.A)
	assert.Zero(t, c.R)
	assert.Positive(t, c.B)
	assert.Zero(t, fb.Image().NRGBAAt(15, 15).A)
}
