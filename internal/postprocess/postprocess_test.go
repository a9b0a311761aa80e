package postprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

func TestDownsample(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	red := color.NRGBA{R: 255, A: 255}
	fillRect(img, img.Bounds(), red)

	out := Downsample(img, 2)
	require.Equal(t, image.Rect(0, 0, 32, 32), out.Bounds())
	assert.Equal(t, red, out.NRGBAAt(16, 16))

	assert.Same(t, img, Downsample(img, 1))
}

func TestDownsampleKeepsEdgeColor(t *testing.T) {
	// Opaque white square on a transparent black background. Edge pixels
	// get partial alpha but must stay white after unpremultiplying.
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	fillRect(img, image.Rect(16, 16, 48, 48), color.NRGBA{255, 255, 255, 255})

	out := Downsample(img, 4)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			c := out.NRGBAAt(x, y)
			if c.A > 16 {
				assert.GreaterOrEqual(t, c.R, uint8(240), "pixel %d,%d", x, y)
			}
		}
	}
}

func TestOpaqueBounds(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 20, 10))
	_, ok := OpaqueBounds(img)
	assert.False(t, ok)

	img.SetNRGBA(3, 4, color.NRGBA{A: 1})
	r, ok := OpaqueBounds(img)
	require.True(t, ok)
	assert.Equal(t, image.Rect(3, 4, 4, 5), r)

	img.SetNRGBA(15, 8, color.NRGBA{A: 255})
	r, _ = OpaqueBounds(img)
	assert.Equal(t, image.Rect(3, 4, 16, 9), r)
}

func TestCropAndCenter(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	fillRect(img, image.Rect(0, 0, 40, 20), color.NRGBA{G: 255, A: 255})

	out := CropAndCenter(img, 64, 0.5)
	require.Equal(t, image.Rect(0, 0, 64, 64), out.Bounds())

	r, ok := OpaqueBounds(out)
	require.True(t, ok)
	// 40x20 scaled so the long side spans 32 pixels, centered.
	assert.InDelta(t, 32, r.Dx(), 2)
	assert.InDelta(t, 16, r.Dy(), 2)
	assert.InDelta(t, 32, (r.Min.X+r.Max.X)/2, 1)
	assert.InDelta(t, 32, (r.Min.Y+r.Max.Y)/2, 1)

	empty := CropAndCenter(image.NewNRGBA(image.Rect(0, 0, 8, 8)), 16, 0.8)
	_, ok = OpaqueBounds(empty)
	assert.False(t, ok)
}
