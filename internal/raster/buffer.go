package raster

import (
	"image"
	"math"
)

// FrameBuffer is an NRGBA color target with a depth buffer. Larger depth is
// closer to the viewer.
type FrameBuffer struct {
	img   *image.NRGBA
	depth []float64
}

// NewFrameBuffer allocates a transparent w×h target with every depth at -inf.
func NewFrameBuffer(w, h int) *FrameBuffer {
	depth := make([]float64, w*h)
	for i := range depth {
		depth[i] = math.Inf(-1)
	}
	return &FrameBuffer{img: image.NewNRGBA(image.Rect(0, 0, w, h)), depth: depth}
}

func (fb *FrameBuffer) Width() int  { return fb.img.Rect.Dx() }
func (fb *FrameBuffer) Height() int { return fb.img.Rect.Dy() }

// test reports whether depth z at pixel i passes, recording it if so.
func (fb *FrameBuffer) test(i int, z float64) bool {
	if z <= fb.depth[i] {
		return false
	}
	fb.depth[i] = z
	return true
}

func (fb *FrameBuffer) set(i int, r, g, b uint8) {
	p := fb.img.Pix[i*4 : i*4+4 : i*4+4]
	p[0], p[1], p[2], p[3] = r, g, b, 255
}

// Image returns the color target. It shares memory with the buffer.
func (fb *FrameBuffer) Image() *image.NRGBA {
	return fb.img
}
