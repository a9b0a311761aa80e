package raster

import (
	"image"
	"math"

	"implicit-skin/internal/mathutil"
)

// SampleMatcap looks up a view-space unit normal in a matcap texture. The
// normal's XY maps onto the inscribed disc; back-facing normals are
// mirrored to the front.
func SampleMatcap(tex *image.NRGBA, n mathutil.Vec3) (r, g, b uint8) {
	if n[2] < 0 {
		n[2] = -n[2]
	}
	n = n.Normalize()
	c := bilinear(tex, n[0]*0.49+0.5, 0.5-n[1]*0.49)
	return c[0], c[1], c[2]
}

// bilinear filters tex at normalized coordinates, clamping to the edge.
func bilinear(tex *image.NRGBA, u, v float64) (c [4]uint8) {
	b := tex.Rect
	fx := math.Min(math.Max(u, 0), 1) * float64(b.Dx()-1)
	fy := math.Min(math.Max(v, 0), 1) * float64(b.Dy()-1)
	x0, y0 := int(fx), int(fy)
	x1, y1 := min(x0+1, b.Dx()-1), min(y0+1, b.Dy()-1)
	dx, dy := fx-float64(x0), fy-float64(y0)

	i00 := tex.PixOffset(b.Min.X+x0, b.Min.Y+y0)
	i10 := tex.PixOffset(b.Min.X+x1, b.Min.Y+y0)
	i01 := tex.PixOffset(b.Min.X+x0, b.Min.Y+y1)
	i11 := tex.PixOffset(b.Min.X+x1, b.Min.Y+y1)
	for k := 0; k < 4; k++ {
		top := float64(tex.Pix[i00+k])*(1-dx) + float64(tex.Pix[i10+k])*dx
		bot := float64(tex.Pix[i01+k])*(1-dx) + float64(tex.Pix[i11+k])*dx
		c[k] = clamp255(top*(1-dy) + bot*dy)
	}
	return c
}
