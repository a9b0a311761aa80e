package raster

import (
	"fmt"
	"image"
	"math"

	"implicit-skin/internal/mathutil"
)

// Shading selects how triangle pixels are colored.
type Shading int

const (
	// ShadeFlat lights each face with its own normal.
	ShadeFlat Shading = iota
	// ShadeSmooth lights per pixel with interpolated vertex normals.
	ShadeSmooth
	// ShadeMatcap looks interpolated normals up in a matcap texture.
	ShadeMatcap
)

// ParseShading accepts "flat", "smooth" and "matcap".
func ParseShading(s string) (Shading, error) {
	switch s {
	case "", "flat":
		return ShadeFlat, nil
	case "smooth":
		return ShadeSmooth, nil
	case "matcap":
		return ShadeMatcap, nil
	}
	return 0, fmt.Errorf("raster: unknown shading %q", s)
}

// Vertex is a projected vertex: pixel coordinates, depth and view-space
// normal.
type Vertex struct {
	X, Y, Z float64
	N       mathutil.Vec3
}

// RasterizeTriangle fills one projected triangle with depth testing.
// The inner loop does not allocate.
func RasterizeTriangle(
	fb *FrameBuffer,
	v [3]Vertex,
	color [3]uint8,
	mode Shading,
	matcap *image.NRGBA,
	lc *LightConfig,
) {
	x0, y0, z0 := v[0].X, v[0].Y, v[0].Z
	x1, y1, z1 := v[1].X, v[1].Y, v[1].Z
	x2, y2, z2 := v[2].X, v[2].Y, v[2].Z

	if mode == ShadeMatcap && matcap == nil {
		mode = ShadeSmooth
	}

	// Face normal in view space. Pixel Y points down, which mirrors the
	// screen-space cross product.
	e1x, e1y, e1z := x1-x0, y1-y0, z1-z0
	e2x, e2y, e2z := x2-x0, y2-y0, z2-z0
	face := mathutil.Vec3{
		-(e1y*e2z - e1z*e2y),
		e1z*e2x - e1x*e2z,
		-(e1x*e2y - e1y*e2x),
	}
	if face.Len() < 1e-8 {
		return
	}
	face = face.Normalize()
	if face[2] < 0 {
		face = face.Scale(-1)
	}
	flatR, flatG, flatB := lc.Tonemap(color[0], color[1], color[2], lc.Shade(face))

	// Bounding box
	minX := max(int(math.Min(math.Min(x0, x1), x2)), 0)
	maxX := min(int(math.Max(math.Max(x0, x1), x2))+1, fb.Width()-1)
	minY := max(int(math.Min(math.Min(y0, y1), y2)), 0)
	maxY := min(int(math.Max(math.Max(y0, y1), y2))+1, fb.Height()-1)
	if minX > maxX || minY > maxY {
		return
	}

	// Barycentric setup
	det := (y1-y2)*(x0-x2) + (x2-x1)*(y0-y2)
	if det > -1e-8 && det < 1e-8 {
		return
	}
	invDet := 1.0 / det

	// Precompute edge deltas
	dy12 := y1 - y2
	dx21 := x2 - x1
	dy20 := y2 - y0
	dx02 := x0 - x2

	for sy := minY; sy <= maxY; sy++ {
		dsy := float64(sy) - y2
		rowOff := sy * fb.Width()
		for sx := minX; sx <= maxX; sx++ {
			dsx := float64(sx) - x2
			w0 := (dy12*dsx + dx21*dsy) * invDet
			w1 := (dy20*dsx + dx02*dsy) * invDet
			w2 := 1.0 - w0 - w1

			if w0 < -0.001 || w1 < -0.001 || w2 < -0.001 {
				continue
			}

			z := w0*z0 + w1*z1 + w2*z2
			idx := rowOff + sx
			if !fb.test(idx, z) {
				continue
			}

			cr, cg, cb := flatR, flatG, flatB
			if mode != ShadeFlat {
				n := v[0].N.Scale(w0).Add(v[1].N.Scale(w1)).Add(v[2].N.Scale(w2)).Normalize()
				if n == (mathutil.Vec3{}) {
					n = face
				}
				if mode == ShadeMatcap {
					cr, cg, cb = SampleMatcap(matcap, n)
				} else {
					cr, cg, cb = lc.Tonemap(color[0], color[1], color[2], lc.Shade(n))
				}
			}

			fb.set(idx, cr, cg, cb)
		}
	}
}
