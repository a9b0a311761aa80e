package raster

import (
	"math"

	"implicit-skin/internal/mathutil"
)

// DefaultFOV is the vertical field of view, in degrees, of perspective
// cameras that leave FOV unset.
const DefaultFOV = 30.0

// Camera orients the scene with View and projects it orthographically, or
// with perspective when Perspective is set.
type Camera struct {
	View        mathutil.Mat3
	Perspective bool
	FOV         float64
}

// DefaultCamera looks at the scene from the front-right, slightly above.
func DefaultCamera() Camera {
	return Camera{View: mathutil.PreviewView}
}

// projection maps view-space points to pixels so that frame fills a
// size×size target minus margin pixels on each side.
type projection struct {
	cam     Camera
	center  mathutil.Vec3
	scale   float64
	half    float64
	camDist float64
	zCenter float64
}

func (c Camera) fit(frame mathutil.Box, size, margin int) projection {
	lo, hi := mathutil.EmptyBox().Min, mathutil.EmptyBox().Max
	for i := 0; i < 8; i++ {
		corner := frame.Min
		if i&1 != 0 {
			corner[0] = frame.Max[0]
		}
		if i&2 != 0 {
			corner[1] = frame.Max[1]
		}
		if i&4 != 0 {
			corner[2] = frame.Max[2]
		}
		t := c.View.MulVec3(corner)
		lo, hi = mathutil.Min(lo, t), mathutil.Max(hi, t)
	}

	p := projection{cam: c, center: mathutil.Lerp(lo, hi, 0.5), half: float64(size) / 2}
	span := math.Max(math.Max(hi[0]-lo[0], hi[1]-lo[1]), 0.001)
	p.scale = float64(size-2*margin) / span

	if c.Perspective {
		fov := c.FOV
		if fov == 0 {
			fov = DefaultFOV
		}
		xyMax := math.Max(span/2, 0.001)
		p.camDist = xyMax/math.Tan(mathutil.Deg2Rad(fov/2)) + (hi[2]-lo[2])/2
		p.zCenter = p.center[2]
	}
	return p
}

// point returns pixel x, pixel y and depth (larger is closer).
func (p *projection) point(v mathutil.Vec3) (float64, float64, float64) {
	t := p.cam.View.MulVec3(v)
	x, y := t[0]-p.center[0], t[1]-p.center[1]
	if p.cam.Perspective {
		depth := math.Max(p.camDist-(t[2]-p.zCenter), 0.1)
		factor := p.camDist / depth
		x *= factor
		y *= factor
	}
	return x*p.scale + p.half, -y*p.scale + p.half, t[2]
}
