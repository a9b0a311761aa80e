// Package bonefield fits and evaluates the implicit field attached to one
// bone. Fields live in bone-local space: they are fitted once from bind-pose
// samples and only re-placed when the bone moves.
package bonefield

import (
	"fmt"
	"math"

	"implicit-skin/internal/field"
	"implicit-skin/internal/mathutil"
)

// Kind selects the shape of a bone field.
type Kind int

const (
	// KindNone has no geometry and evaluates to zero everywhere.
	KindNone Kind = iota
	// KindPoint is a sphere around the bone head, used for zero-length bones.
	KindPoint
	// KindCapsule is a rounded cylinder around the head-tail segment.
	KindCapsule
	// KindHRBF is a Hermite RBF interpolant of the bone's skin samples.
	KindHRBF
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindPoint:
		return "point"
	case KindCapsule:
		return "capsule"
	case KindHRBF:
		return "hrbf"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Field is a fitted bone field in bone-local coordinates.
type Field struct {
	Kind Kind

	// Segment in bone-local space. Head is the origin for fitted fields.
	Head, Tail mathutil.Vec3

	// Radius is the skin distance from the segment (point and capsule).
	Radius float64
	// Support is the half-width of the falloff band around the surface.
	Support float64

	HRBF *field.HRBF

	// Center and Bound describe a local sphere outside which the field is 0.
	Center mathutil.Vec3
	Bound  float64
}

// EvalLocal evaluates the field at a bone-local point.
func (f *Field) EvalLocal(p mathutil.Vec3) (float64, mathutil.Vec3) {
	switch f.Kind {
	case KindPoint:
		return f.radial(p, f.Head)
	case KindCapsule:
		return f.radial(p, closestOnSegment(p, f.Head, f.Tail))
	case KindHRBF:
		if p.Sub(f.Center).Len2() > f.Bound*f.Bound {
			return 0, mathutil.Vec3{}
		}
		d, g := f.HRBF.Eval(p)
		v, dv := field.Reparam(d, f.Support)
		return v, g.Scale(dv)
	}
	return 0, mathutil.Vec3{}
}

// radial evaluates a field whose distance is measured from q.
func (f *Field) radial(p, q mathutil.Vec3) (float64, mathutil.Vec3) {
	dir := p.Sub(q)
	l := dir.Len()
	v, dv := field.Reparam(l-f.Radius, f.Support)
	if l < mathutil.Epsilon || dv == 0 {
		return v, mathutil.Vec3{}
	}
	return v, dir.Scale(dv / l)
}

func closestOnSegment(p, a, b mathutil.Vec3) mathutil.Vec3 {
	ab := b.Sub(a)
	l2 := ab.Len2()
	if l2 < mathutil.Epsilon {
		return a
	}
	t := p.Sub(a).Dot(ab) / l2
	t = math.Max(0, math.Min(1, t))
	return a.AddScaled(ab, t)
}

// Placed is a field positioned by a bone's current world transform. It
// implements field.Field in object space.
type Placed struct {
	F     *Field
	World mathutil.Transform
	Inv   mathutil.Transform

	// Center is the object-space center of the bounding sphere.
	Center mathutil.Vec3
}

// Place positions f with the bone-local to object transform world.
func (f *Field) Place(world mathutil.Transform) Placed {
	return Placed{F: f, World: world, Inv: world.Inverse(), Center: world.Apply(f.Center)}
}

// Eval maps p into bone space, evaluates, and rotates the gradient back.
func (pl Placed) Eval(p mathutil.Vec3) (float64, mathutil.Vec3) {
	v, g := pl.F.EvalLocal(pl.Inv.Apply(p))
	return v, pl.World.ApplyVec(g)
}

// Reaches reports whether p lies inside the field's bounding sphere.
func (pl Placed) Reaches(p mathutil.Vec3) bool {
	if pl.F.Kind == KindNone {
		return false
	}
	return p.Sub(pl.Center).Len2() <= pl.F.Bound*pl.F.Bound
}

// Bounds returns the object-space box around the bounding sphere.
func (pl Placed) Bounds() mathutil.Box {
	if pl.F.Kind == KindNone {
		return mathutil.EmptyBox()
	}
	return mathutil.Box{Min: pl.Center, Max: pl.Center}.Pad(pl.F.Bound)
}
