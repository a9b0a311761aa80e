package bonefield

import (
	"math"

	"implicit-skin/internal/field"
	"implicit-skin/internal/logging"
	"implicit-skin/internal/mathutil"
	"implicit-skin/internal/skeleton"
)

// Shape chooses which field kinds Fit may produce.
type Shape string

const (
	// ShapeAuto tries an HRBF and falls back to a capsule.
	ShapeAuto Shape = "auto"
	// ShapeCapsule always fits a capsule (or a point for zero-length bones).
	ShapeCapsule Shape = "capsule"
)

// Options tunes field fitting.
type Options struct {
	Shape Shape

	// SupportRatio scales the fitted radius into the falloff half-width.
	SupportRatio float64

	// MinHRBFSamples is the fewest samples for which an HRBF is attempted.
	MinHRBFSamples int
	// MaxHRBFSamples caps the HRBF system size; samples are thinned by
	// farthest-point selection.
	MaxHRBFSamples int
}

// DefaultOptions returns the fitting defaults.
func DefaultOptions() Options {
	return Options{
		Shape:          ShapeAuto,
		SupportRatio:   1,
		MinHRBFSamples: 8,
		MaxHRBFSamples: 40,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Shape == "" {
		o.Shape = d.Shape
	}
	if o.SupportRatio <= 0 {
		o.SupportRatio = d.SupportRatio
	}
	if o.MinHRBFSamples <= 0 {
		o.MinHRBFSamples = d.MinHRBFSamples
	}
	if o.MaxHRBFSamples < o.MinHRBFSamples {
		o.MaxHRBFSamples = max(d.MaxHRBFSamples, o.MinHRBFSamples)
	}
	return o
}

// Sample is a bind-pose skin point with its outward normal, in object space.
type Sample struct {
	Pos    mathutil.Vec3
	Normal mathutil.Vec3
}

// minLength is the segment length below which a bone is treated as a point,
// relative to the sample spread.
const minLength = 1e-6

// Fit builds the field for bone b from the skin samples assigned to it.
// It never fails: degenerate input degrades to a simpler kind.
func Fit(b skeleton.Bone, samples []Sample, opt Options) *Field {
	opt = opt.withDefaults()
	log := logging.Logger()

	if len(samples) == 0 {
		log.Debug("bone field", "bone", b.ID, "name", b.Name, "kind", KindNone)
		return &Field{Kind: KindNone}
	}

	local := make([]Sample, len(samples))
	for i, s := range samples {
		local[i] = Sample{
			Pos:    b.InvBind.Apply(s.Pos),
			Normal: b.InvBind.ApplyVec(s.Normal).Normalize(),
		}
	}
	pts := make([]mathutil.Vec3, len(local))
	for i, s := range local {
		pts[i] = s.Pos
	}

	head := mathutil.Vec3{}
	tail := head
	if b.HasTail {
		tail = b.InvBind.Apply(b.Tail)
	} else {
		tail = leafTail(pts)
	}

	scale := math.Max(mathutil.BoxOf(pts).Diagonal(), 1)
	f := &Field{Kind: KindCapsule, Head: head, Tail: tail}
	if tail.Sub(head).Len() < minLength*scale {
		f.Kind = KindPoint
		f.Tail = head
	}

	var sum float64
	for _, p := range pts {
		sum += p.Dist(closestOnSegment(p, f.Head, f.Tail))
	}
	f.Radius = sum / float64(len(pts))
	if f.Radius < minLength*scale {
		f.Radius = minLength * scale
	}
	f.Support = f.Radius * opt.SupportRatio

	half := f.Tail.Sub(f.Head).Len() / 2
	f.Center = mathutil.Lerp(f.Head, f.Tail, 0.5)
	f.Bound = half + f.Radius + f.Support

	if f.Kind == KindCapsule && opt.Shape == ShapeAuto && len(local) >= opt.MinHRBFSamples {
		if h, ok := fitHRBF(f, local, opt); ok {
			log.Debug("bone field", "bone", b.ID, "name", b.Name, "kind", KindHRBF,
				"centers", len(h.HRBF.Centers), "radius", h.Radius)
			return h
		}
		log.Warn("hrbf fit rejected, using capsule", "bone", b.ID, "name", b.Name, "samples", len(local))
	}

	log.Debug("bone field", "bone", b.ID, "name", b.Name, "kind", f.Kind, "radius", f.Radius)
	return f
}

// leafTail derives a segment for a bone without children from the principal
// axis of its samples, pointing away from the head toward the samples.
func leafTail(pts []mathutil.Vec3) mathutil.Vec3 {
	centroid, axis, ok := mathutil.PrincipalAxis(pts)
	if !ok {
		return mathutil.Vec3{}
	}
	if axis.Dot(centroid) < 0 {
		axis = axis.Scale(-1)
	}
	var reach float64
	for _, p := range pts {
		reach = math.Max(reach, p.Dot(axis))
	}
	return axis.Scale(reach)
}

// fitHRBF replaces the capsule with an HRBF through a thinned sample set
// closed by two end caps. The fit is rejected if the segment midpoint does
// not come out inside.
func fitHRBF(capsule *Field, samples []Sample, opt Options) (*Field, bool) {
	picked := farthestPoints(samples, opt.MaxHRBFSamples-2)

	axis := capsule.Tail.Sub(capsule.Head).Normalize()
	picked = append(picked,
		Sample{Pos: capsule.Head.AddScaled(axis, -capsule.Radius), Normal: axis.Scale(-1)},
		Sample{Pos: capsule.Tail.AddScaled(axis, capsule.Radius), Normal: axis},
	)

	pts := make([]mathutil.Vec3, len(picked))
	normals := make([]mathutil.Vec3, len(picked))
	for i, s := range picked {
		pts[i] = s.Pos
		normals[i] = s.Normal
	}
	h, err := field.FitHRBF(pts, normals)
	if err != nil {
		logging.Logger().Debug("hrbf solve failed", "err", err)
		return nil, false
	}

	mid, _ := h.Eval(capsule.Center)
	if !(mid < 0) {
		return nil, false
	}

	var reach float64
	for _, p := range pts {
		reach = math.Max(reach, p.Dist(capsule.Center))
	}

	f := *capsule
	f.Kind = KindHRBF
	f.HRBF = h
	f.Bound = reach + f.Support
	return &f, true
}

// farthestPoints picks up to n samples, starting from the first and then
// repeatedly taking the sample farthest from everything picked so far.
// Coincident samples are never picked twice.
func farthestPoints(samples []Sample, n int) []Sample {
	dist := make([]float64, len(samples))
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	out := make([]Sample, 0, min(n, len(samples)))
	next := 0
	for len(out) < n {
		out = append(out, samples[next])
		last := samples[next].Pos
		best, bestD := -1, -1.0
		for i, s := range samples {
			if d := s.Pos.Sub(last).Len2(); d < dist[i] {
				dist[i] = d
			}
			if dist[i] > bestD {
				best, bestD = i, dist[i]
			}
		}
		if bestD <= minSpacing2 {
			break
		}
		next = best
	}
	return out
}

// minSpacing2 is the squared distance under which two samples coincide.
const minSpacing2 = 1e-16
