// Package procedural builds test subjects: a capsule-shaped tube skinned to
// a straight bone chain, and the poses that bend it.
package procedural

import (
	"fmt"
	"math"

	"implicit-skin/internal/mathutil"
	"implicit-skin/internal/mesh"
	"implicit-skin/internal/skeleton"
)

// LimbOptions shapes the generated limb. The chain runs up the +Y axis from
// the origin.
type LimbOptions struct {
	Bones      int
	BoneLength float64
	Radius     float64

	// Segments around the tube.
	Segments int
	// RingsPerBone along the tube body.
	RingsPerBone int
	// CapRings on each hemispherical end cap, excluding the pole.
	CapRings int

	// BlendWidth is the half-width of the weight blend around each joint, as
	// a fraction of the bone length.
	BlendWidth float64
}

// DefaultLimbOptions returns a three bone arm-sized limb.
func DefaultLimbOptions() LimbOptions {
	return LimbOptions{
		Bones:        3,
		BoneLength:   1,
		Radius:       0.25,
		Segments:     24,
		RingsPerBone: 12,
		CapRings:     4,
		BlendWidth:   0.3,
	}
}

func (o LimbOptions) withDefaults() LimbOptions {
	d := DefaultLimbOptions()
	if o.Bones <= 0 {
		o.Bones = d.Bones
	}
	if o.BoneLength <= 0 {
		o.BoneLength = d.BoneLength
	}
	if o.Radius <= 0 {
		o.Radius = d.Radius
	}
	if o.Segments < 3 {
		o.Segments = d.Segments
	}
	if o.RingsPerBone <= 0 {
		o.RingsPerBone = d.RingsPerBone
	}
	if o.CapRings < 0 {
		o.CapRings = 0
	}
	if o.BlendWidth < 0 || o.BlendWidth > 0.5 {
		o.BlendWidth = d.BlendWidth
	}
	return o
}

// Limb is a closed tube mesh with its skeleton and skin weights.
type Limb struct {
	Mesh       mesh.Mesh
	Bones      []skeleton.BoneDesc
	Influences [][]skeleton.Influence
}

type ring struct{ y, r float64 }

// NewLimb generates the limb. Bone i spans [i, i+1]×BoneLength on Y and is
// the parent of bone i+1.
func NewLimb(opt LimbOptions) *Limb {
	opt = opt.withDefaults()
	length := float64(opt.Bones) * opt.BoneLength
	R := opt.Radius

	var rings []ring
	for c := opt.CapRings; c >= 1; c-- {
		phi := float64(c) / float64(opt.CapRings+1) * math.Pi / 2
		rings = append(rings, ring{-R * math.Sin(phi), R * math.Cos(phi)})
	}
	body := opt.Bones * opt.RingsPerBone
	for i := 0; i <= body; i++ {
		rings = append(rings, ring{length * float64(i) / float64(body), R})
	}
	for c := 1; c <= opt.CapRings; c++ {
		phi := float64(c) / float64(opt.CapRings+1) * math.Pi / 2
		rings = append(rings, ring{length + R*math.Sin(phi), R * math.Cos(phi)})
	}

	S := opt.Segments
	m := mesh.Mesh{}
	for _, rg := range rings {
		for s := 0; s < S; s++ {
			th := 2 * math.Pi * float64(s) / float64(S)
			m.Positions = append(m.Positions, mathutil.Vec3{rg.r * math.Cos(th), rg.y, rg.r * math.Sin(th)})
		}
	}
	for i := 0; i+1 < len(rings); i++ {
		for s := 0; s < S; s++ {
			a, b := i*S+s, (i+1)*S+s
			c, d := (i+1)*S+(s+1)%S, i*S+(s+1)%S
			m.Triangles = append(m.Triangles, [3]int{a, b, c}, [3]int{a, c, d})
		}
	}
	bottom := len(m.Positions)
	top := bottom + 1
	m.Positions = append(m.Positions, mathutil.Vec3{0, -R, 0}, mathutil.Vec3{0, length + R, 0})
	last := (len(rings) - 1) * S
	for s := 0; s < S; s++ {
		m.Triangles = append(m.Triangles,
			[3]int{bottom, s, (s + 1) % S},
			[3]int{top, last + (s+1)%S, last + s},
		)
	}
	m.RecomputeNormals()

	l := &Limb{Mesh: m}
	for i := 0; i < opt.Bones; i++ {
		head := mathutil.Vec3{0, float64(i) * opt.BoneLength, 0}
		d := skeleton.BoneDesc{
			Name:   boneName(i),
			Parent: i - 1,
			Bind:   mathutil.Translate(head),
		}
		if i == opt.Bones-1 {
			tail := mathutil.Vec3{0, length, 0}
			d.Tail = &tail
		}
		l.Bones = append(l.Bones, d)
	}

	l.Influences = make([][]skeleton.Influence, len(m.Positions))
	for v, p := range m.Positions {
		l.Influences[v] = weights(p[1], opt)
	}
	return l
}

func boneName(i int) string {
	names := []string{"upper", "lower", "hand"}
	if i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("bone%d", i)
}

// weights assigns y to its bone, blending smoothly across joints.
func weights(y float64, opt LimbOptions) []skeleton.Influence {
	L := opt.BoneLength
	w := opt.BlendWidth * L
	k := int(math.Floor(y / L))
	k = max(0, min(opt.Bones-1, k))

	for j := 1; j < opt.Bones; j++ {
		jy := float64(j) * L
		if w > 0 && math.Abs(y-jy) < w {
			t := (y - (jy - w)) / (2 * w)
			t = t * t * (3 - 2*t)
			return []skeleton.Influence{{Bone: j - 1, Weight: 1 - t}, {Bone: j, Weight: t}}
		}
	}
	return []skeleton.Influence{{Bone: k, Weight: 1}}
}

// BendPose rotates joint's subtree by angle radians about +Z, starting from
// the bind pose.
func BendPose(skel *skeleton.Skeleton, joint int, angle float64) skeleton.Pose {
	return skel.RotateSubtree(skel.BindPose(), joint, mathutil.RotZ(angle))
}

// Skinned returns the linear blend skinned positions of the limb at pose.
func (l *Limb) Skinned(p skeleton.Pose) []mathutil.Vec3 {
	return skeleton.BlendPositions(l.Mesh.Positions, l.Influences, p)
}
