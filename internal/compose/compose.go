// Package compose combines per-bone fields into one skeleton field.
//
// Bones that share a joint are blended with a p-norm blend so the joint stays
// smooth. Everything else is combined with a sharp union, so limbs that are
// not skeletally related never fuse when they pass close to each other.
package compose

import (
	"errors"
	"fmt"

	"implicit-skin/internal/bonefield"
	"implicit-skin/internal/field"
	"implicit-skin/internal/mathutil"
	"implicit-skin/internal/skeleton"
)

var (
	ErrFieldCount = errors.New("compose: field count does not match bone count")
)

// Options tunes composition.
type Options struct {
	// BlendPower is the exponent of the joint blend; values <= 1 select
	// field.DefaultBlendPower.
	BlendPower float64
}

// Composer evaluates the skeleton field. Eval may be called concurrently;
// SetPose must not run at the same time as Eval.
type Composer struct {
	fields []*bonefield.Field
	pairs  [][2]int
	solo   []int
	blend  field.Blend

	placed []bonefield.Placed
}

// New prepares a composer for skel with one fitted field per bone. The
// adjacency pairs are taken from the skeleton once, here.
func New(skel *skeleton.Skeleton, fields []*bonefield.Field, opt Options) (*Composer, error) {
	if len(fields) != skel.Len() {
		return nil, fmt.Errorf("%d fields for %d bones: %w", len(fields), skel.Len(), ErrFieldCount)
	}
	c := &Composer{
		fields: fields,
		blend:  field.Blend{Power: opt.BlendPower},
	}

	paired := make([]bool, len(fields))
	for _, pr := range skel.Adjacency() {
		if fields[pr[0]].Kind == bonefield.KindNone && fields[pr[1]].Kind == bonefield.KindNone {
			continue
		}
		c.pairs = append(c.pairs, pr)
		paired[pr[0]], paired[pr[1]] = true, true
	}
	for i, f := range fields {
		if !paired[i] && f.Kind != bonefield.KindNone {
			c.solo = append(c.solo, i)
		}
	}
	return c, nil
}

// Clone returns a composer sharing the immutable fields and adjacency with c
// but owning its placement state.
func (c *Composer) Clone() *Composer {
	cp := *c
	cp.placed = append([]bonefield.Placed(nil), c.placed...)
	return &cp
}

// SetPose places every field with its bone's current world transform
// (pose ∘ bind).
func (c *Composer) SetPose(worlds []mathutil.Transform) error {
	if len(worlds) != len(c.fields) {
		return fmt.Errorf("%d transforms for %d bones: %w", len(worlds), len(c.fields), ErrFieldCount)
	}
	if c.placed == nil {
		c.placed = make([]bonefield.Placed, len(c.fields))
	}
	for i, f := range c.fields {
		c.placed[i] = f.Place(worlds[i])
	}
	return nil
}

// Posed reports whether SetPose has been called.
func (c *Composer) Posed() bool { return c.placed != nil }

const stackBones = 32

// Eval returns the composed value and gradient at p. Each bone field is
// evaluated at most once. Bones whose bounding sphere misses p contribute 0.
// Ties between unrelated terms keep the earliest pair, then the earliest
// solo bone.
func (c *Composer) Eval(p mathutil.Vec3) (float64, mathutil.Vec3) {
	if c.placed == nil {
		return 0, mathutil.Vec3{}
	}
	n := len(c.placed)
	var vbuf [stackBones]float64
	var gbuf [stackBones]mathutil.Vec3
	vals, grads := vbuf[:0], gbuf[:0]
	if n > stackBones {
		vals, grads = make([]float64, 0, n), make([]mathutil.Vec3, 0, n)
	}
	vals, grads = vals[:n], grads[:n]
	for i := range c.placed {
		if c.placed[i].Reaches(p) {
			vals[i], grads[i] = c.placed[i].Eval(p)
		} else {
			vals[i], grads[i] = 0, mathutil.Vec3{}
		}
	}

	var best float64
	var bestG mathutil.Vec3
	for _, pr := range c.pairs {
		v, g := c.blend.Combine(vals[pr[0]], grads[pr[0]], vals[pr[1]], grads[pr[1]])
		best, bestG = field.Union(best, bestG, v, g)
	}
	for _, i := range c.solo {
		best, bestG = field.Union(best, bestG, vals[i], grads[i])
	}
	return best, bestG
}

// BoneValues returns every bone field's value at p, for diagnostics.
func (c *Composer) BoneValues(p mathutil.Vec3) []float64 {
	out := make([]float64, len(c.placed))
	for i := range c.placed {
		out[i], _ = c.placed[i].Eval(p)
	}
	return out
}

// Bounds returns the object-space box holding every field's support at the
// current pose. It is empty before SetPose or when no bone has geometry.
func (c *Composer) Bounds() mathutil.Box {
	b := mathutil.EmptyBox()
	for _, pl := range c.placed {
		b = b.Union(pl.Bounds())
	}
	return b
}

// Pairs returns the blended bone pairs. The slice is shared.
func (c *Composer) Pairs() [][2]int { return c.pairs }
