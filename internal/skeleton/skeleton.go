// Package skeleton models a bone hierarchy as an arena of bones indexed by
// integer id, with bind transforms in object space.
package skeleton

import (
	"errors"
	"fmt"

	"implicit-skin/internal/mathutil"
)

// NoParent marks the root bone.
const NoParent = -1

var (
	ErrNoBones       = errors.New("skeleton: no bones")
	ErrBadParent     = errors.New("skeleton: parent index out of range")
	ErrMultipleRoots = errors.New("skeleton: more than one root")
	ErrCycle         = errors.New("skeleton: hierarchy contains a cycle")
	ErrPoseCount     = errors.New("skeleton: pose transform count does not match bone count")
)

// BoneDesc describes one bone as supplied by the host.
type BoneDesc struct {
	Name   string
	Parent int // NoParent for the root

	// Bind maps bone-local coordinates to object space at bind time.
	// Its origin is the bone head.
	Bind mathutil.Transform

	// Tail is the object-space end of the bone. When nil it is derived from
	// the children's heads, or left to the field fitter for leaf bones.
	Tail *mathutil.Vec3
}

// Bone is a validated bone record.
type Bone struct {
	ID       int
	Name     string
	Parent   int
	Children []int

	Bind    mathutil.Transform
	InvBind mathutil.Transform

	Head    mathutil.Vec3
	Tail    mathutil.Vec3
	HasTail bool
}

// Skeleton is a single-rooted bone tree. Bone ids are slice indices and keep
// the order the bones were registered in.
type Skeleton struct {
	Bones []Bone
	Root  int

	pairs [][2]int
	order []int
}

// New validates descs and builds the skeleton.
func New(descs []BoneDesc) (*Skeleton, error) {
	n := len(descs)
	if n == 0 {
		return nil, ErrNoBones
	}

	s := &Skeleton{Bones: make([]Bone, n), Root: NoParent}
	for i, d := range descs {
		if d.Parent != NoParent && (d.Parent < 0 || d.Parent >= n || d.Parent == i) {
			return nil, fmt.Errorf("bone %d (%s) parent %d: %w", i, d.Name, d.Parent, ErrBadParent)
		}
		if d.Parent == NoParent {
			if s.Root != NoParent {
				return nil, fmt.Errorf("bones %d and %d: %w", s.Root, i, ErrMultipleRoots)
			}
			s.Root = i
		}
		s.Bones[i] = Bone{
			ID:      i,
			Name:    d.Name,
			Parent:  d.Parent,
			Bind:    d.Bind,
			InvBind: d.Bind.Inverse(),
			Head:    d.Bind.Pos,
		}
		if d.Tail != nil {
			s.Bones[i].Tail = *d.Tail
			s.Bones[i].HasTail = true
		}
	}
	if s.Root == NoParent {
		return nil, fmt.Errorf("no root bone: %w", ErrCycle)
	}

	for i := range s.Bones {
		if p := s.Bones[i].Parent; p != NoParent {
			s.Bones[p].Children = append(s.Bones[p].Children, i)
		}
	}

	// Breadth-first from the root; anything unreached sits on a cycle.
	s.order = make([]int, 0, n)
	s.order = append(s.order, s.Root)
	for q := 0; q < len(s.order); q++ {
		s.order = append(s.order, s.Bones[s.order[q]].Children...)
	}
	if len(s.order) != n {
		for i := range s.Bones {
			if !s.reaches(i) {
				return nil, fmt.Errorf("bone %d (%s): %w", i, s.Bones[i].Name, ErrCycle)
			}
		}
		return nil, ErrCycle
	}

	for i := range s.Bones {
		b := &s.Bones[i]
		if !b.HasTail && len(b.Children) > 0 {
			var sum mathutil.Vec3
			for _, c := range b.Children {
				sum = sum.Add(s.Bones[c].Head)
			}
			b.Tail = sum.Scale(1 / float64(len(b.Children)))
			b.HasTail = true
		}
		if b.Parent != NoParent {
			s.pairs = append(s.pairs, [2]int{b.Parent, i})
		}
	}
	return s, nil
}

// reaches reports whether walking parents from i ends at the root.
func (s *Skeleton) reaches(i int) bool {
	for steps := 0; steps <= len(s.Bones); steps++ {
		if i == s.Root {
			return true
		}
		i = s.Bones[i].Parent
	}
	return false
}

// Len returns the bone count.
func (s *Skeleton) Len() int { return len(s.Bones) }

// Adjacency returns the parent/child pairs, ordered by child id. The slice is
// shared and must not be modified.
func (s *Skeleton) Adjacency() [][2]int { return s.pairs }

// Order returns bone ids with every parent before its children.
func (s *Skeleton) Order() []int { return s.order }

// Subtree returns b and all its descendants, parents first.
func (s *Skeleton) Subtree(b int) []int {
	out := []int{b}
	for q := 0; q < len(out); q++ {
		out = append(out, s.Bones[out[q]].Children...)
	}
	return out
}

// BindPose returns the identity pose.
func (s *Skeleton) BindPose() Pose {
	p := make(Pose, len(s.Bones))
	for i := range p {
		p[i] = mathutil.Identity()
	}
	return p
}
