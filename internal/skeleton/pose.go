package skeleton

import (
	"fmt"

	"implicit-skin/internal/mathutil"
)

// Pose holds one transform per bone, in bone order, expressing the bone's
// current placement relative to its bind placement in object space. The
// identity pose is the bind pose.
type Pose []mathutil.Transform

// Validate checks the pose length against the skeleton.
func (s *Skeleton) Validate(p Pose) error {
	if len(p) != len(s.Bones) {
		return fmt.Errorf("got %d transforms for %d bones: %w", len(p), len(s.Bones), ErrPoseCount)
	}
	return nil
}

// Worlds returns the current bone-local to object transform of every bone:
// pose ∘ bind.
func (s *Skeleton) Worlds(p Pose) ([]mathutil.Transform, error) {
	if err := s.Validate(p); err != nil {
		return nil, err
	}
	worlds := make([]mathutil.Transform, len(s.Bones))
	for i, b := range s.Bones {
		worlds[i] = p[i].Mul(b.Bind)
	}
	return worlds, nil
}

// Clone returns a copy of p.
func (p Pose) Clone() Pose {
	return append(Pose(nil), p...)
}

// RotateSubtree rotates bone b and all its descendants by r about b's
// current head. The result is a new pose; p is left untouched.
func (s *Skeleton) RotateSubtree(p Pose, b int, r mathutil.Mat3) Pose {
	out := p.Clone()
	pivot := p[b].Apply(s.Bones[b].Head)
	rot := mathutil.RotateAbout(r, pivot)
	for _, d := range s.Subtree(b) {
		out[d] = rot.Mul(p[d])
	}
	return out
}
