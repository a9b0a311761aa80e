package skeleton

import (
	"errors"
	"fmt"

	"implicit-skin/internal/mathutil"
)

var ErrInfluence = errors.New("skeleton: invalid vertex influence")

// Influence is one bone weight on a vertex.
type Influence struct {
	Bone   int
	Weight float64
}

// ValidateInfluences checks that there is one influence list per vertex and
// every bone index is in range.
func (s *Skeleton) ValidateInfluences(infl [][]Influence, vertexCount int) error {
	if len(infl) != vertexCount {
		return fmt.Errorf("%d influence lists for %d vertices: %w", len(infl), vertexCount, ErrInfluence)
	}
	for v, list := range infl {
		for _, in := range list {
			if in.Bone < 0 || in.Bone >= len(s.Bones) {
				return fmt.Errorf("vertex %d bone %d: %w", v, in.Bone, ErrInfluence)
			}
			if in.Weight < 0 {
				return fmt.Errorf("vertex %d weight %g: %w", v, in.Weight, ErrInfluence)
			}
		}
	}
	return nil
}

// DominantBone returns the bone with the largest weight, or NoParent when the
// list is empty or all weights are zero. Ties keep the first entry.
func DominantBone(list []Influence) int {
	best, bestW := NoParent, 0.0
	for _, in := range list {
		if in.Weight > bestW {
			best, bestW = in.Bone, in.Weight
		}
	}
	return best
}

// BlendPositions applies linear blend skinning: each output is the weighted
// sum of the vertex transformed by its bones' pose transforms. Weights are
// normalized per vertex; vertices without weight keep their bind position.
// Bones are assumed validated.
func BlendPositions(bind []mathutil.Vec3, infl [][]Influence, p Pose) []mathutil.Vec3 {
	out := make([]mathutil.Vec3, len(bind))
	for i, v := range bind {
		var sum mathutil.Vec3
		total := 0.0
		if i < len(infl) {
			for _, in := range infl[i] {
				if in.Weight <= 0 {
					continue
				}
				sum = sum.AddScaled(p[in.Bone].Apply(v), in.Weight)
				total += in.Weight
			}
		}
		if total <= mathutil.Epsilon {
			out[i] = v
			continue
		}
		out[i] = sum.Scale(1 / total)
	}
	return out
}
