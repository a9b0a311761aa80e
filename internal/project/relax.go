package project

import "implicit-skin/internal/mathutil"

// Relax applies Laplacian smoothing to the vertices selected by mask, moving
// each toward the centroid of its one-ring by weight per iteration. Unmasked
// vertices never move. Each iteration reads the previous iteration's
// positions. The input slice is not modified.
func Relax(positions []mathutil.Vec3, neighbors [][]int, mask []bool, iterations int, weight float64) []mathutil.Vec3 {
	cur := append([]mathutil.Vec3(nil), positions...)
	if iterations <= 0 || weight <= 0 {
		return cur
	}
	next := append([]mathutil.Vec3(nil), positions...)
	for it := 0; it < iterations; it++ {
		for i, p := range cur {
			if !mask[i] || len(neighbors[i]) == 0 {
				next[i] = p
				continue
			}
			var c mathutil.Vec3
			for _, n := range neighbors[i] {
				c = c.Add(cur[n])
			}
			c = c.Scale(1 / float64(len(neighbors[i])))
			next[i] = mathutil.Lerp(p, c, weight)
		}
		cur, next = next, cur
	}
	return cur
}
