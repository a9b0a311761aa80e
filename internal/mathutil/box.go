package mathutil

import "math"

// Box is an axis-aligned bounding box. The zero value is a degenerate box at
// the origin; use EmptyBox to start accumulating points.
type Box struct {
	Min, Max Vec3
}

// EmptyBox returns an inverted box that any Extend call replaces.
func EmptyBox() Box {
	inf := math.Inf(1)
	return Box{Min: Vec3{inf, inf, inf}, Max: Vec3{-inf, -inf, -inf}}
}

// IsEmpty reports whether the box contains no point.
func (b Box) IsEmpty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

func (b Box) Extend(p Vec3) Box {
	return Box{Min: Min(b.Min, p), Max: Max(b.Max, p)}
}

// Union returns the smallest box holding both.
func (b Box) Union(o Box) Box {
	if o.IsEmpty() {
		return b
	}
	return Box{Min: Min(b.Min, o.Min), Max: Max(b.Max, o.Max)}
}

// Pad grows the box by d on every side.
func (b Box) Pad(d float64) Box {
	return Box{Min: b.Min.Sub(Vec3{d, d, d}), Max: b.Max.Add(Vec3{d, d, d})}
}

func (b Box) Size() Vec3 {
	return b.Max.Sub(b.Min)
}

func (b Box) Center() Vec3 {
	return Lerp(b.Min, b.Max, 0.5)
}

// Diagonal is the length of the box diagonal.
func (b Box) Diagonal() float64 {
	if b.IsEmpty() {
		return 0
	}
	return b.Size().Len()
}

func (b Box) Contains(p Vec3) bool {
	for k := 0; k < 3; k++ {
		if p[k] < b.Min[k] || p[k] > b.Max[k] {
			return false
		}
	}
	return true
}

// BoxOf returns the bounds of pts.
func BoxOf(pts []Vec3) Box {
	b := EmptyBox()
	for _, p := range pts {
		b = b.Extend(p)
	}
	return b
}
