// Package mesh holds indexed triangle meshes and the topology queries the
// skinning engine needs.
package mesh

import (
	"errors"
	"fmt"

	"implicit-skin/internal/mathutil"
)

var (
	ErrEmpty    = errors.New("mesh: no vertices or triangles")
	ErrBadIndex = errors.New("mesh: triangle index out of range")
	ErrNormals  = errors.New("mesh: normal count does not match vertex count")
)

// Mesh is an indexed triangle mesh. Normals is optional and, when set, has one
// entry per position.
type Mesh struct {
	Positions []mathutil.Vec3
	Normals   []mathutil.Vec3
	Triangles [][3]int
}

// Validate checks that the mesh is non-empty and every index is in range.
func (m *Mesh) Validate() error {
	if len(m.Positions) == 0 || len(m.Triangles) == 0 {
		return ErrEmpty
	}
	if len(m.Normals) != 0 && len(m.Normals) != len(m.Positions) {
		return ErrNormals
	}
	n := len(m.Positions)
	for i, tri := range m.Triangles {
		for _, v := range tri {
			if v < 0 || v >= n {
				return fmt.Errorf("triangle %d vertex %d: %w", i, v, ErrBadIndex)
			}
		}
	}
	return nil
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	return &Mesh{
		Positions: append([]mathutil.Vec3(nil), m.Positions...),
		Normals:   append([]mathutil.Vec3(nil), m.Normals...),
		Triangles: append([][3]int(nil), m.Triangles...),
	}
}

// Bounds returns the bounding box of all positions.
func (m *Mesh) Bounds() mathutil.Box {
	return mathutil.BoxOf(m.Positions)
}

// FaceNormal returns the unnormalized normal of triangle i (length = 2×area).
func (m *Mesh) FaceNormal(i int) mathutil.Vec3 {
	t := m.Triangles[i]
	a, b, c := m.Positions[t[0]], m.Positions[t[1]], m.Positions[t[2]]
	return b.Sub(a).Cross(c.Sub(a))
}

// VertexNormals computes area-weighted vertex normals from the triangles.
// Isolated vertices get a zero normal.
func VertexNormals(positions []mathutil.Vec3, tris [][3]int) []mathutil.Vec3 {
	normals := make([]mathutil.Vec3, len(positions))
	for _, t := range tris {
		a, b, c := positions[t[0]], positions[t[1]], positions[t[2]]
		n := b.Sub(a).Cross(c.Sub(a))
		for _, v := range t {
			normals[v] = normals[v].Add(n)
		}
	}
	for i := range normals {
		normals[i] = normals[i].Normalize()
	}
	return normals
}

// RecomputeNormals replaces m.Normals with area-weighted vertex normals.
func (m *Mesh) RecomputeNormals() {
	m.Normals = VertexNormals(m.Positions, m.Triangles)
}

// Neighbors returns the one-ring of every vertex in first-seen order.
func Neighbors(vertexCount int, tris [][3]int) [][]int {
	ring := make([][]int, vertexCount)
	add := func(a, b int) {
		for _, x := range ring[a] {
			if x == b {
				return
			}
		}
		ring[a] = append(ring[a], b)
	}
	for _, t := range tris {
		for e := 0; e < 3; e++ {
			a, b := t[e], t[(e+1)%3]
			add(a, b)
			add(b, a)
		}
	}
	return ring
}

// UnmatchedEdges counts directed edges whose reverse edge is missing or that
// appear more than once. A closed, consistently oriented 2-manifold has none.
func UnmatchedEdges(tris [][3]int) int {
	count := make(map[[2]int]int, len(tris)*3)
	for _, t := range tris {
		for e := 0; e < 3; e++ {
			count[[2]int{t[e], t[(e+1)%3]}]++
		}
	}
	bad := 0
	for e, n := range count {
		if n != 1 || count[[2]int{e[1], e[0]}] != 1 {
			bad++
		}
	}
	return bad
}
