package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"implicit-skin/internal/mathutil"
)

// tetra returns a closed, outward-oriented tetrahedron.
func tetra(offset mathutil.Vec3) *Mesh {
	return &Mesh{
		Positions: []mathutil.Vec3{
			offset,
			offset.Add(mathutil.Vec3{1, 0, 0}),
			offset.Add(mathutil.Vec3{0, 1, 0}),
			offset.Add(mathutil.Vec3{0, 0, 1}),
		},
		Triangles: [][3]int{{0, 2, 1}, {0, 1, 3}, {0, 3, 2}, {1, 2, 3}},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, tetra(mathutil.Vec3{}).Validate())

	assert.ErrorIs(t, (&Mesh{}).Validate(), ErrEmpty)

	m := tetra(mathutil.Vec3{})
	m.Triangles = append(m.Triangles, [3]int{0, 1, 9})
	assert.ErrorIs(t, m.Validate(), ErrBadIndex)

	m = tetra(mathutil.Vec3{})
	m.Normals = make([]mathutil.Vec3, 2)
	assert.ErrorIs(t, m.Validate(), ErrNormals)
}

func TestVertexNormalsPointOutward(t *testing.T) {
	m := tetra(mathutil.Vec3{})
	m.RecomputeNormals()
	c := m.Bounds().Center()
	for i, n := range m.Normals {
		assert.Greater(t, n.Dot(m.Positions[i].Sub(c)), 0.0, "vertex %d", i)
		assert.InDelta(t, 1, n.Len(), 1e-12)
	}
}

func TestNeighbors(t *testing.T) {
	ring := Neighbors(4, tetra(mathutil.Vec3{}).Triangles)
	for v, nb := range ring {
		assert.Len(t, nb, 3, "vertex %d", v)
		assert.NotContains(t, nb, v)
	}
}

func TestUnmatchedEdges(t *testing.T) {
	m := tetra(mathutil.Vec3{})
	assert.Zero(t, UnmatchedEdges(m.Triangles))

	// Removing a face opens three edges.
	assert.Equal(t, 3, UnmatchedEdges(m.Triangles[1:]))

	// Flipping a face breaks orientation.
	flipped := append([][3]int(nil), m.Triangles...)
	flipped[0] = [3]int{0, 1, 2}
	assert.NotZero(t, UnmatchedEdges(flipped))
}

func TestDropSmallComponents(t *testing.T) {
	big := tetra(mathutil.Vec3{})
	// Second tetra, offset and sharing no vertices.
	small := tetra(mathutil.Vec3{5, 0, 0})
	m := &Mesh{Positions: append(big.Positions, small.Positions...)}
	m.Triangles = append(m.Triangles, big.Triangles...)
	for _, tri := range small.Triangles {
		m.Triangles = append(m.Triangles, [3]int{tri[0] + 4, tri[1] + 4, tri[2] + 4})
	}
	// Extra triangle attached to the first tetra makes it the largest.
	m.Positions = append(m.Positions, mathutil.Vec3{-1, -1, -1})
	m.Triangles = append(m.Triangles, [3]int{0, 1, 8})

	assert.Len(t, Components(len(m.Positions), m.Triangles), 2)

	out := DropSmallComponents(m, 5)
	require.NoError(t, out.Validate())
	assert.Len(t, out.Positions, 5)
	assert.Len(t, out.Triangles, 5)

	kept := DropSmallComponents(m, 4)
	assert.Len(t, kept.Positions, 9)
}
