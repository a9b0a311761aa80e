package march

import (
	"implicit-skin/internal/field"
	"implicit-skin/internal/mathutil"
	"implicit-skin/internal/mesh"
)

// slab accumulates the triangles of a run of z layers.
type slab struct {
	g       grid
	f       field.Field
	samples []float64
	iso     float64
	saddle  SaddleRule

	// index maps a grid edge key to its local vertex.
	index map[int]int
	// keys holds the grid edge key of each local vertex; centroid vertices
	// belong to one cell only and get -1.
	keys      []int
	positions []mathutil.Vec3
	normals   []mathutil.Vec3
	tris      [][3]int
}

func (s *slab) layer(k int) {
	g := s.g
	var vals [8]float64
	for j := 0; j < g.n[1]; j++ {
		for i := 0; i < g.n[0]; i++ {
			var cfg uint8
			for c := 0; c < 8; c++ {
				o := cornerPos(c)
				vals[c] = s.samples[g.index(i+o[0], j+o[1], k+o[2])]
				if vals[c] > s.iso {
					cfg |= 1 << c
				}
			}
			if cfg == 0 || cfg == 255 {
				continue
			}

			loops := caseLoops[cfg]
			if s.saddle == SaddleDecider && ambiguousFaces[cfg] != 0 {
				loops = walk(cfg, func(face int) bool {
					fc := cubeFaces[face].corners
					return asymptoticJoin(vals[fc[0]]-s.iso, vals[fc[1]]-s.iso, vals[fc[2]]-s.iso, vals[fc[3]]-s.iso)
				})
			}
			for _, l := range loops {
				s.emit(i, j, k, &vals, l)
			}
		}
	}
}

func (s *slab) emit(i, j, k int, vals *[8]float64, l loop) {
	var buf [12]int
	ids := buf[:len(l.edges)]
	for n, e := range l.edges {
		ids[n] = s.edgeVertex(i, j, k, vals, e)
	}

	if l.centroid {
		var c mathutil.Vec3
		for _, id := range ids {
			c = c.Add(s.positions[id])
		}
		ci := s.add(-1, c.Scale(1/float64(len(ids))))
		for n := range ids {
			s.tris = append(s.tris, [3]int{ci, ids[n], ids[(n+1)%len(ids)]})
		}
		return
	}
	for n := 1; n+1 < len(ids); n++ {
		s.tris = append(s.tris, [3]int{ids[0], ids[n], ids[n+1]})
	}
}

// edgeVertex returns the vertex where the iso level crosses cube edge e of
// cell (i, j, k), creating it on first use.
func (s *slab) edgeVertex(i, j, k int, vals *[8]float64, e int) int {
	a, b := cubeEdges[e][0], cubeEdges[e][1]
	oa, ob := cornerPos(a), cornerPos(b)
	key := s.g.index(i+oa[0], j+oa[1], k+oa[2])*3 + edgeAxis(e)
	if v, ok := s.index[key]; ok {
		return v
	}
	va, vb := vals[a], vals[b]
	t := (s.iso - va) / (vb - va)
	p := mathutil.Lerp(
		s.g.point(i+oa[0], j+oa[1], k+oa[2]),
		s.g.point(i+ob[0], j+ob[1], k+ob[2]),
		t,
	)
	return s.add(key, p)
}

func (s *slab) add(key int, p mathutil.Vec3) int {
	_, grad := s.f.Eval(p)
	idx := len(s.positions)
	s.positions = append(s.positions, p)
	s.normals = append(s.normals, grad.Scale(-1).Normalize())
	s.keys = append(s.keys, key)
	if key >= 0 {
		s.index[key] = idx
	}
	return idx
}

// merge concatenates slab outputs, welding vertices on shared grid edges.
// Vertices whose field gradient vanished get area-weighted normals.
func merge(parts []*slab) *mesh.Mesh {
	m := &mesh.Mesh{}
	global := map[int]int{}
	for _, p := range parts {
		remap := make([]int, len(p.positions))
		for li, key := range p.keys {
			if key >= 0 {
				if gi, ok := global[key]; ok {
					remap[li] = gi
					continue
				}
				global[key] = len(m.Positions)
			}
			remap[li] = len(m.Positions)
			m.Positions = append(m.Positions, p.positions[li])
			m.Normals = append(m.Normals, p.normals[li])
		}
		for _, t := range p.tris {
			m.Triangles = append(m.Triangles, [3]int{remap[t[0]], remap[t[1]], remap[t[2]]})
		}
	}

	var fallback []mathutil.Vec3
	for i, n := range m.Normals {
		if n != (mathutil.Vec3{}) {
			continue
		}
		if fallback == nil {
			fallback = mesh.VertexNormals(m.Positions, m.Triangles)
		}
		m.Normals[i] = fallback[i]
	}
	return m
}
