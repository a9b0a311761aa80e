package march

// Cube layout: corner c sits at (c&1, c>>1&1, c>>2&1). Edges are listed with
// the lower corner first; every edge runs along one axis.
var cubeEdges = [12][2]int{
	{0, 1}, {2, 3}, {4, 5}, {6, 7}, // x
	{0, 2}, {1, 3}, {4, 6}, {5, 7}, // y
	{0, 4}, {1, 5}, {2, 6}, {3, 7}, // z
}

func cornerPos(c int) [3]int {
	return [3]int{c & 1, c >> 1 & 1, c >> 2 & 1}
}

// edgeAxis returns the axis an edge runs along.
func edgeAxis(e int) int {
	return e / 4
}

type cubeFace struct {
	// corners in cyclic order around the face
	corners [4]int
	normal  [3]int
}

var (
	cubeFaces [6]cubeFace
	// edgeIndex[a][b] is the edge joining corners a and b, or -1.
	edgeIndex [8][8]int
	// edgeFaces[e] has bit f set when edge e lies on face f.
	edgeFaces [12]uint8
)

// loop is a closed polygon of edge crossings, oriented so that its fan
// triangles face from inside (value > iso) to outside. Fanning from edges[0]
// never puts a diagonal on a cube face. When no such start exists the loop
// is fanned around an extra centroid vertex instead.
type loop struct {
	edges    []int
	centroid bool
}

var (
	// caseLoops holds the fixed-rule triangulation of every configuration.
	caseLoops [256][]loop
	// caseClass maps a configuration to its canonical representative under
	// the 48 symmetries of the cube.
	caseClass [256]uint8
	// ambiguousFaces has bit f set when face f of a configuration has four
	// crossings.
	ambiguousFaces [256]uint8
)

type cubeSymmetry struct {
	corner [8]int
	// odd symmetries are reflections and reverse orientation
	odd bool
}

var cubeSymmetries []cubeSymmetry

func init() {
	for a := range edgeIndex {
		for b := range edgeIndex[a] {
			edgeIndex[a][b] = -1
		}
	}
	for e, ab := range cubeEdges {
		edgeIndex[ab[0]][ab[1]] = e
		edgeIndex[ab[1]][ab[0]] = e
	}

	// Faces come in pairs per axis k: k=0 side first, then k=1.
	for k := 0; k < 3; k++ {
		u, w := (k+1)%3, (k+2)%3
		if u > w {
			u, w = w, u
		}
		for v := 0; v < 2; v++ {
			f := &cubeFaces[k*2+v]
			for i, uw := range [4][2]int{{0, 0}, {1, 0}, {1, 1}, {0, 1}} {
				var p [3]int
				p[k], p[u], p[w] = v, uw[0], uw[1]
				f.corners[i] = p[0] | p[1]<<1 | p[2]<<2
			}
			f.normal[k] = 2*v - 1
		}
	}
	for e, ab := range cubeEdges {
		for fi, f := range cubeFaces {
			if faceHas(f, ab[0]) && faceHas(f, ab[1]) {
				edgeFaces[e] |= 1 << fi
			}
		}
	}

	buildSymmetries()

	for cfg := 0; cfg < 256; cfg++ {
		rep, sym := canonical(uint8(cfg))
		caseClass[cfg] = rep

		var inv [8]int
		for c, to := range sym.corner {
			inv[to] = c
		}
		for _, l := range walk(rep, nil) {
			mapped := make([]int, len(l.edges))
			for i, e := range l.edges {
				mapped[i] = edgeIndex[inv[cubeEdges[e][0]]][inv[cubeEdges[e][1]]]
			}
			if sym.odd {
				reverseTail(mapped)
			}
			caseLoops[cfg] = append(caseLoops[cfg], loop{edges: mapped, centroid: l.centroid})
		}

		for fi, f := range cubeFaces {
			if crossings(uint8(cfg), f) == 4 {
				ambiguousFaces[cfg] |= 1 << fi
			}
		}
	}
}

func faceHas(f cubeFace, c int) bool {
	for _, x := range f.corners {
		if x == c {
			return true
		}
	}
	return false
}

// buildSymmetries enumerates axis permutations combined with axis flips.
func buildSymmetries() {
	perms := [6][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	permOdd := [6]bool{false, true, true, false, false, true}
	for pi, perm := range perms {
		for flips := 0; flips < 8; flips++ {
			s := cubeSymmetry{odd: permOdd[pi]}
			for f := flips; f != 0; f &= f - 1 {
				s.odd = !s.odd
			}
			for c := 0; c < 8; c++ {
				x := cornerPos(c)
				var y [3]int
				for i := 0; i < 3; i++ {
					y[i] = x[perm[i]] ^ (flips >> i & 1)
				}
				s.corner[c] = y[0] | y[1]<<1 | y[2]<<2
			}
			cubeSymmetries = append(cubeSymmetries, s)
		}
	}
}

func (s cubeSymmetry) apply(cfg uint8) uint8 {
	var out uint8
	for c := 0; c < 8; c++ {
		if cfg>>c&1 != 0 {
			out |= 1 << s.corner[c]
		}
	}
	return out
}

// canonical returns the smallest image of cfg and the symmetry producing it.
func canonical(cfg uint8) (uint8, cubeSymmetry) {
	best, bestSym := uint8(255), cubeSymmetries[0]
	first := true
	for _, s := range cubeSymmetries {
		if r := s.apply(cfg); first || r < best {
			best, bestSym, first = r, s, false
		}
	}
	return best, bestSym
}

// reverseTail reverses the loop direction while keeping its first edge.
func reverseTail(l []int) {
	for i, j := 1, len(l)-1; i < j; i, j = i+1, j-1 {
		l[i], l[j] = l[j], l[i]
	}
}

func crossings(cfg uint8, f cubeFace) int {
	n := 0
	for i := 0; i < 4; i++ {
		if cfg>>f.corners[i]&1 != cfg>>f.corners[(i+1)%4]&1 {
			n++
		}
	}
	return n
}

// classCount returns the number of distinct canonical configurations.
func classCount() int {
	seen := map[uint8]bool{}
	for _, c := range caseClass {
		seen[c] = true
	}
	return len(seen)
}
