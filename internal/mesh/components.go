package mesh

// Components groups vertices into edge-connected components. Vertices not used
// by any triangle are left out.
func Components(vertexCount int, tris [][3]int) [][]int {
	adj := Neighbors(vertexCount, tris)

	visited := make([]bool, vertexCount)
	var components [][]int
	for v := 0; v < vertexCount; v++ {
		if visited[v] || len(adj[v]) == 0 {
			continue
		}
		comp := []int{}
		stack := []int{v}
		for len(stack) > 0 {
			curr := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[curr] {
				continue
			}
			visited[curr] = true
			comp = append(comp, curr)
			for _, nb := range adj[curr] {
				if !visited[nb] {
					stack = append(stack, nb)
				}
			}
		}
		components = append(components, comp)
	}
	return components
}

// DropSmallComponents returns a compacted copy of m without the components
// that have fewer than minVerts vertices. The largest component is always
// kept. Vertex order among the survivors is preserved.
func DropSmallComponents(m *Mesh, minVerts int) *Mesh {
	components := Components(len(m.Positions), m.Triangles)
	if len(components) <= 1 {
		return m.Clone()
	}

	largestIdx := 0
	for i, c := range components {
		if len(c) > len(components[largestIdx]) {
			largestIdx = i
		}
	}

	keep := make([]bool, len(m.Positions))
	for i, comp := range components {
		if i != largestIdx && len(comp) < minVerts {
			continue
		}
		for _, v := range comp {
			keep[v] = true
		}
	}

	remap := make([]int, len(m.Positions))
	out := &Mesh{}
	for v, ok := range keep {
		remap[v] = -1
		if !ok {
			continue
		}
		remap[v] = len(out.Positions)
		out.Positions = append(out.Positions, m.Positions[v])
		if len(m.Normals) == len(m.Positions) {
			out.Normals = append(out.Normals, m.Normals[v])
		}
	}
	for _, t := range m.Triangles {
		if !keep[t[0]] {
			continue
		}
		out.Triangles = append(out.Triangles, [3]int{remap[t[0]], remap[t[1]], remap[t[2]]})
	}
	return out
}
