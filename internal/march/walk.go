package march

// walk triangulates one cube configuration by tracing the iso-line on each
// face and chaining the segments into loops. join reports, for a face with
// four crossings, whether its inside corners are connected; nil separates
// them.
func walk(cfg uint8, join func(face int) bool) []loop {
	inside := func(c int) bool { return cfg>>c&1 != 0 }

	var next [12]int
	for i := range next {
		next[i] = -1
	}
	segment := func(face, e1, e2 int) {
		if orientedBackwards(face, e1, e2, inside) {
			e1, e2 = e2, e1
		}
		next[e1] = e2
	}

	for fi, f := range cubeFaces {
		var cross [4]int
		n := 0
		for i := 0; i < 4; i++ {
			a, b := f.corners[i], f.corners[(i+1)%4]
			if inside(a) != inside(b) {
				cross[n] = edgeIndex[a][b]
				n++
			}
		}
		switch n {
		case 2:
			segment(fi, cross[0], cross[1])
		case 4:
			joined := join != nil && join(fi)
			// Cut off the corners that end up isolated: the inside ones
			// when inside corners are separated, the outside ones otherwise.
			for i := 0; i < 4; i++ {
				c := f.corners[i]
				if inside(c) == joined {
					continue
				}
				prev, nxt := f.corners[(i+3)%4], f.corners[(i+1)%4]
				segment(fi, edgeIndex[prev][c], edgeIndex[c][nxt])
			}
		}
	}

	var loops []loop
	var seen [12]bool
	for e := 0; e < 12; e++ {
		if next[e] < 0 || seen[e] {
			continue
		}
		var edges []int
		for cur := e; !seen[cur]; cur = next[cur] {
			seen[cur] = true
			edges = append(edges, cur)
		}
		loops = append(loops, fanFromApex(edges))
	}
	return loops
}

// orientedBackwards reports whether segment e1→e2 on face must be flipped so
// that chained loops wind with the inside on the left, seen from outside the
// cube. Coordinates are doubled so edge midpoints stay integral.
func orientedBackwards(face, e1, e2 int, inside func(int) bool) bool {
	mid := func(e int) [3]int {
		a, b := cornerPos(cubeEdges[e][0]), cornerPos(cubeEdges[e][1])
		return [3]int{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
	}
	p1, p2 := mid(e1), mid(e2)
	ic := cubeEdges[e1][0]
	if !inside(ic) {
		ic = cubeEdges[e1][1]
	}
	cp := cornerPos(ic)
	d := [3]int{p2[0] - p1[0], p2[1] - p1[1], p2[2] - p1[2]}
	q := [3]int{2*cp[0] - p1[0], 2*cp[1] - p1[1], 2*cp[2] - p1[2]}
	cr := [3]int{
		d[1]*q[2] - d[2]*q[1],
		d[2]*q[0] - d[0]*q[2],
		d[0]*q[1] - d[1]*q[0],
	}
	n := cubeFaces[face].normal
	return cr[0]*n[0]+cr[1]*n[1]+cr[2]*n[2] > 0
}

// fanFromApex rotates edges so that no fan diagonal from edges[0] joins two
// points on the same cube face. Diagonals on a face would be shared with the
// neighbouring cell and break the manifold.
func fanFromApex(edges []int) loop {
	n := len(edges)
	for s := 0; s < n; s++ {
		ok := true
		for t := 2; t < n-1 && ok; t++ {
			ok = edgeFaces[edges[s]]&edgeFaces[edges[(s+t)%n]] == 0
		}
		if ok {
			rot := make([]int, 0, n)
			rot = append(rot, edges[s:]...)
			rot = append(rot, edges[:s]...)
			return loop{edges: rot}
		}
	}
	return loop{edges: edges, centroid: true}
}

// asymptoticJoin decides a face with four crossings from its corner values
// relative to the iso level (cyclic order a, b, c, d). Inside corners are
// joined when the bilinear saddle point is inside.
func asymptoticJoin(a, b, c, d float64) bool {
	den := a + c - b - d
	if den == 0 {
		return false
	}
	return (a*c-b*d)/den > 0
}
