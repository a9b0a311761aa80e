// Package gltfio reads skinned meshes from glTF 2.0 files and writes meshes
// back as binary glTF.
package gltfio

import (
	"errors"
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"implicit-skin/internal/logging"
	"implicit-skin/internal/mathutil"
	"implicit-skin/internal/mesh"
	"implicit-skin/internal/skeleton"
)

var (
	ErrNoMesh    = errors.New("gltfio: document has no mesh")
	ErrNoSkin    = errors.New("gltfio: mesh is not skinned")
	ErrPrimitive = errors.New("gltfio: only indexed or plain triangle primitives are supported")
	ErrAccessor  = errors.New("gltfio: malformed accessor")
)

// Asset is a skinned mesh with its skeleton, in mesh space.
type Asset struct {
	Name       string
	Mesh       mesh.Mesh
	Bones      []skeleton.BoneDesc
	Influences [][]skeleton.Influence
	// DummyRoot is set when bone 0 was added to join several skin roots.
	DummyRoot bool
}

// Load reads the first skinned mesh node of a .gltf or .glb file. Bind
// transforms come from the inverse bind matrices, or from the joint nodes'
// rest transforms when the skin has none. Scale is discarded.
func Load(path string) (*Asset, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gltfio: open %s: %w", path, err)
	}

	var node *gltf.Node
	for _, n := range doc.Nodes {
		if n.Mesh != nil && n.Skin != nil {
			node = n
			break
		}
	}
	if node == nil {
		if len(doc.Meshes) == 0 {
			return nil, fmt.Errorf("%s: %w", path, ErrNoMesh)
		}
		return nil, fmt.Errorf("%s: %w", path, ErrNoSkin)
	}

	a := &Asset{Name: node.Name}
	var joints [][][2]float64
	a.Mesh, joints, err = readMesh(doc, doc.Meshes[*node.Mesh], true)
	if err != nil {
		return nil, fmt.Errorf("gltfio: %s: %w", path, err)
	}
	if err := a.readSkin(doc, doc.Skins[*node.Skin], joints); err != nil {
		return nil, fmt.Errorf("gltfio: %s: %w", path, err)
	}

	logging.Logger().Info("gltf loaded", "path", path, "mesh", a.Name,
		"vertices", len(a.Mesh.Positions), "triangles", len(a.Mesh.Triangles),
		"bones", len(a.Bones), "dummy_root", a.DummyRoot)
	return a, nil
}

// LoadMesh reads the first mesh of a file, skinned or not.
func LoadMesh(path string) (*mesh.Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gltfio: open %s: %w", path, err)
	}
	if len(doc.Meshes) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoMesh)
	}
	m, _, err := readMesh(doc, doc.Meshes[0], false)
	if err != nil {
		return nil, fmt.Errorf("gltfio: %s: %w", path, err)
	}
	return &m, nil
}

// readMesh concatenates the triangle primitives of gm. With skinned set it
// also returns, per vertex, the (joint, weight) pairs with positive weight.
func readMesh(doc *gltf.Document, gm *gltf.Mesh, skinned bool) (mesh.Mesh, [][][2]float64, error) {
	var m mesh.Mesh
	var joints [][][2]float64
	missingNormals := false

	for pi, p := range gm.Primitives {
		if p.Mode != gltf.PrimitiveTriangles {
			return m, nil, fmt.Errorf("primitive %d mode %v: %w", pi, p.Mode, ErrPrimitive)
		}
		posIdx, ok := p.Attributes[gltf.POSITION]
		if !ok {
			return m, nil, fmt.Errorf("primitive %d has no positions: %w", pi, ErrAccessor)
		}
		pos, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
		if err != nil {
			return m, nil, fmt.Errorf("primitive %d positions: %w", pi, err)
		}
		base := len(m.Positions)
		for _, v := range pos {
			m.Positions = append(m.Positions, vec3(v))
		}

		if nIdx, ok := p.Attributes[gltf.NORMAL]; ok && !missingNormals {
			normals, err := modeler.ReadNormal(doc, doc.Accessors[nIdx], nil)
			if err != nil {
				return m, nil, fmt.Errorf("primitive %d normals: %w", pi, err)
			}
			for _, v := range normals {
				m.Normals = append(m.Normals, vec3(v).Normalize())
			}
		} else {
			missingNormals = true
		}

		if p.Indices != nil {
			indices, err := modeler.ReadIndices(doc, doc.Accessors[*p.Indices], nil)
			if err != nil {
				return m, nil, fmt.Errorf("primitive %d indices: %w", pi, err)
			}
			if len(indices)%3 != 0 {
				return m, nil, fmt.Errorf("primitive %d: %d indices: %w", pi, len(indices), ErrPrimitive)
			}
			for i := 0; i < len(indices); i += 3 {
				m.Triangles = append(m.Triangles, [3]int{
					base + int(indices[i]), base + int(indices[i+1]), base + int(indices[i+2]),
				})
			}
		} else {
			if len(pos)%3 != 0 {
				return m, nil, fmt.Errorf("primitive %d: %d vertices: %w", pi, len(pos), ErrPrimitive)
			}
			for i := 0; i < len(pos); i += 3 {
				m.Triangles = append(m.Triangles, [3]int{base + i, base + i + 1, base + i + 2})
			}
		}

		if !skinned {
			continue
		}
		vj := make([][][2]float64, len(pos))
		jIdx, hasJ := p.Attributes[gltf.JOINTS_0]
		wIdx, hasW := p.Attributes[gltf.WEIGHTS_0]
		if hasJ && hasW {
			js, err := modeler.ReadJoints(doc, doc.Accessors[jIdx], nil)
			if err != nil {
				return m, nil, fmt.Errorf("primitive %d joints: %w", pi, err)
			}
			ws, err := modeler.ReadWeights(doc, doc.Accessors[wIdx], nil)
			if err != nil {
				return m, nil, fmt.Errorf("primitive %d weights: %w", pi, err)
			}
			if len(js) != len(pos) || len(ws) != len(pos) {
				return m, nil, fmt.Errorf("primitive %d skin attribute count: %w", pi, ErrAccessor)
			}
			for v := range pos {
				for k := 0; k < 4; k++ {
					if ws[v][k] > 0 {
						vj[v] = append(vj[v], [2]float64{float64(js[v][k]), float64(ws[v][k])})
					}
				}
			}
		}
		joints = append(joints, vj...)
	}

	if missingNormals {
		m.RecomputeNormals()
	}
	return m, joints, nil
}

// readSkin builds the bone list from the skin's joints and converts the
// per-vertex joint pairs into influences.
func (a *Asset) readSkin(doc *gltf.Document, skin *gltf.Skin, joints [][][2]float64) error {
	n := len(skin.Joints)
	if n == 0 {
		return ErrNoSkin
	}
	jointOf := make(map[int]int, n)
	for i, node := range skin.Joints {
		jointOf[node] = i
	}
	parentNode := make(map[int]int, len(doc.Nodes))
	for i, node := range doc.Nodes {
		for _, c := range node.Children {
			parentNode[c] = i
		}
	}

	binds := make([]mathutil.Transform, n)
	if skin.InverseBindMatrices != nil {
		data, err := modeler.ReadAccessor(doc, doc.Accessors[*skin.InverseBindMatrices], nil)
		if err != nil {
			return fmt.Errorf("inverse bind matrices: %w", err)
		}
		mats, ok := data.([][4][4]float32)
		if !ok || len(mats) < n {
			return fmt.Errorf("inverse bind matrices: %w", ErrAccessor)
		}
		for i, m := range mats[:n] {
			binds[i] = mathutil.TransformFromMat4(mathutil.Mat4FromColumnMajor(flatten(m))).Inverse()
		}
	} else {
		for i, node := range skin.Joints {
			binds[i] = nodeWorld(doc, node, parentNode)
		}
	}

	parents := make([]int, n)
	roots := 0
	for i, node := range skin.Joints {
		parents[i] = skeleton.NoParent
		for cur, ok := parentNode[node]; ok; cur, ok = parentNode[cur] {
			if j, isJoint := jointOf[cur]; isJoint {
				parents[i] = j
				break
			}
		}
		if parents[i] == skeleton.NoParent {
			roots++
		}
	}

	shift := 0
	if roots > 1 {
		a.DummyRoot = true
		shift = 1
		a.Bones = append(a.Bones, skeleton.BoneDesc{Name: "root", Parent: skeleton.NoParent, Bind: mathutil.Identity()})
	}
	for i, node := range skin.Joints {
		name := doc.Nodes[node].Name
		if name == "" {
			name = fmt.Sprintf("joint%d", i)
		}
		parent := parents[i]
		switch {
		case parent != skeleton.NoParent:
			parent += shift
		case a.DummyRoot:
			parent = 0
		}
		a.Bones = append(a.Bones, skeleton.BoneDesc{Name: name, Parent: parent, Bind: binds[i]})
	}

	a.Influences = make([][]skeleton.Influence, len(joints))
	for v, list := range joints {
		for _, jw := range list {
			j := int(jw[0])
			if j >= n {
				return fmt.Errorf("vertex %d joint %d of %d: %w", v, j, n, ErrAccessor)
			}
			a.Influences[v] = append(a.Influences[v], skeleton.Influence{Bone: j + shift, Weight: jw[1]})
		}
	}
	return nil
}

// nodeWorld composes the rigid part of node's rest transform with its
// ancestors'.
func nodeWorld(doc *gltf.Document, node int, parentNode map[int]int) mathutil.Transform {
	w := nodeLocal(doc.Nodes[node])
	for cur, ok := parentNode[node]; ok; cur, ok = parentNode[cur] {
		w = nodeLocal(doc.Nodes[cur]).Mul(w)
	}
	return w
}

func nodeLocal(n *gltf.Node) mathutil.Transform {
	if n.Matrix != gltf.DefaultMatrix && n.Matrix != [16]float64{} {
		var c [16]float32
		for i, v := range n.Matrix {
			c[i] = float32(v)
		}
		return mathutil.TransformFromMat4(mathutil.Mat4FromColumnMajor(c))
	}
	r := n.RotationOrDefault()
	t := n.TranslationOrDefault()
	return mathutil.Transform{
		Rot: mathutil.QuatToMat3(mathutil.Quat{r[0], r[1], r[2], r[3]}.Normalize()),
		Pos: mathutil.Vec3{t[0], t[1], t[2]},
	}
}

func flatten(m [4][4]float32) [16]float32 {
	var c [16]float32
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			c[col*4+row] = m[col][row]
		}
	}
	return c
}

func vec3(v [3]float32) mathutil.Vec3 {
	return mathutil.Vec3{float64(v[0]), float64(v[1]), float64(v[2])}
}
