package gltfio

import (
	"fmt"
	"sort"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"implicit-skin/internal/mathutil"
	"implicit-skin/internal/mesh"
	"implicit-skin/internal/skeleton"
)

// SaveMesh writes m as a single-node binary glTF.
func SaveMesh(path string, m *mesh.Mesh) error {
	return SaveAsset(path, &Asset{Name: "mesh", Mesh: *m})
}

// SaveAsset writes a as binary glTF. When a has bones, the joints are
// written as a node hierarchy with inverse bind matrices and the four
// heaviest influences of every vertex.
func SaveAsset(path string, a *Asset) error {
	if err := a.Mesh.Validate(); err != nil {
		return fmt.Errorf("gltfio: save %s: %w", path, err)
	}
	doc := gltf.NewDocument()

	m := &a.Mesh
	normals := m.Normals
	if len(normals) == 0 {
		normals = mesh.VertexNormals(m.Positions, m.Triangles)
	}
	pos := make([][3]float32, len(m.Positions))
	nrm := make([][3]float32, len(m.Positions))
	for i := range m.Positions {
		pos[i] = f32(m.Positions[i])
		nrm[i] = f32(normals[i])
	}
	indices := make([]uint32, 0, len(m.Triangles)*3)
	for _, t := range m.Triangles {
		indices = append(indices, uint32(t[0]), uint32(t[1]), uint32(t[2]))
	}

	attrs := gltf.PrimitiveAttributes{
		gltf.POSITION: modeler.WritePosition(doc, pos),
		gltf.NORMAL:   modeler.WriteNormal(doc, nrm),
	}
	name := a.Name
	if name == "" {
		name = "mesh"
	}
	meshNode := &gltf.Node{Name: name, Mesh: gltf.Index(0)}
	doc.Nodes = append(doc.Nodes, meshNode)
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)

	if len(a.Bones) > 0 {
		if len(a.Influences) != len(m.Positions) {
			return fmt.Errorf("gltfio: save %s: %d influence lists for %d vertices: %w",
				path, len(a.Influences), len(m.Positions), skeleton.ErrInfluence)
		}
		joints, weights := packInfluences(a.Influences)
		attrs[gltf.JOINTS_0] = modeler.WriteJoints(doc, joints)
		attrs[gltf.WEIGHTS_0] = modeler.WriteWeights(doc, weights)
		if err := writeSkeleton(doc, a.Bones); err != nil {
			return fmt.Errorf("gltfio: save %s: %w", path, err)
		}
		meshNode.Skin = gltf.Index(0)
	}

	doc.Meshes = []*gltf.Mesh{{
		Name: name,
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(modeler.WriteIndices(doc, indices)),
			Attributes: attrs,
		}},
	}}

	if err := gltf.SaveBinary(doc, path); err != nil {
		return fmt.Errorf("gltfio: save %s: %w", path, err)
	}
	return nil
}

// writeSkeleton appends one node per bone after the mesh node. Node
// transforms are relative to the parent bone's bind.
func writeSkeleton(doc *gltf.Document, bones []skeleton.BoneDesc) error {
	skel, err := skeleton.New(bones)
	if err != nil {
		return err
	}
	first := len(doc.Nodes)
	skin := &gltf.Skin{Name: "skeleton"}
	ibms := make([][4][4]float32, len(bones))
	for i, b := range skel.Bones {
		local := b.Bind
		if b.Parent != skeleton.NoParent {
			local = skel.Bones[b.Parent].InvBind.Mul(b.Bind)
		}
		q := mathutil.Mat3ToQuat(local.Rot)
		node := &gltf.Node{
			Name:        b.Name,
			Translation: [3]float64{local.Pos[0], local.Pos[1], local.Pos[2]},
			Rotation:    [4]float64(q),
		}
		for _, c := range b.Children {
			node.Children = append(node.Children, first+c)
		}
		doc.Nodes = append(doc.Nodes, node)
		skin.Joints = append(skin.Joints, first+i)

		inv := b.InvBind.Mat4()
		for col := 0; col < 4; col++ {
			for row := 0; row < 4; row++ {
				ibms[i][col][row] = float32(inv[row*4+col])
			}
		}
	}
	skin.InverseBindMatrices = gltf.Index(modeler.WriteAccessor(doc, gltf.TargetNone, ibms))
	skin.Skeleton = gltf.Index(first + skel.Root)
	doc.Skins = append(doc.Skins, skin)
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, first+skel.Root)
	return nil
}

// packInfluences keeps the four heaviest influences per vertex, renormalized.
func packInfluences(infl [][]skeleton.Influence) ([][4]uint16, [][4]float32) {
	joints := make([][4]uint16, len(infl))
	weights := make([][4]float32, len(infl))
	for v, list := range infl {
		top := append([]skeleton.Influence(nil), list...)
		sort.SliceStable(top, func(i, j int) bool { return top[i].Weight > top[j].Weight })
		if len(top) > 4 {
			top = top[:4]
		}
		total := 0.0
		for _, in := range top {
			total += in.Weight
		}
		if total <= 0 {
			continue
		}
		for k, in := range top {
			joints[v][k] = uint16(in.Bone)
			weights[v][k] = float32(in.Weight / total)
		}
	}
	return joints, weights
}

func f32(v mathutil.Vec3) [3]float32 {
	return [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
}
