package batch

import (
	"path/filepath"

	"implicit-skin/internal/gltfio"
	"implicit-skin/internal/mesh"
	"implicit-skin/internal/procedural"
	"implicit-skin/internal/skeleton"
	"implicit-skin/internal/skin"
)

// Subject is the skinned model being swept. Mesh is the bind pose.
type Subject struct {
	Name       string
	Mesh       mesh.Mesh
	Influences [][]skeleton.Influence
	Engine     *skin.Engine
}

// LoadSubject reads a skinned glTF file, or builds the default procedural
// limb when path is empty, and sets up an engine for it.
func LoadSubject(path string, opt skin.Options) (Subject, error) {
	var a *gltfio.Asset
	if path == "" {
		l := procedural.NewLimb(procedural.DefaultLimbOptions())
		a = &gltfio.Asset{Name: "procedural limb", Mesh: l.Mesh, Bones: l.Bones, Influences: l.Influences}
	} else {
		var err error
		if a, err = gltfio.Load(path); err != nil {
			return Subject{}, err
		}
		if a.Name == "" {
			a.Name = filepath.Base(path)
		}
	}
	eng, err := skin.Setup(a.Mesh, a.Bones, a.Influences, opt)
	if err != nil {
		return Subject{}, err
	}
	return Subject{Name: a.Name, Mesh: a.Mesh, Influences: a.Influences, Engine: eng}, nil
}
