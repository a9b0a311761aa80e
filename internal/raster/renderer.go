// Package raster is a small software z-buffer renderer for mesh previews.
package raster

import (
	"image"

	"implicit-skin/internal/mathutil"
	"implicit-skin/internal/mesh"
)

// Options controls a render.
type Options struct {
	// Size is the output edge length in pixels before supersampling.
	Size        int
	Supersample int
	Camera      Camera

	// Frame is the object-space box fitted to the image. An empty box fits
	// the mesh itself; a fixed frame keeps a pose sweep from rescaling.
	Frame mathutil.Box

	Shading Shading
	Matcap  *image.NRGBA
	Color   [3]uint8
	Light   *LightConfig
}

// DefaultOptions returns a 256 pixel, 2× supersampled flat render.
func DefaultOptions() Options {
	return Options{
		Size:        256,
		Supersample: 2,
		Camera:      DefaultCamera(),
		Frame:       mathutil.EmptyBox(),
		Color:       [3]uint8{200, 170, 150},
	}
}

// RenderMesh renders m to a transparent NRGBA image of
// Size×Supersample pixels.
func RenderMesh(m *mesh.Mesh, opt Options) *image.NRGBA {
	if opt.Size <= 0 {
		opt.Size = DefaultOptions().Size
	}
	if opt.Supersample <= 0 {
		opt.Supersample = 1
	}
	if opt.Camera.View == (mathutil.Mat3{}) {
		opt.Camera.View = mathutil.Mat3Identity()
	}
	renderSize := opt.Size * opt.Supersample
	fb := NewFrameBuffer(renderSize, renderSize)
	if len(m.Positions) == 0 || len(m.Triangles) == 0 {
		return fb.Image()
	}

	frame := opt.Frame
	if frame.IsEmpty() {
		frame = m.Bounds()
	}
	margin := 16 * opt.Supersample
	proj := opt.Camera.fit(frame, renderSize, margin)

	lc := opt.Light
	if lc == nil {
		def := DefaultLightConfig()
		lc = &def
	}

	normals := m.Normals
	if len(normals) != len(m.Positions) {
		normals = mesh.VertexNormals(m.Positions, m.Triangles)
	}
	verts := make([]Vertex, len(m.Positions))
	for i, p := range m.Positions {
		x, y, z := proj.point(p)
		verts[i] = Vertex{X: x, Y: y, Z: z, N: opt.Camera.View.MulVec3(normals[i])}
	}

	for _, t := range m.Triangles {
		if t[0] < 0 || t[1] < 0 || t[2] < 0 || t[0] >= len(verts) || t[1] >= len(verts) || t[2] >= len(verts) {
			continue
		}
		RasterizeTriangle(fb, [3]Vertex{verts[t[0]], verts[t[1]], verts[t[2]]}, opt.Color, opt.Shading, opt.Matcap, lc)
	}
	return fb.Image()
}
