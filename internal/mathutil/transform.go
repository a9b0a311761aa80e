package mathutil

// Transform is a rigid transform p' = Rot·p + Pos.
type Transform struct {
	Rot Mat3
	Pos Vec3
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{Rot: Mat3Identity()}
}

// Translate returns a pure translation.
func Translate(v Vec3) Transform {
	return Transform{Rot: Mat3Identity(), Pos: v}
}

// Apply transforms a point.
func (t Transform) Apply(p Vec3) Vec3 {
	return t.Rot.MulVec3(p).Add(t.Pos)
}

// ApplyVec transforms a direction (no translation).
func (t Transform) ApplyVec(v Vec3) Vec3 {
	return t.Rot.MulVec3(v)
}

// Mul returns t∘b: b is applied first.
func (t Transform) Mul(b Transform) Transform {
	return Transform{
		Rot: Mat3Mul(t.Rot, b.Rot),
		Pos: t.Rot.MulVec3(b.Pos).Add(t.Pos),
	}
}

// Inverse assumes Rot is orthonormal.
func (t Transform) Inverse() Transform {
	rt := t.Rot.Transpose()
	return Transform{Rot: rt, Pos: rt.MulVec3(t.Pos).Scale(-1)}
}

// Mat4 returns the 4×4 affine form.
func (t Transform) Mat4() Mat4 {
	return FromMat3Translation(t.Rot, t.Pos)
}

// TransformFromMat4 extracts a rigid transform from an affine matrix.
// Scale and shear are removed from the rotation part.
func TransformFromMat4(m Mat4) Transform {
	return Transform{Rot: m.Rot3().Orthonormalize(), Pos: m.Translation()}
}

// RotateAbout returns the rotation r applied around pivot.
func RotateAbout(r Mat3, pivot Vec3) Transform {
	return Transform{Rot: r, Pos: pivot.Sub(r.MulVec3(pivot))}
}

// IsIdentity reports whether t is approximately the identity.
func (t Transform) IsIdentity() bool {
	return t.Mat4().IsIdentity()
}
