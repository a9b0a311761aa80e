package raster

import (
	"math"

	"implicit-skin/internal/mathutil"
)

// LightConfig is a two-light rig in view space (+Y up, +Z toward the
// viewer) with a hemisphere fill and a Blinn-Phong highlight on the key.
type LightConfig struct {
	Key mathutil.Vec3
	Rim mathutil.Vec3

	Ambient   float64
	Fill      float64
	KeyGain   float64
	RimGain   float64
	Specular  float64
	Shininess float64
	Exposure  float64
}

// DefaultLightConfig returns a key light from the upper right, a cool rim
// light from behind and a soft hemisphere fill.
func DefaultLightConfig() LightConfig {
	return LightConfig{
		Key:       mathutil.Vec3{180, 260, 140}.Normalize(),
		Rim:       mathutil.Vec3{-160, 130, -210}.Normalize(),
		Ambient:   0.35,
		Fill:      0.40,
		KeyGain:   1.30,
		RimGain:   0.45,
		Specular:  0.35,
		Shininess: 16,
		Exposure:  1.05,
	}
}

// Shade returns the light reaching a surface with unit normal n. Both sides
// of a surface are lit the same.
func (lc *LightConfig) Shade(n mathutil.Vec3) float64 {
	s := lc.Ambient
	s += lc.Fill * (1 - 0.5*math.Abs(n[1]))
	s += lc.KeyGain * math.Abs(n.Dot(lc.Key))
	s += lc.RimGain * math.Abs(n.Dot(lc.Rim))

	half := lc.Key.Add(mathutil.Vec3{0, 0, 1}).Normalize()
	if h := n.Dot(half); h > 0 {
		s += lc.Specular * math.Pow(h, lc.Shininess)
	}
	return s
}

// Tonemap scales an sRGB base color by shade in linear light and maps the
// result back through a filmic curve and gamma.
func (lc *LightConfig) Tonemap(r, g, b uint8, shade float64) (uint8, uint8, uint8) {
	k := shade * lc.Exposure
	out := func(c uint8) uint8 {
		return clamp255(math.Pow(filmic(linearLUT[c]*k), 1/gamma) * 255)
	}
	return out(r), out(g), out(b)
}

const gamma = 2.2

var linearLUT = func() (t [256]float64) {
	for i := range t {
		t[i] = math.Pow(float64(i)/255, gamma)
	}
	return t
}()

// filmic is the ACES fitted curve.
func filmic(x float64) float64 {
	return x * (2.51*x + 0.03) / (x*(2.43*x+0.59) + 0.14)
}

func clamp255(v float64) uint8 {
	return uint8(math.Min(math.Max(v, 0), 255) + 0.5)
}
