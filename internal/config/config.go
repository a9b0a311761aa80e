package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"implicit-skin/internal/bonefield"
	"implicit-skin/internal/march"
	"implicit-skin/internal/raster"
	"implicit-skin/internal/skin"
	"implicit-skin/internal/texture"
)

var ErrFormat = errors.New("config: unsupported file extension")

// Config holds all configurable paths, the pose to render, render settings
// and engine tuning.
type Config struct {
	// Paths
	Input     string `json:"input" yaml:"input" toml:"input"`
	OutputDir string `json:"output_dir" yaml:"output_dir" toml:"output_dir"`
	Matcap    string `json:"matcap" yaml:"matcap" toml:"matcap"`

	// Pose: the subtree of Joint is bent by Angle degrees about +Z. With
	// Frames > 1 the angle is swept from 0.
	Joint  int     `json:"joint" yaml:"joint" toml:"joint"`
	Angle  float64 `json:"angle" yaml:"angle" toml:"angle"`
	Frames int     `json:"frames" yaml:"frames" toml:"frames"`

	// Render settings. A sweep of more than one frame is also written as an
	// animated WebP showing each frame for FrameMillis.
	RenderSize  int    `json:"render_size" yaml:"render_size" toml:"render_size"`
	Supersample int    `json:"supersample" yaml:"supersample" toml:"supersample"`
	FrameMillis int    `json:"frame_millis" yaml:"frame_millis" toml:"frame_millis"`
	CompareLBS  bool   `json:"compare_lbs" yaml:"compare_lbs" toml:"compare_lbs"`
	SaveMeshes  bool   `json:"save_meshes" yaml:"save_meshes" toml:"save_meshes"`
	Workers     int    `json:"workers" yaml:"workers" toml:"workers"`
	Shading     string `json:"shading" yaml:"shading" toml:"shading"`

	Engine Engine `json:"engine" yaml:"engine" toml:"engine"`
}

// Engine is the tunable subset of skin.Options. Zero fields keep the engine
// defaults.
type Engine struct {
	Shape          string  `json:"shape" yaml:"shape" toml:"shape"`
	SupportRatio   float64 `json:"support_ratio" yaml:"support_ratio" toml:"support_ratio"`
	MaxHRBFSamples int     `json:"max_hrbf_samples" yaml:"max_hrbf_samples" toml:"max_hrbf_samples"`
	BlendPower     float64 `json:"blend_power" yaml:"blend_power" toml:"blend_power"`

	MaxIterations int     `json:"max_iterations" yaml:"max_iterations" toml:"max_iterations"`
	Tolerance     float64 `json:"tolerance" yaml:"tolerance" toml:"tolerance"`
	StepScale     float64 `json:"step_scale" yaml:"step_scale" toml:"step_scale"`
	StopAngle     float64 `json:"stop_angle" yaml:"stop_angle" toml:"stop_angle"`
	MaxStepRatio  float64 `json:"max_step_ratio" yaml:"max_step_ratio" toml:"max_step_ratio"`

	RelaxIterations int     `json:"relax_iterations" yaml:"relax_iterations" toml:"relax_iterations"`
	RelaxWeight     float64 `json:"relax_weight" yaml:"relax_weight" toml:"relax_weight"`

	Resolution int    `json:"resolution" yaml:"resolution" toml:"resolution"`
	Saddle     string `json:"saddle" yaml:"saddle" toml:"saddle"`
}

// Load reads a config file, choosing the decoder from the extension
// (.json, .yaml/.yml, .toml). Fields not set in the file keep their zero
// values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		return Config{}, fmt.Errorf("%s: %w", path, ErrFormat)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	Input      string
	OutputDir  string
	Workers    int
	Joint      int
	Angle      float64
	Frames     int
	Resolution int
	Saddle     string
}

// Resolve applies non-zero flags over the file values, then fills what is
// still empty with defaults.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.Input != "" {
		c.Input = flags.Input
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.Joint > 0 {
		c.Joint = flags.Joint
	}
	if flags.Angle != 0 {
		c.Angle = flags.Angle
	}
	if flags.Frames > 0 {
		c.Frames = flags.Frames
	}
	if flags.Resolution > 0 {
		c.Engine.Resolution = flags.Resolution
	}
	if flags.Saddle != "" {
		c.Engine.Saddle = flags.Saddle
	}

	if c.OutputDir == "" {
		c.OutputDir = "renders"
	}
	if c.Joint <= 0 {
		c.Joint = 1
	}
	if c.Frames <= 0 {
		c.Frames = 1
	}

	// Defaults for render settings
	if c.RenderSize <= 0 {
		c.RenderSize = 256
	}
	if c.Supersample <= 0 {
		c.Supersample = 2
	}
	if c.FrameMillis <= 0 {
		c.FrameMillis = 80
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Shading == "" {
		c.Shading = "flat"
		if c.Matcap != "" {
			c.Shading = "matcap"
		}
	}
}

// EngineOptions converts the engine section into skin options on top of
// skin.DefaultOptions.
func (c *Config) EngineOptions() (skin.Options, error) {
	o := skin.DefaultOptions()
	e := c.Engine

	switch bonefield.Shape(e.Shape) {
	case "":
	case bonefield.ShapeAuto, bonefield.ShapeCapsule:
		o.Fit.Shape = bonefield.Shape(e.Shape)
	default:
		return skin.Options{}, fmt.Errorf("config: unknown field shape %q", e.Shape)
	}
	saddle, err := march.ParseSaddleRule(e.Saddle)
	if err != nil {
		return skin.Options{}, fmt.Errorf("config: %w", err)
	}
	o.Extract.Saddle = saddle

	setF := func(dst *float64, v float64) {
		if v > 0 {
			*dst = v
		}
	}
	setI := func(dst *int, v int) {
		if v > 0 {
			*dst = v
		}
	}
	setF(&o.Fit.SupportRatio, e.SupportRatio)
	setI(&o.Fit.MaxHRBFSamples, e.MaxHRBFSamples)
	setF(&o.Compose.BlendPower, e.BlendPower)
	setI(&o.Project.MaxIterations, e.MaxIterations)
	setF(&o.Project.Tolerance, e.Tolerance)
	setF(&o.Project.StepScale, e.StepScale)
	setF(&o.Project.StopAngle, e.StopAngle)
	setF(&o.MaxStepRatio, e.MaxStepRatio)
	setI(&o.RelaxIterations, e.RelaxIterations)
	setF(&o.RelaxWeight, e.RelaxWeight)
	setI(&o.Extract.Resolution, e.Resolution)
	o.Workers = c.Workers
	o.Extract.Workers = c.Workers
	return o, nil
}

// RenderOptions builds the raster settings, loading the matcap texture when
// one is configured.
func (c *Config) RenderOptions() (raster.Options, error) {
	opt := raster.DefaultOptions()
	if c.RenderSize > 0 {
		opt.Size = c.RenderSize
	}
	if c.Supersample > 0 {
		opt.Supersample = c.Supersample
	}
	shading, err := raster.ParseShading(c.Shading)
	if err != nil {
		return opt, fmt.Errorf("config: %w", err)
	}
	opt.Shading = shading
	if c.Matcap != "" {
		if opt.Matcap, err = texture.LoadImage(c.Matcap); err != nil {
			return opt, fmt.Errorf("config: matcap: %w", err)
		}
	}
	if opt.Shading == raster.ShadeMatcap && opt.Matcap == nil {
		return opt, errors.New("config: matcap shading needs a matcap texture")
	}
	return opt, nil
}
