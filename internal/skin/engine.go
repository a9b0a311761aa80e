// Package skin is the engine the host drives: set it up once from a bind-pose
// mesh and skeleton, then per frame push the bone pose and the linearly
// skinned vertices and read back corrected positions.
package skin

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"implicit-skin/internal/bonefield"
	"implicit-skin/internal/compose"
	"implicit-skin/internal/logging"
	"implicit-skin/internal/march"
	"implicit-skin/internal/mathutil"
	"implicit-skin/internal/mesh"
	"implicit-skin/internal/project"
	"implicit-skin/internal/skeleton"
)

// Options bundles the tuning of every stage.
type Options struct {
	Fit     bonefield.Options
	Compose compose.Options
	Project project.Options
	Extract march.Options

	// MaxStepRatio bounds a projection step to this fraction of the bind
	// mesh diagonal when Project.MaxStep is 0.
	MaxStepRatio float64

	// RelaxIterations smooths vertices that stopped on contact; 0 disables.
	RelaxIterations int
	RelaxWeight     float64

	// Workers bounds evaluation goroutines; 0 means runtime.NumCPU().
	Workers int
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		Fit:             bonefield.DefaultOptions(),
		Project:         project.DefaultOptions(),
		Extract:         march.DefaultOptions(),
		MaxStepRatio:    0.02,
		RelaxIterations: 3,
		RelaxWeight:     0.5,
	}
}

// Report summarises one Evaluate call.
type Report struct {
	Vertices  int
	Converged int
	Contact   int
	Stalled   int
	Exhausted int
	// Relaxed counts vertices moved by contact smoothing.
	Relaxed int
	// MaxResidual is the largest |target - value| among projected vertices.
	MaxResidual float64
	Elapsed     time.Duration
}

func (r *Report) add(res project.Result) {
	switch res.Status {
	case project.Converged:
		r.Converged++
	case project.Contact:
		r.Contact++
	case project.Stalled:
		r.Stalled++
	case project.Exhausted:
		r.Exhausted++
	}
	r.MaxResidual = math.Max(r.MaxResidual, res.Residual)
}

// Engine holds the state captured at setup plus the current pose and base
// vertices. Its methods are safe for concurrent use; updates wait for
// running evaluations. The zero value is not set up.
type Engine struct {
	mu sync.RWMutex

	opt       Options
	skel      *skeleton.Skeleton
	fields    []*bonefield.Field
	targets   []float64
	neighbors [][]int

	comp *compose.Composer
	pose skeleton.Pose
	base []mathutil.Vec3
}

// Setup fits the bone fields to the bind mesh and records, per vertex, the
// field value it must return to. Every vertex is sampled onto its dominant
// bone. Failures are *SetupError values and leave no engine behind.
func Setup(m mesh.Mesh, bones []skeleton.BoneDesc, influences [][]skeleton.Influence, opt Options) (*Engine, error) {
	if err := m.Validate(); err != nil {
		return nil, meshError(err)
	}
	for i, p := range m.Positions {
		if !p.IsFinite() {
			return nil, &SetupError{Code: BadTopology, Err: fmt.Errorf("vertex %d is not finite", i)}
		}
	}
	skel, err := skeleton.New(bones)
	if err != nil {
		return nil, skeletonError(err)
	}
	if err := skel.ValidateInfluences(influences, len(m.Positions)); err != nil {
		return nil, &SetupError{Code: InfluenceMismatch, Err: err}
	}

	normals := m.Normals
	if len(normals) == 0 {
		normals = mesh.VertexNormals(m.Positions, m.Triangles)
	}
	samples := make([][]bonefield.Sample, skel.Len())
	for v, list := range influences {
		b := skeleton.DominantBone(list)
		if b == skeleton.NoParent || normals[v] == (mathutil.Vec3{}) {
			continue
		}
		samples[b] = append(samples[b], bonefield.Sample{Pos: m.Positions[v], Normal: normals[v]})
	}
	fields := make([]*bonefield.Field, skel.Len())
	for i, b := range skel.Bones {
		fields[i] = bonefield.Fit(b, samples[i], opt.Fit)
	}

	comp, err := compose.New(skel, fields, opt.Compose)
	if err != nil {
		return nil, err
	}
	pose := skel.BindPose()
	worlds, err := skel.Worlds(pose)
	if err != nil {
		return nil, err
	}
	if err := comp.SetPose(worlds); err != nil {
		return nil, err
	}

	opt.Project = opt.Project.Normalize()
	if opt.Project.MaxStep == 0 && opt.MaxStepRatio > 0 {
		opt.Project.MaxStep = m.Bounds().Diagonal() * opt.MaxStepRatio
	}
	if opt.Workers <= 0 {
		opt.Workers = runtime.NumCPU()
	}

	targets := make([]float64, len(m.Positions))
	for i, p := range m.Positions {
		targets[i], _ = comp.Eval(p)
	}

	e := &Engine{
		opt:       opt,
		skel:      skel,
		fields:    fields,
		targets:   targets,
		neighbors: mesh.Neighbors(len(m.Positions), m.Triangles),
		comp:      comp,
		pose:      pose,
		base:      append([]mathutil.Vec3(nil), m.Positions...),
	}
	logging.Logger().Info("skin engine ready",
		"vertices", len(m.Positions), "triangles", len(m.Triangles),
		"bones", skel.Len(), "pairs", len(comp.Pairs()), "max_step", opt.Project.MaxStep)
	return e, nil
}

// UpdateSkeletonPose sets the per-bone transforms, relative to bind, in bone
// order. A wrong count leaves the previous pose in place.
func (e *Engine) UpdateSkeletonPose(pose skeleton.Pose) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.skel == nil {
		return ErrNotSetup
	}
	worlds, err := e.skel.Worlds(pose)
	if err != nil {
		return fmt.Errorf("skin: update pose: %w", err)
	}
	if err := e.comp.SetPose(worlds); err != nil {
		return fmt.Errorf("skin: update pose: %w", err)
	}
	e.pose = pose.Clone()
	return nil
}

// UpdateBaseVertices sets the pre-correction (linearly skinned) positions.
// A count different from the bind mesh is rejected with ErrVertexCount.
func (e *Engine) UpdateBaseVertices(positions []mathutil.Vec3) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.skel == nil {
		return ErrNotSetup
	}
	if len(positions) != len(e.base) {
		return fmt.Errorf("got %d, want %d: %w", len(positions), len(e.base), ErrVertexCount)
	}
	copy(e.base, positions)
	return nil
}

// Evaluate projects every base vertex back onto its bind field value at the
// current pose and returns the corrected positions in input order.
// Vertices that did not converge keep their best position; they are counted
// in the report, never returned as errors.
func (e *Engine) Evaluate(ctx context.Context) ([]mathutil.Vec3, Report, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.skel == nil {
		return nil, Report{}, ErrNotSetup
	}
	start := time.Now()

	results := make([]project.Result, len(e.base))
	if err := project.All(ctx, e.comp, e.base, e.targets, results, e.opt.Project, e.opt.Workers); err != nil {
		return nil, Report{}, fmt.Errorf("skin: evaluate: %w", err)
	}

	rep := Report{Vertices: len(results)}
	out := make([]mathutil.Vec3, len(results))
	var mask []bool
	for i, res := range results {
		out[i] = res.Pos
		rep.add(res)
		if res.Status == project.Contact && e.opt.RelaxIterations > 0 {
			if mask == nil {
				mask = make([]bool, len(results))
			}
			mask[i] = true
			rep.Relaxed++
		}
	}
	if mask != nil {
		out = project.Relax(out, e.neighbors, mask, e.opt.RelaxIterations, e.opt.RelaxWeight)
	}

	rep.Elapsed = time.Since(start)
	log := logging.Logger()
	log.Debug("evaluate", "vertices", rep.Vertices, "converged", rep.Converged,
		"contact", rep.Contact, "stalled", rep.Stalled, "exhausted", rep.Exhausted,
		"max_residual", rep.MaxResidual, "elapsed", rep.Elapsed)
	if rep.Exhausted > 0 {
		log.Warn("projection did not converge", "vertices", rep.Exhausted, "max_residual", rep.MaxResidual)
	}
	return out, rep, nil
}

// ExtractPreviewSurface meshes the composed skeleton field at iso over the
// bounds of the posed bone supports.
func (e *Engine) ExtractPreviewSurface(ctx context.Context, iso float64) (*mesh.Mesh, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.skel == nil {
		return nil, ErrNotSetup
	}
	m, err := march.Extract(ctx, e.comp, e.comp.Bounds(), iso, e.opt.Extract)
	if err != nil {
		return nil, fmt.Errorf("skin: preview surface: %w", err)
	}
	return m, nil
}

// Clone returns an engine sharing e's fitted fields and targets, with its own
// pose and base vertices. Clones evaluate independently.
func (e *Engine) Clone() *Engine {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.skel == nil {
		return &Engine{}
	}
	return &Engine{
		opt:       e.opt,
		skel:      e.skel,
		fields:    e.fields,
		targets:   e.targets,
		neighbors: e.neighbors,
		comp:      e.comp.Clone(),
		pose:      e.pose.Clone(),
		base:      append([]mathutil.Vec3(nil), e.base...),
	}
}

// Skeleton returns the validated skeleton, or nil before setup.
func (e *Engine) Skeleton() *skeleton.Skeleton {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.skel
}

// Pose returns a copy of the current pose.
func (e *Engine) Pose() skeleton.Pose {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pose.Clone()
}

// FieldKinds returns the kind fitted for each bone.
func (e *Engine) FieldKinds() []bonefield.Kind {
	e.mu.RLock()
	defer e.mu.RUnlock()
	kinds := make([]bonefield.Kind, len(e.fields))
	for i, f := range e.fields {
		kinds[i] = f.Kind
	}
	return kinds
}

// VertexCount returns the number of vertices recorded at setup.
func (e *Engine) VertexCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.base)
}
