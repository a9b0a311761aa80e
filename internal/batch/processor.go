// Package batch renders a sweep of poses of one skinned model, one engine
// clone per worker, writing WebP previews and optional meshes per frame.
package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HugoSmits86/nativewebp"

	"implicit-skin/internal/gltfio"
	"implicit-skin/internal/logging"
	"implicit-skin/internal/mathutil"
	"implicit-skin/internal/mesh"
	"implicit-skin/internal/postprocess"
	"implicit-skin/internal/raster"
	"implicit-skin/internal/skeleton"
	"implicit-skin/internal/skin"
)

var (
	ErrJoint   = errors.New("batch: joint out of range")
	ErrSubject = errors.New("batch: subject has no engine")
)

// AnimationFile is the name of the animated sweep written next to the frames.
const AnimationFile = "sweep.webp"

// Frame is one pose of a sweep.
type Frame struct {
	Index int
	Angle float64 // degrees
	Pose  skeleton.Pose
}

// Sweep bends the subtree of joint about +Z in n steps ending at angle
// degrees. A single frame is the end pose; more frames start at the bind
// pose.
func Sweep(skel *skeleton.Skeleton, joint int, angle float64, n int) ([]Frame, error) {
	if joint < 0 || joint >= skel.Len() {
		return nil, fmt.Errorf("joint %d of %d bones: %w", joint, skel.Len(), ErrJoint)
	}
	if n < 1 {
		n = 1
	}
	frames := make([]Frame, n)
	for i := range frames {
		a := angle
		if n > 1 {
			a = angle * float64(i) / float64(n-1)
		}
		r := mathutil.RotZ(mathutil.Deg2Rad(a))
		frames[i] = Frame{
			Index: i,
			Angle: a,
			Pose:  skel.RotateSubtree(skel.BindPose(), joint, r),
		}
	}
	return frames, nil
}

// Config holds the output settings shared by every worker.
type Config struct {
	OutputDir string
	Render    raster.Options
	Workers   int

	// CompareLBS also renders the uncorrected linear blend skinned mesh.
	CompareLBS bool
	// SaveMeshes writes every corrected frame as .glb.
	SaveMeshes bool
	// FrameMillis > 0 writes an animated WebP when there are several frames.
	FrameMillis int
}

// Result holds the outcome of one frame. Paths are relative to OutputDir.
type Result struct {
	Frame    int
	Angle    float64
	Image    string
	LBSImage string
	Mesh     string
	Report   skin.Report
	Err      error

	img image.Image
}

// Run evaluates and renders every frame. Frame failures are recorded in
// their Result; the returned error is reserved for setup problems and
// cancellation.
func Run(ctx context.Context, cfg Config, subj Subject, frames []Frame) ([]Result, error) {
	if subj.Engine == nil {
		return nil, ErrSubject
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Render.Frame.IsEmpty() {
		cfg.Render.Frame = sweepBounds(subj, frames)
	}

	total := len(frames)
	results := make([]Result, total)
	var processed atomic.Int64
	log := logging.Logger()
	start := time.Now()

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if p := processed.Load(); p > 0 {
					rate := float64(p) / time.Since(start).Seconds()
					log.Info("progress", "done", p, "total", total, "frames_per_sec", rate)
				}
			}
		}
	}()

	jobs := make(chan int, cfg.Workers*2)
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eng := subj.Engine.Clone()
			for idx := range jobs {
				results[idx] = processFrame(ctx, cfg, subj, eng, frames[idx])
				processed.Add(1)
			}
		}()
	}

send:
	for i := range frames {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break send
		}
	}
	close(jobs)
	wg.Wait()
	close(done)

	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("batch: %w", err)
	}
	if cfg.FrameMillis > 0 && total > 1 {
		if err := writeAnimation(filepath.Join(cfg.OutputDir, AnimationFile), results, cfg.FrameMillis); err != nil {
			log.Warn("animation not written", "err", err)
		}
	}
	for i := range results {
		results[i].img = nil
	}
	log.Info("sweep rendered", "frames", total, "elapsed", time.Since(start))
	return results, nil
}

func processFrame(ctx context.Context, cfg Config, subj Subject, eng *skin.Engine, f Frame) Result {
	res := Result{Frame: f.Index, Angle: f.Angle}
	fail := func(err error) Result {
		res.Err = err
		return res
	}

	base := skeleton.BlendPositions(subj.Mesh.Positions, subj.Influences, f.Pose)
	if err := eng.UpdateSkeletonPose(f.Pose); err != nil {
		return fail(err)
	}
	if err := eng.UpdateBaseVertices(base); err != nil {
		return fail(err)
	}
	out, rep, err := eng.Evaluate(ctx)
	if err != nil {
		return fail(err)
	}
	res.Report = rep

	m := &mesh.Mesh{Positions: out, Triangles: subj.Mesh.Triangles}
	m.RecomputeNormals()

	stem := fmt.Sprintf("frame_%03d", f.Index)
	res.img = render(m, cfg.Render)
	res.Image = stem + ".webp"
	if err := writeWebP(filepath.Join(cfg.OutputDir, res.Image), res.img); err != nil {
		return fail(err)
	}

	if cfg.CompareLBS {
		lbs := &mesh.Mesh{Positions: base, Triangles: subj.Mesh.Triangles}
		lbs.RecomputeNormals()
		res.LBSImage = stem + "_lbs.webp"
		if err := writeWebP(filepath.Join(cfg.OutputDir, res.LBSImage), render(lbs, cfg.Render)); err != nil {
			return fail(err)
		}
	}
	if cfg.SaveMeshes {
		res.Mesh = stem + ".glb"
		if err := gltfio.SaveMesh(filepath.Join(cfg.OutputDir, res.Mesh), m); err != nil {
			return fail(err)
		}
	}
	return res
}

func render(m *mesh.Mesh, opt raster.Options) *image.NRGBA {
	return postprocess.Downsample(raster.RenderMesh(m, opt), opt.Supersample)
}

// sweepBounds frames every linear blend skinned pose of the sweep, padded so
// corrected bulges stay inside the image.
func sweepBounds(subj Subject, frames []Frame) mathutil.Box {
	b := subj.Mesh.Bounds()
	for _, f := range frames {
		b = b.Union(mathutil.BoxOf(skeleton.BlendPositions(subj.Mesh.Positions, subj.Influences, f.Pose)))
	}
	return b.Pad(0.05 * b.Diagonal())
}

func writeWebP(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := nativewebp.Encode(f, img, nil); err != nil {
		f.Close()
		return fmt.Errorf("webp encode %s: %w", path, err)
	}
	return f.Close()
}

func writeAnimation(path string, results []Result, millis int) error {
	ani := &nativewebp.Animation{}
	for _, r := range results {
		if r.img == nil {
			continue
		}
		ani.Images = append(ani.Images, r.img)
		ani.Durations = append(ani.Durations, uint(millis))
		ani.Disposals = append(ani.Disposals, 1)
	}
	if len(ani.Images) == 0 {
		return errors.New("no frames rendered")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := nativewebp.EncodeAll(f, ani, nil); err != nil {
		f.Close()
		return fmt.Errorf("webp encode %s: %w", path, err)
	}
	return f.Close()
}
