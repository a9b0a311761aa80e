// Package march extracts triangle meshes from scalar fields by sampling them
// on a regular grid (marching cubes).
//
// A point is inside when its value is greater than the iso level. Triangles
// wind counter-clockwise seen from outside and vertex normals point outward,
// along the negated field gradient.
package march

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"implicit-skin/internal/field"
	"implicit-skin/internal/logging"
	"implicit-skin/internal/mathutil"
	"implicit-skin/internal/mesh"
)

var (
	ErrEmptyBox   = errors.New("march: empty sampling box")
	ErrResolution = errors.New("march: resolution out of range")
)

// SaddleRule resolves faces whose four corners alternate inside/outside.
type SaddleRule int

const (
	// SaddleFixed always separates the inside corners.
	SaddleFixed SaddleRule = iota
	// SaddleDecider joins them when the bilinear interpolant's saddle point
	// is inside (asymptotic decider).
	SaddleDecider
)

// ParseSaddleRule accepts "fixed" and "decider".
func ParseSaddleRule(s string) (SaddleRule, error) {
	switch s {
	case "", "fixed":
		return SaddleFixed, nil
	case "decider":
		return SaddleDecider, nil
	}
	return 0, fmt.Errorf("march: unknown saddle rule %q", s)
}

func (r SaddleRule) String() string {
	if r == SaddleDecider {
		return "decider"
	}
	return "fixed"
}

// MaxResolution bounds the number of cells along the longest box side.
const MaxResolution = 1024

// Options tunes extraction.
type Options struct {
	// Resolution is the cell count along the longest side of the box.
	Resolution int
	Saddle     SaddleRule
	// Workers bounds the goroutines used; 0 means runtime.NumCPU().
	Workers int
}

// DefaultOptions returns the extraction defaults.
func DefaultOptions() Options {
	return Options{Resolution: 48, Saddle: SaddleFixed}
}

// grid is a lattice of n[k]+1 sample points per axis.
type grid struct {
	origin mathutil.Vec3
	cell   mathutil.Vec3
	n      [3]int
}

func newGrid(box mathutil.Box, resolution int) (grid, error) {
	if box.IsEmpty() || !box.Min.IsFinite() || !box.Max.IsFinite() {
		return grid{}, ErrEmptyBox
	}
	if resolution < 1 || resolution > MaxResolution {
		return grid{}, fmt.Errorf("%d: %w", resolution, ErrResolution)
	}
	size := box.Size()
	longest := math.Max(size[0], math.Max(size[1], size[2]))
	if longest <= 0 {
		return grid{}, ErrEmptyBox
	}
	h := longest / float64(resolution)

	g := grid{origin: box.Min}
	for k := 0; k < 3; k++ {
		g.n[k] = max(1, int(math.Ceil(size[k]/h-1e-9)))
		g.cell[k] = size[k] / float64(g.n[k])
	}
	return g, nil
}

func (g grid) index(i, j, k int) int {
	return i + (g.n[0]+1)*(j+(g.n[1]+1)*k)
}

func (g grid) point(i, j, k int) mathutil.Vec3 {
	return mathutil.Vec3{
		g.origin[0] + float64(i)*g.cell[0],
		g.origin[1] + float64(j)*g.cell[1],
		g.origin[2] + float64(k)*g.cell[2],
	}
}

// CellDiagonal returns the cell diagonal the options produce for box, or 0
// for an invalid box.
func CellDiagonal(box mathutil.Box, opt Options) float64 {
	g, err := newGrid(box, opt.withDefaults().Resolution)
	if err != nil {
		return 0
	}
	return g.cell.Len()
}

func (o Options) withDefaults() Options {
	if o.Resolution == 0 {
		o.Resolution = DefaultOptions().Resolution
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	return o
}

// Extract samples f over box and triangulates the level set f = iso.
// Sampling and triangulation both run in parallel over z layers; each slab
// of layers builds its own vertex and triangle lists, merged afterwards with
// vertices on shared grid edges welded. Cancellation is checked per layer.
func Extract(ctx context.Context, f field.Field, box mathutil.Box, iso float64, opt Options) (*mesh.Mesh, error) {
	opt = opt.withDefaults()
	g, err := newGrid(box, opt.Resolution)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	samples := make([]float64, (g.n[0]+1)*(g.n[1]+1)*(g.n[2]+1))
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(opt.Workers)
	for k := 0; k <= g.n[2]; k++ {
		eg.Go(func() error {
			if err := ectx.Err(); err != nil {
				return err
			}
			for j := 0; j <= g.n[1]; j++ {
				for i := 0; i <= g.n[0]; i++ {
					samples[g.index(i, j, k)] = field.Value(f, g.point(i, j, k))
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	slabCount := min(g.n[2], opt.Workers*4)
	parts := make([]*slab, slabCount)
	eg, ectx = errgroup.WithContext(ctx)
	eg.SetLimit(opt.Workers)
	for s := 0; s < slabCount; s++ {
		z0, z1 := s*g.n[2]/slabCount, (s+1)*g.n[2]/slabCount
		eg.Go(func() error {
			sl := &slab{g: g, f: f, samples: samples, iso: iso, saddle: opt.Saddle, index: map[int]int{}}
			for k := z0; k < z1; k++ {
				if err := ectx.Err(); err != nil {
					return err
				}
				sl.layer(k)
			}
			parts[s] = sl
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	m := merge(parts)
	logging.Logger().Debug("iso-surface extracted",
		"cells", g.n, "slabs", slabCount, "saddle", opt.Saddle,
		"vertices", len(m.Positions), "triangles", len(m.Triangles), "elapsed", time.Since(start))
	return m, nil
}

// ExtractScalar is Extract for fields without an analytic gradient; normals
// come from central differences at a tenth of the cell size.
func ExtractScalar(ctx context.Context, s field.Scalar, box mathutil.Box, iso float64, opt Options) (*mesh.Mesh, error) {
	h := 1e-4
	if g, err := newGrid(box, opt.withDefaults().Resolution); err == nil {
		h = math.Max(g.cell[0], math.Max(g.cell[1], g.cell[2])) * 0.1
	}
	return Extract(ctx, field.WithGradient(s, h), box, iso, opt)
}
