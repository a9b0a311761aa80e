// Package project moves points onto an iso-value of a field by damped
// gradient steps.
package project

import (
	"fmt"
	"math"

	"implicit-skin/internal/field"
	"implicit-skin/internal/mathutil"
)

// Status tells how a projection ended. Only Converged reaches the target
// within tolerance; the others return the best point found.
type Status int

const (
	// Converged: residual within tolerance.
	Converged Status = iota
	// Contact: the gradient turned sharply, meaning the point ran into the
	// field of another bone. The point stops before crossing.
	Contact
	// Stalled: the gradient vanished, so no direction could be estimated.
	Stalled
	// Exhausted: the iteration budget ran out.
	Exhausted
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case Contact:
		return "contact"
	case Stalled:
		return "stalled"
	case Exhausted:
		return "exhausted"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Options tunes the iteration.
type Options struct {
	MaxIterations int
	// Tolerance on |target - value|.
	Tolerance float64
	// StepScale damps the Newton step (0 < StepScale <= 1).
	StepScale float64
	// MaxStep caps the length of a single step; 0 means unbounded.
	MaxStep float64
	// MinGradient is the squared gradient length under which the point is
	// considered stalled.
	MinGradient float64
	// StopAngle in degrees; consecutive gradients further apart signal
	// contact. 0 disables contact detection.
	StopAngle float64
}

// DefaultOptions returns the projection defaults.
func DefaultOptions() Options {
	return Options{
		MaxIterations: 30,
		Tolerance:     1e-4,
		StepScale:     0.35,
		MinGradient:   1e-10,
		StopAngle:     55,
	}
}

// Normalize fills zero fields with defaults.
func (o Options) Normalize() Options {
	d := DefaultOptions()
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.StepScale <= 0 || o.StepScale > 1 {
		o.StepScale = d.StepScale
	}
	if o.MinGradient <= 0 {
		o.MinGradient = d.MinGradient
	}
	if o.MaxStep < 0 {
		o.MaxStep = 0
	}
	return o
}

// Result is the outcome of one projection.
type Result struct {
	Pos        mathutil.Vec3
	Status     Status
	Iterations int
	// Residual is |target - value| at Pos.
	Residual float64
}

// Project moves start along the field gradient until the field equals target.
// A point where the gradient direction jumps is never accepted: the previous
// best point is returned with status Contact. Options are used as given; call
// Normalize first for defaults.
func Project(f field.Field, start mathutil.Vec3, target float64, opt Options) Result {
	stopAngle := mathutil.Deg2Rad(opt.StopAngle)

	p := start
	v, g := f.Eval(p)
	r := target - v
	best := Result{Pos: p, Residual: math.Abs(r)}

	var prevG mathutil.Vec3
	for it := 0; ; it++ {
		if math.Abs(r) <= opt.Tolerance {
			return Result{Pos: p, Status: Converged, Iterations: it, Residual: math.Abs(r)}
		}
		if it > 0 {
			if stopAngle > 0 && mathutil.AngleBetween(g, prevG) > stopAngle {
				best.Status, best.Iterations = Contact, it
				return best
			}
			if a := math.Abs(r); a < best.Residual {
				best.Pos, best.Residual = p, a
			}
		}
		if it >= opt.MaxIterations {
			break
		}
		g2 := g.Len2()
		if g2 < opt.MinGradient {
			best.Status, best.Iterations = Stalled, it
			return best
		}

		step := g.Scale(opt.StepScale * r / g2)
		if l := step.Len(); opt.MaxStep > 0 && l > opt.MaxStep {
			step = step.Scale(opt.MaxStep / l)
		}
		prevG = g
		p = p.Add(step)
		v, g = f.Eval(p)
		r = target - v
	}

	best.Status, best.Iterations = Exhausted, opt.MaxIterations
	return best
}
