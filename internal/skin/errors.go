package skin

import (
	"errors"
	"fmt"

	"implicit-skin/internal/mesh"
	"implicit-skin/internal/skeleton"
)

var (
	ErrNotSetup    = errors.New("skin: engine not set up")
	ErrVertexCount = errors.New("skin: vertex count does not match setup")
)

// Code classifies why Setup failed.
type Code int

const (
	EmptyMesh Code = iota + 1
	BadTopology
	NoBones
	BadParent
	MultipleRoots
	Cycle
	InfluenceMismatch
)

func (c Code) String() string {
	switch c {
	case EmptyMesh:
		return "empty mesh"
	case BadTopology:
		return "bad topology"
	case NoBones:
		return "no bones"
	case BadParent:
		return "bad parent"
	case MultipleRoots:
		return "multiple roots"
	case Cycle:
		return "cycle"
	case InfluenceMismatch:
		return "influence mismatch"
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// SetupError reports a rejected Setup call.
type SetupError struct {
	Code Code
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("skin: setup: %s: %v", e.Code, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

func meshError(err error) *SetupError {
	if errors.Is(err, mesh.ErrEmpty) {
		return &SetupError{Code: EmptyMesh, Err: err}
	}
	return &SetupError{Code: BadTopology, Err: err}
}

func skeletonError(err error) *SetupError {
	code := Cycle
	switch {
	case errors.Is(err, skeleton.ErrNoBones):
		code = NoBones
	case errors.Is(err, skeleton.ErrBadParent):
		code = BadParent
	case errors.Is(err, skeleton.ErrMultipleRoots):
		code = MultipleRoots
	}
	return &SetupError{Code: code, Err: err}
}
