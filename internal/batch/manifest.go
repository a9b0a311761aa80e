package batch

import (
	"encoding/json"
	"os"
)

// Manifest describes a rendered sweep.
type Manifest struct {
	Joint     int             `json:"joint"`
	Animation string          `json:"animation,omitempty"`
	Frames    []ManifestEntry `json:"frames"`
}

// ManifestEntry represents one frame in the output manifest.
type ManifestEntry struct {
	Frame       int     `json:"frame"`
	Angle       float64 `json:"angle"`
	Image       string  `json:"image,omitempty"`
	LBSImage    string  `json:"lbs_image,omitempty"`
	Mesh        string  `json:"mesh,omitempty"`
	Converged   int     `json:"converged"`
	Contact     int     `json:"contact"`
	Stalled     int     `json:"stalled"`
	Exhausted   int     `json:"exhausted"`
	MaxResidual float64 `json:"max_residual"`
	Error       string  `json:"error,omitempty"`
}

// NewManifest summarises results. animation is the animated sweep file name,
// or empty when none was written.
func NewManifest(joint int, animation string, results []Result) Manifest {
	m := Manifest{Joint: joint, Animation: animation, Frames: make([]ManifestEntry, len(results))}
	for i, r := range results {
		e := ManifestEntry{
			Frame:       r.Frame,
			Angle:       r.Angle,
			Image:       r.Image,
			LBSImage:    r.LBSImage,
			Mesh:        r.Mesh,
			Converged:   r.Report.Converged,
			Contact:     r.Report.Contact,
			Stalled:     r.Report.Stalled,
			Exhausted:   r.Report.Exhausted,
			MaxResidual: r.Report.MaxResidual,
		}
		if r.Err != nil {
			e.Error = r.Err.Error()
		}
		m.Frames[i] = e
	}
	return m
}

// WriteManifest writes m as indented JSON.
func WriteManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
