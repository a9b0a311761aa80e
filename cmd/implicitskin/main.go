// Command implicitskin bends a skinned mesh and renders the implicitly
// corrected result. Without an input file it works on a procedural limb.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"implicit-skin/internal/batch"
	"implicit-skin/internal/config"
	"implicit-skin/internal/gltfio"
	"implicit-skin/internal/logging"
	"implicit-skin/internal/procedural"
)

func main() {
	configFile := flag.String("config", "", "Path to a .json, .yaml or .toml config file")
	input := flag.String("input", "", "Skinned .gltf/.glb to deform (default: procedural limb)")
	outputDir := flag.String("output", "", "Output directory (default: renders)")
	joint := flag.Int("joint", 0, "Bone whose subtree is bent (default: 1)")
	angle := flag.Float64("angle", 0, "Bend angle in degrees")
	frames := flag.Int("frames", 0, "Frames in the sweep from 0 to -angle (default: 1)")
	workers := flag.Int("workers", 0, "Number of worker goroutines (default: NumCPU)")
	exportLimb := flag.String("export-limb", "", "Write the procedural limb as a skinned .glb and exit")
	verbose := flag.Bool("v", false, "Debug logging")

	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *exportLimb != "" {
		l := procedural.NewLimb(procedural.DefaultLimbOptions())
		a := &gltfio.Asset{Name: "limb", Mesh: l.Mesh, Bones: l.Bones, Influences: l.Influences}
		if err := gltfio.SaveAsset(*exportLimb, a); err != nil {
			fatalf("Error writing limb: %v", err)
		}
		fmt.Printf("Limb: %s\n", *exportLimb)
		return
	}

	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fatalf("Error loading config: %v", err)
		}
	}
	cfg.Resolve(config.Flags{
		Input:     *input,
		OutputDir: *outputDir,
		Workers:   *workers,
		Joint:     *joint,
		Angle:     *angle,
		Frames:    *frames,
	})

	opts, err := cfg.EngineOptions()
	if err != nil {
		fatalf("Error: %v", err)
	}
	render, err := cfg.RenderOptions()
	if err != nil {
		fatalf("Error: %v", err)
	}

	subj, err := batch.LoadSubject(cfg.Input, opts)
	if err != nil {
		fatalf("Error: %v", err)
	}
	sweep, err := batch.Sweep(subj.Engine.Skeleton(), cfg.Joint, cfg.Angle, cfg.Frames)
	if err != nil {
		fatalf("Error: %v", err)
	}

	fmt.Printf("Implicit skinning: %s\n", subj.Name)
	fmt.Printf("Vertices: %d, Bones: %d, Frames: %d, Workers: %d\n",
		subj.Engine.VertexCount(), subj.Engine.Skeleton().Len(), len(sweep), cfg.Workers)
	fmt.Printf("Output: %s\n", cfg.OutputDir)
	fmt.Println("------------------------------------------------------------")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	results, err := batch.Run(ctx, batch.Config{
		OutputDir:   cfg.OutputDir,
		Render:      render,
		Workers:     cfg.Workers,
		CompareLBS:  cfg.CompareLBS,
		SaveMeshes:  cfg.SaveMeshes,
		FrameMillis: cfg.FrameMillis,
	}, subj, sweep)
	if err != nil {
		fatalf("Error: %v", err)
	}

	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Done in %.1fs\n", time.Since(start).Seconds())

	var failed []batch.Result
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
			continue
		}
		fmt.Printf("  frame %3d  %6.1f°  converged %d  contact %d  stalled %d  exhausted %d\n",
			r.Frame, r.Angle, r.Report.Converged, r.Report.Contact, r.Report.Stalled, r.Report.Exhausted)
	}
	if len(failed) > 0 {
		fmt.Printf("\nFailed (%d):\n", len(failed))
		for _, r := range failed {
			fmt.Printf("  frame %d: %v\n", r.Frame, r.Err)
		}
	}

	animation := ""
	if cfg.FrameMillis > 0 && len(sweep) > 1 {
		animation = batch.AnimationFile
	}
	manifestPath := filepath.Join(cfg.OutputDir, "manifest.json")
	if err := batch.WriteManifest(manifestPath, batch.NewManifest(cfg.Joint, animation, results)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: manifest write failed: %v\n", err)
	} else {
		fmt.Printf("Manifest: %s\n", manifestPath)
	}

	if len(failed) > 0 {
		os.Exit(1)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
