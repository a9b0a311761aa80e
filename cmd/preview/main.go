// Command preview extracts the composed skeleton field of a skinned model as
// a closed mesh at an iso level, optionally after bending a joint, and
// writes it as .glb and a WebP render.
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

	"github.com/HugoSmits86/nativewebp"

	"implicit-skin/internal/batch"
	"implicit-skin/internal/config"
	"implicit-skin/internal/field"
	"implicit-skin/internal/gltfio"
	"implicit-skin/internal/logging"
	"implicit-skin/internal/mesh"
	"implicit-skin/internal/postprocess"
	"implicit-skin/internal/raster"
)

func main() {
	configFile := flag.String("config", "", "Path to a .json, .yaml or .toml config file")
	input := flag.String("input", "", "Skinned .gltf/.glb (default: procedural limb)")
	outputDir := flag.String("output", "", "Output directory (default: renders)")
	iso := flag.Float64("iso", field.Iso, "Iso level of the extracted surface")
	resolution := flag.Int("resolution", 0, "Cells along the longest box edge")
	saddle := flag.String("saddle", "", "Ambiguous face rule: fixed or decider")
	joint := flag.Int("joint", 0, "Bone whose subtree is bent (default: 1)")
	angle := flag.Float64("angle", 0, "Bend angle in degrees")
	minVerts := flag.Int("min-verts", 0, "Drop surface islands with fewer vertices")
	crop := flag.Bool("crop", false, "Crop the render to the surface and center it")
	verbose := flag.Bool("v", false, "Debug logging")

	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fatalf("Error loading config: %v", err)
		}
	}
	cfg.Resolve(config.Flags{
		Input:      *input,
		OutputDir:  *outputDir,
		Joint:      *joint,
		Angle:      *angle,
		Resolution: *resolution,
		Saddle:     *saddle,
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

	eng := subj.Engine
	if cfg.Angle != 0 {
		frames, err := batch.Sweep(eng.Skeleton(), cfg.Joint, cfg.Angle, 1)
		if err != nil {
			fatalf("Error: %v", err)
		}
		if err := eng.UpdateSkeletonPose(frames[0].Pose); err != nil {
			fatalf("Error: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	surf, err := eng.ExtractPreviewSurface(ctx, *iso)
	if err != nil {
		fatalf("Error: %v", err)
	}
	if *minVerts > 0 {
		surf = mesh.DropSmallComponents(surf, *minVerts)
	}
	fmt.Printf("Preview surface of %s at iso %.3f: %d vertices, %d triangles in %.2fs\n",
		subj.Name, *iso, len(surf.Positions), len(surf.Triangles), time.Since(start).Seconds())
	if len(surf.Triangles) == 0 {
		fmt.Println("Surface is empty; nothing written.")
		return
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		fatalf("Error: %v", err)
	}
	meshPath := filepath.Join(cfg.OutputDir, "preview.glb")
	if err := gltfio.SaveMesh(meshPath, surf); err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Printf("Mesh: %s\n", meshPath)

	img := postprocess.Downsample(raster.RenderMesh(surf, render), render.Supersample)
	if *crop {
		img = postprocess.CropAndCenter(img, render.Size, 0.9)
	}
	imgPath := filepath.Join(cfg.OutputDir, "preview.webp")
	f, err := os.Create(imgPath)
	if err != nil {
		fatalf("Error: %v", err)
	}
	if err := nativewebp.Encode(f, img, nil); err != nil {
		f.Close()
		fatalf("Error: webp encode: %v", err)
	}
	if err := f.Close(); err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Printf("Render: %s\n", imgPath)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
