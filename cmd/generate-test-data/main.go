package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/dmscan/internal/testutil"
	"github.com/disintegration/imaging"
)

// sample is one synthetic photograph and the payloads a batch run should
// extract from it.
type sample struct {
	Folder   string               `json:"folder"`
	File     string               `json:"file"`
	Width    int                  `json:"width"`
	Height   int                  `json:"height"`
	Symbols  []testutil.Placement `json:"symbols"`
	Expected []string             `json:"expected"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir           = flag.String("out", "testdata", "Directory to write the sample tree into")
		generateImages   = flag.Bool("images", true, "Generate synthetic photographs")
		generateFixtures = flag.Bool("fixtures", true, "Generate expected-payload fixtures")
		verbose          = flag.Bool("v", false, "Verbose output")
		help             = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate sample photographs with Data Matrix symbols for dmscan.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                      # Generate images and fixtures under testdata/\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -fixtures=false      # Generate only images\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -out /tmp/dm-samples # Write somewhere else\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	root := *outDir
	if !filepath.IsAbs(root) {
		projectRoot, err := testutil.GetProjectRoot()
		if err != nil {
			slog.Error("Failed to find project root", "error", err)
			os.Exit(1)
		}
		root = filepath.Join(projectRoot, root)
	}
	if *verbose {
		slog.Info("Options", "out", root, "images", *generateImages, "fixtures", *generateFixtures)
	}

	samples := defaultSamples()

	if *generateImages {
		if err := writeImages(filepath.Join(root, "images"), samples); err != nil {
			slog.Error("Failed to generate images", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated sample photographs", "count", len(samples))
	}

	if *generateFixtures {
		if err := writeFixtures(filepath.Join(root, "fixtures"), samples); err != nil {
			slog.Error("Failed to generate fixtures", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated fixtures")
	}
}

func defaultSamples() []sample {
	return []sample{
		{
			Folder: "single", File: "lot_0001.png", Width: 320, Height: 240,
			Symbols:  []testutil.Placement{{Text: "LOT-0001", At: image.Pt(100, 60), ModuleSize: 6}},
			Expected: []string{"LOT-0001"},
		},
		{
			Folder: "single", File: "lot_0002.jpg", Width: 320, Height: 240,
			Symbols:  []testutil.Placement{{Text: "LOT-0002", At: image.Pt(60, 40), ModuleSize: 8}},
			Expected: []string{"LOT-0002"},
		},
		{
			Folder: "multi", File: "tray.png", Width: 640, Height: 240,
			Symbols: []testutil.Placement{
				{Text: "SN-100", At: image.Pt(40, 60), ModuleSize: 6},
				{Text: "SN-200", At: image.Pt(240, 60), ModuleSize: 6},
				{Text: "SN-300", At: image.Pt(440, 60), ModuleSize: 6},
			},
			Expected: []string{"SN-100", "SN-200", "SN-300"},
		},
		{
			Folder: "unsafe", File: "path.png", Width: 320, Height: 240,
			Symbols:  []testutil.Placement{{Text: "A/B:C*D", At: image.Pt(100, 60), ModuleSize: 6}},
			Expected: []string{"A/B:C*D"},
		},
		{
			Folder: "empty", File: "blank.bmp", Width: 200, Height: 150,
		},
	}
}

func writeImages(dir string, samples []sample) error {
	for _, s := range samples {
		folder := filepath.Join(dir, s.Folder)
		if err := testutil.EnsureDir(folder); err != nil {
			return fmt.Errorf("failed to create %s: %w", folder, err)
		}

		img, err := testutil.RenderScene(testutil.SceneConfig{
			Width:      s.Width,
			Height:     s.Height,
			Background: color.White,
			Symbols:    s.Symbols,
		})
		if err != nil {
			return fmt.Errorf("failed to render %s: %w", s.File, err)
		}

		path := filepath.Join(folder, s.File)
		if err := imaging.Save(img, path); err != nil {
			return fmt.Errorf("failed to save %s: %w", path, err)
		}
	}
	return nil
}

func writeFixtures(dir string, samples []sample) error {
	if err := testutil.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create fixtures directory: %w", err)
	}
	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "samples.json"), data, 0o600)
}
