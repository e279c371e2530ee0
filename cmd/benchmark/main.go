package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/MeKo-Tech/dmscan/internal/barcode"
	"github.com/MeKo-Tech/dmscan/internal/batch"
	"github.com/MeKo-Tech/dmscan/internal/benchmark"
	"github.com/MeKo-Tech/dmscan/internal/preprocess"
)

func main() {
	var (
		imagesDir  = flag.String("images", "testdata/images", "Directory tree of sample photographs")
		iterations = flag.Int("iterations", 3, "Number of iterations per benchmark")
		outputFile = flag.String("output", "", "Output file for results (optional)")
		fixtures   = flag.String("fixtures", "testdata/fixtures/samples.json", "Expected payloads written by generate-test-data (optional)")
		verbose    = flag.Bool("verbose", false, "Verbose output")
	)
	flag.Parse()

	engine := preprocess.DefaultEngine()
	fmt.Println("dmscan preprocessing and locate benchmark")
	fmt.Println("=========================================")
	fmt.Printf("Engine: %s\n", engine.Name())

	paths, err := collectImages(*imagesDir)
	if err != nil {
		log.Fatalf("Failed to list images: %v", err)
	}
	if len(paths) == 0 {
		log.Fatalf("No images found in %s (run generate-test-data first)", *imagesDir)
	}

	bench := benchmark.NewScanBenchmark(engine, barcode.NewLocator(barcode.DefaultOptions()), nil)
	for _, p := range paths {
		bench.AddImage(p)
		if *verbose {
			fmt.Printf("Added image: %s\n", p)
		}
	}

	if err := loadExpectations(bench, *imagesDir, *fixtures); err != nil {
		log.Printf("Ignoring fixtures: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Running benchmarks with %d iterations per test...\n\n", *iterations)
	results, err := bench.Run(ctx, *iterations)
	if err != nil {
		log.Fatalf("Benchmark failed: %v", err)
	}

	benchmark.WriteReport(os.Stdout, results)

	if *outputFile != "" {
		if err := saveResultsToFile(*outputFile, results); err != nil {
			log.Printf("Failed to save results to file: %v", err)
		} else {
			fmt.Printf("Results saved to: %s\n", *outputFile)
		}
	}
}

// collectImages lists the images of root and every folder below it, each
// folder in batch order.
func collectImages(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		found, err := batch.DiscoverImages(path)
		if err != nil {
			return err
		}
		paths = append(paths, found...)
		return nil
	})
	return paths, err
}

// loadExpectations registers the payloads listed in a samples.json fixture.
func loadExpectations(bench *benchmark.ScanBenchmark, imagesDir, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: fixture path given on the command line
	if err != nil {
		return err
	}
	var samples []struct {
		Folder   string   `json:"folder"`
		File     string   `json:"file"`
		Expected []string `json:"expected"`
	}
	if err := json.Unmarshal(data, &samples); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	for _, s := range samples {
		bench.Expect(filepath.Join(imagesDir, s.Folder, s.File), s.Expected)
	}
	return nil
}

func saveResultsToFile(filename string, results []benchmark.ScanResult) error {
	file, err := os.Create(filename) //nolint:gosec // G304: output path given on the command line
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	_, _ = fmt.Fprintln(file, "dmscan Benchmark Results")
	_, _ = fmt.Fprintln(file, "========================")
	benchmark.WriteReport(file, results)
	return nil
}
