// Package benchmark times the preprocessing and locate stages over sample
// photographs, so that option profiles and preprocessing engines can be
// compared on real inputs.
package benchmark

import (
	"context"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/MeKo-Tech/dmscan/internal/barcode"
	"github.com/MeKo-Tech/dmscan/internal/common"
	"github.com/MeKo-Tech/dmscan/internal/preprocess"
	"github.com/MeKo-Tech/dmscan/internal/region"
	"github.com/MeKo-Tech/dmscan/internal/utils"
	"github.com/arbovm/levenshtein"
)

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64  // Currently allocated bytes
	TotalAllocBytes uint64  // Total allocated bytes (cumulative)
	SysBytes        uint64  // Total bytes from system
	NumGC           uint32  // Number of GC runs
	GCCPUFraction   float64 // Fraction of CPU time spent in GC
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		NumGC:           m.NumGC,
		GCCPUFraction:   m.GCCPUFraction,
	}
}

// String returns a formatted string representation of memory stats.
func (m MemoryStats) String() string {
	return fmt.Sprintf("Alloc: %d KB, TotalAlloc: %d KB, Sys: %d KB, NumGC: %d",
		m.AllocBytes/1024, m.TotalAllocBytes/1024, m.SysBytes/1024, m.NumGC)
}

// BenchmarkResult holds the results of a benchmark run.
type BenchmarkResult struct {
	Name         string
	Duration     time.Duration
	MemoryBefore MemoryStats
	MemoryAfter  MemoryStats
	Iterations   int
	Error        error
}

// Average returns the mean duration of one iteration.
func (br BenchmarkResult) Average() time.Duration {
	if br.Iterations <= 0 {
		return 0
	}
	return br.Duration / time.Duration(br.Iterations)
}

// AllocatedKB returns the bytes allocated during the run, in KB.
func (br BenchmarkResult) AllocatedKB() uint64 {
	return (br.MemoryAfter.TotalAllocBytes - br.MemoryBefore.TotalAllocBytes) / 1024
}

// String returns a formatted string representation of the benchmark result.
func (br BenchmarkResult) String() string {
	if br.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", br.Name, br.Error)
	}
	return fmt.Sprintf("%s: %d iterations, avg: %v, total: %v, alloc: %d KB",
		br.Name, br.Iterations, br.Average(), br.Duration, br.AllocatedKB())
}

// Benchmark represents a benchmark function.
type Benchmark struct {
	Name string
	Func func() error
}

// BenchmarkSuite manages multiple benchmarks.
type BenchmarkSuite struct {
	benchmarks []Benchmark
	results    []BenchmarkResult
	mu         sync.Mutex
}

// NewBenchmarkSuite creates a new benchmark suite.
func NewBenchmarkSuite() *BenchmarkSuite {
	return &BenchmarkSuite{
		benchmarks: make([]Benchmark, 0),
		results:    make([]BenchmarkResult, 0),
	}
}

// Add adds a benchmark to the suite.
func (bs *BenchmarkSuite) Add(name string, fn func() error) {
	bs.benchmarks = append(bs.benchmarks, Benchmark{Name: name, Func: fn})
}

// Run runs a single benchmark with the specified number of iterations.
func (bs *BenchmarkSuite) Run(name string, iterations int) BenchmarkResult {
	for _, b := range bs.benchmarks {
		if b.Name == name {
			return runBenchmark(b, iterations)
		}
	}
	return BenchmarkResult{
		Name:  name,
		Error: fmt.Errorf("benchmark '%s' not found", name),
	}
}

// RunAll runs all benchmarks in the suite.
func (bs *BenchmarkSuite) RunAll(iterations int) []BenchmarkResult {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	bs.results = make([]BenchmarkResult, 0, len(bs.benchmarks))
	for _, b := range bs.benchmarks {
		bs.results = append(bs.results, runBenchmark(b, iterations))
	}
	return bs.results
}

// Results returns the last run results.
func (bs *BenchmarkSuite) Results() []BenchmarkResult {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.results
}

// PrintResults writes formatted benchmark results to w.
func (bs *BenchmarkSuite) PrintResults(w io.Writer) {
	_, _ = fmt.Fprintln(w, "\nBenchmark Results:")
	_, _ = fmt.Fprintln(w, "==================")
	for _, result := range bs.Results() {
		_, _ = fmt.Fprintln(w, result.String())
	}
	_, _ = fmt.Fprintln(w)
}

func runBenchmark(b Benchmark, iterations int) BenchmarkResult {
	// Force garbage collection before measuring
	runtime.GC()
	memBefore := GetMemoryStats()

	timer := common.NewNamedTimer(b.Name)
	var err error
	for range iterations {
		if e := b.Func(); e != nil {
			err = e
			break
		}
	}
	duration := timer.Stop()

	return BenchmarkResult{
		Name:         b.Name,
		Duration:     duration,
		MemoryBefore: memBefore,
		MemoryAfter:  GetMemoryStats(),
		Iterations:   iterations,
		Error:        err,
	}
}

// Variant is one preprocessing profile to time.
type Variant struct {
	Name    string
	Options preprocess.Options
}

// DefaultVariants compares denoising and half-scale detection against the
// default profile.
func DefaultVariants() []Variant {
	base := preprocess.DefaultOptions()
	noDenoise := base
	noDenoise.Denoise = false
	half := base
	half.Scale = region.ScaleFactor(0.5)
	return []Variant{
		{Name: "default", Options: base},
		{Name: "no-denoise", Options: noDenoise},
		{Name: "half-scale", Options: half},
	}
}

// ScanResult collects the timings for one image.
type ScanResult struct {
	ImagePath  string
	ImageSize  string
	Engine     string
	Preprocess []BenchmarkResult // one per variant
	Locate     []BenchmarkResult // one per variant
	Matrices   []int             // symbols found per variant
	// EditDistance is, per variant, the summed Levenshtein distance between
	// each expected payload and its closest decoded text. Nil when no
	// expectation was registered for the image.
	EditDistance []int
}

// ScanBenchmark times Normalize and Locate for every image and variant.
type ScanBenchmark struct {
	engine   preprocess.Engine
	locator  barcode.Locator
	variants []Variant
	images   []string
	expected map[string][]string
	results  []ScanResult
}

// NewScanBenchmark creates a benchmark for the given engine and locator.
func NewScanBenchmark(engine preprocess.Engine, locator barcode.Locator, variants []Variant) *ScanBenchmark {
	if len(variants) == 0 {
		variants = DefaultVariants()
	}
	return &ScanBenchmark{engine: engine, locator: locator, variants: variants}
}

// AddImage queues an image for the benchmark.
func (b *ScanBenchmark) AddImage(path string) {
	b.images = append(b.images, path)
}

// Expect registers the payloads path is known to contain.
func (b *ScanBenchmark) Expect(path string, texts []string) {
	if b.expected == nil {
		b.expected = map[string][]string{}
	}
	b.expected[path] = texts
}

// Run benchmarks every queued image. Images that fail to load abort the run.
func (b *ScanBenchmark) Run(ctx context.Context, iterations int) ([]ScanResult, error) {
	if iterations < 1 {
		iterations = 1
	}
	b.results = b.results[:0]
	for _, path := range b.images {
		if err := ctx.Err(); err != nil {
			return b.results, err
		}
		res, err := b.benchmarkImage(ctx, path, iterations)
		if err != nil {
			return b.results, err
		}
		b.results = append(b.results, res)
	}
	return b.results, nil
}

func (b *ScanBenchmark) benchmarkImage(ctx context.Context, path string, iterations int) (ScanResult, error) {
	img, meta, err := utils.LoadImage(path)
	if err != nil {
		return ScanResult{}, err
	}

	res := ScanResult{
		ImagePath: path,
		ImageSize: fmt.Sprintf("%dx%d", meta.Width, meta.Height),
		Engine:    b.engine.Name(),
	}
	for _, v := range b.variants {
		var normalized *image.Gray
		pre := runBenchmark(Benchmark{
			Name: "preprocess/" + v.Name,
			Func: func() (err error) {
				normalized, err = b.engine.Normalize(img, v.Options)
				return err
			},
		}, iterations)
		res.Preprocess = append(res.Preprocess, pre)

		var texts []string
		loc := BenchmarkResult{Name: "locate/" + v.Name, Error: pre.Error}
		if pre.Error == nil {
			loc = runBenchmark(Benchmark{
				Name: "locate/" + v.Name,
				Func: func() error {
					dets, err := b.locator.Locate(ctx, normalized)
					texts = texts[:0]
					for _, d := range dets {
						texts = append(texts, d.Text)
					}
					return err
				},
			}, iterations)
		}
		res.Locate = append(res.Locate, loc)
		res.Matrices = append(res.Matrices, len(texts))
		if want, ok := b.expected[path]; ok {
			res.EditDistance = append(res.EditDistance, EditDistance(want, texts))
		}
	}
	return res, nil
}

// EditDistance sums, over want, the Levenshtein distance to the closest
// entry of got. A payload with nothing decoded costs its full length.
func EditDistance(want, got []string) int {
	total := 0
	for _, w := range want {
		best := utf8.RuneCountInString(w)
		for _, g := range got {
			best = min(best, levenshtein.Distance(w, g))
		}
		total += best
	}
	return total
}

// WriteReport writes a human-readable table followed by CSV lines.
func WriteReport(w io.Writer, results []ScanResult) {
	for _, r := range results {
		_, _ = fmt.Fprintf(w, "%s (%s, engine %s)\n", filepath.Base(r.ImagePath), r.ImageSize, r.Engine)
		for i := range r.Preprocess {
			_, _ = fmt.Fprintf(w, "  %s\n  %s (%d matrices)\n", r.Preprocess[i], r.Locate[i], r.Matrices[i])
		}
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "CSV Format:")
	_, _ = fmt.Fprintln(w, "Image,Size,Engine,Variant,Preprocess_ms,Locate_ms,Matrices,Edit_Distance")
	for _, r := range results {
		for i := range r.Preprocess {
			dist := ""
			if i < len(r.EditDistance) {
				dist = fmt.Sprint(r.EditDistance[i])
			}
			_, _ = fmt.Fprintf(w, "%s,%s,%s,%s,%.2f,%.2f,%d,%s\n",
				filepath.Base(r.ImagePath),
				r.ImageSize,
				r.Engine,
				variantName(r.Preprocess[i].Name),
				millis(r.Preprocess[i].Average()),
				millis(r.Locate[i].Average()),
				r.Matrices[i],
				dist,
			)
		}
	}
}

func variantName(name string) string {
	_, v, _ := strings.Cut(name, "/")
	return v
}

func millis(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}
