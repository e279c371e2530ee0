package support

import (
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/MeKo-Tech/dmscan/internal/testutil"
	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"
)

// anImageWithDataMatrix writes a 320x240 image with one symbol encoding text.
// Symbol origin and module size are even so that a half-scale detection pass
// sees whole modules.
func (testCtx *TestContext) anImageWithDataMatrix(name, text string) error {
	return testCtx.anImageWithSymbols(name, []testutil.Placement{{Text: text, At: image.Pt(100, 60), ModuleSize: 6}})
}

// anImageWithTwoDataMatrices places two symbols side by side.
func (testCtx *TestContext) anImageWithTwoDataMatrices(name, first, second string) error {
	return testCtx.anImageWithSymbols(name, []testutil.Placement{
		{Text: first, At: image.Pt(40, 60), ModuleSize: 6},
		{Text: second, At: image.Pt(320, 60), ModuleSize: 6},
	})
}

func (testCtx *TestContext) anImageWithSymbols(name string, symbols []testutil.Placement) error {
	width := 320
	if len(symbols) > 1 {
		width = 480
	}
	img, err := testutil.RenderScene(testutil.SceneConfig{Width: width, Height: 240, Symbols: symbols})
	if err != nil {
		return err
	}
	return testCtx.saveSource(name, img)
}

// aBlankImage writes an image without any symbol.
func (testCtx *TestContext) aBlankImage(name string) error {
	return testCtx.saveSource(name, testutil.CreateTestImage(200, 150, color.White))
}

// aCorruptImage writes a file with an image extension but no image data.
func (testCtx *TestContext) aCorruptImage(name string) error {
	path := filepath.Join(testCtx.SourceDir, name)
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (testCtx *TestContext) saveSource(name string, img image.Image) error {
	path := filepath.Join(testCtx.SourceDir, name)
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// outputFiles lists every file below the output folder, relative and sorted.
func (testCtx *TestContext) outputFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(testCtx.OutputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(testCtx.OutputDir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// theOutputFolderShouldContainFiles matches the output tree against a table
// of glob patterns, one row per file, in sorted order.
func (testCtx *TestContext) theOutputFolderShouldContainFiles(table *godog.Table) error {
	files, err := testCtx.outputFiles()
	if err != nil {
		return err
	}
	if len(files) != len(table.Rows) {
		return fmt.Errorf("expected %d output files, got %d: %v", len(table.Rows), len(files), files)
	}
	for i, row := range table.Rows {
		pattern := row.Cells[0].Value
		ok, err := filepath.Match(pattern, files[i])
		if err != nil {
			return fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if !ok {
			return fmt.Errorf("output file %d is %s, want %s", i, files[i], pattern)
		}
	}
	return nil
}

// theOutputFolderShouldBeEmpty checks that no file was written.
func (testCtx *TestContext) theOutputFolderShouldBeEmpty() error {
	files, err := testCtx.outputFiles()
	if err != nil {
		return err
	}
	if len(files) != 0 {
		return fmt.Errorf("expected no output files, got %v", files)
	}
	return nil
}

var stampPattern = regexp.MustCompile(`_\d{8}T\d{6}\.\d{3}-\d{4}\.`)

// allOutputNamesShouldBeUnique checks that the names carry a run stamp and
// sequence and that no name repeats across folders.
func (testCtx *TestContext) allOutputNamesShouldBeUnique() error {
	files, err := testCtx.outputFiles()
	if err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, f := range files {
		base := filepath.Base(f)
		if !stampPattern.MatchString(base) {
			return fmt.Errorf("output name %s lacks a run stamp", base)
		}
		if seen[base] {
			return fmt.Errorf("output name %s repeats", base)
		}
		seen[base] = true
	}
	return nil
}

// theOutputFolderShouldContainNFiles counts the written files.
func (testCtx *TestContext) theOutputFolderShouldContainNFiles(n int) error {
	files, err := testCtx.outputFiles()
	if err != nil {
		return err
	}
	if len(files) != n {
		return fmt.Errorf("expected %d output files, got %d: %s", n, len(files), strings.Join(files, ", "))
	}
	return nil
}

// RegisterImageSteps registers steps that create inputs and inspect outputs.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^an image "([^"]*)" with a Data Matrix encoding "([^"]*)"$`, testCtx.anImageWithDataMatrix)
	sc.Step(`^an image "([^"]*)" with Data Matrices encoding "([^"]*)" and "([^"]*)"$`, testCtx.anImageWithTwoDataMatrices)
	sc.Step(`^a blank image "([^"]*)"$`, testCtx.aBlankImage)
	sc.Step(`^a corrupt image "([^"]*)"$`, testCtx.aCorruptImage)

	sc.Step(`^the output folder should contain:$`, testCtx.theOutputFolderShouldContainFiles)
	sc.Step(`^the output folder should contain (\d+) files?$`, testCtx.theOutputFolderShouldContainNFiles)
	sc.Step(`^the output folder should be empty$`, testCtx.theOutputFolderShouldBeEmpty)
	sc.Step(`^all output names should be unique$`, testCtx.allOutputNamesShouldBeUnique)
}
