package cmd

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/dmscan/internal/analyzer"
	"github.com/MeKo-Tech/dmscan/internal/barcode"
	"github.com/MeKo-Tech/dmscan/internal/scanerr"
	"github.com/MeKo-Tech/dmscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScene(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.png")
	scene := testutil.GenerateScene(t, testutil.SceneConfig{
		Width: 300, Height: 200,
		Symbols: []testutil.Placement{{Text: text, At: image.Pt(140, 40), ModuleSize: 4}},
	})
	testutil.SaveImage(t, scene, path)
	return path
}

func TestAnalyzeCommand_RealDecoder(t *testing.T) {
	path := writeScene(t, "SN-7")

	res := run(t, testApp(t, nil), "analyze", path, "--region", "120,20,140,140")
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, "SN-7\n", res.stdout)

	res = run(t, testApp(t, nil), "analyze", path, "--region", "0,0,100,100")
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, "no Data Matrix found in 0,0,100,100\n", res.stdout)
}

func TestAnalyzeCommand_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blank.png")
	testutil.SaveImage(t, testutil.CreateTestImage(64, 64, color.White), path)

	res := run(t, testApp(t, textLocator("J-1")), "analyze", path, "--format", "json")
	require.NoError(t, res.err, res.stderr)

	var got analyzer.DecodeResult
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &got))
	assert.True(t, got.Decoded)
	assert.Equal(t, "J-1", got.Text)
	assert.Equal(t, 64, got.Region.W)
}

func TestAnalyzeCommand_MultipleMatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blank.png")
	testutil.SaveImage(t, testutil.CreateTestImage(64, 64, color.White), path)

	two := barcode.LocatorFunc(func(ctx context.Context, img image.Image) ([]barcode.Detection, error) {
		return []barcode.Detection{{Text: "FIRST"}, {Text: "SECOND"}}, nil
	})
	res := run(t, testApp(t, two), "analyze", path, "--no-denoise")
	require.NoError(t, res.err)
	assert.Equal(t, "FIRST\n", res.stdout)
	assert.Contains(t, res.stderr, "warning: 2 matrices found in region, using the first")
}

func TestAnalyzeCommand_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blank.png")
	testutil.SaveImage(t, testutil.CreateTestImage(64, 64, color.White), path)

	res := run(t, testApp(t, textLocator("E")), "analyze", path, "--region", "100,100,10,10")
	require.Error(t, res.err)
	assert.True(t, scanerr.IsKind(res.err, scanerr.KindRegionOutOfBounds), "%v", res.err)

	res = run(t, testApp(t, textLocator("E")), "analyze", path, "--region", "1,2,3")
	require.Error(t, res.err)

	res = run(t, testApp(t, textLocator("E")), "analyze", filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, res.err)
	assert.True(t, scanerr.IsKind(res.err, scanerr.KindLoadError), "%v", res.err)

	res = run(t, testApp(t, textLocator("E")), "analyze", path, "--format", "xml")
	require.Error(t, res.err)
}

func TestAnalyzeCommand_RejectsRegionWithoutArea(t *testing.T) {
	path := writeScene(t, "SN-7")

	for _, spec := range []string{"30,10,-20,10", "30,10,20,0"} {
		res := run(t, testApp(t, nil), "analyze", path, "--region", spec)
		require.Error(t, res.err, spec)
		assert.True(t, scanerr.IsKind(res.err, scanerr.KindRegionOutOfBounds), "%s: %v", spec, res.err)
		assert.Empty(t, res.stdout)
	}
}

func TestListCommand(t *testing.T) {
	dir := sourceDir(t)
	testutil.WriteFile(t, filepath.Join(dir, "notes.txt"), []byte("skip"))

	res := run(t, testApp(t, nil), "list", dir)
	require.NoError(t, res.err)
	assert.Equal(t, filepath.Join(dir, "a.png")+"\n"+filepath.Join(dir, "b.jpg")+"\n", res.stdout)

	res = run(t, testApp(t, nil), "list", filepath.Join(dir, "missing"))
	require.Error(t, res.err)
	assert.True(t, scanerr.IsKind(res.err, scanerr.KindSourceUnavailable), "%v", res.err)
}
