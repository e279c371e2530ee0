package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/dmscan/internal/scanerr"
	"github.com/MeKo-Tech/dmscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverImages_FiltersAndSorts(t *testing.T) {
	tempDir := testutil.CreateTempDir(t)

	for _, name := range []string{"b.JPG", "a.png", "c.jpeg", "d.Bmp", "notes.txt", "anim.gif", "noext"} {
		testutil.WriteFile(t, filepath.Join(tempDir, name), []byte("x"))
	}
	// nested images are not part of the listing
	testutil.WriteFile(t, filepath.Join(tempDir, "sub", "e.png"), []byte("x"))
	require.NoError(t, os.Mkdir(filepath.Join(tempDir, "dir.png"), 0o750))

	files, err := DiscoverImages(tempDir)
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		assert.Equal(t, tempDir, filepath.Dir(f))
		names = append(names, filepath.Base(f))
	}
	assert.Equal(t, []string{"a.png", "b.JPG", "c.jpeg", "d.Bmp"}, names)
}

func TestDiscoverImages_Empty(t *testing.T) {
	files, err := DiscoverImages(testutil.CreateTempDir(t))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscoverImages_Missing(t *testing.T) {
	_, err := DiscoverImages(filepath.Join(testutil.CreateTempDir(t), "missing"))
	require.Error(t, err)
	assert.True(t, scanerr.IsKind(err, scanerr.KindSourceUnavailable))
}

func TestDiscoverImages_Symlink(t *testing.T) {
	tempDir := testutil.CreateTempDir(t)
	target := filepath.Join(tempDir, "real.png")
	testutil.WriteFile(t, target, []byte("x"))
	if err := os.Symlink(target, filepath.Join(tempDir, "link.png")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink(filepath.Join(tempDir, "gone.png"), filepath.Join(tempDir, "dangling.png")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	files, err := DiscoverImages(tempDir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(tempDir, "link.png"), target}, files)
}
