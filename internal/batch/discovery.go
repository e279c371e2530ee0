package batch

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/MeKo-Tech/dmscan/internal/scanerr"
	"github.com/MeKo-Tech/dmscan/internal/utils"
)

// DiscoverImages lists the supported images directly inside dir, sorted by
// file name. Subdirectories and other files are ignored.
func DiscoverImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, scanerr.New(scanerr.KindSourceUnavailable, dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !isRegularImage(dir, entry) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Slice(files, func(i, j int) bool {
		return filepath.Base(files[i]) < filepath.Base(files[j])
	})
	return files, nil
}

// isRegularImage reports whether entry is a supported image file. Symlinks
// are followed.
func isRegularImage(dir string, entry os.DirEntry) bool {
	if !utils.IsSupportedImage(entry.Name()) {
		return false
	}
	if entry.Type().IsRegular() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, entry.Name()))
	return err == nil && info.Mode().IsRegular()
}
