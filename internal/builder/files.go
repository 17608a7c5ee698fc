package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// CollectFiles expands glob patterns relative to root into sorted, absolute,
// de-duplicated file paths. Absolute patterns are taken verbatim.
func CollectFiles(root string, patterns []string) ([]string, error) {
	var files []string
	fsys := os.DirFS(root)

	for _, pat := range patterns {
		if filepath.IsAbs(pat) {
			files = append(files, filepath.Clean(pat))
			continue
		}
		matches, err := doublestar.Glob(fsys, filepath.ToSlash(pat), doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pat, err)
		}
		for _, match := range matches {
			absPath, err := filepath.Abs(filepath.Join(root, filepath.FromSlash(match)))
			if err != nil {
				return nil, fmt.Errorf("while globbing %s: %w", match, err)
			}
			files = append(files, absPath)
		}
	}

	slices.Sort(files)
	return slices.Compact(files), nil
}
