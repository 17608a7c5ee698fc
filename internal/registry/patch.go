package registry

import (
	"fmt"
	"os"
	"slices"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// ApplyPatches applies diff-match-patch patches to files inside dir. patches
// maps a path relative to dir to the patch file. A patch none of whose hunks
// apply is an error.
func ApplyPatches(dir string, patches map[string]string) error {
	files := make([]string, 0, len(patches))
	for file := range patches {
		files = append(files, file)
	}
	slices.Sort(files)

	dmp := diffmatchpatch.New()
	for _, file := range files {
		patchPath := patches[file]
		target, err := securejoin.SecureJoin(dir, file)
		if err != nil {
			return fmt.Errorf("invalid patch target %q: %w", file, err)
		}

		data, err := os.ReadFile(target)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		patchText, err := os.ReadFile(patchPath)
		if err != nil {
			return fmt.Errorf("failed to read patch %s: %w", patchPath, err)
		}

		parsed, err := dmp.PatchFromText(string(patchText))
		if err != nil {
			return fmt.Errorf("invalid patch %s: %w", patchPath, err)
		}
		patched, results := dmp.PatchApply(parsed, string(data))
		if !slices.Contains(results, true) {
			return fmt.Errorf("patch %s does not apply to %s", patchPath, file)
		}

		if err := os.WriteFile(target, []byte(patched), 0o644); err != nil {
			return err
		}
	}
	return nil
}
