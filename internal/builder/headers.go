package builder

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ProjectHeaders copies every *.h under <artifact>/src to
// <includeDir>/<dependency name>/, keeping the layout below src. Directories
// are only created for headers that are actually written.
func ProjectHeaders(artifacts []Artifact, includeDir string) error {
	for _, a := range artifacts {
		if err := copyHeaders(filepath.Join(a.Path, "src"), filepath.Join(includeDir, a.Dependency.Name)); err != nil {
			return fmt.Errorf("failed to copy headers of %q: %w", a.Dependency.Name, err)
		}
	}
	return nil
}

func copyHeaders(src, dst string) error {
	stat, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !stat.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}

	headers, err := CollectFiles(src, []string{"**/*.h"})
	if err != nil {
		return err
	}
	for _, header := range headers {
		rel, err := filepath.Rel(src, header)
		if err != nil {
			return err
		}
		out := filepath.Join(dst, rel)
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}
		if err := copyFile(header, out); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
