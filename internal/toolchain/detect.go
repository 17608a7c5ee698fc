package toolchain

import (
	"os"
	"os/exec"
	"path/filepath"
)

// TODO: zig cc
var commonCCompilers = []string{"gcc", "clang", "icx", "icc", "tcc"}

// DetectCompiler returns $CC, or the name of the first common C compiler
// found in PATH, or "" if there is none
func DetectCompiler() string {
	if cc := os.Getenv("CC"); cc != "" {
		return cc
	}
	for _, compiler := range commonCCompilers {
		if path, err := exec.LookPath(compiler); err == nil {
			return filepath.Base(path)
		}
	}
	return ""
}
