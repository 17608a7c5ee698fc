package builder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/corge-build/corge/internal/config"
)

// CompileCommand is one entry of compile_commands.json
type CompileCommand struct {
	Directory string `json:"directory"`
	File      string `json:"file"`
	Command   string `json:"command"`
}

// CompileCommands lists one command per project source file. Dependencies
// are not included.
func CompileCommands(dir string, cfg *config.Config) ([]CompileCommand, error) {
	dir, err := canonicalPath(dir)
	if err != nil {
		return nil, err
	}
	_, tc, err := cfg.Toolchain(config.ToolchainSelector{})
	if err != nil {
		return nil, err
	}
	include := NewDependencyPath(dir).Include

	sources, err := CollectFiles(dir, cfg.Target.Sources)
	if err != nil {
		return nil, err
	}

	commands := make([]CompileCommand, 0, len(sources))
	for _, src := range sources {
		commands = append(commands, CompileCommand{
			Directory: dir,
			File:      src,
			Command:   strings.Join([]string{tc.Compiler, "-c", src, "-I", include}, " "),
		})
	}
	return commands, nil
}

// WriteCompilationDatabase loads the project in dir and writes its
// compile_commands.json, returning the file's path
func WriteCompilationDatabase(dir string) (string, error) {
	dir, err := canonicalPath(dir)
	if err != nil {
		return "", err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return "", err
	}
	if err := NewDependencyPath(dir).Create(); err != nil {
		return "", err
	}

	commands, err := CompileCommands(dir, cfg)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(commands, "", "  ")
	if err != nil {
		return "", err
	}

	path := CompilationDatabasePath(dir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// canonicalPath returns the absolute path of dir with symlinks resolved
func canonicalPath(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(dir)
}
