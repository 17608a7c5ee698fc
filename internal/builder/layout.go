package builder

import (
	"os"
	"path/filepath"

	"github.com/corge-build/corge/internal/config"
)

// DependencyPath is the dependency/ tree of a project
type DependencyPath struct {
	Root    string
	Source  string // fetched trees, one directory per dependency
	Include string // projected headers, one directory per dependency
}

func NewDependencyPath(project string) DependencyPath {
	root := filepath.Join(project, "dependency")
	return DependencyPath{
		Root:    root,
		Source:  filepath.Join(root, "source"),
		Include: filepath.Join(root, "include"),
	}
}

func (p DependencyPath) Create() error {
	return mkdirs(p.Source, p.Include)
}

// TargetPath is target/<mode>/<toolchain>
type TargetPath struct {
	Root       string
	Project    string // objects of the project's own sources
	Dependency string // objects of dependencies, one directory per dependency
	Output     string
}

func NewTargetPath(project string, mode config.BuildMode, toolchain string) TargetPath {
	root := filepath.Join(project, "target", mode.String(), toolchain)
	cache := filepath.Join(root, "cache")
	return TargetPath{
		Root:       root,
		Project:    filepath.Join(cache, "project"),
		Dependency: filepath.Join(cache, "dependency"),
		Output:     filepath.Join(root, "output"),
	}
}

func (p TargetPath) Create() error {
	return mkdirs(p.Project, p.Dependency, p.Output)
}

// ProjectObjects is where the project's objects go. Position-independent
// objects live in their own subdirectory since they share cache keys with
// the plain ones.
func (p TargetPath) ProjectObjects(pic bool) string {
	return objectDir(p.Project, pic)
}

func (p TargetPath) DependencyObjects(name string, pic bool) string {
	return objectDir(filepath.Join(p.Dependency, name), pic)
}

func objectDir(dir string, pic bool) string {
	if pic {
		return filepath.Join(dir, "pic")
	}
	return dir
}

// CompilationDatabasePath returns compilation_database/compile_commands.json under project
func CompilationDatabasePath(project string) string {
	return filepath.Join(project, "compilation_database", "compile_commands.json")
}

func mkdirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
