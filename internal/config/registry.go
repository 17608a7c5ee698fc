package config

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

type RegistryKind int

const (
	RegistryGit RegistryKind = iota
	RegistryFileSystem
	RegistryArchive
)

func (k RegistryKind) String() string {
	switch k {
	case RegistryFileSystem:
		return "fs"
	case RegistryArchive:
		return "archive"
	default:
		return "git"
	}
}

// Registry says where the sources of a dependency live. Only the fields of
// Kind are meaningful.
type Registry struct {
	Kind RegistryKind

	// RegistryGit: <URL>/<dependency name> is cloned at Branch (remote HEAD when empty).
	// RegistryArchive: <URL>/<dependency name>.<Format> is downloaded.
	URL    string
	Branch string
	Format string

	// RegistryFileSystem: <Path>/<dependency name> is copied.
	Path string
}

func (r Registry) String() string {
	switch r.Kind {
	case RegistryFileSystem:
		return "fs:" + r.Path
	case RegistryArchive:
		return "archive:" + r.URL
	default:
		if r.Branch != "" {
			return "git:" + r.URL + "@" + r.Branch
		}
		return "git:" + r.URL
	}
}

// registrySection is the on-disk shape of [registries.<name>]
type registrySection struct {
	Git     string `toml:"git"`
	Branch  string `toml:"branch"`
	Path    string `toml:"path"`
	Archive string `toml:"archive"`
	Format  string `toml:"format"`
}

var archiveFormats = []string{"tar.gz", "tgz", "tar.xz", "txz", "tar.zst", "tzst", "tar"}

func (s registrySection) toRegistry(name, basedir string) (Registry, error) {
	set := 0
	for _, v := range []string{s.Git, s.Path, s.Archive} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return Registry{}, fmt.Errorf("registry %q must set exactly one of `git`, `path` or `archive`", name)
	}

	switch {
	case s.Git != "":
		return Registry{Kind: RegistryGit, URL: strings.TrimSuffix(s.Git, "/"), Branch: s.Branch}, nil
	case s.Path != "":
		path := s.Path
		if !filepath.IsAbs(path) && basedir != "" {
			path = filepath.Join(basedir, path)
		}
		return Registry{Kind: RegistryFileSystem, Path: filepath.Clean(path)}, nil
	default:
		format := s.Format
		if format == "" {
			format = "tar.gz"
		}
		known := false
		for _, f := range archiveFormats {
			if f == format {
				known = true
				break
			}
		}
		if !known {
			return Registry{}, fmt.Errorf("registry %q: unsupported archive format %q, expected one of %s", name, format, strings.Join(archiveFormats, ", "))
		}
		return Registry{Kind: RegistryArchive, URL: strings.TrimSuffix(s.Archive, "/"), Format: format}, nil
	}
}

// Dependency is one [[dependencies]] entry
type Dependency struct {
	Name     string
	Registry string
	// Patches maps a file inside the dependency to an absolute patch file path
	Patches map[string]string
}

// validDependencyName reports whether name stays below the directory it is
// joined to. Slash separated names such as user/lib are allowed.
func validDependencyName(name string) bool {
	return name != "." &&
		!strings.Contains(name, `\`) &&
		path.Clean(name) == name &&
		filepath.IsLocal(name)
}

type dependencySection struct {
	Name     string            `toml:"name"`
	Registry string            `toml:"registry"`
	When     string            `toml:"when"`
	Patches  map[string]string `toml:"patches"`
}
