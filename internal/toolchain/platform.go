package toolchain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/corge-build/corge/internal/config"
	"golang.org/x/sync/singleflight"
)

// Platform is the operating system family a compiler targets
type Platform int

const (
	Linux Platform = iota
	MacOS
	Windows
)

func (p Platform) String() string {
	switch p {
	case MacOS:
		return "macos"
	case Windows:
		return "windows"
	default:
		return "linux"
	}
}

// ParseTriple extracts the OS family from a target triple such as
// x86_64-pc-linux-gnu, aarch64-apple-darwin23.1.0 or x86_64-w64-mingw32.
// Anything unrecognized is treated as Linux.
func ParseTriple(triple string) Platform {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(triple)), "-")
	if len(parts) < 2 {
		return Linux
	}
	for _, part := range parts[1:] {
		switch {
		case part == "windows", part == "win32", part == "msvc",
			strings.HasPrefix(part, "mingw"), strings.HasPrefix(part, "cygwin"):
			return Windows
		case strings.HasPrefix(part, "darwin"), strings.HasPrefix(part, "macos"):
			return MacOS
		}
	}
	return Linux
}

type ArtifactKind int

const (
	ArtifactObject ArtifactKind = iota
	ArtifactExecutable
	ArtifactStaticLibrary
	ArtifactDynamicLibrary
)

// ArtifactFor maps a link strategy to the kind of artifact it produces
func ArtifactFor(strategy config.LinkStrategy) ArtifactKind {
	switch strategy {
	case config.StaticLibrary:
		return ArtifactStaticLibrary
	case config.DynamicLibrary:
		return ArtifactDynamicLibrary
	default:
		return ArtifactExecutable
	}
}

// Extension returns the file suffix (with the dot) for kind, or "" if there is none
func (p Platform) Extension(kind ArtifactKind) string {
	switch p {
	case Windows:
		switch kind {
		case ArtifactObject:
			return ".obj"
		case ArtifactExecutable:
			return ".exe"
		case ArtifactStaticLibrary:
			return ".lib"
		case ArtifactDynamicLibrary:
			return ".dll"
		}
	case MacOS:
		switch kind {
		case ArtifactObject:
			return ".o"
		case ArtifactStaticLibrary:
			return ".a"
		case ArtifactDynamicLibrary:
			return ".dylib"
		}
	default:
		switch kind {
		case ArtifactObject:
			return ".o"
		case ArtifactStaticLibrary:
			return ".a"
		case ArtifactDynamicLibrary:
			return ".so"
		}
	}
	return ""
}

// FileName returns the conventional file name for an artifact called name
// (e.g. `libfoo.a`, `foo.exe`)
func (p Platform) FileName(kind ArtifactKind, name string) string {
	switch kind {
	case ArtifactStaticLibrary, ArtifactDynamicLibrary:
		return "lib" + name + p.Extension(kind)
	default:
		return name + p.Extension(kind)
	}
}

// Namer discovers the target platform of compilers and caches it, so every
// compiler is queried at most once
type Namer struct {
	runner Runner
	group  singleflight.Group

	mu        sync.Mutex
	platforms map[string]Platform
}

func NewNamer(runner Runner) *Namer {
	return &Namer{
		runner:    runner,
		platforms: make(map[string]Platform),
	}
}

// Platform runs `<compiler> -dumpmachine` on first use
func (n *Namer) Platform(ctx context.Context, compiler string) (Platform, error) {
	n.mu.Lock()
	p, ok := n.platforms[compiler]
	n.mu.Unlock()
	if ok {
		return p, nil
	}

	v, err, _ := n.group.Do(compiler, func() (any, error) {
		n.mu.Lock()
		p, ok := n.platforms[compiler]
		n.mu.Unlock()
		if ok {
			return p, nil
		}

		out, err := n.runner.Run(ctx, compiler, "-dumpmachine")
		if err != nil {
			return Linux, fmt.Errorf("failed to query the target of %s: %w", compiler, err)
		}
		p = ParseTriple(out)
		n.mu.Lock()
		n.platforms[compiler] = p
		n.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return Linux, err
	}
	return v.(Platform), nil
}

// FileName is Platform followed by Platform.FileName
func (n *Namer) FileName(ctx context.Context, compiler string, kind ArtifactKind, name string) (string, error) {
	p, err := n.Platform(ctx, compiler)
	if err != nil {
		return "", err
	}
	return p.FileName(kind, name), nil
}
