package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/corge-build/corge/internal/config"
	"github.com/corge-build/corge/internal/msg"
	"github.com/corge-build/corge/internal/registry"
)

var (
	ErrRegistryNotFound = errors.New("registry not found")
	ErrCycleDetected    = errors.New("dependency cycle detected")
)

// Artifact is a dependency whose sources are on disk
type Artifact struct {
	Dependency config.Dependency
	Path       string
	// Config is nil when the dependency has no build file
	Config *config.Config
}

// Sources returns the dependency's source patterns
func (a Artifact) Sources() []string {
	if a.Config == nil {
		return config.DefaultSources()
	}
	return a.Config.Target.Sources
}

// TransportFactory builds the transport for a registry
type TransportFactory func(reg config.Registry) (registry.Transport, error)

// DefaultTransports returns registry.New bound to log and progress
func DefaultTransports(log msg.Logger, progress io.Writer) TransportFactory {
	return func(reg config.Registry) (registry.Transport, error) {
		return registry.New(reg, log, progress)
	}
}

// Resolver flattens a dependency graph into the list of artifacts to build,
// fetching what is not on disk yet
type Resolver struct {
	sourceDir  string
	transports TransportFactory
	log        msg.Logger
}

func NewResolver(sourceDir string, transports TransportFactory, log msg.Logger) *Resolver {
	if log == nil {
		log = msg.Discard{}
	}
	return &Resolver{sourceDir: sourceDir, transports: transports, log: log}
}

type visitState int

const (
	unvisited visitState = iota
	resolving
	resolved
)

type walk struct {
	*Resolver
	state map[string]visitState
	stack []string
}

// Resolve returns the artifacts of deps and all their transitive
// dependencies in pre-order. Every name appears once, at its first position.
// Nested dependencies are looked up in the registries of the build file that
// declares them.
func (r *Resolver) Resolve(ctx context.Context, registries map[string]config.Registry, deps []config.Dependency) ([]Artifact, error) {
	w := &walk{Resolver: r, state: make(map[string]visitState)}
	return w.resolve(ctx, registries, deps)
}

func (w *walk) resolve(ctx context.Context, registries map[string]config.Registry, deps []config.Dependency) ([]Artifact, error) {
	var artifacts []Artifact

	for _, dep := range deps {
		// every declaration must name a known registry, even for names
		// resolved earlier in the walk
		reg, ok := registries[dep.Registry]
		if !ok {
			return nil, fmt.Errorf("%w: dependency %q uses undeclared registry %q", ErrRegistryNotFound, dep.Name, dep.Registry)
		}

		switch w.state[dep.Name] {
		case resolved:
			continue
		case resolving:
			cycle := append(w.stack[:len(w.stack):len(w.stack)], dep.Name)
			return nil, fmt.Errorf("%w: %s", ErrCycleDetected, strings.Join(cycle, " -> "))
		}

		w.state[dep.Name] = resolving
		w.stack = append(w.stack, dep.Name)

		path := filepath.Join(w.sourceDir, dep.Name)
		if err := w.fetch(ctx, dep, reg, path); err != nil {
			return nil, fmt.Errorf("dependency %q: %w", dep.Name, err)
		}

		cfg, err := config.Load(path)
		if errors.Is(err, config.ErrNoConfig) {
			cfg = nil
		} else if err != nil {
			return nil, fmt.Errorf("dependency %q: %w", dep.Name, err)
		}

		artifacts = append(artifacts, Artifact{Dependency: dep, Path: path, Config: cfg})

		if cfg != nil {
			children, err := w.resolve(ctx, cfg.Registries, cfg.Dependencies)
			if err != nil {
				return nil, err
			}
			artifacts = append(artifacts, children...)
		}

		w.stack = w.stack[:len(w.stack)-1]
		w.state[dep.Name] = resolved
	}

	return artifacts, nil
}

func (w *walk) fetch(ctx context.Context, dep config.Dependency, reg config.Registry, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	t, err := w.transports(reg)
	if err != nil {
		return err
	}

	w.log.Info("fetching %s from %s", dep.Name, reg)
	var prepare func(dir string) error
	if len(dep.Patches) > 0 {
		prepare = func(dir string) error {
			return registry.ApplyPatches(dir, dep.Patches)
		}
	}
	_, err = registry.Stage(ctx, t, dep.Name, path, prepare)
	return err
}
