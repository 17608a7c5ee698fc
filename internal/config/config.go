package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var (
	ErrConfiguration = errors.New("configuration error")
	ErrNoConfig      = errors.New("no build.toml or build.yaml found")
)

type Format int

const (
	FormatTOML Format = iota
	FormatYAML
)

// Filenames are probed in this order
var Filenames = []string{"build.toml", "build.yaml", "build.yml"}

type Config struct {
	Project      ProjectSection
	Target       TargetSection
	Profiles     Profiles
	Registries   map[string]Registry
	Dependencies []Dependency
	Toolchains   map[string]Toolchain

	// Path of the file the config was loaded from, empty for Parse
	Path string
}

// ProjectSection defines the [project] section
type ProjectSection struct {
	Name         string       `toml:"name"`
	Version      string       `toml:"version"`
	LinkStrategy LinkStrategy `toml:"link_strategy"`
}

// TargetSection defines the [target] section
type TargetSection struct {
	Sources []string `toml:"sources"`
}

// DefaultSources is used when [target] sources is empty or the config is missing
func DefaultSources() []string {
	return []string{"src/**/*.c"}
}

// Find returns the config file in dir
func Find(dir string) (string, Format, error) {
	for _, name := range Filenames {
		path := filepath.Join(dir, name)
		stat, err := os.Stat(path)
		if err == nil && !stat.IsDir() {
			if strings.HasSuffix(name, ".toml") {
				return path, FormatTOML, nil
			}
			return path, FormatYAML, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", 0, err
		}
	}
	return "", 0, fmt.Errorf("%w in %s", ErrNoConfig, dir)
}

// Load finds, reads and parses the config of the project rooted at dir.
// A missing config file yields an error wrapping ErrNoConfig.
func Load(dir string) (*Config, error) {
	path, format, err := Find(dir)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	defer f.Close()

	cfg, err := Parse(bufio.NewReader(f), format, NewEnv(dir))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfiguration, path, err)
	}
	cfg.Path = path
	if cfg.Project.Name == "" {
		cfg.Project.Name = filepath.Base(dir)
	}
	return cfg, nil
}

func decodeRaw(rdr io.Reader, format Format) (map[string]any, error) {
	raw := make(map[string]any)

	switch format {
	case FormatYAML:
		var doc yaml.Node
		if err := yaml.NewDecoder(rdr).Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return raw, nil
			}
			return nil, err
		}
		normalizeTags(&doc)
		if err := doc.Decode(&raw); err != nil {
			return nil, err
		}
	default:
		dec := toml.NewDecoder(rdr)
		if err := dec.Decode(&raw); err != nil {
			var derr *toml.DecodeError
			if errors.As(err, &derr) {
				return nil, errors.New(derr.String())
			}
			return nil, err
		}
	}

	return raw, nil
}

// normalizeTags rewrites local YAML tags into plain data: `!Executable`
// becomes "Executable" and `!Git {url: ...}` becomes {Git: {url: ...}}
func normalizeTags(n *yaml.Node) {
	for _, c := range n.Content {
		normalizeTags(c)
	}
	if !strings.HasPrefix(n.Tag, "!") || strings.HasPrefix(n.Tag, "!!") {
		return
	}

	name := n.Tag[1:]
	if n.Kind == yaml.ScalarNode && n.Value == "" {
		*n = yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name}
		return
	}

	inner := *n
	switch inner.Kind {
	case yaml.MappingNode:
		inner.Tag = "!!map"
	case yaml.SequenceNode:
		inner.Tag = "!!seq"
	default:
		inner.Tag = "!!str"
	}
	*n = yaml.Node{
		Kind:    yaml.MappingNode,
		Tag:     "!!map",
		Content: []*yaml.Node{{Kind: yaml.ScalarNode, Tag: "!!str", Value: name}, &inner},
	}
}

// normalizeAliases maps the alternative spellings onto the canonical keys
func normalizeAliases(raw map[string]any) {
	if regs, ok := raw["registries"].(map[string]any); ok {
		for name, r := range regs {
			m, ok := r.(map[string]any)
			if !ok {
				continue
			}
			if g, ok := m["Git"].(map[string]any); ok {
				reg := map[string]any{"git": g["url"]}
				if branch, ok := g["branch"]; ok {
					reg["branch"] = branch
				}
				regs[name] = reg
			} else if p, ok := m["FileSystem"]; ok {
				regs[name] = map[string]any{"path": p}
			}
		}
	}

	if deps, ok := raw["dependencies"].([]any); ok {
		for _, d := range deps {
			m, ok := d.(map[string]any)
			if !ok {
				continue
			}
			if v, ok := m["registry_name"]; ok {
				if _, has := m["registry"]; !has {
					m["registry"] = v
				}
				delete(m, "registry_name")
			}
		}
	}

	// opt-level may be written as a bare integer
	if profiles, ok := raw["profiles"].(map[string]any); ok {
		for _, p := range profiles {
			m, ok := p.(map[string]any)
			if !ok {
				continue
			}
			switch v := m["optimization_level"].(type) {
			case int64:
				m["optimization_level"] = strconv.FormatInt(v, 10)
			case int:
				m["optimization_level"] = strconv.Itoa(v)
			case uint64:
				m["optimization_level"] = strconv.FormatUint(v, 10)
			}
		}
	}
}

// unmarshalSection decodes raw[name] into dst through a TOML round trip
func unmarshalSection[T any](raw map[string]any, name string, dst *T) error {
	data, ok := raw[name]
	if !ok {
		return nil
	}
	b, err := toml.Marshal(map[string]any{"section": data})
	if err != nil {
		return fmt.Errorf("failed to parse [%s] section: %w", name, err)
	}
	var wrapper struct {
		Section T `toml:"section"`
	}
	if err := toml.Unmarshal(b, &wrapper); err != nil {
		return fmt.Errorf("failed to parse [%s] section: %w", name, err)
	}
	*dst = wrapper.Section
	return nil
}

// Parse parses a config. Relative paths are resolved against env.Dir().
func Parse(rdr io.Reader, format Format, env Env) (*Config, error) {
	raw, err := decodeRaw(rdr, format)
	if err != nil {
		return nil, err
	}
	normalizeAliases(raw)

	processed, err := env.processExpressions(raw)
	if err != nil {
		return nil, fmt.Errorf("error processing expressions in config: %w", err)
	}
	raw = processed.(map[string]any)

	cfg := &Config{
		Registries: make(map[string]Registry),
		Toolchains: make(map[string]Toolchain),
	}

	if err := unmarshalSection(raw, "project", &cfg.Project); err != nil {
		return nil, err
	}
	if err := unmarshalSection(raw, "target", &cfg.Target); err != nil {
		return nil, err
	}
	if len(cfg.Target.Sources) == 0 {
		cfg.Target.Sources = DefaultSources()
	}
	if err := unmarshalSection(raw, "profiles", &cfg.Profiles); err != nil {
		return nil, err
	}
	if err := unmarshalSection(raw, "toolchains", &cfg.Toolchains); err != nil {
		return nil, err
	}
	if cfg.Toolchains == nil {
		cfg.Toolchains = make(map[string]Toolchain)
	}

	var registries map[string]registrySection
	if err := unmarshalSection(raw, "registries", &registries); err != nil {
		return nil, err
	}
	for name, section := range registries {
		reg, err := section.toRegistry(name, env.Dir())
		if err != nil {
			return nil, err
		}
		cfg.Registries[name] = reg
	}

	var deps []dependencySection
	if err := unmarshalSection(raw, "dependencies", &deps); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(deps))
	for i, d := range deps {
		if d.Name == "" {
			return nil, fmt.Errorf("dependency #%d has no name", i+1)
		}
		if !validDependencyName(d.Name) {
			return nil, fmt.Errorf("dependency %q has an invalid name, it must be a relative path without . or .. elements", d.Name)
		}
		if d.Registry == "" {
			return nil, fmt.Errorf("dependency %q has no registry", d.Name)
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("dependency %q is declared more than once", d.Name)
		}
		seen[d.Name] = true

		ok, err := env.Condition(d.When)
		if err != nil {
			return nil, fmt.Errorf("dependency %q: %w", d.Name, err)
		}
		if !ok {
			continue
		}

		dep := Dependency{Name: d.Name, Registry: d.Registry}
		if len(d.Patches) > 0 {
			dep.Patches = make(map[string]string, len(d.Patches))
			for file, patch := range d.Patches {
				if !filepath.IsAbs(patch) && env.Dir() != "" {
					patch = filepath.Join(env.Dir(), patch)
				}
				dep.Patches[file] = patch
			}
		}
		cfg.Dependencies = append(cfg.Dependencies, dep)
	}

	return cfg, nil
}
