package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var ErrToolchainNotFound = errors.New("toolchain not found")

const (
	DefaultToolchainName = "default"
	CustomToolchainName  = "custom"

	defaultCompiler = "gcc"
	defaultArchiver = "ar"
)

// Toolchain is the [toolchains.<name>] section
type Toolchain struct {
	Compiler      string   `toml:"compiler"`
	Archiver      string   `toml:"archiver"`
	CompilerFlags []string `toml:"compiler_flags"`
	LinkerFlags   []string `toml:"linker_flags"`
}

func DefaultToolchain() Toolchain {
	return Toolchain{Compiler: defaultCompiler, Archiver: defaultArchiver}
}

func (t Toolchain) withDefaults() Toolchain {
	if t.Compiler == "" {
		t.Compiler = defaultCompiler
	}
	if t.Archiver == "" {
		t.Archiver = defaultArchiver
	}
	t.CompilerFlags = slices.Clone(t.CompilerFlags)
	t.LinkerFlags = slices.Clone(t.LinkerFlags)
	return t
}

type ToolchainKind int

const (
	ToolchainDefault ToolchainKind = iota
	ToolchainNamed
	ToolchainCustom
)

// ToolchainSelector says which toolchain a build uses. The zero value selects
// the default toolchain.
type ToolchainSelector struct {
	Kind   ToolchainKind
	Name   string    // ToolchainNamed
	Custom Toolchain // ToolchainCustom
}

func SelectNamed(name string) ToolchainSelector {
	return ToolchainSelector{Kind: ToolchainNamed, Name: name}
}

func SelectCustom(t Toolchain) ToolchainSelector {
	return ToolchainSelector{Kind: ToolchainCustom, Custom: t}
}

// Toolchain resolves the selector against the [toolchains] table. The
// returned name is used as a path segment of the target layout.
func (c *Config) Toolchain(sel ToolchainSelector) (string, Toolchain, error) {
	switch sel.Kind {
	case ToolchainNamed:
		tc, ok := c.Toolchains[sel.Name]
		if !ok {
			return sel.Name, Toolchain{}, fmt.Errorf("%w: %q, known toolchains: [%s]", ErrToolchainNotFound, sel.Name, strings.Join(c.ToolchainNames(), ", "))
		}
		return sel.Name, tc.withDefaults(), nil
	case ToolchainCustom:
		return CustomToolchainName, sel.Custom.withDefaults(), nil
	default:
		if tc, ok := c.Toolchains[DefaultToolchainName]; ok {
			return DefaultToolchainName, tc.withDefaults(), nil
		}
		return DefaultToolchainName, DefaultToolchain(), nil
	}
}

func (c *Config) ToolchainNames() []string {
	names := make([]string, 0, len(c.Toolchains))
	for k := range c.Toolchains {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}
