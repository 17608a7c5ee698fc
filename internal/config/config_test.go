package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func testEnv(dir string) Env {
	return Env{
		TargetOS:   "linux",
		TargetArch: "amd64",
		Environ:    map[string]string{"CC": "clang"},
		basedir:    dir,
	}
}

const fullTOML = `
[project]
name = "app"
version = "0.1.0"
link_strategy = "StaticLibrary"

[target]
sources = ["src/**/*.c", "extra/*.c"]

[profiles.development]
optimization_level = 0

[profiles.release]
optimization_level = "-O3"

[registries.remote]
git = "https://example.com/libs/"
branch = "main"

[registries.local]
path = "vendor"

[registries.mirror]
archive = "https://example.com/archives"
format = "tar.zst"

[[dependencies]]
name = "vec"
registry = "local"
patches = { "src/vec.c" = "patches/vec.diff" }

[[dependencies]]
name = "log"
registry = "remote"

[toolchains.clang]
compiler = "clang"
compiler_flags = ["-Wall", "-Wextra"]
linker_flags = ["-lm"]
`

func TestParseTOML(t *testing.T) {
	dir := "/work/app"
	cfg, err := Parse(strings.NewReader(fullTOML), FormatTOML, testEnv(dir))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Project.Name != "app" || cfg.Project.Version != "0.1.0" {
		t.Errorf("project = %+v", cfg.Project)
	}
	if cfg.Project.LinkStrategy != StaticLibrary {
		t.Errorf("link strategy = %v, want %v", cfg.Project.LinkStrategy, StaticLibrary)
	}
	if !slices.Equal(cfg.Target.Sources, []string{"src/**/*.c", "extra/*.c"}) {
		t.Errorf("sources = %v", cfg.Target.Sources)
	}
	if got := cfg.Profile(Development).OptimizationLevel; got != OptO0 {
		t.Errorf("development opt = %v, want O0", got)
	}
	if got := cfg.Profile(Release).OptimizationLevel; got != OptO3 {
		t.Errorf("release opt = %v, want O3", got)
	}

	remote := cfg.Registries["remote"]
	if remote.Kind != RegistryGit || remote.URL != "https://example.com/libs" || remote.Branch != "main" {
		t.Errorf("remote = %+v", remote)
	}
	local := cfg.Registries["local"]
	if local.Kind != RegistryFileSystem || local.Path != filepath.Join(dir, "vendor") {
		t.Errorf("local = %+v", local)
	}
	mirror := cfg.Registries["mirror"]
	if mirror.Kind != RegistryArchive || mirror.Format != "tar.zst" {
		t.Errorf("mirror = %+v", mirror)
	}

	if len(cfg.Dependencies) != 2 {
		t.Fatalf("got %d dependencies, want 2", len(cfg.Dependencies))
	}
	vec := cfg.Dependencies[0]
	if vec.Name != "vec" || vec.Registry != "local" {
		t.Errorf("dependencies[0] = %+v", vec)
	}
	if got := vec.Patches["src/vec.c"]; got != filepath.Join(dir, "patches/vec.diff") {
		t.Errorf("patch path = %q", got)
	}
	if cfg.Dependencies[1].Name != "log" {
		t.Errorf("dependencies[1] = %+v", cfg.Dependencies[1])
	}

	name, tc, err := cfg.Toolchain(SelectNamed("clang"))
	if err != nil {
		t.Fatalf("Toolchain: %v", err)
	}
	if name != "clang" || tc.Compiler != "clang" || tc.Archiver != "ar" {
		t.Errorf("toolchain %s = %+v", name, tc)
	}
	if !slices.Equal(tc.CompilerFlags, []string{"-Wall", "-Wextra"}) || !slices.Equal(tc.LinkerFlags, []string{"-lm"}) {
		t.Errorf("toolchain flags = %v / %v", tc.CompilerFlags, tc.LinkerFlags)
	}
}

func TestParseYAMLTags(t *testing.T) {
	const src = `
project:
  name: app
  link_strategy: !StaticLibrary
registries:
  remote: !Git
    url: https://example.com/libs
    branch: dev
  local: !FileSystem ./vendor
dependencies:
  - name: vec
    registry_name: local
  - name: log
    registry: remote
`
	cfg, err := Parse(strings.NewReader(src), FormatYAML, testEnv("/work/app"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Project.LinkStrategy != StaticLibrary {
		t.Errorf("link strategy = %v", cfg.Project.LinkStrategy)
	}
	if r := cfg.Registries["remote"]; r.Kind != RegistryGit || r.URL != "https://example.com/libs" || r.Branch != "dev" {
		t.Errorf("remote = %+v", r)
	}
	if r := cfg.Registries["local"]; r.Kind != RegistryFileSystem || r.Path != "/work/app/vendor" {
		t.Errorf("local = %+v", r)
	}
	if len(cfg.Dependencies) != 2 || cfg.Dependencies[0].Registry != "local" {
		t.Errorf("dependencies = %+v", cfg.Dependencies)
	}
}

func TestParseExpressions(t *testing.T) {
	const src = `
[project]
name = "app-{{ target_os }}-{{ environ.CC }}"

[registries.local]
path = "/deps"

[[dependencies]]
name = "winapi"
registry = "local"
when = 'target_os == "windows"'

[[dependencies]]
name = "posix"
registry = "local"
when = 'target_os != "windows"'
`
	cfg, err := Parse(strings.NewReader(src), FormatTOML, testEnv("/work"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Project.Name != "app-linux-clang" {
		t.Errorf("name = %q", cfg.Project.Name)
	}
	if len(cfg.Dependencies) != 1 || cfg.Dependencies[0].Name != "posix" {
		t.Errorf("dependencies = %+v", cfg.Dependencies)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "duplicate dependency",
			src: `
[registries.r]
path = "/d"
[[dependencies]]
name = "a"
registry = "r"
[[dependencies]]
name = "a"
registry = "r"
`,
			want: "more than once",
		},
		{
			name: "dependency without registry",
			src: `
[[dependencies]]
name = "a"
`,
			want: "no registry",
		},
		{
			name: "registry with two sources",
			src: `
[registries.r]
path = "/d"
git = "https://example.com"
`,
			want: "exactly one",
		},
		{
			name: "unknown archive format",
			src: `
[registries.r]
archive = "https://example.com"
format = "rar"
`,
			want: "unsupported archive format",
		},
		{
			name: "non-bool condition",
			src: `
[registries.r]
path = "/d"
[[dependencies]]
name = "a"
registry = "r"
when = "target_os"
`,
			want: "expected bool",
		},
		{
			name: "bad link strategy",
			src: `
[project]
link_strategy = "firmware"
`,
			want: "unknown link strategy",
		},
		{
			name: "dependency escaping the source directory",
			src: `
[registries.r]
path = "/d"
[[dependencies]]
name = "../escape"
registry = "r"
`,
			want: "invalid name",
		},
		{
			name: "absolute dependency name",
			src: `
[registries.r]
path = "/d"
[[dependencies]]
name = "/etc/lib"
registry = "r"
`,
			want: "invalid name",
		},
		{
			name: "syntax error",
			src:  "[project\n",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.src), FormatTOML, testEnv("/work"))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestValidDependencyName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"vec", true},
		{"user/lib", true},
		{"a.b-c_d", true},
		{"..", false},
		{"../escape", false},
		{"user/../../escape", false},
		{"user/../lib", false},
		{"./vec", false},
		{"vec/", false},
		{".", false},
		{"/abs", false},
		{`user\lib`, false},
	}
	for _, tt := range tests {
		if got := validDependencyName(tt.name); got != tt.want {
			t.Errorf("validDependencyName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""), FormatTOML, testEnv("/work"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !slices.Equal(cfg.Target.Sources, []string{"src/**/*.c"}) {
		t.Errorf("sources = %v", cfg.Target.Sources)
	}
	if cfg.Project.LinkStrategy != Executable {
		t.Errorf("link strategy = %v", cfg.Project.LinkStrategy)
	}
	if got := cfg.Profile(Development).OptimizationLevel.Flag(); got != "-O" {
		t.Errorf("development flag = %q, want -O", got)
	}
	if got := cfg.Profile(Release).OptimizationLevel.Flag(); got != "-Ofast" {
		t.Errorf("release flag = %q, want -Ofast", got)
	}
}

func TestOptimizationLevel(t *testing.T) {
	tests := []struct {
		in   string
		want OptimizationLevel
		flag string
	}{
		{"none", OptNone, ""},
		{"", OptNone, ""},
		{"O", OptO, "-O"},
		{"-Os", OptOs, "-Os"},
		{"s", OptOs, "-Os"},
		{"3", OptO3, "-O3"},
		{"Ofast", OptOfast, "-Ofast"},
		{"-Og", OptOg, "-Og"},
		{"z", OptOz, "-Oz"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var o OptimizationLevel
			if err := o.UnmarshalText([]byte(tt.in)); err != nil {
				t.Fatalf("UnmarshalText(%q): %v", tt.in, err)
			}
			if o != tt.want {
				t.Errorf("got %v, want %v", o, tt.want)
			}
			if o.Flag() != tt.flag {
				t.Errorf("Flag() = %q, want %q", o.Flag(), tt.flag)
			}
		})
	}

	var o OptimizationLevel
	if err := o.UnmarshalText([]byte("O9")); err == nil {
		t.Error("expected an error for O9")
	}
}

func TestParseLinkStrategy(t *testing.T) {
	tests := map[string]LinkStrategy{
		"executable":      Executable,
		"Executable":      Executable,
		"static_library":  StaticLibrary,
		"!StaticLibrary":  StaticLibrary,
		"dynamic-library": DynamicLibrary,
		"shared":          DynamicLibrary,
	}
	for in, want := range tests {
		got, err := ParseLinkStrategy(in)
		if err != nil {
			t.Errorf("ParseLinkStrategy(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseLinkStrategy(%q) = %v, want %v", in, got, want)
		}
	}
	if !DynamicLibrary.PIC() || StaticLibrary.PIC() || Executable.PIC() {
		t.Error("only dynamic libraries need PIC")
	}
}

func TestToolchainSelection(t *testing.T) {
	cfg := &Config{Toolchains: map[string]Toolchain{
		"cross": {Compiler: "aarch64-linux-gnu-gcc"},
	}}

	name, tc, err := cfg.Toolchain(ToolchainSelector{})
	if err != nil || name != DefaultToolchainName || tc.Compiler != "gcc" || tc.Archiver != "ar" {
		t.Errorf("default = %s %+v %v", name, tc, err)
	}

	name, tc, err = cfg.Toolchain(SelectNamed("cross"))
	if err != nil || name != "cross" || tc.Compiler != "aarch64-linux-gnu-gcc" || tc.Archiver != "ar" {
		t.Errorf("named = %s %+v %v", name, tc, err)
	}

	_, _, err = cfg.Toolchain(SelectNamed("missing"))
	if !errors.Is(err, ErrToolchainNotFound) {
		t.Errorf("missing toolchain error = %v", err)
	}

	name, tc, err = cfg.Toolchain(SelectCustom(Toolchain{Compiler: "clang", CompilerFlags: []string{"-g"}}))
	if err != nil || name != CustomToolchainName || tc.Compiler != "clang" || tc.Archiver != "ar" {
		t.Errorf("custom = %s %+v %v", name, tc, err)
	}

	cfg.Toolchains[DefaultToolchainName] = Toolchain{Compiler: "cc"}
	if _, tc, _ := cfg.Toolchain(ToolchainSelector{}); tc.Compiler != "cc" {
		t.Errorf("overridden default compiler = %q", tc.Compiler)
	}
}

func TestLoad(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := Load(t.TempDir())
		if !errors.Is(err, ErrNoConfig) {
			t.Errorf("error = %v, want ErrNoConfig", err)
		}
	})

	t.Run("name defaults to directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "widget")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "build.yaml"), []byte("project:\n  version: 1.0.0\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg, err := Load(dir)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.Project.Name != "widget" {
			t.Errorf("name = %q", cfg.Project.Name)
		}
		if cfg.Path != filepath.Join(dir, "build.yaml") {
			t.Errorf("path = %q", cfg.Path)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "build.toml"), []byte("[[dependencies]]\nname = \"a\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := Load(dir)
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("error = %v, want ErrConfiguration", err)
		}
	})

	t.Run("dependency name outside the source directory", func(t *testing.T) {
		dir := t.TempDir()
		src := "[registries.r]\npath = \"/d\"\n[[dependencies]]\nname = \"../escape\"\nregistry = \"r\"\n"
		if err := os.WriteFile(filepath.Join(dir, "build.toml"), []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := Load(dir)
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("error = %v, want ErrConfiguration", err)
		}
	})
}
