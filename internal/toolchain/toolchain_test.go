package toolchain

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/corge-build/corge/internal/config"
)

// fakeRunner answers -dumpmachine and writes whatever file follows -o (or
// the archive after rcs)
type fakeRunner struct {
	triple string
	fail   string // source base name whose compilation fails

	mu    sync.Mutex
	calls [][]string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()

	if len(args) == 1 && args[0] == "-dumpmachine" {
		return f.triple + "\n", nil
	}

	for _, a := range args {
		if f.fail != "" && filepath.Base(a) == f.fail {
			return "", &ProcessError{Command: CommandLine(name, args), ExitCode: 1, Stderr: a + ": error: expected ';'"}
		}
	}

	out := ""
	for i, a := range args {
		if (a == "-o" || a == "rcs") && i+1 < len(args) {
			out = args[i+1]
		}
	}
	if out != "" {
		if err := os.WriteFile(out, []byte(strings.Join(args, " ")), 0o644); err != nil {
			return "", err
		}
	}
	return "", nil
}

func (f *fakeRunner) compilations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if slices.Contains(c, "-c") {
			n++
		}
	}
	return n
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParseTriple(t *testing.T) {
	tests := []struct {
		triple string
		want   Platform
	}{
		{"x86_64-pc-linux-gnu", Linux},
		{"x86_64-linux-gnu\n", Linux},
		{"aarch64-apple-darwin23.1.0", MacOS},
		{"arm64-apple-macosx14.0.0", MacOS},
		{"x86_64-w64-mingw32", Windows},
		{"x86_64-pc-windows-msvc", Windows},
		{"x86_64-pc-cygwin", Windows},
		{"garbage", Linux},
		{"", Linux},
	}
	for _, tt := range tests {
		t.Run(tt.triple, func(t *testing.T) {
			if got := ParseTriple(tt.triple); got != tt.want {
				t.Errorf("ParseTriple(%q) = %v, want %v", tt.triple, got, tt.want)
			}
		})
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		platform Platform
		kind     ArtifactKind
		want     string
	}{
		{Linux, ArtifactObject, "foo.o"},
		{Linux, ArtifactExecutable, "foo"},
		{Linux, ArtifactStaticLibrary, "libfoo.a"},
		{Linux, ArtifactDynamicLibrary, "libfoo.so"},
		{MacOS, ArtifactObject, "foo.o"},
		{MacOS, ArtifactExecutable, "foo"},
		{MacOS, ArtifactStaticLibrary, "libfoo.a"},
		{MacOS, ArtifactDynamicLibrary, "libfoo.dylib"},
		{Windows, ArtifactObject, "foo.obj"},
		{Windows, ArtifactExecutable, "foo.exe"},
		{Windows, ArtifactStaticLibrary, "libfoo.lib"},
		{Windows, ArtifactDynamicLibrary, "libfoo.dll"},
	}
	for _, tt := range tests {
		if got := tt.platform.FileName(tt.kind, "foo"); got != tt.want {
			t.Errorf("%v.FileName(%d) = %q, want %q", tt.platform, tt.kind, got, tt.want)
		}
	}
}

func TestNamerQueriesOnce(t *testing.T) {
	runner := &fakeRunner{triple: "x86_64-w64-mingw32"}
	namer := NewNamer(runner)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name, err := namer.FileName(context.Background(), "gcc", ArtifactExecutable, "app")
			if err != nil || name != "app.exe" {
				t.Errorf("FileName = %q, %v", name, err)
			}
		}()
	}
	wg.Wait()

	if _, err := namer.Platform(context.Background(), "gcc"); err != nil {
		t.Fatal(err)
	}
	if len(runner.calls) != 1 {
		t.Errorf("compiler queried %d times, want 1", len(runner.calls))
	}
}

func TestCacheKey(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a", "util.c")
	b := filepath.Join(dir, "b", "util.c")
	writeFile(t, a, "int x;")
	writeFile(t, b, "int x;")

	k1, err := CacheKey(a)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(k1, "util.c.") {
		t.Errorf("key %q does not start with the file name", k1)
	}
	if k2, _ := CacheKey(a); k2 != k1 {
		t.Errorf("key is not stable: %q != %q", k1, k2)
	}
	if kb, _ := CacheKey(b); kb == k1 {
		t.Error("same content at a different path produced the same key")
	}

	writeFile(t, a, "int y;")
	if k3, _ := CacheKey(a); k3 == k1 {
		t.Error("changed content produced the same key")
	}
	writeFile(t, a, "int x;")
	if k4, _ := CacheKey(a); k4 != k1 {
		t.Error("reverted content produced a different key")
	}

	if _, err := CacheKey(filepath.Join(dir, "missing.c")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func newTestCompiler(runner *fakeRunner, tc config.Toolchain) *Compiler {
	profile := config.Profile{OptimizationLevel: config.OptO2}
	return NewCompiler(profile, tc, "/inc", runner, NewNamer(runner), nil)
}

func TestCompilerArgs(t *testing.T) {
	tc := config.Toolchain{Compiler: "cc", CompilerFlags: []string{"-Wall"}}
	c := newTestCompiler(&fakeRunner{}, tc)

	got := c.Args("main.c", "main.o", true)
	want := []string{"-O2", "-I", "/inc", "-Wall", "-fPIC", "-c", "main.c", "-o", "main.o"}
	if !slices.Equal(got, want) {
		t.Errorf("Args = %v, want %v", got, want)
	}

	c.profile = config.Profile{OptimizationLevel: config.OptNone}
	got = c.Args("main.c", "main.o", false)
	want = []string{"-I", "/inc", "-Wall", "-c", "main.c", "-o", "main.o"}
	if !slices.Equal(got, want) {
		t.Errorf("Args = %v, want %v", got, want)
	}
}

func TestCompileIncremental(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "src", "main.c")
	util := filepath.Join(dir, "src", "util.c")
	writeFile(t, main, "int main(void) { return 0; }")
	writeFile(t, util, "int util(void) { return 1; }")
	outDir := filepath.Join(dir, "cache")

	runner := &fakeRunner{triple: "x86_64-pc-linux-gnu"}
	c := newTestCompiler(runner, config.DefaultToolchain())
	ctx := context.Background()

	objs, err := c.Compile(ctx, []string{main, util}, outDir, false)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(objs) != 2 {
		t.Fatalf("got %d objects, want 2", len(objs))
	}
	for i, src := range []string{"main.c.", "util.c."} {
		base := filepath.Base(objs[i])
		if !strings.HasPrefix(base, src) || !strings.HasSuffix(base, ".o") {
			t.Errorf("object %d = %q", i, base)
		}
		if _, err := os.Stat(objs[i]); err != nil {
			t.Errorf("object %d missing: %v", i, err)
		}
	}
	if n := runner.compilations(); n != 2 {
		t.Errorf("compiled %d files, want 2", n)
	}

	// nothing changed
	again, err := c.Compile(ctx, []string{main, util}, outDir, false)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(again, objs) {
		t.Errorf("objects changed: %v != %v", again, objs)
	}
	if n := runner.compilations(); n != 2 {
		t.Errorf("compiled %d files after a no-op build, want 2", n)
	}

	// edit, then revert
	writeFile(t, util, "int util(void) { return 2; }")
	edited, err := c.Compile(ctx, []string{main, util}, outDir, false)
	if err != nil {
		t.Fatal(err)
	}
	if edited[0] != objs[0] || edited[1] == objs[1] {
		t.Errorf("only util.c should get a new object: %v", edited)
	}
	if n := runner.compilations(); n != 3 {
		t.Errorf("compiled %d files, want 3", n)
	}

	before, err := os.ReadFile(objs[1])
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, util, "int util(void) { return 1; }")
	reverted, err := c.Compile(ctx, []string{main, util}, outDir, false)
	if err != nil {
		t.Fatal(err)
	}
	if reverted[1] != objs[1] {
		t.Errorf("reverted content got object %q, want %q", reverted[1], objs[1])
	}
	if n := runner.compilations(); n != 3 {
		t.Errorf("reverted content was recompiled")
	}
	after, _ := os.ReadFile(objs[1])
	if string(after) != string(before) {
		t.Error("reused object changed on disk")
	}

	entries, _ := os.ReadDir(outDir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".partial") {
			t.Errorf("temporary file %s left behind", e.Name())
		}
	}
}

func TestCompileFailure(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.c")
	bad := filepath.Join(dir, "bad.c")
	writeFile(t, good, "int good;")
	writeFile(t, bad, "int bad")

	runner := &fakeRunner{triple: "x86_64-pc-linux-gnu", fail: "bad.c"}
	c := newTestCompiler(runner, config.DefaultToolchain())
	c.Jobs = 1

	outDir := filepath.Join(dir, "cache")
	_, err := c.Compile(context.Background(), []string{good, bad}, outDir, false)
	if err == nil {
		t.Fatal("expected a compile error")
	}
	var perr *ProcessError
	if !errors.As(err, &perr) {
		t.Fatalf("error %v is not a *ProcessError", err)
	}
	if !strings.Contains(perr.Stderr, "expected ';'") {
		t.Errorf("stderr = %q", perr.Stderr)
	}

	key, _ := CacheKey(bad)
	if _, err := os.Stat(filepath.Join(outDir, key+".o")); !errors.Is(err, os.ErrNotExist) {
		t.Error("failed compilation left an object behind")
	}
}

func TestLink(t *testing.T) {
	tests := []struct {
		strategy config.LinkStrategy
		triple   string
		file     string
		program  string
		args     []string
	}{
		{config.Executable, "x86_64-pc-linux-gnu", "app", "gcc", []string{"-o", "OUT", "a.o", "b.o", "-lm"}},
		{config.Executable, "x86_64-w64-mingw32", "app.exe", "gcc", []string{"-o", "OUT", "a.o", "b.o", "-lm"}},
		{config.StaticLibrary, "x86_64-pc-linux-gnu", "libapp.a", "ar", []string{"rcs", "OUT", "a.o", "b.o"}},
		{config.StaticLibrary, "x86_64-pc-windows-msvc", "libapp.lib", "ar", []string{"rcs", "OUT", "a.o", "b.o"}},
		{config.DynamicLibrary, "x86_64-pc-linux-gnu", "libapp.so", "gcc", []string{"-shared", "-o", "OUT", "a.o", "b.o", "-lm"}},
		{config.DynamicLibrary, "aarch64-apple-darwin23.1.0", "libapp.dylib", "gcc", []string{"-shared", "-o", "OUT", "a.o", "b.o", "-lm"}},
	}
	for _, tt := range tests {
		t.Run(tt.strategy.String()+"/"+tt.triple, func(t *testing.T) {
			outDir := t.TempDir()
			runner := &fakeRunner{triple: tt.triple}
			tc := config.Toolchain{Compiler: "gcc", Archiver: "ar", LinkerFlags: []string{"-lm"}}
			l := NewLinker(tc, runner, NewNamer(runner), nil)

			out, err := l.Link(context.Background(), tt.strategy, []string{"a.o", "b.o"}, outDir, "app")
			if err != nil {
				t.Fatalf("Link: %v", err)
			}
			if out != filepath.Join(outDir, tt.file) {
				t.Errorf("output = %q, want %q", out, tt.file)
			}
			if _, err := os.Stat(out); err != nil {
				t.Errorf("artifact missing: %v", err)
			}

			last := runner.calls[len(runner.calls)-1]
			want := append([]string{tt.program}, tt.args...)
			for i := range want {
				if want[i] == "OUT" {
					want[i] = out
				}
			}
			if !slices.Equal(last, want) {
				t.Errorf("command = %v, want %v", last, want)
			}
		})
	}
}

func TestExecRunner(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	r := ExecRunner{}

	out, err := r.Run(context.Background(), "sh", "-c", "echo hello")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "hello" {
		t.Errorf("stdout = %q", out)
	}

	_, err = r.Run(context.Background(), "sh", "-c", "echo broken >&2; exit 3")
	var perr *ProcessError
	if !errors.As(err, &perr) {
		t.Fatalf("error %v is not a *ProcessError", err)
	}
	if perr.ExitCode != 3 || strings.TrimSpace(perr.Stderr) != "broken" {
		t.Errorf("ProcessError = %+v", perr)
	}

	if _, err := r.Run(context.Background(), "corge-no-such-tool"); err == nil {
		t.Error("expected an error for a missing tool")
	}
}
