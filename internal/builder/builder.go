package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/corge-build/corge/internal/config"
	"github.com/corge-build/corge/internal/msg"
	"github.com/corge-build/corge/internal/toolchain"
)

var (
	errCantRunLib = errors.New("can't run a library, set link_strategy to executable")
	errNoObjects  = errors.New("nothing to link, no source files matched")
)

type Options struct {
	// Dir is the project root, the current directory when empty
	Dir       string
	Mode      config.BuildMode
	Toolchain config.ToolchainSelector
	// LinkStrategy overrides [project] link_strategy when set
	LinkStrategy *config.LinkStrategy
	// Jobs caps concurrent compiler processes, runtime.NumCPU() when <= 0
	Jobs int

	Log        msg.Logger
	Runner     toolchain.Runner
	Transports TransportFactory
	// Progress receives fetch progress, nil disables it
	Progress io.Writer
}

// Result describes a finished build
type Result struct {
	Config    *config.Config
	Toolchain string
	Strategy  config.LinkStrategy
	Artifacts []Artifact
	Objects   []string
	Output    string
}

// Builder runs the build pipeline for one project
type Builder struct {
	opts  Options
	dir   string
	state Stage
}

func New(opts Options) (*Builder, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	if opts.Log == nil {
		opts.Log = msg.Discard{}
	}
	if opts.Runner == nil {
		opts.Runner = toolchain.ExecRunner{Log: opts.Log}
	}
	if opts.Transports == nil {
		opts.Transports = DefaultTransports(opts.Log, opts.Progress)
	}
	return &Builder{opts: opts, dir: dir}, nil
}

// Dir returns the absolute project root
func (b *Builder) Dir() string { return b.dir }

// State returns the last stage the builder reached
func (b *Builder) State() Stage { return b.state }

func (b *Builder) fail(stage Stage, err error) (*Result, error) {
	b.state = Failed
	return nil, &StageError{Stage: stage, Err: err}
}

// Build fetches, compiles and links the project. On failure the returned
// error is a *StageError and nothing produced so far is removed.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	log := b.opts.Log
	b.state = Pending

	cfg, err := config.Load(b.dir)
	if err != nil {
		return b.fail(ConfigParsed, err)
	}
	b.state = ConfigParsed

	strategy := cfg.Project.LinkStrategy
	if b.opts.LinkStrategy != nil {
		strategy = *b.opts.LinkStrategy
	}
	profile := cfg.Profile(b.opts.Mode)

	tcName, tc, err := cfg.Toolchain(b.opts.Toolchain)
	if err != nil {
		return b.fail(ToolchainResolved, err)
	}
	b.state = ToolchainResolved
	log.Info("building %s (%s, toolchain %s)", cfg.Project.Name, b.opts.Mode, tcName)

	deps := NewDependencyPath(b.dir)
	target := NewTargetPath(b.dir, b.opts.Mode, tcName)
	if err := deps.Create(); err != nil {
		return b.fail(LayoutCreated, err)
	}
	if err := target.Create(); err != nil {
		return b.fail(LayoutCreated, err)
	}
	b.state = LayoutCreated

	resolver := NewResolver(deps.Source, b.opts.Transports, log)
	artifacts, err := resolver.Resolve(ctx, cfg.Registries, cfg.Dependencies)
	if err != nil {
		return b.fail(DependenciesFetched, err)
	}
	b.state = DependenciesFetched

	if err := ProjectHeaders(artifacts, deps.Include); err != nil {
		return b.fail(HeadersProjected, err)
	}
	b.state = HeadersProjected

	namer := toolchain.NewNamer(b.opts.Runner)
	compiler := toolchain.NewCompiler(profile, tc, deps.Include, b.opts.Runner, namer, log)
	compiler.Jobs = b.opts.Jobs
	pic := strategy.PIC()

	var objects []string
	for _, a := range artifacts {
		sources, err := CollectFiles(a.Path, a.Sources())
		if err != nil {
			return b.fail(DependenciesCompiled, fmt.Errorf("dependency %q: %w", a.Dependency.Name, err))
		}
		objs, err := compiler.Compile(ctx, sources, target.DependencyObjects(a.Dependency.Name, pic), pic)
		if err != nil {
			return b.fail(DependenciesCompiled, fmt.Errorf("dependency %q: %w", a.Dependency.Name, err))
		}
		objects = append(objects, objs...)
	}
	b.state = DependenciesCompiled

	sources, err := CollectFiles(b.dir, cfg.Target.Sources)
	if err != nil {
		return b.fail(ProjectCompiled, err)
	}
	objs, err := compiler.Compile(ctx, sources, target.ProjectObjects(pic), pic)
	if err != nil {
		return b.fail(ProjectCompiled, err)
	}
	objects = append(objects, objs...)
	b.state = ProjectCompiled

	if len(objects) == 0 {
		return b.fail(Linked, errNoObjects)
	}
	linker := toolchain.NewLinker(tc, b.opts.Runner, namer, log)
	output, err := linker.Link(ctx, strategy, objects, target.Output, cfg.Project.Name)
	if err != nil {
		return b.fail(Linked, err)
	}
	b.state = Linked

	b.state = Done
	log.Info("built %s", output)
	return &Result{
		Config:    cfg,
		Toolchain: tcName,
		Strategy:  strategy,
		Artifacts: artifacts,
		Objects:   objects,
		Output:    output,
	}, nil
}

// BuildAndRun builds the project and runs the executable with args, wired to
// the standard streams
func (b *Builder) BuildAndRun(ctx context.Context, args []string) error {
	if b.opts.LinkStrategy != nil && *b.opts.LinkStrategy != config.Executable {
		return errCantRunLib
	}

	res, err := b.Build(ctx)
	if err != nil {
		return err
	}
	if res.Strategy != config.Executable {
		return errCantRunLib
	}

	cmd := exec.CommandContext(ctx, res.Output, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	return cmd.Run()
}
