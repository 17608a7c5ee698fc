package toolchain

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/corge-build/corge/internal/config"
	"github.com/corge-build/corge/internal/msg"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"lukechampine.com/blake3"
)

// CacheKey digests the path and the full content of a source file. The key
// starts with the file's base name so objects stay recognizable on disk.
func CacheKey(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := blake3.New(32, nil)
	// paths can't contain NUL, so (path, content) pairs never alias
	io.WriteString(hash, path)
	hash.Write([]byte{0})
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return filepath.Base(path) + "." + hex.EncodeToString(hash.Sum(nil)), nil
}

// Compiler turns translation units into objects, reusing any object whose
// cache key is already on disk
type Compiler struct {
	profile     config.Profile
	toolchain   config.Toolchain
	includePath string
	runner      Runner
	namer       *Namer
	log         msg.Logger

	// Jobs caps concurrent compiler processes, runtime.NumCPU() when <= 0
	Jobs int
}

func NewCompiler(profile config.Profile, tc config.Toolchain, includePath string, runner Runner, namer *Namer, log msg.Logger) *Compiler {
	if log == nil {
		log = msg.Discard{}
	}
	return &Compiler{
		profile:     profile,
		toolchain:   tc,
		includePath: includePath,
		runner:      runner,
		namer:       namer,
		log:         log,
	}
}

type compileJob struct {
	src string
	obj string
}

// Compile compiles sources into outDir and returns one object path per
// source, in input order. Any failing compilation fails the whole call.
func (c *Compiler) Compile(ctx context.Context, sources []string, outDir string, pic bool) ([]string, error) {
	if len(sources) == 0 {
		return nil, nil
	}

	platform, err := c.namer.Platform(ctx, c.toolchain.Compiler)
	if err != nil {
		return nil, err
	}

	objects := make([]string, len(sources))
	var jobs []compileJob
	queued := make(map[string]bool)

	for i, src := range sources {
		key, err := CacheKey(src)
		if err != nil {
			return nil, fmt.Errorf("failed to hash source file %s: %w", src, err)
		}
		obj := filepath.Join(outDir, platform.FileName(ArtifactObject, key))
		objects[i] = obj

		if queued[obj] {
			continue
		}
		_, err = os.Stat(obj)
		if err == nil {
			c.log.Debug("%s is up to date", src)
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		queued[obj] = true
		jobs = append(jobs, compileJob{src: src, obj: obj})
	}

	if len(jobs) == 0 {
		return objects, nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create object directory: %w", err)
	}

	err = runJobs(ctx, jobs, func(ctx context.Context, job compileJob) error {
		return c.compile(ctx, job, pic)
	}, c.Jobs)
	if err != nil {
		return nil, err
	}
	return objects, nil
}

// Args returns the compiler arguments for one translation unit
func (c *Compiler) Args(src, obj string, pic bool) []string {
	args := make([]string, 0, len(c.toolchain.CompilerFlags)+8)
	if flag := c.profile.OptimizationLevel.Flag(); flag != "" {
		args = append(args, flag)
	}
	args = append(args, "-I", c.includePath)
	args = append(args, c.toolchain.CompilerFlags...)
	if pic {
		args = append(args, "-fPIC")
	}
	args = append(args, "-c", src, "-o", obj)
	return args
}

// compile writes to a temporary file and renames it into place. An object
// stored under a cache key is always complete.
func (c *Compiler) compile(ctx context.Context, job compileJob, pic bool) error {
	c.log.Info("compiling %s", job.src)

	tmp := job.obj + "." + uuid.NewString() + ".partial"
	if _, err := c.runner.Run(ctx, c.toolchain.Compiler, c.Args(job.src, tmp, pic)...); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to compile %s: %w", job.src, err)
	}
	if err := os.Rename(tmp, job.obj); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to store object for %s: %w", job.src, err)
	}
	return nil
}

// runJobs runs jobs in parallel, at most limit at a time
func runJobs[T any](ctx context.Context, jobs []T, jobfunc func(ctx context.Context, job T) error, limit int) error {
	if len(jobs) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)

	for _, job := range jobs {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return jobfunc(ctx, job)
		})
	}

	return eg.Wait()
}
