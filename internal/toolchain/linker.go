package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/corge-build/corge/internal/config"
	"github.com/corge-build/corge/internal/msg"
)

type Linker struct {
	toolchain config.Toolchain
	runner    Runner
	namer     *Namer
	log       msg.Logger
}

func NewLinker(tc config.Toolchain, runner Runner, namer *Namer, log msg.Logger) *Linker {
	if log == nil {
		log = msg.Discard{}
	}
	return &Linker{toolchain: tc, runner: runner, namer: namer, log: log}
}

// OutputPath returns where Link puts the artifact for name
func (l *Linker) OutputPath(ctx context.Context, strategy config.LinkStrategy, outDir, name string) (string, error) {
	file, err := l.namer.FileName(ctx, l.toolchain.Compiler, ArtifactFor(strategy), name)
	if err != nil {
		return "", err
	}
	return filepath.Join(outDir, file), nil
}

// Command returns the program and arguments that link objects into out
func (l *Linker) Command(strategy config.LinkStrategy, objects []string, out string) (string, []string) {
	var args []string
	switch strategy {
	case config.StaticLibrary:
		args = append(args, "rcs", out)
		args = append(args, objects...)
		return l.toolchain.Archiver, args
	case config.DynamicLibrary:
		args = append(args, "-shared")
	}
	args = append(args, "-o", out)
	args = append(args, objects...)
	args = append(args, l.toolchain.LinkerFlags...)
	return l.toolchain.Compiler, args
}

// Link produces exactly one artifact in outDir and returns its path
func (l *Linker) Link(ctx context.Context, strategy config.LinkStrategy, objects []string, outDir, name string) (string, error) {
	out, err := l.OutputPath(ctx, strategy, outDir, name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	// the archiver only adds and replaces members, stale objects from an
	// earlier build would stay in the archive
	if strategy == config.StaticLibrary {
		if err := os.Remove(out); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}

	program, args := l.Command(strategy, objects, out)
	l.log.Info("linking %s", filepath.Base(out))
	if _, err := l.runner.Run(ctx, program, args...); err != nil {
		return "", fmt.Errorf("failed to link %s: %w", filepath.Base(out), err)
	}
	return out, nil
}
