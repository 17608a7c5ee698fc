// Package registry fetches dependency sources from git remotes, local
// directories and archive servers
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/corge-build/corge/internal/config"
	"github.com/corge-build/corge/internal/msg"
	"github.com/google/uuid"
)

var ErrTransport = errors.New("failed to fetch dependency")

// Transport populates dest with the sources of the dependency called name.
// dest does not exist yet when Fetch is called.
type Transport interface {
	Fetch(ctx context.Context, name, dest string) error
}

// New returns the transport for reg. Fetch progress is drawn to progress,
// which may be nil.
func New(reg config.Registry, log msg.Logger, progress io.Writer) (Transport, error) {
	if log == nil {
		log = msg.Discard{}
	}
	switch reg.Kind {
	case config.RegistryGit:
		return &GitTransport{URL: reg.URL, Branch: reg.Branch, Depth: 1, Log: log, Progress: progress}, nil
	case config.RegistryFileSystem:
		return &FileSystemTransport{Root: reg.Path}, nil
	case config.RegistryArchive:
		return &ArchiveTransport{
			URL:      reg.URL,
			Format:   reg.Format,
			Client:   http.DefaultClient,
			Log:      log,
			Progress: progress,
		}, nil
	}
	return nil, fmt.Errorf("unknown registry kind %v", reg.Kind)
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Stage fetches name into dest unless dest already exists. The sources are
// fetched into a hidden sibling directory, handed to prepare (which may be
// nil) and renamed into place, so dest is either absent or complete. An
// exclusive lock on <parent>/.<base of dest>.lock serializes concurrent
// stagings of the same dest. name may contain slashes, e.g. user/lib.
func Stage(ctx context.Context, t Transport, name, dest string, prepare func(dir string) error) (fetched bool, err error) {
	parent, base := filepath.Split(filepath.Clean(dest))
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return false, err
	}

	unlock, err := lockFile(ctx, filepath.Join(parent, "."+base+".lock"))
	if err != nil {
		return false, fmt.Errorf("failed to lock %s: %w", name, err)
	}
	defer unlock()

	// someone else may have finished while we waited for the lock
	ok, err := exists(dest)
	if err != nil || ok {
		return false, err
	}

	tmp := filepath.Join(parent, "."+base+"-"+uuid.NewString()+".partial")
	defer os.RemoveAll(tmp)

	if err := t.Fetch(ctx, name, tmp); err != nil {
		return false, fmt.Errorf("%w %q: %w", ErrTransport, name, err)
	}
	if prepare != nil {
		if err := prepare(tmp); err != nil {
			return false, err
		}
	}
	if err := os.Rename(tmp, dest); err != nil {
		return false, fmt.Errorf("failed to move %s into place: %w", name, err)
	}
	return true, nil
}
