package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSystemTransport copies <Root>/<name>
type FileSystemTransport struct {
	Root string
}

func (t *FileSystemTransport) Fetch(_ context.Context, name, dest string) error {
	src := filepath.Join(t.Root, name)
	stat, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !stat.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}
	return os.CopyFS(dest, os.DirFS(src))
}
