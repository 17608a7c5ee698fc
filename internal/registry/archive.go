package registry

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/corge-build/corge/internal/msg"
	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
)

// ArchiveTransport downloads and unpacks <URL>/<name>.<Format>
type ArchiveTransport struct {
	URL    string
	Format string // tar.gz when empty

	Client   *http.Client
	Log      msg.Logger
	Progress io.Writer
}

func (t *ArchiveTransport) format() string {
	if t.Format == "" {
		return "tar.gz"
	}
	return t.Format
}

func (t *ArchiveTransport) ArchiveURL(name string) string {
	return strings.TrimSuffix(t.URL, "/") + "/" + name + "." + t.format()
}

func (t *ArchiveTransport) Fetch(ctx context.Context, name, dest string) error {
	url := t.ArchiveURL(name)
	if t.Log != nil {
		t.Log.Info("downloading %s", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}

	var body io.Reader = resp.Body
	var bar *msg.ProgressBar
	if t.Progress != nil {
		bar = msg.NewProgressBar(name, resp.ContentLength, 4, t.Progress)
		body = io.TeeReader(resp.Body, bar)
	}

	if err := Extract(body, t.format(), dest); err != nil {
		return fmt.Errorf("failed to extract %s: %w", url, err)
	}
	if bar != nil {
		bar.Finish()
	}
	return nil
}

func decompress(r io.Reader, format string) (io.Reader, func(), error) {
	switch format {
	case "tar.gz", "tgz":
		gz, err := pgzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return gz, func() { gz.Close() }, nil
	case "tar.xz", "txz":
		xzr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return xzr, func() {}, nil
	case "tar.zst", "tzst":
		zst, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zst, zst.Close, nil
	case "tar":
		return r, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unsupported archive format %q", format)
}

// Extract unpacks a tarball into dest. Entries can't escape dest, and a
// single top-level directory is stripped.
func Extract(r io.Reader, format, dest string) error {
	dr, closer, err := decompress(r, format)
	if err != nil {
		return err
	}
	defer closer()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	tr := tar.NewReader(dr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("error reading tar header: %w", err)
		}

		target, err := securejoin.SecureJoin(dest, hdr.Name)
		if err != nil {
			return fmt.Errorf("invalid entry %q: %w", hdr.Name, err)
		}
		if target == filepath.Clean(dest) {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeEntry(tr, target, hdr.FileInfo().Mode().Perm()|0o600); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) {
				return fmt.Errorf("symlink %s points outside the archive", hdr.Name)
			}
			resolved := filepath.Join(filepath.Dir(target), hdr.Linkname)
			if rel, err := filepath.Rel(dest, resolved); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				return fmt.Errorf("symlink %s points outside the archive", hdr.Name)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		default:
			// pax headers, hard links, devices
		}
	}

	return stripTopLevel(dest)
}

func writeEntry(r io.Reader, path string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// stripTopLevel hoists the children of dir's only entry when that entry is a
// directory
func stripTopLevel(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return nil
	}

	// the child may share its parent's name
	inner := filepath.Join(dir, "."+uuid.NewString())
	if err := os.Rename(filepath.Join(dir, entries[0].Name()), inner); err != nil {
		return err
	}
	children, err := os.ReadDir(inner)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := os.Rename(filepath.Join(inner, c.Name()), filepath.Join(dir, c.Name())); err != nil {
			return err
		}
	}
	return os.Remove(inner)
}
