package registry

import (
	"context"
	"io"
	"strings"

	"github.com/corge-build/corge/internal/msg"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
)

var urlShortcuts = map[string]string{
	"gh:": "https://github.com/",
	"gl:": "https://gitlab.com/",
	"bb:": "https://bitbucket.org/",
	"sr:": "https://sr.ht/",
	"cb:": "https://codeberg.org/",
}

// ExpandURL expands forge shortcuts, e.g. gh:someone becomes
// https://github.com/someone
func ExpandURL(url string) string {
	for shortcut, prefix := range urlShortcuts {
		if strings.HasPrefix(url, shortcut) {
			return prefix + strings.TrimPrefix(url[len(shortcut):], "/")
		}
	}
	return url
}

// GitTransport clones <URL>/<name>
type GitTransport struct {
	URL    string
	Branch string // remote HEAD when empty
	// Depth limits fetched history, 0 clones all of it
	Depth int

	Log      msg.Logger
	Progress io.Writer
}

func (t *GitTransport) RepoURL(name string) string {
	return strings.TrimSuffix(ExpandURL(t.URL), "/") + "/" + name
}

func (t *GitTransport) Fetch(ctx context.Context, name, dest string) error {
	return t.Clone(ctx, t.RepoURL(name), dest)
}

// Clone clones the repository at url into dest with the transport's branch,
// depth and progress settings
func (t *GitTransport) Clone(ctx context.Context, url, dest string) error {
	if t.Log != nil {
		t.Log.Info("cloning %s", url)
	}
	_, err := git.PlainCloneContext(ctx, dest, t.CloneOptions(url))
	return err
}

func (t *GitTransport) CloneOptions(url string) *git.CloneOptions {
	opts := &git.CloneOptions{
		URL:               ExpandURL(url),
		Depth:             t.Depth,
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
	}
	if t.Progress != nil {
		opts.Progress = &msg.IndentWriter{Indent: "    ", W: t.Progress}
	}
	if t.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(t.Branch)
		opts.SingleBranch = true
	}
	return opts
}
