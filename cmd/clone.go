// corge clone git <url> [path], corge clone fs <from> [path]
package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/corge-build/corge/internal/msg"
	"github.com/corge-build/corge/internal/registry"
	"github.com/spf13/cobra"
)

var flagBranch string

// cloneDest returns args[i] or a directory named after the source
func cloneDest(args []string, i int, source string) string {
	if len(args) > i {
		return args[i]
	}
	return filepath.Base(strings.TrimSuffix(strings.TrimRight(source, "/"), ".git"))
}

func prepareDest(dest string) {
	if _, err := os.Stat(dest); err == nil {
		msg.Warn("replacing %s", dest)
		if err := os.RemoveAll(dest); err != nil {
			msg.Fatal("%v", err)
		}
	}
}

var cloneCmd = &cobra.Command{
	Use:   "clone",
	Short: "Copy an existing project",
}

var cloneGitCmd = &cobra.Command{
	Use:   "git <url> [path]",
	Short: "Clone a project from a git remote",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		url := registry.ExpandURL(args[0])
		dest := cloneDest(args, 1, url)
		prepareDest(dest)

		t := &registry.GitTransport{Branch: flagBranch, Progress: os.Stdout}
		msg.Info("cloning %s into %s", url, dest)
		if err := t.Clone(cmd.Context(), url, dest); err != nil {
			msg.Fatal("failed to clone %s: %v", url, err)
		}
	},
}

var cloneFSCmd = &cobra.Command{
	Use:   "fs <from> [path]",
	Short: "Copy a project from a local directory",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		from := args[0]
		dest := cloneDest(args, 1, from)
		if stat, err := os.Stat(from); err != nil || !stat.IsDir() {
			msg.Fatal("%s is not a directory", from)
		}
		prepareDest(dest)

		msg.Info("copying %s into %s", from, dest)
		if err := os.CopyFS(dest, os.DirFS(from)); err != nil {
			msg.Fatal("failed to copy %s: %v", from, err)
		}
	},
}

func init() {
	// corge clone subcommands
	rootCmd.AddCommand(cloneCmd)
	cloneCmd.AddCommand(cloneGitCmd, cloneFSCmd)
	cloneGitCmd.Flags().StringVarP(&flagBranch, "branch", "b", "", "Branch to check out (remote HEAD by default)")
}
