// corge init [path]
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/corge-build/corge/internal/builder"
	"github.com/corge-build/corge/internal/config"
	"github.com/corge-build/corge/internal/msg"
	"github.com/corge-build/corge/internal/toolchain"
	"github.com/fatih/color"
	"github.com/go-git/go-git/v6"
	"github.com/spf13/cobra"
)

const mainTemplate = `#include <stdio.h>

int main(void) {
    puts("Hello, World!");
    return 0;
}
`

const libraryTemplate = `#include "%[1]s.h"

int %[1]s_answer(void) {
    return 42;
}
`

const headerTemplate = `#ifndef %[1]s_H
#define %[1]s_H

int %[2]s_answer(void);

#endif
`

const gitignoreTemplate = `/target
/dependency
/compilation_database
`

func buildFileTemplate(name string, strategy config.LinkStrategy, compiler string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `[project]
name = %q
version = "1.0.0"
link_strategy = %q

[target]
sources = ["src/**/*.c"]

[profiles.development]
optimization_level = "None"

[profiles.release]
optimization_level = "O"

# [registries.local]
# path = "../registry"
#
# [[dependencies]]
# name = "vec"
# registry = "local"
`, name, strategy.String())

	if compiler != "" && compiler != config.DefaultToolchain().Compiler {
		fmt.Fprintf(&sb, `
[toolchains.system]
compiler = %q
`, compiler)
	}
	return sb.String()
}

func writefile(content string, elem ...string) error {
	path := filepath.Join(elem...)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("create file %s: %w", path, err)
	}
	fmt.Printf("%s file: %s\n", color.HiGreenString("Created"), filepath.ToSlash(path))
	return nil
}

// cIdent makes name usable as a C identifier
func cIdent(name string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, name)
}

// initProject creates a project in dir, which must be empty or missing
func initProject(dir string, strategy config.LinkStrategy, withGit bool) error {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("directory %s is not empty", dir)
	}

	name := filepath.Base(dir)
	ident := cIdent(name)
	if err := writefile(buildFileTemplate(name, strategy, toolchain.DetectCompiler()), dir, "build.toml"); err != nil {
		return err
	}

	if strategy == config.Executable {
		if err := writefile(mainTemplate, dir, "src", "main.c"); err != nil {
			return err
		}
	} else {
		if err := writefile(fmt.Sprintf(libraryTemplate, ident), dir, "src", ident+".c"); err != nil {
			return err
		}
		if err := writefile(fmt.Sprintf(headerTemplate, strings.ToUpper(ident), ident), dir, "src", ident+".h"); err != nil {
			return err
		}
	}

	if withGit {
		if _, err := git.PlainInit(dir, false); err != nil {
			return fmt.Errorf("failed to initialize git repository: %w", err)
		}
		if err := writefile(gitignoreTemplate, dir, ".gitignore"); err != nil {
			return err
		}
	}

	if _, err := builder.WriteCompilationDatabase(dir); err != nil {
		return fmt.Errorf("failed to write compilation database: %w", err)
	}
	return nil
}

var (
	flagInitLink EnumValue = NewEnumValue("executable", linkStrategies)
	flagNoGit    bool
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Create a new project",
	Long:  `Create a new project in path (default "."), which must be empty.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := pathArg(args)
		strategy, err := config.ParseLinkStrategy(flagInitLink.Value())
		if err != nil {
			msg.Fatal("%v", err)
		}
		if err := initProject(dir, strategy, !flagNoGit); err != nil {
			msg.Fatal("%v", err)
		}

		programName := getProgramName()
		fmt.Printf("You can now do %s to build, or %s to build and run.\n",
			color.HiCyanString(programName+" build "+dir), color.HiCyanString(programName+" run "+dir))
	},
}

func getProgramName() string {
	if len(os.Args) == 0 {
		return "corge"
	}
	basename := filepath.Base(os.Args[0])
	return strings.TrimSuffix(basename, filepath.Ext(basename))
}

func init() {
	// corge init subcommand
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Var(&flagInitLink, "link", "What the project links into, one of "+flagInitLink.HelpString())
	initCmd.Flags().BoolVar(&flagNoGit, "no-git", false, "Don't create a git repository")
	initCmd.RegisterFlagCompletionFunc("link", flagInitLink.CompletionFunc())
}
