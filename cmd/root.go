// corge [path], corge build [path]
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/corge-build/corge/internal/builder"
	"github.com/corge-build/corge/internal/config"
	"github.com/corge-build/corge/internal/msg"
	"github.com/spf13/cobra"
)

var (
	flagRelease       bool
	flagDev           bool
	flagToolchain     string
	flagCompiler      string
	flagArchiver      string
	flagCompilerFlags []string
	flagLinkerFlags   []string
	flagJobs          int
	flagVerbose       bool
	flagLink          EnumValue = NewEnumValue("", linkStrategies)
)

var linkStrategies = map[string]string{
	"executable":      "Link an executable (default)",
	"static_library":  "Archive a static library (lib<name>.a)",
	"dynamic_library": "Link a shared library (lib<name>.so)",
}

// buildOptions turns the build flags into builder options for the project in dir
func buildOptions(dir string) builder.Options {
	opts := builder.Options{
		Dir:  dir,
		Jobs: flagJobs,
		Log:  msg.Default,
	}
	if flagRelease {
		opts.Mode = config.Release
	}

	switch {
	case flagToolchain != "":
		opts.Toolchain = config.SelectNamed(flagToolchain)
	case flagCompiler != "" || flagArchiver != "" || len(flagCompilerFlags) > 0 || len(flagLinkerFlags) > 0:
		opts.Toolchain = config.SelectCustom(config.Toolchain{
			Compiler:      flagCompiler,
			Archiver:      flagArchiver,
			CompilerFlags: flagCompilerFlags,
			LinkerFlags:   flagLinkerFlags,
		})
	}

	if flagLink.Value() != "" {
		strategy, err := config.ParseLinkStrategy(flagLink.Value())
		if err != nil {
			msg.Fatal("%v", err)
		}
		opts.LinkStrategy = &strategy
	}

	if msg.IsTerminal() {
		opts.Progress = os.Stdout
	}
	return opts
}

func pathArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func doBuild(cmd *cobra.Command, args []string) {
	b, err := builder.New(buildOptions(pathArg(args)))
	if err != nil {
		msg.Fatal("%v", err)
	}
	if _, err := b.Build(cmd.Context()); err != nil {
		msg.Fatal("%v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "corge [project path]",
	Short: "Build tool for C projects",
	Long:  `Corge fetches the dependencies of a C project, compiles them with the project and links the result.`,
	Args:  cobra.ExactArgs(1),
	Run:   doBuild,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		msg.Default.Verbose = flagVerbose
	},
}

var buildCmd = &cobra.Command{
	Use:   "build [project path]",
	Short: "Build the project",
	Long:  `Build the project. If no project path is given, uses "."`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doBuild,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Print every command that is run")
	addBuildFlags(rootCmd)

	// corge build subcommand
	rootCmd.AddCommand(buildCmd)
	addBuildFlags(buildCmd)
}

func addBuildFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.BoolVarP(&flagRelease, "release", "r", false, "Build in release mode (optimized)")
	flags.BoolVar(&flagDev, "dev", false, "Build in development mode (default)")
	flags.StringVarP(&flagToolchain, "toolchain", "t", "", "Use a toolchain declared in the build file")
	flags.StringVar(&flagCompiler, "compiler", "", "Use a custom toolchain with this compiler")
	flags.StringVar(&flagArchiver, "archiver", "", "Use a custom toolchain with this archiver")
	flags.StringArrayVar(&flagCompilerFlags, "compiler-flag", nil, "Extra compiler flag for the custom toolchain (repeatable)")
	flags.StringArrayVar(&flagLinkerFlags, "linker-flag", nil, "Extra linker flag for the custom toolchain (repeatable)")
	flags.Var(&flagLink, "link", "Override the link strategy, one of "+flagLink.HelpString())
	flags.IntVarP(&flagJobs, "jobs", "j", 0, "Number of parallel compile jobs (default: number of CPUs)")

	cmd.MarkFlagsMutuallyExclusive("release", "dev")
	for _, custom := range []string{"compiler", "archiver", "compiler-flag", "linker-flag"} {
		cmd.MarkFlagsMutuallyExclusive("toolchain", custom)
	}
	cmd.RegisterFlagCompletionFunc("link", flagLink.CompletionFunc())
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
