// corge run [path] [-- args]
package cmd

import (
	"errors"
	"os"
	"os/exec"

	"github.com/corge-build/corge/internal/builder"
	"github.com/corge-build/corge/internal/msg"
	"github.com/spf13/cobra"
)

func doRun(cmd *cobra.Command, args []string) {
	var target string
	var programArgs []string
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		target = pathArg(args[:dash])
		programArgs = args[dash:]
	} else {
		target = pathArg(args)
		if len(args) > 1 {
			programArgs = args[1:] // other arguments will be passed to program
		}
	}

	b, err := builder.New(buildOptions(target))
	if err != nil {
		msg.Fatal("%v", err)
	}
	if err := b.BuildAndRun(cmd.Context(), programArgs); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		msg.Fatal("%v", err)
	}
}

var runCmd = &cobra.Command{
	Use:   "run [project path] [-- program args]",
	Short: "Build and run the project",
	Long:  `Build and run the project. If no project path is given, uses "."`,
	Args:  cobra.ArbitraryArgs,
	Run:   doRun,
}

func init() {
	// corge run subcommand
	rootCmd.AddCommand(runCmd)
	addBuildFlags(runCmd)
}
