// corge compdb [path]
package cmd

import (
	"fmt"

	"github.com/corge-build/corge/internal/builder"
	"github.com/corge-build/corge/internal/msg"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var compdbCmd = &cobra.Command{
	Use:   "compdb [project path]",
	Short: "Write compile_commands.json for editors and language servers",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path, err := builder.WriteCompilationDatabase(pathArg(args))
		if err != nil {
			msg.Fatal("%v", err)
		}
		fmt.Printf("%s %s\n", color.HiGreenString("Wrote"), path)
	},
}

func init() {
	// corge compdb subcommand
	rootCmd.AddCommand(compdbCmd)
}
