// corge clean [path]
package cmd

import (
	"os"
	"path/filepath"

	"github.com/corge-build/corge/internal/builder"
	"github.com/corge-build/corge/internal/msg"
	"github.com/spf13/cobra"
)

var flagDepsToo bool

// clean removes target/ and, with depsToo, dependency/
func clean(dir string, depsToo bool) error {
	if err := os.RemoveAll(filepath.Join(dir, "target")); err != nil {
		return err
	}
	if depsToo {
		return os.RemoveAll(builder.NewDependencyPath(dir).Root)
	}
	return nil
}

var cleanCmd = &cobra.Command{
	Use:   "clean [project path]",
	Short: "Remove build outputs",
	Long:  `Remove the target directory, and the dependency directory too with --deps-too.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := clean(pathArg(args), flagDepsToo); err != nil {
			msg.Fatal("%v", err)
		}
	},
}

func init() {
	// corge clean subcommand
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().BoolVar(&flagDepsToo, "deps-too", false, "Also remove fetched dependencies")
}
