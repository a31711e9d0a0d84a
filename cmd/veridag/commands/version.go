package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/veridag/veridag/pkg/engine"
)

func newVersionCommand(version, commit, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				fmt.Printf(`{"version":%q,"commit":%q,"built":%q,"graph_version":%q,"go":%q}`+"\n",
					version, commit, buildDate, engine.GraphVersion, runtime.Version())
				return
			}
			fmt.Printf("veridag %s\n", version)
			fmt.Printf("  commit:        %s\n", commit)
			fmt.Printf("  built:         %s\n", buildDate)
			fmt.Printf("  graph version: %s\n", engine.GraphVersion)
			fmt.Printf("  go:            %s\n", runtime.Version())
		},
	}
}
