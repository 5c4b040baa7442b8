// Command quarry compiles builder statements to SQL and checks configured
// database connections.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/coregx/quarry/cmd/quarry/commands"
)

// Version is set at build time.
var Version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "quarry",
		Short:         "quarry query builder tools",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(commands.NewCompileCommand())
	root.AddCommand(commands.NewPingCommand())
	root.AddCommand(commands.NewDriversCommand())
	return root
}
