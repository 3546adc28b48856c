// joinrun is the CLI companion to joind: it runs the bundled demo programs
// and statically analyzes schema documents without standing up a server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "joinrun",
		Short:         "Join-calculus runtime demos and schema tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newCounterCmd(),
		newMapReduceCmd(),
		newMergeSortCmd(),
		newAnalyzeCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
