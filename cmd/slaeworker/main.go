// Command slaeworker is the executable that hosts the job-lifecycle
// engine: "serve" runs the supervisor (registry + transport adapters),
// "reexec" is the hidden child entrypoint a spawned worker re-invokes
// itself as.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "slaeworker",
		Short: "slaeworker runs the distributed SLAE job dispatcher's job-lifecycle engine",
		Long: `slaeworker accepts systems of linear algebraic equations (a dense
matrix, a right-hand-side vector, and a solver-method identifier) and
solves them asynchronously in isolated worker processes, with
cancellation, timeouts, and result eviction.`,
	}

	root.AddCommand(buildServeCommand())
	root.AddCommand(buildReexecCommand())

	return root
}
