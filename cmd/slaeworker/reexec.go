package main

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mdds/slaeworker/internal/config"
	"github.com/mdds/slaeworker/internal/jobworker/reexec"
)

// reexecSub is the hidden subcommand name a spawned worker re-invokes
// itself with; see internal/jobworker/worker.Spawn.
const reexecSub = "reexec"

func buildReexecCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:    reexecSub,
		Short:  "Internal: run one solve request received on fd 3, write the result to fd 4",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code := reexec.Exec(context.Background(), resolveMethods())
			os.Exit(code)
			return nil
		},
	}
	return cmd
}

// resolveMethods lets the reexec'd child recognize the same solver method
// set its parent was configured with, passed down via an environment
// variable set at Spawn time rather than re-reading a config file the
// child may not have filesystem access to.
func resolveMethods() []string {
	if raw := os.Getenv("SLAEWORKER_METHODS"); raw != "" {
		return strings.Split(raw, ",")
	}
	return config.DefaultMethods
}
