package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const defaultTenant = "00000000-0000-0000-0000-000000000001"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "functree",
		Short:         "Functionality tree tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newTreeCmd())
	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newMoveCmd())
	cmd.AddCommand(newBenchCmd())
	cmd.AddCommand(newOutboxCmd())
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
