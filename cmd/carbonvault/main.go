package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "carbonvault",
		Short:         "Carbon credit lifecycle ledger",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Int64("node-id", 1, "snowflake node id, unique per running instance")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	return root
}
