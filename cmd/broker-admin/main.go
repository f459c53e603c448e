// Command broker-admin is the operator CLI over the administration
// surface (C7): queue CRUD, rename, purge/delete, and metrics, grounded
// on the teacher's cmd/manage/main.go cobra root command.
package main

import (
	"github.com/spf13/cobra"

	"github.com/eser/relayq/cmd/broker-admin/subcommands"
)

func main() {
	rootCmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "broker-admin",
		Short: "relayq CLI for broker administration",
		Long:  `relayq CLI provides queue lifecycle management and metrics reporting for the broker core.`,
	}

	rootCmd.AddCommand(subcommands.CmdReady())
	rootCmd.AddCommand(subcommands.CmdQueueCreate())
	rootCmd.AddCommand(subcommands.CmdQueueList())
	rootCmd.AddCommand(subcommands.CmdQueueGet())
	rootCmd.AddCommand(subcommands.CmdQueueUpdate())
	rootCmd.AddCommand(subcommands.CmdQueueRename())
	rootCmd.AddCommand(subcommands.CmdQueueDelete())
	rootCmd.AddCommand(subcommands.CmdQueuePurge())
	rootCmd.AddCommand(subcommands.CmdMessageMove())
	rootCmd.AddCommand(subcommands.CmdMessageDelete())
	rootCmd.AddCommand(subcommands.CmdMessageClear())
	rootCmd.AddCommand(subcommands.CmdMessageExport())
	rootCmd.AddCommand(subcommands.CmdMessageImport())
	rootCmd.AddCommand(subcommands.CmdMetrics())
	rootCmd.AddCommand(subcommands.CmdConfig())
	rootCmd.AddCommand(subcommands.CmdID())

	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
