package subcommands

import (
	"github.com/spf13/cobra"
)

// CmdQueueRename atomically renames a queue (spec.md §4.7 renameQueue).
func CmdQueueRename() *cobra.Command {
	return &cobra.Command{ //nolint:exhaustruct
		Use:   "queue-rename OLD_NAME NEW_NAME",
		Short: "Renames a queue, atomically updating every reference",
		Args:  cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			appCtx, err := newAppContext(cmd.Context())
			if err != nil {
				return err
			}

			if err := appCtx.Admin.RenameQueue(cmd.Context(), args[0], args[1]); err != nil {
				return err //nolint:wrapcheck
			}

			return printJSON(map[string]string{"from": args[0], "to": args[1], "status": "renamed"})
		},
	}
}
