package subcommands

import (
	"github.com/spf13/cobra"
)

// CmdQueueGet fetches a single queue's definition and counts (spec.md
// §4.7 getQueue).
func CmdQueueGet() *cobra.Command {
	return &cobra.Command{ //nolint:exhaustruct
		Use:   "queue-get NAME",
		Short: "Fetches one queue's definition and counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appCtx, err := newAppContext(cmd.Context())
			if err != nil {
				return err
			}

			summary, err := appCtx.Admin.GetQueue(cmd.Context(), args[0])
			if err != nil {
				return err //nolint:wrapcheck
			}

			return printJSON(summary)
		},
	}
}
