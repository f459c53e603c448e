package subcommands

import (
	"github.com/spf13/cobra"
)

// CmdQueueList lists every queue with its current depth counts (spec.md
// §4.7 listQueues).
func CmdQueueList() *cobra.Command {
	return &cobra.Command{ //nolint:exhaustruct
		Use:   "queue-list",
		Short: "Lists every queue and its current message counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appCtx, err := newAppContext(cmd.Context())
			if err != nil {
				return err
			}

			summaries, err := appCtx.Admin.ListQueues(cmd.Context())
			if err != nil {
				return err //nolint:wrapcheck
			}

			return printJSON(summaries)
		},
	}
}
