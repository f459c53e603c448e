package subcommands

import (
	"github.com/spf13/cobra"

	"github.com/eser/relayq/pkg/broker/model"
)

// CmdQueuePurge clears all messages (optionally restricted to one
// status) but keeps the queue definition (spec.md §4.7 purgeQueue).
func CmdQueuePurge() *cobra.Command {
	var (
		status     string
		actorToken string
	)

	cmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "queue-purge NAME",
		Short: "Clears a queue's messages, keeping its definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appCtx, err := newAppContext(cmd.Context())
			if err != nil {
				return err
			}

			var statusFilter *model.MessageStatus

			if status != "" {
				s := model.MessageStatus(status)
				statusFilter = &s
			}

			affected, err := appCtx.Admin.PurgeQueue(cmd.Context(), args[0], statusFilter, actorToken)
			if err != nil {
				return err //nolint:wrapcheck
			}

			return printJSON(map[string]any{"name": args[0], "affected": affected})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "restrict to one status (queued|processing|acknowledged|dead|archived)")
	cmd.Flags().StringVar(&actorToken, "actor-token", "", "signed actor token, always required; purge is refused when no actor secret is configured")

	return cmd
}
