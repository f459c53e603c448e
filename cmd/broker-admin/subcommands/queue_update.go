package subcommands

import (
	"github.com/spf13/cobra"

	"github.com/eser/relayq/pkg/broker/admin"
)

// CmdQueueUpdate patches the mutable fields of an existing queue
// (ack_timeout, max_attempts, description — spec.md §3).
func CmdQueueUpdate() *cobra.Command {
	var (
		ackTimeout  int
		maxAttempts int
		description string
	)

	cmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "queue-update NAME",
		Short: "Updates a queue's ack timeout, max attempts, or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appCtx, err := newAppContext(cmd.Context())
			if err != nil {
				return err
			}

			req := admin.UpdateQueueRequest{Name: args[0]} //nolint:exhaustruct

			if cmd.Flags().Changed("ack-timeout-seconds") {
				req.AckTimeoutSeconds = &ackTimeout
			}

			if cmd.Flags().Changed("max-attempts") {
				req.MaxAttempts = &maxAttempts
			}

			if cmd.Flags().Changed("description") {
				req.Description = &description
			}

			if err := appCtx.Admin.UpdateQueue(cmd.Context(), req); err != nil {
				return err //nolint:wrapcheck
			}

			return printJSON(map[string]string{"name": args[0], "status": "updated"})
		},
	}

	cmd.Flags().IntVar(&ackTimeout, "ack-timeout-seconds", 0, "new visibility timeout in seconds")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "new max delivery attempts")
	cmd.Flags().StringVar(&description, "description", "", "new description")

	return cmd
}
