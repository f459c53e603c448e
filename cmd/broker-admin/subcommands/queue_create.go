package subcommands

import (
	"github.com/spf13/cobra"

	"github.com/eser/relayq/pkg/broker/admin"
	"github.com/eser/relayq/pkg/broker/model"
)

// CmdQueueCreate defines a new queue (spec.md §4.7 createQueue).
func CmdQueueCreate() *cobra.Command {
	var (
		queueType   string
		ackTimeout  int
		maxAttempts int
		description string
	)

	cmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "queue-create NAME",
		Short: "Creates a new queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appCtx, err := newAppContext(cmd.Context())
			if err != nil {
				return err
			}

			req := admin.CreateQueueRequest{ //nolint:exhaustruct
				Name:              args[0],
				Type:              model.QueueType(queueType),
				AckTimeoutSeconds: ackTimeout,
				MaxAttempts:       maxAttempts,
			}

			if description != "" {
				req.Description = &description
			}

			if err := appCtx.Admin.CreateQueue(cmd.Context(), req); err != nil {
				return err //nolint:wrapcheck
			}

			return printJSON(map[string]string{"name": args[0], "status": "created"})
		},
	}

	cmd.Flags().StringVar(&queueType, "type", string(model.QueueTypeStandard), "queue type (standard|unlogged|partitioned)")
	cmd.Flags().IntVar(&ackTimeout, "ack-timeout-seconds", 0, "visibility timeout in seconds (0 = surface default)")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "max delivery attempts before DLQ (0 = surface default)")
	cmd.Flags().StringVar(&description, "description", "", "human-readable description")

	return cmd
}
