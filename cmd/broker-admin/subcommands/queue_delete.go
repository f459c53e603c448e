package subcommands

import (
	"github.com/spf13/cobra"
)

// CmdQueueDelete removes a queue definition, refusing when non-empty
// unless --force is given (spec.md §4.7 deleteQueue).
func CmdQueueDelete() *cobra.Command {
	var (
		force      bool
		actorToken string
	)

	cmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "queue-delete NAME",
		Short: "Deletes a queue definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appCtx, err := newAppContext(cmd.Context())
			if err != nil {
				return err
			}

			if err := appCtx.Admin.DeleteQueue(cmd.Context(), args[0], force, actorToken); err != nil {
				return err //nolint:wrapcheck
			}

			return printJSON(map[string]string{"name": args[0], "status": "deleted"})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "clear all messages first, then delete")
	cmd.Flags().StringVar(&actorToken, "actor-token", "", "signed actor token, required with --force; a forced delete is refused when no actor secret is configured")

	return cmd
}
