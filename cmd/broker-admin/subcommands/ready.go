package subcommands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/eser/relayq/pkg/broker/appcontext"
)

// CmdReady checks that the app context initializes cleanly (config loads,
// every configured connection resolves), grounded on the teacher's
// cmd/manage/subcommands/ready.go.
func CmdReady() *cobra.Command {
	readyCmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "ready",
		Short: "Checks the readiness of the broker",
		Long:  "Checks the readiness of the broker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execReady(cmd.Context())
		},
	}

	return readyCmd
}

func execReady(ctx context.Context) error {
	appCtx := appcontext.New()

	if err := appCtx.Init(ctx); err != nil {
		return err //nolint:wrapcheck
	}

	appCtx.Logger.InfoContext(ctx, "readiness check passed")

	return nil
}
