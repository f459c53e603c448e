package subcommands

import (
	"github.com/spf13/cobra"
)

// CmdMetrics reports aggregate per-queue counts and per-consumer stats
// (spec.md §4.7 getMetrics).
func CmdMetrics() *cobra.Command {
	return &cobra.Command{ //nolint:exhaustruct
		Use:   "metrics",
		Short: "Reports aggregate queue counts and per-consumer stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appCtx, err := newAppContext(cmd.Context())
			if err != nil {
				return err
			}

			metrics, err := appCtx.Admin.GetMetrics(cmd.Context())
			if err != nil {
				return err //nolint:wrapcheck
			}

			return printJSON(metrics)
		},
	}
}

// CmdConfig reports the surface's effective configuration defaults
// (spec.md §4.7 getConfig).
func CmdConfig() *cobra.Command {
	return &cobra.Command{ //nolint:exhaustruct
		Use:   "config",
		Short: "Reports the administration surface's effective defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appCtx, err := newAppContext(cmd.Context())
			if err != nil {
				return err
			}

			return printJSON(appCtx.Admin.GetConfig())
		},
	}
}
