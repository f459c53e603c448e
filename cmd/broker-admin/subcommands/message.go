package subcommands

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eser/relayq/pkg/broker/engine"
	"github.com/eser/relayq/pkg/broker/model"
)

func statusFilter(raw string) *model.MessageStatus {
	if raw == "" {
		return nil
	}

	s := model.MessageStatus(raw)

	return &s
}

// CmdMessageMove transitions selected messages within a queue to a target
// status (spec.md §4.3 move: queued↔archived, dead→queued for replay).
func CmdMessageMove() *cobra.Command {
	var (
		ids          []string
		status       string
		targetStatus string
		triggeredBy  string
		reason       string
	)

	cmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "message-move QUEUE",
		Short: "Transitions selected messages to a target status (e.g. replay dead messages to queued)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appCtx, err := newAppContext(cmd.Context())
			if err != nil {
				return err
			}

			affected, err := appCtx.Engine.Move(cmd.Context(), engine.MoveRequest{
				Queue:        args[0],
				IDs:          normalizeIDs(ids),
				Status:       statusFilter(status),
				TargetStatus: model.MessageStatus(targetStatus),
				TriggeredBy:  triggeredBy,
				Reason:       reason,
			})
			if err != nil {
				return err //nolint:wrapcheck
			}

			return printJSON(map[string]any{"affected": affected})
		},
	}

	cmd.Flags().StringSliceVar(&ids, "id", nil, "message ids to move (repeatable); omit to move by --status filter")
	cmd.Flags().StringVar(&status, "status", "", "restrict the move to one source status")
	cmd.Flags().StringVar(&targetStatus, "to-status", "", "status to transition the selected messages into (required)")
	cmd.Flags().StringVar(&triggeredBy, "triggered-by", "manual", "actor name recorded in activity_log.triggered_by")
	cmd.Flags().StringVar(&reason, "reason", "", "human-readable reason recorded on the activity entry")

	cmd.MarkFlagRequired("to-status") //nolint:errcheck

	return cmd
}

// CmdMessageDelete permanently removes selected messages (spec.md §4.3
// delete).
func CmdMessageDelete() *cobra.Command {
	var (
		ids         []string
		status      string
		triggeredBy string
		reason      string
	)

	cmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "message-delete QUEUE",
		Short: "Permanently deletes selected messages from a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appCtx, err := newAppContext(cmd.Context())
			if err != nil {
				return err
			}

			affected, err := appCtx.Engine.Delete(cmd.Context(), engine.DeleteRequest{
				Queue:       args[0],
				IDs:         normalizeIDs(ids),
				Status:      statusFilter(status),
				TriggeredBy: triggeredBy,
				Reason:      reason,
			})
			if err != nil {
				return err //nolint:wrapcheck
			}

			return printJSON(map[string]any{"affected": affected})
		},
	}

	cmd.Flags().StringSliceVar(&ids, "id", nil, "message ids to delete (repeatable); omit to delete by --status filter")
	cmd.Flags().StringVar(&status, "status", "", "restrict the delete to one status")
	cmd.Flags().StringVar(&triggeredBy, "triggered-by", "manual", "actor name recorded in activity_log.triggered_by")
	cmd.Flags().StringVar(&reason, "reason", "", "human-readable reason recorded on the activity entry")

	return cmd
}

// CmdMessageClear purges an entire queue or one status within it in a
// single statement (spec.md §4.3 clear).
func CmdMessageClear() *cobra.Command {
	var (
		status      string
		triggeredBy string
		reason      string
	)

	cmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "message-clear QUEUE",
		Short: "Clears a queue's messages in one aggregate operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appCtx, err := newAppContext(cmd.Context())
			if err != nil {
				return err
			}

			affected, err := appCtx.Engine.Clear(cmd.Context(), engine.ClearRequest{
				Queue:       args[0],
				Status:      statusFilter(status),
				TriggeredBy: triggeredBy,
				Reason:      reason,
			})
			if err != nil {
				return err //nolint:wrapcheck
			}

			return printJSON(map[string]any{"affected": affected})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "restrict the clear to one status")
	cmd.Flags().StringVar(&triggeredBy, "triggered-by", "manual", "actor name recorded in activity_log.triggered_by")
	cmd.Flags().StringVar(&reason, "reason", "", "human-readable reason recorded on the activity entry")

	return cmd
}

// CmdMessageExport dumps a queue's messages as JSON to stdout (spec.md
// §4.3 export).
func CmdMessageExport() *cobra.Command {
	var status string

	cmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "message-export QUEUE",
		Short: "Dumps a queue's messages as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appCtx, err := newAppContext(cmd.Context())
			if err != nil {
				return err
			}

			rows, err := appCtx.Engine.ExportMessages(cmd.Context(), args[0], statusFilter(status))
			if err != nil {
				return err //nolint:wrapcheck
			}

			return printJSON(rows)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "restrict the export to one status")

	return cmd
}

// CmdMessageImport restores a JSON dump produced by message-export,
// reading it from a file path or stdin ("-"); imported rows always
// arrive as status=queued (spec.md §4.3 import).
func CmdMessageImport() *cobra.Command {
	var file string

	cmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "message-import QUEUE",
		Short: "Restores a message dump into a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appCtx, err := newAppContext(cmd.Context())
			if err != nil {
				return err
			}

			var reader *os.File

			if file == "" || file == "-" {
				reader = os.Stdin
			} else {
				reader, err = os.Open(file)
				if err != nil {
					return err
				}
				defer reader.Close()
			}

			var rows []engine.ExportedMessage

			if err := json.NewDecoder(reader).Decode(&rows); err != nil {
				return err
			}

			ids, err := appCtx.Engine.ImportMessages(cmd.Context(), args[0], rows)
			if err != nil {
				return err //nolint:wrapcheck
			}

			return printJSON(map[string]any{"imported": len(ids), "ids": ids})
		},
	}

	cmd.Flags().StringVar(&file, "file", "-", "path to a message-export JSON dump, or - for stdin")

	return cmd
}

// normalizeIDs trims whitespace-only entries a shell glob might leave
// behind when --id is passed an empty string.
func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))

	for _, id := range ids {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out
}
