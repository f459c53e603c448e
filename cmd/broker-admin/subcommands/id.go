package subcommands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eser/relayq/pkg/ajan/lib"
)

// CmdID generates one or more lock-token-shaped unique ids, grounded on
// the teacher's cmd/manage/subcommands/id.go.
func CmdID() *cobra.Command {
	var flagCount int

	idCmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "id",
		Short: "Generates an id",
		Long:  "Generates an id (the same generator used for message ids, lock tokens, and batch ids)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execID(cmd.Context(), flagCount)
		},
	}

	idCmd.Flags().IntVarP(&flagCount, "count", "n", 1, "count of ids to generate")

	return idCmd
}

func execID(_ context.Context, count int) error {
	for range count {
		fmt.Println(lib.IDsGenerateUnique()) //nolint:forbidigo
	}

	return nil
}
