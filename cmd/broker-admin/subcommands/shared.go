package subcommands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eser/relayq/pkg/broker/appcontext"
)

// newAppContext initializes one AppContext per CLI invocation, matching
// the teacher's per-subcommand appcontext.New()+Init() pattern (no
// singleton shared across commands).
func newAppContext(ctx context.Context) (*appcontext.AppContext, error) {
	appCtx := appcontext.New()

	if err := appCtx.Init(ctx); err != nil {
		return nil, err //nolint:wrapcheck
	}

	return appCtx, nil
}

// printJSON renders v as indented JSON to stdout, the CLI's sole output
// format so every subcommand is scriptable.
func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	fmt.Println(string(encoded)) //nolint:forbidigo

	return nil
}
