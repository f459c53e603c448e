// Command broker-migrate runs goose migrations against a named
// connection, grounded on the teacher's cmd/migrate/main.go. Schema
// migrations and bootstrap scripts themselves are out of scope per
// spec.md §1; this binary only wires the goose runner to whichever
// *sql.DB the broker's connection registry resolves.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/pressly/goose/v3"

	"github.com/eser/relayq/pkg/ajan/connfx"
	"github.com/eser/relayq/pkg/broker/appcontext"
)

var (
	ErrDatasourceNameRequired   = errors.New("datasource name is required")
	ErrCommandRequired          = errors.New("command is required")
	ErrDatasourceNotInitialized = errors.New("datasource is not initialized")
	ErrDatasourceNotSQLDB       = errors.New("datasource is not an instance of *sql.DB")
	ErrFailedToRunGoose         = errors.New("failed to run goose")
)

func run(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return ErrDatasourceNameRequired
	}

	if len(args) < 2 { //nolint:mnd
		return ErrCommandRequired
	}

	datasourceName := args[0]
	command := args[1]
	rest := args[2:]

	appCtx := appcontext.New()

	if err := appCtx.Init(ctx); err != nil {
		return err //nolint:wrapcheck
	}

	datasource := appCtx.Conns.GetNamed(datasourceName)
	if datasource == nil {
		return ErrDatasourceNotInitialized
	}

	sqlDB, err := connfx.GetTypedConnection[*sql.DB](appCtx.Conns, datasourceName)
	if err != nil {
		return ErrDatasourceNotSQLDB
	}

	dialect := datasource.GetProtocol()

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToRunGoose, err)
	}

	migrationsPath := fmt.Sprintf("./etc/data/%s/migrations", datasourceName)

	if err := goose.RunContext(ctx, command, sqlDB, migrationsPath, rest...); err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToRunGoose, err)
	}

	return nil
}

func main() {
	ctx := context.Background()

	if err := run(ctx, os.Args[1:]); err != nil {
		panic(err)
	}
}
