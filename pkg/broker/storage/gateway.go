// Package storage is the transactional storage gateway (C1): the only
// component that issues SQL against the queues/messages/activity_log/
// anomalies tables, and the owner of the dedicated LISTEN connection.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eser/relayq/pkg/ajan/connfx"
	"github.com/eser/relayq/pkg/ajan/logfx"
)

var (
	ErrTxFailed      = errors.New("transaction failed")
	ErrRowNotFound   = errors.New("row not found")
	ErrListenerNil   = errors.New("listener not started")
)

// Gateway wraps a *sql.DB obtained from a connfx.Registry, grounded on
// storage.Repository's NewRepositoryFromDefault/NewRepositoryFromNamed
// pair in the teacher repository.
type Gateway struct {
	db     *sql.DB
	logger *logfx.Logger

	listener      *Listener
	notifyChannel string
}

// New constructs a Gateway directly over a *sql.DB, e.g. one obtained by
// a test from go-sqlmock or from modernc.org/sqlite.
func New(logger *logfx.Logger, db *sql.DB, notifyChannel string) *Gateway {
	return &Gateway{
		db:            db,
		logger:        logger,
		notifyChannel: notifyChannel,
	}
}

// NewFromDefault resolves the default registered SQL connection, exactly
// like storage.NewRepositoryFromDefault in the teacher.
func NewFromDefault(
	logger *logfx.Logger,
	registry *connfx.Registry,
	notifyChannel string,
) (*Gateway, error) {
	return NewFromNamed(logger, registry, connfx.DefaultConnection, notifyChannel)
}

// NewFromNamed resolves a named registered SQL connection.
func NewFromNamed(
	logger *logfx.Logger,
	registry *connfx.Registry,
	name string,
	notifyChannel string,
) (*Gateway, error) {
	db, err := connfx.GetTypedConnection[*sql.DB](registry, name)
	if err != nil {
		return nil, err
	}

	return New(logger, db, notifyChannel), nil
}

// execer is satisfied by both *sql.DB and *sql.Tx, mirroring how the
// teacher's generated Queries type is constructed once per-call against
// whichever handle is active.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTxn runs fn inside a transaction, committing on success and rolling
// back on any returned error (including a panic, which is re-raised after
// rollback). Every engine operation wraps a single WithTxn call so the
// state mutation and its activity row commit or roll back together.
func (g *Gateway) WithTxn(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTxFailed, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()

			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			g.logger.ErrorContext(ctx, "failed to roll back transaction", "error", rbErr)
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrTxFailed, err)
	}

	return nil
}

// Close releases the dedicated LISTEN connection, if started. The pooled
// *sql.DB is owned by the connfx registry and is not closed here.
func (g *Gateway) Close(ctx context.Context) error {
	if g.listener != nil {
		return g.listener.Close()
	}

	return nil
}

// now is a seam so reaper/lock-expiry tests can inject a fixed clock by
// wrapping a Gateway; production code always uses time.Now.
func now() time.Time {
	return time.Now().UTC()
}
