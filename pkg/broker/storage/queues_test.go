package storage_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/eser/relayq/pkg/broker/model"
	"github.com/eser/relayq/pkg/broker/storage"
	"github.com/stretchr/testify/require"
)

func queueRowColumns() []string {
	return []string{
		"name", "type", "ack_timeout_seconds", "max_attempts", "partition_interval",
		"retention_interval_seconds", "description", "created_at", "updated_at",
	}
}

func TestGetQueueNotFound(t *testing.T) {
	t.Parallel()

	gw, db, mock := newTestGateway(t)

	mock.ExpectQuery(`SELECT .* FROM queues WHERE name = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(queueRowColumns()))

	_, err := gw.GetQueue(context.Background(), db, "missing")
	require.ErrorIs(t, err, storage.ErrRowNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRenameQueueUpdatesEveryDenormalizedReference(t *testing.T) {
	t.Parallel()

	gw, _, mock := newTestGateway(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE queues SET name`).WithArgs("new", "old", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE messages SET queue`).WithArgs("new", "old").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`UPDATE activity_log SET queue`).WithArgs("new", "old").WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(`UPDATE activity_log SET source_queue`).WithArgs("new", "old").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE activity_log SET dest_queue`).WithArgs("new", "old").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := gw.WithTxn(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		return gw.RenameQueue(ctx, tx, "old", "new")
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRenameQueueRollsBackOnMidwayFailure(t *testing.T) {
	t.Parallel()

	gw, _, mock := newTestGateway(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE queues SET name`).WithArgs("new", "old", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE messages SET queue`).WithArgs("new", "old").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := gw.WithTxn(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		return gw.RenameQueue(ctx, tx, "old", "new")
	})
	require.Error(t, err)
	require.ErrorIs(t, err, storage.ErrTxFailed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClearQueueDeletesMatchingStatusOnly(t *testing.T) {
	t.Parallel()

	gw, _, mock := newTestGateway(t)

	status := model.MessageStatusDead

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM messages WHERE queue = \$1 AND status = \$2`).
		WithArgs("q1", status).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	var n int

	err := gw.WithTxn(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		var txErr error
		n, txErr = gw.ClearQueue(ctx, tx, "q1", &status)

		return txErr
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	require.Equal(t, 4, n)
}

func TestClearQueueDeletesAllStatusesWhenNil(t *testing.T) {
	t.Parallel()

	gw, _, mock := newTestGateway(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM messages WHERE queue = \$1$`).
		WithArgs("q1").
		WillReturnResult(sqlmock.NewResult(0, 9))
	mock.ExpectCommit()

	var n int

	err := gw.WithTxn(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		var txErr error
		n, txErr = gw.ClearQueue(ctx, tx, "q1", nil)

		return txErr
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	require.Equal(t, 9, n)
}

func TestListQueuesOrdersByName(t *testing.T) {
	t.Parallel()

	gw, db, mock := newTestGateway(t)

	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM queues ORDER BY name ASC`).
		WillReturnRows(sqlmock.NewRows(queueRowColumns()).
			AddRow("a", "fifo", 30, 5, nil, nil, nil, now, now).
			AddRow("b", "fifo", 30, 5, nil, nil, nil, now, now))

	queues, err := gw.ListQueues(context.Background(), db)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	require.Len(t, queues, 2)
	require.Equal(t, "a", queues[0].Name)
	require.Equal(t, "b", queues[1].Name)
}
