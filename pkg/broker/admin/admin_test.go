package admin

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/eser/relayq/pkg/ajan/logfx"
	"github.com/eser/relayq/pkg/broker/activity"
	"github.com/eser/relayq/pkg/broker/anomaly"
	"github.com/eser/relayq/pkg/broker/brokererrors"
	"github.com/eser/relayq/pkg/broker/consumerstats"
	"github.com/eser/relayq/pkg/broker/engine"
	"github.com/eser/relayq/pkg/broker/eventbus"
	"github.com/eser/relayq/pkg/broker/storage"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newTestSurface(t *testing.T, cfg Config, stats consumerstats.Tracker) (*Surface, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := logfx.NewLogger()
	gw := storage.New(logger, db, "queue_events")
	registry := anomaly.NewRegistry()

	var counter int

	idGen := func() string {
		counter++

		return "id-" + string(rune('0'+counter))
	}

	actLogger := activity.New(logger, gw, registry, idGen)
	bus := eventbus.New(8)
	eng := engine.New(logger, gw, actLogger, bus, idGen, engine.DefaultConfig(), nil, stats)

	return New(logger, gw, eng, stats, idGen, cfg), mock
}

func TestCreateQueueRejectsEmptyName(t *testing.T) {
	t.Parallel()

	s, _ := newTestSurface(t, DefaultConfig(), nil)

	err := s.CreateQueue(context.Background(), CreateQueueRequest{}) //nolint:exhaustruct
	require.ErrorIs(t, err, brokererrors.ErrInvalidArgument)
}

func TestCreateQueueAppliesDefaults(t *testing.T) {
	t.Parallel()

	s, mock := newTestSurface(t, DefaultConfig(), nil)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO queues`).
		WithArgs("orders", sqlmock.AnyArg(), 30, 3, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := s.CreateQueue(context.Background(), CreateQueueRequest{Name: "orders"}) //nolint:exhaustruct
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyActorRequiresConfiguredSecret(t *testing.T) {
	t.Parallel()

	s, _ := newTestSurface(t, DefaultConfig(), nil)

	_, err := s.verifyActor("anything")
	require.ErrorIs(t, err, ErrActorTokenRequired)
}

func TestVerifyActorRequiresNonEmptyToken(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.ActorTokenSecret = []byte("secret")
	s, _ := newTestSurface(t, cfg, nil)

	_, err := s.verifyActor("")
	require.ErrorIs(t, err, ErrActorTokenRequired)
}

func TestVerifyActorRejectsWrongSigningMethod(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.ActorTokenSecret = []byte("secret")
	s, _ := newTestSurface(t, cfg, nil)

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "alice"}) //nolint:exhaustruct
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = s.verifyActor(signed)
	require.ErrorIs(t, err, ErrActorTokenInvalid)
}

func TestVerifyActorAcceptsValidHMACToken(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	cfg := DefaultConfig()
	cfg.ActorTokenSecret = secret
	s, _ := newTestSurface(t, cfg, nil)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"}) //nolint:exhaustruct
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	actor, err := s.verifyActor(signed)
	require.NoError(t, err)
	require.Equal(t, "alice", actor)
}

func TestVerifyActorRejectsMissingSubClaim(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	cfg := DefaultConfig()
	cfg.ActorTokenSecret = secret
	s, _ := newTestSurface(t, cfg, nil)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{}) //nolint:exhaustruct
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	_, err = s.verifyActor(signed)
	require.ErrorIs(t, err, ErrActorTokenInvalid)
}

func TestDeleteQueueRefusesNonEmptyWithoutForce(t *testing.T) {
	t.Parallel()

	s, mock := newTestSurface(t, DefaultConfig(), nil)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM queues WHERE name = \$1`).
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows(queueRowColumnsForTest()).
			AddRow("orders", "standard", 30, 3, nil, nil, nil, now, now))
	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM messages`).
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("queued", 2))
	mock.ExpectCommit()

	err := s.DeleteQueue(context.Background(), "orders", false, "")
	require.ErrorIs(t, err, brokererrors.ErrQueueNotEmpty)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteQueueWithForceRequiresActorToken(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.ActorTokenSecret = []byte("secret")
	s, _ := newTestSurface(t, cfg, nil)

	err := s.DeleteQueue(context.Background(), "orders", true, "")
	require.ErrorIs(t, err, ErrActorTokenRequired)
}

func TestDeleteQueueOfEmptyQueueSucceedsWithoutForce(t *testing.T) {
	t.Parallel()

	s, mock := newTestSurface(t, DefaultConfig(), nil)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM queues WHERE name = \$1`).
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows(queueRowColumnsForTest()).
			AddRow("orders", "standard", 30, 3, nil, nil, nil, now, now))
	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM messages`).
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM queues WHERE name = \$1`).WithArgs("orders").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.DeleteQueue(context.Background(), "orders", false, "")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetConfigReflectsConstructorConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.ActorTokenSecret = []byte("secret")
	s, _ := newTestSurface(t, cfg, nil)

	got := s.GetConfig()
	require.Equal(t, EffectiveConfig{
		DefaultAckTimeoutSeconds: 30,
		DefaultMaxAttempts:       3,
		ActorTokenRequired:       true,
	}, got)
}

func TestGetMetricsIncludesConsumerStatsWhenTrackerConfigured(t *testing.T) {
	t.Parallel()

	stats := consumerstats.NewInProcess()
	s, mock := newTestSurface(t, DefaultConfig(), stats)
	now := time.Now().UTC()

	_, err := stats.RecordDequeue(context.Background(), "c1", time.Minute)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM queues ORDER BY name ASC`).
		WillReturnRows(sqlmock.NewRows(queueRowColumnsForTest()).
			AddRow("orders", "standard", 30, 3, nil, nil, nil, now, now))
	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM messages`).
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("processing", 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT DISTINCT consumer_id FROM messages`).
		WithArgs("orders", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"consumer_id"}).AddRow("c1"))
	mock.ExpectCommit()

	metrics, err := s.GetMetrics(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	require.Len(t, metrics.Queues, 1)
	require.Len(t, metrics.Queues[0].Consumers, 1)
	require.Equal(t, "c1", metrics.Queues[0].Consumers[0].ConsumerID)
}

func queueRowColumnsForTest() []string {
	return []string{
		"name", "type", "ack_timeout_seconds", "max_attempts", "partition_interval",
		"retention_interval_seconds", "description", "created_at", "updated_at",
	}
}
