package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/eser/relayq/pkg/ajan/logfx"
)

// NotifyPayload is the JSON body published on the configured NOTIFY
// channel (default "queue_events"), matching spec.md §6.
type NotifyPayload struct {
	Queue     string    `json:"queue"`
	Action    string    `json:"action"`
	MessageID string    `json:"message_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notify publishes payload on the gateway's configured channel via
// pg_notify, issued from inside the caller's transaction so it only
// becomes visible to LISTENers once the transaction commits.
func (g *Gateway) Notify(ctx context.Context, tx *sql.Tx, payload NotifyPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notify payload: %w", err)
	}

	_, err = tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, g.notifyChannel, string(body))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTxFailed, err)
	}

	return nil
}

// Listener wraps pq.Listener, the same library used by spec.md §4.1's
// "dedicated long-lived connection for LISTEN" over a single channel.
type Listener struct {
	pqListener *pq.Listener
	logger     *logfx.Logger
}

// Listen opens a dedicated connection (separate from the pooled *sql.DB,
// since a session-scoped LISTEN cannot live on a pooled connection) and
// starts dispatching NOTIFY payloads to handler until ctx is cancelled or
// Close is called. handler is invoked once per notification; it must not
// block for long, matching the event bus's fan-out contract (§4.6).
func (g *Gateway) Listen(ctx context.Context, dsn string, handler func(NotifyPayload)) (*Listener, error) {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			g.logger.ErrorContext(ctx, "pq listener event", "event", ev, "error", err)
		}
	}

	pqListener := pq.NewListener(dsn, 10*time.Second, time.Minute, reportProblem)

	if err := pqListener.Listen(g.notifyChannel); err != nil {
		_ = pqListener.Close()

		return nil, fmt.Errorf("failed to listen on channel %q: %w", g.notifyChannel, err)
	}

	l := &Listener{pqListener: pqListener, logger: g.logger}

	go l.dispatch(ctx, handler)

	g.listener = l

	return l, nil
}

func (l *Listener) dispatch(ctx context.Context, handler func(NotifyPayload)) {
	for {
		select {
		case <-ctx.Done():
			return
		case notification, ok := <-l.pqListener.Notify:
			if !ok {
				return
			}

			if notification == nil {
				// Connection re-established; subscriber state is unaffected,
				// missed events during the gap are not replayed (spec.md §4.6).
				continue
			}

			var payload NotifyPayload

			if err := json.Unmarshal([]byte(notification.Extra), &payload); err != nil {
				l.logger.ErrorContext(ctx, "failed to decode notify payload", "error", err)

				continue
			}

			handler(payload)
		case <-time.After(90 * time.Second):
			_ = l.pqListener.Ping()
		}
	}
}

// Close stops dispatching and closes the dedicated LISTEN connection.
func (l *Listener) Close() error {
	return l.pqListener.Close() //nolint:wrapcheck
}
