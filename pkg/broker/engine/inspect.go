package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eser/relayq/pkg/broker/model"
	"github.com/eser/relayq/pkg/broker/storage"
)

// ListMessagesRequest pages through one queue's messages, optionally
// filtered to one status (spec.md §4.3 "list messages").
type ListMessagesRequest struct {
	Queue  string
	Status *model.MessageStatus
	Limit  int
	Offset int
}

// ListMessages returns a page of messages ordered by priority
// descending, then created_at ascending (the dequeue order).
func (e *Engine) ListMessages(ctx context.Context, req ListMessagesRequest) ([]model.Message, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}

	var result []model.Message

	err := e.gateway.WithTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		msgs, err := e.gateway.ListMessages(ctx, tx, storage.ListMessagesFilter{
			Queue:  req.Queue,
			Status: req.Status,
			Limit:  limit,
			Offset: req.Offset,
		})
		if err != nil {
			return err
		}

		result = msgs

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	return result, nil
}

// ExportedMessage is the on-the-wire shape ExportMessages/ImportMessages
// round-trip (spec.md §4.3 "export/import").
type ExportedMessage struct {
	ID                string         `json:"id,omitempty"`
	Type              *string        `json:"type,omitempty"`
	Priority          int            `json:"priority"`
	Payload           []byte         `json:"payload"`
	ContentType       *string        `json:"content_type,omitempty"`
	CustomMaxAttempts *int           `json:"custom_max_attempts,omitempty"`
	CustomAckTimeout  *time.Duration `json:"custom_ack_timeout,omitempty"`
}

// ExportMessages dumps every message currently in a queue (optionally
// filtered to one status) as JSON-serializable rows, for offline backup
// or migration between brokers.
func (e *Engine) ExportMessages(ctx context.Context, queue string, status *model.MessageStatus) ([]ExportedMessage, error) {
	var msgs []model.Message

	err := e.gateway.WithTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		m, err := e.gateway.ListMessages(ctx, tx, storage.ListMessagesFilter{
			Queue:  queue,
			Status: status,
			Limit:  1 << 30,
			Offset: 0,
		})
		if err != nil {
			return err
		}

		msgs = m

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	out := make([]ExportedMessage, len(msgs))

	for i, m := range msgs {
		out[i] = ExportedMessage{
			ID:                m.ID,
			Type:              m.Type,
			Priority:          m.Priority,
			Payload:           m.Payload,
			ContentType:       m.ContentType,
			CustomMaxAttempts: m.CustomMaxAttempts,
			CustomAckTimeout:  m.CustomAckTimeout,
		}
	}

	return out, nil
}

// ImportMessages inserts rows produced by ExportMessages (or hand-built
// ones) back into a queue. Imported messages always arrive as
// status=queued regardless of what status they were exported from —
// processing-state locks are never meaningful to replay. IDs are
// preserved when present; a blank ID gets a freshly minted one. Rows are
// inserted in one statement, so an id that already exists fails the
// whole import (ErrTxFailed wrapping the driver's error) and nothing is
// inserted.
func (e *Engine) ImportMessages(ctx context.Context, queue string, rows []ExportedMessage) ([]string, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	reqs := make([]EnqueueRequest, len(rows))
	ids := make([]string, len(rows))

	for i, r := range rows {
		reqs[i] = EnqueueRequest{
			Type:              r.Type,
			Priority:          r.Priority,
			Payload:           r.Payload,
			ContentType:       r.ContentType,
			CustomMaxAttempts: r.CustomMaxAttempts,
			CustomAckTimeout:  r.CustomAckTimeout,
		}
		ids[i] = r.ID
	}

	return e.enqueueBatchPreservingIDs(ctx, queue, reqs, ids)
}

// ExportedMessagesToJSON / ExportedMessagesFromJSON are thin convenience wrappers for the
// admin CLI's import/export subcommands, kept alongside the type they
// serialize.
func ExportedMessagesToJSON(rows []ExportedMessage) ([]byte, error) {
	b, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("export: failed to encode: %w", err)
	}

	return b, nil
}

func ExportedMessagesFromJSON(data []byte) ([]ExportedMessage, error) {
	var rows []ExportedMessage

	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("import: failed to decode: %w", err)
	}

	return rows, nil
}
