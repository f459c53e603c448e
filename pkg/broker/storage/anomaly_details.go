package storage

import (
	"encoding/json"

	"github.com/sqlc-dev/pqtype"
)

// anomalyDetailsJSON converts a detector's free-form details map into the
// JSONB-compatible wrapper used throughout the teacher's schema for
// nullable JSON columns (pkg/lib/vars.ToObject/ToRawMessage is its
// inverse).
func anomalyDetailsJSON(details map[string]any) pqtype.NullRawMessage {
	if details == nil {
		return pqtype.NullRawMessage{RawMessage: nil, Valid: false}
	}

	raw, err := json.Marshal(details)
	if err != nil {
		return pqtype.NullRawMessage{RawMessage: nil, Valid: false}
	}

	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}
}
