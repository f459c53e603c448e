package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/eser/relayq/pkg/broker/brokererrors"
	"github.com/eser/relayq/pkg/broker/storage"
)

func ptrInt64(v int64) *int64        { return &v }
func ptrInt(v int) *int              { return &v }
func ptrString(v string) *string     { return &v }
func ptrTime(v time.Time) *time.Time { return &v }

// wrapUnknownQueue maps a storage.ErrRowNotFound from a queue lookup into
// the engine's ErrUnknownQueue sentinel, passing through any other error
// (e.g. a transient storage failure) unchanged.
func wrapUnknownQueue(err error, queue string) error {
	if errors.Is(err, storage.ErrRowNotFound) {
		return fmt.Errorf("%w: %q", brokererrors.ErrUnknownQueue, queue)
	}

	return err
}
