// Package brokererrors holds the sentinel error taxonomy returned by
// pkg/broker components, matching the wrap style used throughout
// pkg/api/business (ErrX sentinel + fmt.Errorf("%w: %w", ErrX, cause)).
package brokererrors

import "errors"

var (
	// ErrUnknownQueue is returned when an operation references a queue
	// name that has not been created.
	ErrUnknownQueue = errors.New("unknown queue")

	// ErrPayloadTooLarge is returned when enqueue is called with a
	// payload exceeding the configured cap.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrClosed is returned by enqueue (and new dequeue long-polls)
	// once the engine has begun shutting down. In-flight ack/nack/touch
	// calls are still allowed to complete.
	ErrClosed = errors.New("engine is closed")

	// ErrLockMismatch is returned by ack/nack/touch when the supplied
	// lock_token does not match the message's current lock_token.
	ErrLockMismatch = errors.New("lock token mismatch")

	// ErrStorageUnavailable is returned when a retryable storage error
	// exhausts its retry budget.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrIntegrityViolation is returned on constraint failures, e.g. a
	// duplicate id supplied to ImportMessages.
	ErrIntegrityViolation = errors.New("integrity violation")

	// ErrBusy is returned by the enqueue buffer when it is full and a
	// flush attempt has failed.
	ErrBusy = errors.New("broker busy")

	// ErrInvalidArgument covers validation failures: bad queue name,
	// invalid priority, malformed filter.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrQueueNotEmpty is returned by deleteQueue when the queue still
	// holds messages and force was not requested.
	ErrQueueNotEmpty = errors.New("queue not empty")
)
