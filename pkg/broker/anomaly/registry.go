// Package anomaly implements the detector registry (C2): a pluggable,
// ordered set of pure functions invoked by the activity logger on each
// lifecycle event.
package anomaly

import (
	"log/slog"
	"sync"

	"github.com/eser/relayq/pkg/broker/model"
)

// EventKind is one of the event classes a Detector may subscribe to.
type EventKind string

const (
	EventKindEnqueue        EventKind = "enqueue"
	EventKindDequeue        EventKind = "dequeue"
	EventKindAck            EventKind = "ack"
	EventKindNack           EventKind = "nack"
	EventKindTimeoutRequeue EventKind = "timeout_requeue"
	EventKindBulkOperation  EventKind = "bulk_operation"
)

// Context is the read-only snapshot a Detector inspects. It is a closed
// struct with well-known fields plus a small Extra map for
// forward-compatibility, per spec.md §9 Design Note on dynamic-typed
// detector context.
type Context struct {
	Event      EventKind
	Queue      string
	Message    *model.Message
	ConsumerID string

	TimeInQueueMs      int64
	ProcessingTimeMs   int64
	OverdueMs          int64
	ExpectedTimeoutMs  int64
	AttemptsRemaining  int
	AttemptCount       int
	MaxAttempts        int

	ExpectedLockToken string
	ReceivedLockToken string

	BulkOperationType string
	AffectedCount     int

	RecentDequeueCount int

	Thresholds Thresholds

	Extra map[string]string
}

// Detector is a pure rule: given a Context, it either reports an Anomaly
// or returns nil. Detectors MUST NOT perform I/O and must not call back
// into the registry or the engine (spec.md §4.5, §9).
type Detector interface {
	Name() string
	Description() string
	Events() []EventKind
	DefaultEnabled() bool
	Detect(ctx Context) *model.Anomaly
}

// Registry holds an ordered, copy-on-write list of detectors. Invocation
// order is registration order (spec.md §4.5); tests construct a fresh
// Registry per spec.md §9's "avoid package-scope mutable state".
type Registry struct {
	mu        sync.RWMutex
	detectors []registeredDetector
}

type registeredDetector struct {
	detector Detector
	enabled  bool
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{} //nolint:exhaustruct
}

// NewDefaultRegistry builds a registry with every built-in detector
// registered at its documented default-enabled state.
func NewDefaultRegistry(thresholds Thresholds) *Registry {
	r := NewRegistry()

	for _, d := range BuiltinDetectors(thresholds) {
		r.Register(d)
	}

	return r
}

// Register appends a detector, enabled according to its DefaultEnabled.
func (r *Registry) Register(d Detector) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]registeredDetector, len(r.detectors), len(r.detectors)+1)
	copy(next, r.detectors)
	next = append(next, registeredDetector{detector: d, enabled: d.DefaultEnabled()})
	r.detectors = next
}

// SetEnabled toggles a registered detector by name at runtime.
func (r *Registry) SetEnabled(name string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]registeredDetector, len(r.detectors))
	copy(next, r.detectors)

	for i, rd := range next {
		if rd.detector.Name() == name {
			next[i].enabled = enabled
		}
	}

	r.detectors = next
}

// Detect runs every enabled detector subscribed to ctx.Event, in
// registration order, and returns all reported anomalies. The caller
// (activity.Logger) stores the first on the activity row and may persist
// the rest via the anomalies table.
func (r *Registry) Detect(ctx Context) []*model.Anomaly {
	r.mu.RLock()
	detectors := r.detectors
	r.mu.RUnlock()

	var results []*model.Anomaly

	for _, rd := range detectors {
		if !rd.enabled {
			continue
		}

		if !subscribesTo(rd.detector, ctx.Event) {
			continue
		}

		if a := safeDetect(rd.detector, ctx); a != nil {
			results = append(results, a)
		}
	}

	return results
}

func subscribesTo(d Detector, event EventKind) bool {
	for _, e := range d.Events() {
		if e == event {
			return true
		}
	}

	return false
}

// safeDetect recovers from a panicking detector: per spec.md §7, "a
// detector throwing is logged and skipped; never fails the transaction".
// safeDetect logs the panic through slog's default logger and skips the
// detector, so the panic never escapes to the engine transaction.
func safeDetect(d Detector, ctx Context) (result *model.Anomaly) {
	defer func() {
		if r := recover(); r != nil {
			slog.Default().Warn("anomaly detector panicked; skipped", "detector", d.Name(), "panic", r)

			result = nil
		}
	}()

	return d.Detect(ctx)
}
