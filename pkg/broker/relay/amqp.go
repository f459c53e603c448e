// Package relay implements the optional external fan-out described in
// the domain stack: acknowledged/dead-lettered transitions get published
// onto an AMQP queue so a downstream system can react without polling
// the broker's own activity log. Grounded on connfx's AMQP adapter
// (pkg/ajan/connfx/adapter_amqp.go), the same abstraction the teacher
// uses for its own queue-backed connections.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eser/relayq/pkg/ajan/connfx"
)

// amqpAdapter is the subset of connfx.AMQPAdapter the relay needs,
// narrowed to ease testing with a fake.
type amqpAdapter interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}

// AMQPPublisher implements engine.RelayPublisher over a single AMQP
// queue. Every acknowledged/dead transition the engine reports is
// marshaled as one JSON envelope and published there.
type AMQPPublisher struct {
	adapter   amqpAdapter
	queueName string
}

// envelope is the wire shape published for every relayed transition.
type envelope struct {
	Action    string    `json:"action"`
	Queue     string    `json:"queue"`
	MessageID string    `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewAMQPPublisher resolves the named AMQP connection from registry and
// wraps it. queueName is the target queue every relay event is published
// to (spec.md domain stack: "relay adapter").
func NewAMQPPublisher(registry *connfx.Registry, connectionName string, queueName string) (*AMQPPublisher, error) {
	adapter, err := connfx.GetTypedConnection[*connfx.AMQPAdapter](registry, connectionName)
	if err != nil {
		return nil, fmt.Errorf("relay: failed to resolve amqp connection %q: %w", connectionName, err)
	}

	return &AMQPPublisher{adapter: adapter, queueName: queueName}, nil
}

// Publish satisfies engine.RelayPublisher.
func (p *AMQPPublisher) Publish(ctx context.Context, action string, queue string, messageID string) error {
	body, err := json.Marshal(envelope{
		Action:    action,
		Queue:     queue,
		MessageID: messageID,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("relay: failed to encode envelope: %w", err)
	}

	if err := p.adapter.Publish(ctx, p.queueName, body); err != nil {
		return fmt.Errorf("relay: failed to publish to %q: %w", p.queueName, err)
	}

	return nil
}
