// Package mq carries the typed lifecycle events between the capacity logic
// and the assignment trigger. Two implementations exist, selected by the
// messageMode config: an in-process channel bus for single-node deployments
// and a kafka bus for multi-node ones. Delivery is at-least-once either way;
// the consumer re-verifies every precondition, so duplicates are harmless.
package mq

import "context"

// GroupFilled announces that a group's member counter reached capacity and
// the group moved to confirmed. FilledAtUnix survives serialization across
// the wire.
type GroupFilled struct {
	GroupUuid    string `json:"groupUuid"`
	FilledAtUnix int64  `json:"filledAtUnix"`
}

// FilledHandler consumes one GroupFilled event. It must be idempotent: the
// same event may arrive more than once, concurrently.
type FilledHandler func(ctx context.Context, ev GroupFilled)

// EventBus publishes and consumes GroupFilled events.
type EventBus interface {
	// PublishGroupFilled enqueues one event. Publishing happens strictly
	// after the state transition it announces.
	PublishGroupFilled(ctx context.Context, ev GroupFilled) error
	// Start begins consuming with the handler. Blocks; run in a goroutine.
	Start(handler FilledHandler)
	// Close releases the bus resources and stops the consume loop.
	Close()
}
