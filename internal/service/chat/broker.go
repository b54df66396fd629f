// Package chat runs the group-scoped message channel. Every group gets an
// ephemeral chat room that lives and dies with the group; messages never
// cross group boundaries.
package chat

import "context"

// MessageBack carries one serialized frame to a client together with the
// message id, so the writer can flip the stored status once delivery
// succeeds.
type MessageBack struct {
	Message []byte
	Uuid    int64
}

// MessageBroker routes frames between connected members and the per-group
// fan-out. Lifecycle callers (matching, assignment, sweep) only use System
// and CloseGroup; the websocket gateway uses the rest.
type MessageBroker interface {
	// Publish hands one inbound frame to the routing loop.
	Publish(ctx context.Context, msg []byte) error
	// RegisterClient adds a member connection to its group's room.
	RegisterClient(client *UserConn)
	// UnregisterClient removes a member connection.
	UnregisterClient(client *UserConn)
	// GetClient returns the live connection of a user, or nil.
	GetClient(userUuid string) *UserConn
	// System persists and broadcasts a lifecycle announcement to a group.
	System(groupUuid, content string)
	// CloseGroup disconnects every member of a group and forgets the room.
	CloseGroup(groupUuid string)
	// MarkSent records successful delivery of a message.
	MarkSent(uuid int64)
	// Start runs the routing loop until Close.
	Start()
	// Close shuts the broker down.
	Close()
}
