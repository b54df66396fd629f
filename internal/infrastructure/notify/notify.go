// Package notify delivers lifecycle notifications to group members.
// The core treats delivery as fire-and-forget: failures are logged, never
// retried, and never affect group state.
package notify

import "context"

// Kind classifies a notification for the receiving channel.
type Kind string

const (
	KindVenueAssigned Kind = "venue_assigned"
	KindPickManually  Kind = "pick_manually"
	KindGroupLive     Kind = "group_live"
)

// Dispatcher sends one message to a set of users identified by their opaque
// ids. Contact resolution (phone numbers, push tokens) is the dispatcher's
// problem, not the core's; the core never stores contact data.
type Dispatcher interface {
	Send(ctx context.Context, userUuids []string, message string, kind Kind) error
}
