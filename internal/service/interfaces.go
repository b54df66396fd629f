// Package service defines the business layer interfaces handlers call.
package service

import (
	"context"

	"barmeet_server/internal/dto/request"
	"barmeet_server/internal/dto/respond"
)

// OutingService is the member-facing surface of the group lifecycle.
type OutingService interface {
	// Match places the user into a nearby group, creating one when needed.
	Match(ctx context.Context, userUuid string, req request.MatchRequest) (*respond.GroupInfoRespond, error)
	// Leave removes the user from their group.
	Leave(ctx context.Context, userUuid, groupUuid string) error
	// Heartbeat refreshes the user's activity timestamp.
	Heartbeat(ctx context.Context, userUuid, groupUuid string) error
	// MyGroup returns the user's current group.
	MyGroup(ctx context.Context, userUuid string) (*respond.GroupInfoRespond, error)
	// Members lists the group's participants with presence flags.
	Members(ctx context.Context, userUuid, groupUuid string) ([]respond.GroupMemberRespond, error)
	// Messages returns the group's chat history.
	Messages(ctx context.Context, userUuid, groupUuid string) ([]respond.GroupMessageRespond, error)
	// VerifyMembership rejects callers who are not in the group.
	VerifyMembership(userUuid, groupUuid string) error
}
