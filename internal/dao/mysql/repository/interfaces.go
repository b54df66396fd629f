package repository

import (
	"time"

	"barmeet_server/internal/model"

	"gorm.io/gorm"
)

// GroupRepository is the storage contract the group lifecycle depends on.
// The conditional mutators (increment-with-ceiling, confirm-if-full, venue
// claim) return a bool reporting whether the row actually changed; every
// cross-process race in the system is decided by one of these booleans.
type GroupRepository interface {
	// FindByUuid looks up one group.
	FindByUuid(uuid string) (*model.GroupOuting, error)
	// FindByStatuses returns all groups in the given statuses (sweeper audit).
	FindByStatuses(statuses []int8) ([]model.GroupOuting, error)
	// FindCandidates returns live waiting groups with free seats inside the
	// lat/lng box, oldest first then fullest first. The box is a prefilter;
	// the caller applies the exact radius check.
	FindCandidates(minLat, maxLat, minLng, maxLng float64, limit int) ([]model.GroupOuting, error)
	// FindDueScheduled returns scheduled waiting groups whose activation time
	// has arrived.
	FindDueScheduled(now time.Time) ([]model.GroupOuting, error)
	// Create inserts a new group.
	Create(group *model.GroupOuting) error

	// IncrementMemberCntIfBelowCap adds one seat holder if, and only if, the
	// group is still waiting and below capacity. Single conditional UPDATE;
	// this is the atomic step that makes overfilling impossible.
	IncrementMemberCntIfBelowCap(uuid string) (bool, error)
	// DecrementMemberCnt releases one seat, never going below zero.
	DecrementMemberCnt(uuid string) error
	// SetMemberCnt overwrites the counter (reconcile only, not the hot path).
	SetMemberCnt(uuid string, cnt int) error

	// MarkConfirmedIfFull moves waiting -> confirmed when the counter sits
	// exactly at capacity. Scheduled groups confirm through the activator.
	MarkConfirmedIfFull(uuid string) (bool, error)
	// DemoteIfUnderfilled moves confirmed -> waiting and clears venue fields
	// when the counter dropped below capacity and no real venue is set yet
	// (a held sentinel is cleared too, cancelling the in-flight attempt).
	DemoteIfUnderfilled(uuid string, sentinel string) (bool, error)

	// ClaimVenue installs the assignment sentinel if no attempt has run yet.
	// The loser of a duplicate trigger observes false and exits.
	ClaimVenue(uuid string, sentinel string) (bool, error)
	// ReleaseVenueClaim clears the sentinel after a failed attempt.
	ReleaseVenueClaim(uuid string, sentinel string) error
	// FinalizeVenue writes the venue fields and meeting time, only while this
	// attempt's sentinel is still in place and the group is still full.
	FinalizeVenue(uuid string, sentinel string, venue VenueFields, meetingAt time.Time) (bool, error)

	// ClearScheduled flips a scheduled group live; false means another
	// activator run got there first.
	ClearScheduled(uuid string) (bool, error)

	// DeleteIfEmpty removes the group when its counter is zero.
	DeleteIfEmpty(uuid string) (bool, error)
	// DeleteStaleEmpty removes empty waiting groups created before the cutoff.
	DeleteStaleEmpty(before time.Time) (int64, error)
	// DeleteExpiredMeetings removes confirmed groups whose meeting time passed
	// the cutoff (outing considered over), returning the deleted uuids so the
	// caller can clean up per-group state.
	DeleteExpiredMeetings(before time.Time) ([]string, error)
}

// VenueFields carries the set-once venue columns written on assignment.
type VenueFields struct {
	Ref  string
	Name string
	Addr string
	Lat  float64
	Lng  float64
}

// ParticipantRepository manages group membership rows.
type ParticipantRepository interface {
	// Find looks up one membership row.
	Find(groupUuid, userUuid string) (*model.Participant, error)
	// FindByUser returns the user's current membership, if any.
	FindByUser(userUuid string) (*model.Participant, error)
	// FindByGroup returns all confirmed participants of a group.
	FindByGroup(groupUuid string) ([]model.Participant, error)
	// CountByGroup counts confirmed participants (reconcile source of truth).
	CountByGroup(groupUuid string) (int64, error)
	// Create inserts a membership row; the (group, user) unique index turns
	// duplicate concurrent joins into an error the caller treats as a no-op.
	Create(p *model.Participant) error
	// Delete removes a membership row, reporting whether it existed.
	Delete(groupUuid, userUuid string) (bool, error)
	// DeleteByGroupUuid removes all rows of a group.
	DeleteByGroupUuid(groupUuid string) error
	// TouchHeartbeat refreshes the activity timestamp.
	TouchHeartbeat(groupUuid, userUuid string, at time.Time) error
	// DeleteInactiveBefore removes rows whose heartbeat is older than the
	// cutoff, returning the affected group uuids so their counters can be
	// reconciled.
	DeleteInactiveBefore(cutoff time.Time) ([]string, error)
}

// MessageRepository stores chat and system messages.
type MessageRepository interface {
	Create(m *model.Message) error
	FindByGroup(groupUuid string, limit int) ([]model.Message, error)
	UpdateStatus(uuid int64, status int8) error
	DeleteByGroupUuid(groupUuid string) error
}

// Repositories aggregates all repository instances. Services receive this
// struct, never a raw *gorm.DB.
type Repositories struct {
	db          *gorm.DB
	Group       GroupRepository
	Participant ParticipantRepository
	Message     MessageRepository
}

// NewRepositories wires every repository onto one GORM handle.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:          db,
		Group:       NewGroupRepository(db),
		Participant: NewParticipantRepository(db),
		Message:     NewMessageRepository(db),
	}
}

// Transaction runs fn inside a database transaction; fn receives a
// Repositories bound to the transaction handle. Any error rolls back.
func (r *Repositories) Transaction(fn func(txRepos *Repositories) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
