// Package sweep reclaims abandoned state: silent participants, empty stale
// groups, and outings whose meeting time is long past.
package sweep

import (
	"context"
	"time"

	"go.uber.org/zap"

	"barmeet_server/internal/dao/mysql/repository"
	"barmeet_server/internal/model"
	"barmeet_server/internal/service/matching"
)

// Ages configures the three reclamation cutoffs.
type Ages struct {
	// ParticipantInactivity evicts members whose last heartbeat is older.
	ParticipantInactivity time.Duration
	// StaleGroup deletes empty waiting groups older than this.
	StaleGroup time.Duration
	// MeetingGrace deletes confirmed groups this long after their meeting.
	MeetingGrace time.Duration
}

// GroupCloser tears down the chat channel of a reclaimed group.
type GroupCloser interface {
	CloseGroup(groupUuid string)
}

// Sweeper runs the periodic cleanup. Every step is independently fallible;
// a failing step logs and the run moves on, and the whole pass is idempotent
// so overlapping runs across processes are harmless.
type Sweeper struct {
	repos    *repository.Repositories
	capacity *matching.CapacityController
	closer   GroupCloser
	interval time.Duration
	ages     Ages
}

func NewSweeper(repos *repository.Repositories, capacity *matching.CapacityController, closer GroupCloser, interval time.Duration, ages Ages) *Sweeper {
	return &Sweeper{
		repos:    repos,
		capacity: capacity,
		closer:   closer,
		interval: interval,
		ages:     ages,
	}
}

// Run ticks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx, time.Now())
		}
	}
}

// Sweep executes one full pass at the given reference time.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) {
	s.evictInactive(ctx, now)
	s.auditCounters(ctx)
	s.deleteStaleEmpty(now)
	s.deleteExpiredMeetings(now)
}

// evictInactive removes participants that stopped heartbeating and
// reconciles every group they were evicted from, so counters, demotions and
// empty-group deletion all follow from the eviction.
func (s *Sweeper) evictInactive(ctx context.Context, now time.Time) {
	cutoff := now.Add(-s.ages.ParticipantInactivity)
	groups, err := s.repos.Participant.DeleteInactiveBefore(cutoff)
	if err != nil {
		zap.L().Error("inactive participant eviction failed", zap.Error(err))
		return
	}
	if len(groups) > 0 {
		zap.L().Info("evicted inactive participants", zap.Int("groups", len(groups)))
	}
	for _, uuid := range groups {
		if err := s.capacity.Reconcile(ctx, uuid); err != nil {
			zap.L().Error("post-eviction reconcile failed", zap.String("group", uuid), zap.Error(err))
		}
	}
}

// auditCounters reconciles every live group, catching drift that eviction
// didn't touch (crashed joins, missed leaves).
func (s *Sweeper) auditCounters(ctx context.Context) {
	groups, err := s.repos.Group.FindByStatuses([]int8{model.GroupStatusWaiting, model.GroupStatusConfirmed})
	if err != nil {
		zap.L().Error("group audit lookup failed", zap.Error(err))
		return
	}
	for i := range groups {
		if err := s.capacity.Reconcile(ctx, groups[i].Uuid); err != nil {
			zap.L().Error("audit reconcile failed", zap.String("group", groups[i].Uuid), zap.Error(err))
		}
	}
}

func (s *Sweeper) deleteStaleEmpty(now time.Time) {
	cutoff := now.Add(-s.ages.StaleGroup)
	n, err := s.repos.Group.DeleteStaleEmpty(cutoff)
	if err != nil {
		zap.L().Error("stale group cleanup failed", zap.Error(err))
		return
	}
	if n > 0 {
		zap.L().Info("deleted stale empty groups", zap.Int64("count", n))
	}
}

func (s *Sweeper) deleteExpiredMeetings(now time.Time) {
	cutoff := now.Add(-s.ages.MeetingGrace)
	uuids, err := s.repos.Group.DeleteExpiredMeetings(cutoff)
	if err != nil {
		zap.L().Error("expired outing cleanup failed", zap.Error(err))
		return
	}
	for _, uuid := range uuids {
		if err := s.repos.Participant.DeleteByGroupUuid(uuid); err != nil {
			zap.L().Error("participant cleanup failed", zap.String("group", uuid), zap.Error(err))
		}
		if err := s.repos.Message.DeleteByGroupUuid(uuid); err != nil {
			zap.L().Error("message cleanup failed", zap.String("group", uuid), zap.Error(err))
		}
		s.closer.CloseGroup(uuid)
	}
	if len(uuids) > 0 {
		zap.L().Info("deleted finished outings", zap.Int("count", len(uuids)))
	}
}
