// Package matching owns group membership: who gets into which group, and the
// counter invariant that makes a sixth member impossible.
package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"barmeet_server/internal/dao/mysql/repository"
	myredis "barmeet_server/internal/dao/redis"
	"barmeet_server/internal/infrastructure/mq"
	"barmeet_server/internal/model"
	"barmeet_server/pkg/constants"
	"barmeet_server/pkg/errorx"
)

// Announcer is the slice of the group channel the capacity logic needs:
// posting system messages and tearing a channel down with its group. The
// channel is a notification side-channel only; no capacity decision ever
// reads from it.
type Announcer interface {
	System(groupUuid, content string)
	CloseGroup(groupUuid string)
}

// CapacityController is the only component allowed to mutate membership and
// the group status field. All of its races are settled by conditional updates
// inside the store, never by in-process locks; concurrent handlers on other
// machines contend on the same rows.
type CapacityController struct {
	repos     *repository.Repositories
	bus       mq.EventBus
	announcer Announcer
	cache     myredis.AsyncCacheService
}

// NewCapacityController wires the controller.
func NewCapacityController(
	repos *repository.Repositories,
	bus mq.EventBus,
	announcer Announcer,
	cache myredis.AsyncCacheService,
) *CapacityController {
	return &CapacityController{
		repos:     repos,
		bus:       bus,
		announcer: announcer,
		cache:     cache,
	}
}

// Join admits a user into a group. Outcomes:
//   - already a member: success, no mutation (idempotent)
//   - group full or no longer waiting: ErrRaceLost, caller retries matching
//   - otherwise: participant row inserted and counter incremented in one
//     transaction; the increment carries the capacity ceiling, so the counter
//     can never pass it no matter how many joins race
//
// When the winning join fills the group, the group flips to confirmed and a
// GroupFilled event goes out, strictly after the transition.
func (c *CapacityController) Join(ctx context.Context, groupUuid, userUuid string, coord Coordinate) error {
	if _, err := c.repos.Participant.Find(groupUuid, userUuid); err == nil {
		return nil
	} else if !errorx.IsNotFound(err) {
		zap.L().Error("membership lookup failed", zap.Error(err))
		return errorx.ErrServerBusy
	}

	now := time.Now()
	err := c.repos.Transaction(func(tx *repository.Repositories) error {
		ok, err := tx.Group.IncrementMemberCntIfBelowCap(groupUuid)
		if err != nil {
			zap.L().Error("conditional increment failed", zap.Error(err))
			return errorx.ErrServerBusy
		}
		if !ok {
			return errorx.ErrRaceLost
		}

		p := &model.Participant{
			GroupUuid:    groupUuid,
			UserUuid:     userUuid,
			Status:       model.ParticipantConfirmed,
			JoinedAt:     now,
			LastActiveAt: now,
			Latitude:     coord.Lat,
			Longitude:    coord.Lng,
		}
		if err := tx.Participant.Create(p); err != nil {
			// The unique (group, user) index turns a duplicate concurrent
			// join into an insert error; rolling back undoes the increment.
			return errorx.Wrap(err, errorx.CodeAlreadyMember, "duplicate join")
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errorx.ErrAlreadyMember) {
			return nil
		}
		return err
	}

	c.invalidateGroupCache(groupUuid)

	filled, err := c.repos.Group.MarkConfirmedIfFull(groupUuid)
	if err != nil {
		zap.L().Error("confirm check failed", zap.String("group", groupUuid), zap.Error(err))
		return nil
	}
	if filled {
		c.announcer.System(groupUuid, "Your group is complete! Finding you a bar now...")
		ev := mq.GroupFilled{GroupUuid: groupUuid, FilledAtUnix: now.Unix()}
		if err := c.bus.PublishGroupFilled(ctx, ev); err != nil {
			// The sweeper's reconcile pass re-detects full groups, so a lost
			// publish delays assignment instead of losing it.
			zap.L().Error("group filled publish failed", zap.String("group", groupUuid), zap.Error(err))
		}
	} else {
		c.announcer.System(groupUuid, "A new member joined the group.")
	}
	return nil
}

// Leave removes a user from a group. A departure that drops a confirmed,
// venue-less group below capacity demotes it back to waiting and clears any
// half-set venue state; the last departure deletes the group outright.
func (c *CapacityController) Leave(ctx context.Context, groupUuid, userUuid string) error {
	var removed bool
	err := c.repos.Transaction(func(tx *repository.Repositories) error {
		var err error
		removed, err = tx.Participant.Delete(groupUuid, userUuid)
		if err != nil {
			zap.L().Error("participant delete failed", zap.Error(err))
			return errorx.ErrServerBusy
		}
		if !removed {
			return nil
		}
		if err := tx.Group.DecrementMemberCnt(groupUuid); err != nil {
			zap.L().Error("decrement failed", zap.Error(err))
			return errorx.ErrServerBusy
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}

	c.invalidateGroupCache(groupUuid)

	demoted, err := c.repos.Group.DemoteIfUnderfilled(groupUuid, constants.VENUE_PENDING)
	if err != nil {
		zap.L().Error("demote check failed", zap.String("group", groupUuid), zap.Error(err))
	} else if demoted {
		c.announcer.System(groupUuid, "A member left; the group is open again.")
	} else {
		c.announcer.System(groupUuid, "A member left the group.")
	}

	deleted, err := c.repos.Group.DeleteIfEmpty(groupUuid)
	if err != nil {
		zap.L().Error("empty-group delete failed", zap.String("group", groupUuid), zap.Error(err))
		return nil
	}
	if deleted {
		c.cleanupDeletedGroup(groupUuid)
	}
	return nil
}

// Reconcile recomputes the counter from the participant rows and repairs any
// drift, demoting or deleting as the recount demands. It is idempotent and
// runs from the sweeper, never from the join/leave hot path.
func (c *CapacityController) Reconcile(ctx context.Context, groupUuid string) error {
	group, err := c.repos.Group.FindByUuid(groupUuid)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil
		}
		return err
	}

	cnt, err := c.repos.Participant.CountByGroup(groupUuid)
	if err != nil {
		return err
	}

	drifted := int(cnt) != group.MemberCnt
	if drifted {
		// Counter drift means a crash between increment and insert, or a
		// missed leave. Loud log, silent repair.
		zap.L().Error("member counter drift detected",
			zap.String("group", groupUuid),
			zap.Int("counter", group.MemberCnt),
			zap.Int64("actual", cnt),
			zap.Error(errorx.ErrInvariantViolation))
		if err := c.repos.Group.SetMemberCnt(groupUuid, int(cnt)); err != nil {
			return err
		}
	}

	if cnt == 0 {
		// A group that is merely empty waits for the staleness sweep; only a
		// counter that drifted down to zero is reclaimed here.
		if !drifted {
			return nil
		}
		deleted, err := c.repos.Group.DeleteIfEmpty(groupUuid)
		if err != nil {
			return err
		}
		if deleted {
			c.cleanupDeletedGroup(groupUuid)
		}
		return nil
	}

	if group.Status == model.GroupStatusConfirmed && int(cnt) < group.Capacity {
		demoted, err := c.repos.Group.DemoteIfUnderfilled(groupUuid, constants.VENUE_PENDING)
		if err != nil {
			return err
		}
		if demoted {
			c.announcer.System(groupUuid, "A member left; the group is open again.")
		}
	}

	// A full group stuck in waiting lost its confirm step or its filled event
	// to a crash. Re-run the transition so assignment still happens.
	if group.Status == model.GroupStatusWaiting && int(cnt) == group.Capacity {
		filled, err := c.repos.Group.MarkConfirmedIfFull(groupUuid)
		if err != nil {
			return err
		}
		if filled {
			c.announcer.System(groupUuid, "Your group is complete! Finding you a bar now...")
			ev := mq.GroupFilled{GroupUuid: groupUuid, FilledAtUnix: time.Now().Unix()}
			if err := c.bus.PublishGroupFilled(ctx, ev); err != nil {
				zap.L().Error("group filled publish failed", zap.String("group", groupUuid), zap.Error(err))
			}
		}
	}
	return nil
}

// Heartbeat refreshes the participant's activity timestamp, keeping the
// sweeper off their back.
func (c *CapacityController) Heartbeat(ctx context.Context, groupUuid, userUuid string) error {
	return c.repos.Participant.TouchHeartbeat(groupUuid, userUuid, time.Now())
}

func (c *CapacityController) invalidateGroupCache(groupUuid string) {
	if c.cache == nil {
		return
	}
	c.cache.SubmitTask(func() {
		if err := c.cache.Delete(context.Background(), "group_info_"+groupUuid); err != nil {
			zap.L().Error(err.Error())
		}
	})
}

func (c *CapacityController) cleanupDeletedGroup(groupUuid string) {
	if err := c.repos.Message.DeleteByGroupUuid(groupUuid); err != nil {
		zap.L().Error("message cleanup failed", zap.String("group", groupUuid), zap.Error(err))
	}
	if err := c.repos.Participant.DeleteByGroupUuid(groupUuid); err != nil {
		zap.L().Error("participant cleanup failed", zap.String("group", groupUuid), zap.Error(err))
	}
	c.announcer.CloseGroup(groupUuid)
	if c.cache != nil {
		c.cache.SubmitTask(func() {
			patterns := []string{
				"group_info_" + groupUuid,
				"group_messagelist_" + groupUuid,
				fmt.Sprintf("presence_%s", groupUuid),
			}
			for _, p := range patterns {
				if err := c.cache.Delete(context.Background(), p); err != nil {
					zap.L().Error(err.Error())
				}
			}
		})
	}
}
