// Package schedule activates groups that were created ahead of time. A
// scheduled group accepts members like any other but never confirms until
// its activation time arrives.
package schedule

import (
	"context"
	"time"

	"go.uber.org/zap"

	"barmeet_server/internal/dao/mysql/repository"
	"barmeet_server/internal/infrastructure/mq"
	"barmeet_server/internal/model"
)

// Announcer posts system messages into the group channel.
type Announcer interface {
	System(groupUuid, content string)
}

// Activator flips due scheduled groups live. Multiple instances may run the
// same tick; the conditional ClearScheduled update picks exactly one winner
// per group.
type Activator struct {
	repos     *repository.Repositories
	bus       mq.EventBus
	announcer Announcer
	interval  time.Duration
}

func NewActivator(repos *repository.Repositories, bus mq.EventBus, announcer Announcer, interval time.Duration) *Activator {
	return &Activator{
		repos:     repos,
		bus:       bus,
		announcer: announcer,
		interval:  interval,
	}
}

// Run ticks until ctx is cancelled. One failing group never blocks the rest.
func (a *Activator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.ActivateDue(ctx, time.Now())
		}
	}
}

// ActivateDue processes every scheduled group whose activation time has
// passed. A group that filled while scheduled confirms immediately on
// activation and fires the same filled event as a live join would.
func (a *Activator) ActivateDue(ctx context.Context, now time.Time) {
	due, err := a.repos.Group.FindDueScheduled(now)
	if err != nil {
		zap.L().Error("due scheduled lookup failed", zap.Error(err))
		return
	}
	for i := range due {
		a.activateOne(ctx, &due[i], now)
	}
}

func (a *Activator) activateOne(ctx context.Context, group *model.GroupOuting, now time.Time) {
	cleared, err := a.repos.Group.ClearScheduled(group.Uuid)
	if err != nil {
		zap.L().Error("activation failed", zap.String("group", group.Uuid), zap.Error(err))
		return
	}
	if !cleared {
		return
	}

	a.announcer.System(group.Uuid, "The group is now live!")

	confirmed, err := a.repos.Group.MarkConfirmedIfFull(group.Uuid)
	if err != nil {
		zap.L().Error("confirm check failed", zap.String("group", group.Uuid), zap.Error(err))
		return
	}
	if confirmed {
		a.announcer.System(group.Uuid, "Your group is complete! Finding you a bar now...")
		ev := mq.GroupFilled{GroupUuid: group.Uuid, FilledAtUnix: now.Unix()}
		if err := a.bus.PublishGroupFilled(ctx, ev); err != nil {
			zap.L().Error("group filled publish failed", zap.String("group", group.Uuid), zap.Error(err))
		}
	}
}
