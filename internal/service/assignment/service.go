// Package assignment turns a filled group into a confirmed outing with a
// venue and a meeting time, exactly once per filled group.
package assignment

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"barmeet_server/internal/dao/mysql/repository"
	"barmeet_server/internal/infrastructure/mq"
	"barmeet_server/internal/infrastructure/notify"
	"barmeet_server/internal/infrastructure/venue"
	"barmeet_server/internal/model"
	"barmeet_server/pkg/constants"
)

// Announcer posts system messages into the group channel.
type Announcer interface {
	System(groupUuid, content string)
}

// Options tunes the assignment run.
type Options struct {
	// Category is the venue category passed to the search provider.
	Category string
	// MinQuality filters results; when nothing clears the bar the best
	// available result is taken anyway.
	MinQuality float64
	// SearchTimeout bounds one provider call.
	SearchTimeout time.Duration
	// MeetingOffset is how far in the future the meeting time lands.
	MeetingOffset time.Duration
}

func (o *Options) fillDefaults() {
	if o.Category == "" {
		o.Category = "bar"
	}
	if o.SearchTimeout <= 0 {
		o.SearchTimeout = 5 * time.Second
	}
	if o.MeetingOffset <= 0 {
		o.MeetingOffset = constants.MEETING_OFFSET
	}
}

// Service consumes GroupFilled events. Delivery is at-least-once and may be
// concurrent across processes, so every run starts by re-reading the group
// and competing for the venue sentinel; only the sentinel winner talks to
// the provider.
type Service struct {
	repos      *repository.Repositories
	searcher   venue.Searcher
	dispatcher notify.Dispatcher
	announcer  Announcer
	opts       Options
}

func NewService(
	repos *repository.Repositories,
	searcher venue.Searcher,
	dispatcher notify.Dispatcher,
	announcer Announcer,
	opts Options,
) *Service {
	opts.fillDefaults()
	return &Service{
		repos:      repos,
		searcher:   searcher,
		dispatcher: dispatcher,
		announcer:  announcer,
		opts:       opts,
	}
}

// HandleGroupFilled is the event handler. Stale, duplicate, and demoted
// events all fall out silently at one of the guard steps; errors are logged
// and swallowed so the consumer loop keeps draining.
func (s *Service) HandleGroupFilled(ctx context.Context, ev mq.GroupFilled) {
	if err := s.assign(ctx, ev.GroupUuid); err != nil {
		zap.L().Error("venue assignment failed",
			zap.String("group", ev.GroupUuid),
			zap.Error(err))
	}
}

func (s *Service) assign(ctx context.Context, groupUuid string) error {
	group, err := s.repos.Group.FindByUuid(groupUuid)
	if err != nil {
		// Group gone between fill and assignment; nothing to do.
		return nil
	}
	if group.Status != model.GroupStatusConfirmed || group.VenueRef != "" {
		return nil
	}
	cnt, err := s.repos.Participant.CountByGroup(groupUuid)
	if err != nil {
		return err
	}
	if int(cnt) != group.Capacity {
		return nil
	}

	claimed, err := s.repos.Group.ClaimVenue(groupUuid, constants.VENUE_PENDING)
	if err != nil {
		return err
	}
	if !claimed {
		// A duplicate event or a demotion won the row; this run is over.
		return nil
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()
	results, err := s.searcher.Search(searchCtx, group.Latitude, group.Longitude, group.SearchRadius, s.opts.Category)
	if err != nil || len(results) == 0 {
		if err != nil {
			zap.L().Error("venue search failed", zap.String("group", groupUuid), zap.Error(err))
		}
		return s.fallbackToManual(ctx, group)
	}

	best := pickBest(results, s.opts.MinQuality)
	meetingAt := time.Now().Add(s.opts.MeetingOffset).Truncate(time.Minute)
	fields := repository.VenueFields{
		Ref:  best.ExternalRef,
		Name: best.Name,
		Addr: best.Address,
		Lat:  best.Latitude,
		Lng:  best.Longitude,
	}
	finalized, err := s.repos.Group.FinalizeVenue(groupUuid, constants.VENUE_PENDING, fields, meetingAt)
	if err != nil {
		if rerr := s.repos.Group.ReleaseVenueClaim(groupUuid, constants.VENUE_PENDING); rerr != nil {
			zap.L().Error("venue claim release failed", zap.String("group", groupUuid), zap.Error(rerr))
		}
		return err
	}
	if !finalized {
		// Someone left mid-search and the demotion cleared the sentinel.
		// The group re-fills later and triggers a fresh attempt.
		return nil
	}

	msg := fmt.Sprintf("Venue assigned: %s, %s. Meet at %s.",
		best.Name, best.Address, meetingAt.Format("15:04 on Jan 2"))
	s.announcer.System(groupUuid, msg)
	s.notifyMembers(ctx, groupUuid, msg, notify.KindVenueAssigned)
	return nil
}

// fallbackToManual leaves the group confirmed with no venue claim so members
// can settle on a place in the chat. No automatic retry fires for it.
func (s *Service) fallbackToManual(ctx context.Context, group *model.GroupOuting) error {
	if err := s.repos.Group.ReleaseVenueClaim(group.Uuid, constants.VENUE_PENDING); err != nil {
		return err
	}
	current, err := s.repos.Group.FindByUuid(group.Uuid)
	if err != nil || current.Status != model.GroupStatusConfirmed {
		// Demoted or deleted while searching; skip the message.
		return nil
	}
	msg := "We couldn't find a bar near you. Pick a spot together in the chat!"
	s.announcer.System(group.Uuid, msg)
	s.notifyMembers(ctx, group.Uuid, msg, notify.KindPickManually)
	return nil
}

func (s *Service) notifyMembers(ctx context.Context, groupUuid, msg string, kind notify.Kind) {
	participants, err := s.repos.Participant.FindByGroup(groupUuid)
	if err != nil {
		zap.L().Error("participant lookup for notify failed", zap.String("group", groupUuid), zap.Error(err))
		return
	}
	uuids := make([]string, 0, len(participants))
	for i := range participants {
		uuids = append(uuids, participants[i].UserUuid)
	}
	if err := s.dispatcher.Send(ctx, uuids, msg, kind); err != nil {
		zap.L().Error("notification dispatch failed", zap.String("group", groupUuid), zap.Error(err))
	}
}

// pickBest prefers the highest quality score at or above the floor, falling
// back to the overall best when nothing clears it.
func pickBest(results []venue.Venue, minQuality float64) venue.Venue {
	sorted := make([]venue.Venue, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].QualityScore > sorted[j].QualityScore
	})
	for _, v := range sorted {
		if v.QualityScore >= minQuality {
			return v
		}
	}
	return sorted[0]
}
