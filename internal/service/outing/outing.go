// Package outing is the request-facing facade over matching, membership and
// history. Handlers talk to this layer only; the lifecycle machinery stays
// behind it.
package outing

import (
	"context"
	"encoding/json"
	"time"

	"barmeet_server/internal/dao/mysql/repository"
	myredis "barmeet_server/internal/dao/redis"
	"barmeet_server/internal/dto/request"
	"barmeet_server/internal/dto/respond"
	"barmeet_server/internal/model"
	"barmeet_server/internal/service/matching"
	"barmeet_server/pkg/constants"
	"barmeet_server/pkg/errorx"
)

const messageHistoryLimit = 200

// Presence reports which members of a group are currently connected.
type Presence interface {
	OnlineMembers(ctx context.Context, groupUuid string) []string
}

type outingService struct {
	repos    *repository.Repositories
	matcher  *matching.GeoMatcher
	capacity *matching.CapacityController
	presence Presence
	cache    myredis.AsyncCacheService
}

func NewOutingService(
	repos *repository.Repositories,
	matcher *matching.GeoMatcher,
	capacity *matching.CapacityController,
	presence Presence,
	cache myredis.AsyncCacheService,
) *outingService {
	return &outingService{
		repos:    repos,
		matcher:  matcher,
		capacity: capacity,
		presence: presence,
		cache:    cache,
	}
}

// Match places the user in a group around their coordinate.
func (s *outingService) Match(ctx context.Context, userUuid string, req request.MatchRequest) (*respond.GroupInfoRespond, error) {
	if req.Latitude == nil || req.Longitude == nil {
		return nil, errorx.ErrLocationRequired
	}
	coord := &matching.Coordinate{Lat: *req.Latitude, Lng: *req.Longitude}
	result, err := s.matcher.FindGroupOrCreate(ctx, userUuid, coord)
	if err != nil {
		return nil, err
	}
	return groupInfoRespond(result.Group, result.Created), nil
}

// Leave removes the user from their group.
func (s *outingService) Leave(ctx context.Context, userUuid, groupUuid string) error {
	return s.capacity.Leave(ctx, groupUuid, userUuid)
}

// Heartbeat keeps the membership alive.
func (s *outingService) Heartbeat(ctx context.Context, userUuid, groupUuid string) error {
	if err := s.VerifyMembership(userUuid, groupUuid); err != nil {
		return err
	}
	return s.capacity.Heartbeat(ctx, groupUuid, userUuid)
}

// MyGroup returns the caller's current group, cached briefly since clients
// poll it while waiting for the group to fill.
func (s *outingService) MyGroup(ctx context.Context, userUuid string) (*respond.GroupInfoRespond, error) {
	p, err := s.repos.Participant.FindByUser(userUuid)
	if err != nil {
		return nil, err
	}

	cacheKey := "group_info_" + p.GroupUuid
	if s.cache != nil {
		if cached, cerr := s.cache.GetOrError(ctx, cacheKey); cerr == nil {
			var rsp respond.GroupInfoRespond
			if jerr := json.Unmarshal([]byte(cached), &rsp); jerr == nil {
				return &rsp, nil
			}
		}
	}

	group, err := s.repos.Group.FindByUuid(p.GroupUuid)
	if err != nil {
		return nil, err
	}
	rsp := groupInfoRespond(group, false)

	if s.cache != nil {
		s.cache.SubmitTask(func() {
			if data, jerr := json.Marshal(rsp); jerr == nil {
				_ = s.cache.Set(context.Background(), cacheKey, string(data), 10*time.Second)
			}
		})
	}
	return rsp, nil
}

// Members lists the group's participants with their presence flag. Only ids
// and join times go out; the system holds nothing else about a person.
func (s *outingService) Members(ctx context.Context, userUuid, groupUuid string) ([]respond.GroupMemberRespond, error) {
	if err := s.VerifyMembership(userUuid, groupUuid); err != nil {
		return nil, err
	}
	participants, err := s.repos.Participant.FindByGroup(groupUuid)
	if err != nil {
		return nil, err
	}
	online := make(map[string]bool)
	if s.presence != nil {
		for _, uuid := range s.presence.OnlineMembers(ctx, groupUuid) {
			online[uuid] = true
		}
	}
	out := make([]respond.GroupMemberRespond, 0, len(participants))
	for i := range participants {
		out = append(out, respond.GroupMemberRespond{
			UserUuid: participants[i].UserUuid,
			JoinedAt: participants[i].JoinedAt.Format("2006-01-02 15:04:05"),
			Online:   online[participants[i].UserUuid],
		})
	}
	return out, nil
}

// Messages returns the group's chat history, newest last, cache first.
func (s *outingService) Messages(ctx context.Context, userUuid, groupUuid string) ([]respond.GroupMessageRespond, error) {
	if err := s.VerifyMembership(userUuid, groupUuid); err != nil {
		return nil, err
	}

	cacheKey := "group_messagelist_" + groupUuid
	if s.cache != nil {
		if cached, cerr := s.cache.GetOrError(ctx, cacheKey); cerr == nil {
			var list []respond.GroupMessageRespond
			if jerr := json.Unmarshal([]byte(cached), &list); jerr == nil {
				return list, nil
			}
		}
	}

	messages, err := s.repos.Message.FindByGroup(groupUuid, messageHistoryLimit)
	if err != nil {
		return nil, err
	}
	list := make([]respond.GroupMessageRespond, 0, len(messages))
	for i := range messages {
		m := &messages[i]
		list = append(list, respond.GroupMessageRespond{
			Uuid:      m.Uuid,
			GroupUuid: m.GroupUuid,
			SendId:    m.SendId,
			Type:      m.Type,
			Content:   m.Content,
			CreatedAt: m.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	if s.cache != nil {
		s.cache.SubmitTask(func() {
			if data, jerr := json.Marshal(list); jerr == nil {
				_ = s.cache.Set(context.Background(), cacheKey, string(data), time.Minute*constants.REDIS_TIMEOUT)
			}
		})
	}
	return list, nil
}

// VerifyMembership rejects callers acting on a group they are not in.
func (s *outingService) VerifyMembership(userUuid, groupUuid string) error {
	_, err := s.repos.Participant.Find(groupUuid, userUuid)
	if err != nil {
		if errorx.IsNotFound(err) {
			return errorx.ErrUnauthorized
		}
		return err
	}
	return nil
}

func groupInfoRespond(group *model.GroupOuting, created bool) *respond.GroupInfoRespond {
	rsp := &respond.GroupInfoRespond{
		Uuid:         group.Uuid,
		Status:       group.Status,
		HubName:      group.HubName,
		Capacity:     group.Capacity,
		MemberCnt:    group.MemberCnt,
		Scheduled:    group.Scheduled == 1,
		Created:      created,
		PendingVenue: group.VenueRef == constants.VENUE_PENDING,
	}
	if group.HasVenue(constants.VENUE_PENDING) {
		rsp.VenueName = group.VenueName
		rsp.VenueAddr = group.VenueAddr
		rsp.VenueLat = group.VenueLat
		rsp.VenueLng = group.VenueLng
		if group.MeetingAt.Valid {
			rsp.MeetingAt = group.MeetingAt.Time.Format("2006-01-02 15:04:05")
		}
	}
	return rsp
}
