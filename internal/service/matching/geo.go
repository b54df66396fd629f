package matching

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"barmeet_server/internal/dao/mysql/repository"
	"barmeet_server/internal/model"
	"barmeet_server/pkg/constants"
	"barmeet_server/pkg/errorx"
	"barmeet_server/pkg/util/geo"
	"barmeet_server/pkg/util/random"
)

const candidateQueryLimit = 64

// GeoMatcher finds or creates a group for a user's location. It never holds
// a lock across the find and the join: it optimistically joins candidates in
// preference order and treats every lost race as "try the next one".
type GeoMatcher struct {
	repos         *repository.Repositories
	normalizer    *RegionNormalizer
	capacity      *CapacityController
	defaultRadius int
}

func NewGeoMatcher(repos *repository.Repositories, normalizer *RegionNormalizer, capacity *CapacityController, defaultRadius int) *GeoMatcher {
	radius := defaultRadius
	if radius <= 0 {
		radius = constants.DEFAULT_SEARCH_RADIUS
	}
	return &GeoMatcher{
		repos:         repos,
		normalizer:    normalizer,
		capacity:      capacity,
		defaultRadius: radius,
	}
}

// MatchResult reports where the user ended up.
type MatchResult struct {
	Group   *model.GroupOuting
	Created bool
}

// FindGroupOrCreate is the single entry point for "I want to go out". The
// caller's raw coordinate is snapped by the region normalizer, nearby waiting
// groups are tried oldest-first, and when none admit the user a fresh group
// is created with the user as its first member.
func (m *GeoMatcher) FindGroupOrCreate(ctx context.Context, userUuid string, coord *Coordinate) (*MatchResult, error) {
	if coord == nil {
		return nil, errorx.ErrLocationRequired
	}

	// A user already in a group gets that group back instead of a second one.
	if existing, err := m.repos.Participant.FindByUser(userUuid); err == nil {
		group, gerr := m.repos.Group.FindByUuid(existing.GroupUuid)
		if gerr == nil {
			return &MatchResult{Group: group}, nil
		}
		if !errorx.IsNotFound(gerr) {
			return nil, gerr
		}
		// Orphaned membership; clean it up and match normally.
		if _, derr := m.repos.Participant.Delete(existing.GroupUuid, userUuid); derr != nil {
			zap.L().Error("orphan membership cleanup failed", zap.Error(derr))
		}
	} else if !errorx.IsNotFound(err) {
		return nil, err
	}

	normalized, hubName, radius := m.normalizer.Normalize(*coord)
	if radius <= 0 {
		radius = m.defaultRadius
	}

	group, err := m.tryJoinCandidates(ctx, userUuid, normalized, radius)
	if err != nil {
		return nil, err
	}
	if group != nil {
		return &MatchResult{Group: group}, nil
	}

	// Every candidate was lost to a race or out of range. One quiet re-query
	// catches groups created by concurrent matchers in the meantime.
	group, err = m.tryJoinCandidates(ctx, userUuid, normalized, radius)
	if err != nil {
		return nil, err
	}
	if group != nil {
		return &MatchResult{Group: group}, nil
	}

	return m.createAndJoin(ctx, userUuid, normalized, hubName, radius)
}

// tryJoinCandidates walks nearby waiting groups and returns the first one
// that admits the user. A nil group with nil error means nothing was joinable.
func (m *GeoMatcher) tryJoinCandidates(ctx context.Context, userUuid string, coord Coordinate, radius int) (*model.GroupOuting, error) {
	minLat, maxLat, minLng, maxLng := geo.BoundingBox(coord.Lat, coord.Lng, float64(radius))
	candidates, err := m.repos.Group.FindCandidates(minLat, maxLat, minLng, maxLng, candidateQueryLimit)
	if err != nil {
		return nil, err
	}

	// The repository returns oldest groups first, fullest first among equals.
	// The distance filter keeps that order, so the oldest joinable group wins.
	inRange := make([]*model.GroupOuting, 0, len(candidates))
	for i := range candidates {
		g := &candidates[i]
		d := geo.DistanceMeters(coord.Lat, coord.Lng, g.Latitude, g.Longitude)
		limit := float64(g.SearchRadius)
		if limit <= 0 {
			limit = float64(radius)
		}
		if d <= limit {
			inRange = append(inRange, g)
		}
	}

	for _, g := range inRange {
		err := m.capacity.Join(ctx, g.Uuid, userUuid, coord)
		if err == nil {
			return m.repos.Group.FindByUuid(g.Uuid)
		}
		if errors.Is(err, errorx.ErrRaceLost) {
			continue
		}
		return nil, err
	}
	return nil, nil
}

func (m *GeoMatcher) createAndJoin(ctx context.Context, userUuid string, coord Coordinate, hubName string, radius int) (*MatchResult, error) {
	group := &model.GroupOuting{
		Uuid:         "O" + random.GetNowAndLenRandomString(13),
		Status:       model.GroupStatusWaiting,
		Latitude:     coord.Lat,
		Longitude:    coord.Lng,
		HubName:      hubName,
		SearchRadius: radius,
		Capacity:     constants.GROUP_CAPACITY,
		MemberCnt:    0,
	}
	if err := m.repos.Group.Create(group); err != nil {
		return nil, err
	}

	if err := m.capacity.Join(ctx, group.Uuid, userUuid, coord); err != nil {
		// Losing a race on a group we just created means five strangers
		// filled it between the insert and the join. Fall back to matching
		// from scratch once.
		if errors.Is(err, errorx.ErrRaceLost) {
			joined, jerr := m.tryJoinCandidates(ctx, userUuid, coord, radius)
			if jerr != nil {
				return nil, jerr
			}
			if joined != nil {
				return &MatchResult{Group: joined}, nil
			}
		}
		return nil, err
	}

	created, err := m.repos.Group.FindByUuid(group.Uuid)
	if err != nil {
		return nil, err
	}
	return &MatchResult{Group: created, Created: true}, nil
}
