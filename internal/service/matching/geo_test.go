package matching_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"barmeet_server/internal/dao/mysql/repository"
	"barmeet_server/internal/model"
	"barmeet_server/internal/service/matching"
	"barmeet_server/pkg/constants"
	"barmeet_server/pkg/errorx"
)

func newMatcher(t *testing.T) (*matching.GeoMatcher, *repository.Repositories) {
	t.Helper()
	repos := newTestRepos(t)
	ctrl, _, _ := newController(repos)
	normalizer := matching.NewRegionNormalizer(testHubs)
	return matching.NewGeoMatcher(repos, normalizer, ctrl, 3000), repos
}

func TestFindGroupOrCreateRequiresLocation(t *testing.T) {
	matcher, repos := newMatcher(t)

	_, err := matcher.FindGroupOrCreate(context.Background(), "U1", nil)
	if !errors.Is(err, errorx.ErrLocationRequired) {
		t.Fatalf("err = %v, want ErrLocationRequired", err)
	}

	groups, _ := repos.Group.FindByStatuses([]int8{model.GroupStatusWaiting})
	if len(groups) != 0 {
		t.Fatal("group created without a location")
	}
}

func TestFindGroupOrCreateCreatesFirstGroup(t *testing.T) {
	matcher, repos := newMatcher(t)

	coord := &matching.Coordinate{Lat: 40.75, Lng: -73.99}
	result, err := matcher.FindGroupOrCreate(context.Background(), "U1", coord)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Created {
		t.Fatal("expected a freshly created group")
	}
	if result.Group.HubName != "downtown" {
		t.Fatalf("hub = %q", result.Group.HubName)
	}
	// Group sits at the hub coordinate, not the caller's raw position.
	if result.Group.Latitude != 40.7410 || result.Group.Longitude != -73.9896 {
		t.Fatalf("group coord = (%v, %v)", result.Group.Latitude, result.Group.Longitude)
	}
	if result.Group.MemberCnt != 1 {
		t.Fatalf("member_cnt = %d, want the creator in", result.Group.MemberCnt)
	}

	cnt, _ := repos.Participant.CountByGroup(result.Group.Uuid)
	if cnt != 1 {
		t.Fatalf("participants = %d", cnt)
	}
}

func TestFindGroupOrCreateJoinsNearbyGroup(t *testing.T) {
	matcher, _ := newMatcher(t)

	ctx := context.Background()
	coord := &matching.Coordinate{Lat: 40.75, Lng: -73.99}
	first, err := matcher.FindGroupOrCreate(ctx, "U1", coord)
	if err != nil {
		t.Fatal(err)
	}

	// A second user in the same hub lands in the same group, despite GPS
	// jitter.
	second, err := matcher.FindGroupOrCreate(ctx, "U2", &matching.Coordinate{Lat: 40.71, Lng: -73.97})
	if err != nil {
		t.Fatal(err)
	}
	if second.Created {
		t.Fatal("second user created a new group")
	}
	if second.Group.Uuid != first.Group.Uuid {
		t.Fatalf("groups differ: %s vs %s", first.Group.Uuid, second.Group.Uuid)
	}
	if second.Group.MemberCnt != 2 {
		t.Fatalf("member_cnt = %d", second.Group.MemberCnt)
	}
}

func TestFindGroupOrCreateIgnoresDistantGroup(t *testing.T) {
	matcher, _ := newMatcher(t)

	ctx := context.Background()
	downtown, err := matcher.FindGroupOrCreate(ctx, "U1", &matching.Coordinate{Lat: 40.75, Lng: -73.99})
	if err != nil {
		t.Fatal(err)
	}

	brooklyn, err := matcher.FindGroupOrCreate(ctx, "U2", &matching.Coordinate{Lat: 40.68, Lng: -73.95})
	if err != nil {
		t.Fatal(err)
	}
	if brooklyn.Group.Uuid == downtown.Group.Uuid {
		t.Fatal("users in different hubs were pooled together")
	}
}

func TestFindGroupOrCreateReturnsExistingMembership(t *testing.T) {
	matcher, _ := newMatcher(t)

	ctx := context.Background()
	coord := &matching.Coordinate{Lat: 40.75, Lng: -73.99}
	first, err := matcher.FindGroupOrCreate(ctx, "U1", coord)
	if err != nil {
		t.Fatal(err)
	}

	// Asking again, even from elsewhere, returns the current group.
	again, err := matcher.FindGroupOrCreate(ctx, "U1", &matching.Coordinate{Lat: 40.68, Lng: -73.95})
	if err != nil {
		t.Fatal(err)
	}
	if again.Group.Uuid != first.Group.Uuid || again.Created {
		t.Fatalf("repeat match: created=%v uuid=%s", again.Created, again.Group.Uuid)
	}
	if again.Group.MemberCnt != 1 {
		t.Fatalf("member_cnt = %d", again.Group.MemberCnt)
	}
}

func TestFindGroupOrCreateSkipsFullGroups(t *testing.T) {
	matcher, repos := newMatcher(t)

	ctx := context.Background()
	coord := &matching.Coordinate{Lat: 40.75, Lng: -73.99}
	first, err := matcher.FindGroupOrCreate(ctx, "U1", coord)
	if err != nil {
		t.Fatal(err)
	}
	for _, u := range []string{"U2", "U3", "U4", "U5"} {
		if _, err := matcher.FindGroupOrCreate(ctx, u, coord); err != nil {
			t.Fatal(err)
		}
	}
	full, _ := repos.Group.FindByUuid(first.Group.Uuid)
	if full.MemberCnt != constants.GROUP_CAPACITY {
		t.Fatalf("member_cnt = %d, want full", full.MemberCnt)
	}

	// The sixth user gets a brand new group.
	sixth, err := matcher.FindGroupOrCreate(ctx, "U6", coord)
	if err != nil {
		t.Fatal(err)
	}
	if sixth.Group.Uuid == first.Group.Uuid {
		t.Fatal("sixth user joined a full group")
	}
	if !sixth.Created {
		t.Fatal("sixth user should have created a group")
	}
}

func newWaitingGroup(t *testing.T, repos *repository.Repositories, uuid string, createdAt time.Time, members int) *model.GroupOuting {
	t.Helper()
	group := &model.GroupOuting{
		Model:        gorm.Model{CreatedAt: createdAt},
		Uuid:         uuid,
		Status:       model.GroupStatusWaiting,
		Latitude:     40.7410,
		Longitude:    -73.9896,
		SearchRadius: 2000,
		Capacity:     constants.GROUP_CAPACITY,
	}
	if err := repos.Group.Create(group); err != nil {
		t.Fatal(err)
	}
	if members > 0 {
		if err := repos.Group.SetMemberCnt(uuid, members); err != nil {
			t.Fatal(err)
		}
	}
	return group
}

func TestFindGroupOrCreatePrefersOldestGroup(t *testing.T) {
	matcher, repos := newMatcher(t)

	ctx := context.Background()
	coord := &matching.Coordinate{Lat: 40.75, Lng: -73.99}
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	// A newer group with more members must not jump the queue: waiting time
	// decides first, fill level only breaks ties.
	older := newWaitingGroup(t, repos, "O2000000000001", base, 1)
	newWaitingGroup(t, repos, "O2000000000002", base.Add(10*time.Minute), 3)

	got, err := matcher.FindGroupOrCreate(ctx, "U9", coord)
	if err != nil {
		t.Fatal(err)
	}
	if got.Group.Uuid != older.Uuid {
		t.Fatalf("joined %s, want the oldest group %s", got.Group.Uuid, older.Uuid)
	}
}

func TestFindGroupOrCreateBreaksTiesByFillLevel(t *testing.T) {
	matcher, repos := newMatcher(t)

	ctx := context.Background()
	coord := &matching.Coordinate{Lat: 40.75, Lng: -73.99}
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	// Same creation time, different fill levels. The fuller group wins so
	// groups complete instead of all hovering at two members.
	newWaitingGroup(t, repos, "O2000000000003", base, 1)
	fuller := newWaitingGroup(t, repos, "O2000000000004", base, 3)

	got, err := matcher.FindGroupOrCreate(ctx, "U9", coord)
	if err != nil {
		t.Fatal(err)
	}
	if got.Group.Uuid != fuller.Uuid {
		t.Fatalf("joined %s, want the fuller group %s", got.Group.Uuid, fuller.Uuid)
	}
}
