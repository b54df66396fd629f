package repository_test

import (
	"database/sql"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	dao "barmeet_server/internal/dao/mysql"
	"barmeet_server/internal/dao/mysql/repository"
	"barmeet_server/internal/model"
	"barmeet_server/pkg/constants"
)

// newTestRepos opens an isolated in-memory database. A single open
// connection serializes concurrent writers the way MySQL row locks would.
func newTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := dao.Migrate(db); err != nil {
		t.Fatal(err)
	}
	return repository.NewRepositories(db)
}

func newWaitingGroup(t *testing.T, repos *repository.Repositories, uuid string) *model.GroupOuting {
	t.Helper()
	group := &model.GroupOuting{
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
	return group
}

func TestIncrementStopsAtCapacity(t *testing.T) {
	repos := newTestRepos(t)
	group := newWaitingGroup(t, repos, "O1111111111111")

	wins := 0
	for i := 0; i < constants.GROUP_CAPACITY+1; i++ {
		ok, err := repos.Group.IncrementMemberCntIfBelowCap(group.Uuid)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			wins++
		}
	}
	if wins != constants.GROUP_CAPACITY {
		t.Fatalf("wins = %d, want %d", wins, constants.GROUP_CAPACITY)
	}

	got, err := repos.Group.FindByUuid(group.Uuid)
	if err != nil {
		t.Fatal(err)
	}
	if got.MemberCnt != constants.GROUP_CAPACITY {
		t.Fatalf("member_cnt = %d, want %d", got.MemberCnt, constants.GROUP_CAPACITY)
	}
}

func TestIncrementConcurrent(t *testing.T) {
	repos := newTestRepos(t)
	group := newWaitingGroup(t, repos, "O2222222222222")

	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repos.Group.IncrementMemberCntIfBelowCap(group.Uuid)
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != constants.GROUP_CAPACITY {
		t.Fatalf("wins = %d, want %d", wins, constants.GROUP_CAPACITY)
	}
	got, _ := repos.Group.FindByUuid(group.Uuid)
	if got.MemberCnt != constants.GROUP_CAPACITY {
		t.Fatalf("member_cnt = %d, want %d", got.MemberCnt, constants.GROUP_CAPACITY)
	}
}

func TestIncrementRejectsConfirmedGroup(t *testing.T) {
	repos := newTestRepos(t)
	group := newWaitingGroup(t, repos, "O3333333333333")
	fillGroup(t, repos, group.Uuid)

	ok, err := repos.Group.IncrementMemberCntIfBelowCap(group.Uuid)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("increment succeeded on a confirmed group")
	}
}

func fillGroup(t *testing.T, repos *repository.Repositories, uuid string) {
	t.Helper()
	for i := 0; i < constants.GROUP_CAPACITY; i++ {
		ok, err := repos.Group.IncrementMemberCntIfBelowCap(uuid)
		if err != nil || !ok {
			t.Fatalf("fill increment %d failed: ok=%v err=%v", i, ok, err)
		}
	}
	ok, err := repos.Group.MarkConfirmedIfFull(uuid)
	if err != nil || !ok {
		t.Fatalf("confirm failed: ok=%v err=%v", ok, err)
	}
}

func TestMarkConfirmedIfFullOnlyOnce(t *testing.T) {
	repos := newTestRepos(t)
	group := newWaitingGroup(t, repos, "O4444444444444")
	fillGroup(t, repos, group.Uuid)

	again, err := repos.Group.MarkConfirmedIfFull(group.Uuid)
	if err != nil {
		t.Fatal(err)
	}
	if again {
		t.Fatal("second confirm reported success")
	}
}

func TestMarkConfirmedSkipsScheduled(t *testing.T) {
	repos := newTestRepos(t)
	group := &model.GroupOuting{
		Uuid:         "O5555555555555",
		Status:       model.GroupStatusWaiting,
		SearchRadius: 2000,
		Capacity:     constants.GROUP_CAPACITY,
		MemberCnt:    constants.GROUP_CAPACITY,
		Scheduled:    1,
	}
	if err := repos.Group.Create(group); err != nil {
		t.Fatal(err)
	}

	ok, err := repos.Group.MarkConfirmedIfFull(group.Uuid)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("scheduled group confirmed before activation")
	}
}

func TestVenueClaimSingleWinner(t *testing.T) {
	repos := newTestRepos(t)
	group := newWaitingGroup(t, repos, "O6666666666666")
	fillGroup(t, repos, group.Uuid)

	const attempts = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repos.Group.ClaimVenue(group.Uuid, constants.VENUE_PENDING)
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("claim winners = %d, want 1", wins)
	}
}

func TestFinalizeVenueRequiresSentinel(t *testing.T) {
	repos := newTestRepos(t)
	group := newWaitingGroup(t, repos, "O7777777777777")
	fillGroup(t, repos, group.Uuid)

	fields := repository.VenueFields{Ref: "ext-1", Name: "The Spot", Addr: "12 Main St", Lat: 40.74, Lng: -73.98}
	meetingAt := time.Now().Add(time.Hour)

	// No claim held yet.
	ok, err := repos.Group.FinalizeVenue(group.Uuid, constants.VENUE_PENDING, fields, meetingAt)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("finalize succeeded without a held sentinel")
	}

	if ok, _ := repos.Group.ClaimVenue(group.Uuid, constants.VENUE_PENDING); !ok {
		t.Fatal("claim failed")
	}
	ok, err = repos.Group.FinalizeVenue(group.Uuid, constants.VENUE_PENDING, fields, meetingAt)
	if err != nil || !ok {
		t.Fatalf("finalize: ok=%v err=%v", ok, err)
	}

	got, _ := repos.Group.FindByUuid(group.Uuid)
	if got.VenueRef != "ext-1" || !got.MeetingAt.Valid {
		t.Fatalf("venue not written: ref=%q meeting=%v", got.VenueRef, got.MeetingAt)
	}
}

func TestReleaseVenueClaim(t *testing.T) {
	repos := newTestRepos(t)
	group := newWaitingGroup(t, repos, "O8888888888888")
	fillGroup(t, repos, group.Uuid)

	if ok, _ := repos.Group.ClaimVenue(group.Uuid, constants.VENUE_PENDING); !ok {
		t.Fatal("claim failed")
	}
	if err := repos.Group.ReleaseVenueClaim(group.Uuid, constants.VENUE_PENDING); err != nil {
		t.Fatal(err)
	}
	got, _ := repos.Group.FindByUuid(group.Uuid)
	if got.VenueRef != "" {
		t.Fatalf("venue_ref = %q after release", got.VenueRef)
	}
	// Claim is possible again after release.
	if ok, _ := repos.Group.ClaimVenue(group.Uuid, constants.VENUE_PENDING); !ok {
		t.Fatal("re-claim failed after release")
	}
}

func TestDemoteClearsSentinelAndVenueState(t *testing.T) {
	repos := newTestRepos(t)
	group := newWaitingGroup(t, repos, "O9999999999999")
	fillGroup(t, repos, group.Uuid)

	if ok, _ := repos.Group.ClaimVenue(group.Uuid, constants.VENUE_PENDING); !ok {
		t.Fatal("claim failed")
	}
	if err := repos.Group.DecrementMemberCnt(group.Uuid); err != nil {
		t.Fatal(err)
	}

	demoted, err := repos.Group.DemoteIfUnderfilled(group.Uuid, constants.VENUE_PENDING)
	if err != nil || !demoted {
		t.Fatalf("demote: ok=%v err=%v", demoted, err)
	}

	got, _ := repos.Group.FindByUuid(group.Uuid)
	if got.Status != model.GroupStatusWaiting || got.VenueRef != "" {
		t.Fatalf("status=%d venue_ref=%q after demote", got.Status, got.VenueRef)
	}

	// The cancelled attempt's finalize now fails its own condition.
	fields := repository.VenueFields{Ref: "ext-1"}
	ok, err := repos.Group.FinalizeVenue(group.Uuid, constants.VENUE_PENDING, fields, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("finalize succeeded after demotion cleared the sentinel")
	}
}

func TestDemoteLeavesAssignedVenueAlone(t *testing.T) {
	repos := newTestRepos(t)
	group := newWaitingGroup(t, repos, "OAAAAAAAAAAAAA")
	fillGroup(t, repos, group.Uuid)

	if ok, _ := repos.Group.ClaimVenue(group.Uuid, constants.VENUE_PENDING); !ok {
		t.Fatal("claim failed")
	}
	fields := repository.VenueFields{Ref: "ext-2", Name: "Corner Bar"}
	if ok, _ := repos.Group.FinalizeVenue(group.Uuid, constants.VENUE_PENDING, fields, time.Now().Add(time.Hour)); !ok {
		t.Fatal("finalize failed")
	}
	if err := repos.Group.DecrementMemberCnt(group.Uuid); err != nil {
		t.Fatal(err)
	}

	demoted, err := repos.Group.DemoteIfUnderfilled(group.Uuid, constants.VENUE_PENDING)
	if err != nil {
		t.Fatal(err)
	}
	if demoted {
		t.Fatal("group with assigned venue was demoted")
	}
}

func TestClearScheduledOnlyOnce(t *testing.T) {
	repos := newTestRepos(t)
	group := &model.GroupOuting{
		Uuid:         "OBBBBBBBBBBBBB",
		Status:       model.GroupStatusWaiting,
		SearchRadius: 2000,
		Capacity:     constants.GROUP_CAPACITY,
		Scheduled:    1,
		ActivateAt:   nullTime(time.Now().Add(-time.Minute)),
	}
	if err := repos.Group.Create(group); err != nil {
		t.Fatal(err)
	}

	first, err := repos.Group.ClearScheduled(group.Uuid)
	if err != nil || !first {
		t.Fatalf("first clear: ok=%v err=%v", first, err)
	}
	second, err := repos.Group.ClearScheduled(group.Uuid)
	if err != nil {
		t.Fatal(err)
	}
	if second {
		t.Fatal("second clear reported success")
	}
}

func TestParticipantDuplicateJoinRejected(t *testing.T) {
	repos := newTestRepos(t)
	group := newWaitingGroup(t, repos, "OCCCCCCCCCCCCC")

	now := time.Now()
	p := &model.Participant{GroupUuid: group.Uuid, UserUuid: "U1", JoinedAt: now, LastActiveAt: now}
	if err := repos.Participant.Create(p); err != nil {
		t.Fatal(err)
	}
	dup := &model.Participant{GroupUuid: group.Uuid, UserUuid: "U1", JoinedAt: now, LastActiveAt: now}
	if err := repos.Participant.Create(dup); err == nil {
		t.Fatal("duplicate participant insert succeeded")
	}
}

func TestDeleteInactiveBeforeReturnsGroups(t *testing.T) {
	repos := newTestRepos(t)
	group := newWaitingGroup(t, repos, "ODDDDDDDDDDDDD")

	old := time.Now().Add(-3 * time.Hour)
	fresh := time.Now()
	for i, at := range []time.Time{old, fresh} {
		p := &model.Participant{
			GroupUuid:    group.Uuid,
			UserUuid:     []string{"U1", "U2"}[i],
			JoinedAt:     at,
			LastActiveAt: at,
		}
		if err := repos.Participant.Create(p); err != nil {
			t.Fatal(err)
		}
	}

	groups, err := repos.Participant.DeleteInactiveBefore(time.Now().Add(-2 * time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || groups[0] != group.Uuid {
		t.Fatalf("affected groups = %v", groups)
	}

	cnt, err := repos.Participant.CountByGroup(group.Uuid)
	if err != nil {
		t.Fatal(err)
	}
	if cnt != 1 {
		t.Fatalf("remaining participants = %d, want 1", cnt)
	}
}

func TestTransactionRollsBackIncrement(t *testing.T) {
	repos := newTestRepos(t)
	group := newWaitingGroup(t, repos, "OEEEEEEEEEEEEE")

	now := time.Now()
	p := &model.Participant{GroupUuid: group.Uuid, UserUuid: "U1", JoinedAt: now, LastActiveAt: now}
	if err := repos.Participant.Create(p); err != nil {
		t.Fatal(err)
	}

	err := repos.Transaction(func(tx *repository.Repositories) error {
		if ok, err := tx.Group.IncrementMemberCntIfBelowCap(group.Uuid); err != nil || !ok {
			t.Fatalf("increment inside tx: ok=%v err=%v", ok, err)
		}
		dup := &model.Participant{GroupUuid: group.Uuid, UserUuid: "U1", JoinedAt: now, LastActiveAt: now}
		return tx.Participant.Create(dup)
	})
	if err == nil {
		t.Fatal("transaction with duplicate insert committed")
	}

	got, _ := repos.Group.FindByUuid(group.Uuid)
	if got.MemberCnt != 0 {
		t.Fatalf("member_cnt = %d after rollback, want 0", got.MemberCnt)
	}
}

func TestDeleteStaleEmptyAndExpiredMeetings(t *testing.T) {
	repos := newTestRepos(t)

	stale := newWaitingGroup(t, repos, "OFFFFFFFFFFFFF")
	kept := newWaitingGroup(t, repos, "OGGGGGGGGGGGGG")
	if err := repos.Group.SetMemberCnt(kept.Uuid, 1); err != nil {
		t.Fatal(err)
	}

	// Both created "now"; a future cutoff catches the empty one only.
	n, err := repos.Group.DeleteStaleEmpty(time.Now().Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("stale deletions = %d, want 1", n)
	}
	if _, err := repos.Group.FindByUuid(stale.Uuid); err == nil {
		t.Fatal("stale empty group still present")
	}
	if _, err := repos.Group.FindByUuid(kept.Uuid); err != nil {
		t.Fatal("non-empty group was deleted")
	}

	done := newWaitingGroup(t, repos, "OHHHHHHHHHHHHH")
	fillGroup(t, repos, done.Uuid)
	if ok, _ := repos.Group.ClaimVenue(done.Uuid, constants.VENUE_PENDING); !ok {
		t.Fatal("claim failed")
	}
	fields := repository.VenueFields{Ref: "ext-3"}
	if ok, _ := repos.Group.FinalizeVenue(done.Uuid, constants.VENUE_PENDING, fields, time.Now().Add(-8*time.Hour)); !ok {
		t.Fatal("finalize failed")
	}

	uuids, err := repos.Group.DeleteExpiredMeetings(time.Now().Add(-6 * time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(uuids) != 1 || uuids[0] != done.Uuid {
		t.Fatalf("expired groups = %v", uuids)
	}
}

func nullTime(at time.Time) sql.NullTime {
	return sql.NullTime{Time: at, Valid: true}
}
