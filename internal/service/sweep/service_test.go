package sweep_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	dao "barmeet_server/internal/dao/mysql"
	"barmeet_server/internal/dao/mysql/repository"
	"barmeet_server/internal/infrastructure/mq"
	"barmeet_server/internal/model"
	"barmeet_server/internal/service/matching"
	"barmeet_server/internal/service/sweep"
	"barmeet_server/pkg/constants"
	"barmeet_server/pkg/errorx"
)

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

type fakeBus struct {
	mu     sync.Mutex
	events []mq.GroupFilled
}

func (f *fakeBus) PublishGroupFilled(_ context.Context, ev mq.GroupFilled) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeBus) Start(mq.FilledHandler) {}
func (f *fakeBus) Close()                 {}

// fakeChannel stands in for the chat broker on both the announcer and the
// group-closer side.
type fakeChannel struct {
	mu     sync.Mutex
	closed []string
}

func (f *fakeChannel) System(groupUuid, content string) {}

func (f *fakeChannel) CloseGroup(groupUuid string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, groupUuid)
}

func (f *fakeChannel) closedGroups() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.closed))
	copy(out, f.closed)
	return out
}

func newSweeper(repos *repository.Repositories, ages sweep.Ages) (*sweep.Sweeper, *fakeChannel) {
	channel := &fakeChannel{}
	capacity := matching.NewCapacityController(repos, &fakeBus{}, channel, nil)
	return sweep.NewSweeper(repos, capacity, channel, time.Minute, ages), channel
}

func defaultAges() sweep.Ages {
	return sweep.Ages{
		ParticipantInactivity: 2 * time.Hour,
		StaleGroup:            24 * time.Hour,
		MeetingGrace:          6 * time.Hour,
	}
}

func createGroup(t *testing.T, repos *repository.Repositories, group *model.GroupOuting) {
	t.Helper()
	if group.Capacity == 0 {
		group.Capacity = constants.GROUP_CAPACITY
	}
	if group.SearchRadius == 0 {
		group.SearchRadius = 2000
	}
	group.Latitude = 40.7410
	group.Longitude = -73.9896
	if err := repos.Group.Create(group); err != nil {
		t.Fatal(err)
	}
}

func addParticipant(t *testing.T, repos *repository.Repositories, groupUuid, userUuid string, lastActive time.Time) {
	t.Helper()
	p := &model.Participant{
		GroupUuid:    groupUuid,
		UserUuid:     userUuid,
		JoinedAt:     lastActive,
		LastActiveAt: lastActive,
	}
	if err := repos.Participant.Create(p); err != nil {
		t.Fatal(err)
	}
}

func TestSweepEvictsInactiveAndDemotes(t *testing.T) {
	repos := newTestRepos(t)
	sweeper, _ := newSweeper(repos, defaultAges())

	now := time.Now()
	createGroup(t, repos, &model.GroupOuting{
		Uuid:      "O5000000000001",
		Status:    model.GroupStatusConfirmed,
		MemberCnt: constants.GROUP_CAPACITY,
	})
	for _, u := range []string{"U1", "U2", "U3", "U4"} {
		addParticipant(t, repos, "O5000000000001", u, now)
	}
	// U5 went silent three hours ago.
	addParticipant(t, repos, "O5000000000001", "U5", now.Add(-3*time.Hour))

	sweeper.Sweep(context.Background(), now)

	got, err := repos.Group.FindByUuid("O5000000000001")
	if err != nil {
		t.Fatal(err)
	}
	if got.MemberCnt != 4 {
		t.Fatalf("member_cnt = %d, want 4 after eviction", got.MemberCnt)
	}
	if got.Status != model.GroupStatusWaiting {
		t.Fatalf("status = %d, underfilled group must demote", got.Status)
	}
	if _, err := repos.Participant.Find("O5000000000001", "U5"); !errorx.IsNotFound(err) {
		t.Fatal("silent participant still present")
	}
	if _, err := repos.Participant.Find("O5000000000001", "U1"); err != nil {
		t.Fatal("active participant was evicted")
	}
}

func TestSweepDeletesGroupEmptiedByEviction(t *testing.T) {
	repos := newTestRepos(t)
	sweeper, channel := newSweeper(repos, defaultAges())

	now := time.Now()
	createGroup(t, repos, &model.GroupOuting{
		Uuid:      "O5000000000002",
		Status:    model.GroupStatusWaiting,
		MemberCnt: 1,
	})
	addParticipant(t, repos, "O5000000000002", "U1", now.Add(-5*time.Hour))

	sweeper.Sweep(context.Background(), now)

	if _, err := repos.Group.FindByUuid("O5000000000002"); !errorx.IsNotFound(err) {
		t.Fatal("emptied group still present")
	}
	closed := channel.closedGroups()
	if len(closed) != 1 || closed[0] != "O5000000000002" {
		t.Fatalf("closed channels = %v", closed)
	}
}

func TestSweepRepairsCounterDrift(t *testing.T) {
	repos := newTestRepos(t)
	sweeper, _ := newSweeper(repos, defaultAges())

	now := time.Now()
	createGroup(t, repos, &model.GroupOuting{
		Uuid:      "O5000000000003",
		Status:    model.GroupStatusWaiting,
		MemberCnt: 4,
	})
	addParticipant(t, repos, "O5000000000003", "U1", now)
	addParticipant(t, repos, "O5000000000003", "U2", now)

	sweeper.Sweep(context.Background(), now)

	got, _ := repos.Group.FindByUuid("O5000000000003")
	if got.MemberCnt != 2 {
		t.Fatalf("member_cnt = %d, want repaired to 2", got.MemberCnt)
	}
}

func TestSweepDeletesStaleEmptyGroup(t *testing.T) {
	repos := newTestRepos(t)
	sweeper, _ := newSweeper(repos, defaultAges())

	now := time.Now()
	stale := &model.GroupOuting{
		Uuid:   "O5000000000004",
		Status: model.GroupStatusWaiting,
	}
	stale.CreatedAt = now.Add(-48 * time.Hour)
	createGroup(t, repos, stale)

	fresh := &model.GroupOuting{
		Uuid:   "O5000000000005",
		Status: model.GroupStatusWaiting,
	}
	createGroup(t, repos, fresh)

	sweeper.Sweep(context.Background(), now)

	if _, err := repos.Group.FindByUuid("O5000000000004"); !errorx.IsNotFound(err) {
		t.Fatal("stale empty group still present")
	}
	if _, err := repos.Group.FindByUuid("O5000000000005"); err != nil {
		t.Fatal("fresh empty group was deleted")
	}
}

func TestSweepDeletesFinishedOutings(t *testing.T) {
	repos := newTestRepos(t)
	sweeper, channel := newSweeper(repos, defaultAges())

	now := time.Now()
	createGroup(t, repos, &model.GroupOuting{
		Uuid:      "O5000000000006",
		Status:    model.GroupStatusConfirmed,
		MemberCnt: constants.GROUP_CAPACITY,
		VenueRef:  "ext-1",
		VenueName: "Great Bar",
		MeetingAt: sql.NullTime{Time: now.Add(-8 * time.Hour), Valid: true},
	})
	for _, u := range []string{"U1", "U2", "U3", "U4", "U5"} {
		addParticipant(t, repos, "O5000000000006", u, now)
	}
	if err := repos.Message.Create(&model.Message{
		Uuid: 1, GroupUuid: "O5000000000006", Type: model.MessageTypeText, Content: "see you there", SendId: "U1",
	}); err != nil {
		t.Fatal(err)
	}

	sweeper.Sweep(context.Background(), now)

	if _, err := repos.Group.FindByUuid("O5000000000006"); !errorx.IsNotFound(err) {
		t.Fatal("finished outing still present")
	}
	left, err := repos.Participant.CountByGroup("O5000000000006")
	if err != nil {
		t.Fatal(err)
	}
	if left != 0 {
		t.Fatalf("participants left = %d", left)
	}
	msgs, err := repos.Message.FindByGroup("O5000000000006", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Fatalf("messages left = %d", len(msgs))
	}
	closed := channel.closedGroups()
	if len(closed) != 1 || closed[0] != "O5000000000006" {
		t.Fatalf("closed channels = %v", closed)
	}
}

func TestSweepSecondPassIsNoop(t *testing.T) {
	repos := newTestRepos(t)
	sweeper, channel := newSweeper(repos, defaultAges())

	now := time.Now()
	createGroup(t, repos, &model.GroupOuting{
		Uuid:      "O5000000000007",
		Status:    model.GroupStatusConfirmed,
		MemberCnt: constants.GROUP_CAPACITY,
		VenueRef:  "ext-1",
		MeetingAt: sql.NullTime{Time: now.Add(-8 * time.Hour), Valid: true},
	})
	for _, u := range []string{"U1", "U2", "U3", "U4", "U5"} {
		addParticipant(t, repos, "O5000000000007", u, now)
	}

	sweeper.Sweep(context.Background(), now)
	first := len(channel.closedGroups())

	sweeper.Sweep(context.Background(), now.Add(time.Minute))

	if len(channel.closedGroups()) != first {
		t.Fatal("second pass closed the channel again")
	}
}
