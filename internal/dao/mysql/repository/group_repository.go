package repository

import (
	"time"

	"barmeet_server/internal/model"

	"gorm.io/gorm"
)

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository creates a GroupRepository backed by GORM.
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) FindByUuid(uuid string) (*model.GroupOuting, error) {
	var group model.GroupOuting
	if err := r.db.First(&group, "uuid = ?", uuid).Error; err != nil {
		return nil, wrapDBErrorf(err, "find group uuid=%s", uuid)
	}
	return &group, nil
}

func (r *groupRepository) FindByStatuses(statuses []int8) ([]model.GroupOuting, error) {
	var groups []model.GroupOuting
	if err := r.db.Where("status IN ?", statuses).Find(&groups).Error; err != nil {
		return nil, wrapDBError(err, "find groups by status")
	}
	return groups, nil
}

// FindCandidates orders oldest-first to clear the backlog fairly, then
// fullest-first so nearly complete groups fill before fresh ones.
func (r *groupRepository) FindCandidates(minLat, maxLat, minLng, maxLng float64, limit int) ([]model.GroupOuting, error) {
	var groups []model.GroupOuting
	err := r.db.
		Where("status = ? AND scheduled = 0 AND member_cnt < capacity", model.GroupStatusWaiting).
		Where("latitude BETWEEN ? AND ?", minLat, maxLat).
		Where("longitude BETWEEN ? AND ?", minLng, maxLng).
		Order("created_at ASC").
		Order("member_cnt DESC").
		Limit(limit).
		Find(&groups).Error
	if err != nil {
		return nil, wrapDBError(err, "find candidate groups")
	}
	return groups, nil
}

func (r *groupRepository) FindDueScheduled(now time.Time) ([]model.GroupOuting, error) {
	var groups []model.GroupOuting
	err := r.db.
		Where("scheduled = 1 AND status = ? AND activate_at IS NOT NULL AND activate_at <= ?",
			model.GroupStatusWaiting, now).
		Find(&groups).Error
	if err != nil {
		return nil, wrapDBError(err, "find due scheduled groups")
	}
	return groups, nil
}

func (r *groupRepository) Create(group *model.GroupOuting) error {
	if err := r.db.Create(group).Error; err != nil {
		return wrapDBError(err, "create group")
	}
	return nil
}

// IncrementMemberCntIfBelowCap performs the compare-and-increment in one
// conditional UPDATE. RowsAffected tells the caller whether it won the seat;
// two concurrent joins on the last seat can never both see RowsAffected==1.
func (r *groupRepository) IncrementMemberCntIfBelowCap(uuid string) (bool, error) {
	res := r.db.Model(&model.GroupOuting{}).
		Where("uuid = ? AND status = ? AND member_cnt < capacity", uuid, model.GroupStatusWaiting).
		UpdateColumn("member_cnt", gorm.Expr("member_cnt + ?", 1))
	if res.Error != nil {
		return false, wrapDBErrorf(res.Error, "increment member count uuid=%s", uuid)
	}
	return res.RowsAffected == 1, nil
}

func (r *groupRepository) DecrementMemberCnt(uuid string) error {
	res := r.db.Model(&model.GroupOuting{}).
		Where("uuid = ? AND member_cnt > 0", uuid).
		UpdateColumn("member_cnt", gorm.Expr("member_cnt - ?", 1))
	if res.Error != nil {
		return wrapDBErrorf(res.Error, "decrement member count uuid=%s", uuid)
	}
	return nil
}

func (r *groupRepository) SetMemberCnt(uuid string, cnt int) error {
	res := r.db.Model(&model.GroupOuting{}).
		Where("uuid = ?", uuid).
		UpdateColumn("member_cnt", cnt)
	if res.Error != nil {
		return wrapDBErrorf(res.Error, "set member count uuid=%s", uuid)
	}
	return nil
}

func (r *groupRepository) MarkConfirmedIfFull(uuid string) (bool, error) {
	res := r.db.Model(&model.GroupOuting{}).
		Where("uuid = ? AND status = ? AND scheduled = 0 AND member_cnt = capacity",
			uuid, model.GroupStatusWaiting).
		UpdateColumn("status", model.GroupStatusConfirmed)
	if res.Error != nil {
		return false, wrapDBErrorf(res.Error, "confirm group uuid=%s", uuid)
	}
	return res.RowsAffected == 1, nil
}

// DemoteIfUnderfilled also clears a held sentinel: a departure during an
// in-flight assignment cancels that attempt, and the attempt's later
// FinalizeVenue fails its own condition.
func (r *groupRepository) DemoteIfUnderfilled(uuid string, sentinel string) (bool, error) {
	res := r.db.Model(&model.GroupOuting{}).
		Where("uuid = ? AND status = ? AND member_cnt < capacity AND venue_ref IN ?",
			uuid, model.GroupStatusConfirmed, []string{"", sentinel}).
		Updates(map[string]interface{}{
			"status":     model.GroupStatusWaiting,
			"venue_ref":  "",
			"venue_name": "",
			"venue_addr": "",
			"venue_lat":  0,
			"venue_lng":  0,
			"meeting_at": nil,
		})
	if res.Error != nil {
		return false, wrapDBErrorf(res.Error, "demote group uuid=%s", uuid)
	}
	return res.RowsAffected == 1, nil
}

func (r *groupRepository) ClaimVenue(uuid string, sentinel string) (bool, error) {
	res := r.db.Model(&model.GroupOuting{}).
		Where("uuid = ? AND status = ? AND venue_ref = '' AND member_cnt = capacity",
			uuid, model.GroupStatusConfirmed).
		UpdateColumn("venue_ref", sentinel)
	if res.Error != nil {
		return false, wrapDBErrorf(res.Error, "claim venue assignment uuid=%s", uuid)
	}
	return res.RowsAffected == 1, nil
}

func (r *groupRepository) ReleaseVenueClaim(uuid string, sentinel string) error {
	res := r.db.Model(&model.GroupOuting{}).
		Where("uuid = ? AND venue_ref = ?", uuid, sentinel).
		UpdateColumn("venue_ref", "")
	if res.Error != nil {
		return wrapDBErrorf(res.Error, "release venue claim uuid=%s", uuid)
	}
	return nil
}

func (r *groupRepository) FinalizeVenue(uuid string, sentinel string, venue VenueFields, meetingAt time.Time) (bool, error) {
	res := r.db.Model(&model.GroupOuting{}).
		Where("uuid = ? AND status = ? AND venue_ref = ? AND member_cnt = capacity",
			uuid, model.GroupStatusConfirmed, sentinel).
		Updates(map[string]interface{}{
			"venue_ref":  venue.Ref,
			"venue_name": venue.Name,
			"venue_addr": venue.Addr,
			"venue_lat":  venue.Lat,
			"venue_lng":  venue.Lng,
			"meeting_at": meetingAt,
		})
	if res.Error != nil {
		return false, wrapDBErrorf(res.Error, "finalize venue uuid=%s", uuid)
	}
	return res.RowsAffected == 1, nil
}

func (r *groupRepository) ClearScheduled(uuid string) (bool, error) {
	res := r.db.Model(&model.GroupOuting{}).
		Where("uuid = ? AND scheduled = 1", uuid).
		UpdateColumn("scheduled", 0)
	if res.Error != nil {
		return false, wrapDBErrorf(res.Error, "clear scheduled flag uuid=%s", uuid)
	}
	return res.RowsAffected == 1, nil
}

func (r *groupRepository) DeleteIfEmpty(uuid string) (bool, error) {
	res := r.db.Where("uuid = ? AND member_cnt = 0", uuid).Delete(&model.GroupOuting{})
	if res.Error != nil {
		return false, wrapDBErrorf(res.Error, "delete empty group uuid=%s", uuid)
	}
	return res.RowsAffected == 1, nil
}

func (r *groupRepository) DeleteStaleEmpty(before time.Time) (int64, error) {
	res := r.db.
		Where("status = ? AND member_cnt = 0 AND created_at < ?", model.GroupStatusWaiting, before).
		Delete(&model.GroupOuting{})
	if res.Error != nil {
		return 0, wrapDBError(res.Error, "delete stale empty groups")
	}
	return res.RowsAffected, nil
}

func (r *groupRepository) DeleteExpiredMeetings(before time.Time) ([]string, error) {
	var uuids []string
	err := r.db.Model(&model.GroupOuting{}).
		Where("status = ? AND meeting_at IS NOT NULL AND meeting_at < ?", model.GroupStatusConfirmed, before).
		Pluck("uuid", &uuids).Error
	if err != nil {
		return nil, wrapDBError(err, "find expired meetings")
	}
	if len(uuids) == 0 {
		return nil, nil
	}
	res := r.db.Where("uuid IN ?", uuids).Delete(&model.GroupOuting{})
	if res.Error != nil {
		return nil, wrapDBError(res.Error, "delete expired meetings")
	}
	return uuids, nil
}
