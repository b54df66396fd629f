package repository

import (
	"time"

	"barmeet_server/internal/model"

	"gorm.io/gorm"
)

type participantRepository struct {
	db *gorm.DB
}

// NewParticipantRepository creates a ParticipantRepository backed by GORM.
func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &participantRepository{db: db}
}

func (r *participantRepository) Find(groupUuid, userUuid string) (*model.Participant, error) {
	var p model.Participant
	if err := r.db.First(&p, "group_uuid = ? AND user_uuid = ?", groupUuid, userUuid).Error; err != nil {
		return nil, wrapDBErrorf(err, "find participant group=%s user=%s", groupUuid, userUuid)
	}
	return &p, nil
}

func (r *participantRepository) FindByUser(userUuid string) (*model.Participant, error) {
	var p model.Participant
	if err := r.db.First(&p, "user_uuid = ?", userUuid).Error; err != nil {
		return nil, wrapDBErrorf(err, "find participant user=%s", userUuid)
	}
	return &p, nil
}

func (r *participantRepository) FindByGroup(groupUuid string) ([]model.Participant, error) {
	var ps []model.Participant
	err := r.db.
		Where("group_uuid = ? AND status = ?", groupUuid, model.ParticipantConfirmed).
		Order("joined_at ASC").
		Find(&ps).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "find participants group=%s", groupUuid)
	}
	return ps, nil
}

func (r *participantRepository) CountByGroup(groupUuid string) (int64, error) {
	var cnt int64
	err := r.db.Model(&model.Participant{}).
		Where("group_uuid = ? AND status = ?", groupUuid, model.ParticipantConfirmed).
		Count(&cnt).Error
	if err != nil {
		return 0, wrapDBErrorf(err, "count participants group=%s", groupUuid)
	}
	return cnt, nil
}

func (r *participantRepository) Create(p *model.Participant) error {
	if err := r.db.Create(p).Error; err != nil {
		return wrapDBErrorf(err, "create participant group=%s user=%s", p.GroupUuid, p.UserUuid)
	}
	return nil
}

func (r *participantRepository) Delete(groupUuid, userUuid string) (bool, error) {
	// Hard delete: membership rows are ephemeral, history lives in messages.
	res := r.db.Unscoped().
		Where("group_uuid = ? AND user_uuid = ?", groupUuid, userUuid).
		Delete(&model.Participant{})
	if res.Error != nil {
		return false, wrapDBErrorf(res.Error, "delete participant group=%s user=%s", groupUuid, userUuid)
	}
	return res.RowsAffected == 1, nil
}

func (r *participantRepository) DeleteByGroupUuid(groupUuid string) error {
	res := r.db.Unscoped().Where("group_uuid = ?", groupUuid).Delete(&model.Participant{})
	if res.Error != nil {
		return wrapDBErrorf(res.Error, "delete participants group=%s", groupUuid)
	}
	return nil
}

func (r *participantRepository) TouchHeartbeat(groupUuid, userUuid string, at time.Time) error {
	res := r.db.Model(&model.Participant{}).
		Where("group_uuid = ? AND user_uuid = ?", groupUuid, userUuid).
		UpdateColumn("last_active_at", at)
	if res.Error != nil {
		return wrapDBErrorf(res.Error, "touch heartbeat group=%s user=%s", groupUuid, userUuid)
	}
	return nil
}

func (r *participantRepository) DeleteInactiveBefore(cutoff time.Time) ([]string, error) {
	// Collect affected groups first so their counters can be reconciled after
	// the delete.
	var groupUuids []string
	err := r.db.Model(&model.Participant{}).
		Distinct("group_uuid").
		Where("last_active_at < ?", cutoff).
		Pluck("group_uuid", &groupUuids).Error
	if err != nil {
		return nil, wrapDBError(err, "find inactive participants")
	}
	if len(groupUuids) == 0 {
		return nil, nil
	}

	res := r.db.Unscoped().Where("last_active_at < ?", cutoff).Delete(&model.Participant{})
	if res.Error != nil {
		return nil, wrapDBError(res.Error, "delete inactive participants")
	}
	return groupUuids, nil
}
