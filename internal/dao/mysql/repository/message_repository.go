package repository

import (
	"barmeet_server/internal/model"

	"gorm.io/gorm"
)

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a MessageRepository backed by GORM.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(m *model.Message) error {
	if err := r.db.Create(m).Error; err != nil {
		return wrapDBError(err, "create message")
	}
	return nil
}

func (r *messageRepository) FindByGroup(groupUuid string, limit int) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.
		Where("group_uuid = ?", groupUuid).
		Order("created_at ASC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "find messages group=%s", groupUuid)
	}
	return msgs, nil
}

func (r *messageRepository) UpdateStatus(uuid int64, status int8) error {
	res := r.db.Model(&model.Message{}).
		Where("uuid = ?", uuid).
		UpdateColumn("status", status)
	if res.Error != nil {
		return wrapDBErrorf(res.Error, "update message status uuid=%d", uuid)
	}
	return nil
}

func (r *messageRepository) DeleteByGroupUuid(groupUuid string) error {
	res := r.db.Where("group_uuid = ?", groupUuid).Delete(&model.Message{})
	if res.Error != nil {
		return wrapDBErrorf(res.Error, "delete messages group=%s", groupUuid)
	}
	return nil
}
