package model

import (
	"time"

	"gorm.io/gorm"
)

// Participant statuses. Joining is atomic accept-or-reject, so there is no
// pending state.
const (
	ParticipantConfirmed int8 = 0
)

// Participant links one user to one group. Identity is the
// (group_uuid, user_uuid) pair; the composite unique index makes duplicate
// concurrent joins fail at the storage layer.
type Participant struct {
	gorm.Model
	GroupUuid string `gorm:"column:group_uuid;type:char(20);not null;uniqueIndex:idx_group_user"`
	UserUuid  string `gorm:"column:user_uuid;type:char(20);not null;uniqueIndex:idx_group_user;index"`
	Status    int8   `gorm:"column:status;default:0"`

	JoinedAt     time.Time `gorm:"column:joined_at;not null"`
	LastActiveAt time.Time `gorm:"column:last_active_at;index;not null"`

	// Last known coordinate, kept only for rematch convenience. No other
	// personal data is stored.
	Latitude  float64 `gorm:"column:latitude"`
	Longitude float64 `gorm:"column:longitude"`
}

func (Participant) TableName() string {
	return "participant"
}
