package model

import "gorm.io/gorm"

// Message types.
const (
	MessageTypeText   int8 = 0 // user chat message
	MessageTypeSystem int8 = 1 // lifecycle announcement (venue assigned, member joined, ...)
)

// Message statuses.
const (
	MessageUnsent int8 = 0
	MessageSent   int8 = 1
)

// Message is one chat or system message inside a group channel. SendId is
// empty for system messages.
type Message struct {
	gorm.Model
	Uuid      int64  `gorm:"column:uuid;uniqueIndex;type:bigint;not null"`
	GroupUuid string `gorm:"column:group_uuid;index;type:char(20);not null"`
	Type      int8   `gorm:"column:type;not null"`
	Content   string `gorm:"column:content;type:TEXT"`
	SendId    string `gorm:"column:send_id;index;type:char(20)"`
	Status    int8   `gorm:"column:status;not null;default:0"`
}

func (Message) TableName() string {
	return "message"
}
