package model

import (
	"database/sql"

	"gorm.io/gorm"
)

// Group outing statuses.
const (
	GroupStatusWaiting   int8 = 0 // collecting participants, 0-4 confirmed
	GroupStatusConfirmed int8 = 1 // exactly capacity confirmed; venue may or may not be set
)

// GroupOuting is one bar-outing group. It owns a denormalized member counter
// (MemberCnt) that must always equal the number of confirmed participant rows;
// the counter is only ever moved through conditional column updates and is
// audited by the sweeper.
type GroupOuting struct {
	gorm.Model
	Uuid   string `gorm:"column:uuid;uniqueIndex;type:char(20);not null"`
	Status int8   `gorm:"column:status;default:0;index"`

	// Matching coordinate. For groups inside a configured metro this is the
	// hub coordinate, otherwise the creator's raw position.
	Latitude     float64 `gorm:"column:latitude;not null"`
	Longitude    float64 `gorm:"column:longitude;not null"`
	HubName      string  `gorm:"column:hub_name;type:varchar(50)"`
	SearchRadius int     `gorm:"column:search_radius;not null"` // meters

	Capacity  int `gorm:"column:capacity;default:5;not null"`
	MemberCnt int `gorm:"column:member_cnt;default:0;not null"`

	// Venue fields are set-once: VenueRef transitions "" -> sentinel -> external
	// reference and never moves backwards except sentinel release on a failed
	// assignment attempt.
	VenueRef  string       `gorm:"column:venue_ref;type:varchar(64);default:''"`
	VenueName string       `gorm:"column:venue_name;type:varchar(100)"`
	VenueAddr string       `gorm:"column:venue_addr;type:varchar(255)"`
	VenueLat  float64      `gorm:"column:venue_lat"`
	VenueLng  float64      `gorm:"column:venue_lng"`
	MeetingAt sql.NullTime `gorm:"column:meeting_at"`

	// Scheduled groups are invisible to matching until ActivateAt passes and
	// the activator clears the flag.
	Scheduled  int8         `gorm:"column:scheduled;default:0;index"`
	ActivateAt sql.NullTime `gorm:"column:activate_at"`
}

func (GroupOuting) TableName() string {
	return "group_outing"
}

// HasVenue reports whether a real venue has been assigned (the pending
// sentinel does not count).
func (g *GroupOuting) HasVenue(sentinel string) bool {
	return g.VenueRef != "" && g.VenueRef != sentinel
}
