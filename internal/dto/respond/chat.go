// Package respond holds the JSON payloads returned to clients.
package respond

// GroupMessageRespond is one chat or system message pushed over the
// websocket and returned from the history endpoint.
type GroupMessageRespond struct {
	Uuid      int64  `json:"uuid"`
	GroupUuid string `json:"groupUuid"`
	SendId    string `json:"sendId"`
	Type      int8   `json:"type"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

// GroupInfoRespond describes the caller's current group.
type GroupInfoRespond struct {
	Uuid         string  `json:"uuid"`
	Status       int8    `json:"status"`
	HubName      string  `json:"hubName"`
	Capacity     int     `json:"capacity"`
	MemberCnt    int     `json:"memberCnt"`
	Scheduled    bool    `json:"scheduled"`
	VenueName    string  `json:"venueName,omitempty"`
	VenueAddr    string  `json:"venueAddr,omitempty"`
	VenueLat     float64 `json:"venueLat,omitempty"`
	VenueLng     float64 `json:"venueLng,omitempty"`
	MeetingAt    string  `json:"meetingAt,omitempty"`
	Created      bool    `json:"created"`
	PendingVenue bool    `json:"pendingVenue"`
}

// GroupMemberRespond is one anonymous member entry.
type GroupMemberRespond struct {
	UserUuid string `json:"userUuid"`
	JoinedAt string `json:"joinedAt"`
	Online   bool   `json:"online"`
}

// TokenPairRespond carries a freshly minted token pair from the dev-mode
// token endpoint.
type TokenPairRespond struct {
	AccessToken    string `json:"accessToken"`
	RefreshToken   string `json:"refreshToken"`
	RefreshTokenId string `json:"refreshTokenId"`
}
