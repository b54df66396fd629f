// Package request holds the JSON payloads accepted from clients.
package request

// ChatMessageRequest is one inbound websocket frame. GroupUuid must match
// the group the connection was opened for; frames for other groups are
// rejected at the gateway.
type ChatMessageRequest struct {
	GroupUuid string `json:"groupUuid"`
	SendId    string `json:"sendId"`
	Type      int8   `json:"type"`
	Content   string `json:"content"`
}

// MatchRequest asks for a group around the given coordinate.
type MatchRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

// GroupActionRequest targets one group (leave, heartbeat).
type GroupActionRequest struct {
	GroupUuid string `json:"groupUuid" binding:"required"`
}

// DevTokenRequest mints a token pair for an arbitrary user id. Only served in
// dev mode; release deployments rely on the external user directory to issue
// tokens.
type DevTokenRequest struct {
	UserId string `json:"userId" binding:"required"`
}
