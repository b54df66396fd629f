// Package handler exposes the group lifecycle over HTTP. The JWT middleware
// has already resolved the caller's opaque user id into the context.
package handler

import (
	"barmeet_server/internal/dto/request"
	"barmeet_server/internal/service"
	"barmeet_server/pkg/errorx"

	"github.com/gin-gonic/gin"
)

// currentUser pulls the authenticated user id set by the JWT middleware.
func currentUser(c *gin.Context) (string, bool) {
	userId := c.GetString("user_id")
	if userId == "" {
		HandleError(c, errorx.New(errorx.CodeUnauthorized, "not logged in"))
		return "", false
	}
	return userId, true
}

// MatchHandler puts the caller into a nearby group, creating one if needed.
// POST /outing/match
// Body: request.MatchRequest
// Response: respond.GroupInfoRespond
func MatchHandler(c *gin.Context) {
	userId, ok := currentUser(c)
	if !ok {
		return
	}
	var req request.MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := service.Svc.Outing.Match(c.Request.Context(), userId, req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// LeaveHandler removes the caller from their group.
// POST /outing/leave
// Body: request.GroupActionRequest
func LeaveHandler(c *gin.Context) {
	userId, ok := currentUser(c)
	if !ok {
		return
	}
	var req request.GroupActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	if err := service.Svc.Outing.Leave(c.Request.Context(), userId, req.GroupUuid); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, nil)
}

// HeartbeatHandler refreshes the caller's activity timestamp.
// POST /outing/heartbeat
// Body: request.GroupActionRequest
func HeartbeatHandler(c *gin.Context) {
	userId, ok := currentUser(c)
	if !ok {
		return
	}
	var req request.GroupActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	if err := service.Svc.Outing.Heartbeat(c.Request.Context(), userId, req.GroupUuid); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, nil)
}

// MyGroupHandler returns the caller's current group.
// GET /outing/myGroup
// Response: respond.GroupInfoRespond
func MyGroupHandler(c *gin.Context) {
	userId, ok := currentUser(c)
	if !ok {
		return
	}
	data, err := service.Svc.Outing.MyGroup(c.Request.Context(), userId)
	if err != nil {
		if errorx.IsNotFound(err) {
			HandleError(c, errorx.New(errorx.CodeNotFound, "no active group"))
			return
		}
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// MembersHandler lists the group's participants with presence flags.
// GET /outing/members?groupUuid=xxx
// Response: []respond.GroupMemberRespond
func MembersHandler(c *gin.Context) {
	userId, ok := currentUser(c)
	if !ok {
		return
	}
	groupUuid := c.Query("groupUuid")
	if groupUuid == "" {
		HandleError(c, errorx.ErrInvalidParam)
		return
	}
	data, err := service.Svc.Outing.Members(c.Request.Context(), userId, groupUuid)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// MessagesHandler returns the group's chat history.
// GET /outing/messages?groupUuid=xxx
// Response: []respond.GroupMessageRespond
func MessagesHandler(c *gin.Context) {
	userId, ok := currentUser(c)
	if !ok {
		return
	}
	groupUuid := c.Query("groupUuid")
	if groupUuid == "" {
		HandleError(c, errorx.ErrInvalidParam)
		return
	}
	data, err := service.Svc.Outing.Messages(c.Request.Context(), userId, groupUuid)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}
