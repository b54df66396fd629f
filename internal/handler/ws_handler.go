// Package handler exposes the group lifecycle over HTTP.
// This file handles the websocket attach/detach endpoints.
package handler

import (
	"barmeet_server/internal/service"
	"barmeet_server/internal/service/chat"
	"barmeet_server/pkg/errorx"

	"github.com/gin-gonic/gin"
)

// Broker is the chat broker the ws endpoints hand connections to, set once
// at startup.
var Broker chat.MessageBroker

// WsAttachHandler upgrades the connection and joins the caller's group
// channel. Membership is verified before the upgrade; a non-member never
// gets a socket into the room.
// GET /ws/attach?groupUuid=xxx
func WsAttachHandler(c *gin.Context) {
	userId, ok := currentUser(c)
	if !ok {
		return
	}
	groupUuid := c.Query("groupUuid")
	if groupUuid == "" {
		HandleError(c, errorx.ErrInvalidParam)
		return
	}
	if err := service.Svc.Outing.VerifyMembership(userId, groupUuid); err != nil {
		HandleError(c, err)
		return
	}
	chat.NewClientInit(c, Broker, userId, groupUuid)
}

// WsDetachHandler closes the caller's websocket, if one is live.
// POST /ws/detach
func WsDetachHandler(c *gin.Context) {
	userId, ok := currentUser(c)
	if !ok {
		return
	}
	chat.ClientLogout(Broker, userId)
	HandleSuccess(c, nil)
}
