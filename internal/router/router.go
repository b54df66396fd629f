// Package router registers the HTTP routes.
package router

import (
	"barmeet_server/internal/config"
	"barmeet_server/internal/handler"
	"barmeet_server/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes wires every endpoint. All outing and websocket routes sit
// behind JWT auth; the token carries the caller's opaque user id and nothing
// else.
func RegisterRoutes(r *gin.Engine) {
	outingGroup := r.Group("/outing")
	outingGroup.Use(middleware.JWTAuth())
	{
		outingGroup.POST("/match", handler.MatchHandler)         // find or create a group
		outingGroup.POST("/leave", handler.LeaveHandler)         // leave the current group
		outingGroup.POST("/heartbeat", handler.HeartbeatHandler) // activity ping
		outingGroup.GET("/myGroup", handler.MyGroupHandler)      // current group lookup
		outingGroup.GET("/members", handler.MembersHandler)      // member list with presence
		outingGroup.GET("/messages", handler.MessagesHandler)    // chat history
	}

	wsGroup := r.Group("/ws")
	wsGroup.Use(middleware.JWTAuth())
	{
		wsGroup.GET("/attach", handler.WsAttachHandler)  // join the group channel
		wsGroup.POST("/detach", handler.WsDetachHandler) // leave the group channel
	}

	// Dev-only token mint, so clients can be driven without the external user
	// directory. Never registered in release mode.
	if config.GetConfig().MainConfig.Mode == "dev" {
		r.POST("/dev/token", handler.DevTokenHandler)
	}
}
