package handler

import (
	"barmeet_server/internal/dto/request"
	"barmeet_server/internal/dto/respond"
	"barmeet_server/pkg/errorx"
	"barmeet_server/pkg/util/jwt"

	"github.com/gin-gonic/gin"
)

// DevTokenHandler mints a token pair for an arbitrary user id so clients can
// be exercised without the external user directory. Only registered in dev
// mode.
// POST /dev/token
// Body: request.DevTokenRequest
// Response: respond.TokenPairRespond
func DevTokenHandler(c *gin.Context) {
	var req request.DevTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	access, err := jwt.GenerateAccessToken(req.UserId)
	if err != nil {
		HandleError(c, errorx.Wrap(err, errorx.CodeServerBusy, "token generation failed"))
		return
	}
	refresh, refreshId, err := jwt.GenerateRefreshToken(req.UserId)
	if err != nil {
		HandleError(c, errorx.Wrap(err, errorx.CodeServerBusy, "token generation failed"))
		return
	}
	HandleSuccess(c, respond.TokenPairRespond{
		AccessToken:    access,
		RefreshToken:   refresh,
		RefreshTokenId: refreshId,
	})
}
