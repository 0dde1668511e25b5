package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"classhub/internal/api/middleware"
	"classhub/internal/service"
	"classhub/pkg/response"
)

// MustGetCaller 从 Gin 上下文中取出调用者身份。
// 如果 JWT 中间件未正确注入 user_id / role，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetCaller(c *gin.Context) (service.Caller, bool) {
	userID := c.GetString(middleware.ContextUserID)
	role := c.GetString(middleware.ContextRole)
	if userID == "" || role == "" {
		response.Unauthorized(c, 10002, "Authentication required")
		return service.Caller{}, false
	}
	return service.Caller{UserID: userID, Role: role}, true
}

// tokenInfo 取出当前 Access Token 的 jti 与过期时间（登出使用）
func tokenInfo(c *gin.Context) (string, time.Time) {
	jti := c.GetString(middleware.ContextTokenJTI)
	exp, _ := c.Get(middleware.ContextTokenExp)
	expiresAt, _ := exp.(time.Time)
	return jti, expiresAt
}
