package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"classhub/pkg/jwt"
	"classhub/pkg/response"
)

// 上下文键
const (
	ContextUserID   = "user_id"
	ContextRole     = "role"
	ContextTokenJTI = "token_jti"
	ContextTokenExp = "token_exp"
)

// TokenChecker 查询 Access Token 是否已注销
type TokenChecker interface {
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// JWTAuth JWT 认证中间件
// 从 Authorization: Bearer <token> 中提取并验证 Access Token
// blacklist 为 nil 时跳过黑名单检查；Redis 异常时降级放行
func JWTAuth(jwtMgr *jwt.Manager, blacklist TokenChecker, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, 10002, "Authentication required")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			response.Unauthorized(c, 10002, "Invalid authorization header")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(parts[1])
		if err != nil {
			response.Unauthorized(c, 10002, "Invalid or expired token")
			c.Abort()
			return
		}

		if claims.TokenType != jwt.TokenTypeAccess {
			response.Unauthorized(c, 10002, "Invalid token type")
			c.Abort()
			return
		}

		if blacklist != nil && claims.ID != "" {
			revoked, err := blacklist.IsBlacklisted(c.Request.Context(), claims.ID)
			if err != nil {
				logger.Warn("黑名单查询失败，降级放行", zap.Error(err))
			} else if revoked {
				response.Unauthorized(c, 10002, "Token has been revoked")
				c.Abort()
				return
			}
		}

		// 将用户信息注入上下文
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)
		c.Set(ContextTokenJTI, claims.ID)
		if claims.ExpiresAt != nil {
			c.Set(ContextTokenExp, claims.ExpiresAt.Time)
		}

		c.Next()
	}
}

// RoleAuth 角色权限中间件
// 检查当前用户是否具有指定角色之一
func RoleAuth(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString(ContextRole)
		if userRole == "" {
			response.Unauthorized(c, 10002, "Authentication required")
			c.Abort()
			return
		}

		for _, r := range allowedRoles {
			if userRole == r {
				c.Next()
				return
			}
		}

		response.Forbidden(c, 10003, "Access denied")
		c.Abort()
	}
}
