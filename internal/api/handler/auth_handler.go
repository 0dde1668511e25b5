package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"classhub/internal/dto"
	"classhub/internal/service"
	"classhub/pkg/response"
)

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc service.AuthService
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Register 注册
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "Invalid request body")
		return
	}

	user, err := h.authSvc.Register(c.Request.Context(), &req)
	if err != nil {
		handleAuthError(c, err)
		return
	}

	response.Created(c, gin.H{"user": user})
}

// Login 用户登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "Invalid request body")
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), &req)
	if err != nil {
		handleAuthError(c, err)
		return
	}

	response.OK(c, tokenPayload(result))
}

// RefreshToken 刷新 Token
// POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "Invalid request body")
		return
	}

	result, err := h.authSvc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		handleAuthError(c, err)
		return
	}

	response.OK(c, tokenPayload(result))
}

// Logout 用户登出
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	jti, expiresAt := tokenInfo(c)
	if jti == "" {
		response.Unauthorized(c, 10002, "Authentication required")
		return
	}

	if err := h.authSvc.Logout(c.Request.Context(), jti, expiresAt); err != nil {
		response.InternalError(c)
		return
	}

	response.Message(c, "Logged out", nil)
}

// GetCurrentUser 当前用户信息
// GET /api/v1/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	user, err := h.authSvc.GetCurrentUser(c.Request.Context(), caller.UserID)
	if err != nil {
		handleAuthError(c, err)
		return
	}

	response.OK(c, gin.H{"user": user})
}

func tokenPayload(t *dto.TokenResponse) gin.H {
	return gin.H{
		"access_token":  t.AccessToken,
		"refresh_token": t.RefreshToken,
		"expires_in":    t.ExpiresIn,
		"user":          t.User,
	}
}

// handleAuthError 认证模块错误映射
func handleAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, 11001, "Invalid email or password")
	case errors.Is(err, service.ErrEmailTaken):
		response.Error(c, http.StatusConflict, 11002, "Email already registered")
	case errors.Is(err, service.ErrInvalidToken):
		response.Error(c, http.StatusUnauthorized, 11003, "Invalid or expired token")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 11004, "User not found")
	default:
		response.InternalError(c)
	}
}
