package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"classhub/internal/dto"
	"classhub/internal/model"
	"classhub/internal/repository"
	"classhub/pkg/jwt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// TokenBlacklist Token 黑名单存储（Redis 实现）
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// AuthService 认证业务接口
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.UserResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error)
	// Logout 将 Access Token 加入黑名单直至其自然过期
	Logout(ctx context.Context, jti string, expiresAt time.Time) error
	GetCurrentUser(ctx context.Context, userID string) (*dto.UserResponse, error)
}

type authService struct {
	repo      *repository.Repository
	jwtMgr    *jwt.Manager
	blacklist TokenBlacklist
	logger    *zap.Logger
}

// NewAuthService 创建 AuthService 实例
// blacklist 为 nil 时注销与刷新轮换不做吊销
func NewAuthService(
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	logger *zap.Logger,
) AuthService {
	return &authService{
		repo:      repo,
		jwtMgr:    jwtMgr,
		blacklist: blacklist,
		logger:    logger,
	}
}

// ────────────────────── Register ──────────────────────

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.UserResponse, error) {
	email := normalizeEmail(req.Email)

	if _, err := s.repo.User.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	user := &model.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         req.Role,
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		s.logger.Error("创建用户失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("用户注册成功", zap.String("user_id", user.UserID), zap.String("role", user.Role))
	resp := toUserResponse(user)
	return &resp, nil
}

// ────────────────────── Login ──────────────────────

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	// 1. 查询用户
	user, err := s.repo.User.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 2. 验证密码 (bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// 3. 生成 Token 对
	return s.issueTokens(user)
}

// ────────────────────── Refresh ──────────────────────

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	claims, err := s.jwtMgr.ParseToken(refreshToken)
	if err != nil || claims.TokenType != jwt.TokenTypeRefresh {
		return nil, ErrInvalidToken
	}

	if s.blacklist != nil {
		revoked, err := s.blacklist.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			s.logger.Error("查询 Token 黑名单失败", zap.Error(err))
			return nil, err
		}
		if revoked {
			return nil, ErrInvalidToken
		}
	}

	user, err := s.repo.User.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		s.logger.Error("查询用户失败", zap.String("user_id", claims.UserID), zap.Error(err))
		return nil, err
	}

	// 轮换：旧 Refresh Token 作废
	if s.blacklist != nil {
		if err := s.blacklist.BlacklistToken(ctx, claims.ID, claims.RemainingTTL(time.Now())); err != nil {
			s.logger.Error("吊销旧 RefreshToken 失败", zap.Error(err))
			return nil, err
		}
	}

	return s.issueTokens(user)
}

// ────────────────────── Logout ──────────────────────

func (s *authService) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if s.blacklist == nil || jti == "" {
		return nil
	}
	if err := s.blacklist.BlacklistToken(ctx, jti, time.Until(expiresAt)); err != nil {
		s.logger.Error("Token 加入黑名单失败", zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── Me ──────────────────────

func (s *authService) GetCurrentUser(ctx context.Context, userID string) (*dto.UserResponse, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	resp := toUserResponse(user)
	return &resp, nil
}

// ── 辅助函数 ──

func (s *authService) issueTokens(user *model.User) (*dto.TokenResponse, error) {
	accessToken, err := s.jwtMgr.GenerateAccessToken(user.UserID, user.Role)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}

	refreshToken, err := s.jwtMgr.GenerateRefreshToken(user.UserID, user.Role)
	if err != nil {
		s.logger.Error("生成 RefreshToken 失败", zap.Error(err))
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.jwtMgr.AccessTokenTTL().Seconds()),
		User:         toUserResponse(user),
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUserResponse(u *model.User) dto.UserResponse {
	return dto.UserResponse{
		ID:        u.UserID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: formatTime(u.CreatedAt),
	}
}

func toUserSummary(u *model.User) *dto.UserSummary {
	if u == nil {
		return nil
	}
	return &dto.UserSummary{ID: u.UserID, Name: u.Name, Email: u.Email}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
