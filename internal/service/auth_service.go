package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"campus-events/config"
	"campus-events/internal/dto"
	"campus-events/internal/model"
	"campus-events/internal/repository"
	"campus-events/pkg/jwt"
	"campus-events/pkg/metrics"
)

// ── 认证模块业务错误 ──

var (
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrUserNotFound       = errors.New("用户不存在")
	ErrUserExists         = errors.New("邮箱已被注册")
	ErrWrongPassword      = errors.New("当前密码错误")
	ErrTokenInvalid       = errors.New("token 无效")
)

const minPasswordLen = 6

// TokenStore Token 吊销存储（由 Redis 实现，未启用 Redis 时为 nil）
type TokenStore interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// AuthService 认证业务接口
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*dto.TokenResponse, error)
	Logout(ctx context.Context, jti string, expiresAt time.Time) error
	GetCurrentUser(ctx context.Context, userID string) (*dto.UserDetailResponse, error)
	ChangePassword(ctx context.Context, userID string, req *dto.ChangePasswordRequest) error
}

type authService struct {
	cfg     *config.Config
	repo    *repository.Repository
	jwtMgr  *jwt.Manager
	tokens  TokenStore
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	tokens TokenStore,
	m *metrics.Metrics,
	logger *zap.Logger,
) AuthService {
	return &authService{
		cfg:     cfg,
		repo:    repo,
		jwtMgr:  jwtMgr,
		tokens:  tokens,
		metrics: m,
		logger:  logger,
	}
}

// ────────────────────── Register ──────────────────────

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	verr := newValidationError("Invalid input data")
	if name == "" {
		verr.Add("name", "Name is required")
	}
	if !isEmail(email) {
		verr.Add("email", "Please include a valid email")
	}
	if len(req.Password) < minPasswordLen {
		verr.Add("password", "Please enter a password with 6 or more characters")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if _, err := s.repo.User.GetByEmail(ctx, email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost())
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	// 系统中的第一个用户自动成为管理员
	role := model.RoleUser
	total, err := s.repo.User.Count(ctx)
	if err != nil {
		s.logger.Error("统计用户数失败", zap.Error(err))
		return nil, err
	}
	if total == 0 {
		role = model.RoleAdmin
	}

	user := &model.User{
		Name:             name,
		Email:            email,
		PasswordHash:     string(hash),
		Role:             role,
		Preferences:      normalizeTags(req.Preferences),
		RegisteredEvents: model.StringArray{},
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		// 并发注册同一邮箱时由唯一索引兜底
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "users_email_live_key") {
			return nil, ErrUserExists
		}
		s.logger.Error("创建用户失败", zap.Error(err))
		return nil, err
	}
	s.metrics.IncrementUsersCreated()

	s.logger.Info("新用户注册",
		zap.String("user_id", user.UserID),
		zap.String("role", string(user.Role)),
	)

	return s.issueTokens(user)
}

// ────────────────────── Login ──────────────────────

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	verr := newValidationError("Invalid input data")
	if !isEmail(email) {
		verr.Add("email", "Please include a valid email")
	}
	if req.Password == "" {
		verr.Add("password", "Password is required")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	// 1. 查询用户
	user, err := s.repo.User.GetByEmail(ctx, email)
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

// ────────────────────── RefreshToken ──────────────────────

func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	claims, err := s.jwtMgr.ParseToken(refreshToken)
	if err != nil || claims.TokenType != jwt.TokenTypeRefresh {
		return nil, ErrTokenInvalid
	}

	if s.tokens != nil {
		revoked, err := s.tokens.IsRevoked(ctx, claims.ID)
		if err != nil {
			s.logger.Warn("检查 Token 吊销状态失败", zap.Error(err))
		} else if revoked {
			return nil, ErrTokenInvalid
		}
	}

	user, err := s.repo.User.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenInvalid
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 旧 Refresh Token 只能使用一次
	s.revoke(ctx, claims.ID, claims.RemainingTTL())

	return s.issueTokens(user)
}

// ────────────────────── Logout ──────────────────────

func (s *authService) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	s.revoke(ctx, jti, time.Until(expiresAt))
	return nil
}

// ────────────────────── GetCurrentUser ──────────────────────

func (s *authService) GetCurrentUser(ctx context.Context, userID string) (*dto.UserDetailResponse, error) {
	return loadUserDetail(ctx, s.repo, userID, s.logger)
}

// ────────────────────── ChangePassword ──────────────────────

func (s *authService) ChangePassword(ctx context.Context, userID string, req *dto.ChangePasswordRequest) error {
	verr := newValidationError("Invalid input data")
	if req.CurrentPassword == "" {
		verr.Add("currentPassword", "Current password is required")
	}
	if len(req.NewPassword) < minPasswordLen {
		verr.Add("newPassword", "Please enter a new password with 6 or more characters")
	}
	if err := verr.OrNil(); err != nil {
		return err
	}

	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return ErrWrongPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.bcryptCost())
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return err
	}

	user.PasswordHash = string(hash)
	user.UpdatedBy = &userID
	if err := s.repo.User.Update(ctx, user); err != nil {
		s.logger.Error("更新密码失败", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	return nil
}

// ── 辅助函数 ──

func (s *authService) issueTokens(user *model.User) (*dto.TokenResponse, error) {
	accessToken, err := s.jwtMgr.GenerateAccessToken(user.UserID, string(user.Role))
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, fmt.Errorf("生成 AccessToken 失败: %w", err)
	}

	refreshToken, err := s.jwtMgr.GenerateRefreshToken(user.UserID, string(user.Role))
	if err != nil {
		s.logger.Error("生成 RefreshToken 失败", zap.Error(err))
		return nil, fmt.Errorf("生成 RefreshToken 失败: %w", err)
	}

	return &dto.TokenResponse{
		Token:        accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.jwtMgr.AccessTokenTTL().Seconds()),
	}, nil
}

// revoke 吊销 Token；未启用 Redis 时跳过
func (s *authService) revoke(ctx context.Context, jti string, ttl time.Duration) {
	if s.tokens == nil {
		s.logger.Info("未启用 Redis，跳过 Token 吊销", zap.String("jti", jti))
		return
	}
	if err := s.tokens.RevokeToken(ctx, jti, ttl); err != nil {
		s.logger.Warn("吊销 Token 失败", zap.String("jti", jti), zap.Error(err))
	}
}

func (s *authService) bcryptCost() int {
	if s.cfg != nil && s.cfg.Auth.BcryptCost >= bcrypt.MinCost {
		return s.cfg.Auth.BcryptCost
	}
	return bcrypt.DefaultCost
}
