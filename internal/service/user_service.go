package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"campus-events/internal/dto"
	"campus-events/internal/model"
	"campus-events/internal/repository"
	"campus-events/pkg/kafka"
)

// ── 用户模块业务错误 ──

var (
	ErrUserSelfDelete    = errors.New("不能删除自己")
	ErrEmailInUse        = errors.New("邮箱已被其他用户使用")
	ErrPreferencesFormat = errors.New("偏好标签必须为数组")
)

// UserService 用户业务接口
type UserService interface {
	GetMe(ctx context.Context, userID string) (*dto.UserDetailResponse, error)
	MyEvents(ctx context.Context, userID string) ([]dto.EventResponse, error)
	UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error)
	UpdatePreferences(ctx context.Context, userID string, req *dto.UpdatePreferencesRequest) (*dto.UserResponse, error)
	List(ctx context.Context, actorID string, req *dto.UserListRequest) ([]dto.UserResponse, int64, error)
	Delete(ctx context.Context, actorID, targetID string) error

	// ── 运维命令 ──

	CreateAdmin(ctx context.Context, name, email, password string) (*dto.UserResponse, error)
	Promote(ctx context.Context, email string) (*dto.UserResponse, error)
	ListAll(ctx context.Context) ([]dto.UserResponse, error)
}

type userService struct {
	repo      *repository.Repository
	gate      *AccessGate
	publisher kafka.Publisher
	logger    *zap.Logger
}

// NewUserService 创建 UserService 实例
func NewUserService(repo *repository.Repository, publisher kafka.Publisher, logger *zap.Logger) UserService {
	if publisher == nil {
		publisher = kafka.NopPublisher{}
	}
	return &userService{
		repo:      repo,
		gate:      NewAccessGate(repo),
		publisher: publisher,
		logger:    logger,
	}
}

// ────────────────────── GetMe / MyEvents ──────────────────────

func (s *userService) GetMe(ctx context.Context, userID string) (*dto.UserDetailResponse, error) {
	return loadUserDetail(ctx, s.repo, userID, s.logger)
}

// loadUserDetail 查询用户并按报名顺序展开已报名活动
func loadUserDetail(ctx context.Context, repo *repository.Repository, userID string, logger *zap.Logger) (*dto.UserDetailResponse, error) {
	user, err := repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		logger.Error("查询用户失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	events, err := registeredEventViews(ctx, repo, user)
	if err != nil {
		logger.Error("查询已报名活动失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return toUserDetail(user, events), nil
}

func registeredEventViews(ctx context.Context, repo *repository.Repository, user *model.User) ([]dto.EventResponse, error) {
	if len(user.RegisteredEvents) == 0 {
		return []dto.EventResponse{}, nil
	}
	events, err := repo.Event.GetByIDs(ctx, user.RegisteredEvents)
	if err != nil {
		return nil, fmt.Errorf("批量查询活动失败: %w", err)
	}
	return eventViews(ctx, repo, orderedEvents(user.RegisteredEvents, events))
}

func (s *userService) MyEvents(ctx context.Context, userID string) ([]dto.EventResponse, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	views, err := registeredEventViews(ctx, s.repo, user)
	if err != nil {
		s.logger.Error("查询已报名活动失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return views, nil
}

// ────────────────────── UpdateProfile ──────────────────────

func (s *userService) UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	verr := newValidationError("Invalid input data")
	if name == "" {
		verr.Add("name", "Name is required")
	}
	if !isEmail(email) {
		verr.Add("email", "Please include a valid email")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	// 邮箱不能与其他未删除用户重复
	if other, err := s.repo.User.GetByEmail(ctx, email); err == nil && other.UserID != userID {
		return nil, ErrEmailInUse
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询邮箱失败", zap.Error(err))
		return nil, err
	}

	user.Name = name
	user.Email = email
	user.Bio = optionalText(req.Bio)
	user.College = optionalText(req.College)
	user.Major = optionalText(req.Major)
	user.GraduationYear = optionalText(req.GraduationYear)
	user.UpdatedBy = &userID

	if err := s.repo.User.Update(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailInUse
		}
		s.logger.Error("更新个人资料失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	resp := toUserResponse(user)
	return &resp, nil
}

// ────────────────────── UpdatePreferences ──────────────────────

func (s *userService) UpdatePreferences(ctx context.Context, userID string, req *dto.UpdatePreferencesRequest) (*dto.UserResponse, error) {
	var tags []string
	raw := strings.TrimSpace(string(req.Preferences))
	if raw == "" || raw[0] != '[' {
		return nil, ErrPreferencesFormat
	}
	if err := json.Unmarshal(req.Preferences, &tags); err != nil {
		return nil, ErrPreferencesFormat
	}

	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	user.Preferences = normalizeTags(tags)
	user.UpdatedBy = &userID
	if err := s.repo.User.Update(ctx, user); err != nil {
		s.logger.Error("更新偏好失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	resp := toUserResponse(user)
	return &resp, nil
}

// ────────────────────── List ──────────────────────

func (s *userService) List(ctx context.Context, actorID string, req *dto.UserListRequest) ([]dto.UserResponse, int64, error) {
	if _, err := s.gate.RequireAdmin(ctx, actorID); err != nil {
		return nil, 0, err
	}

	users, total, err := s.repo.User.List(ctx, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询用户列表失败", zap.Error(err))
		return nil, 0, err
	}

	list := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		list = append(list, toUserResponse(&users[i]))
	}
	return list, total, nil
}

// ────────────────────── Delete ──────────────────────

// Delete 软删除用户，并在同一事务中从所有活动的报名名单中移除该用户
func (s *userService) Delete(ctx context.Context, actorID, targetID string) error {
	if _, err := s.gate.RequireAdmin(ctx, actorID); err != nil {
		return err
	}
	if actorID == targetID {
		return ErrUserSelfDelete
	}

	var detached int64
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.User.Delete(ctx, targetID, actorID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("删除用户失败: %w", err)
		}
		n, err := tx.Event.RemoveUserEverywhere(ctx, targetID)
		if err != nil {
			return fmt.Errorf("移除用户报名记录失败: %w", err)
		}
		detached = n
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			s.logger.Error("删除用户失败", zap.String("user_id", targetID), zap.Error(err))
		}
		return err
	}

	s.logger.Info("用户已删除",
		zap.String("user_id", targetID),
		zap.String("deleted_by", actorID),
		zap.Int64("events_detached", detached),
	)
	s.publisher.Publish(ctx, kafka.Activity{
		Type:    kafka.ActivityUserDeleted,
		UserID:  targetID,
		ActorID: actorID,
	})
	return nil
}

// ────────────────────── 运维命令 ──────────────────────

// CreateAdmin 创建管理员账号；邮箱已存在时将其提升为管理员
func (s *userService) CreateAdmin(ctx context.Context, name, email, password string) (*dto.UserResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if existing, err := s.repo.User.GetByEmail(ctx, email); err == nil {
		return s.promote(ctx, existing)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	verr := newValidationError("Invalid input data")
	if name == "" {
		verr.Add("name", "Name is required")
	}
	if !isEmail(email) {
		verr.Add("email", "Please include a valid email")
	}
	if len(password) < minPasswordLen {
		verr.Add("password", "Please enter a password with 6 or more characters")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:             name,
		Email:            email,
		PasswordHash:     string(hash),
		Role:             model.RoleAdmin,
		Preferences:      model.StringArray{},
		RegisteredEvents: model.StringArray{},
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("创建管理员失败: %w", err)
	}

	s.logger.Info("管理员已创建", zap.String("user_id", user.UserID), zap.String("email", email))
	resp := toUserResponse(user)
	return &resp, nil
}

// Promote 将指定邮箱的用户提升为管理员
func (s *userService) Promote(ctx context.Context, email string) (*dto.UserResponse, error) {
	user, err := s.repo.User.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.promote(ctx, user)
}

func (s *userService) promote(ctx context.Context, user *model.User) (*dto.UserResponse, error) {
	if !user.Role.IsAdmin() {
		user.Role = model.RoleAdmin
		if err := s.repo.User.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("提升管理员失败: %w", err)
		}
		s.logger.Info("用户已提升为管理员", zap.String("user_id", user.UserID))
	}
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *userService) ListAll(ctx context.Context) ([]dto.UserResponse, error) {
	users, err := s.repo.User.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	list := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		list = append(list, toUserResponse(&users[i]))
	}
	return list, nil
}
