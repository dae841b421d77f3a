package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"campus-events/internal/model"
	pkgerrors "campus-events/pkg/errors"
)

// UserRepository 用户数据访问接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// GetByIDs 批量查询（含已软删除用户，用于展示姓名）
	GetByIDs(ctx context.Context, ids []string) ([]model.User, error)
	Update(ctx context.Context, user *model.User) error
	List(ctx context.Context, offset, limit int) ([]model.User, int64, error)
	ListAll(ctx context.Context) ([]model.User, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id, deletedBy string) error

	// ── 报名引用（users.registered_events）──

	AddRegisteredEvent(ctx context.Context, userID, eventID string) (bool, error)
	RemoveRegisteredEvent(ctx context.Context, userID, eventID string) (bool, error)
	RemoveEventEverywhere(ctx context.Context, eventID string) (int64, error)
}

// userRepo UserRepository 的 GORM 实现
type userRepo struct {
	db *gorm.DB
}

// NewUserRepo 创建 UserRepository 实例
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	if !validID(id) {
		return nil, gorm.ErrRecordNotFound
	}
	var user model.User
	err := r.db.WithContext(ctx).
		Where("user_id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	ids = validIDs(ids)
	if len(ids) == 0 {
		return []model.User{}, nil
	}
	var users []model.User
	err := r.db.WithContext(ctx).
		Unscoped().
		Where("user_id IN ?", ids).
		Find(&users).Error
	return users, err
}

// Update 乐观锁更新可编辑字段，registered_events 不在此处修改
func (r *userRepo) Update(ctx context.Context, user *model.User) error {
	oldVersion := user.Version
	result := r.db.WithContext(ctx).
		Model(user).
		Where("user_id = ? AND version = ?", user.UserID, oldVersion).
		Updates(map[string]interface{}{
			"name":            user.Name,
			"email":           user.Email,
			"password_hash":   user.PasswordHash,
			"role":            user.Role,
			"bio":             user.Bio,
			"college":         user.College,
			"major":           user.Major,
			"graduation_year": user.GraduationYear,
			"preferences":     user.Preferences,
			"updated_by":      user.UpdatedBy,
			"version":         oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	user.Version = oldVersion + 1
	return nil
}

func (r *userRepo) List(ctx context.Context, offset, limit int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	db := r.db.WithContext(ctx).Model(&model.User{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("created_at ASC").Offset(offset).Limit(limit).Find(&users).Error
	return users, total, err
}

func (r *userRepo) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&users).Error
	return users, err
}

func (r *userRepo) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Count(&total).Error
	return total, err
}

// Delete 软删除并记录操作人
func (r *userRepo) Delete(ctx context.Context, id, deletedBy string) error {
	if !validID(id) {
		return gorm.ErrRecordNotFound
	}
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("user_id = ?", id).
		UpdateColumns(map[string]interface{}{
			"deleted_at": time.Now(),
			"deleted_by": deletedBy,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AddRegisteredEvent 幂等追加：已存在时不重复写入
func (r *userRepo) AddRegisteredEvent(ctx context.Context, userID, eventID string) (bool, error) {
	if !validID(userID) {
		return false, nil
	}
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("user_id = ? AND NOT (? = ANY(registered_events))", userID, eventID).
		UpdateColumn("registered_events", gorm.Expr("array_append(registered_events, ?)", eventID))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *userRepo) RemoveRegisteredEvent(ctx context.Context, userID, eventID string) (bool, error) {
	if !validID(userID) {
		return false, nil
	}
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("user_id = ? AND ? = ANY(registered_events)", userID, eventID).
		UpdateColumn("registered_events", gorm.Expr("array_remove(registered_events, ?)", eventID))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RemoveEventEverywhere 从所有用户的报名列表中移除该活动，返回受影响的用户数
func (r *userRepo) RemoveEventEverywhere(ctx context.Context, eventID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("? = ANY(registered_events)", eventID).
		UpdateColumn("registered_events", gorm.Expr("array_remove(registered_events, ?)", eventID))
	return result.RowsAffected, result.Error
}
