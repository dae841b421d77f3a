package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"campus-events/internal/model"
	"campus-events/internal/repository"
)

// AccessGate 管理员能力校验
// 角色以数据库中的当前值为准，不信任 Token 中携带的角色
type AccessGate struct {
	repo *repository.Repository
}

// NewAccessGate 创建 AccessGate
func NewAccessGate(repo *repository.Repository) *AccessGate {
	return &AccessGate{repo: repo}
}

// RequireAdmin 校验操作人为管理员，返回操作人
// 操作人不存在（例如已被删除）同样视为无权限
func (g *AccessGate) RequireAdmin(ctx context.Context, actorID string) (*model.User, error) {
	actor, err := g.repo.User.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("查询操作人失败: %w", err)
	}
	if !actor.Role.IsAdmin() {
		return nil, ErrForbidden
	}
	return actor, nil
}
