package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"campus-events/internal/model"
	pkgerrors "campus-events/pkg/errors"
)

// EventFilter 活动列表过滤条件
type EventFilter struct {
	Category string
	From     *time.Time
	To       *time.Time
}

// EventRepository 活动数据访问接口
type EventRepository interface {
	Create(ctx context.Context, event *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	GetByIDs(ctx context.Context, ids []string) ([]model.Event, error)
	List(ctx context.Context, filter EventFilter) ([]model.Event, error)
	Update(ctx context.Context, event *model.Event) error
	Delete(ctx context.Context, id, deletedBy string) error

	// ── 报名引用（events.registered_users）──

	// AppendRegistrant 条件追加：未报名且未满员时才写入，返回是否写入成功
	AppendRegistrant(ctx context.Context, eventID, userID string) (bool, error)
	// RemoveRegistrant 条件移除：已报名时才写入，返回是否写入成功
	RemoveRegistrant(ctx context.Context, eventID, userID string) (bool, error)
	RemoveUserEverywhere(ctx context.Context, userID string) (int64, error)
}

// eventRepo EventRepository 的 GORM 实现
type eventRepo struct {
	db *gorm.DB
}

// NewEventRepo 创建 EventRepository 实例
func NewEventRepo(db *gorm.DB) EventRepository {
	return &eventRepo{db: db}
}

func (r *eventRepo) Create(ctx context.Context, event *model.Event) error {
	if event.RegisteredUsers == nil {
		event.RegisteredUsers = model.StringArray{}
	}
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *eventRepo) GetByID(ctx context.Context, id string) (*model.Event, error) {
	if !validID(id) {
		return nil, gorm.ErrRecordNotFound
	}
	var event model.Event
	err := r.db.WithContext(ctx).
		Where("event_id = ?", id).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepo) GetByIDs(ctx context.Context, ids []string) ([]model.Event, error) {
	ids = validIDs(ids)
	if len(ids) == 0 {
		return []model.Event{}, nil
	}
	var events []model.Event
	err := r.db.WithContext(ctx).
		Where("event_id IN ?", ids).
		Find(&events).Error
	return events, err
}

// List 按活动时间升序返回未删除的活动
func (r *eventRepo) List(ctx context.Context, filter EventFilter) ([]model.Event, error) {
	db := r.db.WithContext(ctx).Model(&model.Event{})
	if filter.Category != "" {
		db = db.Where("category = ?", filter.Category)
	}
	if filter.From != nil {
		db = db.Where("date >= ?", *filter.From)
	}
	if filter.To != nil {
		db = db.Where("date <= ?", *filter.To)
	}

	var events []model.Event
	err := db.Order("date ASC").Order("created_at ASC").Find(&events).Error
	return events, err
}

// Update 乐观锁更新可编辑字段；created_by 与 registered_users 不在此处修改
func (r *eventRepo) Update(ctx context.Context, event *model.Event) error {
	oldVersion := event.Version
	result := r.db.WithContext(ctx).
		Model(event).
		Where("event_id = ? AND version = ?", event.EventID, oldVersion).
		Updates(map[string]interface{}{
			"title":       event.Title,
			"description": event.Description,
			"date":        event.Date,
			"location":    event.Location,
			"category":    event.Category,
			"capacity":    event.Capacity,
			"updated_by":  event.UpdatedBy,
			"version":     oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	event.Version = oldVersion + 1
	return nil
}

// Delete 软删除并记录操作人
func (r *eventRepo) Delete(ctx context.Context, id, deletedBy string) error {
	if !validID(id) {
		return gorm.ErrRecordNotFound
	}
	result := r.db.WithContext(ctx).
		Model(&model.Event{}).
		Where("event_id = ?", id).
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

// AppendRegistrant 单条 UPDATE 同时完成查重、容量判断与追加，
// 并发请求在行锁上串行化，不会出现超额报名
func (r *eventRepo) AppendRegistrant(ctx context.Context, eventID, userID string) (bool, error) {
	if !validID(eventID) {
		return false, nil
	}
	result := r.db.WithContext(ctx).
		Model(&model.Event{}).
		Where("event_id = ?", eventID).
		Where("NOT (? = ANY(registered_users))", userID).
		Where("(capacity IS NULL OR cardinality(registered_users) < capacity)").
		UpdateColumns(map[string]interface{}{
			"registered_users": gorm.Expr("array_append(registered_users, ?)", userID),
			"version":          gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *eventRepo) RemoveRegistrant(ctx context.Context, eventID, userID string) (bool, error) {
	if !validID(eventID) {
		return false, nil
	}
	result := r.db.WithContext(ctx).
		Model(&model.Event{}).
		Where("event_id = ?", eventID).
		Where("? = ANY(registered_users)", userID).
		UpdateColumns(map[string]interface{}{
			"registered_users": gorm.Expr("array_remove(registered_users, ?)", userID),
			"version":          gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RemoveUserEverywhere 从所有活动的报名名单中移除该用户，返回受影响的活动数
func (r *eventRepo) RemoveUserEverywhere(ctx context.Context, userID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Event{}).
		Where("? = ANY(registered_users)", userID).
		UpdateColumns(map[string]interface{}{
			"registered_users": gorm.Expr("array_remove(registered_users, ?)", userID),
			"version":          gorm.Expr("version + 1"),
		})
	return result.RowsAffected, result.Error
}
