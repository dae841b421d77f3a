package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"campus-events/internal/dto"
	"campus-events/internal/model"
	"campus-events/internal/repository"
	"campus-events/pkg/kafka"
)

// ── 活动模块业务错误 ──

var (
	ErrEventNotFound      = errors.New("活动不存在")
	ErrCapacityBelowCount = errors.New("容量不能低于当前报名人数")
)

// EventService 活动业务接口
type EventService interface {
	List(ctx context.Context, req *dto.EventListRequest) ([]dto.EventResponse, error)
	GetByID(ctx context.Context, id string) (*dto.EventResponse, error)
	Create(ctx context.Context, actorID string, req *dto.CreateEventRequest) (*dto.EventResponse, error)
	Update(ctx context.Context, actorID, eventID string, req *dto.UpdateEventRequest) (*dto.EventResponse, error)
	Delete(ctx context.Context, actorID, eventID string) error
}

type eventService struct {
	repo      *repository.Repository
	gate      *AccessGate
	publisher kafka.Publisher
	logger    *zap.Logger
}

// NewEventService 创建 EventService 实例
func NewEventService(repo *repository.Repository, publisher kafka.Publisher, logger *zap.Logger) EventService {
	if publisher == nil {
		publisher = kafka.NopPublisher{}
	}
	return &eventService{
		repo:      repo,
		gate:      NewAccessGate(repo),
		publisher: publisher,
		logger:    logger,
	}
}

// ────────────────────── List / GetByID ──────────────────────

func (s *eventService) List(ctx context.Context, req *dto.EventListRequest) ([]dto.EventResponse, error) {
	filter := repository.EventFilter{}

	verr := newValidationError("Invalid filter")
	if req.Category != "" {
		if !model.Category(req.Category).Valid() {
			verr.Add("category", "Unknown category")
		}
		filter.Category = req.Category
	}
	if req.From != "" {
		t, err := parseEventDate(req.From)
		if err != nil {
			verr.Add("from", "Invalid date format")
		}
		filter.From = &t
	}
	if req.To != "" {
		t, err := parseEventDate(req.To)
		if err != nil {
			verr.Add("to", "Invalid date format")
		}
		filter.To = &t
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	events, err := s.repo.Event.List(ctx, filter)
	if err != nil {
		s.logger.Error("查询活动列表失败", zap.Error(err))
		return nil, err
	}
	return eventViews(ctx, s.repo, events)
}

func (s *eventService) GetByID(ctx context.Context, id string) (*dto.EventResponse, error) {
	event, err := s.repo.Event.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		s.logger.Error("查询活动失败", zap.String("event_id", id), zap.Error(err))
		return nil, err
	}
	return eventView(ctx, s.repo, event)
}

// ────────────────────── Create ──────────────────────

func (s *eventService) Create(ctx context.Context, actorID string, req *dto.CreateEventRequest) (*dto.EventResponse, error) {
	actor, err := s.gate.RequireAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}

	event := &model.Event{
		Title:           strings.TrimSpace(req.Title),
		Description:     strings.TrimSpace(req.Description),
		Location:        strings.TrimSpace(req.Location),
		Category:        model.Category(strings.TrimSpace(req.Category)),
		CreatedBy:       actor.UserID,
		RegisteredUsers: model.StringArray{},
	}

	verr := newValidationError("Invalid event data")
	if event.Title == "" {
		verr.Add("title", "Title is required")
	}
	if event.Description == "" {
		verr.Add("description", "Description is required")
	}
	if event.Location == "" {
		verr.Add("location", "Location is required")
	}
	if !event.Category.Valid() {
		verr.Add("category", "Category is required")
	}
	if capacity, ok := parseCapacity(req.Capacity); ok {
		event.Capacity = capacity
	} else {
		verr.Add("capacity", "Capacity must be a positive number if provided")
	}
	if date, err := parseEventDate(req.Date); err == nil {
		event.Date = date
	} else {
		verr.Add("date", "Invalid date format")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if err := s.repo.Event.Create(ctx, event); err != nil {
		s.logger.Error("创建活动失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("活动已创建",
		zap.String("event_id", event.EventID),
		zap.String("created_by", actor.UserID),
	)
	return eventView(ctx, s.repo, event)
}

// ────────────────────── Update ──────────────────────

// Update 部分更新；created_by 与报名名单不受影响
func (s *eventService) Update(ctx context.Context, actorID, eventID string, req *dto.UpdateEventRequest) (*dto.EventResponse, error) {
	if _, err := s.gate.RequireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	event, err := s.repo.Event.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		s.logger.Error("查询活动失败", zap.String("event_id", eventID), zap.Error(err))
		return nil, err
	}

	verr := newValidationError("Invalid event data")
	if req.Title != nil {
		if v := strings.TrimSpace(*req.Title); v != "" {
			event.Title = v
		} else {
			verr.Add("title", "Title is required")
		}
	}
	if req.Description != nil {
		if v := strings.TrimSpace(*req.Description); v != "" {
			event.Description = v
		} else {
			verr.Add("description", "Description is required")
		}
	}
	if req.Location != nil {
		if v := strings.TrimSpace(*req.Location); v != "" {
			event.Location = v
		} else {
			verr.Add("location", "Location is required")
		}
	}
	if req.Category != nil {
		if c := model.Category(strings.TrimSpace(*req.Category)); c.Valid() {
			event.Category = c
		} else {
			verr.Add("category", "Category is required")
		}
	}
	if req.Date != nil {
		if date, err := parseEventDate(*req.Date); err == nil {
			event.Date = date
		} else {
			verr.Add("date", "Invalid date format")
		}
	}
	switch {
	case req.ClearCapacity:
		event.Capacity = nil
	case req.Capacity != nil:
		capacity, ok := parseCapacity(req.Capacity)
		if !ok {
			verr.Add("capacity", "Capacity must be a positive number if provided")
		} else if capacity != nil {
			event.Capacity = capacity
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if event.Capacity != nil && *event.Capacity < len(event.RegisteredUsers) {
		return nil, ErrCapacityBelowCount
	}

	event.UpdatedBy = &actorID
	if err := s.repo.Event.Update(ctx, event); err != nil {
		s.logger.Warn("更新活动失败", zap.String("event_id", eventID), zap.Error(err))
		return nil, err
	}

	return eventView(ctx, s.repo, event)
}

// ────────────────────── Delete ──────────────────────

// Delete 软删除活动，并在同一事务中从所有用户的报名列表中移除该活动
func (s *eventService) Delete(ctx context.Context, actorID, eventID string) error {
	if _, err := s.gate.RequireAdmin(ctx, actorID); err != nil {
		return err
	}

	var detached int64
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.Event.Delete(ctx, eventID, actorID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return fmt.Errorf("删除活动失败: %w", err)
		}
		n, err := tx.User.RemoveEventEverywhere(ctx, eventID)
		if err != nil {
			return fmt.Errorf("移除用户报名引用失败: %w", err)
		}
		detached = n
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrEventNotFound) {
			s.logger.Error("删除活动失败", zap.String("event_id", eventID), zap.Error(err))
		}
		return err
	}

	s.logger.Info("活动已删除",
		zap.String("event_id", eventID),
		zap.String("deleted_by", actorID),
		zap.Int64("users_detached", detached),
	)
	s.publisher.Publish(ctx, kafka.Activity{
		Type:    kafka.ActivityEventDeleted,
		EventID: eventID,
		ActorID: actorID,
	})
	return nil
}
