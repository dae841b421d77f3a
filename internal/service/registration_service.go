package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"campus-events/internal/dto"
	"campus-events/internal/model"
	"campus-events/internal/repository"
	"campus-events/pkg/kafka"
	"campus-events/pkg/metrics"
)

// ── 报名模块业务错误 ──

var (
	ErrEventFull            = errors.New("活动已满员")
	ErrAlreadyRegistered    = errors.New("已报名该活动")
	ErrNotRegistered        = errors.New("未报名该活动")
	ErrRegistrationConflict = errors.New("报名状态已变化，请重试")
)

// 条件追加失败但既未满员也未重复时（期间有人取消报名），重新尝试的次数上限
const maxRegisterAttempts = 3

// RegistrationService 报名业务接口
// 报名关系双向保存：events.registered_users 与 users.registered_events，
// 两侧在同一事务中写入，Reconcile 用于修复历史遗留的不一致
type RegistrationService interface {
	Register(ctx context.Context, eventID, userID string) (*dto.EventResponse, error)
	Cancel(ctx context.Context, eventID, userID string) (*dto.EventResponse, error)
	// ReconcileAs 管理员触发的对账
	ReconcileAs(ctx context.Context, actorID string) (*dto.ReconcileResponse, error)
	// Reconcile 系统触发的对账（命令行、后台定时任务）
	Reconcile(ctx context.Context) (*dto.ReconcileResponse, error)
}

type registrationService struct {
	repo      *repository.Repository
	gate      *AccessGate
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	publisher kafka.Publisher
	logger    *zap.Logger
}

// NewRegistrationService 创建 RegistrationService 实例
func NewRegistrationService(
	repo *repository.Repository,
	m *metrics.Metrics,
	tracer trace.Tracer,
	publisher kafka.Publisher,
	logger *zap.Logger,
) RegistrationService {
	if publisher == nil {
		publisher = kafka.NopPublisher{}
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("registration")
	}
	return &registrationService{
		repo:      repo,
		gate:      NewAccessGate(repo),
		metrics:   m,
		tracer:    tracer,
		publisher: publisher,
		logger:    logger,
	}
}

// ────────────────────── Register ──────────────────────

func (s *registrationService) Register(ctx context.Context, eventID, userID string) (resp *dto.EventResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "registration.Register", trace.WithAttributes(
		attribute.String("event.id", eventID),
		attribute.String("user.id", userID),
	))
	defer func() {
		outcome := registrationOutcome(err)
		span.SetAttributes(attribute.String("registration.outcome", outcome))
		endSpan(span, err)
		s.metrics.ObserveRegistration(outcome)
	}()

	if err := s.ensureExists(ctx, eventID, userID); err != nil {
		return nil, err
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		for attempt := 0; attempt < maxRegisterAttempts; attempt++ {
			appended, err := tx.Event.AppendRegistrant(ctx, eventID, userID)
			if err != nil {
				return fmt.Errorf("追加报名者失败: %w", err)
			}
			if appended {
				added, err := tx.User.AddRegisteredEvent(ctx, userID, eventID)
				if err != nil {
					return fmt.Errorf("写入用户报名列表失败: %w", err)
				}
				if added {
					return nil
				}
				// 未写入：已包含该活动（幂等），或用户在预检后被删除，后者需回滚追加
				if _, err := tx.User.GetByID(ctx, userID); err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return ErrUserNotFound
					}
					return fmt.Errorf("重新读取用户失败: %w", err)
				}
				return nil
			}

			// 条件未满足：在事务内重新读取，按 满员 → 重复 的顺序归类
			event, err := tx.Event.GetByID(ctx, eventID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrEventNotFound
				}
				return fmt.Errorf("重新读取活动失败: %w", err)
			}
			if event.IsFull() {
				return ErrEventFull
			}
			if event.HasRegistrant(userID) {
				return ErrAlreadyRegistered
			}
		}
		return ErrRegistrationConflict
	})
	if err != nil {
		if !isRegistrationRejection(err) {
			s.logger.Error("报名失败", zap.String("event_id", eventID), zap.String("user_id", userID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("报名成功", zap.String("event_id", eventID), zap.String("user_id", userID))
	s.publisher.Publish(ctx, kafka.Activity{
		Type:    kafka.ActivityRegistrationCreated,
		EventID: eventID,
		UserID:  userID,
		ActorID: userID,
	})

	return s.reload(ctx, eventID)
}

// ────────────────────── Cancel ──────────────────────

func (s *registrationService) Cancel(ctx context.Context, eventID, userID string) (resp *dto.EventResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "registration.Cancel", trace.WithAttributes(
		attribute.String("event.id", eventID),
		attribute.String("user.id", userID),
	))
	defer func() {
		outcome := registrationOutcome(err)
		span.SetAttributes(attribute.String("registration.outcome", outcome))
		endSpan(span, err)
		s.metrics.ObserveCancellation(outcome)
	}()

	if err := s.ensureExists(ctx, eventID, userID); err != nil {
		return nil, err
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		removed, err := tx.Event.RemoveRegistrant(ctx, eventID, userID)
		if err != nil {
			return fmt.Errorf("移除报名者失败: %w", err)
		}
		if !removed {
			if _, err := tx.Event.GetByID(ctx, eventID); errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return ErrNotRegistered
		}
		if _, err := tx.User.RemoveRegisteredEvent(ctx, userID, eventID); err != nil {
			return fmt.Errorf("移除用户报名记录失败: %w", err)
		}
		return nil
	})
	if err != nil {
		if !isRegistrationRejection(err) {
			s.logger.Error("取消报名失败", zap.String("event_id", eventID), zap.String("user_id", userID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("取消报名成功", zap.String("event_id", eventID), zap.String("user_id", userID))
	s.publisher.Publish(ctx, kafka.Activity{
		Type:    kafka.ActivityRegistrationCancelled,
		EventID: eventID,
		UserID:  userID,
		ActorID: userID,
	})

	return s.reload(ctx, eventID)
}

// ────────────────────── Reconcile ──────────────────────

func (s *registrationService) ReconcileAs(ctx context.Context, actorID string) (*dto.ReconcileResponse, error) {
	if _, err := s.gate.RequireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return s.Reconcile(ctx)
}

// Reconcile 以活动侧为准修复双向引用：
//  1. 活动报名名单中已不存在的用户被移除
//  2. 报名者的 registered_events 缺少该活动时补上
//  3. 用户 registered_events 中指向已删除活动、或活动名单中没有该用户的条目被移除
//
// 每一步都是条件更新，可与正常报名并发执行；重复执行结果不变
func (s *registrationService) Reconcile(ctx context.Context) (resp *dto.ReconcileResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "registration.Reconcile")
	defer func() { endSpan(span, err) }()

	events, err := s.repo.Event.List(ctx, repository.EventFilter{})
	if err != nil {
		return nil, fmt.Errorf("查询活动失败: %w", err)
	}
	users, err := s.repo.User.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}

	liveUsers := make(map[string]*model.User, len(users))
	for i := range users {
		liveUsers[users[i].UserID] = &users[i]
	}
	liveEvents := make(map[string]*model.Event, len(events))
	for i := range events {
		liveEvents[events[i].EventID] = &events[i]
	}

	result := &dto.ReconcileResponse{
		EventsScanned: len(events),
		UsersScanned:  len(users),
	}

	// ── 活动侧 ──
	for i := range events {
		event := &events[i]
		kept := make(model.StringArray, 0, len(event.RegisteredUsers))
		for _, uid := range event.RegisteredUsers {
			user, ok := liveUsers[uid]
			if !ok {
				if _, err := s.repo.Event.RemoveRegistrant(ctx, event.EventID, uid); err != nil {
					return nil, fmt.Errorf("移除失效报名者失败: %w", err)
				}
				result.RegistrantsDropped++
				continue
			}
			kept = append(kept, uid)

			if !user.RegisteredEvents.Contains(event.EventID) {
				added, err := s.repo.User.AddRegisteredEvent(ctx, uid, event.EventID)
				if err != nil {
					return nil, fmt.Errorf("补写用户报名记录失败: %w", err)
				}
				if added {
					result.UserRefsAdded++
				}
				user.RegisteredEvents = append(user.RegisteredEvents, event.EventID)
			}
		}
		event.RegisteredUsers = kept
	}

	// ── 用户侧 ──
	for i := range users {
		user := &users[i]
		for _, eid := range user.RegisteredEvents {
			if event, ok := liveEvents[eid]; ok && event.HasRegistrant(user.UserID) {
				continue
			}
			// 删除前重新读取活动，避免误删快照之后新产生的报名
			if fresh, err := s.repo.Event.GetByID(ctx, eid); err == nil && fresh.HasRegistrant(user.UserID) {
				continue
			} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("重新读取活动失败: %w", err)
			}
			removed, err := s.repo.User.RemoveRegisteredEvent(ctx, user.UserID, eid)
			if err != nil {
				return nil, fmt.Errorf("移除失效报名记录失败: %w", err)
			}
			if removed {
				result.UserRefsDropped++
			}
		}
	}

	s.metrics.AddReconcileRepairs("registrants_dropped", result.RegistrantsDropped)
	s.metrics.AddReconcileRepairs("user_refs_added", result.UserRefsAdded)
	s.metrics.AddReconcileRepairs("user_refs_dropped", result.UserRefsDropped)

	span.SetAttributes(
		attribute.Int("reconcile.registrants_dropped", result.RegistrantsDropped),
		attribute.Int("reconcile.user_refs_added", result.UserRefsAdded),
		attribute.Int("reconcile.user_refs_dropped", result.UserRefsDropped),
	)
	s.logger.Info("报名对账完成",
		zap.Int("events", result.EventsScanned),
		zap.Int("users", result.UsersScanned),
		zap.Int("registrants_dropped", result.RegistrantsDropped),
		zap.Int("user_refs_added", result.UserRefsAdded),
		zap.Int("user_refs_dropped", result.UserRefsDropped),
	)
	return result, nil
}

// ── 辅助函数 ──

// ensureExists 依次确认活动与用户存在
func (s *registrationService) ensureExists(ctx context.Context, eventID, userID string) error {
	if _, err := s.repo.Event.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEventNotFound
		}
		return fmt.Errorf("查询活动失败: %w", err)
	}
	if _, err := s.repo.User.GetByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("查询用户失败: %w", err)
	}
	return nil
}

func (s *registrationService) reload(ctx context.Context, eventID string) (*dto.EventResponse, error) {
	event, err := s.repo.Event.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("重新读取活动失败: %w", err)
	}
	return eventView(ctx, s.repo, event)
}

func isRegistrationRejection(err error) bool {
	return errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrEventFull) ||
		errors.Is(err, ErrAlreadyRegistered) ||
		errors.Is(err, ErrNotRegistered)
}

func registrationOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrEventFull):
		return metrics.OutcomeFull
	case errors.Is(err, ErrAlreadyRegistered):
		return metrics.OutcomeAlreadyRegistered
	case errors.Is(err, ErrNotRegistered):
		return metrics.OutcomeNotRegistered
	case errors.Is(err, ErrEventNotFound), errors.Is(err, ErrUserNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil && !isRegistrationRejection(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
