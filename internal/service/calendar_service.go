package service

import (
	"context"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"campus-events/config"
	"campus-events/internal/repository"
)

// CalendarService 日历订阅业务接口
type CalendarService interface {
	// Feed 生成包含全部未删除活动的 iCalendar 文本
	Feed(ctx context.Context) (string, error)
}

type calendarService struct {
	repo            *repository.Repository
	productID       string
	defaultDuration time.Duration
	logger          *zap.Logger
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(repo *repository.Repository, cfg *config.CalendarConfig, logger *zap.Logger) CalendarService {
	s := &calendarService{
		repo:            repo,
		productID:       "-//campus-events//events feed//EN",
		defaultDuration: 2 * time.Hour,
		logger:          logger,
	}
	if cfg != nil {
		if cfg.ProductID != "" {
			s.productID = cfg.ProductID
		}
		if cfg.DefaultDuration > 0 {
			s.defaultDuration = cfg.DefaultDuration
		}
	}
	return s
}

func (s *calendarService) Feed(ctx context.Context) (string, error) {
	events, err := s.repo.Event.List(ctx, repository.EventFilter{})
	if err != nil {
		s.logger.Error("查询活动列表失败", zap.Error(err))
		return "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(s.productID)
	cal.SetXWRCalName("Campus Events")

	now := time.Now().UTC()
	for i := range events {
		e := &events[i]
		vevent := cal.AddEvent(fmt.Sprintf("%s@campus-events", e.EventID))
		vevent.SetDtStampTime(now)
		vevent.SetCreatedTime(e.CreatedAt)
		vevent.SetModifiedAt(e.UpdatedAt)
		vevent.SetStartAt(e.Date)
		vevent.SetEndAt(e.Date.Add(s.defaultDuration))
		vevent.SetSummary(e.Title)
		vevent.SetLocation(e.Location)
		vevent.SetDescription(e.Description)
		vevent.AddProperty(ics.ComponentPropertyCategories, string(e.Category))
	}

	return cal.Serialize(), nil
}
