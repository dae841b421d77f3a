package service

import (
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"campus-events/config"
	"campus-events/internal/repository"
	"campus-events/pkg/jwt"
	"campus-events/pkg/kafka"
	"campus-events/pkg/metrics"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth         AuthService
	User         UserService
	Event        EventService
	Registration RegistrationService
	Export       ExportService
	Calendar     CalendarService
}

// Deps 构建 Service 所需的基础设施
// Tokens、Metrics、Publisher 可为 nil，对应能力降级
type Deps struct {
	Config    *config.Config
	Repo      *repository.Repository
	JWT       *jwt.Manager
	Tokens    TokenStore
	Metrics   *metrics.Metrics
	Tracer    trace.Tracer
	Publisher kafka.Publisher
	Logger    *zap.Logger
}

// NewService 创建 Service 聚合
func NewService(d Deps) *Service {
	return &Service{
		Auth:         NewAuthService(d.Config, d.Repo, d.JWT, d.Tokens, d.Metrics, d.Logger),
		User:         NewUserService(d.Repo, d.Publisher, d.Logger),
		Event:        NewEventService(d.Repo, d.Publisher, d.Logger),
		Registration: NewRegistrationService(d.Repo, d.Metrics, d.Tracer, d.Publisher, d.Logger),
		Export:       NewExportService(d.Repo, d.Logger),
		Calendar:     NewCalendarService(d.Repo, &d.Config.Calendar, d.Logger),
	}
}
