package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"campus-events/config"
	"campus-events/internal/api/handler"
	"campus-events/internal/api/middleware"
	"campus-events/pkg/jwt"
	"campus-events/pkg/metrics"
	"campus-events/pkg/redis"
	"campus-events/pkg/response"
	"campus-events/pkg/tracing"
)

// Options 路由依赖；Redis、Metrics、Tracer 可为 nil
type Options struct {
	Config  *config.Config
	Handler *handler.Handler
	JWT     *jwt.Manager
	Redis   *redis.Client
	Metrics *metrics.Metrics
	Tracer  trace.Tracer
	// DBPing 就绪检查使用的数据库探活
	DBPing func(ctx context.Context) error
	Logger *zap.Logger
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(opts Options) *gin.Engine {
	cfg := opts.Config
	h := opts.Handler

	if cfg.Server.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	response.SetDebug(cfg.Server.IsDevelopment())

	tracer := opts.Tracer
	if tracer == nil {
		tracer = tracing.Noop().Tracer()
	}

	// nil *redis.Client 不能直接赋给接口，否则接口非 nil
	var (
		revocation middleware.RevocationChecker
		limiter    middleware.RateLimiter
	)
	if opts.Redis != nil {
		revocation = opts.Redis
		limiter = opts.Redis
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.Tracing(tracer))
	r.Use(middleware.Metrics(opts.Metrics))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// ── 运维端点 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", readiness(opts))
	if opts.Metrics != nil && cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(opts.Metrics.Handler()))
	}

	authed := middleware.JWTAuth(opts.JWT, revocation, opts.Logger)
	authLimit := middleware.RateLimit(limiter, cfg.RateLimit.AuthLimit, cfg.RateLimit.AuthWindow, opts.Logger)

	api := r.Group("/api")
	{
		// 认证模块
		auth := api.Group("/auth")
		{
			auth.POST("/register", authLimit, h.Auth.Register)
			auth.POST("/login", authLimit, h.Auth.Login)
			auth.POST("/refresh", authLimit, h.Auth.RefreshToken)
			auth.GET("", authed, h.Auth.GetCurrentUser)
			auth.PUT("/password", authed, h.Auth.ChangePassword)
			auth.POST("/logout", authed, h.Auth.Logout)
		}

		// 活动模块（读接口公开；写接口由 Service 层校验管理员身份）
		events := api.Group("/events")
		{
			events.GET("", h.Event.List)
			events.GET("/calendar.ics", h.Calendar.Feed)
			events.GET("/:id", h.Event.Get)
			events.POST("", authed, h.Event.Create)
			events.PUT("/:id", authed, h.Event.Update)
			events.DELETE("/:id", authed, h.Event.Delete)

			// 报名
			events.POST("/:id/register", authed, h.Registration.Register)
			events.DELETE("/:id/register", authed, h.Registration.Cancel)
			events.GET("/:id/registrations/export", authed, h.Export.ExportRegistrants)
		}

		// 用户模块
		users := api.Group("/users", authed)
		{
			users.GET("/me", h.User.GetMe)
			users.GET("/events", h.User.MyEvents)
			users.PUT("/profile", h.User.UpdateProfile)
			users.PUT("/preferences", h.User.UpdatePreferences)
			users.GET("", h.User.ListUsers)
			users.DELETE("/:id", h.User.DeleteUser)
		}

		// 运维
		admin := api.Group("/admin", authed)
		{
			admin.POST("/reconcile", h.Registration.Reconcile)
		}
	}

	return r
}

// codeNotReady 就绪检查失败
const codeNotReady = 10006

// readiness 数据库不可用时返回 503；Redis 仅报告状态，不影响就绪
func readiness(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if opts.DBPing != nil {
			if err := opts.DBPing(ctx); err != nil {
				opts.Logger.Warn("就绪检查：数据库不可用", zap.Error(err))
				response.ServiceUnavailable(c, codeNotReady, "Database unavailable")
				return
			}
		}

		body := gin.H{"status": "ok", "database": "up", "redis": "disabled"}
		if opts.Redis != nil {
			body["redis"] = "up"
			if err := opts.Redis.Ping(ctx); err != nil {
				body["redis"] = "down"
			}
		}
		c.JSON(http.StatusOK, body)
	}
}
